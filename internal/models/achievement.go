package models

import (
	"encoding/json"
	"fmt"
)

// Achievement categories.
const (
	AchievementCategoryCollection = "COLLECTION"
)

// ConditionKind selects the dimension an achievement condition counts
// collections by.
type ConditionKind string

const (
	ConditionTotalCount    ConditionKind = "TOTAL_COUNT"
	ConditionRarityCount   ConditionKind = "RARITY_COUNT"
	ConditionCategoryCount ConditionKind = "CATEGORY_COUNT"
	ConditionRegionCount   ConditionKind = "REGION_COUNT"
)

// AchievementCondition is the decoded completion condition of an
// achievement. It is decoded once when the achievement is loaded, not
// re-parsed per evaluation.
type AchievementCondition struct {
	Kind     ConditionKind `json:"type"`
	Target   int64         `json:"target"`
	Category string        `json:"category,omitempty"`
	Rarity   string        `json:"rarity,omitempty"`
	Region   string        `json:"region,omitempty"`
}

// Validate checks that the condition is well-formed for its kind.
func (c *AchievementCondition) Validate() error {
	if c.Target <= 0 {
		return fmt.Errorf("condition target must be positive, got %d", c.Target)
	}
	switch c.Kind {
	case ConditionTotalCount:
	case ConditionRarityCount:
		if c.Rarity == "" {
			return fmt.Errorf("rarity condition requires a rarity")
		}
	case ConditionCategoryCount:
		if c.Category == "" {
			return fmt.Errorf("category condition requires a category")
		}
	case ConditionRegionCount:
		if c.Region == "" {
			return fmt.Errorf("region condition requires a region")
		}
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return nil
}

// Achievement is a declarative, points-rewarding milestone.
type Achievement struct {
	// ID is the unique identifier of the achievement.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// Name is the display name.
	Name string `json:"name" gorm:"column:name;uniqueIndex;not null"`
	// Description explains how to complete the achievement.
	Description string `json:"description" gorm:"column:description"`
	// Category groups achievements by the activity they track.
	Category string `json:"category" gorm:"column:category;index;not null"`
	// Points is the ledger reward for completing the achievement.
	Points int64 `json:"points" gorm:"column:points;not null"`
	// ConditionJSON is the stored declarative condition.
	ConditionJSON string `json:"-" gorm:"column:condition;not null"`
	// Active indicates whether the achievement is evaluated.
	Active bool `json:"active" gorm:"column:active;default:true"`

	// Condition is the decoded form of ConditionJSON, populated by
	// DecodeCondition after load. Not persisted.
	Condition AchievementCondition `json:"condition" gorm:"-"`
}

// DecodeCondition decodes and validates ConditionJSON into Condition.
func (a *Achievement) DecodeCondition() error {
	if err := json.Unmarshal([]byte(a.ConditionJSON), &a.Condition); err != nil {
		return fmt.Errorf("failed to decode condition of achievement %s: %w", a.ID, err)
	}
	if err := a.Condition.Validate(); err != nil {
		return fmt.Errorf("invalid condition of achievement %s: %w", a.ID, err)
	}
	return nil
}

// AchievementProgress tracks a user's progress toward one achievement.
// Progress only increases; once completed the row is terminal.
type AchievementProgress struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserID and AchievementID identify the progress row; unique together.
	UserID        string `json:"user_id" gorm:"column:user_id;uniqueIndex:ux_user_achievement,priority:1;not null"`
	AchievementID string `json:"achievement_id" gorm:"column:achievement_id;uniqueIndex:ux_user_achievement,priority:2;not null"`
	// CurrentProgress is the recomputed collection count.
	CurrentProgress int64 `json:"current_progress" gorm:"column:current_progress;not null;default:0"`
	// TargetProgress is the condition target, denormalized for reads.
	TargetProgress int64 `json:"target_progress" gorm:"column:target_progress;not null"`
	// Completed marks the terminal state.
	Completed bool `json:"completed" gorm:"column:completed;index"`
	// CompletedAt is the Unix timestamp of completion, zero if incomplete.
	CompletedAt int64 `json:"completed_at" gorm:"column:completed_at"`
}

// TableName specifies the table name for GORM
func (AchievementProgress) TableName() string {
	return "achievement_progress"
}

// UnlockedAchievement is returned to the caller when a collect completes
// an achievement.
type UnlockedAchievement struct {
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	Points        int64  `json:"points"`
}
