// Package achievement recomputes progress counters against declarative
// conditions and credits the ledger for newly completed achievements.
package achievement

import (
	"errors"
	"time"

	"github.com/geomark-app/geomark/internal/ledger"
	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/pkg/logger"
)

// Evaluator drives achievement progress for collection events.
type Evaluator struct {
	logger *logger.Logger
	repo   models.Repository
	ledger *ledger.Service
}

// NewEvaluator creates an evaluator using the ledger service for rewards.
func NewEvaluator(repo models.Repository, ledger *ledger.Service, logger *logger.Logger) *Evaluator {
	return &Evaluator{repo: repo, ledger: ledger, logger: logger}
}

// EvaluateOnCollect recomputes COLLECTION achievement progress for the
// user and returns newly unlocked achievements. Each unlock performs its
// own idempotent ledger credit.
func (e *Evaluator) EvaluateOnCollect(userID string) ([]*models.UnlockedAchievement, error) {
	var unlocked []*models.UnlockedAchievement
	err := e.repo.Atomically(func(r models.Repository) error {
		var err error
		unlocked, err = e.EvaluateOnCollectIn(r, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

// EvaluateOnCollectIn is EvaluateOnCollect running inside an existing unit
// of work, so the collection orchestrator can commit achievement credits
// atomically with the collection itself.
func (e *Evaluator) EvaluateOnCollectIn(r models.Repository, userID string) ([]*models.UnlockedAchievement, error) {
	achievements, err := r.ListActiveAchievements(models.AchievementCategoryCollection)
	if err != nil {
		return nil, err
	}

	var unlocked []*models.UnlockedAchievement
	for _, a := range achievements {
		progress, err := r.GetProgress(userID, a.ID)
		if err != nil {
			return nil, err
		}
		if progress != nil && progress.Completed {
			// Terminal state, never re-evaluated.
			continue
		}
		if progress == nil {
			progress = &models.AchievementProgress{
				UserID:         userID,
				AchievementID:  a.ID,
				TargetProgress: a.Condition.Target,
			}
		}

		count, err := r.CountCollections(userID, conditionFilter(a.Condition))
		if err != nil {
			return nil, err
		}
		// Progress only increases.
		if count > progress.CurrentProgress {
			progress.CurrentProgress = count
		}

		if progress.CurrentProgress >= a.Condition.Target {
			progress.Completed = true
			progress.CompletedAt = time.Now().Unix()

			_, err := e.ledger.EarnIn(r, userID, a.Points, "ACHIEVEMENT", "Achievement unlocked: "+a.Name,
				&models.Reference{ID: a.ID, Type: models.ReferenceAchievement})
			if err != nil {
				if errors.Is(err, models.ErrDuplicateReward) {
					// Already credited by an earlier evaluation; keep the
					// completion, skip the duplicate credit.
					e.logger.Warn("Achievement reward already granted ", "user ", userID, " achievement ", a.ID)
				} else {
					return nil, err
				}
			} else {
				unlocked = append(unlocked, &models.UnlockedAchievement{
					AchievementID: a.ID,
					Name:          a.Name,
					Points:        a.Points,
				})
			}
		}

		if err := r.SaveProgress(progress); err != nil {
			return nil, err
		}
	}
	return unlocked, nil
}

// conditionFilter maps a decoded condition to the collection-count
// dimension it measures.
func conditionFilter(c models.AchievementCondition) models.CollectionFilter {
	switch c.Kind {
	case models.ConditionRarityCount:
		return models.CollectionFilter{Rarity: c.Rarity}
	case models.ConditionCategoryCount:
		return models.CollectionFilter{Category: c.Category}
	case models.ConditionRegionCount:
		return models.CollectionFilter{Region: c.Region}
	default:
		return models.CollectionFilter{}
	}
}
