package models

// CollectResult is the synchronous outcome of a collection attempt. A
// risk-engine rejection is a non-error outcome: Success is false and
// Message carries a deliberately low-detail explanation.
type CollectResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Record is the created collection record on success.
	Record *CollectionRecord `json:"record,omitempty"`
	// EarnedPoints is the ledger credit granted on success.
	EarnedPoints int64 `json:"earned_points,omitempty"`
	// DistanceMeters is the verified distance to the target.
	DistanceMeters float64 `json:"distance_meters,omitempty"`
	// UnlockedAchievements lists achievements completed by this collect.
	UnlockedAchievements []*UnlockedAchievement `json:"unlocked_achievements,omitempty"`
}
