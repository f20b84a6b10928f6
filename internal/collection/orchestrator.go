// Package collection coordinates one collect use case: eligibility checks,
// risk verification, ledger credit and achievement evaluation as one
// consistency unit.
package collection

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/geomark-app/geomark/internal/achievement"
	"github.com/geomark-app/geomark/internal/ledger"
	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/internal/risk"
	"github.com/geomark-app/geomark/pkg/logger"
)

// verificationMethodGPS tags records verified from client GPS readings.
const verificationMethodGPS = "GPS"

// Verifier is the slice of the risk engine the orchestrator needs.
type Verifier interface {
	Verify(attempt *models.CollectionAttempt, target *models.Location) *risk.Result
}

// Orchestrator runs the collect pipeline. Mint submission is never part of
// the synchronous path; records leave here in mint state PENDING.
type Orchestrator struct {
	logger       *logger.Logger
	repo         models.Repository
	verifier     Verifier
	ledger       *ledger.Service
	achievements *achievement.Evaluator

	now func() time.Time
}

// NewOrchestrator wires the collect pipeline.
func NewOrchestrator(
	repo models.Repository,
	verifier Verifier,
	ledger *ledger.Service,
	achievements *achievement.Evaluator,
	logger *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:         repo,
		verifier:     verifier,
		ledger:       ledger,
		achievements: achievements,
		logger:       logger,
		now:          time.Now,
	}
}

// Collect processes one collection attempt. Business-rule rejections come
// back as typed errors; a risk rejection is a non-error result with
// Success false. On success the record, the ledger credit and any
// achievement credits have committed atomically.
func (o *Orchestrator) Collect(userID, locationID string, attempt *models.CollectionAttempt) (*models.CollectResult, error) {
	user, err := o.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}
	if !user.Active {
		return nil, models.ErrUserInactive
	}

	location, err := o.repo.GetLocation(locationID)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, models.ErrLocationNotFound
	}
	if !location.Active {
		return nil, models.ErrLocationInactive
	}
	if location.IsEvent() {
		now := o.now().Unix()
		if location.EventStartAt != 0 && now < location.EventStartAt {
			return nil, models.ErrEventNotStarted
		}
		if location.EventEndAt != 0 && now > location.EventEndAt {
			return nil, models.ErrEventEnded
		}
	}

	// The duplicate gate runs before risk verification so probing an
	// already-collected spot reveals nothing about risk scoring.
	existing, err := o.repo.GetCollectionRecord(userID, locationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrAlreadyCollected
	}

	verdict := o.verifier.Verify(attempt, location)
	if !verdict.Valid {
		o.logger.Info("Collection attempt rejected ",
			"user ", userID, " location ", locationID, " score ", verdict.Score, " distance ", verdict.DistanceMeters)
		return &models.CollectResult{
			Success:        false,
			Message:        verdict.Message,
			DistanceMeters: verdict.DistanceMeters,
		}, nil
	}

	record := &models.CollectionRecord{
		ID:                 uuid.NewString(),
		UserID:             userID,
		LocationID:         locationID,
		Latitude:           attempt.Latitude,
		Longitude:          attempt.Longitude,
		DeviceID:           attempt.DeviceID,
		VerificationMethod: verificationMethodGPS,
		EarnedPoints:       location.Points,
		MintStatus:         models.MintStatusPending,
		CollectedAt:        o.now().Unix(),
	}

	var unlocked []*models.UnlockedAchievement
	err = o.repo.Atomically(func(r models.Repository) error {
		if err := r.CreateCollectionRecord(record); err != nil {
			return err
		}
		// The record id is the earn reference, so a retried request can
		// never credit twice.
		_, err := o.ledger.EarnIn(r, userID, location.Points, "NFT_COLLECTION",
			fmt.Sprintf("Collected %s", location.Name),
			&models.Reference{ID: record.ID, Type: models.ReferenceNFTCollection})
		if err != nil {
			return err
		}
		if err := r.IncrementUserCollectionCount(userID); err != nil {
			return err
		}
		unlocked, err = o.achievements.EvaluateOnCollectIn(r, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a concurrent race on (userID, locationID); the winner
			// already holds the reward.
			return nil, models.ErrAlreadyCollected
		}
		return nil, err
	}

	o.logger.Info("Location collected ",
		"user ", userID, " location ", locationID, " points ", location.Points, " record ", record.ID)

	return &models.CollectResult{
		Success:              true,
		Message:              "Location collected",
		Record:               record,
		EarnedPoints:         location.Points,
		DistanceMeters:       verdict.DistanceMeters,
		UnlockedAchievements: unlocked,
	}, nil
}

// MintStatus returns the mint state of a collection record.
func (o *Orchestrator) MintStatus(recordID string) (*models.CollectionRecord, error) {
	record, err := o.repo.GetCollectionRecordByID(recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, models.ErrRecordNotFound
	}
	return record, nil
}
