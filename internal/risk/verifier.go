// Package risk scores collection attempts for spoofing risk. It is a pure
// gate: its only side effect is overwriting the per-user location cache.
package risk

import (
	"fmt"
	"time"

	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/pkg/geo"
	"github.com/geomark-app/geomark/pkg/logger"
)

// Scoring weights and thresholds. The score is additive; RejectThreshold
// or above rejects the attempt.
const (
	RejectThreshold = 70

	riskMockLocation  = 100
	riskPoorAccuracy  = 30
	riskTeleport      = 50
	riskAbnormalSpeed = 25
	riskDeviceSwitch  = 15
	riskRapidRepeat   = 20

	// maxAccuracyMeters is the GPS accuracy beyond which a reading is
	// considered unreliable.
	maxAccuracyMeters = 100.0
	// teleportDistanceMeters / teleportWindow flag physically impossible
	// relocation between consecutive attempts.
	teleportDistanceMeters = 10000.0
	teleportWindow         = 60 * time.Second
	// maxSpeedMetersPerSec is roughly 180 km/h, above plausible ground
	// travel between attempts.
	maxSpeedMetersPerSec = 50.0
	// rapidRepeatWindow flags bursts of attempts.
	rapidRepeatWindow = 30 * time.Second
)

// rejectedMessage deliberately reveals nothing about scoring internals.
const rejectedMessage = "Location verification failed. Please try again later."

// Result is the outcome of verifying one attempt.
type Result struct {
	// Valid reports whether the attempt passed verification.
	Valid bool
	// Message explains rejections; low-detail for risk rejections.
	Message string
	// DistanceMeters is the distance between the claimed coordinates and
	// the target.
	DistanceMeters float64
	// Score is the accumulated risk score. Logged, never returned to
	// clients.
	Score int
}

// Verifier scores collection attempts. Stateless except for the per-user
// location cache.
type Verifier struct {
	logger *logger.Logger
	cache  *LocationCache

	// now is swappable for tests.
	now func() time.Time
}

// NewVerifier creates a verifier backed by the given location cache.
func NewVerifier(cache *LocationCache, logger *logger.Logger) *Verifier {
	return &Verifier{
		logger: logger,
		cache:  cache,
		now:    time.Now,
	}
}

// Verify scores a single attempt against the target location. The per-user
// cache is overwritten with the current attempt regardless of the outcome,
// so risk state always reflects the latest attempt.
func (v *Verifier) Verify(attempt *models.CollectionAttempt, target *models.Location) *Result {
	now := v.now()
	prior, hasPrior := v.cache.Get(attempt.UserID)
	defer v.cache.Put(attempt.UserID, LastAttempt{
		Latitude:  attempt.Latitude,
		Longitude: attempt.Longitude,
		DeviceID:  attempt.DeviceID,
		At:        now,
	})

	if attempt.MockLocation {
		v.logger.Warn("Mock location flagged ", "user ", attempt.UserID, " location ", target.ID)
		return &Result{Valid: false, Message: rejectedMessage, Score: riskMockLocation}
	}

	score := 0
	if attempt.Accuracy > maxAccuracyMeters {
		score += riskPoorAccuracy
	}

	distance := geo.Distance(attempt.Latitude, attempt.Longitude, target.Latitude, target.Longitude)
	if distance > target.CollectRadius {
		// Hard gate, not a risk addend. The shortfall hint is the only
		// distance detail clients ever see.
		return &Result{
			Valid:          false,
			Message:        fmt.Sprintf("You are %.0f m away. Get within %.0f m to collect.", distance, target.CollectRadius),
			DistanceMeters: distance,
			Score:          score,
		}
	}

	if hasPrior {
		elapsed := now.Sub(prior.At)
		moved := geo.Distance(prior.Latitude, prior.Longitude, attempt.Latitude, attempt.Longitude)

		if moved > teleportDistanceMeters && elapsed < teleportWindow {
			score += riskTeleport
		} else if elapsed > 0 && moved/elapsed.Seconds() > maxSpeedMetersPerSec {
			score += riskAbnormalSpeed
		}

		if attempt.DeviceID != "" && prior.DeviceID != "" && attempt.DeviceID != prior.DeviceID {
			score += riskDeviceSwitch
		}

		if elapsed < rapidRepeatWindow {
			score += riskRapidRepeat
		}
	}

	if score >= RejectThreshold {
		v.logger.Warn("Attempt rejected by risk score ", "user ", attempt.UserID, " location ", target.ID, " score ", score)
		return &Result{Valid: false, Message: rejectedMessage, DistanceMeters: distance, Score: score}
	}

	return &Result{Valid: true, Message: "Location verified", DistanceMeters: distance, Score: score}
}
