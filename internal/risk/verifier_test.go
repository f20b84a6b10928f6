package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/pkg/logger"
)

// Target roughly at the Eiffel Tower with a 50 m collect radius.
func testTarget() *models.Location {
	return &models.Location{
		ID:            "loc-1",
		Latitude:      48.8584,
		Longitude:     2.2945,
		CollectRadius: 50,
		Active:        true,
	}
}

// nearTarget is ~10 m north of the target.
func nearTarget() (float64, float64) {
	return 48.85849, 2.2945
}

func setupVerifier(t *testing.T) (*Verifier, *LocationCache) {
	t.Helper()
	log, err := logger.NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	cache := NewLocationCache(DefaultEntryTTL)
	t.Cleanup(cache.Stop)
	return NewVerifier(cache, log), cache
}

func TestVerify_ValidAttempt(t *testing.T) {
	v, _ := setupVerifier(t)
	lat, lng := nearTarget()

	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: lat, Longitude: lng, Accuracy: 10, DeviceID: "dev-1",
	}, testTarget())

	if !res.Valid {
		t.Fatalf("Verify() rejected a valid attempt: %s (score %d)", res.Message, res.Score)
	}
	if res.DistanceMeters <= 0 || res.DistanceMeters > 50 {
		t.Errorf("DistanceMeters = %f; want within (0, 50]", res.DistanceMeters)
	}
	if res.Score != 0 {
		t.Errorf("Score = %d; want 0", res.Score)
	}
}

func TestVerify_MockLocationRejected(t *testing.T) {
	v, _ := setupVerifier(t)
	lat, lng := nearTarget()

	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: lat, Longitude: lng, MockLocation: true,
	}, testTarget())

	if res.Valid {
		t.Fatal("mock location attempt must be rejected")
	}
	if res.Score != 100 {
		t.Errorf("Score = %d; want 100", res.Score)
	}
	if strings.Contains(res.Message, "mock") {
		t.Errorf("rejection message leaks scoring internals: %q", res.Message)
	}
}

func TestVerify_OutOfRadiusHardGate(t *testing.T) {
	v, _ := setupVerifier(t)

	// ~1.7 km from the target.
	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: 48.8738, Longitude: 2.2950, Accuracy: 5,
	}, testTarget())

	if res.Valid {
		t.Fatal("out-of-radius attempt must be rejected")
	}
	if !strings.Contains(res.Message, "m away") {
		t.Errorf("message = %q; want a distance shortfall hint", res.Message)
	}
	if res.DistanceMeters < 1500 {
		t.Errorf("DistanceMeters = %f; want > 1500", res.DistanceMeters)
	}
}

func TestVerify_PoorAccuracyPenalty(t *testing.T) {
	v, _ := setupVerifier(t)
	lat, lng := nearTarget()

	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: lat, Longitude: lng, Accuracy: 150,
	}, testTarget())

	if !res.Valid {
		t.Fatalf("accuracy penalty alone must not reject: %s", res.Message)
	}
	if res.Score != riskPoorAccuracy {
		t.Errorf("Score = %d; want %d", res.Score, riskPoorAccuracy)
	}
}

func TestVerify_TeleportRejected(t *testing.T) {
	v, _ := setupVerifier(t)
	base := time.Now()
	v.now = func() time.Time { return base }

	// First attempt in central London.
	v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: 51.5074, Longitude: -0.1278, Accuracy: 10, DeviceID: "dev-1",
	}, &models.Location{ID: "loc-london", Latitude: 51.5074, Longitude: -0.1278, CollectRadius: 100})

	// Second attempt ~340 km away, 20 seconds later: teleport (+50) plus
	// rapid repeat (+20) crosses the threshold.
	v.now = func() time.Time { return base.Add(20 * time.Second) }
	lat, lng := nearTarget()
	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: lat, Longitude: lng, Accuracy: 10, DeviceID: "dev-1",
	}, testTarget())

	if res.Valid {
		t.Fatalf("teleporting attempt must be rejected (score %d)", res.Score)
	}
	if res.Score < RejectThreshold {
		t.Errorf("Score = %d; want >= %d", res.Score, RejectThreshold)
	}
	if res.Message != rejectedMessage {
		t.Errorf("message = %q; want the generic rejection message", res.Message)
	}
}

func TestVerify_AbnormalSpeedPenalty(t *testing.T) {
	v, _ := setupVerifier(t)
	base := time.Now()
	v.now = func() time.Time { return base }

	// ~1.7 km away from target, inside a wide-radius location.
	v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: 48.8738, Longitude: 2.2950, Accuracy: 10, DeviceID: "dev-1",
	}, &models.Location{ID: "loc-arc", Latitude: 48.8738, Longitude: 2.2950, CollectRadius: 100})

	// 20 s for ~1.7 km is ~85 m/s: above the speed limit but below the
	// teleport distance, so only +25 (+20 rapid repeat) accrues.
	v.now = func() time.Time { return base.Add(20 * time.Second) }
	lat, lng := nearTarget()
	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: lat, Longitude: lng, Accuracy: 10, DeviceID: "dev-1",
	}, testTarget())

	if !res.Valid {
		t.Fatalf("speed+repeat (%d) is below the threshold and must pass", res.Score)
	}
	if want := riskAbnormalSpeed + riskRapidRepeat; res.Score != want {
		t.Errorf("Score = %d; want %d", res.Score, want)
	}
}

func TestVerify_DeviceSwitchPenalty(t *testing.T) {
	v, _ := setupVerifier(t)
	base := time.Now()
	v.now = func() time.Time { return base }
	lat, lng := nearTarget()

	v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: lat, Longitude: lng, Accuracy: 10, DeviceID: "dev-1",
	}, testTarget())

	// Same place two minutes later from another device.
	v.now = func() time.Time { return base.Add(2 * time.Minute) }
	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: lat, Longitude: lng, Accuracy: 10, DeviceID: "dev-2",
	}, testTarget())

	if !res.Valid {
		t.Fatalf("device switch alone must not reject: %s", res.Message)
	}
	if res.Score != riskDeviceSwitch {
		t.Errorf("Score = %d; want %d", res.Score, riskDeviceSwitch)
	}
}

func TestVerify_CacheOverwrittenOnRejection(t *testing.T) {
	v, cache := setupVerifier(t)
	lat, lng := nearTarget()

	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: lat, Longitude: lng, MockLocation: true, DeviceID: "dev-1",
	}, testTarget())
	if res.Valid {
		t.Fatal("expected rejection")
	}

	got, ok := cache.Get("user-1")
	if !ok {
		t.Fatal("cache must be overwritten even on rejection")
	}
	if got.DeviceID != "dev-1" {
		t.Errorf("cached DeviceID = %q; want dev-1", got.DeviceID)
	}
}

func TestVerify_PerUserIsolation(t *testing.T) {
	v, _ := setupVerifier(t)
	base := time.Now()
	v.now = func() time.Time { return base }

	// user-1 is cached in London; user-2's first attempt near the target
	// must not inherit user-1's history.
	v.Verify(&models.CollectionAttempt{
		UserID: "user-1", Latitude: 51.5074, Longitude: -0.1278, DeviceID: "dev-1",
	}, &models.Location{ID: "loc-london", Latitude: 51.5074, Longitude: -0.1278, CollectRadius: 100})

	v.now = func() time.Time { return base.Add(5 * time.Second) }
	lat, lng := nearTarget()
	res := v.Verify(&models.CollectionAttempt{
		UserID: "user-2", Latitude: lat, Longitude: lng, Accuracy: 10, DeviceID: "dev-2",
	}, testTarget())

	if !res.Valid || res.Score != 0 {
		t.Errorf("first attempt of another user scored %d; want 0", res.Score)
	}
}
