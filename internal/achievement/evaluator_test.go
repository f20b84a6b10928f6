package achievement

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/geomark-app/geomark/internal/ledger"
	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/internal/repository"
	"github.com/geomark-app/geomark/pkg/logger"
)

func setupEvaluator(t *testing.T) (*Evaluator, *ledger.Service, *repository.MemoryDB) {
	t.Helper()
	log, err := logger.NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	db := repository.NewMemoryDB()
	ledgerSvc := ledger.NewService(db, log)
	return NewEvaluator(db, ledgerSvc, log), ledgerSvc, db
}

func seedAchievement(t *testing.T, db *repository.MemoryDB, id, condition string, points int64) {
	t.Helper()
	err := db.CreateAchievement(&models.Achievement{
		ID:            id,
		Name:          "achievement " + id,
		Category:      models.AchievementCategoryCollection,
		Points:        points,
		ConditionJSON: condition,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("CreateAchievement(%s) error: %v", id, err)
	}
}

func seedCollection(t *testing.T, db *repository.MemoryDB, userID, rarity, region string) {
	t.Helper()
	locID := uuid.NewString()
	if err := db.CreateLocation(&models.Location{ID: locID, Name: locID, Rarity: rarity, Region: region, Active: true}); err != nil {
		t.Fatalf("CreateLocation() error: %v", err)
	}
	err := db.CreateCollectionRecord(&models.CollectionRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		LocationID:  locID,
		MintStatus:  models.MintStatusPending,
		CollectedAt: time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("CreateCollectionRecord() error: %v", err)
	}
}

func TestEvaluateOnCollect_ProgressWithoutCompletion(t *testing.T) {
	e, _, db := setupEvaluator(t)
	seedAchievement(t, db, "ach-3", `{"type":"TOTAL_COUNT","target":3}`, 100)
	seedCollection(t, db, "user-1", "COMMON", "EU")

	unlocked, err := e.EvaluateOnCollect("user-1")
	if err != nil {
		t.Fatalf("EvaluateOnCollect() error: %v", err)
	}
	if len(unlocked) != 0 {
		t.Errorf("unlocked = %d; want 0", len(unlocked))
	}

	progress, _ := db.GetProgress("user-1", "ach-3")
	if progress == nil {
		t.Fatal("expected progress row")
	}
	if progress.CurrentProgress != 1 || progress.Completed {
		t.Errorf("progress = %+v; want current 1, not completed", progress)
	}
}

func TestEvaluateOnCollect_CompletionCreditsLedger(t *testing.T) {
	e, ledgerSvc, db := setupEvaluator(t)
	seedAchievement(t, db, "ach-2", `{"type":"TOTAL_COUNT","target":2}`, 100)
	seedCollection(t, db, "user-1", "COMMON", "EU")
	seedCollection(t, db, "user-1", "RARE", "EU")

	unlocked, err := e.EvaluateOnCollect("user-1")
	if err != nil {
		t.Fatalf("EvaluateOnCollect() error: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0].AchievementID != "ach-2" {
		t.Fatalf("unlocked = %+v; want ach-2", unlocked)
	}

	balance, _ := ledgerSvc.Balance("user-1")
	if balance.TotalPoints != 100 {
		t.Errorf("balance = %d; want 100", balance.TotalPoints)
	}

	progress, _ := db.GetProgress("user-1", "ach-2")
	if !progress.Completed || progress.CompletedAt == 0 {
		t.Errorf("progress = %+v; want completed with timestamp", progress)
	}
}

func TestEvaluateOnCollect_CompletedIsTerminal(t *testing.T) {
	e, ledgerSvc, db := setupEvaluator(t)
	seedAchievement(t, db, "ach-1", `{"type":"TOTAL_COUNT","target":1}`, 100)
	seedCollection(t, db, "user-1", "COMMON", "EU")

	if _, err := e.EvaluateOnCollect("user-1"); err != nil {
		t.Fatalf("first EvaluateOnCollect() error: %v", err)
	}
	seedCollection(t, db, "user-1", "COMMON", "EU")
	unlocked, err := e.EvaluateOnCollect("user-1")
	if err != nil {
		t.Fatalf("second EvaluateOnCollect() error: %v", err)
	}
	if len(unlocked) != 0 {
		t.Errorf("unlocked on re-evaluation = %d; want 0", len(unlocked))
	}

	balance, _ := ledgerSvc.Balance("user-1")
	if balance.TotalPoints != 100 {
		t.Errorf("balance = %d; want 100 (no double grant)", balance.TotalPoints)
	}
}

func TestEvaluateOnCollect_RarityDimension(t *testing.T) {
	e, _, db := setupEvaluator(t)
	seedAchievement(t, db, "ach-rare", `{"type":"RARITY_COUNT","target":2,"rarity":"RARE"}`, 200)
	seedCollection(t, db, "user-1", "COMMON", "EU")
	seedCollection(t, db, "user-1", "RARE", "EU")

	if _, err := e.EvaluateOnCollect("user-1"); err != nil {
		t.Fatalf("EvaluateOnCollect() error: %v", err)
	}
	progress, _ := db.GetProgress("user-1", "ach-rare")
	if progress.CurrentProgress != 1 {
		t.Errorf("rarity progress = %d; want 1 (COMMON not counted)", progress.CurrentProgress)
	}

	seedCollection(t, db, "user-1", "RARE", "NA")
	unlocked, err := e.EvaluateOnCollect("user-1")
	if err != nil {
		t.Fatalf("EvaluateOnCollect() error: %v", err)
	}
	if len(unlocked) != 1 {
		t.Errorf("unlocked = %d; want 1 after second RARE", len(unlocked))
	}
}

func TestEvaluateOnCollect_RegionDimension(t *testing.T) {
	e, _, db := setupEvaluator(t)
	seedAchievement(t, db, "ach-eu", `{"type":"REGION_COUNT","target":1,"region":"EU"}`, 50)
	seedCollection(t, db, "user-1", "COMMON", "NA")

	unlocked, err := e.EvaluateOnCollect("user-1")
	if err != nil {
		t.Fatalf("EvaluateOnCollect() error: %v", err)
	}
	if len(unlocked) != 0 {
		t.Errorf("unlocked = %d; want 0 (wrong region)", len(unlocked))
	}
}

func TestEvaluateOnCollect_MalformedConditionFailsLoudly(t *testing.T) {
	e, _, db := setupEvaluator(t)
	seedAchievement(t, db, "ach-bad", `{"type":"NO_SUCH_KIND","target":1}`, 50)
	seedCollection(t, db, "user-1", "COMMON", "EU")

	if _, err := e.EvaluateOnCollect("user-1"); err == nil {
		t.Fatal("expected error for malformed condition")
	}
}
