package ledger

import (
	"errors"
	"sync"
	"testing"

	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/internal/repository"
	"github.com/geomark-app/geomark/pkg/logger"
)

func setupService(t *testing.T) (*Service, *repository.MemoryDB) {
	t.Helper()
	log, err := logger.NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	db := repository.NewMemoryDB()
	return NewService(db, log), db
}

func TestEarn_CreatesAccountAndTransaction(t *testing.T) {
	s, _ := setupService(t)

	tx, err := s.Earn("user-1", 50, "NFT_COLLECTION", "collected loc-1", nil)
	if err != nil {
		t.Fatalf("Earn() error: %v", err)
	}
	if tx.Type != models.TransactionEarn {
		t.Errorf("tx.Type = %s; want EARN", tx.Type)
	}
	if tx.BalanceAfter != 50 {
		t.Errorf("tx.BalanceAfter = %d; want 50", tx.BalanceAfter)
	}

	balance, err := s.Balance("user-1")
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if balance.TotalPoints != 50 || balance.LifetimeEarned != 50 || balance.SeasonPoints != 50 {
		t.Errorf("balance = %+v; want total/lifetime/season = 50", balance)
	}
}

func TestEarn_InvalidAmount(t *testing.T) {
	s, _ := setupService(t)

	for _, amount := range []int64{0, -10} {
		if _, err := s.Earn("user-1", amount, "TEST", "", nil); !errors.Is(err, models.ErrInvalidAmount) {
			t.Errorf("Earn(%d) error = %v; want ErrInvalidAmount", amount, err)
		}
	}

	balance, _ := s.Balance("user-1")
	if balance.TotalPoints != 0 {
		t.Errorf("balance after invalid earns = %d; want 0", balance.TotalPoints)
	}
}

func TestEarn_DuplicateReference(t *testing.T) {
	s, _ := setupService(t)
	ref := &models.Reference{ID: "record-1", Type: models.ReferenceNFTCollection}

	if _, err := s.Earn("user-1", 50, "NFT_COLLECTION", "", ref); err != nil {
		t.Fatalf("first Earn() error: %v", err)
	}
	if _, err := s.Earn("user-1", 50, "NFT_COLLECTION", "", ref); !errors.Is(err, models.ErrDuplicateReward) {
		t.Fatalf("second Earn() error = %v; want ErrDuplicateReward", err)
	}

	balance, _ := s.Balance("user-1")
	if balance.TotalPoints != 50 {
		t.Errorf("balance = %d; want 50 (no double credit)", balance.TotalPoints)
	}
	txs, _ := s.Transactions("user-1", models.TransactionFilter{}, models.Page{})
	if len(txs) != 1 {
		t.Errorf("transaction count = %d; want 1", len(txs))
	}
}

func TestSpend_InsufficientBalance(t *testing.T) {
	s, _ := setupService(t)
	if _, err := s.Earn("user-1", 30, "TEST", "", nil); err != nil {
		t.Fatalf("Earn() error: %v", err)
	}

	if _, err := s.Spend("user-1", 50, "SHOP", "", nil); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("Spend() error = %v; want ErrInsufficientBalance", err)
	}

	balance, _ := s.Balance("user-1")
	if balance.TotalPoints != 30 || balance.LifetimeSpent != 0 {
		t.Errorf("balance after failed spend = %+v; want unchanged", balance)
	}
}

func TestSpend_Succeeds(t *testing.T) {
	s, _ := setupService(t)
	s.Earn("user-1", 100, "TEST", "", nil)

	tx, err := s.Spend("user-1", 40, "SHOP", "hat", nil)
	if err != nil {
		t.Fatalf("Spend() error: %v", err)
	}
	if tx.BalanceAfter != 60 {
		t.Errorf("tx.BalanceAfter = %d; want 60", tx.BalanceAfter)
	}

	balance, _ := s.Balance("user-1")
	if balance.TotalPoints != 60 || balance.LifetimeSpent != 40 {
		t.Errorf("balance = %+v; want total 60, spent 40", balance)
	}
}

func TestTransfer_Succeeds(t *testing.T) {
	s, _ := setupService(t)
	s.Earn("alice", 50, "TEST", "", nil)

	outTx, inTx, err := s.Transfer("alice", "bob", 30, "for lunch")
	if err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
	if outTx.Type != models.TransactionTransferOut || outTx.BalanceAfter != 20 {
		t.Errorf("outTx = %+v; want TRANSFER_OUT with balanceAfter 20", outTx)
	}
	if inTx.Type != models.TransactionTransferIn || inTx.BalanceAfter != 30 {
		t.Errorf("inTx = %+v; want TRANSFER_IN with balanceAfter 30", inTx)
	}
	if outTx.ReferenceID == nil || *outTx.ReferenceID != "bob" {
		t.Errorf("outTx reference = %v; want bob", outTx.ReferenceID)
	}
	if inTx.ReferenceID == nil || *inTx.ReferenceID != "alice" {
		t.Errorf("inTx reference = %v; want alice", inTx.ReferenceID)
	}

	alice, _ := s.Balance("alice")
	bob, _ := s.Balance("bob")
	if alice.TotalPoints != 20 {
		t.Errorf("alice balance = %d; want 20", alice.TotalPoints)
	}
	if bob.TotalPoints != 30 {
		t.Errorf("bob balance = %d; want 30", bob.TotalPoints)
	}
}

func TestTransfer_SelfTransfer(t *testing.T) {
	s, _ := setupService(t)
	s.Earn("alice", 50, "TEST", "", nil)

	if _, _, err := s.Transfer("alice", "alice", 10, ""); !errors.Is(err, models.ErrSelfTransfer) {
		t.Fatalf("Transfer(self) error = %v; want ErrSelfTransfer", err)
	}
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	s, _ := setupService(t)
	s.Earn("alice", 10, "TEST", "", nil)

	if _, _, err := s.Transfer("alice", "bob", 30, ""); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("Transfer() error = %v; want ErrInsufficientBalance", err)
	}

	alice, _ := s.Balance("alice")
	bob, _ := s.Balance("bob")
	if alice.TotalPoints != 10 || bob.TotalPoints != 0 {
		t.Errorf("balances after failed transfer: alice %d bob %d; want 10 and 0", alice.TotalPoints, bob.TotalPoints)
	}
	txs, _ := s.Transactions("alice", models.TransactionFilter{Type: models.TransactionTransferOut}, models.Page{})
	if len(txs) != 0 {
		t.Errorf("transfer transactions after failure = %d; want 0", len(txs))
	}
}

func TestHasEnough(t *testing.T) {
	s, _ := setupService(t)
	s.Earn("user-1", 25, "TEST", "", nil)

	ok, err := s.HasEnough("user-1", 20)
	if err != nil || !ok {
		t.Errorf("HasEnough(20) = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.HasEnough("user-1", 30)
	if err != nil || ok {
		t.Errorf("HasEnough(30) = %v, %v; want false, nil", ok, err)
	}
}

func TestBalance_Rank(t *testing.T) {
	s, _ := setupService(t)
	s.Earn("first", 100, "TEST", "", nil)
	s.Earn("second", 50, "TEST", "", nil)
	s.Earn("third", 10, "TEST", "", nil)

	balance, err := s.Balance("second")
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if balance.Rank != 2 {
		t.Errorf("rank = %d; want 2", balance.Rank)
	}
}

func TestLeaderboard_Order(t *testing.T) {
	s, _ := setupService(t)
	s.Earn("first", 100, "TEST", "", nil)
	s.Earn("second", 50, "TEST", "", nil)
	s.Earn("third", 10, "TEST", "", nil)

	top, err := s.Leaderboard(2)
	if err != nil {
		t.Fatalf("Leaderboard() error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len(top) = %d; want 2", len(top))
	}
	if top[0].UserID != "first" || top[1].UserID != "second" {
		t.Errorf("leaderboard order = %s, %s; want first, second", top[0].UserID, top[1].UserID)
	}
}

// The running balance must always equal lifetimeEarned - lifetimeSpent,
// with transfers counted symmetrically on each side.
func TestAccountingIdentity_UnderConcurrency(t *testing.T) {
	s, _ := setupService(t)
	s.Earn("alice", 1000, "SEED", "", nil)
	s.Earn("bob", 1000, "SEED", "", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Earn("alice", 5, "TEST", "", nil)
			s.Spend("alice", 3, "TEST", "", nil)
			s.Transfer("alice", "bob", 1, "")
			s.Transfer("bob", "alice", 2, "")
		}()
	}
	wg.Wait()

	for _, userID := range []string{"alice", "bob"} {
		b, err := s.Balance(userID)
		if err != nil {
			t.Fatalf("Balance(%s) error: %v", userID, err)
		}
		if b.TotalPoints != b.LifetimeEarned-b.LifetimeSpent {
			t.Errorf("%s: total %d != earned %d - spent %d", userID, b.TotalPoints, b.LifetimeEarned, b.LifetimeSpent)
		}
		if b.TotalPoints < 0 {
			t.Errorf("%s: balance went negative: %d", userID, b.TotalPoints)
		}
	}
}

func TestTransactions_FilterAndPaging(t *testing.T) {
	s, _ := setupService(t)
	for i := 0; i < 5; i++ {
		s.Earn("user-1", 10, "TEST", "", nil)
	}
	s.Spend("user-1", 5, "SHOP", "", nil)

	earns, err := s.Transactions("user-1", models.TransactionFilter{Type: models.TransactionEarn}, models.Page{})
	if err != nil {
		t.Fatalf("Transactions() error: %v", err)
	}
	if len(earns) != 5 {
		t.Errorf("earn count = %d; want 5", len(earns))
	}

	page, err := s.Transactions("user-1", models.TransactionFilter{}, models.Page{Number: 1, Size: 3})
	if err != nil {
		t.Fatalf("Transactions() error: %v", err)
	}
	if len(page) != 3 {
		t.Errorf("page size = %d; want 3", len(page))
	}
}
