// Package ledger implements the append-only point ledger: earn, spend and
// transfer operations over a materialized per-user balance.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/pkg/logger"
)

// Service mutates ledger accounts and appends to the transaction log.
// Every mutation runs in a repository unit of work; the account row is
// locked for update inside it, so mutations for one user serialize while
// different users proceed independently.
type Service struct {
	logger *logger.Logger
	repo   models.Repository
}

// NewService creates a ledger service on top of the repository.
func NewService(repo models.Repository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Earn credits amount to the user. If a reference is supplied and an EARN
// transaction already exists for that (ID, Type) pair, it fails with
// ErrDuplicateReward and mutates nothing.
func (s *Service) Earn(userID string, amount int64, source, description string, ref *models.Reference) (*models.LedgerTransaction, error) {
	var out *models.LedgerTransaction
	err := s.repo.Atomically(func(r models.Repository) error {
		tx, err := s.EarnIn(r, userID, amount, source, description, ref)
		out = tx
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EarnIn is Earn running inside an existing unit of work. The collection
// orchestrator uses it to commit the credit atomically with the
// collection record.
func (s *Service) EarnIn(r models.Repository, userID string, amount int64, source, description string, ref *models.Reference) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	if ref != nil {
		exists, err := r.HasEarnWithReference(ref.ID, ref.Type)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, models.ErrDuplicateReward
		}
	}

	account, err := r.GetOrCreateAccount(userID)
	if err != nil {
		return nil, err
	}
	account.TotalPoints += amount
	account.LifetimeEarned += amount
	account.SeasonPoints += amount
	if err := r.SaveAccount(account); err != nil {
		return nil, err
	}

	tx := s.newTransaction(userID, models.TransactionEarn, amount, account.TotalPoints, source, description, ref)
	if err := r.AppendTransaction(tx); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent earn won the reference race; the unit of work
			// rolls the balance change back.
			return nil, models.ErrDuplicateReward
		}
		return nil, err
	}
	return tx, nil
}

// Spend debits amount from the user, failing with ErrInsufficientBalance
// and no mutation if the balance is too low.
func (s *Service) Spend(userID string, amount int64, source, description string, ref *models.Reference) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	var out *models.LedgerTransaction
	err := s.repo.Atomically(func(r models.Repository) error {
		account, err := r.GetOrCreateAccount(userID)
		if err != nil {
			return err
		}
		if account.TotalPoints < amount {
			return models.ErrInsufficientBalance
		}
		account.TotalPoints -= amount
		account.LifetimeSpent += amount
		if err := r.SaveAccount(account); err != nil {
			return err
		}
		out = s.newTransaction(userID, models.TransactionSpend, amount, account.TotalPoints, source, description, ref)
		return r.AppendTransaction(out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transfer moves amount from sender to receiver as two linked
// transactions that commit or roll back together.
func (s *Service) Transfer(senderID, receiverID string, amount int64, message string) (*models.LedgerTransaction, *models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, nil, models.ErrInvalidAmount
	}
	if senderID == receiverID {
		return nil, nil, models.ErrSelfTransfer
	}

	var outTx, inTx *models.LedgerTransaction
	err := s.repo.Atomically(func(r models.Repository) error {
		// Lock both account rows in a fixed order so two opposite
		// transfers cannot deadlock.
		first, second := senderID, receiverID
		if second < first {
			first, second = second, first
		}
		accounts := make(map[string]*models.LedgerAccount, 2)
		for _, id := range []string{first, second} {
			account, err := r.GetOrCreateAccount(id)
			if err != nil {
				return err
			}
			accounts[id] = account
		}

		sender, receiver := accounts[senderID], accounts[receiverID]
		if sender.TotalPoints < amount {
			return models.ErrInsufficientBalance
		}
		sender.TotalPoints -= amount
		sender.LifetimeSpent += amount
		receiver.TotalPoints += amount
		receiver.LifetimeEarned += amount
		if err := r.SaveAccount(sender); err != nil {
			return err
		}
		if err := r.SaveAccount(receiver); err != nil {
			return err
		}

		// Each side references the other's user id.
		outTx = s.newTransaction(senderID, models.TransactionTransferOut, amount, sender.TotalPoints,
			"TRANSFER", message, &models.Reference{ID: receiverID, Type: models.ReferenceTransfer})
		if err := r.AppendTransaction(outTx); err != nil {
			return err
		}
		inTx = s.newTransaction(receiverID, models.TransactionTransferIn, amount, receiver.TotalPoints,
			"TRANSFER", message, &models.Reference{ID: senderID, Type: models.ReferenceTransfer})
		return r.AppendTransaction(inTx)
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("Points transferred ", "sender ", senderID, " receiver ", receiverID, " amount ", amount)
	return outTx, inTx, nil
}

// Balance returns the balance summary including leaderboard rank.
func (s *Service) Balance(userID string) (*models.BalanceSummary, error) {
	account, err := s.repo.GetOrCreateAccount(userID)
	if err != nil {
		return nil, err
	}
	rank, err := s.repo.AccountRank(userID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceSummary{
		UserID:         account.UserID,
		TotalPoints:    account.TotalPoints,
		LifetimeEarned: account.LifetimeEarned,
		LifetimeSpent:  account.LifetimeSpent,
		SeasonPoints:   account.SeasonPoints,
		Rank:           rank,
	}, nil
}

// HasEnough is a read-only precheck. It does not reserve funds: the actual
// spend can still fail with ErrInsufficientBalance under races.
func (s *Service) HasEnough(userID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, models.ErrInvalidAmount
	}
	account, err := s.repo.GetOrCreateAccount(userID)
	if err != nil {
		return false, err
	}
	return account.TotalPoints >= amount, nil
}

// Transactions returns a page of the user's transaction history, newest
// first.
func (s *Service) Transactions(userID string, filter models.TransactionFilter, page models.Page) ([]*models.LedgerTransaction, error) {
	return s.repo.ListTransactions(userID, filter, page)
}

// Leaderboard returns up to limit accounts ordered by total points.
func (s *Service) Leaderboard(limit int) ([]*models.LedgerAccount, error) {
	if limit < 1 {
		limit = 10
	}
	return s.repo.TopAccounts(limit)
}

func (s *Service) newTransaction(userID string, txType models.TransactionType, amount, balanceAfter int64, source, description string, ref *models.Reference) *models.LedgerTransaction {
	tx := &models.LedgerTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Source:       source,
		Description:  description,
		CreatedAt:    time.Now().Unix(),
	}
	if ref != nil {
		tx.ReferenceID = &ref.ID
		tx.ReferenceType = &ref.Type
	}
	return tx
}
