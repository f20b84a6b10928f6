package models

// TransactionType is the kind of a ledger transaction.
type TransactionType string

const (
	TransactionEarn        TransactionType = "EARN"
	TransactionSpend       TransactionType = "SPEND"
	TransactionTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTransferOut TransactionType = "TRANSFER_OUT"
)

// Reference links a ledger transaction to the domain event that produced
// it. For EARN transactions the (ID, Type) pair is unique, which is the
// idempotency guarantee preventing duplicate rewards.
type Reference struct {
	ID   string
	Type string
}

// Reference types used by the collection and achievement pipelines.
const (
	ReferenceNFTCollection = "NFT_COLLECTION"
	ReferenceAchievement   = "ACHIEVEMENT"
	ReferenceTransfer      = "TRANSFER"
)

// LedgerAccount is the materialized per-user point balance. Exactly one
// account exists per user, created lazily on first touch.
type LedgerAccount struct {
	// UserID is the owner of the account.
	UserID string `json:"user_id" gorm:"column:user_id;primaryKey"`
	// TotalPoints is the current spendable balance. Never negative.
	TotalPoints int64 `json:"total_points" gorm:"column:total_points;not null;default:0;index"`
	// LifetimeEarned is the sum of all credits. Monotonic non-decreasing.
	LifetimeEarned int64 `json:"lifetime_earned" gorm:"column:lifetime_earned;not null;default:0"`
	// LifetimeSpent is the sum of all debits. Monotonic non-decreasing.
	LifetimeSpent int64 `json:"lifetime_spent" gorm:"column:lifetime_spent;not null;default:0"`
	// SeasonPoints is the balance earned in the current season.
	SeasonPoints int64 `json:"season_points" gorm:"column:season_points;not null;default:0"`
	// UpdatedAt is the Unix timestamp of the last mutation.
	UpdatedAt int64 `json:"updated_at" gorm:"column:updated_at"`
}

// LedgerTransaction is one row of the append-only transaction log.
type LedgerTransaction struct {
	// ID is the unique identifier of the transaction.
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// UserID is the account the transaction applies to.
	UserID string `json:"user_id" gorm:"column:user_id;index;not null"`
	// Type is the transaction kind.
	Type TransactionType `json:"type" gorm:"column:type;not null"`
	// Amount is the number of points moved. Always positive.
	Amount int64 `json:"amount" gorm:"column:amount;not null"`
	// BalanceAfter is the account balance after applying this transaction.
	BalanceAfter int64 `json:"balance_after" gorm:"column:balance_after;not null"`
	// Source tags the subsystem that produced the transaction.
	Source string `json:"source" gorm:"column:source"`
	// Description is a human-readable note.
	Description string `json:"description" gorm:"column:description"`
	// ReferenceID and ReferenceType link the transaction to the domain
	// event that produced it. The pair is unique among EARN transactions
	// (enforced with a partial unique index), which prevents the same event
	// from being credited twice.
	ReferenceID   *string `json:"reference_id,omitempty" gorm:"column:reference_id;uniqueIndex:ux_earn_reference,priority:1,where:type = 'EARN'"`
	ReferenceType *string `json:"reference_type,omitempty" gorm:"column:reference_type;uniqueIndex:ux_earn_reference,priority:2,where:type = 'EARN'"`
	// CreatedAt is the Unix timestamp the transaction was appended.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;index"`
}

// BalanceSummary is the read model returned by balance queries.
type BalanceSummary struct {
	UserID         string `json:"user_id"`
	TotalPoints    int64  `json:"total_points"`
	LifetimeEarned int64  `json:"lifetime_earned"`
	LifetimeSpent  int64  `json:"lifetime_spent"`
	SeasonPoints   int64  `json:"season_points"`
	// Rank is the 1-based position on the total-points leaderboard.
	Rank int64 `json:"rank"`
}

// TransactionFilter narrows a transaction history query.
type TransactionFilter struct {
	// Type filters by transaction kind. Empty means all kinds.
	Type TransactionType
}

// Page is a 1-based pagination request.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset for the page, tolerating zero values.
func (p Page) Offset() int {
	n := p.Number
	if n < 1 {
		n = 1
	}
	return (n - 1) * p.Limit()
}

// Limit returns the page size, defaulting to 20 and capping at 100.
func (p Page) Limit() int {
	if p.Size < 1 {
		return 20
	}
	if p.Size > 100 {
		return 100
	}
	return p.Size
}
