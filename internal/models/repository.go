package models

// CollectionFilter narrows a collection count to one dimension of the
// location catalog. Zero value counts everything.
type CollectionFilter struct {
	Rarity   string
	Category string
	Region   string
}

// Repository is the durable store behind the collection, ledger,
// achievement and mint pipelines.
type Repository interface {
	// Atomically runs fn against a transaction-scoped repository. All
	// writes made through the scoped repository commit together or roll
	// back together. This is the unit of work the collection orchestrator
	// wraps record creation, ledger credit and achievement evaluation in.
	Atomically(fn func(r Repository) error) error

	// Users
	GetUser(userID string) (*User, error)
	CreateUser(user *User) error
	IncrementUserCollectionCount(userID string) error

	// Locations
	GetLocation(locationID string) (*Location, error)
	CreateLocation(location *Location) error

	// Collection records
	GetCollectionRecord(userID, locationID string) (*CollectionRecord, error)
	GetCollectionRecordByID(recordID string) (*CollectionRecord, error)
	CreateCollectionRecord(record *CollectionRecord) error
	CountCollections(userID string, filter CollectionFilter) (int64, error)
	// ListCollectionsByMintStatus returns up to limit records in the given
	// mint state, oldest first.
	ListCollectionsByMintStatus(status MintStatus, limit int) ([]*CollectionRecord, error)
	// ListStuckConfirming returns CONFIRMING records whose last mint state
	// change is older than the given Unix timestamp.
	ListStuckConfirming(olderThan int64, limit int) ([]*CollectionRecord, error)
	// UpdateMintState transitions the mint fields of a record. Only the
	// mint coordinator calls this; the rest of the record is immutable.
	UpdateMintState(recordID string, status MintStatus, tokenID, txHash string) error

	// Ledger
	// GetOrCreateAccount loads the account for the user, creating it with
	// zero balances on first touch. Inside Atomically the row is locked
	// for update so per-user mutations serialize.
	GetOrCreateAccount(userID string) (*LedgerAccount, error)
	SaveAccount(account *LedgerAccount) error
	AppendTransaction(tx *LedgerTransaction) error
	// HasEarnWithReference reports whether an EARN transaction already
	// exists for the (referenceID, referenceType) pair.
	HasEarnWithReference(referenceID, referenceType string) (bool, error)
	ListTransactions(userID string, filter TransactionFilter, page Page) ([]*LedgerTransaction, error)
	// TopAccounts returns up to limit accounts ordered by total points.
	TopAccounts(limit int) ([]*LedgerAccount, error)
	// AccountRank returns the 1-based leaderboard rank of the user.
	AccountRank(userID string) (int64, error)

	// Achievements
	// ListActiveAchievements returns active achievements of the category
	// with their conditions decoded.
	ListActiveAchievements(category string) ([]*Achievement, error)
	CreateAchievement(achievement *Achievement) error
	GetProgress(userID, achievementID string) (*AchievementProgress, error)
	SaveProgress(progress *AchievementProgress) error

	Close() error
}
