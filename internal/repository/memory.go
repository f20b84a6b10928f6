package repository

import (
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/geomark-app/geomark/internal/models"
)

// MemoryDB is an in-memory Repository used by tests and by chain-less
// local development. It mirrors the PostgresDB behavior, including
// gorm.ErrDuplicatedKey on unique-constraint violations, so components can
// be exercised against either store.
type MemoryDB struct {
	mu sync.Mutex

	users        map[string]models.User
	locations    map[string]models.Location
	records      map[string]models.CollectionRecord // by record id
	recordByPair map[pairKey]string                 // (user, location) -> record id
	accounts     map[string]models.LedgerAccount
	transactions []models.LedgerTransaction
	earnRefs     map[refKey]bool
	achievements map[string]models.Achievement
	progress     map[pairKey]models.AchievementProgress // (user, achievement)
	progressSeq  int64
}

type pairKey struct{ a, b string }
type refKey struct{ id, typ string }

// NewMemoryDB creates an empty in-memory repository.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:        make(map[string]models.User),
		locations:    make(map[string]models.Location),
		records:      make(map[string]models.CollectionRecord),
		recordByPair: make(map[pairKey]string),
		accounts:     make(map[string]models.LedgerAccount),
		earnRefs:     make(map[refKey]bool),
		achievements: make(map[string]models.Achievement),
		progress:     make(map[pairKey]models.AchievementProgress),
	}
}

// memoryView is the transaction-scoped form of MemoryDB: it shares the
// parent's state but skips locking, because Atomically already holds the
// store lock for the whole unit of work. All units of work therefore
// serialize, which trivially satisfies per-user linearizability.
type memoryView struct{ db *MemoryDB }

func (db *MemoryDB) Atomically(fn func(r models.Repository) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snap := db.snapshot()
	if err := fn(&memoryView{db: db}); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	users        map[string]models.User
	locations    map[string]models.Location
	records      map[string]models.CollectionRecord
	recordByPair map[pairKey]string
	accounts     map[string]models.LedgerAccount
	transactions []models.LedgerTransaction
	earnRefs     map[refKey]bool
	achievements map[string]models.Achievement
	progress     map[pairKey]models.AchievementProgress
	progressSeq  int64
}

func (db *MemoryDB) snapshot() memorySnapshot {
	return memorySnapshot{
		users:        copyMap(db.users),
		locations:    copyMap(db.locations),
		records:      copyMap(db.records),
		recordByPair: copyMap(db.recordByPair),
		accounts:     copyMap(db.accounts),
		transactions: append([]models.LedgerTransaction(nil), db.transactions...),
		earnRefs:     copyMap(db.earnRefs),
		achievements: copyMap(db.achievements),
		progress:     copyMap(db.progress),
		progressSeq:  db.progressSeq,
	}
}

func (db *MemoryDB) restore(s memorySnapshot) {
	db.users = s.users
	db.locations = s.locations
	db.records = s.records
	db.recordByPair = s.recordByPair
	db.accounts = s.accounts
	db.transactions = s.transactions
	db.earnRefs = s.earnRefs
	db.achievements = s.achievements
	db.progress = s.progress
	db.progressSeq = s.progressSeq
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *MemoryDB) Close() error { return nil }

func (db *MemoryDB) GetUser(userID string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getUser(userID)
}

func (db *MemoryDB) getUser(userID string) (*models.User, error) {
	u, ok := db.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (db *MemoryDB) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.createUser(user)
}

func (db *MemoryDB) createUser(user *models.User) error {
	if _, exists := db.users[user.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	db.users[user.ID] = *user
	return nil
}

func (db *MemoryDB) IncrementUserCollectionCount(userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.incrementUserCollectionCount(userID)
}

func (db *MemoryDB) incrementUserCollectionCount(userID string) error {
	u, ok := db.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.CollectionCount++
	db.users[userID] = u
	return nil
}

func (db *MemoryDB) GetLocation(locationID string) (*models.Location, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getLocation(locationID)
}

func (db *MemoryDB) getLocation(locationID string) (*models.Location, error) {
	l, ok := db.locations[locationID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (db *MemoryDB) CreateLocation(location *models.Location) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.createLocation(location)
}

func (db *MemoryDB) createLocation(location *models.Location) error {
	if _, exists := db.locations[location.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	db.locations[location.ID] = *location
	return nil
}

func (db *MemoryDB) GetCollectionRecord(userID, locationID string) (*models.CollectionRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getCollectionRecord(userID, locationID)
}

func (db *MemoryDB) getCollectionRecord(userID, locationID string) (*models.CollectionRecord, error) {
	id, ok := db.recordByPair[pairKey{userID, locationID}]
	if !ok {
		return nil, nil
	}
	r := db.records[id]
	return &r, nil
}

func (db *MemoryDB) GetCollectionRecordByID(recordID string) (*models.CollectionRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getCollectionRecordByID(recordID)
}

func (db *MemoryDB) getCollectionRecordByID(recordID string) (*models.CollectionRecord, error) {
	r, ok := db.records[recordID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (db *MemoryDB) CreateCollectionRecord(record *models.CollectionRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.createCollectionRecord(record)
}

func (db *MemoryDB) createCollectionRecord(record *models.CollectionRecord) error {
	key := pairKey{record.UserID, record.LocationID}
	if _, exists := db.recordByPair[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	if _, exists := db.records[record.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	db.records[record.ID] = *record
	db.recordByPair[key] = record.ID
	return nil
}

func (db *MemoryDB) CountCollections(userID string, filter models.CollectionFilter) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.countCollections(userID, filter)
}

func (db *MemoryDB) countCollections(userID string, filter models.CollectionFilter) (int64, error) {
	var count int64
	for _, r := range db.records {
		if r.UserID != userID {
			continue
		}
		loc := db.locations[r.LocationID]
		if filter.Rarity != "" && loc.Rarity != filter.Rarity {
			continue
		}
		if filter.Category != "" && loc.Category != filter.Category {
			continue
		}
		if filter.Region != "" && loc.Region != filter.Region {
			continue
		}
		count++
	}
	return count, nil
}

func (db *MemoryDB) ListCollectionsByMintStatus(status models.MintStatus, limit int) ([]*models.CollectionRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.listCollectionsByMintStatus(status, limit)
}

func (db *MemoryDB) listCollectionsByMintStatus(status models.MintStatus, limit int) ([]*models.CollectionRecord, error) {
	var out []*models.CollectionRecord
	for _, r := range db.records {
		if r.MintStatus == status {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedAt < out[j].CollectedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (db *MemoryDB) ListStuckConfirming(olderThan int64, limit int) ([]*models.CollectionRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.listStuckConfirming(olderThan, limit)
}

func (db *MemoryDB) listStuckConfirming(olderThan int64, limit int) ([]*models.CollectionRecord, error) {
	var out []*models.CollectionRecord
	for _, r := range db.records {
		if r.MintStatus == models.MintStatusConfirming && r.MintUpdatedAt < olderThan {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MintUpdatedAt < out[j].MintUpdatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (db *MemoryDB) UpdateMintState(recordID string, status models.MintStatus, tokenID, txHash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.updateMintState(recordID, status, tokenID, txHash)
}

func (db *MemoryDB) updateMintState(recordID string, status models.MintStatus, tokenID, txHash string) error {
	r, ok := db.records[recordID]
	if !ok {
		return models.ErrRecordNotFound
	}
	r.MintStatus = status
	r.MintUpdatedAt = time.Now().Unix()
	if tokenID != "" {
		r.TokenID = tokenID
	}
	if txHash != "" {
		r.TxHash = txHash
	}
	db.records[recordID] = r
	return nil
}

func (db *MemoryDB) GetOrCreateAccount(userID string) (*models.LedgerAccount, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getOrCreateAccount(userID)
}

func (db *MemoryDB) getOrCreateAccount(userID string) (*models.LedgerAccount, error) {
	if a, ok := db.accounts[userID]; ok {
		return &a, nil
	}
	a := models.LedgerAccount{UserID: userID, UpdatedAt: time.Now().Unix()}
	db.accounts[userID] = a
	return &a, nil
}

func (db *MemoryDB) SaveAccount(account *models.LedgerAccount) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.saveAccount(account)
}

func (db *MemoryDB) saveAccount(account *models.LedgerAccount) error {
	account.UpdatedAt = time.Now().Unix()
	db.accounts[account.UserID] = *account
	return nil
}

func (db *MemoryDB) AppendTransaction(tx *models.LedgerTransaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.appendTransaction(tx)
}

func (db *MemoryDB) appendTransaction(tx *models.LedgerTransaction) error {
	if tx.Type == models.TransactionEarn && tx.ReferenceID != nil && tx.ReferenceType != nil {
		key := refKey{*tx.ReferenceID, *tx.ReferenceType}
		if db.earnRefs[key] {
			return gorm.ErrDuplicatedKey
		}
		db.earnRefs[key] = true
	}
	db.transactions = append(db.transactions, *tx)
	return nil
}

func (db *MemoryDB) HasEarnWithReference(referenceID, referenceType string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.hasEarnWithReference(referenceID, referenceType)
}

func (db *MemoryDB) hasEarnWithReference(referenceID, referenceType string) (bool, error) {
	return db.earnRefs[refKey{referenceID, referenceType}], nil
}

func (db *MemoryDB) ListTransactions(userID string, filter models.TransactionFilter, page models.Page) ([]*models.LedgerTransaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.listTransactions(userID, filter, page)
}

func (db *MemoryDB) listTransactions(userID string, filter models.TransactionFilter, page models.Page) ([]*models.LedgerTransaction, error) {
	var out []*models.LedgerTransaction
	for i := range db.transactions {
		tx := db.transactions[i]
		if tx.UserID != userID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		out = append(out, &tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	offset := page.Offset()
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit := page.Limit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (db *MemoryDB) TopAccounts(limit int) ([]*models.LedgerAccount, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.topAccounts(limit)
}

func (db *MemoryDB) topAccounts(limit int) ([]*models.LedgerAccount, error) {
	var out []*models.LedgerAccount
	for _, a := range db.accounts {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (db *MemoryDB) AccountRank(userID string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.accountRank(userID)
}

func (db *MemoryDB) accountRank(userID string) (int64, error) {
	account, err := db.getOrCreateAccount(userID)
	if err != nil {
		return 0, err
	}
	var ahead int64
	for _, a := range db.accounts {
		if a.TotalPoints > account.TotalPoints {
			ahead++
		}
	}
	return ahead + 1, nil
}

func (db *MemoryDB) ListActiveAchievements(category string) ([]*models.Achievement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.listActiveAchievements(category)
}

func (db *MemoryDB) listActiveAchievements(category string) ([]*models.Achievement, error) {
	var out []*models.Achievement
	for _, a := range db.achievements {
		if !a.Active || a.Category != category {
			continue
		}
		a := a
		if err := a.DecodeCondition(); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (db *MemoryDB) CreateAchievement(achievement *models.Achievement) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.createAchievement(achievement)
}

func (db *MemoryDB) createAchievement(achievement *models.Achievement) error {
	if _, exists := db.achievements[achievement.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	db.achievements[achievement.ID] = *achievement
	return nil
}

func (db *MemoryDB) GetProgress(userID, achievementID string) (*models.AchievementProgress, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getProgress(userID, achievementID)
}

func (db *MemoryDB) getProgress(userID, achievementID string) (*models.AchievementProgress, error) {
	p, ok := db.progress[pairKey{userID, achievementID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (db *MemoryDB) SaveProgress(progress *models.AchievementProgress) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.saveProgress(progress)
}

func (db *MemoryDB) saveProgress(progress *models.AchievementProgress) error {
	if progress.ID == 0 {
		db.progressSeq++
		progress.ID = db.progressSeq
	}
	db.progress[pairKey{progress.UserID, progress.AchievementID}] = *progress
	return nil
}

// memoryView delegates to the unlocked helpers; the store lock is held by
// Atomically for the lifetime of the view.

func (v *memoryView) Atomically(fn func(r models.Repository) error) error { return fn(v) }
func (v *memoryView) Close() error                                        { return nil }

func (v *memoryView) GetUser(userID string) (*models.User, error) { return v.db.getUser(userID) }
func (v *memoryView) CreateUser(user *models.User) error          { return v.db.createUser(user) }
func (v *memoryView) IncrementUserCollectionCount(userID string) error {
	return v.db.incrementUserCollectionCount(userID)
}

func (v *memoryView) GetLocation(locationID string) (*models.Location, error) {
	return v.db.getLocation(locationID)
}
func (v *memoryView) CreateLocation(location *models.Location) error {
	return v.db.createLocation(location)
}

func (v *memoryView) GetCollectionRecord(userID, locationID string) (*models.CollectionRecord, error) {
	return v.db.getCollectionRecord(userID, locationID)
}
func (v *memoryView) GetCollectionRecordByID(recordID string) (*models.CollectionRecord, error) {
	return v.db.getCollectionRecordByID(recordID)
}
func (v *memoryView) CreateCollectionRecord(record *models.CollectionRecord) error {
	return v.db.createCollectionRecord(record)
}
func (v *memoryView) CountCollections(userID string, filter models.CollectionFilter) (int64, error) {
	return v.db.countCollections(userID, filter)
}
func (v *memoryView) ListCollectionsByMintStatus(status models.MintStatus, limit int) ([]*models.CollectionRecord, error) {
	return v.db.listCollectionsByMintStatus(status, limit)
}
func (v *memoryView) ListStuckConfirming(olderThan int64, limit int) ([]*models.CollectionRecord, error) {
	return v.db.listStuckConfirming(olderThan, limit)
}
func (v *memoryView) UpdateMintState(recordID string, status models.MintStatus, tokenID, txHash string) error {
	return v.db.updateMintState(recordID, status, tokenID, txHash)
}

func (v *memoryView) GetOrCreateAccount(userID string) (*models.LedgerAccount, error) {
	return v.db.getOrCreateAccount(userID)
}
func (v *memoryView) SaveAccount(account *models.LedgerAccount) error {
	return v.db.saveAccount(account)
}
func (v *memoryView) AppendTransaction(tx *models.LedgerTransaction) error {
	return v.db.appendTransaction(tx)
}
func (v *memoryView) HasEarnWithReference(referenceID, referenceType string) (bool, error) {
	return v.db.hasEarnWithReference(referenceID, referenceType)
}
func (v *memoryView) ListTransactions(userID string, filter models.TransactionFilter, page models.Page) ([]*models.LedgerTransaction, error) {
	return v.db.listTransactions(userID, filter, page)
}
func (v *memoryView) TopAccounts(limit int) ([]*models.LedgerAccount, error) {
	return v.db.topAccounts(limit)
}
func (v *memoryView) AccountRank(userID string) (int64, error) { return v.db.accountRank(userID) }

func (v *memoryView) ListActiveAchievements(category string) ([]*models.Achievement, error) {
	return v.db.listActiveAchievements(category)
}
func (v *memoryView) CreateAchievement(achievement *models.Achievement) error {
	return v.db.createAchievement(achievement)
}
func (v *memoryView) GetProgress(userID, achievementID string) (*models.AchievementProgress, error) {
	return v.db.getProgress(userID, achievementID)
}
func (v *memoryView) SaveProgress(progress *models.AchievementProgress) error {
	return v.db.saveProgress(progress)
}
