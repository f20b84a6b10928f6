package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Location{},
		&models.CollectionRecord{},
		&models.LedgerAccount{},
		&models.LedgerTransaction{},
		&models.Achievement{},
		&models.AchievementProgress{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

// Atomically runs fn against a transaction-scoped repository. Nested calls
// reuse gorm's savepoint support.
func (db *PostgresDB) Atomically(fn func(r models.Repository) error) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresDB{Conn: tx, logger: db.logger})
	})
}

func (db *PostgresDB) GetUser(userID string) (*models.User, error) {
	var user models.User
	if err := db.Conn.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %s", err)
	}
	return &user, nil
}

func (db *PostgresDB) CreateUser(user *models.User) error {
	if err := db.Conn.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDB) IncrementUserCollectionCount(userID string) error {
	if err := db.Conn.Model(&models.User{}).Where("id = ?", userID).
		Update("collection_count", gorm.Expr("collection_count + 1")).Error; err != nil {
		return fmt.Errorf("failed to increment collection count: %s", err)
	}
	return nil
}

func (db *PostgresDB) GetLocation(locationID string) (*models.Location, error) {
	var location models.Location
	if err := db.Conn.Where("id = ?", locationID).First(&location).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get location: %s", err)
	}
	return &location, nil
}

func (db *PostgresDB) CreateLocation(location *models.Location) error {
	if err := db.Conn.Create(location).Error; err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetCollectionRecord(userID, locationID string) (*models.CollectionRecord, error) {
	var record models.CollectionRecord
	if err := db.Conn.Where("user_id = ? AND location_id = ?", userID, locationID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection record: %s", err)
	}
	return &record, nil
}

func (db *PostgresDB) GetCollectionRecordByID(recordID string) (*models.CollectionRecord, error) {
	var record models.CollectionRecord
	if err := db.Conn.Where("id = ?", recordID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection record: %s", err)
	}
	return &record, nil
}

// CreateCollectionRecord inserts a new record. The unique index on
// (user_id, location_id) backs the duplicate-reward gate; violations
// surface as gorm.ErrDuplicatedKey.
func (db *PostgresDB) CreateCollectionRecord(record *models.CollectionRecord) error {
	if err := db.Conn.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to create collection record: %w", err)
	}
	return nil
}

func (db *PostgresDB) CountCollections(userID string, filter models.CollectionFilter) (int64, error) {
	q := db.Conn.Model(&models.CollectionRecord{}).
		Where("collection_records.user_id = ?", userID)
	if filter.Rarity != "" || filter.Category != "" || filter.Region != "" {
		q = q.Joins("JOIN locations ON locations.id = collection_records.location_id")
		if filter.Rarity != "" {
			q = q.Where("locations.rarity = ?", filter.Rarity)
		}
		if filter.Category != "" {
			q = q.Where("locations.category = ?", filter.Category)
		}
		if filter.Region != "" {
			q = q.Where("locations.region = ?", filter.Region)
		}
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count collections: %s", err)
	}
	return count, nil
}

func (db *PostgresDB) ListCollectionsByMintStatus(status models.MintStatus, limit int) ([]*models.CollectionRecord, error) {
	var records []*models.CollectionRecord
	if err := db.Conn.Where("mint_status = ?", status).
		Order("collected_at asc").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list collections by mint status: %s", err)
	}
	return records, nil
}

func (db *PostgresDB) ListStuckConfirming(olderThan int64, limit int) ([]*models.CollectionRecord, error) {
	var records []*models.CollectionRecord
	if err := db.Conn.Where("mint_status = ? AND mint_updated_at < ?", models.MintStatusConfirming, olderThan).
		Order("mint_updated_at asc").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list stuck confirming records: %s", err)
	}
	return records, nil
}

func (db *PostgresDB) UpdateMintState(recordID string, status models.MintStatus, tokenID, txHash string) error {
	updates := map[string]interface{}{
		"mint_status":     status,
		"mint_updated_at": time.Now().Unix(),
	}
	if tokenID != "" {
		updates["token_id"] = tokenID
	}
	if txHash != "" {
		updates["tx_hash"] = txHash
	}
	if err := db.Conn.Model(&models.CollectionRecord{}).Where("id = ?", recordID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update mint state: %s", err)
	}
	return nil
}

// GetOrCreateAccount loads the ledger account for the user, creating it
// lazily. Inside a transaction the row is locked FOR UPDATE, which
// serializes balance mutations per user without blocking other users.
func (db *PostgresDB) GetOrCreateAccount(userID string) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	err := db.Conn.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get ledger account: %s", err)
	}

	account = models.LedgerAccount{UserID: userID, UpdatedAt: time.Now().Unix()}
	if err := db.Conn.Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the creation race; take the lock on the winner's row.
			if err := db.Conn.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ?", userID).First(&account).Error; err != nil {
				return nil, fmt.Errorf("failed to get ledger account: %s", err)
			}
			return &account, nil
		}
		return nil, fmt.Errorf("failed to create ledger account: %s", err)
	}
	return &account, nil
}

func (db *PostgresDB) SaveAccount(account *models.LedgerAccount) error {
	account.UpdatedAt = time.Now().Unix()
	if err := db.Conn.Save(account).Error; err != nil {
		return fmt.Errorf("failed to save ledger account: %s", err)
	}
	return nil
}

// AppendTransaction appends one row to the transaction log. The partial
// unique index on EARN (reference_id, reference_type) surfaces duplicate
// rewards as gorm.ErrDuplicatedKey.
func (db *PostgresDB) AppendTransaction(tx *models.LedgerTransaction) error {
	if err := db.Conn.Create(tx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to append ledger transaction: %w", err)
	}
	return nil
}

func (db *PostgresDB) HasEarnWithReference(referenceID, referenceType string) (bool, error) {
	var count int64
	if err := db.Conn.Model(&models.LedgerTransaction{}).
		Where("type = ? AND reference_id = ? AND reference_type = ?", models.TransactionEarn, referenceID, referenceType).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check earn reference: %s", err)
	}
	return count > 0, nil
}

func (db *PostgresDB) ListTransactions(userID string, filter models.TransactionFilter, page models.Page) ([]*models.LedgerTransaction, error) {
	q := db.Conn.Where("user_id = ?", userID)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	var txs []*models.LedgerTransaction
	if err := q.Order("created_at desc").
		Offset(page.Offset()).Limit(page.Limit()).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %s", err)
	}
	return txs, nil
}

func (db *PostgresDB) TopAccounts(limit int) ([]*models.LedgerAccount, error) {
	var accounts []*models.LedgerAccount
	if err := db.Conn.Order("total_points desc").Limit(limit).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list top accounts: %s", err)
	}
	return accounts, nil
}

func (db *PostgresDB) AccountRank(userID string) (int64, error) {
	account, err := db.GetOrCreateAccount(userID)
	if err != nil {
		return 0, err
	}
	var ahead int64
	if err := db.Conn.Model(&models.LedgerAccount{}).
		Where("total_points > ?", account.TotalPoints).Count(&ahead).Error; err != nil {
		return 0, fmt.Errorf("failed to compute account rank: %s", err)
	}
	return ahead + 1, nil
}

// ListActiveAchievements loads active achievements of a category with
// their conditions decoded. A malformed stored condition is a hard error:
// failing evaluation loudly beats silently skipping a milestone.
func (db *PostgresDB) ListActiveAchievements(category string) ([]*models.Achievement, error) {
	var achievements []*models.Achievement
	if err := db.Conn.Where("category = ? AND active = ?", category, true).
		Find(&achievements).Error; err != nil {
		return nil, fmt.Errorf("failed to list achievements: %s", err)
	}
	for _, a := range achievements {
		if err := a.DecodeCondition(); err != nil {
			return nil, err
		}
	}
	return achievements, nil
}

func (db *PostgresDB) CreateAchievement(achievement *models.Achievement) error {
	if err := db.Conn.Create(achievement).Error; err != nil {
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetProgress(userID, achievementID string) (*models.AchievementProgress, error) {
	var progress models.AchievementProgress
	if err := db.Conn.Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		First(&progress).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get achievement progress: %s", err)
	}
	return &progress, nil
}

func (db *PostgresDB) SaveProgress(progress *models.AchievementProgress) error {
	if err := db.Conn.Save(progress).Error; err != nil {
		return fmt.Errorf("failed to save achievement progress: %s", err)
	}
	return nil
}
