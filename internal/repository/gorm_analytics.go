package repository

import (
	"context"
	"fmt"
	"time"

	"pdf-tools-bot/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// BotUser is a row of the users table.
type BotUser struct {
	UserID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Username        string `gorm:"size:255"`
	FirstSeen       time.Time
	LastSeen        time.Time
	TotalOperations int64 `gorm:"not null;default:0"`
}

// TableName overrides the default pluralized name.
func (BotUser) TableName() string { return "users" }

// OperationRecord is a row of the operations table.
type OperationRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	UserID         int64  `gorm:"index"`
	ConversationID string `gorm:"size:64"`
	OperationType  string `gorm:"size:32;index"`
	Outcome        string `gorm:"size:16"`
	ErrorType      string `gorm:"size:32"`
	DurationMs     int64
	CreatedAt      time.Time `gorm:"index"`
}

// TableName overrides the default pluralized name.
func (OperationRecord) TableName() string { return "operations" }

// GormAnalyticsRepository stores analytics in Postgres.
type GormAnalyticsRepository struct {
	db     *gorm.DB
	logger domain.Logger
}

var _ domain.AnalyticsRepository = (*GormAnalyticsRepository)(nil)

// OpenPostgres connects and migrates the analytics tables.
func OpenPostgres(dsn string, logger domain.Logger) (*GormAnalyticsRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect analytics database: %w", err)
	}
	return NewGormAnalyticsRepository(db, logger)
}

// NewGormAnalyticsRepository migrates the schema on db.
func NewGormAnalyticsRepository(db *gorm.DB, logger domain.Logger) (*GormAnalyticsRepository, error) {
	if err := db.AutoMigrate(&BotUser{}, &OperationRecord{}); err != nil {
		return nil, fmt.Errorf("migrate analytics tables: %w", err)
	}
	logger.Info("Analytics database ready")
	return &GormAnalyticsRepository{db: db, logger: logger}, nil
}

// Track upserts the user and appends operation rows in one transaction.
func (r *GormAnalyticsRepository) Track(ctx context.Context, event domain.OperationEvent) error {
	counted := countsAsOperation(event)
	increment := int64(0)
	if counted {
		increment = 1
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := BotUser{
			UserID:          event.UserID,
			Username:        event.Username,
			FirstSeen:       event.OccurredAt,
			LastSeen:        event.OccurredAt,
			TotalOperations: increment,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"username":         event.Username,
				"last_seen":        event.OccurredAt,
				"total_operations": gorm.Expr("users.total_operations + ?", increment),
			}),
		}).Create(&user).Error
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		if !counted {
			return nil
		}
		return tx.Create(toOperationRecord(event)).Error
	})
}

// Statistics aggregates the stored rows.
func (r *GormAnalyticsRepository) Statistics(ctx context.Context) (*domain.Statistics, error) {
	db := r.db.WithContext(ctx)
	stats := &domain.Statistics{ByCommand: make(map[domain.Command]int64)}

	if err := db.Model(&BotUser{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&OperationRecord{}).Count(&stats.TotalOperations).Error; err != nil {
		return nil, fmt.Errorf("count operations: %w", err)
	}

	var rows []struct {
		OperationType string
		Count         int64
	}
	err := db.Model(&OperationRecord{}).
		Select("operation_type, count(*) as count").
		Group("operation_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("group operations: %w", err)
	}
	for _, row := range rows {
		stats.ByCommand[domain.Command(row.OperationType)] = row.Count
	}
	return stats, nil
}

func toOperationRecord(event domain.OperationEvent) *OperationRecord {
	return &OperationRecord{
		ID:             event.ID,
		UserID:         event.UserID,
		ConversationID: string(event.ConversationID),
		OperationType:  string(event.Command),
		Outcome:        string(event.Outcome),
		ErrorType:      event.ErrorType,
		DurationMs:     event.DurationMs,
		CreatedAt:      event.OccurredAt,
	}
}

// Close releases the connection pool.
func (r *GormAnalyticsRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
