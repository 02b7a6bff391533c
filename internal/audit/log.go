// Package audit persists a log of inbound API requests through GORM.
//
// The audit log is best-effort: a store that fails to open disables
// auditing but never aborts startup, and a failed insert is logged and
// dropped.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// RequestLog is one audited API request.
type RequestLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"index;not null"`
	Method    string    `gorm:"size:16;not null"`
	Path      string    `gorm:"size:512;not null"`
	ClientIP  string    `gorm:"size:64;index"`
	UserAgent string    `gorm:"size:512"`
	Status    int
	Duration  int64 // microseconds
	CreatedAt time.Time
}

// TableName keeps the historical table name.
func (RequestLog) TableName() string { return "api_requests" }

// Config selects the audit database.
type Config struct {
	Driver string `yaml:"driver"` // sqlite, postgres, mysql
	DSN    string `yaml:"dsn"`    // file path for sqlite, DSN otherwise
}

// Store writes request logs.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "api_requests.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported audit driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := db.AutoMigrate(&RequestLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "audit")),
	}, nil
}

// Record inserts one request log entry. Failures are logged, not returned.
func (s *Store) Record(ctx context.Context, entry *RequestLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Warn("failed to record request", zap.Error(err))
	}
}

// Count returns the number of audited requests.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&RequestLog{}).Count(&count).Error
	return count, err
}

// Recent returns the most recent audited requests, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RequestLog, error) {
	var logs []RequestLog
	err := s.db.WithContext(ctx).
		Order("timestamp desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
