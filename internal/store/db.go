// Package store is the persistence collaborator: typed, per-document
// atomic operations over MySQL. Engines never touch gorm directly.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/coursehub/liveclass/internal/domain"
)

// Open connects to MySQL and migrates the engine's tables.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is not set")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Warn),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB error: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(
		&domain.Room{},
		&domain.Participant{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.Receipt{},
		&domain.Reaction{},
		&domain.Star{},
		&domain.Deletion{},
		&domain.CallRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// retryRead runs fn and retries exactly once on a transient failure.
// A clean miss is not retried. Used only for idempotent reads;
// mutations surface their first error.
func retryRead(fn func() error) error {
	err := fn()
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return fn()
}
