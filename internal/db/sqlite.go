package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
)

// NewSqliteDB opens a sqlite database at the given path (":memory:"
// works) and runs migrations. Used for local development and tests;
// production runs on postgres.
func NewSqliteDB(log *logger.Logger, path string) (*gorm.DB, error) {
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := AutoMigrateAll(gormDB); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if log != nil {
		log.Info("Opened sqlite db", "path", path)
	}
	return gormDB, nil
}
