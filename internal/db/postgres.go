package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
	"github.com/yungbote/adapta-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	host := utils.GetEnv(log, "DB_HOST", "localhost")
	port := utils.GetEnv(log, "DB_PORT", "5432")
	user := utils.GetEnv(log, "DB_USER", "postgres")
	password := utils.GetEnv(log, "DB_PASSWORD", "postgres")
	name := utils.GetEnv(log, "DB_NAME", "adapta")
	sslmode := utils.GetEnv(log, "DB_SSLMODE", "disable")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslmode)

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := gormDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn("Could not ensure uuid-ossp extension", "error", err)
	}

	service := &PostgresService{db: gormDB, log: log}
	if err := service.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("Connected to postgres", "host", host, "db_name", name)
	return service, nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}

// AutoMigrateAll migrates every persistent type. Order matters only
// for foreign keys; parents come first.
func AutoMigrateAll(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Student{},
		&types.Activity{},
		&types.ActivityPage{},
		&types.OcrExtraction{},
		&types.EmbeddingRecord{},
		&types.AdaptationRun{},
	)
}
