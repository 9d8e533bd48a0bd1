package database

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/ondrasimku/media-pipeline/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string
	DSN    string
}

func Open(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is not set")
	}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s database: %w", cfg.Driver, err)
	}

	if strings.EqualFold(cfg.Driver, DriverSQLite) {
		// sqlite allows a single writer; serialise through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable sqlite foreign keys: %w", err)
		}
	}

	return db, nil
}

// Migrate creates the media table and its indexes.
func Migrate(db *gorm.DB, logger *slog.Logger) error {
	if err := db.AutoMigrate(&domain.MediaRecord{}); err != nil {
		return fmt.Errorf("migrate media: %w", err)
	}

	// AutoMigrate keeps existing tables as they are; make sure lookups by
	// parent and owner stay indexed on databases created before those columns.
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_media_parent_id ON media(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_media_owner ON media(owner_type, owner_id)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Warn("Index creation failed", "statement", stmt, "error", err)
		}
	}
	return nil
}
