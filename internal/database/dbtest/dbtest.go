// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ondrasimku/media-pipeline/internal/database"
	"gorm.io/gorm"
)

// Open returns a migrated sqlite database living in the test's temp dir.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "media.db"),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if err := database.Migrate(db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
