// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm/logger"

	"github.com/stream-queue-system/pkg/database"
)

// New opens a private in-memory SQLite database for one test.
func New(t testing.TB) *database.DB {
	t.Helper()

	dsn := "sqlite://file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.NewDB(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
