package database

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm/logger"
)

func newTestDB(t testing.TB) *DB {
	t.Helper()

	dsn := "sqlite://file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := NewDB(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
