// Package dbtest opens throwaway catalog databases for tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/yourorg/calibr8/internal/db"
)

// SQLite returns a migrated in-memory catalog private to tb.
func SQLite(tb testing.TB) *db.Database {
	tb.Helper()
	d, err := db.NewSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = d.Close() })
	return d
}

// Postgres connects to DB_TEST_DSN and skips the test when it is unset.
func Postgres(tb testing.TB) (*db.Database, *db.Pool) {
	tb.Helper()
	dsn := os.Getenv("DB_TEST_DSN")
	if dsn == "" {
		tb.Skip("set DB_TEST_DSN to run postgres integration tests")
	}
	cfg := db.Config{DSN: dsn}
	d, err := db.NewDatabase(cfg)
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}
	p, err := db.Connect(context.Background(), cfg)
	if err != nil {
		_ = d.Close()
		tb.Fatalf("connect pool: %v", err)
	}
	tb.Cleanup(func() {
		p.Close()
		_ = d.Close()
	})
	return d, p
}
