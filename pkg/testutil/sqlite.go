package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"greenctf/internal/platform/database"
)

// NewSQLite opens a migrated SQLite database in a temp directory.
func NewSQLite(t testing.TB) *database.Pool {
	t.Helper()

	ctx := context.Background()
	pool, err := database.Open(ctx, database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "greenctf_test.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if _, err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return pool
}
