// Package dbtest opens throwaway migrated databases for repository tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"foodplanner/internal/database"
)

// New returns a migrated SQLite database in a temporary directory. It is closed
// when the test finishes.
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "foodplanner.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
