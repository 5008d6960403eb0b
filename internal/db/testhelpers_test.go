package db

import (
	"path/filepath"
	"testing"

	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

// setupTestDB creates a migrated database in a per-test temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.ResetLogger)

	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return database
}
