package db

import (
	"path/filepath"
	"testing"

	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

func TestMigrateUpDown(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.ResetLogger)

	database, err := OpenDB(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer database.Close()

	fsys := MigrationsFS()

	version, dirty, err := database.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("fresh database version = %d dirty = %v", version, dirty)
	}

	if err := database.MigrateUp(fsys); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	version, dirty, err = database.MigrateVersion(fsys)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version == 0 || dirty {
		t.Errorf("after up: version = %d dirty = %v", version, dirty)
	}

	// Up again is a no-op.
	if err := database.MigrateUp(fsys); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}

	// The schema actually exists.
	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM applications").Scan(&count); err != nil {
		t.Fatalf("applications table missing after migration: %v", err)
	}

	if err := database.MigrateDown(fsys); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if err := database.QueryRow("SELECT COUNT(*) FROM applications").Scan(&count); err == nil {
		t.Error("applications table still present after rollback")
	}
}

func TestBaselineAtVersion(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.ResetLogger)

	database, err := OpenDB(filepath.Join(t.TempDir(), "baseline.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer database.Close()

	if err := database.BaselineAtVersion(1); err != nil {
		t.Fatalf("BaselineAtVersion failed: %v", err)
	}

	version, dirty, err := database.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1/false", version, dirty)
	}

	// Baselining twice is refused.
	if err := database.BaselineAtVersion(1); err == nil {
		t.Error("expected error on second baseline")
	}
}
