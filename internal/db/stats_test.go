package db

import (
	"testing"
	"time"
)

func TestCommandUsage(t *testing.T) {
	database := setupTestDB(t)

	for i := 0; i < 3; i++ {
		if err := database.RecordCommandUse("meme", "u1", "g1"); err != nil {
			t.Fatalf("RecordCommandUse failed: %v", err)
		}
	}
	if err := database.RecordCommandUse("kick", "u2", "g1"); err != nil {
		t.Fatalf("RecordCommandUse failed: %v", err)
	}

	counts, err := database.CommandUsageSince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CommandUsageSince failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(counts))
	}
	if counts[0].Command != "meme" || counts[0].Count != 3 {
		t.Errorf("counts[0] = %+v, want meme/3", counts[0])
	}
	if counts[1].Command != "kick" || counts[1].Count != 1 {
		t.Errorf("counts[1] = %+v, want kick/1", counts[1])
	}

	// A future window sees nothing.
	counts, err = database.CommandUsageSince(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CommandUsageSince failed: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("expected no usage in the future window, got %d", len(counts))
	}
}
