package db

import "testing"

func TestTogglesDefaultOn(t *testing.T) {
	database := setupTestDB(t)

	on, err := database.GetToggle("u1", "memes")
	if err != nil {
		t.Fatalf("GetToggle failed: %v", err)
	}
	if !on {
		t.Error("expected features on by default")
	}
}

func TestFlipToggle(t *testing.T) {
	database := setupTestDB(t)

	value, err := database.FlipToggle("u1", "memes")
	if err != nil {
		t.Fatalf("FlipToggle failed: %v", err)
	}
	if value {
		t.Error("first flip should turn the feature off")
	}

	value, err = database.FlipToggle("u1", "memes")
	if err != nil {
		t.Fatalf("FlipToggle failed: %v", err)
	}
	if !value {
		t.Error("second flip should turn the feature back on")
	}
}

func TestListToggles(t *testing.T) {
	database := setupTestDB(t)

	if err := database.SetToggle("u1", "memes", false); err != nil {
		t.Fatalf("SetToggle failed: %v", err)
	}
	if err := database.SetToggle("u1", "hooks", true); err != nil {
		t.Fatalf("SetToggle failed: %v", err)
	}

	toggles, err := database.ListToggles("u1")
	if err != nil {
		t.Fatalf("ListToggles failed: %v", err)
	}
	if len(toggles) != 2 {
		t.Fatalf("expected 2 toggles, got %d", len(toggles))
	}
	if toggles["memes"] {
		t.Error("memes should be off")
	}
	if !toggles["hooks"] {
		t.Error("hooks should be on")
	}
}
