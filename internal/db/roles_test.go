package db

import (
	"errors"
	"testing"
)

func TestApprovedRoles(t *testing.T) {
	database := setupTestDB(t)

	has, err := database.HasApprovedRole("u1", "advertiser")
	if err != nil {
		t.Fatalf("HasApprovedRole failed: %v", err)
	}
	if has {
		t.Error("expected no approval initially")
	}

	if err := database.ApproveRole("u1", "advertiser"); err != nil {
		t.Fatalf("ApproveRole failed: %v", err)
	}
	has, err = database.HasApprovedRole("u1", "advertiser")
	if err != nil {
		t.Fatalf("HasApprovedRole failed: %v", err)
	}
	if !has {
		t.Error("expected approval after ApproveRole")
	}

	// Re-approving is idempotent.
	if err := database.ApproveRole("u1", "advertiser"); err != nil {
		t.Fatalf("second ApproveRole failed: %v", err)
	}

	if err := database.RevokeRole("u1", "advertiser"); err != nil {
		t.Fatalf("RevokeRole failed: %v", err)
	}
	if err := database.RevokeRole("u1", "advertiser"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double revoke, got %v", err)
	}
}

func TestRoleMappings(t *testing.T) {
	database := setupTestDB(t)

	if _, err := database.GetRoleMapping("g1", "advertiser"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := database.SetRoleMapping("g1", "advertiser", "role-1"); err != nil {
		t.Fatalf("SetRoleMapping failed: %v", err)
	}
	if err := database.SetRoleMapping("g1", "streamer", "role-2"); err != nil {
		t.Fatalf("SetRoleMapping failed: %v", err)
	}

	roleID, err := database.GetRoleMapping("g1", "advertiser")
	if err != nil {
		t.Fatalf("GetRoleMapping failed: %v", err)
	}
	if roleID != "role-1" {
		t.Errorf("roleID = %q, want role-1", roleID)
	}

	// Remapping replaces the previous binding.
	if err := database.SetRoleMapping("g1", "advertiser", "role-9"); err != nil {
		t.Fatalf("SetRoleMapping failed: %v", err)
	}
	roleID, err = database.GetRoleMapping("g1", "advertiser")
	if err != nil {
		t.Fatalf("GetRoleMapping failed: %v", err)
	}
	if roleID != "role-9" {
		t.Errorf("roleID = %q, want role-9", roleID)
	}

	mappings, err := database.ListRoleMappings("g1")
	if err != nil {
		t.Fatalf("ListRoleMappings failed: %v", err)
	}
	if len(mappings) != 2 {
		t.Errorf("expected 2 mappings, got %d", len(mappings))
	}
}

func TestServerConfig(t *testing.T) {
	database := setupTestDB(t)

	if _, err := database.GetServerConfig("g1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := database.SetApplicationChannel("g1", "chan-1"); err != nil {
		t.Fatalf("SetApplicationChannel failed: %v", err)
	}

	sc, err := database.GetServerConfig("g1")
	if err != nil {
		t.Fatalf("GetServerConfig failed: %v", err)
	}
	if sc.ApplicationChannelID != "chan-1" {
		t.Errorf("ApplicationChannelID = %q, want chan-1", sc.ApplicationChannelID)
	}

	if err := database.SetApplicationChannel("g1", "chan-2"); err != nil {
		t.Fatalf("SetApplicationChannel update failed: %v", err)
	}
	sc, err = database.GetServerConfig("g1")
	if err != nil {
		t.Fatalf("GetServerConfig failed: %v", err)
	}
	if sc.ApplicationChannelID != "chan-2" {
		t.Errorf("ApplicationChannelID = %q, want chan-2", sc.ApplicationChannelID)
	}
}
