package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ApprovedRole records that a user passed the application process for a
// role type.
type ApprovedRole struct {
	UserID     string    `json:"user_id"`
	RoleType   string    `json:"role_type"`
	ApprovedAt time.Time `json:"approved_at"`
}

// RoleMapping binds an application role type to a concrete Discord role in
// a guild.
type RoleMapping struct {
	GuildID  string `json:"guild_id"`
	RoleType string `json:"role_type"`
	RoleID   string `json:"role_id"`
}

// ServerConfig is the per-guild bot configuration.
type ServerConfig struct {
	GuildID              string    `json:"guild_id"`
	ApplicationChannelID string    `json:"application_channel_id"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ApproveRole records an approval for a user and role type.
func (db *DB) ApproveRole(userID, roleType string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO approved_roles (user_id, role_type, approved_at)
		VALUES (?, ?, ?)
	`, userID, roleType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to approve role: %w", err)
	}
	return nil
}

// RevokeRole removes a user's approval for a role type.
func (db *DB) RevokeRole(userID, roleType string) error {
	res, err := db.Exec(`
		DELETE FROM approved_roles WHERE user_id = ? AND role_type = ?
	`, userID, roleType)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasApprovedRole reports whether the user holds an approval for the role
// type.
func (db *DB) HasApprovedRole(userID, roleType string) (bool, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM approved_roles WHERE user_id = ? AND role_type = ?
	`, userID, roleType).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check approved role: %w", err)
	}
	return count > 0, nil
}

// SetRoleMapping creates or replaces a role type to Discord role binding.
func (db *DB) SetRoleMapping(guildID, roleType, roleID string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO role_mappings (guild_id, role_type, role_id)
		VALUES (?, ?, ?)
	`, guildID, roleType, roleID)
	if err != nil {
		return fmt.Errorf("failed to set role mapping: %w", err)
	}
	return nil
}

// GetRoleMapping resolves the Discord role ID for a guild and role type.
func (db *DB) GetRoleMapping(guildID, roleType string) (string, error) {
	var roleID string
	err := db.QueryRow(`
		SELECT role_id FROM role_mappings WHERE guild_id = ? AND role_type = ?
	`, guildID, roleType).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get role mapping: %w", err)
	}
	return roleID, nil
}

// ListRoleMappings returns all role mappings for a guild.
func (db *DB) ListRoleMappings(guildID string) ([]RoleMapping, error) {
	rows, err := db.Query(`
		SELECT guild_id, role_type, role_id FROM role_mappings
		WHERE guild_id = ? ORDER BY role_type
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role mappings: %w", err)
	}
	defer rows.Close()

	var mappings []RoleMapping
	for rows.Next() {
		var m RoleMapping
		if err := rows.Scan(&m.GuildID, &m.RoleType, &m.RoleID); err != nil {
			return nil, fmt.Errorf("failed to scan role mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// SetApplicationChannel sets the channel where submitted applications are
// posted for a guild.
func (db *DB) SetApplicationChannel(guildID, channelID string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO server_configs (guild_id, application_channel_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			application_channel_id = excluded.application_channel_id,
			updated_at = excluded.updated_at
	`, guildID, channelID, now, now)
	if err != nil {
		return fmt.Errorf("failed to set application channel: %w", err)
	}
	return nil
}

// GetServerConfig returns the per-guild configuration.
func (db *DB) GetServerConfig(guildID string) (*ServerConfig, error) {
	row := db.QueryRow(`
		SELECT guild_id, application_channel_id, created_at, updated_at
		FROM server_configs WHERE guild_id = ?
	`, guildID)

	var sc ServerConfig
	var channelID sql.NullString
	err := row.Scan(&sc.GuildID, &channelID, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan server config: %w", err)
	}
	sc.ApplicationChannelID = channelID.String
	return &sc, nil
}
