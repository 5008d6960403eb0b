package db

import (
	"fmt"
	"time"
)

// CommandCount is a per-command usage total.
type CommandCount struct {
	Command string `json:"command"`
	Count   int    `json:"count"`
}

// RecordCommandUse logs a command invocation for the usage stats.
func (db *DB) RecordCommandUse(command, userID, guildID string) error {
	_, err := db.Exec(`
		INSERT INTO command_usage (command, user_id, guild_id, used_at)
		VALUES (?, ?, ?, ?)
	`, command, userID, guildID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record command use: %w", err)
	}
	return nil
}

// CommandUsageSince returns per-command invocation counts since a time,
// highest first.
func (db *DB) CommandUsageSince(since time.Time) ([]CommandCount, error) {
	rows, err := db.Query(`
		SELECT command, COUNT(*) AS uses FROM command_usage
		WHERE used_at >= ?
		GROUP BY command ORDER BY uses DESC, command ASC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query command usage: %w", err)
	}
	defer rows.Close()

	var counts []CommandCount
	for rows.Next() {
		var c CommandCount
		if err := rows.Scan(&c.Command, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan command usage: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
