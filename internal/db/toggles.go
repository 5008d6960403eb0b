package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetToggle reports whether a feature is enabled for a user. Features are
// on by default; only an explicit opt-out turns one off.
func (db *DB) GetToggle(userID, feature string) (bool, error) {
	var value bool
	err := db.QueryRow(`
		SELECT value FROM user_toggles WHERE user_id = ? AND feature = ?
	`, userID, feature).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get toggle: %w", err)
	}
	return value, nil
}

// SetToggle sets a feature toggle for a user.
func (db *DB) SetToggle(userID, feature string, value bool) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO user_toggles (user_id, feature, value)
		VALUES (?, ?, ?)
	`, userID, feature, value)
	if err != nil {
		return fmt.Errorf("failed to set toggle: %w", err)
	}
	return nil
}

// FlipToggle inverts a feature toggle for a user and returns the new value.
func (db *DB) FlipToggle(userID, feature string) (bool, error) {
	current, err := db.GetToggle(userID, feature)
	if err != nil {
		return false, err
	}
	if err := db.SetToggle(userID, feature, !current); err != nil {
		return false, err
	}
	return !current, nil
}

// ListToggles returns a user's explicitly set toggles.
func (db *DB) ListToggles(userID string) (map[string]bool, error) {
	rows, err := db.Query(`
		SELECT feature, value FROM user_toggles WHERE user_id = ? ORDER BY feature
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query toggles: %w", err)
	}
	defer rows.Close()

	toggles := make(map[string]bool)
	for rows.Next() {
		var feature string
		var value bool
		if err := rows.Scan(&feature, &value); err != nil {
			return nil, fmt.Errorf("failed to scan toggle: %w", err)
		}
		toggles[feature] = value
	}
	return toggles, rows.Err()
}
