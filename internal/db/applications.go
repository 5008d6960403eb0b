package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Application statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Application is a submitted role application.
type Application struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	GuildID     string    `json:"guild_id"`
	RoleType    string    `json:"role_type"`
	Answers     []string  `json:"answers"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Session is the in-progress DM form state for a user. One open session
// per user at a time.
type Session struct {
	UserID          string    `json:"user_id"`
	GuildID         string    `json:"guild_id"`
	RoleType        string    `json:"role_type"`
	CurrentQuestion int       `json:"current_question"`
	Answers         []string  `json:"answers"`
	CreatedAt       time.Time `json:"created_at"`
	IsCancelled     bool      `json:"is_cancelled"`
	IsCompleted     bool      `json:"is_completed"`
}

// CreateApplication stores a completed application and fills in its ID.
func (db *DB) CreateApplication(app *Application) error {
	answers, err := json.Marshal(app.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	status := app.Status
	if status == "" {
		status = StatusPending
	}

	res, err := db.Exec(`
		INSERT INTO applications (user_id, guild_id, role_type, answers, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, app.UserID, app.GuildID, app.RoleType, string(answers), status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get application id: %w", err)
	}
	app.ID = id
	app.Status = status
	return nil
}

// GetApplication fetches an application by ID.
func (db *DB) GetApplication(id int64) (*Application, error) {
	row := db.QueryRow(`
		SELECT id, user_id, guild_id, role_type, answers, status, submitted_at
		FROM applications WHERE id = ?
	`, id)
	return scanApplication(row)
}

// ListPendingApplications returns the pending applications for a guild,
// oldest first.
func (db *DB) ListPendingApplications(guildID string) ([]Application, error) {
	return db.listApplications(`
		SELECT id, user_id, guild_id, role_type, answers, status, submitted_at
		FROM applications WHERE guild_id = ? AND status = ?
		ORDER BY submitted_at ASC
	`, guildID, StatusPending)
}

// ListStalePendingApplications returns pending applications submitted
// before the cutoff, across all guilds, oldest first.
func (db *DB) ListStalePendingApplications(cutoff time.Time) ([]Application, error) {
	return db.listApplications(`
		SELECT id, user_id, guild_id, role_type, answers, status, submitted_at
		FROM applications WHERE status = ? AND submitted_at < ?
		ORDER BY submitted_at ASC
	`, StatusPending, cutoff.UTC())
}

func (db *DB) listApplications(query string, args ...interface{}) ([]Application, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var app Application
	var answers string
	err := row.Scan(&app.ID, &app.UserID, &app.GuildID, &app.RoleType, &answers, &app.Status, &app.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}
	if err := json.Unmarshal([]byte(answers), &app.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	return &app, nil
}

// SetApplicationStatus updates the status of an application.
func (db *DB) SetApplicationStatus(id int64, status string) error {
	res, err := db.Exec(`UPDATE applications SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
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

// StartSession opens a new form session for a user. Returns
// ErrSessionActive if the user already has an open session.
func (db *DB) StartSession(userID, guildID, roleType string) error {
	if _, err := db.GetSession(userID); err == nil {
		return ErrSessionActive
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	// A previous finished session for this user may still exist; replace it.
	_, err := db.Exec(`
		INSERT OR REPLACE INTO application_sessions
			(user_id, guild_id, role_type, current_question, answers, created_at, is_cancelled, is_completed)
		VALUES (?, ?, ?, 0, '[]', ?, 0, 0)
	`, userID, guildID, roleType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// GetSession returns the user's open session, or ErrNotFound.
func (db *DB) GetSession(userID string) (*Session, error) {
	row := db.QueryRow(`
		SELECT user_id, guild_id, role_type, current_question, answers, created_at, is_cancelled, is_completed
		FROM application_sessions
		WHERE user_id = ? AND is_cancelled = 0 AND is_completed = 0
	`, userID)

	var s Session
	var answers string
	err := row.Scan(&s.UserID, &s.GuildID, &s.RoleType, &s.CurrentQuestion, &answers, &s.CreatedAt, &s.IsCancelled, &s.IsCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(answers), &s.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session answers: %w", err)
	}
	return &s, nil
}

// SaveAnswer appends an answer to the user's open session and advances the
// question index.
func (db *DB) SaveAnswer(userID, answer string) (*Session, error) {
	s, err := db.GetSession(userID)
	if err != nil {
		return nil, err
	}

	s.Answers = append(s.Answers, answer)
	s.CurrentQuestion++

	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session answers: %w", err)
	}

	_, err = db.Exec(`
		UPDATE application_sessions SET current_question = ?, answers = ?
		WHERE user_id = ?
	`, s.CurrentQuestion, string(answers), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}
	return s, nil
}

// CompleteSession marks the user's open session completed.
func (db *DB) CompleteSession(userID string) error {
	return db.finishSession(userID, "is_completed")
}

// CancelSession marks the user's open session cancelled.
func (db *DB) CancelSession(userID string) error {
	return db.finishSession(userID, "is_cancelled")
}

func (db *DB) finishSession(userID, column string) error {
	// column is one of two fixed literals; not user input.
	res, err := db.Exec(`
		UPDATE application_sessions SET `+column+` = 1
		WHERE user_id = ? AND is_cancelled = 0 AND is_completed = 0
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
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

// RecordAttempt records an application attempt for rate limiting.
func (db *DB) RecordAttempt(userID string, at time.Time) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO application_rate_limit (user_id, attempt_time)
		VALUES (?, ?)
	`, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// TryRecordAttempt records an application attempt unless the user already
// has limit attempts since the cutoff. Check and insert run as a single
// statement, so concurrent callers cannot push the count past the limit.
// Returns false when the attempt was rejected.
func (db *DB) TryRecordAttempt(userID string, at, since time.Time, limit int) (bool, error) {
	res, err := db.Exec(`
		INSERT OR IGNORE INTO application_rate_limit (user_id, attempt_time)
		SELECT ?, ?
		WHERE (SELECT COUNT(*) FROM application_rate_limit
		       WHERE user_id = ? AND attempt_time >= ?) < ?
	`, userID, at.UTC(), userID, since.UTC(), limit)
	if err != nil {
		return false, fmt.Errorf("failed to record attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountAttemptsSince counts a user's application attempts since a time.
func (db *DB) CountAttemptsSince(userID string, since time.Time) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM application_rate_limit
		WHERE user_id = ? AND attempt_time >= ?
	`, userID, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// PruneAttempts deletes rate-limit rows older than the cutoff.
func (db *DB) PruneAttempts(before time.Time) error {
	_, err := db.Exec(`DELETE FROM application_rate_limit WHERE attempt_time < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("failed to prune attempts: %w", err)
	}
	return nil
}
