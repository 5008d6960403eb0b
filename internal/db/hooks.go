package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RepoHook links a source repository to a forum post that receives its
// updates.
type RepoHook struct {
	UserID        string `json:"user_id"`
	RepoURL       string `json:"repo_url"`
	ForumPostID   string `json:"forum_post_id"`
	TrackNewRepos bool   `json:"track_new_repos"`
	TrackCommits  bool   `json:"track_commits"`
}

// ChannelHook links a Discord channel to a forum post that receives its
// updates.
type ChannelHook struct {
	UserID      string `json:"user_id"`
	ChannelID   string `json:"discord_channel_id"`
	ForumPostID string `json:"forum_post_id"`
}

// AddRepoHook creates or replaces a repo hook.
func (db *DB) AddRepoHook(h RepoHook) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO repo_hooks (user_id, repo_url, forum_post_id, track_new_repos, track_commits)
		VALUES (?, ?, ?, ?, ?)
	`, h.UserID, h.RepoURL, h.ForumPostID, h.TrackNewRepos, h.TrackCommits)
	if err != nil {
		return fmt.Errorf("failed to add repo hook: %w", err)
	}
	return nil
}

// RemoveRepoHook deletes a user's hook for a repo URL.
func (db *DB) RemoveRepoHook(userID, repoURL string) error {
	res, err := db.Exec(`
		DELETE FROM repo_hooks WHERE user_id = ? AND repo_url = ?
	`, userID, repoURL)
	if err != nil {
		return fmt.Errorf("failed to remove repo hook: %w", err)
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

// ListRepoHooks returns a user's repo hooks.
func (db *DB) ListRepoHooks(userID string) ([]RepoHook, error) {
	return db.listRepoHooks(`
		SELECT user_id, repo_url, forum_post_id, track_new_repos, track_commits
		FROM repo_hooks WHERE user_id = ? ORDER BY repo_url
	`, userID)
}

// ListAllRepoHooks returns every repo hook; used by the repo poller.
func (db *DB) ListAllRepoHooks() ([]RepoHook, error) {
	return db.listRepoHooks(`
		SELECT user_id, repo_url, forum_post_id, track_new_repos, track_commits
		FROM repo_hooks ORDER BY repo_url
	`)
}

func (db *DB) listRepoHooks(query string, args ...interface{}) ([]RepoHook, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query repo hooks: %w", err)
	}
	defer rows.Close()

	var hooks []RepoHook
	for rows.Next() {
		var h RepoHook
		if err := rows.Scan(&h.UserID, &h.RepoURL, &h.ForumPostID, &h.TrackNewRepos, &h.TrackCommits); err != nil {
			return nil, fmt.Errorf("failed to scan repo hook: %w", err)
		}
		hooks = append(hooks, h)
	}
	return hooks, rows.Err()
}

// RepoCursor returns the last seen commit SHA for a repo URL.
func (db *DB) RepoCursor(repoURL string) (string, error) {
	var sha string
	err := db.QueryRow(`SELECT last_sha FROM repo_cursors WHERE repo_url = ?`, repoURL).Scan(&sha)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get repo cursor: %w", err)
	}
	return sha, nil
}

// SetRepoCursor records the last seen commit SHA for a repo URL.
func (db *DB) SetRepoCursor(repoURL, sha string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO repo_cursors (repo_url, last_sha, updated_at)
		VALUES (?, ?, ?)
	`, repoURL, sha, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set repo cursor: %w", err)
	}
	return nil
}

// OwnerCursor returns the newest repository name seen for a GitHub
// owner, or ErrNotFound if the owner has not been polled yet.
func (db *DB) OwnerCursor(owner string) (string, error) {
	var name string
	err := db.QueryRow(`SELECT last_repo FROM owner_cursors WHERE owner = ?`, owner).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get owner cursor: %w", err)
	}
	return name, nil
}

// SetOwnerCursor records the newest repository name seen for an owner.
func (db *DB) SetOwnerCursor(owner, repoName string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO owner_cursors (owner, last_repo, updated_at)
		VALUES (?, ?, ?)
	`, owner, repoName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set owner cursor: %w", err)
	}
	return nil
}

// AddChannelHook creates or replaces a channel hook.
func (db *DB) AddChannelHook(h ChannelHook) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO channel_hooks (user_id, discord_channel_id, forum_post_id)
		VALUES (?, ?, ?)
	`, h.UserID, h.ChannelID, h.ForumPostID)
	if err != nil {
		return fmt.Errorf("failed to add channel hook: %w", err)
	}
	return nil
}

// RemoveChannelHook deletes a user's hook for a channel.
func (db *DB) RemoveChannelHook(userID, channelID string) error {
	res, err := db.Exec(`
		DELETE FROM channel_hooks WHERE user_id = ? AND discord_channel_id = ?
	`, userID, channelID)
	if err != nil {
		return fmt.Errorf("failed to remove channel hook: %w", err)
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

// ListChannelHooks returns a user's channel hooks.
func (db *DB) ListChannelHooks(userID string) ([]ChannelHook, error) {
	return db.listChannelHooks(`
		SELECT user_id, discord_channel_id, forum_post_id
		FROM channel_hooks WHERE user_id = ? ORDER BY discord_channel_id
	`, userID)
}

// ListAllChannelHooks returns every channel hook; used by the channel
// poller.
func (db *DB) ListAllChannelHooks() ([]ChannelHook, error) {
	return db.listChannelHooks(`
		SELECT user_id, discord_channel_id, forum_post_id
		FROM channel_hooks ORDER BY discord_channel_id
	`)
}

func (db *DB) listChannelHooks(query string, args ...interface{}) ([]ChannelHook, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel hooks: %w", err)
	}
	defer rows.Close()

	var hooks []ChannelHook
	for rows.Next() {
		var h ChannelHook
		if err := rows.Scan(&h.UserID, &h.ChannelID, &h.ForumPostID); err != nil {
			return nil, fmt.Errorf("failed to scan channel hook: %w", err)
		}
		hooks = append(hooks, h)
	}
	return hooks, rows.Err()
}

// ChannelCursor returns the last relayed message ID for a channel.
func (db *DB) ChannelCursor(channelID string) (string, error) {
	var messageID string
	err := db.QueryRow(`SELECT last_message_id FROM channel_cursors WHERE channel_id = ?`, channelID).Scan(&messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get channel cursor: %w", err)
	}
	return messageID, nil
}

// SetChannelCursor records the last relayed message ID for a channel.
func (db *DB) SetChannelCursor(channelID, messageID string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO channel_cursors (channel_id, last_message_id)
		VALUES (?, ?)
	`, channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to set channel cursor: %w", err)
	}
	return nil
}
