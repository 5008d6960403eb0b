// Package tasks holds the bot's background pollers. Each poller runs a
// ticker loop until its context is cancelled and can be poked for an
// immediate pass.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/github"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
	"github.com/offbyone-dev/offbyone/internal/timeutil"
	"github.com/offbyone-dev/offbyone/internal/updates"
)

// RepoPoller watches hooked GitHub repositories and publishes new
// commits to the update bus.
type RepoPoller struct {
	database *db.DB
	client   *github.Client
	bus      *updates.Bus
	clock    timeutil.Clock
	interval time.Duration
	poke     chan struct{}
}

// NewRepoPoller creates a repo poller. A nil clock uses real time.
func NewRepoPoller(database *db.DB, client *github.Client, bus *updates.Bus, clock timeutil.Clock, interval time.Duration) *RepoPoller {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RepoPoller{
		database: database,
		client:   client,
		bus:      bus,
		clock:    clock,
		interval: interval,
		poke:     make(chan struct{}, 1),
	}
}

// Poke requests an immediate poll. Non-blocking; a pending poke is
// enough.
func (p *RepoPoller) Poke() {
	select {
	case p.poke <- struct{}{}:
	default:
	}
}

// Run polls on the configured interval until ctx is cancelled.
func (p *RepoPoller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	monitoring.Logf("repo poller running every %s", p.interval)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("repo poller stopped")
			return
		case <-ticker.C():
		case <-p.poke:
		}
		p.PollOnce(ctx)
	}
}

// PollOnce checks every hooked repository once. Each repository is
// fetched a single time no matter how many hooks point at it.
func (p *RepoPoller) PollOnce(ctx context.Context) {
	hooks, err := p.database.ListAllRepoHooks()
	if err != nil {
		monitoring.Errorf("repo poller: failed to list hooks: %v", err)
		return
	}

	byRepo := make(map[string][]db.RepoHook)
	byOwner := make(map[string][]db.RepoHook)
	for _, h := range hooks {
		if h.TrackCommits {
			byRepo[h.RepoURL] = append(byRepo[h.RepoURL], h)
		}
		if h.TrackNewRepos {
			owner, _, err := github.ParseRepoURL(h.RepoURL)
			if err != nil {
				monitoring.Errorf("repo poller: bad hook url %q: %v", h.RepoURL, err)
				continue
			}
			byOwner[owner] = append(byOwner[owner], h)
		}
	}

	for repoURL, repoHooks := range byRepo {
		if err := p.pollRepo(ctx, repoURL, repoHooks); err != nil {
			monitoring.Errorf("repo poller: %s: %v", repoURL, err)
		}
		if ctx.Err() != nil {
			return
		}
	}

	for owner, ownerHooks := range byOwner {
		if err := p.pollOwner(ctx, owner, ownerHooks); err != nil {
			monitoring.Errorf("repo poller: owner %s: %v", owner, err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *RepoPoller) pollRepo(ctx context.Context, repoURL string, hooks []db.RepoHook) error {
	owner, repo, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return err
	}

	cursor, err := p.database.RepoCursor(repoURL)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}

	commits, err := p.client.CommitsSince(ctx, owner, repo, cursor)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return nil
	}

	latest := commits[len(commits)-1].SHA

	// First poll for a repo only establishes the cursor. Replaying
	// history into the forum post helps nobody.
	if cursor == "" {
		return p.database.SetRepoCursor(repoURL, latest)
	}

	for _, commit := range commits {
		for _, h := range hooks {
			p.bus.Publish(updates.Update{
				Source:      repoURL,
				Title:       commit.Message,
				Body:        "by " + commit.Author,
				URL:         commit.URL,
				ForumPostID: h.ForumPostID,
			})
		}
	}
	return p.database.SetRepoCursor(repoURL, latest)
}

func (p *RepoPoller) pollOwner(ctx context.Context, owner string, hooks []db.RepoHook) error {
	cursor, err := p.database.OwnerCursor(owner)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}

	repos, err := p.client.ReposSince(ctx, owner, cursor)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return nil
	}

	latest := repos[len(repos)-1].Name

	// Same seeding rule as commits: the first sighting of an owner only
	// establishes the cursor.
	if cursor == "" {
		return p.database.SetOwnerCursor(owner, latest)
	}

	for _, repo := range repos {
		for _, h := range hooks {
			p.bus.Publish(updates.Update{
				Source:      "github.com/" + owner,
				Title:       "New repository: " + repo.FullName,
				Body:        repo.Description,
				URL:         repo.URL,
				ForumPostID: h.ForumPostID,
			})
		}
	}
	return p.database.SetOwnerCursor(owner, latest)
}
