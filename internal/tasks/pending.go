package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/discord"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
	"github.com/offbyone-dev/offbyone/internal/timeutil"
)

// staleAfter is how long an application may sit pending before reminders
// start.
const staleAfter = time.Hour

// PendingNotifier reminds moderators about applications that have been
// sitting in the queue, and prunes expired rate-limit rows while it is
// at it.
type PendingNotifier struct {
	database *db.DB
	session  discord.Session
	clock    timeutil.Clock
	interval time.Duration
}

// NewPendingNotifier creates the notifier. A nil clock uses real time.
func NewPendingNotifier(database *db.DB, session discord.Session, clock timeutil.Clock, interval time.Duration) *PendingNotifier {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &PendingNotifier{database: database, session: session, clock: clock, interval: interval}
}

// Run notifies on the configured interval until ctx is cancelled.
func (p *PendingNotifier) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	monitoring.Logf("pending-application notifier running every %s", p.interval)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("pending-application notifier stopped")
			return
		case <-ticker.C():
		}
		p.NotifyOnce()
	}
}

// NotifyOnce posts one reminder per guild that has stale pending
// applications and a configured application channel.
func (p *PendingNotifier) NotifyOnce() {
	now := p.clock.Now()

	if err := p.database.PruneAttempts(now.Add(-24 * time.Hour)); err != nil {
		monitoring.Errorf("failed to prune rate-limit rows: %v", err)
	}

	stale, err := p.database.ListStalePendingApplications(now.Add(-staleAfter))
	if err != nil {
		monitoring.Errorf("failed to list stale applications: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	byGuild := make(map[string][]db.Application)
	for _, app := range stale {
		byGuild[app.GuildID] = append(byGuild[app.GuildID], app)
	}

	for guildID, apps := range byGuild {
		if err := p.notifyGuild(guildID, apps); err != nil {
			monitoring.Errorf("failed to notify guild %s: %v", guildID, err)
		}
	}
}

func (p *PendingNotifier) notifyGuild(guildID string, apps []db.Application) error {
	cfg, err := p.database.GetServerConfig(guildID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// Nowhere to post; skip quietly.
			return nil
		}
		return err
	}

	text := fmt.Sprintf("%d application(s) waiting for review:", len(apps))
	for _, app := range apps {
		text += fmt.Sprintf("\n- #%d — %s by <@%s>", app.ID, app.RoleType, app.UserID)
	}
	if _, err := p.session.ChannelMessageSend(cfg.ApplicationChannelID, text); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}
