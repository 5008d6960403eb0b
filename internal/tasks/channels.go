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
	"github.com/offbyone-dev/offbyone/internal/updates"
)

// channelFetchLimit is the most messages fetched per channel per poll.
const channelFetchLimit = 100

// ChannelPoller watches hooked Discord channels and publishes new
// messages to the update bus.
type ChannelPoller struct {
	database *db.DB
	session  discord.Session
	bus      *updates.Bus
	clock    timeutil.Clock
	interval time.Duration
	poke     chan struct{}
}

// NewChannelPoller creates a channel poller. A nil clock uses real time.
func NewChannelPoller(database *db.DB, session discord.Session, bus *updates.Bus, clock timeutil.Clock, interval time.Duration) *ChannelPoller {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ChannelPoller{
		database: database,
		session:  session,
		bus:      bus,
		clock:    clock,
		interval: interval,
		poke:     make(chan struct{}, 1),
	}
}

// Poke requests an immediate poll. Non-blocking.
func (p *ChannelPoller) Poke() {
	select {
	case p.poke <- struct{}{}:
	default:
	}
}

// Run polls on the configured interval until ctx is cancelled.
func (p *ChannelPoller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	monitoring.Logf("channel poller running every %s", p.interval)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("channel poller stopped")
			return
		case <-ticker.C():
		case <-p.poke:
		}
		p.PollOnce(ctx)
	}
}

// PollOnce checks every hooked channel once.
func (p *ChannelPoller) PollOnce(ctx context.Context) {
	hooks, err := p.database.ListAllChannelHooks()
	if err != nil {
		monitoring.Errorf("channel poller: failed to list hooks: %v", err)
		return
	}

	byChannel := make(map[string][]db.ChannelHook)
	for _, h := range hooks {
		byChannel[h.ChannelID] = append(byChannel[h.ChannelID], h)
	}

	for channelID, channelHooks := range byChannel {
		if err := p.pollChannel(channelID, channelHooks); err != nil {
			monitoring.Errorf("channel poller: %s: %v", channelID, err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *ChannelPoller) pollChannel(channelID string, hooks []db.ChannelHook) error {
	cursor, err := p.database.ChannelCursor(channelID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}

	// First poll only establishes the cursor at the channel's newest
	// message.
	if cursor == "" {
		msgs, err := p.session.ChannelMessages(channelID, 1, "", "", "")
		if err != nil {
			return fmt.Errorf("failed to read latest message: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}
		return p.database.SetChannelCursor(channelID, msgs[0].ID)
	}

	msgs, err := p.session.ChannelMessages(channelID, channelFetchLimit, "", cursor, "")
	if err != nil {
		return fmt.Errorf("failed to read messages after %s: %w", cursor, err)
	}
	if len(msgs) == 0 {
		return nil
	}

	// Discord returns newest first; relay oldest first.
	newest := msgs[0].ID
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Author != nil && m.Author.Bot {
			continue
		}
		author := "someone"
		if m.Author != nil {
			author = m.Author.Username
		}
		for _, h := range hooks {
			p.bus.Publish(updates.Update{
				Source:      "<#" + channelID + ">",
				Title:       author + " wrote",
				Body:        m.Content,
				ForumPostID: h.ForumPostID,
			})
		}
	}
	return p.database.SetChannelCursor(channelID, newest)
}
