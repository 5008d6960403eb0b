package cogs

import (
	"context"
	"fmt"
	"strings"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/discord"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
	"github.com/offbyone-dev/offbyone/internal/updates"
)

// Updater relays updates from the bus into their linked forum posts.
// The pollers publish, this cog delivers.
type Updater struct {
	bus *updates.Bus
	// forcePoll asks the pollers to run immediately. May be nil.
	forcePoll func()
}

func NewUpdater(bus *updates.Bus, forcePoll func()) *Updater {
	return &Updater{bus: bus, forcePoll: forcePoll}
}

// SetForcePoll swaps the force-poll trigger. The pollers are constructed
// after the cogs, so the caller wires this in late.
func (c *Updater) SetForcePoll(f func()) {
	c.forcePoll = f
}

func (c *Updater) Name() string { return "updater" }

func (c *Updater) Register(r *bot.Router) error {
	return r.Register(&bot.Command{
		Name:        "update",
		Usage:       "update",
		Description: "Poll all watched sources now instead of waiting for the next cycle.",
		Handler:     c.update,
	})
}

func (c *Updater) update(ctx *bot.Context) error {
	if c.forcePoll == nil {
		return ctx.Reply("Polling isn't running.")
	}
	c.forcePoll()
	return ctx.Reply("Polling now. New updates land in their forum posts shortly.")
}

// Run consumes the bus until ctx is cancelled, sending each update to its
// forum post. Blocks; run it in its own goroutine.
func (c *Updater) Run(ctx context.Context, s discord.Session) {
	id, ch := c.bus.Subscribe()
	defer c.bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			c.deliver(s, u)
		}
	}
}

func (c *Updater) deliver(s discord.Session, u updates.Update) {
	if u.ForumPostID == "" {
		monitoring.Errorf("dropping update %s from %s: no forum post", u.ID, u.Source)
		return
	}
	if _, err := s.ChannelMessageSend(u.ForumPostID, formatUpdate(u)); err != nil {
		monitoring.Errorf("failed to deliver update %s to %s: %v", u.ID, u.ForumPostID, err)
	}
}

func formatUpdate(u updates.Update) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", u.Title)
	if u.Source != "" {
		fmt.Fprintf(&b, " — %s", u.Source)
	}
	if u.Body != "" {
		b.WriteString("\n")
		b.WriteString(truncate(u.Body, 1500))
	}
	if u.URL != "" {
		fmt.Fprintf(&b, "\n%s", u.URL)
	}
	return b.String()
}
