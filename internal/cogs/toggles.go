package cogs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/db"
)

// Features users can switch on and off for themselves. Everything
// defaults to on.
var knownFeatures = []string{"memes", "updates", "mentions"}

// Toggles lets users flip per-user feature flags.
type Toggles struct {
	database *db.DB
}

func NewToggles(database *db.DB) *Toggles {
	return &Toggles{database: database}
}

func (c *Toggles) Name() string { return "toggles" }

func (c *Toggles) Register(r *bot.Router) error {
	cmds := []*bot.Command{
		{
			Name:        "toggle",
			Usage:       "toggle <feature>",
			Description: "Flip a feature on or off for yourself.",
			Handler:     c.toggle,
		},
		{
			Name:        "toggles",
			Usage:       "toggles",
			Description: "Show your feature settings.",
			Handler:     c.list,
		},
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Toggles) toggle(ctx *bot.Context) error {
	if len(ctx.Args) != 1 {
		return ctx.Reply("Usage: %stoggle <feature>. Features: %s", ctx.Prefix, strings.Join(knownFeatures, ", "))
	}
	feature := strings.ToLower(ctx.Args[0])
	if !isKnownFeature(feature) {
		return ctx.Reply("Unknown feature %q. Features: %s", feature, strings.Join(knownFeatures, ", "))
	}

	value, err := c.database.FlipToggle(ctx.UserID(), feature)
	if err != nil {
		return fmt.Errorf("failed to flip toggle: %w", err)
	}
	return ctx.Reply("%s is now %s for you.", feature, onOff(value))
}

func (c *Toggles) list(ctx *bot.Context) error {
	stored, err := c.database.ListToggles(ctx.UserID())
	if err != nil {
		return fmt.Errorf("failed to list toggles: %w", err)
	}

	// Unstored features default to on.
	state := make(map[string]bool, len(knownFeatures))
	for _, f := range knownFeatures {
		state[f] = true
	}
	for f, v := range stored {
		state[f] = v
	}

	names := make([]string, 0, len(state))
	for f := range state {
		names = append(names, f)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Your settings:\n")
	for _, f := range names {
		fmt.Fprintf(&b, "- %s: %s\n", f, onOff(state[f]))
	}
	return ctx.Reply("%s", b.String())
}

func isKnownFeature(name string) bool {
	for _, f := range knownFeatures {
		if f == name {
			return true
		}
	}
	return false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
