package cogs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/github"
)

// Hooks manages the links between watched sources (GitHub repos, Discord
// channels) and the forum posts that receive their updates.
type Hooks struct {
	database *db.DB
}

func NewHooks(database *db.DB) *Hooks {
	return &Hooks{database: database}
}

func (c *Hooks) Name() string { return "hooks" }

func (c *Hooks) Register(r *bot.Router) error {
	cmds := []*bot.Command{
		{
			Name:        "hook",
			Usage:       "hook repo <url> <forumPostID> [commits|repos|all] | hook channel <channelID> <forumPostID>",
			Description: "Watch a GitHub repo or a channel and relay updates to a forum post.",
			Handler:     c.hook,
		},
		{
			Name:        "unhook",
			Usage:       "unhook repo <url> | unhook channel <channelID>",
			Description: "Stop watching a repo or channel.",
			Handler:     c.unhook,
		},
		{
			Name:        "hooks",
			Usage:       "hooks",
			Description: "List your hooks.",
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

func (c *Hooks) hook(ctx *bot.Context) error {
	if len(ctx.Args) < 3 {
		return ctx.Reply("Usage: %shook repo <url> <forumPostID> [commits|repos|all], or %shook channel <channelID> <forumPostID>",
			ctx.Prefix, ctx.Prefix)
	}

	switch strings.ToLower(ctx.Args[0]) {
	case "repo":
		return c.hookRepo(ctx, ctx.Args[1:])
	case "channel":
		return c.hookChannel(ctx, ctx.Args[1:])
	default:
		return ctx.Reply("Unknown hook kind %q. Use repo or channel.", ctx.Args[0])
	}
}

func (c *Hooks) hookRepo(ctx *bot.Context, args []string) error {
	if len(args) < 2 {
		return ctx.Reply("Usage: %shook repo <url> <forumPostID> [commits|repos|all]", ctx.Prefix)
	}
	repoURL := args[0]
	if _, _, err := github.ParseRepoURL(repoURL); err != nil {
		return ctx.Reply("%q doesn't look like a GitHub repository URL.", repoURL)
	}
	forumPostID := parseChannelMention(args[1])
	if forumPostID == "" {
		return ctx.Reply("Invalid forum post %q. Pass a channel mention or ID.", args[1])
	}

	h := db.RepoHook{
		UserID:       ctx.UserID(),
		RepoURL:      repoURL,
		ForumPostID:  forumPostID,
		TrackCommits: true,
	}
	if len(args) > 2 {
		switch strings.ToLower(args[2]) {
		case "commits":
		case "repos":
			h.TrackCommits = false
			h.TrackNewRepos = true
		case "all":
			h.TrackNewRepos = true
		default:
			return ctx.Reply("Unknown mode %q. Use commits, repos or all.", args[2])
		}
	}

	if err := c.database.AddRepoHook(h); err != nil {
		return fmt.Errorf("failed to add repo hook: %w", err)
	}
	return ctx.Reply("Watching %s. Updates go to <#%s>.", repoURL, forumPostID)
}

func (c *Hooks) hookChannel(ctx *bot.Context, args []string) error {
	if len(args) != 2 {
		return ctx.Reply("Usage: %shook channel <channelID> <forumPostID>", ctx.Prefix)
	}
	channelID := parseChannelMention(args[0])
	forumPostID := parseChannelMention(args[1])
	if channelID == "" || forumPostID == "" {
		return ctx.Reply("Invalid channel or forum post ID.")
	}
	if channelID == forumPostID {
		return ctx.Reply("A channel can't relay to itself.")
	}

	h := db.ChannelHook{
		UserID:      ctx.UserID(),
		ChannelID:   channelID,
		ForumPostID: forumPostID,
	}
	if err := c.database.AddChannelHook(h); err != nil {
		return fmt.Errorf("failed to add channel hook: %w", err)
	}
	return ctx.Reply("Watching <#%s>. Updates go to <#%s>.", channelID, forumPostID)
}

func (c *Hooks) unhook(ctx *bot.Context) error {
	if len(ctx.Args) != 2 {
		return ctx.Reply("Usage: %sunhook repo <url>, or %sunhook channel <channelID>", ctx.Prefix, ctx.Prefix)
	}

	switch strings.ToLower(ctx.Args[0]) {
	case "repo":
		if err := c.database.RemoveRepoHook(ctx.UserID(), ctx.Args[1]); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ctx.Reply("You don't have a hook for %s.", ctx.Args[1])
			}
			return fmt.Errorf("failed to remove repo hook: %w", err)
		}
		return ctx.Reply("Stopped watching %s.", ctx.Args[1])
	case "channel":
		channelID := parseChannelMention(ctx.Args[1])
		if err := c.database.RemoveChannelHook(ctx.UserID(), channelID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ctx.Reply("You don't have a hook for <#%s>.", channelID)
			}
			return fmt.Errorf("failed to remove channel hook: %w", err)
		}
		return ctx.Reply("Stopped watching <#%s>.", channelID)
	default:
		return ctx.Reply("Unknown hook kind %q. Use repo or channel.", ctx.Args[0])
	}
}

func (c *Hooks) list(ctx *bot.Context) error {
	repos, err := c.database.ListRepoHooks(ctx.UserID())
	if err != nil {
		return fmt.Errorf("failed to list repo hooks: %w", err)
	}
	channels, err := c.database.ListChannelHooks(ctx.UserID())
	if err != nil {
		return fmt.Errorf("failed to list channel hooks: %w", err)
	}
	if len(repos) == 0 && len(channels) == 0 {
		return ctx.Reply("You have no hooks. Use %shook to add one.", ctx.Prefix)
	}

	var b strings.Builder
	b.WriteString("Your hooks:\n")
	for _, h := range repos {
		fmt.Fprintf(&b, "- repo %s → <#%s> (%s)\n", h.RepoURL, h.ForumPostID, repoHookMode(h))
	}
	for _, h := range channels {
		fmt.Fprintf(&b, "- channel <#%s> → <#%s>\n", h.ChannelID, h.ForumPostID)
	}
	return ctx.Reply("%s", b.String())
}

func repoHookMode(h db.RepoHook) string {
	switch {
	case h.TrackCommits && h.TrackNewRepos:
		return "all"
	case h.TrackNewRepos:
		return "repos"
	default:
		return "commits"
	}
}
