// Package cogs holds the bot's command modules. Each cog bundles a group
// of related commands and registers them with the router.
package cogs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/timeutil"
)

const defaultMuteDuration = 10 * time.Minute

// maxTimeout is the longest member timeout Discord accepts.
const maxTimeout = 28 * 24 * time.Hour

// Moderation provides kick, ban, mute and message clearing commands.
type Moderation struct {
	clock timeutil.Clock
}

// NewModeration creates the moderation cog. A nil clock uses real time.
func NewModeration(clock timeutil.Clock) *Moderation {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Moderation{clock: clock}
}

func (c *Moderation) Name() string { return "moderation" }

func (c *Moderation) Register(r *bot.Router) error {
	cmds := []*bot.Command{
		{
			Name:        "kick",
			Usage:       "kick <@user> [reason]",
			Description: "Kick a member from the server.",
			Permissions: discordgo.PermissionKickMembers,
			GuildOnly:   true,
			Handler:     c.kick,
		},
		{
			Name:        "ban",
			Usage:       "ban <@user> [reason]",
			Description: "Ban a member from the server.",
			Permissions: discordgo.PermissionBanMembers,
			GuildOnly:   true,
			Handler:     c.ban,
		},
		{
			Name:        "unban",
			Usage:       "unban <user-id>",
			Description: "Lift a ban.",
			Permissions: discordgo.PermissionBanMembers,
			GuildOnly:   true,
			Handler:     c.unban,
		},
		{
			Name:        "mute",
			Usage:       "mute <@user> [duration]",
			Description: "Time out a member. Duration like 30m or 2h, default 10m.",
			Permissions: discordgo.PermissionModerateMembers,
			GuildOnly:   true,
			Handler:     c.mute,
		},
		{
			Name:        "unmute",
			Usage:       "unmute <@user>",
			Description: "Remove a member's timeout.",
			Permissions: discordgo.PermissionModerateMembers,
			GuildOnly:   true,
			Handler:     c.unmute,
		},
		{
			Name:        "clear",
			Usage:       "clear [count]",
			Description: "Delete the most recent messages in this channel (default 10, max 100).",
			Permissions: discordgo.PermissionManageMessages,
			GuildOnly:   true,
			Handler:     c.clear,
		},
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Moderation) kick(ctx *bot.Context) error {
	target, rest, err := targetUser(ctx.Args)
	if err != nil {
		return ctx.Reply("Usage: %skick <@user> [reason]", ctx.Prefix)
	}
	reason := strings.Join(rest, " ")
	if err := ctx.Session.GuildMemberDeleteWithReason(ctx.GuildID(), target, reason); err != nil {
		return fmt.Errorf("failed to kick %s: %w", target, err)
	}
	return ctx.Reply("Kicked <@%s>.", target)
}

func (c *Moderation) ban(ctx *bot.Context) error {
	target, rest, err := targetUser(ctx.Args)
	if err != nil {
		return ctx.Reply("Usage: %sban <@user> [reason]", ctx.Prefix)
	}
	reason := strings.Join(rest, " ")
	if err := ctx.Session.GuildBanCreateWithReason(ctx.GuildID(), target, reason, 0); err != nil {
		return fmt.Errorf("failed to ban %s: %w", target, err)
	}
	return ctx.Reply("Banned <@%s>.", target)
}

func (c *Moderation) unban(ctx *bot.Context) error {
	target, _, err := targetUser(ctx.Args)
	if err != nil {
		return ctx.Reply("Usage: %sunban <user-id>", ctx.Prefix)
	}
	if err := ctx.Session.GuildBanDelete(ctx.GuildID(), target); err != nil {
		return fmt.Errorf("failed to unban %s: %w", target, err)
	}
	return ctx.Reply("Unbanned <@%s>.", target)
}

func (c *Moderation) mute(ctx *bot.Context) error {
	target, rest, err := targetUser(ctx.Args)
	if err != nil {
		return ctx.Reply("Usage: %smute <@user> [duration]", ctx.Prefix)
	}

	d := defaultMuteDuration
	if len(rest) > 0 {
		d, err = time.ParseDuration(rest[0])
		if err != nil || d <= 0 {
			return ctx.Reply("Invalid duration %q. Use something like 30m or 2h.", rest[0])
		}
	}
	if d > maxTimeout {
		d = maxTimeout
	}

	until := c.clock.Now().Add(d)
	if err := ctx.Session.GuildMemberTimeout(ctx.GuildID(), target, &until); err != nil {
		return fmt.Errorf("failed to time out %s: %w", target, err)
	}
	return ctx.Reply("Muted <@%s> for %s.", target, d)
}

func (c *Moderation) unmute(ctx *bot.Context) error {
	target, _, err := targetUser(ctx.Args)
	if err != nil {
		return ctx.Reply("Usage: %sunmute <@user>", ctx.Prefix)
	}
	if err := ctx.Session.GuildMemberTimeout(ctx.GuildID(), target, nil); err != nil {
		return fmt.Errorf("failed to remove timeout for %s: %w", target, err)
	}
	return ctx.Reply("Unmuted <@%s>.", target)
}

func (c *Moderation) clear(ctx *bot.Context) error {
	count := 10
	if len(ctx.Args) > 0 {
		n, err := strconv.Atoi(ctx.Args[0])
		if err != nil || n < 1 {
			return ctx.Reply("Usage: %sclear [count]", ctx.Prefix)
		}
		count = n
	}
	if count > 100 {
		count = 100
	}

	msgs, err := ctx.Session.ChannelMessages(ctx.Message.ChannelID, count, ctx.Message.ID, "", "")
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	if len(msgs) == 0 {
		return ctx.Reply("Nothing to delete.")
	}

	ids := make([]string, 0, len(msgs)+1)
	ids = append(ids, ctx.Message.ID)
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if err := ctx.Session.ChannelMessagesBulkDelete(ctx.Message.ChannelID, ids); err != nil {
		return fmt.Errorf("failed to bulk delete: %w", err)
	}
	return ctx.Reply("Deleted %d messages.", len(msgs))
}

// targetUser extracts a user ID from the first argument, accepting either
// a mention (<@123>, <@!123>) or a bare snowflake, and returns the
// remaining arguments.
func targetUser(args []string) (id string, rest []string, err error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("missing target user")
	}
	id = parseUserMention(args[0])
	if id == "" {
		return "", nil, fmt.Errorf("invalid target user %q", args[0])
	}
	return id, args[1:], nil
}

func parseUserMention(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<@"), ">")
	s = strings.TrimPrefix(s, "!")
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s
}
