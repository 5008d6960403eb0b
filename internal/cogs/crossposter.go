package cogs

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

// Crossposter reposts a message into another channel through a
// short-lived webhook, so it appears under the original author's name
// and avatar.
type Crossposter struct{}

func NewCrossposter() *Crossposter {
	return &Crossposter{}
}

func (c *Crossposter) Name() string { return "crossposter" }

func (c *Crossposter) Register(r *bot.Router) error {
	return r.Register(&bot.Command{
		Name:        "crosspost",
		Usage:       "crosspost <messageID> [channelID]",
		Description: "Repost a message from this channel into another channel.",
		Permissions: discordgo.PermissionManageMessages,
		GuildOnly:   true,
		Handler:     c.crosspost,
	})
}

func (c *Crossposter) crosspost(ctx *bot.Context) error {
	if len(ctx.Args) < 1 || len(ctx.Args) > 2 {
		return ctx.Reply("Usage: %scrosspost <messageID> [channelID]", ctx.Prefix)
	}
	messageID := ctx.Args[0]

	target := ctx.Message.ChannelID
	if len(ctx.Args) == 2 {
		target = parseChannelMention(ctx.Args[1])
		if target == "" {
			return ctx.Reply("Invalid channel %q.", ctx.Args[1])
		}
	}

	original, err := ctx.Session.ChannelMessage(ctx.Message.ChannelID, messageID)
	if err != nil {
		return ctx.Reply("Couldn't find message %s in this channel.", messageID)
	}
	if original.Content == "" && len(original.Embeds) == 0 {
		return ctx.Reply("Message %s has no text to crosspost.", messageID)
	}

	hook, err := ctx.Session.WebhookCreate(target, "crosspost", "")
	if err != nil {
		return fmt.Errorf("failed to create webhook in %s: %w", target, err)
	}
	defer func() {
		if err := ctx.Session.WebhookDelete(hook.ID); err != nil {
			monitoring.Errorf("failed to delete webhook %s: %v", hook.ID, err)
		}
	}()

	params := &discordgo.WebhookParams{
		Content: original.Content,
		Embeds:  original.Embeds,
	}
	if original.Author != nil {
		params.Username = original.Author.Username
		params.AvatarURL = original.Author.AvatarURL("")
	}

	if _, err := ctx.Session.WebhookExecute(hook.ID, hook.Token, true, params); err != nil {
		return fmt.Errorf("failed to execute webhook: %w", err)
	}
	return ctx.Reply("Crossposted to <#%s>.", target)
}
