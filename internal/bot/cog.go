package bot

import (
	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/discord"
)

// Cog is a pluggable command module. Register adds the cog's commands to
// the router.
type Cog interface {
	Name() string
	Register(r *Router) error
}

// DMListener is implemented by cogs that consume non-command direct
// messages (the application form collector). HandleDM returns true when
// the message was consumed.
type DMListener interface {
	HandleDM(s discord.Session, m *discordgo.MessageCreate) bool
}

// SlashProvider is implemented by cogs that expose slash commands.
// HandleInteraction returns true when the interaction was consumed.
type SlashProvider interface {
	SlashCommands() []*discordgo.ApplicationCommand
	HandleInteraction(s discord.Session, i *discordgo.InteractionCreate) bool
}
