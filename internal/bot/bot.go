// Package bot wires the Discord gateway to the cog registry: prefix
// command routing, DM form collection, and slash command dispatch.
package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/config"
	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/discord"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

// Bot owns the gateway session and the loaded cogs.
type Bot struct {
	cfg      *config.Config
	session  *discordgo.Session
	router   *Router
	database *db.DB

	cogs           []Cog
	dmListeners    []DMListener
	slashProviders []SlashProvider
}

// New creates the Bot and its gateway session. Core cogs must all load;
// a feature cog that fails to register is logged and skipped.
func New(cfg *config.Config, database *db.DB, core, feature []Cog) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		cfg:      cfg,
		session:  session,
		router:   NewRouter(cfg.CommandPrefix, database),
		database: database,
	}

	for _, cog := range core {
		if err := b.load(cog); err != nil {
			return nil, fmt.Errorf("failed to load core cog %s: %w", cog.Name(), err)
		}
		monitoring.Logf("loaded cog: %s", cog.Name())
	}
	for _, cog := range feature {
		if err := b.load(cog); err != nil {
			monitoring.Errorf("failed to load cog %s, skipping: %v", cog.Name(), err)
			continue
		}
		monitoring.Logf("loaded cog: %s", cog.Name())
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)

	return b, nil
}

func (b *Bot) load(cog Cog) error {
	if err := cog.Register(b.router); err != nil {
		return err
	}
	b.cogs = append(b.cogs, cog)
	if l, ok := cog.(DMListener); ok {
		b.dmListeners = append(b.dmListeners, l)
	}
	if p, ok := cog.(SlashProvider); ok {
		b.slashProviders = append(b.slashProviders, p)
	}
	return nil
}

// Router exposes the command router, mainly for tests and the status API.
func (b *Bot) Router() *Router {
	return b.router
}

// Session exposes the underlying gateway session for the background
// tasks.
func (b *Bot) Session() discord.Session {
	return b.session
}

// Start opens the gateway connection, registers slash commands, and
// blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	defer func() {
		if err := b.session.Close(); err != nil {
			monitoring.Errorf("failed to close gateway connection: %v", err)
		}
	}()

	if err := b.registerSlashCommands(); err != nil {
		return err
	}

	<-ctx.Done()
	monitoring.Logf("gateway connection shutting down")
	return nil
}

func (b *Bot) registerSlashCommands() error {
	appID := b.session.State.User.ID
	// DevGuildID pins commands to one guild for instant availability in
	// dev; empty registers them globally.
	guildID := b.cfg.DevGuildID

	for _, p := range b.slashProviders {
		for _, cmd := range p.SlashCommands() {
			if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
				return fmt.Errorf("failed to register slash command /%s: %w", cmd.Name, err)
			}
			monitoring.Logf("registered slash command: /%s", cmd.Name)
		}
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	monitoring.Logf("logged in as %s#%s", r.User.Username, r.User.Discriminator)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	if b.router.IsCommand(m.Content) {
		b.router.Dispatch(s, m)
		return
	}

	// Non-command DMs feed the application form collector.
	if m.GuildID == "" {
		for _, l := range b.dmListeners {
			if l.HandleDM(s, m) {
				return
			}
		}
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	for _, p := range b.slashProviders {
		if p.HandleInteraction(s, i) {
			return
		}
	}
}
