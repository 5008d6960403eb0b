package cogs

import (
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/discord"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.ResetLogger)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "cogs.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// cmdContext builds a command invocation context the way the router does.
func cmdContext(s discord.Session, guildID, userID string, args ...string) *bot.Context {
	return &bot.Context{
		Session: s,
		Message: &discordgo.MessageCreate{Message: &discordgo.Message{
			ID:        "invoking-msg",
			ChannelID: "chan-1",
			GuildID:   guildID,
			Author:    &discordgo.User{ID: userID, Username: "tester"},
		}},
		Args:   args,
		Prefix: "!",
	}
}

func dmMessage(userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "dm-msg",
		ChannelID: "dm-channel",
		Content:   content,
		Author:    &discordgo.User{ID: userID, Username: "tester"},
	}}
}

// registerAll fails the test if the cog's commands don't register cleanly.
func registerAll(t *testing.T, database *db.DB, cog bot.Cog) *bot.Router {
	t.Helper()
	r := bot.NewRouter("!", database)
	if err := cog.Register(r); err != nil {
		t.Fatalf("failed to register %s: %v", cog.Name(), err)
	}
	return r
}
