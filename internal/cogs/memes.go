package cogs

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/fsutil"
	"github.com/offbyone-dev/offbyone/internal/security"
)

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// Memes serves a random image from the assets directory.
type Memes struct {
	database *db.DB
	fs       fsutil.FileSystem
	dir      string
	// pick selects an index in [0, n). Swappable for tests.
	pick func(n int) int
}

func NewMemes(database *db.DB, filesystem fsutil.FileSystem, dir string) *Memes {
	if filesystem == nil {
		filesystem = fsutil.OSFileSystem{}
	}
	return &Memes{database: database, fs: filesystem, dir: dir, pick: rand.Intn}
}

func (c *Memes) Name() string { return "memes" }

func (c *Memes) Register(r *bot.Router) error {
	return r.Register(&bot.Command{
		Name:        "meme",
		Usage:       "meme",
		Description: "Post a random meme.",
		Handler:     c.meme,
	})
}

func (c *Memes) meme(ctx *bot.Context) error {
	enabled, err := c.database.GetToggle(ctx.UserID(), "memes")
	if err != nil {
		return fmt.Errorf("failed to check memes toggle: %w", err)
	}
	if !enabled {
		return ctx.Reply("You have memes turned off. %stoggle memes to turn them back on.", ctx.Prefix)
	}

	images, err := c.listImages()
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) == 0 {
		return ctx.Reply("The meme folder is empty. Someone should fix that.")
	}

	name := images[c.pick(len(images))]
	path := filepath.Join(c.dir, name)
	if err := security.ValidatePathWithinDirectory(path, c.dir); err != nil {
		return fmt.Errorf("refusing to read %s: %w", name, err)
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	_, err = ctx.Session.ChannelMessageSendComplex(ctx.Message.ChannelID, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: imageExtensions[strings.ToLower(filepath.Ext(name))],
			Reader:      bytes.NewReader(data),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to send meme: %w", err)
	}
	return nil
}

func (c *Memes) listImages() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			images = append(images, e.Name())
		}
	}
	return images, nil
}
