// Package config loads bot configuration from the environment. A .env
// file in the working directory is honoured first, then every setting is
// read from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the daemon's runtime settings.
type Config struct {
	// BotToken is the Discord bot token. Required.
	BotToken string `koanf:"bot_token"`

	// DevGuildID pins slash-command registration to a single guild in
	// dev, which makes commands appear immediately. Empty registers
	// globally.
	DevGuildID string `koanf:"dev_guild_id"`

	// Env is "dev" or "prod".
	Env string `koanf:"env"`

	// DBPath is the sqlite database file path.
	DBPath string `koanf:"db_path"`

	// GitHubToken authenticates repo polling. When empty requests go out
	// unauthenticated and hit GitHub's stricter rate limits.
	GitHubToken string `koanf:"github_token"`

	// Listen is the status API listen address.
	Listen string `koanf:"listen"`

	// AssetsDir holds static assets, including the meme images.
	AssetsDir string `koanf:"assets_dir"`

	// FormsPath points at the YAML application form definitions.
	FormsPath string `koanf:"forms_path"`

	// SnippetsPath points at the YAML coding-help snippet library.
	SnippetsPath string `koanf:"snippets_path"`

	// LogDir holds the rotating log file. Empty disables the file sink.
	LogDir string `koanf:"log_dir"`

	// CommandPrefix is the prefix for message commands.
	CommandPrefix string `koanf:"command_prefix"`

	RepoPollInterval    time.Duration `koanf:"repo_poll_interval"`
	ChannelPollInterval time.Duration `koanf:"channel_poll_interval"`
	NotifyInterval      time.Duration `koanf:"notify_interval"`
}

// Default returns a Config populated with the defaults that Load overlays
// environment values onto.
func Default() Config {
	return Config{
		Env:                 "dev",
		DBPath:              "data/bot.db",
		Listen:              ":8080",
		AssetsDir:           "assets",
		FormsPath:           "config/forms.yml",
		SnippetsPath:        "config/snippets.yml",
		LogDir:              "logs",
		CommandPrefix:       "!",
		RepoPollInterval:    5 * time.Minute,
		ChannelPollInterval: 5 * time.Minute,
		NotifyInterval:      time.Hour,
	}
}

// Load reads configuration from a .env file (if present) and the
// environment, validates it, and returns the result.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.Env != "dev" && c.Env != "prod" {
		return fmt.Errorf("ENV must be dev or prod, got %q", c.Env)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.CommandPrefix == "" || strings.ContainsAny(c.CommandPrefix, " \t\n") {
		return fmt.Errorf("COMMAND_PREFIX must be a non-empty token, got %q", c.CommandPrefix)
	}
	if c.RepoPollInterval < time.Second {
		return fmt.Errorf("REPO_POLL_INTERVAL too short: %s", c.RepoPollInterval)
	}
	if c.ChannelPollInterval < time.Second {
		return fmt.Errorf("CHANNEL_POLL_INTERVAL too short: %s", c.ChannelPollInterval)
	}
	if c.NotifyInterval < time.Minute {
		return fmt.Errorf("NOTIFY_INTERVAL too short: %s", c.NotifyInterval)
	}
	return nil
}

// Dev reports whether the bot is running in dev mode.
func (c *Config) Dev() bool {
	return c.Env == "dev"
}
