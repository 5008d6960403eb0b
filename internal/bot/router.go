package bot

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/discord"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

// HandlerFunc executes a prefix command.
type HandlerFunc func(*Context) error

// Command is a registered prefix command.
type Command struct {
	// Name is the invocation keyword, without prefix, lower case.
	Name string
	// Usage is the argument synopsis shown on bad invocations.
	Usage string
	// Description is a one-line help text.
	Description string
	// Permissions holds the Discord permission bits the invoker must have
	// in the channel. Zero means anyone.
	Permissions int64
	// GuildOnly commands are refused in DMs.
	GuildOnly bool
	// Handler runs the command.
	Handler HandlerFunc
}

// Context carries everything a command handler needs.
type Context struct {
	Session discord.Session
	Message *discordgo.MessageCreate
	// Args are the whitespace-separated tokens after the command name.
	Args []string
	// Prefix is the router's command prefix, for usage messages.
	Prefix string
}

// Reply sends a formatted message to the invoking channel.
func (c *Context) Reply(format string, v ...interface{}) error {
	_, err := c.Session.ChannelMessageSend(c.Message.ChannelID, fmt.Sprintf(format, v...))
	return err
}

// UserID returns the invoking user's ID.
func (c *Context) UserID() string {
	return c.Message.Author.ID
}

// GuildID returns the guild the command was invoked in; empty in DMs.
func (c *Context) GuildID() string {
	return c.Message.GuildID
}

// Router dispatches prefix commands to their handlers.
type Router struct {
	prefix   string
	database *db.DB

	mu       sync.RWMutex
	commands map[string]*Command
}

// NewRouter creates a Router for the given prefix. The database records
// command usage and may be shared with the cogs.
func NewRouter(prefix string, database *db.DB) *Router {
	return &Router{
		prefix:   prefix,
		database: database,
		commands: make(map[string]*Command),
	}
}

// Prefix returns the configured command prefix.
func (r *Router) Prefix() string {
	return r.prefix
}

// Register adds a command. Registering a duplicate name is an error.
func (r *Router) Register(cmd *Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("command must have a name and a handler")
	}
	name := strings.ToLower(cmd.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	r.commands[name] = cmd
	return nil
}

// Command looks up a registered command by name.
func (r *Router) Command(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// Commands returns all registered commands sorted by name.
func (r *Router) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// IsCommand reports whether the message content would be dispatched as a
// command.
func (r *Router) IsCommand(content string) bool {
	return strings.HasPrefix(content, r.prefix) && len(content) > len(r.prefix)
}

// Dispatch parses a message and runs the matching command, enforcing
// guild-only and permission constraints. Unknown commands are ignored.
func (r *Router) Dispatch(s discord.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !r.IsCommand(m.Content) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, r.prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])

	cmd, ok := r.Command(name)
	if !ok {
		return
	}

	ctx := &Context{Session: s, Message: m, Args: fields[1:], Prefix: r.prefix}

	if cmd.GuildOnly && m.GuildID == "" {
		if err := ctx.Reply("The %s%s command only works in a server.", r.prefix, cmd.Name); err != nil {
			monitoring.Errorf("failed to send guild-only notice: %v", err)
		}
		return
	}

	if cmd.Permissions != 0 {
		perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
		if err != nil {
			monitoring.Errorf("failed to resolve permissions for %s: %v", m.Author.ID, err)
			return
		}
		if perms&cmd.Permissions != cmd.Permissions {
			if err := ctx.Reply("You don't have permission to use %s%s.", r.prefix, cmd.Name); err != nil {
				monitoring.Errorf("failed to send permission notice: %v", err)
			}
			return
		}
	}

	if r.database != nil {
		if err := r.database.RecordCommandUse(name, m.Author.ID, m.GuildID); err != nil {
			monitoring.Errorf("failed to record command use: %v", err)
		}
	}

	if err := cmd.Handler(ctx); err != nil {
		monitoring.Errorf("command %s failed for %s: %v", name, m.Author.ID, err)
		if err := ctx.Reply("Something went wrong running %s%s.", r.prefix, cmd.Name); err != nil {
			monitoring.Errorf("failed to send error notice: %v", err)
		}
	}
}
