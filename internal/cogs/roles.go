package cogs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/discord"
)

// Roles manages the binding between application role types and concrete
// Discord roles, and grants mapped roles to approved users.
type Roles struct {
	database *db.DB
}

func NewRoles(database *db.DB) *Roles {
	return &Roles{database: database}
}

func (c *Roles) Name() string { return "roles" }

func (c *Roles) Register(r *bot.Router) error {
	cmds := []*bot.Command{
		{
			Name:        "rolemap",
			Usage:       "rolemap <type> <roleID>",
			Description: "Bind an application role type to a Discord role.",
			Permissions: discordgo.PermissionManageRoles,
			GuildOnly:   true,
			Handler:     c.rolemap,
		},
		{
			Name:        "rolemaps",
			Usage:       "rolemaps",
			Description: "List this server's role type bindings.",
			Permissions: discordgo.PermissionManageRoles,
			GuildOnly:   true,
			Handler:     c.rolemaps,
		},
		{
			Name:        "verified",
			Usage:       "verified <@user> <type>",
			Description: "Check whether a user was approved for a role type.",
			GuildOnly:   true,
			Handler:     c.verified,
		},
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Roles) rolemap(ctx *bot.Context) error {
	if len(ctx.Args) != 2 {
		return ctx.Reply("Usage: %srolemap <type> <roleID>", ctx.Prefix)
	}
	roleType := strings.ToLower(ctx.Args[0])
	roleID := parseRoleMention(ctx.Args[1])
	if roleID == "" {
		return ctx.Reply("Invalid role %q. Pass a role mention or ID.", ctx.Args[1])
	}
	if err := c.database.SetRoleMapping(ctx.GuildID(), roleType, roleID); err != nil {
		return fmt.Errorf("failed to store role mapping: %w", err)
	}
	return ctx.Reply("Applications for %q now grant <@&%s>.", roleType, roleID)
}

func (c *Roles) rolemaps(ctx *bot.Context) error {
	mappings, err := c.database.ListRoleMappings(ctx.GuildID())
	if err != nil {
		return fmt.Errorf("failed to list role mappings: %w", err)
	}
	if len(mappings) == 0 {
		return ctx.Reply("No role mappings configured. Use %srolemap to add one.", ctx.Prefix)
	}
	var b strings.Builder
	b.WriteString("Role mappings:\n")
	for _, m := range mappings {
		fmt.Fprintf(&b, "- %s → <@&%s>\n", m.RoleType, m.RoleID)
	}
	return ctx.Reply("%s", b.String())
}

func (c *Roles) verified(ctx *bot.Context) error {
	if len(ctx.Args) != 2 {
		return ctx.Reply("Usage: %sverified <@user> <type>", ctx.Prefix)
	}
	userID := parseUserMention(ctx.Args[0])
	if userID == "" {
		return ctx.Reply("Invalid user %q.", ctx.Args[0])
	}
	roleType := strings.ToLower(ctx.Args[1])

	ok, err := c.database.HasApprovedRole(userID, roleType)
	if err != nil {
		return fmt.Errorf("failed to check approval: %w", err)
	}
	if ok {
		return ctx.Reply("<@%s> is approved for %q.", userID, roleType)
	}
	return ctx.Reply("<@%s> is not approved for %q.", userID, roleType)
}

// GrantMappedRole assigns the Discord role mapped to roleType in the
// guild, if a mapping exists. Returns the granted role ID, or empty when
// no mapping is configured.
func (c *Roles) GrantMappedRole(s discord.Session, guildID, userID, roleType string) (string, error) {
	roleID, err := c.database.GetRoleMapping(guildID, roleType)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve role mapping: %w", err)
	}
	if err := s.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return "", fmt.Errorf("failed to grant role %s: %w", roleID, err)
	}
	return roleID, nil
}

func parseRoleMention(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<@&"), ">")
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
