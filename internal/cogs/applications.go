package cogs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/config"
	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/discord"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
	"github.com/offbyone-dev/offbyone/internal/timeutil"
)

const (
	// applyAttemptLimit is the most application attempts allowed per
	// applyAttemptWindow.
	applyAttemptLimit  = 3
	applyAttemptWindow = 24 * time.Hour
)

// Applications runs the role application flow: the /apply slash command
// opens a DM form session, answers are collected one message at a time,
// and moderators approve or reject the stored application.
type Applications struct {
	database *db.DB
	forms    *config.FormSet
	roles    *Roles
	clock    timeutil.Clock
}

// NewApplications creates the applications cog. roles resolves and grants
// the mapped Discord role on approval; a nil clock uses real time.
func NewApplications(database *db.DB, forms *config.FormSet, roles *Roles, clock timeutil.Clock) *Applications {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Applications{database: database, forms: forms, roles: roles, clock: clock}
}

func (c *Applications) Name() string { return "applications" }

func (c *Applications) Register(r *bot.Router) error {
	cmds := []*bot.Command{
		{
			Name:        "approve",
			Usage:       "approve <id>",
			Description: "Approve a pending application and grant the mapped role.",
			Permissions: discordgo.PermissionManageRoles,
			GuildOnly:   true,
			Handler:     c.approve,
		},
		{
			Name:        "reject",
			Usage:       "reject <id>",
			Description: "Reject a pending application.",
			Permissions: discordgo.PermissionManageRoles,
			GuildOnly:   true,
			Handler:     c.reject,
		},
		{
			Name:        "appchannel",
			Usage:       "appchannel <channelID>",
			Description: "Set the channel that receives submitted applications.",
			Permissions: discordgo.PermissionManageGuild,
			GuildOnly:   true,
			Handler:     c.appchannel,
		},
		{
			Name:        "pending",
			Usage:       "pending",
			Description: "List this server's pending applications.",
			Permissions: discordgo.PermissionManageRoles,
			GuildOnly:   true,
			Handler:     c.pending,
		},
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SlashCommands declares the /apply command.
func (c *Applications) SlashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "apply",
			Description: "Apply for a role. The form runs in your DMs.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "role_type",
					Description: "Which role to apply for.",
					Required:    true,
				},
			},
		},
	}
}

// HandleInteraction starts a DM form session for /apply.
func (c *Applications) HandleInteraction(s discord.Session, i *discordgo.InteractionCreate) bool {
	if i.Type != discordgo.InteractionApplicationCommand {
		return false
	}
	data := i.ApplicationCommandData()
	if data.Name != "apply" {
		return false
	}

	userID := interactionUserID(i)
	if userID == "" || i.GuildID == "" {
		c.respondEphemeral(s, i, "Run /apply from the server you want to apply in.")
		return true
	}

	roleType := ""
	for _, opt := range data.Options {
		if opt.Name == "role_type" {
			roleType = strings.ToLower(opt.StringValue())
		}
	}
	questions := c.forms.Questions(roleType)
	if len(questions) == 0 {
		c.respondEphemeral(s, i, fmt.Sprintf("No application form for %q. Available: %s.",
			roleType, strings.Join(c.forms.RoleTypes(), ", ")))
		return true
	}

	now := c.clock.Now()
	attempts, err := c.database.CountAttemptsSince(userID, now.Add(-applyAttemptWindow))
	if err != nil {
		monitoring.Errorf("failed to count application attempts for %s: %v", userID, err)
		c.respondEphemeral(s, i, "Something went wrong, try again later.")
		return true
	}
	if attempts >= applyAttemptLimit {
		c.respondEphemeral(s, i, fmt.Sprintf("You've hit the limit of %d applications per day. Try again later.", applyAttemptLimit))
		return true
	}

	if err := c.database.StartSession(userID, i.GuildID, roleType); err != nil {
		if errors.Is(err, db.ErrSessionActive) {
			c.respondEphemeral(s, i, "You already have an application in progress. Answer it in your DMs, or reply `cancel` there to start over.")
		} else {
			monitoring.Errorf("failed to start application session for %s: %v", userID, err)
			c.respondEphemeral(s, i, "Something went wrong, try again later.")
		}
		return true
	}
	// The count above is only a pre-check; a concurrent interaction may
	// have taken the last slot since. The guarded insert is authoritative.
	recorded, err := c.database.TryRecordAttempt(userID, now, now.Add(-applyAttemptWindow), applyAttemptLimit)
	if err != nil {
		monitoring.Errorf("failed to record application attempt for %s: %v", userID, err)
	} else if !recorded {
		if cancelErr := c.database.CancelSession(userID); cancelErr != nil {
			monitoring.Errorf("failed to cancel session for %s: %v", userID, cancelErr)
		}
		c.respondEphemeral(s, i, fmt.Sprintf("You've hit the limit of %d applications per day. Try again later.", applyAttemptLimit))
		return true
	}

	dm, err := s.UserChannelCreate(userID)
	if err != nil {
		monitoring.Errorf("failed to open DM with %s: %v", userID, err)
		if cancelErr := c.database.CancelSession(userID); cancelErr != nil {
			monitoring.Errorf("failed to cancel session for %s: %v", userID, cancelErr)
		}
		c.respondEphemeral(s, i, "I couldn't DM you. Enable DMs from server members and try again.")
		return true
	}

	intro := fmt.Sprintf("Application for **%s** (%d questions). Reply `cancel` at any time to abort.\n\n**Question 1:** %s",
		roleType, len(questions), questions[0])
	if _, err := s.ChannelMessageSend(dm.ID, intro); err != nil {
		monitoring.Errorf("failed to send first question to %s: %v", userID, err)
	}

	c.respondEphemeral(s, i, "Check your DMs — your application form is waiting there.")
	return true
}

// HandleDM consumes form answers sent in a DM while a session is open.
func (c *Applications) HandleDM(s discord.Session, m *discordgo.MessageCreate) bool {
	sess, err := c.database.GetSession(m.Author.ID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			monitoring.Errorf("failed to load session for %s: %v", m.Author.ID, err)
		}
		return false
	}

	content := strings.TrimSpace(m.Content)
	if content == "" {
		return true
	}
	if strings.EqualFold(content, "cancel") {
		if err := c.database.CancelSession(m.Author.ID); err != nil {
			monitoring.Errorf("failed to cancel session for %s: %v", m.Author.ID, err)
		}
		c.dmReply(s, m.ChannelID, "Application cancelled. Run /apply to start over.")
		return true
	}

	questions := c.forms.Questions(sess.RoleType)
	sess, err = c.database.SaveAnswer(m.Author.ID, content)
	if err != nil {
		monitoring.Errorf("failed to save answer for %s: %v", m.Author.ID, err)
		c.dmReply(s, m.ChannelID, "Something went wrong saving your answer, please try again.")
		return true
	}

	if sess.CurrentQuestion < len(questions) {
		c.dmReply(s, m.ChannelID, fmt.Sprintf("**Question %d:** %s", sess.CurrentQuestion+1, questions[sess.CurrentQuestion]))
		return true
	}

	if err := c.finishApplication(s, sess); err != nil {
		monitoring.Errorf("failed to finish application for %s: %v", m.Author.ID, err)
		c.dmReply(s, m.ChannelID, "Something went wrong submitting your application, please try again.")
		return true
	}
	c.dmReply(s, m.ChannelID, "That's everything — your application is submitted. You'll get a DM when it's reviewed.")
	return true
}

func (c *Applications) finishApplication(s discord.Session, sess *db.Session) error {
	if err := c.database.CompleteSession(sess.UserID); err != nil {
		return err
	}

	app := &db.Application{
		UserID:   sess.UserID,
		GuildID:  sess.GuildID,
		RoleType: sess.RoleType,
		Answers:  sess.Answers,
	}
	if err := c.database.CreateApplication(app); err != nil {
		return err
	}

	cfg, err := c.database.GetServerConfig(sess.GuildID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			monitoring.Logf("no application channel configured for guild %s; application %d stored only", sess.GuildID, app.ID)
			return nil
		}
		return err
	}

	questions := c.forms.Questions(sess.RoleType)
	embed := applicationEmbed(app, questions)
	if _, err := s.ChannelMessageSendComplex(cfg.ApplicationChannelID, &discordgo.MessageSend{Embed: embed}); err != nil {
		return fmt.Errorf("failed to post application %d: %w", app.ID, err)
	}
	return nil
}

func applicationEmbed(app *db.Application, questions []string) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(app.Answers))
	for i, answer := range app.Answers {
		question := fmt.Sprintf("Question %d", i+1)
		if i < len(questions) {
			question = questions[i]
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  truncate(question, 256),
			Value: truncate(answer, 1024),
		})
	}
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Application #%d — %s", app.ID, app.RoleType),
		Description: fmt.Sprintf("From <@%s>. Approve with `!approve %d`, reject with `!reject %d`.",
			app.UserID, app.ID, app.ID),
		Fields: fields,
		Color:  0x5865f2,
	}
}

func (c *Applications) approve(ctx *bot.Context) error {
	app, err := c.lookupPending(ctx)
	if err != nil || app == nil {
		return err
	}

	if err := c.database.SetApplicationStatus(app.ID, db.StatusApproved); err != nil {
		return fmt.Errorf("failed to approve application %d: %w", app.ID, err)
	}
	if err := c.database.ApproveRole(app.UserID, app.RoleType); err != nil {
		return fmt.Errorf("failed to record approval: %w", err)
	}

	roleID, err := c.roles.GrantMappedRole(ctx.Session, app.GuildID, app.UserID, app.RoleType)
	if err != nil {
		monitoring.Errorf("approved application %d but role grant failed: %v", app.ID, err)
	}

	c.notifyApplicant(ctx.Session, app.UserID,
		fmt.Sprintf("Your application for **%s** was approved. Welcome!", app.RoleType))

	if roleID != "" {
		return ctx.Reply("Approved application #%d and granted <@&%s> to <@%s>.", app.ID, roleID, app.UserID)
	}
	return ctx.Reply("Approved application #%d for <@%s>. No role mapping for %q, nothing granted.",
		app.ID, app.UserID, app.RoleType)
}

func (c *Applications) reject(ctx *bot.Context) error {
	app, err := c.lookupPending(ctx)
	if err != nil || app == nil {
		return err
	}

	if err := c.database.SetApplicationStatus(app.ID, db.StatusRejected); err != nil {
		return fmt.Errorf("failed to reject application %d: %w", app.ID, err)
	}

	c.notifyApplicant(ctx.Session, app.UserID,
		fmt.Sprintf("Your application for **%s** was not approved this time. You can apply again later.", app.RoleType))

	return ctx.Reply("Rejected application #%d.", app.ID)
}

// lookupPending parses the ID argument and loads the application,
// replying to the invoker on user errors. A nil application with nil
// error means the reply was already sent.
func (c *Applications) lookupPending(ctx *bot.Context) (*db.Application, error) {
	if len(ctx.Args) != 1 {
		return nil, ctx.Reply("Usage: %s%s <id>", ctx.Prefix, "approve|reject")
	}
	id, err := strconv.ParseInt(ctx.Args[0], 10, 64)
	if err != nil {
		return nil, ctx.Reply("Invalid application ID %q.", ctx.Args[0])
	}

	app, err := c.database.GetApplication(id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ctx.Reply("No application #%d.", id)
		}
		return nil, fmt.Errorf("failed to load application %d: %w", id, err)
	}
	if app.GuildID != ctx.GuildID() {
		return nil, ctx.Reply("Application #%d belongs to another server.", id)
	}
	if app.Status != db.StatusPending {
		return nil, ctx.Reply("Application #%d is already %s.", id, app.Status)
	}
	return app, nil
}

func (c *Applications) appchannel(ctx *bot.Context) error {
	if len(ctx.Args) != 1 {
		return ctx.Reply("Usage: %sappchannel <channelID>", ctx.Prefix)
	}
	channelID := parseChannelMention(ctx.Args[0])
	if channelID == "" {
		return ctx.Reply("Invalid channel %q. Pass a channel mention or ID.", ctx.Args[0])
	}
	if err := c.database.SetApplicationChannel(ctx.GuildID(), channelID); err != nil {
		return fmt.Errorf("failed to set application channel: %w", err)
	}
	return ctx.Reply("Submitted applications will be posted to <#%s>.", channelID)
}

func (c *Applications) pending(ctx *bot.Context) error {
	apps, err := c.database.ListPendingApplications(ctx.GuildID())
	if err != nil {
		return fmt.Errorf("failed to list pending applications: %w", err)
	}
	if len(apps) == 0 {
		return ctx.Reply("No pending applications.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending:\n", len(apps))
	for _, app := range apps {
		fmt.Fprintf(&b, "- #%d — %s by <@%s>, submitted %s\n",
			app.ID, app.RoleType, app.UserID, app.SubmittedAt.Format("2006-01-02 15:04"))
	}
	return ctx.Reply("%s", b.String())
}

func (c *Applications) notifyApplicant(s discord.Session, userID, text string) {
	dm, err := s.UserChannelCreate(userID)
	if err != nil {
		monitoring.Errorf("failed to open DM with %s: %v", userID, err)
		return
	}
	if _, err := s.ChannelMessageSend(dm.ID, text); err != nil {
		monitoring.Errorf("failed to DM %s: %v", userID, err)
	}
}

func (c *Applications) respondEphemeral(s discord.Session, i *discordgo.InteractionCreate, text string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		monitoring.Errorf("failed to respond to interaction: %v", err)
	}
}

func (c *Applications) dmReply(s discord.Session, channelID, text string) {
	if _, err := s.ChannelMessageSend(channelID, text); err != nil {
		monitoring.Errorf("failed to send DM reply: %v", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func parseChannelMention(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<#"), ">")
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

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
