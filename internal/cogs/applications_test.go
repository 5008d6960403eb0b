package cogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/offbyone-dev/offbyone/internal/config"
	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/discord"
	"github.com/offbyone-dev/offbyone/internal/timeutil"
)

const testFormsYAML = `forms:
  default:
    - "Why do you want to join?"
  helper:
    - "How long have you been in the community?"
    - "What would you help with?"
`

func setupForms(t *testing.T) *config.FormSet {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forms.yml")
	if err := os.WriteFile(path, []byte(testFormsYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	forms, err := config.LoadFormSet(path)
	if err != nil {
		t.Fatalf("failed to load forms: %v", err)
	}
	return forms
}

func setupApplications(t *testing.T) (*Applications, *db.DB, *timeutil.MockClock) {
	t.Helper()
	database := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cog := NewApplications(database, setupForms(t), NewRoles(database), clock)
	registerAll(t, database, cog)
	return cog, database, clock
}

func applyInteraction(guildID, userID, roleType string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: guildID,
		Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "apply",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{
					Name:  "role_type",
					Type:  discordgo.ApplicationCommandOptionString,
					Value: roleType,
				},
			},
		},
	}}
}

// respondedWith returns the content of the single interaction response.
func respondedWith(t *testing.T, session *discord.MockSession) string {
	t.Helper()
	calls := session.CallsTo("InteractionRespond")
	if len(calls) != 1 {
		t.Fatalf("expected 1 interaction response, got %d", len(calls))
	}
	resp := calls[0].Args[1].(*discordgo.InteractionResponse)
	return resp.Data.Content
}

func TestApplyStartsDMSession(t *testing.T) {
	cog, database, _ := setupApplications(t)
	session := discord.NewMockSession()

	if !cog.HandleInteraction(session, applyInteraction("g1", "u1", "helper")) {
		t.Fatal("interaction should be consumed")
	}

	if got := respondedWith(t, session); !strings.Contains(got, "DM") {
		t.Errorf("ack = %q", got)
	}

	sent := session.SentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0], "How long have you been in the community?") {
		t.Errorf("first question not sent: %v", sent)
	}

	sess, err := database.GetSession("u1")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if sess.RoleType != "helper" || sess.GuildID != "g1" || sess.CurrentQuestion != 0 {
		t.Errorf("session = %+v", sess)
	}
}

func TestApplyUnknownRoleTypeFallsBackToDefault(t *testing.T) {
	cog, database, _ := setupApplications(t)
	session := discord.NewMockSession()

	cog.HandleInteraction(session, applyInteraction("g1", "u1", "astronaut"))

	// The default question set applies to unknown role types.
	sent := session.SentMessages()
	if len(sent) != 1 || !strings.Contains(sent[0], "Why do you want to join?") {
		t.Errorf("sent = %v", sent)
	}
	if _, err := database.GetSession("u1"); err != nil {
		t.Errorf("session should exist: %v", err)
	}
}

func TestApplyRateLimited(t *testing.T) {
	cog, database, clock := setupApplications(t)

	for i := 0; i < applyAttemptLimit; i++ {
		if err := database.RecordAttempt("u1", clock.Now().Add(-time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	session := discord.NewMockSession()
	cog.HandleInteraction(session, applyInteraction("g1", "u1", "helper"))

	if got := respondedWith(t, session); !strings.Contains(got, "limit") {
		t.Errorf("response = %q", got)
	}
	if _, err := database.GetSession("u1"); err == nil {
		t.Error("no session should be opened when rate limited")
	}
}

func TestApplyAttemptsExpire(t *testing.T) {
	cog, database, clock := setupApplications(t)

	// Old attempts fall outside the window.
	for i := 0; i < applyAttemptLimit; i++ {
		if err := database.RecordAttempt("u1", clock.Now().Add(-25*time.Hour-time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}

	session := discord.NewMockSession()
	cog.HandleInteraction(session, applyInteraction("g1", "u1", "helper"))

	if _, err := database.GetSession("u1"); err != nil {
		t.Errorf("session should be opened: %v", err)
	}
}

func TestApplyDuplicateSession(t *testing.T) {
	cog, database, _ := setupApplications(t)

	if err := database.StartSession("u1", "g1", "helper"); err != nil {
		t.Fatal(err)
	}

	session := discord.NewMockSession()
	cog.HandleInteraction(session, applyInteraction("g1", "u1", "helper"))

	if got := respondedWith(t, session); !strings.Contains(got, "in progress") {
		t.Errorf("response = %q", got)
	}
}

func TestApplyDuplicateSessionAcrossGuilds(t *testing.T) {
	cog, database, _ := setupApplications(t)

	if err := database.StartSession("u1", "g1", "helper"); err != nil {
		t.Fatal(err)
	}

	// Applying from another guild is refused before any DM is opened, so
	// the live session cannot be cancelled by the failure path.
	session := discord.NewMockSession()
	cog.HandleInteraction(session, applyInteraction("g2", "u1", "helper"))

	if got := respondedWith(t, session); !strings.Contains(got, "in progress") {
		t.Errorf("response = %q", got)
	}
	if calls := session.CallsTo("UserChannelCreate"); len(calls) != 0 {
		t.Errorf("no DM should be opened: %v", calls)
	}

	live, err := database.GetSession("u1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if live.GuildID != "g1" || live.CurrentQuestion != 0 {
		t.Errorf("session = %+v, want untouched g1 session", live)
	}
}

func TestDMFormCompletion(t *testing.T) {
	cog, database, _ := setupApplications(t)
	session := discord.NewMockSession()

	if err := database.SetApplicationChannel("g1", "app-channel"); err != nil {
		t.Fatal(err)
	}

	cog.HandleInteraction(session, applyInteraction("g1", "u1", "helper"))

	if !cog.HandleDM(session, dmMessage("u1", "About two years")) {
		t.Fatal("first answer should be consumed")
	}
	sent := session.SentMessages()
	if !strings.Contains(sent[len(sent)-1], "What would you help with?") {
		t.Errorf("second question not sent: %v", sent)
	}

	if !cog.HandleDM(session, dmMessage("u1", "Moderation and events")) {
		t.Fatal("second answer should be consumed")
	}

	// Session closed, application stored pending.
	if _, err := database.GetSession("u1"); err == nil {
		t.Error("session should be finished")
	}
	apps, err := database.ListPendingApplications("g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 1 {
		t.Fatalf("pending applications = %d, want 1", len(apps))
	}
	if len(apps[0].Answers) != 2 || apps[0].Answers[1] != "Moderation and events" {
		t.Errorf("answers = %v", apps[0].Answers)
	}

	// The embed went to the configured channel.
	embeds := session.CallsTo("ChannelMessageSendComplex")
	if len(embeds) != 1 || embeds[0].Args[0] != "app-channel" {
		t.Errorf("embed calls = %v", embeds)
	}
}

func TestDMCancel(t *testing.T) {
	cog, database, _ := setupApplications(t)
	session := discord.NewMockSession()

	cog.HandleInteraction(session, applyInteraction("g1", "u1", "helper"))

	if !cog.HandleDM(session, dmMessage("u1", "CANCEL")) {
		t.Fatal("cancel should be consumed")
	}
	if _, err := database.GetSession("u1"); err == nil {
		t.Error("session should be cancelled")
	}
	sent := session.SentMessages()
	if !strings.Contains(sent[len(sent)-1], "cancelled") {
		t.Errorf("sent = %v", sent)
	}
}

func TestDMIgnoredWithoutSession(t *testing.T) {
	cog, _, _ := setupApplications(t)
	session := discord.NewMockSession()

	if cog.HandleDM(session, dmMessage("u1", "hello there")) {
		t.Error("DM without a session should not be consumed")
	}
}

func submitApplication(t *testing.T, database *db.DB, userID, guildID, roleType string) int64 {
	t.Helper()
	app := &db.Application{
		UserID:   userID,
		GuildID:  guildID,
		RoleType: roleType,
		Answers:  []string{"answer one", "answer two"},
	}
	if err := database.CreateApplication(app); err != nil {
		t.Fatal(err)
	}
	return app.ID
}

func TestApproveGrantsRoleAndNotifies(t *testing.T) {
	cog, database, _ := setupApplications(t)
	session := discord.NewMockSession()

	id := submitApplication(t, database, "u1", "g1", "helper")
	if err := database.SetRoleMapping("g1", "helper", "role-9"); err != nil {
		t.Fatal(err)
	}

	if err := cog.approve(cmdContext(session, "g1", "mod", "1")); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	app, err := database.GetApplication(id)
	if err != nil {
		t.Fatal(err)
	}
	if app.Status != db.StatusApproved {
		t.Errorf("status = %q", app.Status)
	}

	approved, err := database.HasApprovedRole("u1", "helper")
	if err != nil || !approved {
		t.Errorf("approval not recorded: %v %v", approved, err)
	}

	grants := session.CallsTo("GuildMemberRoleAdd")
	if len(grants) != 1 || grants[0].Args[2] != "role-9" {
		t.Errorf("role grants = %v", grants)
	}

	// Applicant got a DM.
	if dms := session.CallsTo("UserChannelCreate"); len(dms) != 1 || dms[0].Args[0] != "u1" {
		t.Errorf("DM calls = %v", dms)
	}
}

func TestRejectSetsStatus(t *testing.T) {
	cog, database, _ := setupApplications(t)
	session := discord.NewMockSession()

	id := submitApplication(t, database, "u1", "g1", "helper")

	if err := cog.reject(cmdContext(session, "g1", "mod", "1")); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	app, err := database.GetApplication(id)
	if err != nil {
		t.Fatal(err)
	}
	if app.Status != db.StatusRejected {
		t.Errorf("status = %q", app.Status)
	}
}

func TestApproveWrongGuildOrState(t *testing.T) {
	cog, database, _ := setupApplications(t)

	submitApplication(t, database, "u1", "g1", "helper")

	t.Run("wrong guild", func(t *testing.T) {
		session := discord.NewMockSession()
		if err := cog.approve(cmdContext(session, "g2", "mod", "1")); err != nil {
			t.Fatalf("approve returned error: %v", err)
		}
		sent := session.SentMessages()
		if len(sent) != 1 || !strings.Contains(sent[0], "another server") {
			t.Errorf("sent = %v", sent)
		}
	})

	t.Run("already decided", func(t *testing.T) {
		if err := database.SetApplicationStatus(1, db.StatusRejected); err != nil {
			t.Fatal(err)
		}
		session := discord.NewMockSession()
		if err := cog.approve(cmdContext(session, "g1", "mod", "1")); err != nil {
			t.Fatalf("approve returned error: %v", err)
		}
		sent := session.SentMessages()
		if len(sent) != 1 || !strings.Contains(sent[0], "already") {
			t.Errorf("sent = %v", sent)
		}
	})

	t.Run("missing", func(t *testing.T) {
		session := discord.NewMockSession()
		if err := cog.approve(cmdContext(session, "g1", "mod", "42")); err != nil {
			t.Fatalf("approve returned error: %v", err)
		}
		sent := session.SentMessages()
		if len(sent) != 1 || !strings.Contains(sent[0], "No application") {
			t.Errorf("sent = %v", sent)
		}
	})
}

func TestAppchannel(t *testing.T) {
	cog, database, _ := setupApplications(t)
	session := discord.NewMockSession()

	if err := cog.appchannel(cmdContext(session, "g1", "admin", "<#555>")); err != nil {
		t.Fatalf("appchannel failed: %v", err)
	}
	cfg, err := database.GetServerConfig("g1")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ApplicationChannelID != "555" {
		t.Errorf("channel = %q, want 555", cfg.ApplicationChannelID)
	}
}
