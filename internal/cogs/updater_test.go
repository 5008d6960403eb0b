package cogs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/offbyone-dev/offbyone/internal/discord"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
	"github.com/offbyone-dev/offbyone/internal/updates"
)

func TestUpdaterDeliversToForumPost(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.ResetLogger)

	bus := updates.NewBus()
	defer bus.Close()
	session := discord.NewMockSession()
	cog := NewUpdater(bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cog.Run(ctx, session)
		close(done)
	}()

	bus.Publish(updates.Update{
		Source:      "github.com/example/widgets",
		Title:       "Fix the frobnicator",
		Body:        "Two commits pushed.",
		URL:         "https://github.com/example/widgets/commit/abc",
		ForumPostID: "forum-1",
	})

	waitFor(t, func() bool { return len(session.SentMessages()) == 1 })
	cancel()
	<-done

	sent := session.SentMessages()
	calls := session.CallsTo("ChannelMessageSend")
	if calls[0].Args[0] != "forum-1" {
		t.Errorf("delivered to %v, want forum-1", calls[0].Args[0])
	}
	if !strings.Contains(sent[0], "Fix the frobnicator") || !strings.Contains(sent[0], "commit/abc") {
		t.Errorf("message = %s", sent[0])
	}
}

func TestUpdaterDropsWithoutForumPost(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.ResetLogger)

	session := discord.NewMockSession()
	cog := NewUpdater(updates.NewBus(), nil)

	cog.deliver(session, updates.Update{Title: "orphan"})

	if len(session.Calls) != 0 {
		t.Errorf("nothing should be sent: %v", session.Calls)
	}
}

func TestUpdateCommandForcesPoll(t *testing.T) {
	database := setupTestDB(t)

	t.Run("wired", func(t *testing.T) {
		polled := false
		cog := NewUpdater(updates.NewBus(), func() { polled = true })
		registerAll(t, database, cog)

		session := discord.NewMockSession()
		if err := cog.update(cmdContext(session, "g1", "u1")); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if !polled {
			t.Error("force poll was not invoked")
		}
	})

	t.Run("unwired", func(t *testing.T) {
		cog := NewUpdater(updates.NewBus(), nil)
		session := discord.NewMockSession()
		if err := cog.update(cmdContext(session, "g1", "u1")); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if sent := session.SentMessages(); len(sent) != 1 || !strings.Contains(sent[0], "isn't running") {
			t.Errorf("sent = %v", sent)
		}
	})
}

func TestFormatUpdate(t *testing.T) {
	full := formatUpdate(updates.Update{
		Source: "github.com/o", Title: "New repository: o/gadgets",
		Body: "newer project", URL: "https://github.com/o/gadgets",
	})
	want := "**New repository: o/gadgets** — github.com/o\nnewer project\nhttps://github.com/o/gadgets"
	if full != want {
		t.Errorf("formatted = %q, want %q", full, want)
	}

	// A repo without a description must not leave a blank line between
	// the title and the URL.
	bare := formatUpdate(updates.Update{
		Source: "github.com/o", Title: "New repository: o/widgets",
		URL: "https://github.com/o/widgets",
	})
	want = "**New repository: o/widgets** — github.com/o\nhttps://github.com/o/widgets"
	if bare != want {
		t.Errorf("formatted = %q, want %q", bare, want)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
