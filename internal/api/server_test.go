package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
	"github.com/offbyone-dev/offbyone/internal/testutil"
	"github.com/offbyone-dev/offbyone/internal/timeutil"
)

func setupServer(t *testing.T) (*Server, *db.DB, *timeutil.MockClock) {
	t.Helper()

	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.ResetLogger)

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewServer(database, clock, "test"), database, clock
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewTestRequest(http.MethodGet, path)
	rec := testutil.NewTestRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := setupServer(t)

	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["env"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	s, _, _ := setupServer(t)

	req := testutil.NewTestRequest(http.MethodPost, "/healthz")
	rec := testutil.NewTestRecorder()
	s.Handler().ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestCommandStats(t *testing.T) {
	s, database, clock := setupServer(t)

	for i := 0; i < 3; i++ {
		if err := database.RecordCommandUse("meme", "u1", "g1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := database.RecordCommandUse("syntax", "u2", "g1"); err != nil {
		t.Fatal(err)
	}

	// RecordCommandUse stamps real time; keep the mock clock near it.
	clock.Set(time.Now())

	rec := get(t, s, "/api/stats?days=7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var counts []db.CommandCount
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(counts) != 2 || counts[0].Command != "meme" || counts[0].Count != 3 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestCommandStatsBadDays(t *testing.T) {
	s, _, _ := setupServer(t)

	for _, q := range []string{"?days=0", "?days=soon", "?days=-1"} {
		rec := get(t, s, "/api/stats"+q)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rec.Code)
		}
	}
}

func TestPendingApplications(t *testing.T) {
	s, database, _ := setupServer(t)

	app := &db.Application{UserID: "u1", GuildID: "g1", RoleType: "helper", Answers: []string{"a"}}
	if err := database.CreateApplication(app); err != nil {
		t.Fatal(err)
	}

	rec := get(t, s, "/api/applications/pending?guild=g1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var apps []db.Application
	if err := json.Unmarshal(rec.Body.Bytes(), &apps); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(apps) != 1 || apps[0].RoleType != "helper" {
		t.Errorf("apps = %+v", apps)
	}

	// Other guilds see an empty list, not null.
	rec = get(t, s, "/api/applications/pending?guild=g2")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestPendingApplicationsRequiresGuild(t *testing.T) {
	s, _, _ := setupServer(t)

	rec := get(t, s, "/api/applications/pending")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestCommandStatsChart(t *testing.T) {
	s, database, clock := setupServer(t)

	if err := database.RecordCommandUse("meme", "u1", "g1"); err != nil {
		t.Fatal(err)
	}
	clock.Set(time.Now())

	rec := get(t, s, "/stats/chart")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Command Usage") {
		t.Error("chart HTML missing title")
	}
}
