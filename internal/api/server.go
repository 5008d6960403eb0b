// Package api exposes the bot's status HTTP server: health, usage
// stats, pending applications and a usage chart.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/httputil"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
	"github.com/offbyone-dev/offbyone/internal/timeutil"
	"github.com/offbyone-dev/offbyone/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db    *db.DB
	clock timeutil.Clock
	env   string
}

// NewServer creates the status API server. A nil clock uses real time.
func NewServer(database *db.DB, clock timeutil.Clock, env string) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{db: database, clock: clock, env: env}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/api/stats", s.showCommandStats)
	mux.HandleFunc("/api/applications/pending", s.listPendingApplications)
	mux.HandleFunc("/stats/chart", s.showCommandStatsChart)
	return mux
}

// Handler is ServeMux wrapped in the request logger.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"env":     s.env,
		"version": version.Version,
	})
}

// statsDays parses the optional days query parameter, default 1.
func statsDays(r *http.Request) (int, bool) {
	days := 1
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			return 0, false
		}
		days = parsed
	}
	return days, true
}

func (s *Server) showCommandStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	days, ok := statsDays(r)
	if !ok {
		httputil.BadRequest(w, "invalid 'days' parameter")
		return
	}

	since := s.clock.Now().AddDate(0, 0, -days)
	counts, err := s.db.CommandUsageSince(since)
	if err != nil {
		monitoring.Errorf("failed to load command stats: %v", err)
		httputil.InternalServerError(w, "failed to retrieve command stats")
		return
	}
	if counts == nil {
		counts = []db.CommandCount{}
	}
	httputil.WriteJSONOK(w, counts)
}

func (s *Server) listPendingApplications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	guildID := r.URL.Query().Get("guild")
	if guildID == "" {
		httputil.BadRequest(w, "missing 'guild' parameter")
		return
	}

	apps, err := s.db.ListPendingApplications(guildID)
	if err != nil {
		monitoring.Errorf("failed to load pending applications: %v", err)
		httputil.InternalServerError(w, "failed to retrieve pending applications")
		return
	}
	if apps == nil {
		apps = []db.Application{}
	}
	httputil.WriteJSONOK(w, apps)
}
