package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/offbyone-dev/offbyone/internal/httputil"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

// showCommandStatsChart renders the command usage counts as an HTML bar
// chart.
func (s *Server) showCommandStatsChart(w http.ResponseWriter, r *http.Request) {
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

	names := make([]string, 0, len(counts))
	values := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		names = append(names, c.Command)
		values = append(values, opts.BarData{Value: c.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Command Usage", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Command Usage",
			Subtitle: fmt.Sprintf("last %d day(s)", days),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries("uses", values,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		monitoring.Errorf("failed to render usage chart: %v", err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
