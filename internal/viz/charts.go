// Package viz renders debugging visualizations of recorded runs: an
// ECharts HTML view of agent trajectories against the goal catalog, and
// gonum/plot PNG charts of belief series over cycles. These are
// debugging-only endpoints (no auth) for inspecting inference behaviour
// without a frontend.
package viz

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/parkside-robotics/intent.report/internal/db"
	"github.com/parkside-robotics/intent.report/internal/intent"
)

// RenderTrajectories writes an HTML scatter chart of every agent's
// recorded trajectory plus the goal positions. One series per agent, the
// third value dimension carries the cycle number for tooltips. When a
// belief distribution is supplied for an agent its series name is
// annotated with the current top goal.
func RenderTrajectories(w io.Writer, runID string, trajectories map[string][]db.ObservationRow, goals []intent.Goal, beliefs map[string]intent.Distribution) error {
	maxAbs := 1.0
	for _, rows := range trajectories {
		for _, r := range rows {
			if math.Abs(r.X) > maxAbs {
				maxAbs = math.Abs(r.X)
			}
			if math.Abs(r.Y) > maxAbs {
				maxAbs = math.Abs(r.Y)
			}
		}
	}
	for _, g := range goals {
		if math.Abs(g.Position.X) > maxAbs {
			maxAbs = math.Abs(g.Position.X)
		}
		if math.Abs(g.Position.Y) > maxAbs {
			maxAbs = math.Abs(g.Position.Y)
		}
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Agent Trajectories", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Agent Trajectories", Subtitle: fmt.Sprintf("run=%s agents=%d goals=%d", runID, len(trajectories), len(goals))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	// Stable series order for reproducible output.
	agentIDs := make([]string, 0, len(trajectories))
	for id := range trajectories {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)

	for _, id := range agentIDs {
		rows := trajectories[id]
		pts := make([]opts.ScatterData, 0, len(rows))
		for _, r := range rows {
			pts = append(pts, opts.ScatterData{Value: []interface{}{r.X, r.Y, r.Cycle}})
		}
		scatter.AddSeries(seriesName(id, beliefs[id]), pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}

	goalPts := make([]opts.ScatterData, 0, len(goals))
	for _, g := range goals {
		goalPts = append(goalPts, opts.ScatterData{Value: []interface{}{g.Position.X, g.Position.Y, g.ID}})
	}
	scatter.AddSeries("goals", goalPts,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14, Symbol: "diamond"}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#fde725"}),
	)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("failed to render trajectory chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// seriesName annotates an agent series with its current top goal, when a
// belief distribution is available.
func seriesName(agentID string, dist intent.Distribution) string {
	var topGoal string
	var topProb float64
	for goalID, p := range dist {
		if p > topProb {
			topGoal, topProb = goalID, p
		}
	}
	if topGoal == "" {
		return agentID
	}
	return fmt.Sprintf("%s (%s %.2f)", agentID, topGoal, topProb)
}
