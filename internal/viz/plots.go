package viz

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/parkside-robotics/intent.report/internal/db"
)

// BeliefPlot builds a line chart of one agent's belief series: one line
// per goal, probability against cycle.
func BeliefPlot(agentID string, series []db.BeliefPoint) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Goal Beliefs - %s", agentID)
	p.X.Label.Text = "Cycle"
	p.Y.Label.Text = "Probability"
	p.Y.Min = 0
	p.Y.Max = 1

	byGoal := make(map[string]plotter.XYs)
	for _, pt := range series {
		byGoal[pt.GoalID] = append(byGoal[pt.GoalID], plotter.XY{X: float64(pt.Cycle), Y: pt.Probability})
	}

	// Sort goal IDs for consistent legend and colors.
	goalIDs := make([]string, 0, len(byGoal))
	for id := range byGoal {
		goalIDs = append(goalIDs, id)
	}
	sort.Strings(goalIDs)

	for i, id := range goalIDs {
		line, err := plotter.NewLine(byGoal[id])
		if err != nil {
			return nil, fmt.Errorf("goal %s: %w", id, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(id, line)
	}

	return p, nil
}

// WriteBeliefPNG renders the belief plot as a PNG.
func WriteBeliefPNG(w io.Writer, agentID string, series []db.BeliefPoint) error {
	p, err := BeliefPlot(agentID, series)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to build PNG writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write PNG: %w", err)
	}
	return nil
}
