package viz

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parkside-robotics/intent.report/internal/db"
	"github.com/parkside-robotics/intent.report/internal/intent"
)

// ExportRun writes one run's charts to disk: trajectories.html plus one
// beliefs_<agent>.png per agent, under a timestamped directory below
// baseDir. Returns the directory it created.
func ExportRun(database *db.DB, runID string, goals []intent.Goal, baseDir string) (string, error) {
	agentIDs, err := database.AgentIDs(runID)
	if err != nil {
		return "", fmt.Errorf("failed to list agents: %w", err)
	}
	if len(agentIDs) == 0 {
		return "", fmt.Errorf("no observations recorded for run %s", runID)
	}

	outDir := filepath.Join(baseDir, time.Now().UTC().Format("20060102T150405"))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	trajectories := make(map[string][]db.ObservationRow, len(agentIDs))
	for _, id := range agentIDs {
		rows, err := database.Trajectory(runID, id)
		if err != nil {
			return "", fmt.Errorf("failed to load trajectory for %s: %w", id, err)
		}
		trajectories[id] = rows
	}

	htmlFile, err := os.Create(filepath.Join(outDir, "trajectories.html"))
	if err != nil {
		return "", err
	}
	defer htmlFile.Close()
	if err := RenderTrajectories(htmlFile, runID, trajectories, goals, nil); err != nil {
		return "", err
	}

	for _, id := range agentIDs {
		series, err := database.BeliefSeries(runID, id, "")
		if err != nil {
			return "", fmt.Errorf("failed to load beliefs for %s: %w", id, err)
		}
		if len(series) == 0 {
			continue // Unmodeled agent (e.g. the ego robot).
		}
		pngFile, err := os.Create(filepath.Join(outDir, fmt.Sprintf("beliefs_%s.png", id)))
		if err != nil {
			return "", err
		}
		if err := WriteBeliefPNG(pngFile, id, series); err != nil {
			pngFile.Close()
			return "", err
		}
		if err := pngFile.Close(); err != nil {
			return "", err
		}
	}
	return outDir, nil
}
