package viz

import (
	"fmt"
	"net/http"

	"github.com/parkside-robotics/intent.report/internal/db"
	"github.com/parkside-robotics/intent.report/internal/httputil"
	"github.com/parkside-robotics/intent.report/internal/intent"
)

// Server serves the visualization pages over HTTP. The live run ID is
// used when a request omits the run parameter.
type Server struct {
	db     *db.DB
	engine *intent.Engine
	runID  string
	outDir string
}

// NewServer builds a visualization server over the given store. outDir
// is where /viz/export writes chart files.
func NewServer(database *db.DB, engine *intent.Engine, runID, outDir string) *Server {
	return &Server{db: database, engine: engine, runID: runID, outDir: outDir}
}

// AttachRoutes mounts the visualization handlers on the given mux.
func (s *Server) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/viz/trajectories", s.handleTrajectories)
	mux.HandleFunc("/viz/beliefs.png", s.handleBeliefPNG)
	mux.HandleFunc("/viz/export", s.handleExport)
}

func (s *Server) resolveRun(r *http.Request) string {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = s.runID
	}
	return runID
}

// handleTrajectories renders every agent's recorded trajectory for a run
// as an ECharts HTML page.
func (s *Server) handleTrajectories(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database attached")
		return
	}
	runID := s.resolveRun(r)
	if runID == "" {
		httputil.BadRequest(w, "missing 'run' parameter")
		return
	}

	agentIDs, err := s.db.AgentIDs(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list agents: %v", err))
		return
	}
	if len(agentIDs) == 0 {
		httputil.NotFound(w, "no observations recorded for run")
		return
	}

	trajectories := make(map[string][]db.ObservationRow, len(agentIDs))
	for _, id := range agentIDs {
		rows, err := s.db.Trajectory(runID, id)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to load trajectory for %s: %v", id, err))
			return
		}
		trajectories[id] = rows
	}

	var goals []intent.Goal
	var beliefs map[string]intent.Distribution
	if s.engine != nil {
		if res, ok := s.engine.Snapshot(); ok {
			goals = res.Goals
			beliefs = res.Beliefs
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderTrajectories(w, runID, trajectories, goals, beliefs); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
}

// handleBeliefPNG renders one agent's belief history as a PNG line chart.
func (s *Server) handleBeliefPNG(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database attached")
		return
	}
	runID := s.resolveRun(r)
	agentID := r.URL.Query().Get("agent")
	if runID == "" || agentID == "" {
		httputil.BadRequest(w, "missing 'run' or 'agent' parameter")
		return
	}

	series, err := s.db.BeliefSeries(runID, agentID, r.URL.Query().Get("goal"))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load beliefs: %v", err))
		return
	}
	if len(series) == 0 {
		httputil.NotFound(w, "no beliefs recorded for agent")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := WriteBeliefPNG(w, agentID, series); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
}

// handleExport writes the run's charts to disk and reports the
// directory they landed in.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database attached")
		return
	}
	runID := s.resolveRun(r)
	if runID == "" {
		httputil.BadRequest(w, "missing 'run' parameter")
		return
	}

	var goals []intent.Goal
	if s.engine != nil {
		if res, ok := s.engine.Snapshot(); ok {
			goals = res.Goals
		}
	}

	outDir, err := ExportRun(s.db, runID, goals, s.outDir)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("export failed: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"dir": outDir})
}
