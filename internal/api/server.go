package api

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/parkside-robotics/intent.report/internal/config"
	"github.com/parkside-robotics/intent.report/internal/db"
	"github.com/parkside-robotics/intent.report/internal/feed"
	"github.com/parkside-robotics/intent.report/internal/httputil"
	"github.com/parkside-robotics/intent.report/internal/intent"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the inference state over HTTP: the live joint state, the
// current belief distributions, the hypothesis set, recorded runs, and an
// SSE stream of cycle results. It implements intent.Consumer so the engine
// pushes each cycle to the stream subscribers.
type Server struct {
	engine    *intent.Engine
	collector *feed.Collector
	m         feed.FeedMuxInterface
	db        *db.DB
	tuning    *config.TuningConfig
	runID     string

	streamMu    sync.Mutex
	subscribers map[string]chan intent.CycleResult
}

// NewServer builds a Server. The feed mux and database may be nil in
// replay tooling; the corresponding routes then report an error.
func NewServer(engine *intent.Engine, collector *feed.Collector, m feed.FeedMuxInterface, database *db.DB, tuning *config.TuningConfig, runID string) *Server {
	return &Server{
		engine:      engine,
		collector:   collector,
		m:           m,
		db:          database,
		tuning:      tuning,
		runID:       runID,
		subscribers: make(map[string]chan intent.CycleResult),
	}
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
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/agents", s.showAgents)
	mux.HandleFunc("/api/beliefs", s.showBeliefs)
	mux.HandleFunc("/api/beliefs/stream", s.streamBeliefs)
	mux.HandleFunc("/api/goals", s.showGoals)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/reset", s.resetBeliefs)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/trajectory", s.showTrajectory)
	mux.HandleFunc("/api/runs/beliefs", s.showBeliefHistory)
	mux.HandleFunc("/command", s.sendCommandHandler)
	return mux
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.m == nil {
		http.Error(w, "No tracker link attached", http.StatusServiceUnavailable)
		return
	}

	command := r.FormValue("command")

	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}

func (s *Server) showAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	js, ok := s.collector.Latest()
	if !ok {
		// No observations yet: an empty scene, not an error.
		js = intent.JointState{}
	}
	httputil.WriteJSONOK(w, js)
}

func (s *Server) showBeliefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	res, ok := s.engine.Snapshot()
	if !ok {
		httputil.NotFound(w, "no inference cycle has completed yet")
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) showGoals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	goals := []intent.Goal{}
	if res, ok := s.engine.Snapshot(); ok {
		goals = res.Goals
	} else if s.tuning != nil {
		if g, err := s.tuning.Generator().Hypotheses(); err == nil {
			goals = g
		}
	}
	httputil.WriteJSONOK(w, goals)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	cfg := s.tuning
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	httputil.WriteJSONOK(w, cfg)
}

func (s *Server) resetBeliefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	s.engine.ResetBeliefs()
	io.WriteString(w, "Beliefs will reset to uniform on the next cycle")
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database attached")
		return
	}

	runs, err := s.db.Runs()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// runAndAgent resolves the run and agent query parameters; run defaults to
// the live run when the daemon is recording.
func (s *Server) runAndAgent(r *http.Request) (string, string, error) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = s.runID
	}
	if runID == "" {
		return "", "", fmt.Errorf("missing 'run' parameter")
	}
	agentID := r.URL.Query().Get("agent")
	if agentID == "" {
		return "", "", fmt.Errorf("missing 'agent' parameter")
	}
	return runID, agentID, nil
}

func (s *Server) showTrajectory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database attached")
		return
	}

	runID, agentID, err := s.runAndAgent(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	traj, err := s.db.Trajectory(runID, agentID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve trajectory: %v", err))
		return
	}
	if traj == nil {
		traj = []db.ObservationRow{}
	}
	httputil.WriteJSONOK(w, traj)
}

func (s *Server) showBeliefHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no database attached")
		return
	}

	runID, agentID, err := s.runAndAgent(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	series, err := s.db.BeliefSeries(runID, agentID, r.URL.Query().Get("goal"))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve beliefs: %v", err))
		return
	}
	if series == nil {
		series = []db.BeliefPoint{}
	}
	httputil.WriteJSONOK(w, series)
}

// ConsumeCycle implements intent.Consumer: each completed cycle is fanned
// out to the SSE stream subscribers. Slow subscribers drop cycles rather
// than stalling the engine.
func (s *Server) ConsumeCycle(res intent.CycleResult) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- res:
		default:
		}
	}
}

func (s *Server) subscribeStream() (string, chan intent.CycleResult) {
	b := make([]byte, 8)
	crand.Read(b)
	id := hex.EncodeToString(b)
	ch := make(chan intent.CycleResult, 4)
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

func (s *Server) unsubscribeStream(id string) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *Server) streamBeliefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, ch := s.subscribeStream()
	defer s.unsubscribeStream(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	w.(http.Flusher).Flush()

	for {
		select {
		case res, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(res)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}
