// Package db persists inference runs to SQLite: one row per run, per
// cycle, per observed agent, and per (agent, goal) belief. The schema is
// managed by migrations; NewDB applies them on open.
package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/parkside-robotics/intent.report/internal/intent"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the database without touching the schema. Used by the
// migrate subcommand, which manages the schema itself.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Serialize writers; the daemon records from the cycle goroutine
	// while the API reads concurrently.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	return &DB{db}, nil
}

// NewDB opens the database and ensures the schema exists.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			config_json       TEXT
		);
		CREATE TABLE IF NOT EXISTS cycles (
			run_id            TEXT NOT NULL,
			cycle             BIGINT NOT NULL,
			cycle_time        TIMESTAMP,
			goal_count        BIGINT,
			agent_count       BIGINT,
			PRIMARY KEY (run_id, cycle),
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS observations (
			run_id            TEXT NOT NULL,
			cycle             BIGINT NOT NULL,
			agent_id          TEXT NOT NULL,
			role              TEXT,
			x                 DOUBLE,
			y                 DOUBLE,
			theta             DOUBLE,
			vx                DOUBLE,
			vy                DOUBLE,
			PRIMARY KEY (run_id, cycle, agent_id)
		);
		CREATE TABLE IF NOT EXISTS beliefs (
			run_id            TEXT NOT NULL,
			cycle             BIGINT NOT NULL,
			agent_id          TEXT NOT NULL,
			goal_id           TEXT NOT NULL,
			probability       DOUBLE,
			PRIMARY KEY (run_id, cycle, agent_id, goal_id)
		);
		CREATE INDEX IF NOT EXISTS idx_observations_agent
			ON observations (run_id, agent_id, cycle);
		CREATE INDEX IF NOT EXISTS idx_beliefs_agent
			ON beliefs (run_id, agent_id, goal_id, cycle);
	`)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// Run is one recorded inference session.
type Run struct {
	ID         string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	ConfigJSON string    `json:"config_json,omitempty"`
}

// CreateRun inserts a new run row and returns its generated ID.
func (db *DB) CreateRun(configJSON string) (Run, error) {
	run := Run{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		ConfigJSON: configJSON,
	}
	_, err := db.Exec(
		"INSERT INTO runs (run_id, started_at, config_json) VALUES (?, ?, ?)",
		run.ID, run.StartedAt, run.ConfigJSON,
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query("SELECT run_id, started_at, config_json FROM runs ORDER BY started_at DESC LIMIT 100")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var cfg sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &cfg); err != nil {
			return nil, err
		}
		r.ConfigJSON = cfg.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// RecordCycle persists one cycle result atomically: the cycle row, every
// observed agent, and every belief entry.
func (db *DB) RecordCycle(runID string, res intent.CycleResult) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO cycles (run_id, cycle, cycle_time, goal_count, agent_count) VALUES (?, ?, ?, ?, ?)",
		runID, res.Cycle, res.Time, len(res.Goals), len(res.Joint.Agents),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}

	obsStmt, err := tx.Prepare(
		"INSERT INTO observations (run_id, cycle, agent_id, role, x, y, theta, vx, vy) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer obsStmt.Close()
	for _, a := range res.Joint.Agents {
		if _, err := obsStmt.Exec(
			runID, res.Cycle, a.ID, string(a.Role),
			a.Pose.X, a.Pose.Y, a.Pose.Theta,
			a.Velocity.X, a.Velocity.Y,
		); err != nil {
			return fmt.Errorf("failed to insert observation for %s: %w", a.ID, err)
		}
	}

	belStmt, err := tx.Prepare(
		"INSERT INTO beliefs (run_id, cycle, agent_id, goal_id, probability) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer belStmt.Close()
	for agentID, dist := range res.Beliefs {
		for goalID, p := range dist {
			if _, err := belStmt.Exec(runID, res.Cycle, agentID, goalID, p); err != nil {
				return fmt.Errorf("failed to insert belief (%s,%s): %w", agentID, goalID, err)
			}
		}
	}

	return tx.Commit()
}

// ObservationRow is one recorded agent observation.
type ObservationRow struct {
	Cycle   uint64    `json:"cycle"`
	Time    time.Time `json:"time"`
	AgentID string    `json:"agent_id"`
	Role    string    `json:"role"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Theta   float64   `json:"theta"`
	VX      float64   `json:"vx"`
	VY      float64   `json:"vy"`
}

// Trajectory returns every recorded observation of one agent within a
// run, in cycle order.
func (db *DB) Trajectory(runID, agentID string) ([]ObservationRow, error) {
	rows, err := db.Query(`
		SELECT o.cycle, c.cycle_time, o.agent_id, o.role, o.x, o.y, o.theta, o.vx, o.vy
		FROM observations o
		JOIN cycles c ON c.run_id = o.run_id AND c.cycle = o.cycle
		WHERE o.run_id = ? AND o.agent_id = ?
		ORDER BY o.cycle`, runID, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ObservationRow
	for rows.Next() {
		var r ObservationRow
		if err := rows.Scan(&r.Cycle, &r.Time, &r.AgentID, &r.Role, &r.X, &r.Y, &r.Theta, &r.VX, &r.VY); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BeliefPoint is one recorded belief sample.
type BeliefPoint struct {
	Cycle       uint64  `json:"cycle"`
	GoalID      string  `json:"goal_id"`
	Probability float64 `json:"probability"`
}

// BeliefSeries returns the belief history of one agent within a run, in
// cycle order. Pass goalID == "" for every goal.
func (db *DB) BeliefSeries(runID, agentID, goalID string) ([]BeliefPoint, error) {
	query := `SELECT cycle, goal_id, probability FROM beliefs
		WHERE run_id = ? AND agent_id = ?`
	args := []any{runID, agentID}
	if goalID != "" {
		query += " AND goal_id = ?"
		args = append(args, goalID)
	}
	query += " ORDER BY cycle, goal_id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BeliefPoint
	for rows.Next() {
		var p BeliefPoint
		if err := rows.Scan(&p.Cycle, &p.GoalID, &p.Probability); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AgentIDs returns the distinct agent IDs observed within a run.
func (db *DB) AgentIDs(runID string) ([]string, error) {
	rows, err := db.Query("SELECT DISTINCT agent_id FROM observations WHERE run_id = ? ORDER BY agent_id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// AttachAdminRoutes mounts the live SQL console and backup endpoint on
// the debug mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://intent.db", db.DB, &tailsql.DBOptions{
		Label: "Intent DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
