package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/parkside-robotics/intent.report/internal/intent"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testCycleResult(cycle uint64) intent.CycleResult {
	return intent.CycleResult{
		Cycle: cycle,
		Time:  time.Unix(1700000000, 0).UTC(),
		Joint: intent.JointState{
			Time: time.Unix(1700000000, 0).UTC(),
			Agents: []intent.Agent{
				{ID: "robot", Role: intent.RoleEgo, Pose: intent.Pose{X: 0, Y: 0, Theta: 0.5}},
				{ID: "ped1", Role: intent.RoleOther, Pose: intent.Pose{X: 1, Y: 2}, Velocity: intent.Vec2{X: 0.8, Y: 0}},
			},
		},
		Goals: []intent.Goal{
			{ID: "g0", Position: intent.Vec2{X: 5, Y: 0}},
			{ID: "g1", Position: intent.Vec2{X: 0, Y: 5}},
		},
		Beliefs: map[string]intent.Distribution{
			"ped1": {"g0": 0.9, "g1": 0.1},
		},
	}
}

func TestCreateRunAndList(t *testing.T) {
	db := setupTestDB(t)

	run, err := db.CreateRun(`{"workers":1}`)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated run ID")
	}

	runs, err := db.Runs()
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].ID != run.ID {
		t.Errorf("run ID mismatch: %s vs %s", runs[0].ID, run.ID)
	}
	if runs[0].ConfigJSON != `{"workers":1}` {
		t.Errorf("config JSON mismatch: %s", runs[0].ConfigJSON)
	}
}

func TestRecordCycleRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	run, err := db.CreateRun("")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := db.RecordCycle(run.ID, testCycleResult(1)); err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}
	res2 := testCycleResult(2)
	res2.Joint.Agents[1].Pose.X = 1.08
	res2.Beliefs["ped1"] = intent.Distribution{"g0": 0.95, "g1": 0.05}
	if err := db.RecordCycle(run.ID, res2); err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}

	traj, err := db.Trajectory(run.ID, "ped1")
	if err != nil {
		t.Fatalf("Trajectory failed: %v", err)
	}
	if len(traj) != 2 {
		t.Fatalf("expected 2 trajectory points, got %d", len(traj))
	}
	if traj[0].Cycle != 1 || traj[1].Cycle != 2 {
		t.Errorf("trajectory not in cycle order: %v", traj)
	}
	if traj[1].X != 1.08 {
		t.Errorf("expected updated X 1.08, got %v", traj[1].X)
	}

	series, err := db.BeliefSeries(run.ID, "ped1", "g0")
	if err != nil {
		t.Fatalf("BeliefSeries failed: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 belief points, got %d", len(series))
	}
	if series[0].Probability != 0.9 || series[1].Probability != 0.95 {
		t.Errorf("unexpected belief series: %v", series)
	}

	all, err := db.BeliefSeries(run.ID, "ped1", "")
	if err != nil {
		t.Fatalf("BeliefSeries failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 belief points across goals, got %d", len(all))
	}

	ids, err := db.AgentIDs(run.ID)
	if err != nil {
		t.Fatalf("AgentIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "ped1" || ids[1] != "robot" {
		t.Errorf("unexpected agent IDs: %v", ids)
	}
}

func TestRecordCycleDuplicateRejected(t *testing.T) {
	db := setupTestDB(t)

	run, err := db.CreateRun("")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := db.RecordCycle(run.ID, testCycleResult(1)); err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}
	if err := db.RecordCycle(run.ID, testCycleResult(1)); err == nil {
		t.Error("expected primary key violation on duplicate cycle")
	}

	// The failed transaction must not leave partial rows behind.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 observations from the first cycle only, got %d", count)
	}
}

func TestMigrateUpDown(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	migrationsDir := "../../migrations"

	if err := db.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	version, dirty, err := db.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if dirty {
		t.Error("database must not be dirty after MigrateUp")
	}
	if version == 0 {
		t.Error("expected nonzero version after MigrateUp")
	}

	// Schema is usable after migrating.
	if _, err := db.CreateRun(""); err != nil {
		t.Fatalf("CreateRun after migrate failed: %v", err)
	}

	if err := db.MigrateDown(migrationsDir); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
}

func TestGetLatestMigrationVersion(t *testing.T) {
	version, err := GetLatestMigrationVersion("../../migrations")
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if version < 1 {
		t.Errorf("expected version >= 1, got %d", version)
	}
}

func TestBaselineAtVersion(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "baseline.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if err := db.BaselineAtVersion(1); err != nil {
		t.Fatalf("BaselineAtVersion failed: %v", err)
	}
	if err := db.BaselineAtVersion(1); err == nil {
		t.Error("expected error when baselining twice")
	}
}
