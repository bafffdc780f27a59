package intent

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"
)

// scriptedOracle returns velocities from a fixed table. Unknown pairs
// fall back to a straight unit step toward the goal.
type scriptedOracle struct {
	velocities map[string]map[string]Vec2 // agent → goal → velocity
	failAgents map[string]bool
	calls      int
}

func (o *scriptedOracle) Simulate(_ context.Context, joint JointState, agentID string, goal Goal) (Vec2, error) {
	o.calls++
	if o.failAgents[agentID] {
		return Vec2{}, fmt.Errorf("simulator rejected agent %s", agentID)
	}
	if m, ok := o.velocities[agentID]; ok {
		if v, ok := m[goal.ID]; ok {
			return v, nil
		}
	}
	a, ok := joint.Agent(agentID)
	if !ok {
		return Vec2{}, fmt.Errorf("agent %s not in joint state", agentID)
	}
	d := goal.Position.Sub(a.Pose.Position())
	if n := d.Norm(); n > 0 {
		d = d.Scale(1 / n)
	}
	return d, nil
}

// captureConsumer records every emitted cycle result.
type captureConsumer struct {
	results []CycleResult
}

func (c *captureConsumer) ConsumeCycle(res CycleResult) {
	c.results = append(c.results, res)
}

func testJoint(agents ...Agent) JointState {
	return JointState{Time: time.Unix(1700000000, 0), Agents: agents}
}

func pedestrian(id string, x, y, vx, vy float64) Agent {
	return Agent{ID: id, Role: RoleOther, Pose: Pose{X: x, Y: y}, Velocity: Vec2{X: vx, Y: vy}}
}

func newTestEngine(t *testing.T, cfg Config, gen Generator, oracle Oracle) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, gen, oracle, nil)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return e
}

func TestEngine_CycleProducesNormalizedBeliefs(t *testing.T) {
	gen := NewCatalogGenerator([]Vec2{{X: 5, Y: 0}, {X: 0, Y: 5}, {X: -5, Y: 0}})
	oracle := &scriptedOracle{}
	e := newTestEngine(t, DefaultConfig(), gen, oracle)

	joint := testJoint(
		pedestrian("ped1", 0, 0, 1, 0),
		pedestrian("ped2", 1, 1, 0, 1),
	)

	res, err := e.RunCycle(context.Background(), joint)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(res.Beliefs) != 2 {
		t.Fatalf("expected beliefs for 2 agents, got %d", len(res.Beliefs))
	}
	for id, dist := range res.Beliefs {
		var sum float64
		for _, p := range dist {
			if p < 0 || p > 1 {
				t.Errorf("agent %s: probability out of range: %v", id, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("agent %s: beliefs must sum to 1, got %v", id, sum)
		}
	}

	// One oracle call per (agent, goal) pair.
	if oracle.calls != 2*3 {
		t.Errorf("expected 6 oracle calls, got %d", oracle.calls)
	}
}

func TestEngine_EmptyHypothesisSetIsNoOp(t *testing.T) {
	gen := NewCatalogGenerator(nil)
	oracle := &scriptedOracle{}
	e := newTestEngine(t, DefaultConfig(), gen, oracle)

	sink := &captureConsumer{}
	e.AddConsumer(sink)

	res, err := e.RunCycle(context.Background(), testJoint(pedestrian("ped1", 0, 0, 1, 0)))
	if err != nil {
		t.Fatalf("empty hypothesis set must not error: %v", err)
	}
	if len(res.Beliefs) != 0 {
		t.Errorf("expected no beliefs, got %v", res.Beliefs)
	}
	if oracle.calls != 0 {
		t.Errorf("oracle must not be called, got %d calls", oracle.calls)
	}
	if len(sink.results) != 0 {
		t.Errorf("consumers must not be notified on a skipped cycle")
	}
}

func TestEngine_OracleFailureSkipsAgentOnly(t *testing.T) {
	gen := NewCatalogGenerator([]Vec2{{X: 5, Y: 0}, {X: -5, Y: 0}})
	oracle := &scriptedOracle{failAgents: map[string]bool{"ped1": true}}
	e := newTestEngine(t, DefaultConfig(), gen, oracle)

	joint := testJoint(
		pedestrian("ped1", 0, 0, 1, 0),
		pedestrian("ped2", 1, 1, 0, 1),
	)

	res, err := e.RunCycle(context.Background(), joint)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if _, ok := res.Beliefs["ped1"]; ok {
		t.Error("failed agent must not receive a belief this cycle")
	}
	if _, ok := res.Beliefs["ped2"]; !ok {
		t.Error("healthy agent must still be updated")
	}
}

func TestEngine_EgoExcludedByDefault(t *testing.T) {
	gen := NewCatalogGenerator([]Vec2{{X: 5, Y: 0}})
	oracle := &scriptedOracle{}
	e := newTestEngine(t, DefaultConfig(), gen, oracle)

	ego := Agent{ID: "robot", Role: RoleEgo, Velocity: Vec2{X: 1, Y: 0}}
	res, err := e.RunCycle(context.Background(), testJoint(ego, pedestrian("ped1", 0, 0, 1, 0)))
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if _, ok := res.Beliefs["robot"]; ok {
		t.Error("ego must not be modeled unless ModelEgo is set")
	}

	cfg := DefaultConfig()
	cfg.ModelEgo = true
	e2 := newTestEngine(t, cfg, gen, oracle)
	res, err = e2.RunCycle(context.Background(), testJoint(ego))
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if _, ok := res.Beliefs["robot"]; !ok {
		t.Error("ego must be modeled when ModelEgo is set")
	}
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	goals := []Vec2{{X: 5, Y: 0}, {X: 0, Y: 5}, {X: -5, Y: 0}, {X: 0, Y: -5}}
	joint := testJoint(
		pedestrian("ped1", 0, 0, 0.8, 0.1),
		pedestrian("ped2", 2, -1, -0.5, 0.5),
		pedestrian("ped3", -3, 4, 0, -1),
	)

	run := func(workers int, cycles int) map[string]Distribution {
		cfg := DefaultConfig()
		cfg.Workers = workers
		e := newTestEngine(t, cfg, NewCatalogGenerator(goals), &scriptedOracle{})
		var last CycleResult
		for i := 0; i < cycles; i++ {
			var err error
			last, err = e.RunCycle(context.Background(), joint)
			if err != nil {
				t.Fatalf("cycle failed: %v", err)
			}
		}
		return last.Beliefs
	}

	seq := run(1, 5)
	par := run(4, 5)

	for id, dist := range seq {
		for gid, p := range dist {
			if par[id][gid] != p {
				t.Errorf("parallel result diverged for (%s,%s): %v vs %v", id, gid, p, par[id][gid])
			}
		}
	}
}

func TestEngine_ResetBeliefsIsOneShot(t *testing.T) {
	gen := NewCatalogGenerator([]Vec2{{X: 5, Y: 0}, {X: -5, Y: 0}})
	oracle := &scriptedOracle{velocities: map[string]map[string]Vec2{
		"ped1": {"g0": {X: 1, Y: 0}, "g1": {X: -1, Y: 0}},
	}}
	e := newTestEngine(t, DefaultConfig(), gen, oracle)

	joint := testJoint(pedestrian("ped1", 0, 0, 1, 0))

	// Cycle 1 initializes, cycle 2 concentrates on g0.
	e.RunCycle(context.Background(), joint)
	res, _ := e.RunCycle(context.Background(), joint)
	if res.Beliefs["ped1"]["g0"] < 0.9 {
		t.Fatalf("expected concentration on g0 before reset, got %v", res.Beliefs["ped1"])
	}

	e.ResetBeliefs()
	res, _ = e.RunCycle(context.Background(), joint)
	if math.Abs(res.Beliefs["ped1"]["g0"]-0.5) > 1e-6 {
		t.Errorf("reset cycle must report uniform, got %v", res.Beliefs["ped1"])
	}

	// Reset is consumed: the following cycle resumes recursive updates.
	res, _ = e.RunCycle(context.Background(), joint)
	if res.Beliefs["ped1"]["g0"] < 0.9 {
		t.Errorf("reset must be one-shot, got %v", res.Beliefs["ped1"])
	}
}

func TestEngine_EvictionAfterMissedCycles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMissedCycles = 2
	gen := NewCatalogGenerator([]Vec2{{X: 5, Y: 0}})
	e := newTestEngine(t, cfg, gen, &scriptedOracle{})

	e.RunCycle(context.Background(), testJoint(pedestrian("ped1", 0, 0, 1, 0)))
	if e.beliefs.AgentCount() != 1 {
		t.Fatalf("expected tracked agent after first cycle")
	}

	empty := testJoint()
	e.RunCycle(context.Background(), empty)
	e.RunCycle(context.Background(), empty)
	if e.beliefs.AgentCount() != 0 {
		t.Errorf("expected eviction after %d missed cycles", cfg.MaxMissedCycles)
	}
}

func TestEngine_ConsumersAndSnapshot(t *testing.T) {
	gen := NewCatalogGenerator([]Vec2{{X: 5, Y: 0}})
	e := newTestEngine(t, DefaultConfig(), gen, &scriptedOracle{})

	sink := &captureConsumer{}
	e.AddConsumer(sink)
	var fnCalls int
	e.AddConsumer(ConsumerFunc(func(CycleResult) { fnCalls++ }))

	if _, ok := e.Snapshot(); ok {
		t.Error("snapshot must be empty before the first cycle")
	}

	joint := testJoint(pedestrian("ped1", 0, 0, 1, 0))
	res, err := e.RunCycle(context.Background(), joint)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(sink.results) != 1 || fnCalls != 1 {
		t.Fatalf("expected both consumers notified once, got %d and %d", len(sink.results), fnCalls)
	}
	snap, ok := e.Snapshot()
	if !ok {
		t.Fatal("expected snapshot after cycle")
	}
	if snap.Cycle != res.Cycle || snap.Cycle != 1 {
		t.Errorf("snapshot cycle mismatch: %d vs %d", snap.Cycle, res.Cycle)
	}
}
