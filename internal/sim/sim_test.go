package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/parkside-robotics/intent.report/internal/intent"
)

func joint(agents ...intent.Agent) intent.JointState {
	return intent.JointState{Time: time.Unix(1700000000, 0), Agents: agents}
}

func agentAt(id string, x, y float64) intent.Agent {
	return intent.Agent{ID: id, Role: intent.RoleOther, Pose: intent.Pose{X: x, Y: y}}
}

func TestStraightLine_PointsAtGoal(t *testing.T) {
	o := &StraightLine{Speed: 1.0}
	js := joint(agentAt("a", 0, 0))
	goal := intent.Goal{ID: "g0", Position: intent.Vec2{X: 10, Y: 0}}

	v, err := o.Simulate(context.Background(), js, "a", goal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(v.X-1) > 1e-9 || math.Abs(v.Y) > 1e-9 {
		t.Errorf("expected (1,0), got %+v", v)
	}
}

func TestStraightLine_ZeroAtGoal(t *testing.T) {
	o := &StraightLine{Speed: 1.0}
	js := joint(agentAt("a", 3, 4))
	goal := intent.Goal{ID: "g0", Position: intent.Vec2{X: 3, Y: 4}}

	v, err := o.Simulate(context.Background(), js, "a", goal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.X != 0 || v.Y != 0 {
		t.Errorf("expected zero velocity at goal, got %+v", v)
	}
}

func TestStraightLine_UnknownAgent(t *testing.T) {
	o := &StraightLine{Speed: 1.0}
	if _, err := o.Simulate(context.Background(), joint(), "ghost", intent.Goal{}); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestSocial_RepulsionDeflects(t *testing.T) {
	o, err := NewSocial(DefaultSocialConfig())
	if err != nil {
		t.Fatalf("failed to build oracle: %v", err)
	}
	goal := intent.Goal{ID: "g0", Position: intent.Vec2{X: 10, Y: 0}}

	// Free path: straight toward the goal.
	free, err := o.Simulate(context.Background(), joint(agentAt("a", 0, 0)), "a", goal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free.Y != 0 || free.X <= 0 {
		t.Fatalf("expected straight-line prediction on free path, got %+v", free)
	}

	// A neighbor just off the path pushes the prediction sideways.
	blocked, err := o.Simulate(context.Background(),
		joint(agentAt("a", 0, 0), agentAt("b", 1, 0.2)), "a", goal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blocked.Y >= 0 {
		t.Errorf("expected deflection away from neighbor (negative Y), got %+v", blocked)
	}
	if blocked.X >= free.X {
		t.Errorf("expected reduced forward speed near neighbor: free=%v blocked=%v", free.X, blocked.X)
	}
}

func TestSocial_FarNeighborsIgnored(t *testing.T) {
	o, err := NewSocial(DefaultSocialConfig())
	if err != nil {
		t.Fatalf("failed to build oracle: %v", err)
	}
	goal := intent.Goal{ID: "g0", Position: intent.Vec2{X: 10, Y: 0}}

	alone, _ := o.Simulate(context.Background(), joint(agentAt("a", 0, 0)), "a", goal)
	crowded, _ := o.Simulate(context.Background(),
		joint(agentAt("a", 0, 0), agentAt("b", 50, 50)), "a", goal)

	if alone != crowded {
		t.Errorf("out-of-range neighbor must not affect prediction: %+v vs %+v", alone, crowded)
	}
}

func TestSocial_SpeedCap(t *testing.T) {
	cfg := DefaultSocialConfig()
	cfg.RepulsionGain = 100 // Force the cap to engage.
	o, err := NewSocial(cfg)
	if err != nil {
		t.Fatalf("failed to build oracle: %v", err)
	}
	goal := intent.Goal{ID: "g0", Position: intent.Vec2{X: 10, Y: 0}}

	v, err := o.Simulate(context.Background(),
		joint(agentAt("a", 0, 0), agentAt("b", 0.5, 0)), "a", goal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Norm() > cfg.MaxSpeed+1e-9 {
		t.Errorf("predicted speed %v exceeds cap %v", v.Norm(), cfg.MaxSpeed)
	}
}

func TestSocial_Deterministic(t *testing.T) {
	o, err := NewSocial(DefaultSocialConfig())
	if err != nil {
		t.Fatalf("failed to build oracle: %v", err)
	}
	js := joint(agentAt("a", 0, 0), agentAt("b", 1, 1), agentAt("c", -1, 0.5))
	goal := intent.Goal{ID: "g0", Position: intent.Vec2{X: 5, Y: 5}}

	first, err := o.Simulate(context.Background(), js, "a", goal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := o.Simulate(context.Background(), js, "a", goal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("oracle must be deterministic given inputs: %+v vs %+v", first, again)
		}
	}
}
