// Package planner dispatches ego planning calls to one of two backends:
// a simulation-backed planner that reuses a forward-model oracle, or a
// direct waypoint drive. The dispatcher itself holds no planning logic;
// it tracks the planning/arrived flags and republishes them.
package planner

import (
	"context"
	"fmt"

	"github.com/parkside-robotics/intent.report/internal/intent"
)

// Backend plans one velocity step for the ego robot toward its current
// goal. Implementations keep their own arrival state; Arrived reports
// the outcome of the most recent Step.
type Backend interface {
	SetGoal(goal intent.Goal)
	Step(ctx context.Context, joint intent.JointState) (intent.Vec2, error)
	Arrived() bool
}

// SimBackend plans by asking a forward-model oracle for the ego agent's
// next velocity, the same way the inference core predicts other agents.
type SimBackend struct {
	oracle        intent.Oracle
	egoID         string
	arrivalRadius float64

	goal    intent.Goal
	hasGoal bool
	arrived bool
}

// NewSimBackend builds a simulation-backed planner for the given ego
// agent. arrivalRadius is the distance at which the goal counts as
// reached.
func NewSimBackend(oracle intent.Oracle, egoID string, arrivalRadius float64) (*SimBackend, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle must not be nil")
	}
	if egoID == "" {
		return nil, fmt.Errorf("ego agent ID must not be empty")
	}
	if arrivalRadius <= 0 {
		return nil, fmt.Errorf("arrival radius must be positive, got %v", arrivalRadius)
	}
	return &SimBackend{oracle: oracle, egoID: egoID, arrivalRadius: arrivalRadius}, nil
}

func (b *SimBackend) SetGoal(goal intent.Goal) {
	b.goal = goal
	b.hasGoal = true
	b.arrived = false
}

func (b *SimBackend) Step(ctx context.Context, joint intent.JointState) (intent.Vec2, error) {
	if !b.hasGoal {
		return intent.Vec2{}, fmt.Errorf("no goal set")
	}
	ego, ok := joint.Agent(b.egoID)
	if !ok {
		return intent.Vec2{}, fmt.Errorf("ego agent %q not in joint state", b.egoID)
	}
	if ego.Pose.Position().Sub(b.goal.Position).Norm() <= b.arrivalRadius {
		b.arrived = true
		return intent.Vec2{}, nil
	}
	b.arrived = false
	return b.oracle.Simulate(ctx, joint, b.egoID, b.goal)
}

func (b *SimBackend) Arrived() bool {
	return b.arrived
}

// WaypointBackend drives straight at the goal at a fixed speed with no
// collision avoidance. Used when the sim planner is unavailable or for
// controlled experiments on an empty floor.
type WaypointBackend struct {
	egoID         string
	speed         float64
	arrivalRadius float64

	goal    intent.Goal
	hasGoal bool
	arrived bool
}

// NewWaypointBackend builds a direct-drive planner.
func NewWaypointBackend(egoID string, speed, arrivalRadius float64) (*WaypointBackend, error) {
	if egoID == "" {
		return nil, fmt.Errorf("ego agent ID must not be empty")
	}
	if speed <= 0 {
		return nil, fmt.Errorf("speed must be positive, got %v", speed)
	}
	if arrivalRadius <= 0 {
		return nil, fmt.Errorf("arrival radius must be positive, got %v", arrivalRadius)
	}
	return &WaypointBackend{egoID: egoID, speed: speed, arrivalRadius: arrivalRadius}, nil
}

func (b *WaypointBackend) SetGoal(goal intent.Goal) {
	b.goal = goal
	b.hasGoal = true
	b.arrived = false
}

func (b *WaypointBackend) Step(_ context.Context, joint intent.JointState) (intent.Vec2, error) {
	if !b.hasGoal {
		return intent.Vec2{}, fmt.Errorf("no goal set")
	}
	ego, ok := joint.Agent(b.egoID)
	if !ok {
		return intent.Vec2{}, fmt.Errorf("ego agent %q not in joint state", b.egoID)
	}
	to := b.goal.Position.Sub(ego.Pose.Position())
	dist := to.Norm()
	if dist <= b.arrivalRadius {
		b.arrived = true
		return intent.Vec2{}, nil
	}
	b.arrived = false
	if dist < b.speed {
		// One full-speed step would overshoot; cover the remaining
		// distance instead.
		return to, nil
	}
	return to.Scale(b.speed / dist), nil
}

func (b *WaypointBackend) Arrived() bool {
	return b.arrived
}

var (
	_ Backend = (*SimBackend)(nil)
	_ Backend = (*WaypointBackend)(nil)
)
