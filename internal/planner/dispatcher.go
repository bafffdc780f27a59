package planner

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/parkside-robotics/intent.report/internal/intent"
)

// Status is the dispatcher's published planning state after the most
// recent step.
type Status struct {
	Planning bool        `json:"planning"`
	Arrived  bool        `json:"arrived"`
	Goal     intent.Goal `json:"goal"`
}

// Dispatcher forwards ego planning calls to the selected backend and
// tracks the planning/arrived flags across steps. Safe for concurrent
// use: the experiment loop mutates goals while the cycle loop steps.
type Dispatcher struct {
	mu      sync.Mutex
	backend Backend
	status  Status
}

// NewDispatcher wraps the given backend.
func NewDispatcher(backend Backend) (*Dispatcher, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend must not be nil")
	}
	return &Dispatcher{backend: backend}, nil
}

// SetGoal hands the backend a new target and marks planning active.
func (d *Dispatcher) SetGoal(goal intent.Goal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backend.SetGoal(goal)
	d.status = Status{Planning: true, Arrived: false, Goal: goal}
	log.Printf("planner: new goal %s at (%.2f, %.2f)", goal.ID, goal.Position.X, goal.Position.Y)
}

// Step plans one velocity command from the current joint state. When no
// goal is active the command is zero. Arrival flips the planning flag
// off until the next SetGoal.
func (d *Dispatcher) Step(ctx context.Context, joint intent.JointState) (intent.Vec2, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.status.Planning {
		return intent.Vec2{}, nil
	}
	cmd, err := d.backend.Step(ctx, joint)
	if err != nil {
		return intent.Vec2{}, fmt.Errorf("planner step: %w", err)
	}
	if d.backend.Arrived() {
		d.status.Planning = false
		d.status.Arrived = true
		log.Printf("planner: arrived at goal %s", d.status.Goal.ID)
	}
	return cmd, nil
}

// Status returns a snapshot of the published planning state.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
