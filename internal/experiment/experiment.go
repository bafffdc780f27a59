// Package experiment orchestrates multi-robot goal plans: a shared goal
// catalog plus a per-robot sequence of catalog indexes, advanced as each
// robot arrives at its current target.
package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/parkside-robotics/intent.report/internal/intent"
	"github.com/parkside-robotics/intent.report/internal/planner"
)

// Plan is one robot's tour of the goal catalog.
type Plan struct {
	Sequence []int `json:"sequence"`
	Repeat   bool  `json:"repeat"`
}

// SetupPlan reduces a plan to its first goal with no repeat. Used to
// drive every robot to its starting position before a run.
func SetupPlan(p Plan) Plan {
	if len(p.Sequence) == 0 {
		return Plan{}
	}
	return Plan{Sequence: p.Sequence[:1]}
}

// Config is the experiment description loaded from a JSON file.
type Config struct {
	Goals [][]float64     `json:"goals"`
	Plans map[string]Plan `json:"plans"`
}

// LoadConfig reads and validates an experiment config file.
func LoadConfig(path string) (*Config, error) {
	if filepath.Ext(path) != ".json" {
		return nil, fmt.Errorf("experiment config must be a .json file, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse experiment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the catalog and that every plan index is within it.
func (c *Config) Validate() error {
	if len(c.Goals) == 0 {
		return fmt.Errorf("goal catalog must not be empty")
	}
	for i, g := range c.Goals {
		if len(g) != 2 {
			return fmt.Errorf("goal %d must be [x, y], got %d values", i, len(g))
		}
	}
	if len(c.Plans) == 0 {
		return fmt.Errorf("at least one robot plan is required")
	}
	for id, p := range c.Plans {
		if id == "" {
			return fmt.Errorf("robot ID must not be empty")
		}
		if len(p.Sequence) == 0 {
			return fmt.Errorf("robot %s: plan sequence must not be empty", id)
		}
		for _, idx := range p.Sequence {
			if idx < 0 || idx >= len(c.Goals) {
				return fmt.Errorf("robot %s: goal index %d outside catalog of %d", id, idx, len(c.Goals))
			}
		}
	}
	return nil
}

// Catalog converts the configured goal positions into the shared goal
// catalog, IDs g0..gN-1 in order.
func (c *Config) Catalog() []intent.Goal {
	goals := make([]intent.Goal, len(c.Goals))
	for i, g := range c.Goals {
		goals[i] = intent.Goal{
			ID:       fmt.Sprintf("g%d", i),
			Position: intent.Vec2{X: g[0], Y: g[1]},
		}
	}
	return goals
}

type robotState struct {
	plan       Plan
	cursor     int
	done       bool
	dispatcher *planner.Dispatcher
}

// Progress is one robot's position within its plan.
type Progress struct {
	GoalIndex int  `json:"goal_index"` // catalog index of the current target
	Leg       int  `json:"leg"`        // position within the sequence
	Legs      int  `json:"legs"`
	Done      bool `json:"done"`
}

// Experiment runs goal plans against per-robot planner dispatchers.
type Experiment struct {
	mu      sync.Mutex
	catalog []intent.Goal
	robots  map[string]*robotState
	started bool
}

// New builds an experiment from a validated config and one dispatcher
// per planned robot.
func New(cfg *Config, dispatchers map[string]*planner.Dispatcher) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	robots := make(map[string]*robotState, len(cfg.Plans))
	for id, p := range cfg.Plans {
		d, ok := dispatchers[id]
		if !ok {
			return nil, fmt.Errorf("no dispatcher for robot %s", id)
		}
		robots[id] = &robotState{plan: p, dispatcher: d}
	}
	return &Experiment{catalog: cfg.Catalog(), robots: robots}, nil
}

// Catalog returns the shared goal catalog.
func (e *Experiment) Catalog() []intent.Goal {
	return e.catalog
}

// RobotIDs returns the planned robots in sorted order.
func (e *Experiment) RobotIDs() []string {
	ids := make([]string, 0, len(e.robots))
	for id := range e.robots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start sends every robot its first goal.
func (e *Experiment) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = true
	for id, r := range e.robots {
		r.cursor = 0
		r.done = false
		r.dispatcher.SetGoal(e.catalog[r.plan.Sequence[0]])
		log.Printf("experiment: %s starting leg 1/%d", id, len(r.plan.Sequence))
	}
}

// Step advances every robot by one planning step and handles arrivals:
// an arrived robot moves to its next leg, wraps if its plan repeats, or
// finishes. Returns the velocity command per robot.
func (e *Experiment) Step(ctx context.Context, joint intent.JointState) (map[string]intent.Vec2, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil, fmt.Errorf("experiment not started")
	}

	cmds := make(map[string]intent.Vec2, len(e.robots))
	for id, r := range e.robots {
		if r.done {
			continue
		}
		cmd, err := r.dispatcher.Step(ctx, joint)
		if err != nil {
			return nil, fmt.Errorf("robot %s: %w", id, err)
		}
		cmds[id] = cmd

		st := r.dispatcher.Status()
		if st.Arrived && !st.Planning {
			e.advance(id, r)
		}
	}
	return cmds, nil
}

// advance moves one robot to its next leg. Caller holds the lock.
func (e *Experiment) advance(id string, r *robotState) {
	r.cursor++
	if r.cursor >= len(r.plan.Sequence) {
		if !r.plan.Repeat {
			r.done = true
			log.Printf("experiment: %s finished its plan", id)
			return
		}
		r.cursor = 0
	}
	r.dispatcher.SetGoal(e.catalog[r.plan.Sequence[r.cursor]])
	log.Printf("experiment: %s starting leg %d/%d", id, r.cursor+1, len(r.plan.Sequence))
}

// Done reports whether every robot has finished. Repeating plans never
// finish.
func (e *Experiment) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.robots {
		if !r.done {
			return false
		}
	}
	return true
}

// Progress returns each robot's position within its plan.
func (e *Experiment) Progress() map[string]Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Progress, len(e.robots))
	for id, r := range e.robots {
		cursor := r.cursor
		if cursor >= len(r.plan.Sequence) {
			cursor = len(r.plan.Sequence) - 1
		}
		out[id] = Progress{
			GoalIndex: r.plan.Sequence[cursor],
			Leg:       cursor + 1,
			Legs:      len(r.plan.Sequence),
			Done:      r.done,
		}
	}
	return out
}

// SetGoal overrides one robot's current target with a catalog goal. The
// plan cursor is untouched: arrival resumes the plan from where it was.
func (e *Experiment) SetGoal(robotID string, goalIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.robots[robotID]
	if !ok {
		return fmt.Errorf("unknown robot %s", robotID)
	}
	if goalIndex < 0 || goalIndex >= len(e.catalog) {
		return fmt.Errorf("goal index %d outside catalog of %d", goalIndex, len(e.catalog))
	}
	r.done = false
	r.dispatcher.SetGoal(e.catalog[goalIndex])
	return nil
}

// SetPlan replaces one robot's plan and restarts it from its first leg.
func (e *Experiment) SetPlan(robotID string, p Plan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.robots[robotID]
	if !ok {
		return fmt.Errorf("unknown robot %s", robotID)
	}
	if len(p.Sequence) == 0 {
		return fmt.Errorf("plan sequence must not be empty")
	}
	for _, idx := range p.Sequence {
		if idx < 0 || idx >= len(e.catalog) {
			return fmt.Errorf("goal index %d outside catalog of %d", idx, len(e.catalog))
		}
	}
	r.plan = p
	r.cursor = 0
	r.done = false
	if e.started {
		r.dispatcher.SetGoal(e.catalog[p.Sequence[0]])
	}
	return nil
}
