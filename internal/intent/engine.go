package intent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parkside-robotics/intent.report/internal/monitoring"
)

// Oracle is the simulation boundary the core depends on: a forward model
// predicting one agent's one-step velocity under a collision-aware
// navigation policy toward a given goal. It must account for every agent
// in the joint state, not just the queried one. The engine treats it as a
// black box, potentially expensive and deterministic given its inputs,
// and calls it once per (agent, goal) pair per cycle.
type Oracle interface {
	Simulate(ctx context.Context, joint JointState, agentID string, goal Goal) (Vec2, error)
}

// CycleResult is the output of one inference cycle.
type CycleResult struct {
	Cycle   uint64                  `json:"cycle"`
	Time    time.Time               `json:"time"`
	Joint   JointState              `json:"joint"`
	Goals   []Goal                  `json:"goals"`
	Beliefs map[string]Distribution `json:"beliefs"` // agent ID → normalized belief
}

// Consumer receives each cycle's belief distributions. Consumers run on
// the cycle goroutine after the belief update completes; slow consumers
// extend the cycle.
type Consumer interface {
	ConsumeCycle(res CycleResult)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(res CycleResult)

func (f ConsumerFunc) ConsumeCycle(res CycleResult) { f(res) }

// prediction is one oracle result within a cycle.
type prediction struct {
	agentID  string
	goalID   string
	velocity Vec2
	err      error
}

// Engine orchestrates one full inference cycle: pull observations, obtain
// the hypothesis set, invoke the oracle per (agent, goal) pair, evaluate
// likelihoods, run the belief update per agent, and emit the normalized
// distributions to consumers.
//
// RunCycle is run-to-completion and must not be called concurrently with
// itself. ResetBeliefs and Snapshot are safe to call from other
// goroutines (API handlers).
type Engine struct {
	cfg     Config
	gen     Generator
	oracle  Oracle
	model   Model
	beliefs *BeliefTracker

	consumers []Consumer

	mu           sync.Mutex
	cycle        uint64
	resetPending bool
	last         CycleResult
	hasResult    bool
}

// NewEngine builds an engine. A nil model selects the base
// zero-correlation Gaussian derived from the config's sigma.
func NewEngine(cfg Config, gen Generator, oracle Oracle, model Model) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inference config: %w", err)
	}
	if gen == nil {
		return nil, fmt.Errorf("hypothesis generator is required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("simulation oracle is required")
	}
	if model == nil {
		m, err := GaussianFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		model = m
	}
	return &Engine{
		cfg:     cfg,
		gen:     gen,
		oracle:  oracle,
		model:   model,
		beliefs: NewBeliefTracker(cfg),
	}, nil
}

// AddConsumer registers a downstream consumer of cycle results. Not safe
// to call concurrently with RunCycle.
func (e *Engine) AddConsumer(c Consumer) {
	e.consumers = append(e.consumers, c)
}

// ResetBeliefs arms a one-shot reset: the next cycle reinitializes every
// belief to the uniform distribution.
func (e *Engine) ResetBeliefs() {
	e.mu.Lock()
	e.resetPending = true
	e.mu.Unlock()
}

// Snapshot returns the most recent cycle result, if any.
func (e *Engine) Snapshot() (CycleResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.hasResult
}

// RunCycle executes one full inference cycle over the given observation
// snapshot. An empty hypothesis set makes the cycle a no-op: no belief is
// updated or emitted and no error is returned. An oracle failure for one
// agent skips that agent's update (prior retained) without aborting the
// cycle for the others.
func (e *Engine) RunCycle(ctx context.Context, joint JointState) (CycleResult, error) {
	goals, err := e.gen.Hypotheses()
	if err != nil {
		return CycleResult{}, fmt.Errorf("hypothesis generation failed: %w", err)
	}

	e.mu.Lock()
	e.cycle++
	cycle := e.cycle
	reset := e.resetPending || e.cfg.ResetPriors
	e.resetPending = false
	e.mu.Unlock()

	res := CycleResult{
		Cycle:   cycle,
		Time:    joint.Time,
		Joint:   joint,
		Goals:   goals,
		Beliefs: make(map[string]Distribution),
	}

	if len(goals) == 0 {
		return res, nil
	}

	modeled := e.modeledAgents(joint)

	// Gather every predicted velocity before any belief update runs.
	// Updates must never be based on partially-populated predictions.
	preds := e.simulateAll(ctx, joint, modeled, goals)

	present := make(map[string]bool, len(joint.Agents))
	for _, a := range joint.Agents {
		present[a.ID] = true
	}

	for _, agent := range modeled {
		agentPreds, ok := preds[agent.ID]
		if !ok {
			continue // Oracle failed for this agent; prior retained.
		}
		likelihoods := make(map[string]float64, len(goals))
		for _, g := range goals {
			likelihoods[g.ID] = e.model.Likelihood(agent.Velocity, agentPreds[g.ID])
		}
		res.Beliefs[agent.ID] = e.beliefs.Update(agent.ID, goals, likelihoods, reset)
	}

	if evicted := e.beliefs.Sweep(present); len(evicted) > 0 {
		monitoring.Logf("evicted %d stale belief entries: %v", len(evicted), evicted)
	}

	e.mu.Lock()
	e.last = res
	e.hasResult = true
	e.mu.Unlock()

	for _, c := range e.consumers {
		c.ConsumeCycle(res)
	}
	return res, nil
}

// modeledAgents selects the agents whose goals are inferred this cycle.
func (e *Engine) modeledAgents(joint JointState) []Agent {
	agents := make([]Agent, 0, len(joint.Agents))
	for _, a := range joint.Agents {
		if a.Role == RoleEgo && !e.cfg.ModelEgo {
			continue
		}
		agents = append(agents, a)
	}
	return agents
}

// simulateAll invokes the oracle for every (agent, goal) pair, optionally
// fanned out over a bounded worker pool. It returns complete per-agent
// prediction maps; an agent with any failed simulation is omitted
// entirely so a half-predicted agent can never reach the belief update.
func (e *Engine) simulateAll(ctx context.Context, joint JointState, agents []Agent, goals []Goal) map[string]map[string]Vec2 {
	jobs := make([]prediction, 0, len(agents)*len(goals))
	for _, a := range agents {
		for _, g := range goals {
			jobs = append(jobs, prediction{agentID: a.ID, goalID: g.ID})
		}
	}

	workers := e.cfg.Workers
	if workers <= 1 {
		for i := range jobs {
			e.runJob(ctx, joint, goals, &jobs[i])
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, workers)
		for i := range jobs {
			wg.Add(1)
			sem <- struct{}{}
			go func(j *prediction) {
				defer wg.Done()
				defer func() { <-sem }()
				e.runJob(ctx, joint, goals, j)
			}(&jobs[i])
		}
		wg.Wait()
	}

	failed := make(map[string]bool)
	preds := make(map[string]map[string]Vec2, len(agents))
	for _, j := range jobs {
		if j.err != nil {
			if !failed[j.agentID] {
				monitoring.Logf("oracle failed for agent %s goal %s: %v; skipping agent this cycle", j.agentID, j.goalID, j.err)
			}
			failed[j.agentID] = true
			continue
		}
		m, ok := preds[j.agentID]
		if !ok {
			m = make(map[string]Vec2, len(goals))
			preds[j.agentID] = m
		}
		m[j.goalID] = j.velocity
	}
	for id := range failed {
		delete(preds, id)
	}
	return preds
}

func (e *Engine) runJob(ctx context.Context, joint JointState, goals []Goal, j *prediction) {
	goal, ok := findGoal(goals, j.goalID)
	if !ok {
		j.err = fmt.Errorf("unknown goal %q", j.goalID)
		return
	}
	j.velocity, j.err = e.oracle.Simulate(ctx, joint, j.agentID, goal)
}

func findGoal(goals []Goal, id string) (Goal, bool) {
	for _, g := range goals {
		if g.ID == id {
			return g, true
		}
	}
	return Goal{}, false
}
