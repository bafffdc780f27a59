package intent

// Distribution maps goal ID to a probability. A distribution reported by
// the tracker is normalized over the cycle's hypothesis set: values lie
// in [0,1] and sum to 1.
type Distribution map[string]float64

// Clone returns a copy of the distribution.
func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// agentBelief holds the persisted per-goal priors for one agent. A goal
// has two conceptual states: uninitialized (no prior established) and
// tracked (prior carried from the previous cycle).
type agentBelief struct {
	prior       map[string]float64
	initialized map[string]bool
	misses      int // Consecutive cycles absent from the joint state
}

func newAgentBelief() *agentBelief {
	return &agentBelief{
		prior:       make(map[string]float64),
		initialized: make(map[string]bool),
	}
}

// BeliefTracker maintains and recursively updates, per agent, a
// normalized probability over the current goal hypotheses. Priors are
// keyed by stable (agentID, goalID) pairs and grow and shrink as agents
// and hypotheses appear or disappear. The tracker is not safe for
// concurrent use; the engine mutates it only between oracle gathering and
// cycle emission.
type BeliefTracker struct {
	cfg    Config
	agents map[string]*agentBelief
}

// NewBeliefTracker creates an empty tracker with the given configuration.
func NewBeliefTracker(cfg Config) *BeliefTracker {
	return &BeliefTracker{
		cfg:    cfg,
		agents: make(map[string]*agentBelief),
	}
}

// Update performs one recursive Bayesian step for a single agent over the
// current hypothesis set and returns the normalized distribution reported
// for this cycle. The reported value and the persisted prior are two
// separate tracks and may differ:
//
//   - A degenerate normalizer (all raw mass zero) reports the uniform
//     distribution but leaves the persisted priors untouched, so one bad
//     cycle does not discard accumulated belief.
//   - A normalized posterior at or below the floor threshold is reported
//     as-is but persisted as the floor value, so no hypothesis prior is
//     ever driven to exactly zero.
//
// Goals seen for the first time (and every goal when reset is true) enter
// at the uniform prior 1/n. An empty hypothesis set returns nil without
// touching any state.
func (bt *BeliefTracker) Update(agentID string, goals []Goal, likelihoods map[string]float64, reset bool) Distribution {
	n := len(goals)
	if n == 0 {
		return nil
	}

	ab, ok := bt.agents[agentID]
	if !ok {
		ab = newAgentBelief()
		bt.agents[agentID] = ab
	}

	uniform := 1.0 / float64(n)

	// Raw (unnormalized) posterior mass per goal.
	raw := make(map[string]float64, n)
	var normalizer float64
	for _, g := range goals {
		if reset || !ab.initialized[g.ID] {
			raw[g.ID] = uniform
			ab.initialized[g.ID] = true
		} else {
			raw[g.ID] = likelihoods[g.ID] * ab.prior[g.ID]
		}
		normalizer += raw[g.ID]
	}

	reported := make(Distribution, n)

	if normalizer == 0 {
		// Degenerate case: every likelihood collapsed. Report uniform but
		// retain the previous priors for the next cycle.
		for _, g := range goals {
			reported[g.ID] = uniform
		}
		return reported
	}

	for _, g := range goals {
		normalized := raw[g.ID] / normalizer
		reported[g.ID] = normalized
		if normalized > bt.cfg.FloorThreshold {
			ab.prior[g.ID] = normalized
		} else {
			ab.prior[g.ID] = bt.cfg.FloorValue
		}
	}

	// Drop priors for hypotheses no longer in the set so the store tracks
	// the live hypothesis space. Only done on a normal cycle; a degenerate
	// cycle must leave the persisted state bit-identical.
	if len(ab.prior) > n {
		live := make(map[string]bool, n)
		for _, g := range goals {
			live[g.ID] = true
		}
		for id := range ab.prior {
			if !live[id] {
				delete(ab.prior, id)
				delete(ab.initialized, id)
			}
		}
	}

	return reported
}

// Prior returns a copy of the persisted prior for an agent, or nil if the
// agent is not tracked. Intended for inspection and tests; the reported
// cycle output comes from Update.
func (bt *BeliefTracker) Prior(agentID string) Distribution {
	ab, ok := bt.agents[agentID]
	if !ok {
		return nil
	}
	out := make(Distribution, len(ab.prior))
	for k, v := range ab.prior {
		out[k] = v
	}
	return out
}

// Sweep advances the lifecycle bookkeeping after a cycle: agents absent
// from the joint state accumulate misses and are evicted once they exceed
// the configured limit. Returns the IDs of evicted agents.
func (bt *BeliefTracker) Sweep(present map[string]bool) []string {
	var evicted []string
	for id, ab := range bt.agents {
		if present[id] {
			ab.misses = 0
			continue
		}
		ab.misses++
		if ab.misses >= bt.cfg.MaxMissedCycles {
			delete(bt.agents, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Remove drops an agent's belief entry immediately (explicit departure).
func (bt *BeliefTracker) Remove(agentID string) {
	delete(bt.agents, agentID)
}

// AgentCount returns the number of agents with tracked beliefs.
func (bt *BeliefTracker) AgentCount() int {
	return len(bt.agents)
}
