// Package sim provides forward-simulation oracles implementing the
// intent.Oracle contract: given the full joint state and one agent's
// hypothesized goal, predict that agent's one-step velocity.
//
// These models are intentionally simple stand-ins for a full
// reciprocal-avoidance planner; the inference core treats whichever
// oracle it is given as a black box.
package sim

import (
	"context"
	"fmt"

	"github.com/parkside-robotics/intent.report/internal/intent"
)

// StraightLine predicts a velocity pointed directly at the goal with no
// collision avoidance. Useful for tests and dev mode.
type StraightLine struct {
	Speed float64 // Preferred speed (m/s)
}

func (s *StraightLine) Simulate(_ context.Context, joint intent.JointState, agentID string, goal intent.Goal) (intent.Vec2, error) {
	agent, ok := joint.Agent(agentID)
	if !ok {
		return intent.Vec2{}, fmt.Errorf("agent %q not in joint state", agentID)
	}
	return steer(agent.Pose.Position(), goal.Position, s.Speed), nil
}

// SocialConfig holds parameters for the Social oracle.
type SocialConfig struct {
	PreferredSpeed float64 // Goal-seeking speed (m/s)
	MaxSpeed       float64 // Hard cap on predicted speed (m/s)
	NeighborRadius float64 // Agents beyond this range exert no repulsion (m)
	RepulsionGain  float64 // Peak repulsion magnitude at zero separation (m/s)
}

// DefaultSocialConfig returns parameters tuned for pedestrian-scale
// scenes.
func DefaultSocialConfig() SocialConfig {
	return SocialConfig{
		PreferredSpeed: 1.2,
		MaxSpeed:       1.8,
		NeighborRadius: 2.0,
		RepulsionGain:  1.0,
	}
}

// Social is a deterministic collision-aware forward model: a preferred
// velocity toward the goal plus pairwise repulsion from every other
// agent within range. It accounts for all agents in the joint state as
// the oracle contract requires.
type Social struct {
	cfg SocialConfig
}

// NewSocial builds a Social oracle.
func NewSocial(cfg SocialConfig) (*Social, error) {
	if cfg.PreferredSpeed <= 0 || cfg.MaxSpeed <= 0 {
		return nil, fmt.Errorf("speeds must be positive, got preferred=%v max=%v", cfg.PreferredSpeed, cfg.MaxSpeed)
	}
	if cfg.NeighborRadius <= 0 {
		return nil, fmt.Errorf("neighbor radius must be positive, got %v", cfg.NeighborRadius)
	}
	return &Social{cfg: cfg}, nil
}

func (s *Social) Simulate(_ context.Context, joint intent.JointState, agentID string, goal intent.Goal) (intent.Vec2, error) {
	agent, ok := joint.Agent(agentID)
	if !ok {
		return intent.Vec2{}, fmt.Errorf("agent %q not in joint state", agentID)
	}
	pos := agent.Pose.Position()

	v := steer(pos, goal.Position, s.cfg.PreferredSpeed)

	// Pairwise repulsion, linearly fading to zero at the neighbor radius.
	for _, other := range joint.Agents {
		if other.ID == agentID {
			continue
		}
		sep := pos.Sub(other.Pose.Position())
		dist := sep.Norm()
		if dist >= s.cfg.NeighborRadius {
			continue
		}
		if dist == 0 {
			// Coincident agents have no well-defined direction; skip
			// rather than inventing one.
			continue
		}
		weight := s.cfg.RepulsionGain * (1 - dist/s.cfg.NeighborRadius)
		v = v.Add(sep.Scale(weight / dist))
	}

	if n := v.Norm(); n > s.cfg.MaxSpeed {
		v = v.Scale(s.cfg.MaxSpeed / n)
	}
	return v, nil
}

// steer returns a velocity of at most speed pointed from pos to target.
// At the target the predicted velocity is zero.
func steer(pos, target intent.Vec2, speed float64) intent.Vec2 {
	d := target.Sub(pos)
	n := d.Norm()
	if n == 0 {
		return intent.Vec2{}
	}
	if n < speed {
		// Close enough that one step at full speed would overshoot.
		return d
	}
	return d.Scale(speed / n)
}

// Verify at compile time that both oracles implement the contract.
var (
	_ intent.Oracle = (*StraightLine)(nil)
	_ intent.Oracle = (*Social)(nil)
)
