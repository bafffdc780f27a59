package intent

import (
	"math"
	"time"
)

// Vec2 is a 2D vector in world frame, metres or metres per second
// depending on context.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Norm returns the Euclidean length of the vector.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// Sub returns v - w.
func (v Vec2) Sub(w Vec2) Vec2 {
	return Vec2{X: v.X - w.X, Y: v.Y - w.Y}
}

// Add returns v + w.
func (v Vec2) Add(w Vec2) Vec2 {
	return Vec2{X: v.X + w.X, Y: v.Y + w.Y}
}

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Pose is a 2D pose in world frame.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Position returns the translational part of the pose.
func (p Pose) Position() Vec2 {
	return Vec2{X: p.X, Y: p.Y}
}

// AgentRole distinguishes the ego robot from other tracked agents.
type AgentRole string

const (
	RoleEgo   AgentRole = "ego"
	RoleOther AgentRole = "other"
)

// Agent is one tracked agent's state for the current cycle. Observations
// carry overwrite semantics: the latest value wins, no interpolation, and
// no history is retained beyond what the belief tracker needs.
type Agent struct {
	ID       string    `json:"id"`
	Role     AgentRole `json:"role"`
	Pose     Pose      `json:"pose"`
	Velocity Vec2      `json:"velocity"`
}

// JointState is the full observation snapshot for one cycle: the ego
// robot and every other tracked agent.
type JointState struct {
	Time   time.Time `json:"time"`
	Agents []Agent   `json:"agents"`
}

// Agent returns the agent with the given ID, or false if not present.
func (js JointState) Agent(id string) (Agent, bool) {
	for _, a := range js.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// AgentIDs returns the IDs of all agents in the snapshot, in order.
func (js JointState) AgentIDs() []string {
	ids := make([]string, len(js.Agents))
	for i, a := range js.Agents {
		ids[i] = a.ID
	}
	return ids
}
