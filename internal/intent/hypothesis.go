package intent

import "fmt"

// Goal is one candidate destination an agent might be navigating toward.
// Goals are identified by stable string IDs; beliefs are keyed by
// (agentID, goalID), never by positional slot.
type Goal struct {
	ID       string `json:"id"`
	Position Vec2   `json:"position"`
}

// Generator produces the ordered hypothesis set considered this cycle.
// An empty result is not an error: the engine skips the cycle.
type Generator interface {
	Hypotheses() ([]Goal, error)
}

// CatalogGenerator returns a fixed goal catalog unchanged every cycle.
type CatalogGenerator struct {
	Catalog []Goal
}

// NewCatalogGenerator builds a catalog generator from goal positions,
// assigning sequential IDs ("g0", "g1", ...).
func NewCatalogGenerator(positions []Vec2) *CatalogGenerator {
	catalog := make([]Goal, len(positions))
	for i, p := range positions {
		catalog[i] = Goal{ID: fmt.Sprintf("g%d", i), Position: p}
	}
	return &CatalogGenerator{Catalog: catalog}
}

func (g *CatalogGenerator) Hypotheses() ([]Goal, error) {
	out := make([]Goal, len(g.Catalog))
	copy(out, g.Catalog)
	return out, nil
}

// SampleSpace is an axis-aligned rectangular region of candidate goal
// positions.
type SampleSpace struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// SamplingGenerator discretizes a sample space at a fixed resolution.
// The resulting points are opaque goal hypotheses to the rest of the
// pipeline; ordering is row-major and stable across cycles so the
// synthetic goal IDs stay comparable.
type SamplingGenerator struct {
	Space      SampleSpace
	Resolution float64 // Grid step in metres
}

func (g *SamplingGenerator) Hypotheses() ([]Goal, error) {
	if g.Resolution <= 0 {
		return nil, fmt.Errorf("sampling resolution must be positive, got %v", g.Resolution)
	}
	if g.Space.MaxX < g.Space.MinX || g.Space.MaxY < g.Space.MinY {
		return nil, fmt.Errorf("inverted sample space %+v", g.Space)
	}

	var goals []Goal
	// Index-based stepping avoids accumulating float error across rows.
	nx := int((g.Space.MaxX-g.Space.MinX)/g.Resolution) + 1
	ny := int((g.Space.MaxY-g.Space.MinY)/g.Resolution) + 1
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			goals = append(goals, Goal{
				ID: fmt.Sprintf("s%d_%d", i, j),
				Position: Vec2{
					X: g.Space.MinX + float64(i)*g.Resolution,
					Y: g.Space.MinY + float64(j)*g.Resolution,
				},
			})
		}
	}
	return goals, nil
}

// Verify at compile time that both generators implement Generator.
var (
	_ Generator = (*CatalogGenerator)(nil)
	_ Generator = (*SamplingGenerator)(nil)
)
