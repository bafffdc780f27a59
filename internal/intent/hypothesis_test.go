package intent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCatalogGenerator_Passthrough(t *testing.T) {
	gen := NewCatalogGenerator([]Vec2{{X: 5, Y: 0}, {X: 0, Y: 5}, {X: -5, Y: 0}})

	got, err := gen.Hypotheses()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Goal{
		{ID: "g0", Position: Vec2{X: 5, Y: 0}},
		{ID: "g1", Position: Vec2{X: 0, Y: 5}},
		{ID: "g2", Position: Vec2{X: -5, Y: 0}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}

	// Mutating the returned slice must not corrupt the catalog.
	got[0].Position.X = 99
	again, _ := gen.Hypotheses()
	if again[0].Position.X != 5 {
		t.Errorf("catalog was mutated through returned slice")
	}
}

func TestCatalogGenerator_Empty(t *testing.T) {
	gen := NewCatalogGenerator(nil)
	got, err := gen.Hypotheses()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty hypothesis set, got %v", got)
	}
}

func TestSamplingGenerator_Grid(t *testing.T) {
	gen := &SamplingGenerator{
		Space:      SampleSpace{MinX: 0, MinY: 0, MaxX: 1, MaxY: 2},
		Resolution: 0.5,
	}

	got, err := gen.Hypotheses()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 3 columns x 5 rows
	if len(got) != 15 {
		t.Fatalf("expected 15 sampled goals, got %d", len(got))
	}
	first := Goal{ID: "s0_0", Position: Vec2{X: 0, Y: 0}}
	last := Goal{ID: "s2_4", Position: Vec2{X: 1, Y: 2}}
	if diff := cmp.Diff(first, got[0]); diff != "" {
		t.Errorf("first sample mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(last, got[len(got)-1]); diff != "" {
		t.Errorf("last sample mismatch (-want +got):\n%s", diff)
	}

	for _, g := range got {
		if g.Position.X < 0 || g.Position.X > 1 || g.Position.Y < 0 || g.Position.Y > 2 {
			t.Errorf("sample %s outside space: %+v", g.ID, g.Position)
		}
	}
}

func TestSamplingGenerator_StableOrdering(t *testing.T) {
	gen := &SamplingGenerator{
		Space:      SampleSpace{MinX: -2, MinY: -2, MaxX: 2, MaxY: 2},
		Resolution: 1,
	}
	a, err := gen.Hypotheses()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := gen.Hypotheses()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("sampling must be stable across cycles (-first +second):\n%s", diff)
	}
}

func TestSamplingGenerator_Invalid(t *testing.T) {
	if _, err := (&SamplingGenerator{Resolution: 0}).Hypotheses(); err == nil {
		t.Error("expected error for zero resolution")
	}
	bad := &SamplingGenerator{
		Space:      SampleSpace{MinX: 1, MaxX: 0, MinY: 0, MaxY: 1},
		Resolution: 0.5,
	}
	if _, err := bad.Hypotheses(); err == nil {
		t.Error("expected error for inverted sample space")
	}
}
