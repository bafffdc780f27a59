package intent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGaussianModel_Validation(t *testing.T) {
	cases := []struct {
		name             string
		sx, sy, rho      float64
		wantErr          bool
	}{
		{"valid", 0.06, 0.06, 0, false},
		{"valid correlated", 0.1, 0.2, 0.5, false},
		{"zero sigma x", 0, 0.06, 0, true},
		{"negative sigma y", 0.06, -1, 0, true},
		{"rho at 1", 0.06, 0.06, 1, true},
		{"rho below -1", 0.06, 0.06, -1.5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGaussianModel(tc.sx, tc.sy, tc.rho)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGaussianModel_PeakValue(t *testing.T) {
	// sigma = 1.2/2 * 0.1 = 0.06 on both axes; density at zero difference
	// is 1/(2*pi*sx*sy).
	m, err := NewGaussianModel(0.06, 0.06, 0)
	require.NoError(t, err)

	got := m.Likelihood(Vec2{X: 1, Y: 0}, Vec2{X: 1, Y: 0})
	want := 1 / (2 * math.Pi * 0.06 * 0.06)
	assert.InDelta(t, want, got, 1e-9)
}

func TestGaussianModel_MatchesClosedForm(t *testing.T) {
	// The model must reproduce the bivariate normal density exactly,
	// including nonzero correlation.
	sx, sy, rho := 0.25, 0.4, 0.3
	m, err := NewGaussianModel(sx, sy, rho)
	require.NoError(t, err)

	closedForm := func(dx, dy float64) float64 {
		r2 := rho * rho
		t1 := dx * dx / (sx * sx)
		t2 := dy * dy / (sy * sy)
		t3 := 2 * rho * dx * dy / (sx * sy)
		norm := 1 / (2 * math.Pi * sx * sy * math.Sqrt(1-r2))
		return norm * math.Exp(-(t1+t2-t3)/(2*(1-r2)))
	}

	for _, d := range []Vec2{
		{0, 0}, {0.1, 0}, {0, -0.2}, {0.3, 0.3}, {-1, 2}, {5, -5},
	} {
		got := m.Likelihood(d, Vec2{})
		assert.InEpsilon(t, closedForm(d.X, d.Y), got, 1e-9, "delta %+v", d)
	}
}

func TestGaussianModel_TotalFunction(t *testing.T) {
	m, err := NewGaussianModel(0.06, 0.06, 0)
	require.NoError(t, err)

	// Always finite and non-negative, even far into the tails.
	for _, d := range []Vec2{
		{0, 0}, {1, 1}, {-3, 4}, {100, -100}, {1e6, 1e6},
	} {
		got := m.Likelihood(d, Vec2{})
		assert.False(t, math.IsNaN(got), "NaN at %+v", d)
		assert.False(t, math.IsInf(got, 0), "Inf at %+v", d)
		assert.GreaterOrEqual(t, got, 0.0, "negative density at %+v", d)
	}
}

func TestGaussianModel_Reproducible(t *testing.T) {
	m1, err := NewGaussianModel(0.06, 0.06, 0)
	require.NoError(t, err)
	m2, err := NewGaussianModel(0.06, 0.06, 0)
	require.NoError(t, err)

	obs := Vec2{X: 0.8, Y: -0.1}
	pred := Vec2{X: 0.75, Y: 0.05}
	a := m1.Likelihood(obs, pred)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a, m1.Likelihood(obs, pred))
		assert.Equal(t, a, m2.Likelihood(obs, pred))
	}
}

func TestConfigSigma(t *testing.T) {
	cfg := DefaultConfig()
	// Two standard deviations span the largest velocity change achievable
	// in one cycle: 1.2/2 * 0.1 = 0.06.
	assert.InDelta(t, 0.06, cfg.Sigma(), 1e-12)
}
