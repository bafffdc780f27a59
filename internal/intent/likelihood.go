package intent

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Model converts an (observed, predicted) velocity pair into a scalar
// emission likelihood. Implementations must be stateless, total over all
// real inputs (always finite and non-negative, never a domain error), and
// bit-for-bit reproducible from their parameters.
type Model interface {
	Likelihood(observed, predicted Vec2) float64
}

// GaussianModel evaluates a zero-mean bivariate Gaussian density at the
// vector difference (observed - predicted). It is the base emission
// model: per-axis standard deviations with a fixed correlation.
type GaussianModel struct {
	sigmaX, sigmaY, rho float64
	dist                *distmv.Normal
}

// NewGaussianModel builds a Gaussian emission model. Both standard
// deviations must be positive and |rho| must be below 1 for the
// covariance to be positive definite.
func NewGaussianModel(sigmaX, sigmaY, rho float64) (*GaussianModel, error) {
	if sigmaX <= 0 || sigmaY <= 0 {
		return nil, fmt.Errorf("standard deviations must be positive, got (%v, %v)", sigmaX, sigmaY)
	}
	if rho <= -1 || rho >= 1 {
		return nil, fmt.Errorf("correlation must be in (-1, 1), got %v", rho)
	}

	cov := rho * sigmaX * sigmaY
	sigma := mat.NewSymDense(2, []float64{
		sigmaX * sigmaX, cov,
		cov, sigmaY * sigmaY,
	})
	dist, ok := distmv.NewNormal([]float64{0, 0}, sigma, nil)
	if !ok {
		return nil, fmt.Errorf("covariance is not positive definite (sigma=%v,%v rho=%v)", sigmaX, sigmaY, rho)
	}

	return &GaussianModel{sigmaX: sigmaX, sigmaY: sigmaY, rho: rho, dist: dist}, nil
}

// GaussianFromConfig builds the base zero-correlation model with the
// per-axis sigma derived from the acceleration limit and cycle period.
func GaussianFromConfig(cfg Config) (*GaussianModel, error) {
	sigma := cfg.Sigma()
	return NewGaussianModel(sigma, sigma, 0)
}

// Likelihood returns the Gaussian density at (observed - predicted).
func (m *GaussianModel) Likelihood(observed, predicted Vec2) float64 {
	d := observed.Sub(predicted)
	return m.dist.Prob([]float64{d.X, d.Y})
}

var _ Model = (*GaussianModel)(nil)
