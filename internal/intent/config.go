package intent

import "fmt"

// Defaults for the inference configuration. The floor constants implement
// the recoverability clamp: a persisted prior is never allowed to reach
// exactly zero, because a purely multiplicative Bayesian update could
// never recover it regardless of later evidence.
const (
	// DefaultMaxAcceleration is the largest feasible velocity change per
	// second for a tracked agent (m/s²).
	DefaultMaxAcceleration = 1.2
	// DefaultCyclePeriod is the control-cycle period in seconds.
	DefaultCyclePeriod = 0.1
	// DefaultFloorThreshold is the normalized posterior below which the
	// persisted prior is clamped.
	DefaultFloorThreshold = 0.01
	// DefaultFloorValue is the clamped prior value.
	DefaultFloorValue = 0.005
	// DefaultMaxMissedCycles is how many consecutive cycles an agent may
	// be absent from the joint state before its belief entry is evicted.
	DefaultMaxMissedCycles = 50
)

// Config holds the inference parameters for one engine instance. It is an
// explicit value passed in at construction, not ambient process state.
type Config struct {
	MaxAcceleration float64 // Maximum feasible acceleration (m/s²)
	CyclePeriod     float64 // Control-cycle period (s)
	FloorThreshold  float64 // Posterior floor threshold
	FloorValue      float64 // Posterior floor value
	ResetPriors     bool    // Reinitialize beliefs to uniform every cycle
	MaxMissedCycles int     // Consecutive misses before belief eviction
	Workers         int     // Oracle fan-out; <=1 means sequential
	ModelEgo        bool    // Infer goals for the ego robot as well
}

// DefaultConfig returns the default inference configuration.
func DefaultConfig() Config {
	return Config{
		MaxAcceleration: DefaultMaxAcceleration,
		CyclePeriod:     DefaultCyclePeriod,
		FloorThreshold:  DefaultFloorThreshold,
		FloorValue:      DefaultFloorValue,
		MaxMissedCycles: DefaultMaxMissedCycles,
		Workers:         1,
	}
}

// Sigma returns the per-axis velocity noise standard deviation derived
// from the acceleration limit: two standard deviations span the largest
// velocity change physically achievable in one cycle.
func (c Config) Sigma() float64 {
	return c.MaxAcceleration / 2 * c.CyclePeriod
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.MaxAcceleration <= 0 {
		return fmt.Errorf("max acceleration must be positive, got %v", c.MaxAcceleration)
	}
	if c.CyclePeriod <= 0 {
		return fmt.Errorf("cycle period must be positive, got %v", c.CyclePeriod)
	}
	if c.FloorThreshold <= 0 || c.FloorThreshold >= 1 {
		return fmt.Errorf("floor threshold must be in (0,1), got %v", c.FloorThreshold)
	}
	if c.FloorValue <= 0 || c.FloorValue >= c.FloorThreshold {
		return fmt.Errorf("floor value must be in (0, threshold), got %v", c.FloorValue)
	}
	if c.MaxMissedCycles < 1 {
		return fmt.Errorf("max missed cycles must be >= 1, got %d", c.MaxMissedCycles)
	}
	return nil
}
