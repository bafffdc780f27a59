// Package config loads the JSON tuning file shared by the daemon and
// the offline tools. Fields are pointers so a partial file overrides
// only what it mentions; the Get* accessors supply defaults for the
// rest.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parkside-robotics/intent.report/internal/intent"
	"github.com/parkside-robotics/intent.report/internal/sim"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same JSON serves
// both startup configuration and runtime inspection.
type TuningConfig struct {
	// Inference params
	MaxAcceleration *float64 `json:"max_acceleration,omitempty"`
	CyclePeriod     *string  `json:"cycle_period,omitempty"` // duration string like "100ms"
	FloorThreshold  *float64 `json:"floor_threshold,omitempty"`
	FloorValue      *float64 `json:"floor_value,omitempty"`
	ResetPriors     *bool    `json:"reset_priors,omitempty"`
	MaxMissedCycles *int     `json:"max_missed_cycles,omitempty"`
	Workers         *int     `json:"workers,omitempty"`
	ModelEgo        *bool    `json:"model_ego,omitempty"`

	// Hypothesis params: either a fixed goal catalog ([x, y] pairs) or
	// a sampled region ([min_x, min_y, max_x, max_y] plus a resolution).
	Goals            [][]float64 `json:"goals,omitempty"`
	SampleSpace      []float64   `json:"sample_space,omitempty"`
	SampleResolution *float64    `json:"sample_resolution,omitempty"`

	// Oracle params
	PreferredSpeed *float64 `json:"preferred_speed,omitempty"`
	MaxSpeed       *float64 `json:"max_speed,omitempty"`
	NeighborRadius *float64 `json:"neighbor_radius,omitempty"`
	RepulsionGain  *float64 `json:"repulsion_gain,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are sensible.
func (c *TuningConfig) Validate() error {
	if c.MaxAcceleration != nil && *c.MaxAcceleration <= 0 {
		return fmt.Errorf("max_acceleration must be positive, got %f", *c.MaxAcceleration)
	}
	if c.CyclePeriod != nil && *c.CyclePeriod != "" {
		d, err := time.ParseDuration(*c.CyclePeriod)
		if err != nil {
			return fmt.Errorf("invalid cycle_period %q: %w", *c.CyclePeriod, err)
		}
		if d <= 0 {
			return fmt.Errorf("cycle_period must be positive, got %s", d)
		}
	}
	if c.FloorThreshold != nil && (*c.FloorThreshold <= 0 || *c.FloorThreshold >= 1) {
		return fmt.Errorf("floor_threshold must be in (0,1), got %f", *c.FloorThreshold)
	}
	if c.FloorValue != nil && *c.FloorValue <= 0 {
		return fmt.Errorf("floor_value must be positive, got %f", *c.FloorValue)
	}
	if c.MaxMissedCycles != nil && *c.MaxMissedCycles < 1 {
		return fmt.Errorf("max_missed_cycles must be >= 1, got %d", *c.MaxMissedCycles)
	}
	for i, g := range c.Goals {
		if len(g) != 2 {
			return fmt.Errorf("goal %d must be an [x, y] pair, got %v", i, g)
		}
	}
	if c.SampleSpace != nil && len(c.SampleSpace) != 4 {
		return fmt.Errorf("sample_space must be [min_x, min_y, max_x, max_y], got %v", c.SampleSpace)
	}
	if len(c.SampleSpace) == 4 && c.GetSampleResolution() <= 0 {
		return fmt.Errorf("sample_resolution must be positive when sample_space is set")
	}
	if len(c.Goals) > 0 && len(c.SampleSpace) == 4 {
		return fmt.Errorf("goals and sample_space are mutually exclusive")
	}
	return nil
}

// GetCyclePeriod parses and returns the CyclePeriod as a time.Duration.
func (c *TuningConfig) GetCyclePeriod() time.Duration {
	if c.CyclePeriod == nil || *c.CyclePeriod == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.CyclePeriod)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetMaxAcceleration returns the max_acceleration value or the default.
func (c *TuningConfig) GetMaxAcceleration() float64 {
	if c.MaxAcceleration == nil {
		return intent.DefaultMaxAcceleration
	}
	return *c.MaxAcceleration
}

// GetFloorThreshold returns the floor_threshold value or the default.
func (c *TuningConfig) GetFloorThreshold() float64 {
	if c.FloorThreshold == nil {
		return intent.DefaultFloorThreshold
	}
	return *c.FloorThreshold
}

// GetFloorValue returns the floor_value value or the default.
func (c *TuningConfig) GetFloorValue() float64 {
	if c.FloorValue == nil {
		return intent.DefaultFloorValue
	}
	return *c.FloorValue
}

// GetResetPriors returns the reset_priors value or the default.
func (c *TuningConfig) GetResetPriors() bool {
	if c.ResetPriors == nil {
		return false
	}
	return *c.ResetPriors
}

// GetMaxMissedCycles returns the max_missed_cycles value or the default.
func (c *TuningConfig) GetMaxMissedCycles() int {
	if c.MaxMissedCycles == nil {
		return intent.DefaultMaxMissedCycles
	}
	return *c.MaxMissedCycles
}

// GetWorkers returns the workers value or the default (sequential).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetModelEgo returns the model_ego value or the default.
func (c *TuningConfig) GetModelEgo() bool {
	if c.ModelEgo == nil {
		return false
	}
	return *c.ModelEgo
}

// GetSampleResolution returns the sample_resolution value or the default.
func (c *TuningConfig) GetSampleResolution() float64 {
	if c.SampleResolution == nil {
		return 1.0
	}
	return *c.SampleResolution
}

// GetPreferredSpeed returns the preferred_speed value or the default.
func (c *TuningConfig) GetPreferredSpeed() float64 {
	if c.PreferredSpeed == nil {
		return sim.DefaultSocialConfig().PreferredSpeed
	}
	return *c.PreferredSpeed
}

// GetMaxSpeed returns the max_speed value or the default.
func (c *TuningConfig) GetMaxSpeed() float64 {
	if c.MaxSpeed == nil {
		return sim.DefaultSocialConfig().MaxSpeed
	}
	return *c.MaxSpeed
}

// GetNeighborRadius returns the neighbor_radius value or the default.
func (c *TuningConfig) GetNeighborRadius() float64 {
	if c.NeighborRadius == nil {
		return sim.DefaultSocialConfig().NeighborRadius
	}
	return *c.NeighborRadius
}

// GetRepulsionGain returns the repulsion_gain value or the default.
func (c *TuningConfig) GetRepulsionGain() float64 {
	if c.RepulsionGain == nil {
		return sim.DefaultSocialConfig().RepulsionGain
	}
	return *c.RepulsionGain
}

// InferenceConfig assembles the engine configuration from the tuning
// values.
func (c *TuningConfig) InferenceConfig() intent.Config {
	return intent.Config{
		MaxAcceleration: c.GetMaxAcceleration(),
		CyclePeriod:     c.GetCyclePeriod().Seconds(),
		FloorThreshold:  c.GetFloorThreshold(),
		FloorValue:      c.GetFloorValue(),
		ResetPriors:     c.GetResetPriors(),
		MaxMissedCycles: c.GetMaxMissedCycles(),
		Workers:         c.GetWorkers(),
		ModelEgo:        c.GetModelEgo(),
	}
}

// SocialConfig assembles the forward-model configuration from the
// tuning values.
func (c *TuningConfig) SocialConfig() sim.SocialConfig {
	return sim.SocialConfig{
		PreferredSpeed: c.GetPreferredSpeed(),
		MaxSpeed:       c.GetMaxSpeed(),
		NeighborRadius: c.GetNeighborRadius(),
		RepulsionGain:  c.GetRepulsionGain(),
	}
}

// Generator builds the hypothesis generator declared by the config: a
// sampling generator when a sample space is declared, otherwise a fixed
// catalog from the listed goals. An empty catalog is the safe default;
// the engine then skips every cycle until goals arrive.
func (c *TuningConfig) Generator() intent.Generator {
	if len(c.SampleSpace) == 4 {
		return &intent.SamplingGenerator{
			Space: intent.SampleSpace{
				MinX: c.SampleSpace[0],
				MinY: c.SampleSpace[1],
				MaxX: c.SampleSpace[2],
				MaxY: c.SampleSpace[3],
			},
			Resolution: c.GetSampleResolution(),
		}
	}
	positions := make([]intent.Vec2, len(c.Goals))
	for i, g := range c.Goals {
		positions[i] = intent.Vec2{X: g[0], Y: g[1]}
	}
	return intent.NewCatalogGenerator(positions)
}
