package scenelayout

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
)

// Config holds all configuration for the layout pipeline.
type Config struct {
	Solver SolverConfig
	Sizes  SizeConfig
}

// SolverConfig holds parameters for the global reconstruction solver.
type SolverConfig struct {
	MaxAttempts int     // Cap on random anchor-pair permutations tried
	Epsilon     float64 // Squared-distance threshold for point correspondence
	Seed        int64   // Seed for the permutation shuffle
}

// SizeConfig holds parameters for object size estimation.
type SizeConfig struct {
	TrimFraction float64 // Fraction of largest point distances discarded as outliers
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Solver: SolverConfig{
			MaxAttempts: 1000,
			Epsilon:     1e-4,
			Seed:        0,
		},
		Sizes: SizeConfig{
			TrimFraction: 0.2,
		},
	}
}

// LoadConfig reads a JSON config file and overlays it on the defaults.
// Unknown keys are rejected so typos don't silently fall back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
