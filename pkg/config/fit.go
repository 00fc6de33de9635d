package config

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

// FitConfig controls one fit run.
type FitConfig struct {
	// Walkers is the number of independent walkers to draw and refine.
	Walkers int `yaml:"walkers" json:"walkers" validate:"min=1"`

	// Workers bounds how many walkers run concurrently. Each worker owns
	// its own model instance.
	Workers int `yaml:"workers" json:"workers" validate:"min=1"`

	Seed uint64 `yaml:"seed" json:"seed"`

	// Iterations is the number of local refinement rounds per walker.
	Iterations int `yaml:"iterations" json:"iterations" validate:"min=0"`

	Frack         bool `yaml:"frack" json:"frack"`
	RejectInvalid bool `yaml:"reject_invalid" json:"reject_invalid"`

	// MaxDraws caps walker redraws. Zero leaves them unbounded.
	MaxDraws int `yaml:"max_draws" json:"max_draws" validate:"min=0"`

	Fixed []string `yaml:"fixed" json:"fixed" validate:"dive,required"`

	// Store is the SQLite database path. Empty disables persistence.
	Store string `yaml:"store" json:"store"`

	Telemetry *telemetry.Config `yaml:"telemetry" json:"telemetry"`
}

// DefaultFitConfig returns the fit defaults.
func DefaultFitConfig() *FitConfig {
	return &FitConfig{
		Walkers:       8,
		Workers:       runtime.NumCPU(),
		Iterations:    3,
		Frack:         true,
		RejectInvalid: true,
		MaxDraws:      10000,
		Telemetry:     telemetry.DefaultConfig(),
	}
}

// Validate checks struct constraints and the telemetry block.
func (c *FitConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid fit config: %w", err)
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("invalid telemetry config: %w", err)
		}
	}
	return nil
}

// LoadFitConfig reads a YAML fit config over the defaults. The raw document
// is checked against the fit schema before decoding.
func LoadFitConfig(ctx context.Context, path string, schemas *SchemaRegistry) (*FitConfig, error) {
	cfg := DefaultFitConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fit config: %w", err)
	}

	if schemas == nil {
		schemas = NewSchemaRegistry()
	}
	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fit config %s: %w", path, err)
	}
	if err := schemas.ValidateAgainstSchema(ctx, SchemaFit, raw); err != nil {
		return nil, fmt.Errorf("fit config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode fit config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
