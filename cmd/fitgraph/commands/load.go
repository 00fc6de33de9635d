package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fitgraph/fitgraph/pkg/config"
	"github.com/fitgraph/fitgraph/pkg/engine"
	"github.com/fitgraph/fitgraph/pkg/modules"
)

// modelFlags are shared by every command that builds a model.
type modelFlags struct {
	params string
	fixed  []string
}

// loadSpec reads and validates the model file and optional parameters file.
func loadSpec(ctx context.Context, path string, mf modelFlags) (*engine.Spec, error) {
	return config.NewModelLoader(logger).Load(ctx, path, mf.params)
}

// buildModel loads the model and builds it with the built-in modules.
func buildModel(ctx context.Context, path string, mf modelFlags, opts ...engine.Option) (*engine.Model, error) {
	spec, err := loadSpec(ctx, path, mf)
	if err != nil {
		return nil, err
	}
	opts = append([]engine.Option{engine.WithLogger(logger), engine.WithFixed(mf.fixed...)}, opts...)
	return engine.New(ctx, spec, modules.NewRegistry(), opts...)
}

// parseCoordinates parses a comma separated coordinate vector.
func parseCoordinates(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []float64{}, nil
	}
	parts := strings.Split(s, ",")
	x := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("coordinate %d = %v is outside [0, 1]", i, v)
		}
		x[i] = v
	}
	return x, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
