package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fitgraph/fitgraph/pkg/engine"
	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

// ValidationError describes one problem found in a model file.
type ValidationError struct {
	Task    string `json:"task,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	switch {
	case v.Task != "" && v.Line > 0:
		return fmt.Sprintf("task %s (line %d): %s", v.Task, v.Line, v.Message)
	case v.Task != "":
		return fmt.Sprintf("task %s: %s", v.Task, v.Message)
	default:
		return v.Message
	}
}

// ValidationErrors collects every problem found in a model file.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%d validation errors, first: %s", len(ve), ve[0].Error())
}

// RawTask is one task as declared, before TaskSpec conversion.
type RawTask struct {
	Name   string
	Fields map[string]any
	Line   int
}

// ModelLoader reads model and parameters files into an engine.Spec.
type ModelLoader struct {
	schemas *SchemaRegistry
	logger  *telemetry.Logger
}

// NewModelLoader creates a loader with the built-in schemas.
func NewModelLoader(logger *telemetry.Logger) *ModelLoader {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &ModelLoader{
		schemas: NewSchemaRegistry(),
		logger:  logger.NewComponentLogger("config"),
	}
}

// Schemas returns the loader's schema registry.
func (ml *ModelLoader) Schemas() *SchemaRegistry {
	return ml.schemas
}

// Load reads the model at path, merges the optional parameters file over it,
// validates every task and returns the spec in declaration order.
func (ml *ModelLoader) Load(ctx context.Context, path, paramsPath string) (*engine.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	raw, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}

	if paramsPath != "" {
		overrides, err := LoadParameters(paramsPath)
		if err != nil {
			return nil, err
		}
		ml.applyOverrides(raw, overrides)
	}
	resolvePaths(raw, filepath.Dir(path))

	spec, err := ml.Build(ctx, raw)
	if err != nil {
		return nil, err
	}
	ml.logger.Zerolog().Debug().
		Str("model", path).
		Str("parameters", paramsPath).
		Int("tasks", len(spec.Tasks)).
		Msg("model loaded")
	return spec, nil
}

// Build validates raw tasks against the CUE schemas and converts them.
// Every schema violation is reported, not only the first.
func (ml *ModelLoader) Build(ctx context.Context, raw []RawTask) (*engine.Spec, error) {
	var problems ValidationErrors
	tasks := make([]*engine.TaskSpec, 0, len(raw))
	for _, rt := range raw {
		if err := ml.schemas.ValidateAgainstSchema(ctx, SchemaTask, rt.Fields); err != nil {
			problems = append(problems, ValidationError{Task: rt.Name, Line: rt.Line, Message: err.Error()})
			continue
		}
		if rt.Fields["kind"] == engine.KindParameter {
			if err := ml.schemas.ValidateAgainstSchema(ctx, SchemaParameter, rt.Fields); err != nil {
				problems = append(problems, ValidationError{Task: rt.Name, Line: rt.Line, Message: err.Error()})
				continue
			}
		}

		ts, err := engine.NewTaskSpec(rt.Name, rt.Fields)
		if err != nil {
			problems = append(problems, ValidationError{Task: rt.Name, Line: rt.Line, Message: err.Error()})
			continue
		}
		tasks = append(tasks, ts)
	}
	if len(problems) > 0 {
		return nil, engine.NewConfigError("model failed schema validation", problems).
			WithCode(engine.ErrCodeValidation)
	}
	return engine.NewSpec(tasks...), nil
}

func (ml *ModelLoader) applyOverrides(raw []RawTask, overrides map[string]map[string]any) {
	index := make(map[string]int, len(raw))
	for i, rt := range raw {
		index[rt.Name] = i
	}
	for name, fields := range overrides {
		i, ok := index[name]
		if !ok {
			ml.logger.Zerolog().Debug().Str("task", name).Msg("parameters file names an undeclared task")
			continue
		}
		for k, v := range fields {
			raw[i].Fields[k] = v
		}
	}
}

// resolvePaths makes relative "path" fields relative to the model file.
func resolvePaths(raw []RawTask, dir string) {
	for _, rt := range raw {
		p, ok := rt.Fields["path"].(string)
		if !ok || p == "" || filepath.IsAbs(p) {
			continue
		}
		rt.Fields["path"] = filepath.Join(dir, p)
	}
}

// ParseModel decodes a YAML or JSON mapping of task name to fields,
// preserving declaration order.
func ParseModel(data []byte) ([]RawTask, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("model is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("model must be a mapping of task names, got line %d", root.Line)
	}

	tasks := make([]RawTask, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		fields := make(map[string]any)
		if err := val.Decode(&fields); err != nil {
			return nil, fmt.Errorf("task %s (line %d): %w", key.Value, key.Line, err)
		}
		tasks = append(tasks, RawTask{Name: key.Value, Fields: fields, Line: key.Line})
	}
	return tasks, nil
}

// LoadParameters reads a mapping of task name to field overrides.
func LoadParameters(path string) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	overrides := make(map[string]map[string]any)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse parameters %s: %w", path, err)
	}
	return overrides, nil
}
