package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// Built-in schema names.
const (
	SchemaTask      = "task"
	SchemaParameter = "parameter"
	SchemaFit       = "fit"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	for name, src := range map[string]string{
		SchemaTask:      builtinTaskSchema,
		SchemaParameter: builtinParameterSchema,
		SchemaFit:       builtinFitSchema,
	} {
		if err := sr.RegisterSchema(name, src); err != nil {
			panic(err)
		}
	}
	return sr
}

// RegisterSchema compiles a CUE source and registers its first definition
// under name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	it, err := val.Fields(cue.Definitions(true))
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", name, err)
	}
	for it.Next() {
		if it.Selector().IsDefinition() {
			sr.schemas[name] = it.Value()
			return nil
		}
	}
	return fmt.Errorf("schema %s declares no definition", name)
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(_ context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	// The cue.Context is shared by every schema and is not safe for
	// concurrent use.
	sr.mu.Lock()
	defer sr.mu.Unlock()

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %s", describeCUEError(err))
	}
	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// describeCUEError flattens a CUE error list into one line per error.
func describeCUEError(err error) string {
	var msgs []string
	for _, e := range errors.Errors(err) {
		msg := errors.Details(e, nil)
		if path := e.Path(); len(path) > 0 {
			msg = strings.Join(path, ".") + ": " + strings.TrimSpace(msg)
		}
		msgs = append(msgs, strings.TrimSpace(msg))
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Built-in schema definitions

const builtinTaskSchema = `
// Task is one declared model task. Kind-specific fields are allowed.
#Task: {
	kind:   string & !=""
	class?: string & !=""

	// A single input name may be given without a list.
	inputs?: string | [...string]

	// One request-key list per input, or null to send none.
	requests?: [...(null | [...string])]
	...
}
`

const builtinParameterSchema = `
#Parameter: {
	kind:       "parameter"
	class?:     string
	min_value?: number
	max_value?: number
	value?:     number
	log?:       bool
	latex?:     string

	// gaussian prior
	mu?:    number
	sigma?: number & >0
	...
}
`

const builtinFitSchema = `
#FitConfig: {
	walkers?:        int & >=1
	workers?:        int & >=1
	seed?:           int & >=0
	iterations?:     int & >=0
	frack?:          bool
	reject_invalid?: bool
	max_draws?:      int & >=0
	fixed?: [...string]
	store?:     string
	telemetry?: {...}
}
`
