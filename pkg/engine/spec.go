package engine

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Well-known task kinds.
const (
	KindParameter = "parameter"
	KindObjective = "objective"
	KindOutput    = "output"
)

// IsRootKind reports whether a task of this kind terminates an execution pass.
func IsRootKind(kind string) bool {
	return kind == KindOutput || kind == KindObjective
}

// TaskSpec is one declared task of a model. It is immutable after load.
type TaskSpec struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Kind  string `json:"kind" yaml:"kind" validate:"required"`
	Class string `json:"class,omitempty" yaml:"class,omitempty"`

	// Inputs names the tasks whose outputs this task consumes.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty" validate:"dive,required"`

	// Requests holds one request-key list per input, positionally aligned with Inputs.
	Requests [][]string `json:"requests,omitempty" yaml:"requests,omitempty"`

	MinValue *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	Value    *float64 `json:"value,omitempty" yaml:"value,omitempty"`

	// Fields holds every declared field, including kind-specific ones.
	Fields map[string]any `json:"-" yaml:"-"`
}

// NewTaskSpec builds a TaskSpec from raw declared fields.
// A scalar "inputs" value is treated as a one-element list.
func NewTaskSpec(name string, fields map[string]any) (*TaskSpec, error) {
	t := &TaskSpec{Name: name, Fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		t.Fields[k] = v
	}

	var ok bool
	if v, present := fields["kind"]; present {
		if t.Kind, ok = v.(string); !ok {
			return nil, taskFieldError(name, "kind", "must be a string")
		}
	}
	if v, present := fields["class"]; present {
		if t.Class, ok = v.(string); !ok {
			return nil, taskFieldError(name, "class", "must be a string")
		}
	}

	inputs, err := stringList(fields["inputs"])
	if err != nil {
		return nil, taskFieldError(name, "inputs", err.Error())
	}
	t.Inputs = inputs

	if raw, present := fields["requests"]; present && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, taskFieldError(name, "requests", "must be a list of key lists")
		}
		for _, item := range list {
			keys, err := stringList(item)
			if err != nil {
				return nil, taskFieldError(name, "requests", err.Error())
			}
			t.Requests = append(t.Requests, keys)
		}
	}

	for key, dst := range map[string]**float64{
		"min_value": &t.MinValue,
		"max_value": &t.MaxValue,
		"value":     &t.Value,
	} {
		raw, present := fields[key]
		if !present || raw == nil {
			continue
		}
		f, ok := AsFloat(raw)
		if !ok {
			return nil, taskFieldError(name, key, "must be a number")
		}
		*dst = &f
	}

	return t, nil
}

// ClassName returns the implementation class, defaulting to the task name.
func (t *TaskSpec) ClassName() string {
	if t.Class != "" {
		return t.Class
	}
	return t.Name
}

// Float returns a numeric kind-specific field.
func (t *TaskSpec) Float(key string) (float64, bool) {
	return AsFloat(t.Fields[key])
}

// FloatOr returns a numeric kind-specific field or def when absent.
func (t *TaskSpec) FloatOr(key string, def float64) float64 {
	if f, ok := t.Float(key); ok {
		return f
	}
	return def
}

// Bool returns a boolean kind-specific field, false when absent.
func (t *TaskSpec) Bool(key string) bool {
	b, _ := t.Fields[key].(bool)
	return b
}

// String returns a string kind-specific field, empty when absent.
func (t *TaskSpec) String(key string) string {
	s, _ := t.Fields[key].(string)
	return s
}

// Strings returns a string-list kind-specific field.
func (t *TaskSpec) Strings(key string) []string {
	s, _ := stringList(t.Fields[key])
	return s
}

// Spec is the declared model: tasks in declaration order.
type Spec struct {
	Tasks []*TaskSpec `validate:"required,min=1,dive"`
	index map[string]int
}

// NewSpec creates a spec from tasks in declaration order.
func NewSpec(tasks ...*TaskSpec) *Spec {
	s := &Spec{Tasks: tasks, index: make(map[string]int, len(tasks))}
	for i, t := range tasks {
		if _, dup := s.index[t.Name]; !dup {
			s.index[t.Name] = i
		}
	}
	return s
}

// Get returns the task with the given name.
func (s *Spec) Get(name string) (*TaskSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.Tasks[i], true
}

// Position returns the declaration index of a task, or -1.
func (s *Spec) Position(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Validate checks struct constraints, duplicate names and request alignment.
func (s *Spec) Validate() error {
	v := validator.New()
	if err := v.Struct(s); err != nil {
		return NewConfigError("invalid model specification", err).WithCode(ErrCodeValidation)
	}

	seen := make(map[string]bool, len(s.Tasks))
	roots := 0
	for _, t := range s.Tasks {
		if seen[t.Name] {
			return NewConfigError(fmt.Sprintf("duplicate task name: %s", t.Name), nil).
				WithCode(ErrCodeValidation).WithTask(t.Name)
		}
		seen[t.Name] = true

		if len(t.Requests) > len(t.Inputs) {
			return NewConfigError("more request lists than inputs", nil).
				WithCode(ErrCodeValidation).WithTask(t.Name).
				WithDetail("inputs", len(t.Inputs)).
				WithDetail("requests", len(t.Requests))
		}
		if IsRootKind(t.Kind) {
			roots++
		}
	}
	if roots == 0 {
		return NewConfigError("model declares no output or objective task", nil).
			WithCode(ErrCodeValidation)
	}
	return nil
}

// UnknownInputs maps each task to the input names that match no declared task.
func (s *Spec) UnknownInputs() map[string][]string {
	unknown := make(map[string][]string)
	for _, t := range s.Tasks {
		for _, in := range t.Inputs {
			if _, ok := s.index[in]; !ok {
				unknown[t.Name] = append(unknown[t.Name], in)
			}
		}
	}
	return unknown
}

// Kinds returns the sorted set of declared kinds.
func (s *Spec) Kinds() []string {
	set := make(map[string]bool)
	for _, t := range s.Tasks {
		set[t.Kind] = true
	}
	kinds := make([]string, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func taskFieldError(task, field, msg string) error {
	return NewConfigError(fmt.Sprintf("field %q %s", field, msg), nil).
		WithCode(ErrCodeValidation).WithTask(task)
}

func stringList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must contain only strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a string or list of strings, got %T", v)
	}
}
