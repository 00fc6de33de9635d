package policy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Severity represents the severity level of a lint finding.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that fail validation.
	SeverityError Severity = "error"
)

// Blocking reports whether the severity fails validation.
func (s Severity) Blocking() bool {
	return s == SeverityError
}

// Policy is one Rego rule set evaluated against a model. The module must
// define a "deny" set whose members are strings or objects with message,
// task and severity fields.
type Policy struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rego        string   `json:"rego"`
	Severity    Severity `json:"severity"`
	Enabled     bool     `json:"enabled"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one finding reported by a policy.
type Violation struct {
	Policy   string   `json:"policy"`
	Task     string   `json:"task,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	if v.Task != "" {
		return fmt.Sprintf("[%s] %s: task %s: %s", v.Severity, v.Policy, v.Task, v.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Policy, v.Message)
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	EvaluatedPolicies []string      `json:"evaluated_policies"`
	Duration          time.Duration `json:"duration"`
}

// Blocking returns the violations that fail validation.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Input is the document policies see as input.
type Input struct {
	Tasks []TaskInput `json:"tasks"`
}

// TaskInput is one declared task as seen by policies.
type TaskInput struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Class    string         `json:"class"`
	Inputs   []string       `json:"inputs"`
	Requests [][]string     `json:"requests"`
	Fields   map[string]any `json:"fields"`
}

// NewInput converts a spec into policy input. Fields are passed through a
// JSON round trip so policies only see JSON types.
func NewInput(spec *engine.Spec) (map[string]any, error) {
	in := Input{Tasks: make([]TaskInput, 0, len(spec.Tasks))}
	for _, ts := range spec.Tasks {
		in.Tasks = append(in.Tasks, TaskInput{
			Name:     ts.Name,
			Kind:     ts.Kind,
			Class:    ts.ClassName(),
			Inputs:   nonNil(ts.Inputs),
			Requests: requests(ts.Requests),
			Fields:   ts.Fields,
		})
	}

	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode policy input: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode policy input: %w", err)
	}
	return out, nil
}

func requests(r [][]string) [][]string {
	if r == nil {
		return [][]string{}
	}
	return r
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
