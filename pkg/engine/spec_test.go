package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewTaskSpec(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]any
		wantErr  bool
		inputs   []string
		requests [][]string
	}{
		{
			name:   "scalar input becomes one-element list",
			fields: map[string]any{"kind": "engine", "inputs": "transient"},
			inputs: []string{"transient"},
		},
		{
			name:   "list input",
			fields: map[string]any{"kind": "engine", "inputs": []any{"a", "b"}},
			inputs: []string{"a", "b"},
		},
		{
			name:     "requests aligned to inputs",
			fields:   map[string]any{"kind": "objective", "inputs": []any{"a", "b"}, "requests": []any{nil, []any{"bands"}}},
			inputs:   []string{"a", "b"},
			requests: [][]string{nil, {"bands"}},
		},
		{
			name:    "non-string kind",
			fields:  map[string]any{"kind": 3},
			wantErr: true,
		},
		{
			name:    "numeric input",
			fields:  map[string]any{"kind": "engine", "inputs": []any{"a", 2}},
			wantErr: true,
		},
		{
			name:    "non-numeric bound",
			fields:  map[string]any{"kind": "parameter", "min_value": "low"},
			wantErr: true,
		},
		{
			name:    "requests not a list",
			fields:  map[string]any{"kind": "engine", "requests": "bands"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := NewTaskSpec("task", tt.fields)
			if tt.wantErr {
				if !IsConfigError(err) {
					t.Fatalf("expected config error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTaskSpec failed: %v", err)
			}
			if diff := cmp.Diff(tt.inputs, ts.Inputs); diff != "" {
				t.Errorf("inputs mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.requests, ts.Requests); diff != "" {
				t.Errorf("requests mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewTaskSpec_NumericFields(t *testing.T) {
	ts, err := NewTaskSpec("texplosion", map[string]any{
		"kind":      "parameter",
		"min_value": -500,
		"max_value": 0.0,
		"latex":     "t_{exp}",
		"log":       true,
	})
	if err != nil {
		t.Fatalf("NewTaskSpec failed: %v", err)
	}
	if ts.MinValue == nil || *ts.MinValue != -500 {
		t.Errorf("min_value = %v, want -500", ts.MinValue)
	}
	if ts.MaxValue == nil || *ts.MaxValue != 0 {
		t.Errorf("max_value = %v, want 0", ts.MaxValue)
	}
	if ts.Value != nil {
		t.Errorf("value should be unset, got %v", *ts.Value)
	}
	if ts.String("latex") != "t_{exp}" || !ts.Bool("log") {
		t.Errorf("kind-specific fields not preserved: %v", ts.Fields)
	}
	if ts.ClassName() != "texplosion" {
		t.Errorf("class should default to the task name, got %s", ts.ClassName())
	}
	if got := ts.FloatOr("missing", 7); got != 7 {
		t.Errorf("FloatOr default = %v, want 7", got)
	}
}

func TestSpecValidate(t *testing.T) {
	tooManyRequests := task("obj", KindObjective, "p")
	tooManyRequests.Requests = [][]string{{"a"}, {"b"}}

	tests := []struct {
		name    string
		spec    *Spec
		wantErr bool
	}{
		{
			name: "valid",
			spec: NewSpec(param("p", 0, 1), task("obj", KindObjective, "p")),
		},
		{
			name:    "empty",
			spec:    NewSpec(),
			wantErr: true,
		},
		{
			name:    "missing kind",
			spec:    NewSpec(task("p", ""), task("obj", KindObjective, "p")),
			wantErr: true,
		},
		{
			name:    "duplicate name",
			spec:    NewSpec(param("p", 0, 1), param("p", 0, 2), task("obj", KindObjective, "p")),
			wantErr: true,
		},
		{
			name:    "more requests than inputs",
			spec:    NewSpec(param("p", 0, 1), tooManyRequests),
			wantErr: true,
		},
		{
			name:    "no root",
			spec:    NewSpec(param("p", 0, 1), task("e", "engine", "p")),
			wantErr: true,
		},
		{
			name:    "empty input name",
			spec:    NewSpec(task("obj", KindObjective, "")),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				if CodeOf(err) != ErrCodeValidation {
					t.Errorf("expected %s, got %v", ErrCodeValidation, err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate failed: %v", err)
			}
		})
	}
}

func TestSpec_Lookups(t *testing.T) {
	spec := NewSpec(
		param("p", 0, 1),
		task("e", "engine", "p", "ghost"),
		task("obj", KindObjective, "e", "phantom"),
	)

	if got := spec.Position("e"); got != 1 {
		t.Errorf("Position(e) = %d, want 1", got)
	}
	if got := spec.Position("nope"); got != -1 {
		t.Errorf("Position(nope) = %d, want -1", got)
	}
	if _, ok := spec.Get("obj"); !ok {
		t.Error("Get(obj) not found")
	}

	want := map[string][]string{"e": {"ghost"}, "obj": {"phantom"}}
	if diff := cmp.Diff(want, spec.UnknownInputs()); diff != "" {
		t.Errorf("unknown inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"engine", KindObjective, KindParameter}, spec.Kinds()); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestContext_Helpers(t *testing.T) {
	in := Context{
		"n":      3,
		"series": []any{1.0, 2, float32(3)},
		"name":   "x",
	}

	if v, err := in.Float("n"); err != nil || v != 3 {
		t.Errorf("Float(n) = %v, %v", v, err)
	}
	if _, err := in.Float("name"); err == nil {
		t.Error("Float on a string should fail")
	}
	if v, err := in.FloatOr("absent", 2.5); err != nil || v != 2.5 {
		t.Errorf("FloatOr default = %v, %v", v, err)
	}
	s, err := in.Floats("series")
	if err != nil {
		t.Fatalf("Floats failed: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 2, 3}, s); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}

	sum, err := AddExisting(Context{"lum": []float64{1, 1}}, "lum", []float64{2, 3})
	if err != nil {
		t.Fatalf("AddExisting failed: %v", err)
	}
	if diff := cmp.Diff([]float64{3, 4}, sum); diff != "" {
		t.Errorf("accumulated series mismatch (-want +got):\n%s", diff)
	}
	if _, err := AddExisting(Context{"lum": []float64{1}}, "lum", []float64{2, 3}); err == nil {
		t.Error("AddExisting should reject mismatched lengths")
	}
}
