package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRun_TwoTaskModel(t *testing.T) {
	h := newHarness(t)
	m := h.build(NewSpec(
		param("p", 0, 10),
		task("obj", KindObjective, "p"),
	))

	if diff := cmp.Diff([]string{"p"}, m.FreeParameters()); diff != "" {
		t.Fatalf("free parameters mismatch (-want +got):\n%s", diff)
	}

	out, err := m.Run([]float64{0.5}, KindObjective)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := out["p"]; got != 5.0 {
		t.Errorf("outputs[p] = %v, want 5.0", got)
	}
	if got := out[KeyValue]; got != 5.0 {
		t.Errorf("outputs[value] = %v, want 5.0", got)
	}

	seen := h.recorder("p").seen
	if len(seen) != 1 || seen[0][KeyFraction] != 0.5 {
		t.Errorf("p should receive fraction 0.5, saw %v", seen)
	}
	if seen[0][KeyRoot] != KindObjective {
		t.Errorf("root = %v, want objective", seen[0][KeyRoot])
	}
}

func TestRun_FixedOverrideRemovesParameter(t *testing.T) {
	h := newHarness(t)
	m := h.build(NewSpec(
		param("p", 0, 10),
		task("obj", KindObjective, "p"),
	), WithFixed("p"))

	if m.NumFree() != 0 {
		t.Fatalf("NumFree = %d, want 0", m.NumFree())
	}
	out, err := m.Run(nil, KindObjective)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := out["p"]; got != 0.0 {
		t.Errorf("fixed p should use its fixed value, got %v", got)
	}
	if seen := h.recorder("p").seen[0]; seen.Has(KeyFraction) {
		t.Errorf("fixed parameter must not receive a fraction: %v", seen)
	}

	_, err = m.Run([]float64{0.5}, KindObjective)
	if !IsContractError(err) || CodeOf(err) != ErrCodeCoordinates {
		t.Errorf("expected coordinate mismatch, got %v", err)
	}
}

func TestRun_SiblingsAreMutuallyInvisible(t *testing.T) {
	h := newHarness(t)
	spec := NewSpec(record(
		task("base", "array"),
		task("s1", "engine", "base"),
		task("s2", "engine", "base"),
		task("t", "transform", "s1", "s2"),
	)...)
	spec = NewSpec(append(spec.Tasks, task("obj", KindObjective, "t"))...)
	m := h.build(spec)

	if _, err := m.Run(nil, KindObjective); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	s1 := h.recorder("s1").seen[0]
	s2 := h.recorder("s2").seen[0]
	if !s1.Has("base") || !s2.Has("base") {
		t.Errorf("siblings must see the deeper bucket: s1=%v s2=%v", s1, s2)
	}
	if s2.Has("s1") {
		t.Errorf("s2 observed its sibling's output: %v", s2)
	}
	if s1.Has("s2") {
		t.Errorf("s1 observed its sibling's output: %v", s1)
	}

	tIn := h.recorder("t").seen[0]
	for _, k := range []string{"base", "s1", "s2"} {
		if !tIn.Has(k) {
			t.Errorf("shallower task should see %s: %v", k, tIn)
		}
	}
	if tIn.Has("t") {
		t.Errorf("task saw its own output before running: %v", tIn)
	}
}

func TestRun_StopsAtFirstRootTask(t *testing.T) {
	h := newHarness(t)
	m := h.build(NewSpec(
		param("p", 0, 1),
		task("obj1", KindObjective, "p"),
		task("obj2", KindObjective, "p"),
	))

	out, err := m.Run([]float64{0.25}, KindObjective)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Has("obj2") {
		t.Errorf("obj2 ran after the pass terminated: %v", out)
	}
	if _, ok := h.instances["obj2"].(*recorder); !ok {
		t.Fatal("obj2 not instantiated")
	}
	if n := len(h.recorder("obj2").seen); n != 0 {
		t.Errorf("obj2 executed %d times", n)
	}
	if diff := cmp.Diff(Context{"p": 0.25, KeyValue: 0.25, "obj1": 0.25}, out); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_FiltersByRoot(t *testing.T) {
	h := newHarness(t)
	spec := NewSpec(
		param("p", 0, 1),
		param("q", 0, 1),
		task("obj", KindObjective, "p", "q"),
		task("out", KindOutput, "q"),
	)
	m := h.build(spec)

	out, err := m.Run([]float64{0.2, 0.6}, KindOutput)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Has("p") || out.Has(KeyValue) {
		t.Errorf("output pass ran objective-only tasks: %v", out)
	}
	if got := out["q"]; got != 0.6 {
		t.Errorf("q = %v, want 0.6 (its own coordinate)", got)
	}
}

func TestRun_RootNotReached(t *testing.T) {
	h := newHarness(t)
	m := h.build(NewSpec(
		param("p", 0, 1),
		task("obj", KindObjective, "p"),
	))

	_, err := m.Run([]float64{0.5}, KindOutput)
	if !errors.Is(err, ErrRootNotReached) {
		t.Errorf("expected ErrRootNotReached, got %v", err)
	}
}

func TestRun_AccumulatesFractions(t *testing.T) {
	h := newHarness(t)
	m := h.build(NewSpec(
		param("a", 0, 1),
		param("b", 0, 1),
		task("obj", KindObjective, "a", "b"),
	))

	if _, err := m.Run([]float64{0.1, 0.9}, KindObjective); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got := h.recorder("obj").seen[0][KeyFractions]
	if diff := cmp.Diff([]float64{0.1, 0.9}, got); diff != "" {
		t.Errorf("fractions mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ProcessErrorIsNumeric(t *testing.T) {
	h := newHarness(t)
	h.objective = func(*TaskSpec, Context) (float64, error) {
		return 0, errors.New("bad input")
	}
	m := h.build(NewSpec(
		param("p", 0, 1),
		task("obj", KindObjective, "p"),
	))

	_, err := m.Run([]float64{0.5}, KindObjective)
	if !IsNumericError(err) || CodeOf(err) != ErrCodeProcess {
		t.Fatalf("expected numeric process error, got %v", err)
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Task != "obj" {
		t.Errorf("error should name the failing task: %v", err)
	}
}

func TestRun_SameDepthOutputCollision(t *testing.T) {
	emitSignal := func(v float64) func(Context) (Context, error) {
		return func(in Context) (Context, error) {
			prev, _ := in.FloatOr("signal", 0)
			return Context{"signal": prev + v}, nil
		}
	}

	// Siblings: both engines sit at one depth.
	h := newHarness(t)
	spec := NewSpec(record(
		task("a", "engine"),
		task("b", "engine"),
	)...)
	m := h.build(NewSpec(append(spec.Tasks, task("obj", KindObjective, "a", "b"))...))
	h.recorder("a").fn = emitSignal(1)
	h.recorder("b").fn = emitSignal(10)

	_, err := m.Run(nil, KindObjective)
	if !IsConfigError(err) || CodeOf(err) != ErrCodeOutputCollision {
		t.Fatalf("expected output collision, got %v", err)
	}
	if !strings.Contains(err.Error(), `"signal"`) {
		t.Errorf("error should name the key: %v", err)
	}
	if got := m.Objective(nil); got != LikelihoodFloor {
		t.Errorf("objective = %v, want the floor", got)
	}

	// Chained: b consumes a, so b sees and extends a's signal.
	h = newHarness(t)
	spec = NewSpec(record(
		task("a", "engine"),
		task("b", "engine", "a"),
	)...)
	m = h.build(NewSpec(append(spec.Tasks, task("obj", KindObjective, "b"))...))
	h.recorder("a").fn = emitSignal(1)
	h.recorder("b").fn = emitSignal(10)

	out, err := m.Run(nil, KindObjective)
	if err != nil {
		t.Fatalf("chained Run failed: %v", err)
	}
	if got := out["signal"]; got != 11.0 {
		t.Errorf("signal = %v, want 11", got)
	}
}

func TestNew_UnknownModule(t *testing.T) {
	_, err := New(context.Background(), NewSpec(
		task("x", "mystery"),
		task("obj", KindObjective, "x"),
	), NewRegistry())
	if CodeOf(err) != ErrCodeUnknownModule {
		t.Errorf("expected %s, got %v", ErrCodeUnknownModule, err)
	}
}

func TestModel_DescribeAndPhysicalValues(t *testing.T) {
	h := newHarness(t)
	m := h.build(NewSpec(
		param("p", 0, 10),
		task("obj", KindObjective, "p"),
	))

	vals, err := m.PhysicalValues([]float64{0.3})
	if err != nil {
		t.Fatalf("PhysicalValues failed: %v", err)
	}
	if vals["p"] != 3 {
		t.Errorf("p = %v, want 3", vals["p"])
	}

	desc := m.Describe()
	if want := "x[0]"; !strings.Contains(desc, want) {
		t.Errorf("Describe output missing %q:\n%s", want, desc)
	}
}
