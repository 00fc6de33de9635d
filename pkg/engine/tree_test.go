package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// chainSpec reaches "a" at depth 5 from the objective and at depth 2 from the output.
func chainSpec() *Spec {
	return NewSpec(
		param("a", 0, 1),
		task("b", "engine", "a"),
		task("c", "engine", "b"),
		task("d", "engine", "c"),
		task("e", "engine", "d"),
		task("x", "engine", "a"),
		task("obj", KindObjective, "e"),
		task("out", KindOutput, "x"),
	)
}

func TestResolveDepths_TakesMaximumAcrossTrees(t *testing.T) {
	spec := chainSpec()
	trees, err := BuildTrees(spec)
	if err != nil {
		t.Fatalf("BuildTrees failed: %v", err)
	}
	if len(trees) != 2 {
		t.Fatalf("expected 2 trees, got %d", len(trees))
	}

	placements, maxDepth := ResolveDepths(spec, trees)
	if maxDepth != 5 {
		t.Errorf("maxDepth = %d, want 5", maxDepth)
	}

	want := map[string]Placement{
		"a":   {Depth: 5, Roots: []string{KindObjective, KindOutput}},
		"b":   {Depth: 4, Roots: []string{KindObjective}},
		"c":   {Depth: 3, Roots: []string{KindObjective}},
		"d":   {Depth: 2, Roots: []string{KindObjective}},
		"e":   {Depth: 1, Roots: []string{KindObjective}},
		"x":   {Depth: 1, Roots: []string{KindOutput}},
		"obj": {Depth: 0, Roots: []string{KindObjective}},
		"out": {Depth: 0, Roots: []string{KindOutput}},
	}
	if diff := cmp.Diff(want, placements); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveDepths_SharedDependencyTwoAndFive(t *testing.T) {
	// s is needed at depth 2 through m1 and at depth 5 through the long chain.
	spec := NewSpec(
		param("s", 0, 1),
		task("m1", "engine", "s"),
		task("l1", "engine", "s"),
		task("l2", "engine", "l1"),
		task("l3", "engine", "l2"),
		task("l4", "engine", "l3"),
		task("obj", KindObjective, "m1", "l4"),
	)
	trees, err := BuildTrees(spec)
	if err != nil {
		t.Fatalf("BuildTrees failed: %v", err)
	}

	var seen []int
	trees[0].Walk(func(n *TreeNode) {
		if n.Name == "s" {
			seen = append(seen, n.Depth)
		}
	})
	if diff := cmp.Diff([]int{2, 5}, seen); diff != "" {
		t.Errorf("tree occurrences of s (-want +got):\n%s", diff)
	}

	placements, _ := ResolveDepths(spec, trees)
	if got := placements["s"].Depth; got != 5 {
		t.Errorf("depth of s = %d, want 5", got)
	}
}

func TestResolveDepths_OrphanAndUnknownInputs(t *testing.T) {
	spec := NewSpec(
		param("p", 0, 1),
		task("orphan", "engine"),
		task("obj", KindObjective, "p", "missing"),
	)
	trees, err := BuildTrees(spec)
	if err != nil {
		t.Fatalf("BuildTrees failed: %v", err)
	}
	if n := len(trees[0].Children); n != 1 {
		t.Errorf("unknown input should be skipped, got %d children", n)
	}

	placements, _ := ResolveDepths(spec, trees)
	if got := placements["orphan"]; got.Depth != 0 || len(got.Roots) != 0 {
		t.Errorf("orphan placement = %+v, want depth 0 and no roots", got)
	}

	if diff := cmp.Diff(map[string][]string{"obj": {"missing"}}, spec.UnknownInputs()); diff != "" {
		t.Errorf("UnknownInputs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTrees_DetectsCycles(t *testing.T) {
	spec := NewSpec(
		task("a", "engine", "b"),
		task("b", "engine", "c"),
		task("c", "engine", "a"),
		task("obj", KindObjective, "a"),
	)
	_, err := BuildTrees(spec)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !IsConfigError(err) || CodeOf(err) != ErrCodeCycle {
		t.Errorf("expected config error with code %s, got %v", ErrCodeCycle, err)
	}
}

func TestResolveDepths_RootUsedAsInput(t *testing.T) {
	// A root task keeps depth 0 and its own root kind even when another root consumes it.
	spec := NewSpec(
		param("p", 0, 1),
		task("obj", KindObjective, "p"),
		task("out", KindOutput, "obj"),
	)
	trees, err := BuildTrees(spec)
	if err != nil {
		t.Fatalf("BuildTrees failed: %v", err)
	}
	placements, _ := ResolveDepths(spec, trees)
	if got := placements["obj"]; got.Depth != 0 || !cmp.Equal(got.Roots, []string{KindObjective}) {
		t.Errorf("obj placement = %+v", got)
	}
	if got := placements["p"]; got.Depth != 2 {
		t.Errorf("p depth = %d, want 2", got.Depth)
	}
}
