package engine

import (
	"fmt"
	"sort"
	"strings"
)

// TreeNode is one occurrence of a task in a root's dependency tree.
type TreeNode struct {
	Name  string
	Kind  string
	Depth int

	// Roots are the root kinds reached from this node's ancestors.
	Roots    []string
	Children []*TreeNode
}

// Walk visits the node and its descendants depth-first.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Placement is the resolved position of a task in the call stack.
type Placement struct {
	Depth int
	Roots []string
}

// BuildTrees builds one dependency tree per root-kind task, in declaration order.
// Shared dependencies appear once per path that reaches them. Input names that
// match no task are skipped.
func BuildTrees(spec *Spec) ([]*TreeNode, error) {
	trees := make([]*TreeNode, 0)
	for _, task := range spec.Tasks {
		if !IsRootKind(task.Kind) {
			continue
		}
		root := &TreeNode{
			Name:  task.Name,
			Kind:  task.Kind,
			Depth: 0,
			Roots: []string{task.Kind},
		}
		if err := growTree(spec, root, []string{task.Name}); err != nil {
			return nil, err
		}
		trees = append(trees, root)
	}
	return trees, nil
}

// growTree expands node's inputs recursively. path holds the task names from
// the root to node and is used to detect cycles.
func growTree(spec *Spec, node *TreeNode, path []string) error {
	task, ok := spec.Get(node.Name)
	if !ok {
		return nil
	}
	for _, input := range task.Inputs {
		dep, ok := spec.Get(input)
		if !ok {
			continue
		}
		for i, name := range path {
			if name == input {
				cycle := append(append([]string(nil), path[i:]...), input)
				return NewConfigError(fmt.Sprintf("circular dependency detected: %s", formatCycle(cycle)), nil).
					WithCode(ErrCodeCycle).WithTask(input)
			}
		}
		child := &TreeNode{
			Name:  dep.Name,
			Kind:  dep.Kind,
			Depth: node.Depth + 1,
			Roots: node.Roots,
		}
		if err := growTree(spec, child, append(path, input)); err != nil {
			return err
		}
		node.Children = append(node.Children, child)
	}
	return nil
}

// ResolveDepths assigns every declared task the maximum depth it reaches in
// any tree, and the union of the root kinds of those trees. Root-kind tasks
// and tasks found in no tree get depth 0.
func ResolveDepths(spec *Spec, trees []*TreeNode) (map[string]Placement, int) {
	maxSeen := make(map[string]int)
	rootSets := make(map[string]map[string]bool)

	for _, tree := range trees {
		for _, child := range tree.Children {
			child.Walk(func(n *TreeNode) {
				if d, ok := maxSeen[n.Name]; !ok || n.Depth > d {
					maxSeen[n.Name] = n.Depth
				}
				if rootSets[n.Name] == nil {
					rootSets[n.Name] = make(map[string]bool)
				}
				for _, r := range n.Roots {
					rootSets[n.Name][r] = true
				}
			})
		}
	}

	placements := make(map[string]Placement, len(spec.Tasks))
	maxDepth := 0
	for _, task := range spec.Tasks {
		if IsRootKind(task.Kind) {
			placements[task.Name] = Placement{Depth: 0, Roots: []string{task.Kind}}
			continue
		}
		p := Placement{Depth: maxSeen[task.Name], Roots: sortedKeys(rootSets[task.Name])}
		placements[task.Name] = p
		if p.Depth > maxDepth {
			maxDepth = p.Depth
		}
	}
	return placements, maxDepth
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
