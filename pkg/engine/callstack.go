package engine

import (
	"fmt"
	"strings"
)

// ExecutionEntry is one task in the call stack.
type ExecutionEntry struct {
	Task  *TaskSpec
	Depth int

	// Roots lists the root kinds whose passes execute this task.
	Roots []string
}

// HasRoot reports whether a pass for root executes this entry.
func (e ExecutionEntry) HasRoot(root string) bool {
	for _, r := range e.Roots {
		if r == root {
			return true
		}
	}
	return false
}

// CallStack is the global execution order shared by all roots:
// descending depth, ties in declaration order.
type CallStack struct {
	Entries  []ExecutionEntry
	MaxDepth int
	index    map[string]int
}

// AssembleCallStack sweeps depth from maxDepth down to 0 and appends the
// tasks placed at each depth in declaration order.
func AssembleCallStack(spec *Spec, placements map[string]Placement, maxDepth int) *CallStack {
	cs := &CallStack{
		Entries:  make([]ExecutionEntry, 0, len(spec.Tasks)),
		MaxDepth: maxDepth,
		index:    make(map[string]int, len(spec.Tasks)),
	}
	for depth := maxDepth; depth >= 0; depth-- {
		for _, task := range spec.Tasks {
			p := placements[task.Name]
			if p.Depth != depth {
				continue
			}
			cs.index[task.Name] = len(cs.Entries)
			cs.Entries = append(cs.Entries, ExecutionEntry{Task: task, Depth: depth, Roots: p.Roots})
		}
	}
	return cs
}

// Len returns the number of entries.
func (cs *CallStack) Len() int {
	return len(cs.Entries)
}

// Lookup returns the entry for a task name.
func (cs *CallStack) Lookup(name string) (ExecutionEntry, bool) {
	i, ok := cs.index[name]
	if !ok {
		return ExecutionEntry{}, false
	}
	return cs.Entries[i], true
}

// Names returns task names in stack order.
func (cs *CallStack) Names() []string {
	out := make([]string, len(cs.Entries))
	for i, e := range cs.Entries {
		out[i] = e.Task.Name
	}
	return out
}

// Buckets groups entries by depth, deepest first.
func (cs *CallStack) Buckets() [][]ExecutionEntry {
	buckets := make([][]ExecutionEntry, 0, cs.MaxDepth+1)
	for i, e := range cs.Entries {
		if i == 0 || e.Depth != cs.Entries[i-1].Depth {
			buckets = append(buckets, nil)
		}
		buckets[len(buckets)-1] = append(buckets[len(buckets)-1], e)
	}
	return buckets
}

// ToDOT generates a DOT representation of the call stack with one cluster
// per depth bucket. The output can be rendered with Graphviz tools.
func (cs *CallStack) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph CallStack {\n")
	sb.WriteString("  rankdir=BT;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, bucket := range cs.Buckets() {
		depth := bucket[0].Depth
		sb.WriteString(fmt.Sprintf("  subgraph cluster_depth_%d {\n", depth))
		sb.WriteString(fmt.Sprintf("    label=\"Depth %d\";\n", depth))
		sb.WriteString("    style=dashed;\n")
		for _, e := range bucket {
			label := fmt.Sprintf("%s\\n%s", e.Task.Name, e.Task.Kind)
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				e.Task.Name, label, kindColor(e.Task.Kind)))
		}
		sb.WriteString("  }\n\n")
	}

	for _, e := range cs.Entries {
		for i, in := range e.Task.Inputs {
			if _, ok := cs.index[in]; !ok {
				continue
			}
			style := "style=solid"
			if i < len(e.Task.Requests) && len(e.Task.Requests[i]) > 0 {
				style = fmt.Sprintf("style=dashed, label=\"%s\"", strings.Join(e.Task.Requests[i], ","))
			}
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [%s];\n", in, e.Task.Name, style))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func kindColor(kind string) string {
	switch kind {
	case KindParameter:
		return "lightyellow"
	case KindObjective:
		return "lightcoral"
	case KindOutput:
		return "lightgreen"
	default:
		return "lightblue"
	}
}
