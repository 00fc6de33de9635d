// Package policy lints model specifications with Open Policy Agent.
//
// Each policy is a Rego module defining a "deny" set. The input document
// lists the declared tasks in order:
//
//	{"tasks": [{"name": "fnickel", "kind": "parameter", "class": "fnickel",
//	            "inputs": [], "requests": [], "fields": {...}}]}
//
// A deny member is either a message string or an object with "message",
// "task" and optional "severity" keys. Findings with severity error make
// the result disallowed. Policies are compiled once into prepared queries
// and evaluated in name order.
//
// Custom policies are loaded from .rego files, named after the file, or
// from .json files carrying a full Policy. A leading "# severity: error"
// comment in a Rego file sets its default severity:
//
//	# Every free parameter needs a LaTeX label.
//	# severity: error
//	package lint.labels
//
//	import rego.v1
//
//	deny contains {"task": t.name, "message": "missing latex"} if {
//		some t in input.tasks
//		t.kind == "parameter"
//		not t.fields.latex
//	}
package policy
