package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		parameterBoundsPolicy(),
		gaussianPriorPolicy(),
		requestsAlignmentPolicy(),
		objectivePresentPolicy(),
	}
}

// parameterBoundsPolicy checks parameter ranges.
func parameterBoundsPolicy() Policy {
	return Policy{
		Name:        "parameter-bounds",
		Description: "Parameters need a value or both bounds, and log-scaled bounds must be positive",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package fitgraph.lint.bounds

import rego.v1

deny contains violation if {
	some task in input.tasks
	task.kind == "parameter"
	not has_value(task)
	not has_bounds(task)
	violation := {
		"task": task.name,
		"message": "parameter has neither a value nor min_value and max_value",
		"severity": "warning",
	}
}

deny contains violation if {
	some task in input.tasks
	task.kind == "parameter"
	task.fields.log == true
	task.fields.min_value <= 0
	violation := {
		"task": task.name,
		"message": sprintf("log-scaled parameter has min_value %v, must be positive", [task.fields.min_value]),
	}
}

deny contains violation if {
	some task in input.tasks
	task.kind == "parameter"
	task.fields.min_value > task.fields.max_value
	violation := {
		"task": task.name,
		"message": sprintf("min_value %v exceeds max_value %v", [task.fields.min_value, task.fields.max_value]),
	}
}

has_value(task) if {
	task.fields.value != null
}

has_bounds(task) if {
	task.fields.min_value != null
	task.fields.max_value != null
}
`,
	}
}

// gaussianPriorPolicy checks gaussian prior settings.
func gaussianPriorPolicy() Policy {
	return Policy{
		Name:        "gaussian-prior",
		Description: "Gaussian parameters should set mu and sigma inside their bounds",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package fitgraph.lint.gaussian

import rego.v1

deny contains violation if {
	some task in input.tasks
	task.class == "gaussian"
	some field in ["mu", "sigma"]
	not task.fields[field]
	violation := {
		"task": task.name,
		"message": sprintf("gaussian prior without %s", [field]),
	}
}

deny contains violation if {
	some task in input.tasks
	task.class == "gaussian"
	not task.fields.log
	mu := task.fields.mu
	outside(mu, task.fields.min_value, task.fields.max_value)
	violation := {
		"task": task.name,
		"message": sprintf("prior mean %v lies outside [%v, %v]", [mu, task.fields.min_value, task.fields.max_value]),
	}
}

outside(x, lo, _) if x < lo

outside(x, _, hi) if x > hi
`,
	}
}

// requestsAlignmentPolicy checks that request lists line up with inputs.
func requestsAlignmentPolicy() Policy {
	return Policy{
		Name:        "requests-alignment",
		Description: "Each request list belongs to the input at the same position",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package fitgraph.lint.requests

import rego.v1

deny contains violation if {
	some task in input.tasks
	count(task.requests) > count(task.inputs)
	violation := {
		"task": task.name,
		"message": sprintf("%d request lists for %d inputs", [count(task.requests), count(task.inputs)]),
	}
}
`,
	}
}

// objectivePresentPolicy warns about models that cannot be scored.
func objectivePresentPolicy() Policy {
	return Policy{
		Name:        "objective-present",
		Description: "A model without an objective task can be planned but not fitted",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package fitgraph.lint.objective

import rego.v1

deny contains "model declares no objective task" if {
	count([task | some task in input.tasks; task.kind == "objective"]) == 0
}
`,
	}
}
