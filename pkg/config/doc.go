// Package config loads fitgraph model files, parameter overrides and fit
// configuration.
//
// # Model Files
//
// A model file is a YAML or JSON mapping from task name to task fields.
// Declaration order is significant: it breaks ties in the call stack, so the
// loader walks the document node by node instead of decoding into a map.
//
//	transient:
//	  kind: data
//	  path: data/sn2011fe.yaml
//	texplosion:
//	  kind: parameter
//	  min_value: -30
//	  max_value: -1
//	densetimes:
//	  kind: array
//	  inputs: [transient, texplosion]
//	likelihood:
//	  kind: objective
//	  inputs: [photometry, transient]
//	  requests: [null, [bands]]
//
// A parameters file has the same shape. Its fields are merged over the
// model's tasks before validation, which is how priors are tuned without
// editing the model.
//
// # Validation
//
// Each task's raw fields are checked against the CUE #Task schema, and
// parameter tasks against #Parameter, before conversion to
// engine.TaskSpec. All violations are collected into ValidationErrors.
// Graph-level checks happen later in engine.New.
//
// # Fit Configuration
//
// FitConfig holds walker counts, seeds, refinement settings, the store path
// and a telemetry block. LoadFitConfig checks the raw document against
// #FitConfig, decodes it over DefaultFitConfig and runs the struct
// validator.
//
// # Watching
//
// Watch re-invokes a callback when model or parameters files change,
// debouncing editor bursts. The watch command uses it to re-plan on save.
package config
