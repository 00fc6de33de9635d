// Package engine builds and evaluates module pipelines.
//
// # Overview
//
// A model is an ordered set of named tasks. Each task has a kind, an optional
// implementation class and a list of input tasks. Tasks of kind "objective"
// or "output" are roots: every pass of the engine ends at one of them.
//
// New turns a Spec into a Model in four steps:
//
//  1. BuildTrees grows one dependency tree per root task along inputs edges.
//  2. ResolveDepths places every task at the maximum depth it reaches in any
//     tree, so a shared dependency runs before its deepest consumer.
//  3. AssembleCallStack orders tasks by descending depth, ties in declaration
//     order. One stack serves every root.
//  4. The free parameter set is resolved and consumers negotiate with their
//     producers through Requester and RequestHandler.
//
// # Evaluation
//
// Run replays the stack for one root. Outputs accumulate in one Context;
// each task reads a snapshot of that Context taken when the pass entered the
// task's depth, so tasks at the same depth cannot see each other's outputs.
//
// Likelihood, Prior and Objective compose Run into scores over a coordinate
// vector with one unit-interval entry per free parameter. Objective never
// returns NaN or Inf; such values are floored to LikelihoodFloor.
//
// Frack refines a vector with a bounded local search. DrawWalker samples a
// starting vector from the parameter priors.
//
// # Concurrency
//
// Modules keep state between calls and a Model is not safe for concurrent
// evaluation. Build one Model per worker.
//
// # Error Classification
//
//   - Config: the graph or a module configuration is broken; New fails.
//   - Numeric: one evaluation failed; Objective floors it.
//   - Contract: the caller passed a vector of the wrong length.
package engine
