// Package fitter drives a fit: it draws walkers from the priors of a model's
// free parameters, refines each with local optimization and records the
// results.
//
// Models mutate their modules on every evaluation, so the fitter never shares
// one across goroutines. Each worker in the errgroup pool builds its own
// model from a ModelFactory and pulls walker indices from a shared queue.
// Walker i always draws from PCG(seed+i) and refines with seeds
// seed+i*iterations+k, so results do not depend on the worker count.
package fitter
