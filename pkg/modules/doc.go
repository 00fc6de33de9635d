// Package modules provides the built-in module implementations for fitgraph
// models.
//
// Each module is registered under a (kind, class) pair. A task selects its
// module by kind and by class, which defaults to the task name:
//
//	parameter/parameter   uniform prior, optional log scaling
//	parameter/gaussian    normal prior in the parameter's own space
//	data/transient        observed photometry, band filtering via requests
//	array/densetimes      log-spaced evaluation grid after the explosion
//	engine/nickelcobalt   56Ni and 56Co decay luminosity
//	engine/magnetar       magnetar spin-down luminosity
//	transform/diffusion   Arnett diffusion onto the observed times
//	observable/photometry apparent bolometric magnitudes
//	objective/likelihood  Gaussian log-likelihood
//	output/lightcurve     modeled light curve points
//	*/starlark            user Starlark script
//
// Engines add their luminosity to any luminosity already present in their
// inputs. Because tasks at the same depth cannot see each other's outputs,
// engines meant to combine are chained: the second engine lists the first as
// an input.
//
// The numeric models are illustrative and make no claim of physical
// accuracy.
package modules
