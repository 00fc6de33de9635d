package modules

import (
	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Built-in kinds beyond the engine's root and parameter kinds.
const (
	KindData       = "data"
	KindArray      = "array"
	KindEngine     = "engine"
	KindTransform  = "transform"
	KindObservable = "observable"
)

// ClassStarlark is the kind-agnostic class for scripted modules.
const ClassStarlark = "starlark"

type registration struct {
	kind, class string
	factory     engine.Factory
}

var builtins = []registration{
	{engine.KindParameter, engine.KindParameter, NewParameter},
	{engine.KindParameter, "gaussian", NewGaussian},
	{KindData, "transient", NewTransient},
	{KindData, KindData, NewTransient},
	{KindArray, "densetimes", NewDenseTimes},
	{KindEngine, "nickelcobalt", NewNickelCobalt},
	{KindEngine, "magnetar", NewMagnetar},
	{KindEngine, "csm", NewCSM},
	{KindTransform, "diffusion", NewDiffusion},
	{KindObservable, "photometry", NewPhotometry},
	{engine.KindObjective, "likelihood", NewLikelihood},
	{engine.KindObjective, engine.KindObjective, NewLikelihood},
	{engine.KindOutput, "lightcurve", NewLightcurve},
	{engine.KindOutput, engine.KindOutput, NewLightcurve},
	{"", ClassStarlark, NewScripted},
}

// Register adds every built-in module to r.
func Register(r *engine.Registry) error {
	for _, b := range builtins {
		if err := r.Register(b.kind, b.class, b.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in modules.
func NewRegistry() *engine.Registry {
	r := engine.NewRegistry()
	if err := Register(r); err != nil {
		// The built-in table has no duplicate pairs.
		panic(err)
	}
	return r
}
