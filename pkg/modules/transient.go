package modules

import (
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Observation is one photometric measurement.
type Observation struct {
	Time  float64 `yaml:"time" json:"time"`
	Value float64 `yaml:"magnitude" json:"magnitude"`
	Error float64 `yaml:"e_magnitude" json:"e_magnitude"`
	Band  string  `yaml:"band" json:"band"`
}

type observationFile struct {
	Observations []Observation `yaml:"observations"`
}

// Transient serves observed photometry. Consumers may restrict the served
// bands through request negotiation.
type Transient struct {
	base

	all   []Observation
	bands map[string]bool
	data  engine.Context
}

// NewTransient loads observations declared inline under "observations" or
// from the YAML or JSON file named by "path".
func NewTransient(task *engine.TaskSpec) (engine.Module, error) {
	var obs []Observation
	switch {
	case task.Fields["observations"] != nil:
		raw, err := yaml.Marshal(task.Fields["observations"])
		if err != nil {
			return nil, fmt.Errorf("encode observations: %w", err)
		}
		if err := yaml.Unmarshal(raw, &obs); err != nil {
			return nil, fmt.Errorf("decode observations: %w", err)
		}
	case task.String("path") != "":
		var err error
		if obs, err = LoadObservations(task.String("path")); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("transient requires observations or path")
	}

	t := &Transient{base: base{name: task.Name}}
	for _, o := range obs {
		if math.IsNaN(o.Time) || math.IsNaN(o.Value) {
			continue
		}
		t.all = append(t.all, o)
	}
	if len(t.all) == 0 {
		return nil, fmt.Errorf("transient %s has no usable observations", task.Name)
	}
	sort.SliceStable(t.all, func(i, j int) bool { return t.all[i].Time < t.all[j].Time })

	if bands := task.Strings("bands"); len(bands) > 0 {
		t.restrict(bands)
	}
	t.rebuild()
	return t, nil
}

// LoadObservations reads a file holding either a list of observations or a
// mapping with an "observations" list.
func LoadObservations(path string) ([]Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse observations %s: %w", path, err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("observations file %s is empty", path)
	}

	var obs []Observation
	if node.Content[0].Kind == yaml.SequenceNode {
		err = node.Content[0].Decode(&obs)
	} else {
		var f observationFile
		err = node.Content[0].Decode(&f)
		obs = f.Observations
	}
	if err != nil {
		return nil, fmt.Errorf("decode observations %s: %w", path, err)
	}
	return obs, nil
}

// HandleRequests implements engine.RequestHandler. A "bands" request adds
// the named bands to the served set.
func (t *Transient) HandleRequests(requests map[string]any) error {
	raw, ok := requests[keyBands]
	if !ok || raw == nil {
		return nil
	}
	var bands []string
	switch v := raw.(type) {
	case []string:
		bands = v
	case []any:
		for _, b := range v {
			s, ok := b.(string)
			if !ok {
				return fmt.Errorf("band request contains %T", b)
			}
			bands = append(bands, s)
		}
	case string:
		bands = []string{v}
	default:
		return fmt.Errorf("band request is %T, not a list", raw)
	}

	known := t.Bands()
	for _, b := range bands {
		if !slices.Contains(known, b) {
			return fmt.Errorf("no observations in band %q", b)
		}
	}
	t.restrict(bands)
	t.rebuild()
	return nil
}

// Bands lists every band present in the loaded observations, sorted.
func (t *Transient) Bands() []string {
	set := make(map[string]bool)
	for _, o := range t.all {
		set[o.Band] = true
	}
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

func (t *Transient) restrict(bands []string) {
	if t.bands == nil {
		t.bands = make(map[string]bool, len(bands))
	}
	for _, b := range bands {
		t.bands[b] = true
	}
}

func (t *Transient) rebuild() {
	var times, values, errs []float64
	var bands []string
	t0 := t.all[0].Time
	for _, o := range t.all {
		if t.bands != nil && !t.bands[o.Band] {
			continue
		}
		times = append(times, o.Time-t0)
		values = append(values, o.Value)
		errs = append(errs, o.Error)
		bands = append(bands, o.Band)
	}
	t.data = engine.Context{
		keyTimes:          times,
		keyObservedValues: values,
		keyObservedErrors: errs,
		keyBands:          bands,
		"reference_time":  t0,
	}
}

// Process returns the served observations. Times are relative to the first
// loaded observation.
func (t *Transient) Process(engine.Context) (engine.Context, error) {
	return t.data, nil
}
