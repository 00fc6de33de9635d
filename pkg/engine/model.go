package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

// Model is a built, negotiated pipeline ready for evaluation.
//
// The call stack and free parameter set are fixed after New. Module instances
// are mutated by every evaluation, so a Model serves one evaluation at a time.
type Model struct {
	spec    *Spec
	trees   []*TreeNode
	stack   *CallStack
	modules map[string]Module

	free      []string
	freeMods  []ParameterModule
	freeIndex map[string]int
	fixed     map[string]bool

	maxDraws int

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// Option configures a Model.
type Option func(*Model)

// WithFixed excludes the named parameters from the free parameter set.
func WithFixed(names ...string) Option {
	return func(m *Model) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				m.fixed[n] = true
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l.NewComponentLogger("engine")
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Model) { m.metrics = metrics }
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(m *Model) { m.tracer = t }
}

// WithMaxDraws caps DrawWalker attempts. Zero keeps retries unbounded.
func WithMaxDraws(n int) Option {
	return func(m *Model) { m.maxDraws = n }
}

// New validates spec, builds the call stack, instantiates every module from
// registry, resolves free parameters and runs request negotiation.
func New(ctx context.Context, spec *Spec, registry *Registry, opts ...Option) (_ *Model, err error) {
	m := &Model{
		spec:      spec,
		modules:   make(map[string]Module, len(spec.Tasks)),
		freeIndex: make(map[string]int),
		fixed:     make(map[string]bool),
		logger:    telemetry.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}

	_, span := m.tracer.StartBuildSpan(ctx, len(spec.Tasks))
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
			m.metrics.RecordError(string(classOf(err)), CodeOf(err))
		} else {
			span.SetAttributes(
				telemetry.AttrFreeCount.Int(len(m.free)),
				telemetry.AttrMaxDepth.Int(m.stack.MaxDepth),
			)
			telemetry.RecordSuccess(span)
		}
		span.End()
	}()

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	for task, inputs := range spec.UnknownInputs() {
		m.logger.Zerolog().Warn().Str("task", task).Strs("inputs", inputs).Msg("inputs name no declared task")
	}

	m.trees, err = BuildTrees(spec)
	if err != nil {
		return nil, err
	}
	placements, maxDepth := ResolveDepths(spec, m.trees)
	m.stack = AssembleCallStack(spec, placements, maxDepth)

	for _, e := range m.stack.Entries {
		mod, err := registry.Instantiate(e.Task)
		if err != nil {
			return nil, err
		}
		m.modules[e.Task.Name] = mod
	}

	m.free = resolveFree(m.stack, m.fixed)
	freeSet := make(map[string]bool, len(m.free))
	for i, name := range m.free {
		pm, ok := m.modules[name].(ParameterModule)
		if !ok {
			return nil, NewConfigError("free parameter module does not implement ParameterModule", nil).
				WithCode(ErrCodeValidation).WithTask(name)
		}
		m.freeMods = append(m.freeMods, pm)
		m.freeIndex[name] = i
		freeSet[name] = true
	}
	for name, mod := range m.modules {
		if fs, ok := mod.(FreeSetter); ok {
			fs.SetFree(freeSet[name])
		}
	}

	if err := negotiate(m.stack, m.modules, m.logger); err != nil {
		return nil, err
	}

	m.logger.Zerolog().Info().
		Int("tasks", m.stack.Len()).
		Int("max_depth", m.stack.MaxDepth).
		Strs("free", m.free).
		Msg("model built")
	return m, nil
}

// CallStack returns the execution order.
func (m *Model) CallStack() *CallStack {
	return m.stack
}

// MaxDepth returns the deepest tree depth.
func (m *Model) MaxDepth() int {
	return m.stack.MaxDepth
}

// Spec returns the declared model the stack was built from.
func (m *Model) Spec() *Spec {
	return m.spec
}

// Trees returns the per-root dependency trees the stack was built from.
func (m *Model) Trees() []*TreeNode {
	return m.trees
}

// FreeParameters returns the free parameter names in coordinate order.
func (m *Model) FreeParameters() []string {
	return append([]string(nil), m.free...)
}

// NumFree returns the length of the coordinate vector.
func (m *Model) NumFree() int {
	return len(m.free)
}

// Module returns the instance backing a task.
func (m *Model) Module(name string) (Module, bool) {
	mod, ok := m.modules[name]
	return mod, ok
}

// PhysicalValues maps a coordinate vector to each free parameter's value.
func (m *Model) PhysicalValues(x []float64) (map[string]float64, error) {
	if err := m.checkLength(x); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(x))
	for i, pm := range m.freeMods {
		out[m.free[i]] = pm.Value(x[i])
	}
	return out, nil
}

// Describe renders the call stack as aligned text.
func (m *Model) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-5s  %-20s  %-12s  %-16s  %s\n", "DEPTH", "TASK", "KIND", "ROOTS", "FREE")
	for _, e := range m.stack.Entries {
		free := ""
		if i, ok := m.freeIndex[e.Task.Name]; ok {
			free = fmt.Sprintf("x[%d]", i)
		}
		fmt.Fprintf(&sb, "%-5d  %-20s  %-12s  %-16s  %s\n",
			e.Depth, e.Task.Name, e.Task.Kind, strings.Join(e.Roots, ","), free)
	}
	return sb.String()
}

func (m *Model) checkLength(x []float64) error {
	if len(x) != len(m.free) {
		return NewContractError(fmt.Sprintf("coordinate vector has %d entries, model has %d free parameters", len(x), len(m.free)), nil).
			WithCode(ErrCodeCoordinates)
	}
	return nil
}
