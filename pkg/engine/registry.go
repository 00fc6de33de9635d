package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Factory instantiates the module for one task.
type Factory func(task *TaskSpec) (Module, error)

type registryKey struct {
	kind  string
	class string
}

// Registry maps (kind, class) pairs to module factories.
// An empty kind registers a class usable by tasks of any kind.
type Registry struct {
	mu        sync.RWMutex
	factories map[registryKey]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[registryKey]Factory)}
}

// Register adds a factory. Registering the same pair twice is an error.
func (r *Registry) Register(kind, class string, factory Factory) error {
	if class == "" || factory == nil {
		return NewConfigError("register requires a class and a factory", nil).WithCode(ErrCodeValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey{kind: kind, class: class}
	if _, exists := r.factories[key]; exists {
		return NewConfigError(fmt.Sprintf("module %s/%s already registered", kind, class), nil).
			WithCode(ErrCodeDuplicateRegister)
	}
	r.factories[key] = factory
	return nil
}

// Lookup finds the factory for a task of the given kind and class, trying the
// exact pair, then a kind-agnostic class, then the kind's default class.
func (r *Registry) Lookup(kind, class string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range []registryKey{
		{kind: kind, class: class},
		{kind: "", class: class},
		{kind: kind, class: kind},
	} {
		if f, ok := r.factories[key]; ok {
			return f, true
		}
	}
	return nil, false
}

// Instantiate creates the module for a task.
func (r *Registry) Instantiate(task *TaskSpec) (Module, error) {
	factory, ok := r.Lookup(task.Kind, task.ClassName())
	if !ok {
		return nil, NewConfigError(fmt.Sprintf("no module registered for %s/%s", task.Kind, task.ClassName()), nil).
			WithCode(ErrCodeUnknownModule).WithTask(task.Name)
	}
	mod, err := factory(task)
	if err != nil {
		return nil, NewConfigError("failed to instantiate module", err).
			WithCode(ErrCodeValidation).WithTask(task.Name)
	}
	return mod, nil
}

// Classes lists registered pairs as "kind/class", sorted. Kind-agnostic
// classes are listed as "*/class".
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for key := range r.factories {
		kind := key.kind
		if kind == "" {
			kind = "*"
		}
		out = append(out, kind+"/"+key.class)
	}
	sort.Strings(out)
	return out
}
