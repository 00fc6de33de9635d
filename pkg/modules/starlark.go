package modules

import (
	"fmt"
	"os"
	"sort"
	"time"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

const defaultScriptTimeout = 5 * time.Second

// Scripted runs a user Starlark script as a module. The script must define
// process(inputs) returning a dict. It may also define request(key) and
// handle_requests(requests) to take part in negotiation.
type Scripted struct {
	base

	timeout time.Duration
	globals starlark.StringDict
	process starlark.Callable
}

// NewScripted compiles the script from the "script" field or the file named
// by "path". "timeout" is in seconds.
func NewScripted(task *engine.TaskSpec) (engine.Module, error) {
	src := task.String("script")
	filename := task.Name + ".star"
	if src == "" {
		path := task.String("path")
		if path == "" {
			return nil, fmt.Errorf("starlark module requires script or path")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		src, filename = string(data), path
	}

	s := &Scripted{
		base:    base{name: task.Name},
		timeout: defaultScriptTimeout,
	}
	if secs, ok := task.Float("timeout"); ok && secs > 0 {
		s.timeout = time.Duration(secs * float64(time.Second))
	}

	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"math":   starlarkmath.Module,
	}
	thread := s.thread()
	globals, err := starlark.ExecFile(thread, filename, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}
	globals.Freeze()

	fn, ok := globals["process"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("script %s does not define process(inputs)", filename)
	}
	s.globals = globals
	s.process = fn
	return s, nil
}

func (s *Scripted) thread() *starlark.Thread {
	return &starlark.Thread{
		Name:  s.name,
		Print: func(*starlark.Thread, string) {},
	}
}

// call invokes fn with a deadline. The thread is cancelled when the timeout
// elapses, which aborts the script at its next step.
func (s *Scripted) call(fn starlark.Callable, args ...starlark.Value) (starlark.Value, error) {
	thread := s.thread()
	timer := time.AfterFunc(s.timeout, func() {
		thread.Cancel(fmt.Sprintf("execution timeout after %v", s.timeout))
	})
	defer timer.Stop()
	return starlark.Call(thread, fn, args, nil)
}

// Process implements engine.Module.
func (s *Scripted) Process(inputs engine.Context) (engine.Context, error) {
	in, err := toStarlarkValue(map[string]any(inputs))
	if err != nil {
		return nil, fmt.Errorf("convert inputs: %w", err)
	}
	result, err := s.call(s.process, in)
	if err != nil {
		return nil, err
	}
	out, err := fromStarlarkValue(result)
	if err != nil {
		return nil, fmt.Errorf("convert outputs: %w", err)
	}
	dict, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("process must return a dict, got %s", result.Type())
	}
	return engine.Context(dict), nil
}

// Request implements engine.Requester through the script's request(key).
func (s *Scripted) Request(key string) any {
	fn, ok := s.globals["request"].(starlark.Callable)
	if !ok {
		return nil
	}
	v, err := s.call(fn, starlark.String(key))
	if err != nil {
		return nil
	}
	out, err := fromStarlarkValue(v)
	if err != nil {
		return nil
	}
	return out
}

// HandleRequests implements engine.RequestHandler through the script's
// handle_requests(requests). The script signals rejection by failing.
func (s *Scripted) HandleRequests(requests map[string]any) error {
	fn, ok := s.globals["handle_requests"].(starlark.Callable)
	if !ok {
		return nil
	}
	in, err := toStarlarkValue(requests)
	if err != nil {
		return err
	}
	_, err = s.call(fn, in)
	return err
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []float64:
		list := make([]starlark.Value, len(val))
		for i, f := range val {
			list[i] = starlark.Float(f)
		}
		return starlark.NewList(list), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			starlarkVal, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		if f, ok := engine.AsFloat(v); ok {
			return starlark.Float(f), nil
		}
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value. Lists of
// numbers become []float64 so numeric series flow between modules unchanged.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		return fromStarlarkSequence(val)
	case starlark.Tuple:
		return fromStarlarkSequence(val)
	case *starlark.Dict:
		dict := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func fromStarlarkSequence(seq starlark.Indexable) (any, error) {
	n := seq.Len()
	items := make([]any, n)
	numeric := n > 0
	for i := range n {
		item, err := fromStarlarkValue(seq.Index(i))
		if err != nil {
			return nil, err
		}
		items[i] = item
		switch item.(type) {
		case float64, int64:
		default:
			numeric = false
		}
	}
	if !numeric {
		return items, nil
	}
	series := make([]float64, n)
	for i, item := range items {
		series[i], _ = engine.AsFloat(item)
	}
	return series, nil
}
