package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveFree(t *testing.T) {
	fixedBounds := param("fixed_bounds", 3, 3)
	noMax := task("no_max", KindParameter)
	noMax.MinValue = fptr(1)

	spec := NewSpec(
		param("a", 0, 10),
		param("b", 0, 1),
		fixedBounds,
		noMax,
		param("overridden", 0, 1),
		task("obj", KindObjective, "a", "b", "fixed_bounds", "no_max", "overridden"),
	)
	cs := assemble(t, spec)

	got := resolveFree(cs, map[string]bool{"overridden": true})
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("free parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFree_FollowsStackOrder(t *testing.T) {
	spec := NewSpec(
		param("shallow", 0, 1),
		task("eng", "engine", "deep"),
		param("deep", 0, 1),
		task("obj", KindObjective, "shallow", "eng"),
	)
	cs := assemble(t, spec)

	if diff := cmp.Diff([]string{"deep", "shallow"}, resolveFree(cs, nil)); diff != "" {
		t.Errorf("free parameters mismatch (-want +got):\n%s", diff)
	}
}

// producer records the requests delivered to it.
type producer struct {
	recorder
	got []map[string]any
	err error
}

func (p *producer) HandleRequests(reqs map[string]any) error {
	p.got = append(p.got, reqs)
	return p.err
}

// consumer answers requests from a fixed table.
type consumer struct {
	recorder
	answers map[string]any
}

func (c *consumer) Request(key string) any { return c.answers[key] }

func negotiationRegistry(t *testing.T, prod *producer) *Registry {
	t.Helper()
	r := NewRegistry()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(r.Register("data", "data", func(ts *TaskSpec) (Module, error) {
		prod.name = ts.Name
		return prod, nil
	}))
	must(r.Register("", "consumer", func(ts *TaskSpec) (Module, error) {
		return &consumer{
			recorder: recorder{name: ts.Name},
			answers:  map[string]any{"bands": []string{ts.Name + "-band"}, "order": ts.Name},
		}, nil
	}))
	must(r.Register("", "plain", func(ts *TaskSpec) (Module, error) {
		return &recorder{name: ts.Name}, nil
	}))
	return r
}

func TestNegotiate_DeliversConsumerAnswersInReverseOrder(t *testing.T) {
	prod := &producer{}
	data := task("transient", "data")
	deep := task("deep", "engine", "transient")
	deep.Class = "consumer"
	deep.Requests = [][]string{{"bands"}}
	shallow := task("obj", KindObjective, "deep", "transient")
	shallow.Class = "consumer"
	shallow.Requests = [][]string{nil, {"bands", "order"}}

	spec := NewSpec(data, deep, shallow)
	_, err := New(context.Background(), spec, negotiationRegistry(t, prod))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	want := []map[string]any{
		{"bands": []string{"obj-band"}, "order": "obj"},
		{"bands": []string{"deep-band"}},
	}
	if diff := cmp.Diff(want, prod.got); diff != "" {
		t.Errorf("delivered requests mismatch (-want +got):\n%s", diff)
	}
	if len(prod.seen) != 0 {
		t.Errorf("negotiation must not run Process, producer ran %d times", len(prod.seen))
	}
}

func TestNegotiate_NonRequesterConsumerSendsNil(t *testing.T) {
	prod := &producer{}
	obj := task("obj", KindObjective, "transient")
	obj.Class = "plain"
	obj.Requests = [][]string{{"bands"}}

	spec := NewSpec(task("transient", "data"), obj)
	if _, err := New(context.Background(), spec, negotiationRegistry(t, prod)); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if diff := cmp.Diff([]map[string]any{{"bands": nil}}, prod.got); diff != "" {
		t.Errorf("delivered requests mismatch (-want +got):\n%s", diff)
	}
}

func TestNegotiate_UnresolvableInputIsFatal(t *testing.T) {
	prod := &producer{}
	obj := task("obj", KindObjective, "transient", "ghost")
	obj.Class = "consumer"
	obj.Requests = [][]string{{"bands"}}

	spec := NewSpec(task("transient", "data"), obj)
	_, err := New(context.Background(), spec, negotiationRegistry(t, prod))
	if err == nil {
		t.Fatal("expected unresolved input error")
	}
	if CodeOf(err) != ErrCodeUnresolvedInput || !IsConfigError(err) {
		t.Errorf("expected %s config error, got %v", ErrCodeUnresolvedInput, err)
	}
}

func TestNegotiate_ProducerRejection(t *testing.T) {
	prod := &producer{err: errors.New("unknown band")}
	obj := task("obj", KindObjective, "transient")
	obj.Class = "consumer"
	obj.Requests = [][]string{{"bands"}}

	spec := NewSpec(task("transient", "data"), obj)
	_, err := New(context.Background(), spec, negotiationRegistry(t, prod))
	if CodeOf(err) != ErrCodeNegotiation {
		t.Fatalf("expected %s, got %v", ErrCodeNegotiation, err)
	}
	if !errors.Is(err, prod.err) {
		t.Errorf("error chain should wrap the producer error: %v", err)
	}
}
