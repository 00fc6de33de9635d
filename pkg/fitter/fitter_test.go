package fitter

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/fitgraph/fitgraph/pkg/engine"
	"github.com/fitgraph/fitgraph/pkg/modules"
	"github.com/fitgraph/fitgraph/pkg/stores"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// bowl peaks at a=3, b=5.
type bowl struct{ name string }

func (b *bowl) Name() string { return b.name }

func (b *bowl) Process(in engine.Context) (engine.Context, error) {
	a, err := in.Float("a")
	if err != nil {
		return nil, err
	}
	c, err := in.Float("b")
	if err != nil {
		return nil, err
	}
	return engine.Context{engine.KeyValue: -((a-3)*(a-3) + (c-5)*(c-5))}, nil
}

func bowlFactory(t *testing.T) ModelFactory {
	t.Helper()
	registry := modules.NewRegistry()
	if err := registry.Register(engine.KindObjective, "bowl", func(ts *engine.TaskSpec) (engine.Module, error) {
		return &bowl{name: ts.Name}, nil
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	decl := []struct {
		name   string
		fields map[string]any
	}{
		{"a", map[string]any{"kind": "parameter", "min_value": 0, "max_value": 10}},
		{"b", map[string]any{"kind": "parameter", "min_value": 0, "max_value": 10}},
		{"fit", map[string]any{"kind": "objective", "class": "bowl", "inputs": []any{"a", "b"}}},
	}
	tasks := make([]*engine.TaskSpec, 0, len(decl))
	for _, d := range decl {
		ts, err := engine.NewTaskSpec(d.name, d.fields)
		if err != nil {
			t.Fatalf("NewTaskSpec(%s) failed: %v", d.name, err)
		}
		tasks = append(tasks, ts)
	}
	spec := engine.NewSpec(tasks...)

	return func(ctx context.Context) (*engine.Model, error) {
		return engine.New(ctx, spec, registry)
	}
}

func openStore(t *testing.T) *stores.SQLiteStore {
	t.Helper()
	s, err := stores.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func baseOptions() FitOptions {
	return FitOptions{
		ModelPath:     "bowl.yaml",
		Walkers:       6,
		Workers:       1,
		Seed:          11,
		Iterations:    2,
		Frack:         true,
		RejectInvalid: true,
	}
}

func TestRun_SortedAndIndependentOfWorkers(t *testing.T) {
	factory := bowlFactory(t)
	ctx := context.Background()

	opts := baseOptions()
	serial, err := New(factory).Run(ctx, opts)
	if err != nil {
		t.Fatalf("serial Run failed: %v", err)
	}
	opts.Workers = 3
	parallel, err := New(factory).Run(ctx, opts)
	if err != nil {
		t.Fatalf("parallel Run failed: %v", err)
	}

	if diff := cmp.Diff(serial.Walkers, parallel.Walkers); diff != "" {
		t.Errorf("walker results depend on worker count (-serial +parallel):\n%s", diff)
	}
	if serial.ID == parallel.ID {
		t.Error("each run should get its own ID")
	}
	if diff := cmp.Diff([]string{"a", "b"}, serial.Free); diff != "" {
		t.Errorf("free parameters mismatch (-want +got):\n%s", diff)
	}

	if !slices.IsSortedFunc(serial.Walkers, func(x, y WalkerResult) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		}
		return 0
	}) {
		t.Error("walkers should be sorted best first")
	}

	indices := make([]int, 0, len(serial.Walkers))
	for _, w := range serial.Walkers {
		indices = append(indices, w.Index)
		if w.Seed != WalkerSeed(opts.Seed, w.Index) {
			t.Errorf("walker %d seed = %d, want %d", w.Index, w.Seed, WalkerSeed(opts.Seed, w.Index))
		}
		if len(w.X) != 2 || len(w.Parameters) != 2 {
			t.Errorf("walker %d has position %v and parameters %v", w.Index, w.X, w.Parameters)
		}
	}
	slices.Sort(indices)
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5}, indices); diff != "" {
		t.Errorf("every walker should be reported once (-want +got):\n%s", diff)
	}
}

func TestRun_RefinementImproves(t *testing.T) {
	factory := bowlFactory(t)
	ctx := context.Background()

	opts := baseOptions()
	opts.Frack = false
	drawn, err := New(factory).Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run without refinement failed: %v", err)
	}
	opts.Frack = true
	refined, err := New(factory).Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run with refinement failed: %v", err)
	}

	scores := make(map[int]float64)
	for _, w := range drawn.Walkers {
		if w.Method != "" || w.Evaluations != 1 {
			t.Errorf("unrefined walker %d: method %q, %d evaluations", w.Index, w.Method, w.Evaluations)
		}
		scores[w.Index] = w.Score
	}
	for _, w := range refined.Walkers {
		if w.Score < scores[w.Index] {
			t.Errorf("walker %d got worse: %v < %v", w.Index, w.Score, scores[w.Index])
		}
	}
	if refined.Best().Score <= drawn.Best().Score {
		t.Errorf("refinement should improve the best score: %v <= %v", refined.Best().Score, drawn.Best().Score)
	}
}

func TestRun_PersistsFitAndWalkers(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	res, err := New(bowlFactory(t), WithStore(store)).Run(ctx, baseOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	fit, err := store.GetFit(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetFit failed: %v", err)
	}
	if fit.Status != stores.FitStatusCompleted || fit.BestScore == nil || *fit.BestScore != res.Best().Score {
		t.Errorf("unexpected stored fit: %+v", fit)
	}
	if fit.Seed != 11 || fit.Walkers != 6 || fit.ModelPath != "bowl.yaml" {
		t.Errorf("fit settings not recorded: %+v", fit)
	}

	walkers, err := store.ListWalkers(ctx, res.ID)
	if err != nil {
		t.Fatalf("ListWalkers failed: %v", err)
	}
	if len(walkers) != len(res.Walkers) {
		t.Fatalf("stored %d walkers, want %d", len(walkers), len(res.Walkers))
	}
	best, err := store.BestWalker(ctx, res.ID)
	if err != nil {
		t.Fatalf("BestWalker failed: %v", err)
	}
	if best.Index != res.Best().Index || best.Score != res.Best().Score {
		t.Errorf("stored best walker %d (%v), want %d (%v)", best.Index, best.Score, res.Best().Index, res.Best().Score)
	}
}

func TestRun_FactoryErrorFailsFit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	errBuild := errors.New("model unavailable")

	f := New(func(context.Context) (*engine.Model, error) { return nil, errBuild }, WithStore(store))
	_, err := f.Run(ctx, baseOptions())
	if !errors.Is(err, errBuild) {
		t.Fatalf("Run error = %v, want %v", err, errBuild)
	}

	fits, err := store.ListFits(ctx, 10, 0)
	if err != nil || len(fits) != 1 {
		t.Fatalf("expected one recorded fit, got %d (%v)", len(fits), err)
	}
	if fits[0].Status != stores.FitStatusFailed || fits[0].Error == nil {
		t.Errorf("fit should be marked failed with a message: %+v", fits[0])
	}
}

func TestRun_CancellationMarksFitCancelled(t *testing.T) {
	store := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	build := bowlFactory(t)
	factory := func(ctx context.Context) (*engine.Model, error) {
		m, err := build(ctx)
		cancel()
		return m, err
	}

	_, err := New(factory, WithStore(store)).Run(ctx, baseOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}

	fits, _ := store.ListFits(context.Background(), 10, 0)
	if len(fits) != 1 || fits[0].Status != stores.FitStatusCancelled || fits[0].CompletedAt == nil {
		t.Errorf("fit should be marked cancelled: %+v", fits)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	f := New(bowlFactory(t))
	for _, opts := range []FitOptions{
		{Walkers: 0, Workers: 1},
		{Walkers: 2, Workers: 1, Iterations: -1},
	} {
		if _, err := f.Run(context.Background(), opts); !engine.IsContractError(err) {
			t.Errorf("Run(%+v) error = %v, want contract error", opts, err)
		}
	}
}

func TestSeeds(t *testing.T) {
	if got := WalkerSeed(10, 3); got != 13 {
		t.Errorf("WalkerSeed = %d, want 13", got)
	}
	// Rounds of consecutive walkers never share a seed.
	seen := make(map[uint64]bool)
	for i := range 4 {
		for k := range 3 {
			s := FrackSeed(100, i, 3, k)
			if seen[s] {
				t.Errorf("seed %d reused at walker %d round %d", s, i, k)
			}
			seen[s] = true
		}
	}
}
