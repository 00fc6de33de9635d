package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// peakedModel has a single maximum at p = 3, i.e. x = 0.3.
func peakedModel(t *testing.T) *Model {
	t.Helper()
	h := newHarness(t)
	h.objective = func(_ *TaskSpec, in Context) (float64, error) {
		p, err := in.Float("p")
		if err != nil {
			return 0, err
		}
		q, err := in.Float("q")
		if err != nil {
			return 0, err
		}
		return -(p-3)*(p-3) - (q-5)*(q-5), nil
	}
	return h.build(NewSpec(
		param("p", 0, 10),
		param("q", 0, 10),
		task("obj", KindObjective, "p", "q"),
	))
}

func TestFrack_Reproducible(t *testing.T) {
	x := []float64{0.4, 0.45}
	for _, seed := range []uint64{1, 2, 3, 42} {
		a, err := peakedModel(t).Frack(x, seed)
		if err != nil {
			t.Fatalf("Frack failed: %v", err)
		}
		b, err := peakedModel(t).Frack(x, seed)
		if err != nil {
			t.Fatalf("Frack failed: %v", err)
		}
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("seed %d: results differ (-first +second):\n%s", seed, diff)
		}

		m := peakedModel(t)
		c, _ := m.Frack(x, seed)
		d, _ := m.Frack(x, seed)
		if diff := cmp.Diff(c, d); diff != "" {
			t.Errorf("seed %d: repeated call on one model differs:\n%s", seed, diff)
		}
	}
}

func TestFrack_ImprovesWithinBox(t *testing.T) {
	x := []float64{0.45, 0.65}
	for _, seed := range []uint64{0, 1, 2, 3, 4, 5} {
		m := peakedModel(t)
		start := m.Objective(x)

		res, err := m.Frack(x, seed)
		if err != nil {
			t.Fatalf("Frack failed: %v", err)
		}
		if res.Method != FrackMethod(seed) {
			t.Errorf("method = %s, want %s", res.Method, FrackMethod(seed))
		}
		if res.Score <= start {
			t.Errorf("seed %d (%s): score %v did not improve on %v", seed, res.Method, res.Score, start)
		}
		for i, v := range res.X {
			if v < x[i]-FrackRadius-1e-12 || v > x[i]+FrackRadius+1e-12 || v < 0 || v > 1 {
				t.Errorf("seed %d: x[%d] = %v left the search box around %v", seed, i, v, x[i])
			}
		}
		if got := m.Objective(res.X); got != res.Score {
			t.Errorf("reported score %v does not match objective at X %v", res.Score, got)
		}
	}
}

func TestFrack_ClipsBoxToUnitInterval(t *testing.T) {
	m := peakedModel(t)
	res, err := m.Frack([]float64{0.05, 0.98}, 7)
	if err != nil {
		t.Fatalf("Frack failed: %v", err)
	}
	for i, v := range res.X {
		if v < 0 || v > 1 {
			t.Errorf("x[%d] = %v outside [0,1]", i, v)
		}
	}
}

func TestFrackMethod_Deterministic(t *testing.T) {
	seen := make(map[string]bool)
	for seed := uint64(0); seed < 64; seed++ {
		a, b := FrackMethod(seed), FrackMethod(seed)
		if a != b {
			t.Fatalf("seed %d selected %s then %s", seed, a, b)
		}
		seen[a] = true
	}
	if len(seen) != len(frackMethods) {
		t.Errorf("64 seeds selected only %v", seen)
	}
}

func TestFrack_LengthMismatch(t *testing.T) {
	if _, err := peakedModel(t).Frack([]float64{0.5}, 1); !IsContractError(err) {
		t.Errorf("expected contract error, got %v", err)
	}
}
