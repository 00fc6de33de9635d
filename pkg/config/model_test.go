package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

func TestParseModel_PreservesOrder(t *testing.T) {
	raw, err := ParseModel([]byte(`
zeta: {kind: parameter, value: 1}
alpha: {kind: engine, inputs: zeta}
mid: {kind: objective, inputs: [alpha]}
`))
	if err != nil {
		t.Fatalf("ParseModel failed: %v", err)
	}
	var names []string
	for _, rt := range raw {
		names = append(names, rt.Name)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, names); diff != "" {
		t.Errorf("declaration order lost (-want +got):\n%s", diff)
	}
	if raw[1].Line != 3 {
		t.Errorf("alpha declared on line %d, want 3", raw[1].Line)
	}
}

func TestParseModel_JSON(t *testing.T) {
	raw, err := ParseModel([]byte(`{"b": {"kind": "output"}, "a": {"kind": "parameter", "min_value": 1.5}}`))
	if err != nil {
		t.Fatalf("ParseModel failed: %v", err)
	}
	if raw[0].Name != "b" || raw[1].Name != "a" {
		t.Errorf("JSON key order lost: %v", raw)
	}
	if raw[1].Fields["min_value"] != 1.5 {
		t.Errorf("min_value = %v", raw[1].Fields["min_value"])
	}
}

func TestParseModel_Errors(t *testing.T) {
	for _, data := range []string{"", "- a\n- b\n", "a: [1, 2]\n", "a: {kind: [\n"} {
		if _, err := ParseModel([]byte(data)); err == nil {
			t.Errorf("ParseModel(%q) should fail", data)
		}
	}
}

func TestModelLoader_Load(t *testing.T) {
	ml := NewModelLoader(nil)
	spec, err := ml.Load(context.Background(), "testdata/model.yaml", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var names []string
	for _, ts := range spec.Tasks {
		names = append(names, ts.Name)
	}
	want := []string{"transient", "texplosion", "fnickel", "densetimes", "nickelcobalt", "likelihood"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("task order mismatch (-want +got):\n%s", diff)
	}

	like, _ := spec.Get("likelihood")
	if diff := cmp.Diff([][]string{nil, {"bands"}}, like.Requests); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if err := spec.Validate(); err != nil {
		t.Errorf("loaded spec should validate: %v", err)
	}
}

func TestModelLoader_ParametersOverride(t *testing.T) {
	ml := NewModelLoader(nil)
	spec, err := ml.Load(context.Background(), "testdata/model.yaml", "testdata/parameters.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	fnickel, _ := spec.Get("fnickel")
	if *fnickel.MinValue != 0.05 || *fnickel.MaxValue != 0.5 || !fnickel.Bool("log") {
		t.Errorf("fnickel override should merge fields: min=%v max=%v", *fnickel.MinValue, *fnickel.MaxValue)
	}
	texp, _ := spec.Get("texplosion")
	if *texp.MinValue != -10 || *texp.MaxValue != -10 {
		t.Errorf("texplosion bounds = [%v, %v], want pinned at -10", *texp.MinValue, *texp.MaxValue)
	}
	if _, ok := spec.Get("undeclared"); ok {
		t.Error("overrides must not add tasks")
	}
}

func TestModelLoader_CollectsAllViolations(t *testing.T) {
	ml := NewModelLoader(nil)
	_, err := ml.Load(context.Background(), "testdata/invalid.yaml", "")
	if !engine.IsConfigError(err) {
		t.Fatalf("expected config error, got %v", err)
	}

	var problems ValidationErrors
	if !errors.As(err, &problems) {
		t.Fatalf("error should carry ValidationErrors: %v", err)
	}
	var tasks []string
	for _, p := range problems {
		tasks = append(tasks, p.Task)
		if p.Line == 0 {
			t.Errorf("problem for %s has no line", p.Task)
		}
	}
	if diff := cmp.Diff([]string{"nokind", "badparam"}, tasks); diff != "" {
		t.Errorf("reported tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestModelLoader_MissingFiles(t *testing.T) {
	ml := NewModelLoader(nil)
	if _, err := ml.Load(context.Background(), "testdata/nope.yaml", ""); err == nil {
		t.Error("missing model should fail")
	}
	if _, err := ml.Load(context.Background(), "testdata/model.yaml", "testdata/nope.yaml"); err == nil {
		t.Error("missing parameters file should fail")
	}
}

func TestModelLoader_ResolvesRelativePaths(t *testing.T) {
	ml := NewModelLoader(nil)
	spec, err := ml.Load(context.Background(), "testdata/pathmodel.yaml", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	tr, _ := spec.Get("transient")
	if got, want := tr.String("path"), filepath.Join("testdata", "data", "observations.yaml"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
