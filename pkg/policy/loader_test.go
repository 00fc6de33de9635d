package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test-policy.rego")
	content := `# First line.
# Second line.

package test.policy

import rego.v1

deny contains "always" if true
`
	writeFile(t, path, content)

	p, err := NewLoader(nil).loadFromFile(path)
	if err != nil {
		t.Fatalf("loadFromFile failed: %v", err)
	}
	if p.Name != "test-policy" || p.Rego != content || p.Source != path {
		t.Errorf("unexpected policy: %+v", p)
	}
	if p.Description != "First line. Second line." {
		t.Errorf("Description = %q", p.Description)
	}
	if p.Severity != SeverityWarning || !p.Enabled {
		t.Errorf("defaults not applied: severity %q enabled %v", p.Severity, p.Enabled)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.json")
	writeFile(t, path, `{"name": "json-policy", "rego": "package x\n", "severity": "error"}`)

	p, err := NewLoader(nil).loadFromFile(path)
	if err != nil {
		t.Fatalf("loadFromFile failed: %v", err)
	}
	if p.Name != "json-policy" || p.Severity != SeverityError || !p.Enabled {
		t.Errorf("unexpected policy: %+v", p)
	}

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"rego": "package x\n"}`)
	if _, err := NewLoader(nil).loadFromFile(bad); err == nil {
		t.Error("JSON policy without a name should fail")
	}
}

func TestLoadFromPaths_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), "package a\n")
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), "package b\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "broken.json"), "{")

	policies, err := NewLoader(nil).LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("loaded %d policies, want 2 (unreadable files are skipped)", len(policies))
	}
	for _, p := range policies {
		if p.Name != "a" && p.Name != "b" {
			t.Errorf("unexpected policy %q", p.Name)
		}
	}
}

func TestLoadFromPaths_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLoader(nil).LoadFromPaths(ctx, []string{t.TempDir()}); err == nil {
		t.Error("cancelled load should fail")
	}
}
