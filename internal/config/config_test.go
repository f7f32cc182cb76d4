package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/slyt3/ash"
)

const sampleYAML = `
version: "1.0"
defaults:
  mode: balanced
  require_chain: false
  log_level: info
rules:
  - id: transfer-strict
    match_binding: "POST /transfer*"
    min_mode: strict
    require_chain: true
  - id: reads-minimal
    match_binding: "GET *"
    min_mode: minimal
    require_chain: false
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ash-policy.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestNewEngine_LoadsVersionAndRules(t *testing.T) {
	eng, err := NewEngine(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.Version() != "1.0" {
		t.Fatalf("got version %q", eng.Version())
	}
	if eng.RuleCount() != 2 {
		t.Fatalf("got %d rules, want 2", eng.RuleCount())
	}
}

func TestRequirementsFor_MatchesPatternOverDefault(t *testing.T) {
	eng, err := NewEngine(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mode, requireChain, rule := eng.RequirementsFor("POST /transfer/123")
	if mode != ash.ModeStrict {
		t.Fatalf("got mode %v, want strict", mode)
	}
	if !requireChain {
		t.Fatal("expected chaining to be required")
	}
	if rule == nil || rule.ID != "transfer-strict" {
		t.Fatalf("expected matched rule transfer-strict, got %#v", rule)
	}
}

func TestRequirementsFor_FallsBackToDefaults(t *testing.T) {
	eng, err := NewEngine(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mode, requireChain, rule := eng.RequirementsFor("DELETE /accounts/5")
	if mode != ash.ModeBalanced {
		t.Fatalf("got mode %v, want balanced default", mode)
	}
	if requireChain {
		t.Fatal("expected default require_chain to be false")
	}
	if rule != nil {
		t.Fatalf("expected no matched rule, got %#v", rule)
	}
}

func TestNewEngine_RejectsMissingFile(t *testing.T) {
	if _, err := NewEngine(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}
