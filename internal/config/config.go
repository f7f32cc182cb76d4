// Package config loads the ash-policy.yaml file describing, per matched
// binding pattern, the minimum ash.Mode a request must carry and whether
// proof chaining is required. It is consumed only by the domain-stack HTTP
// demo server — the core ash package knows nothing about policy files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slyt3/ash"
	"github.com/slyt3/ash/internal/assert"
	"gopkg.in/yaml.v3"
)

// Config is the ash-policy.yaml structure.
type Config struct {
	Version  string `yaml:"version"`
	Defaults struct {
		Mode         string `yaml:"mode"`
		RequireChain bool   `yaml:"require_chain"`
		LogLevel     string `yaml:"log_level"`
	} `yaml:"defaults"`
	Rules []Rule `yaml:"rules"`
}

// Rule binds a pattern like "POST /transfer*" to a minimum mode and an
// optional chaining requirement.
type Rule struct {
	ID            string   `yaml:"id"`
	MatchBinding  string   `yaml:"match_binding"`
	MinMode       string   `yaml:"min_mode"`
	RequireChain  bool     `yaml:"require_chain"`
	RequiredScope []string `yaml:"required_scope,omitempty"`
}

// Engine evaluates the loaded policy against incoming bindings.
type Engine struct {
	config *Config
}

// NewEngine loads and parses the policy file at configPath.
func NewEngine(configPath string) (*Engine, error) {
	if err := assert.Check(configPath != "", "config path must not be empty"); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &Engine{config: cfg}, nil
}

// NewEngineForTest builds an Engine directly from an in-memory Config,
// bypassing the filesystem — used by tests that want a policy fixture
// without writing a YAML file to disk.
func NewEngineForTest(cfg *Config) *Engine {
	return &Engine{config: cfg}
}

func loadConfig(path string) (*Config, error) {
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	return &cfg, nil
}

// Version returns the policy file's declared version.
func (e *Engine) Version() string {
	return e.config.Version
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	return len(e.config.Rules)
}

// RequirementsFor returns the minimum mode and chain requirement for a
// normalized binding string, falling back to the file's defaults when no
// rule matches.
func (e *Engine) RequirementsFor(binding string) (minMode ash.Mode, requireChain bool, matchedRule *Rule) {
	for i := range e.config.Rules {
		rule := &e.config.Rules[i]
		if matchBindingPattern(rule.MatchBinding, binding) {
			mode, err := ash.ParseMode(rule.MinMode)
			if err != nil {
				mode = ash.DefaultMode()
			}
			return mode, rule.RequireChain, rule
		}
	}

	mode, err := ash.ParseMode(e.config.Defaults.Mode)
	if err != nil {
		mode = ash.DefaultMode()
	}
	return mode, e.config.Defaults.RequireChain, nil
}

// matchBindingPattern matches a normalized binding against a pattern that
// may end in "*" for a prefix match (e.g. "POST /transfer*").
func matchBindingPattern(pattern, binding string) bool {
	if err := assert.Check(pattern != "", "pattern must not be empty"); err != nil {
		return false
	}
	if err := assert.Check(binding != "", "binding must not be empty"); err != nil {
		return false
	}
	if pattern == binding {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(binding, prefix)
	}
	return false
}
