// Package config defines the Lattice workflow/hooks configuration
// and its load/save path against ".lattice/config.json". This
// package holds no global state: callers load a *Config explicitly
// and thread it through. CLI-level flag/env binding on top of a
// loaded Config lives in cmd/lattice.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/events"
	"github.com/lattice-dev/lattice/internal/fsutil"
)

// TransitionHook is one "from -> to" => command pattern. Hooks are
// stored as a JSON array so their on-disk order is preserved (spec.md
// §4.3 — precedence matching needs to know original insertion order).
type TransitionHook struct {
	Pattern string `json:"pattern"`
	Command string `json:"command"`
}

// Hooks configures post-event side effects (spec.md §3.1).
type Hooks struct {
	PostEvent   string            `json:"post_event,omitempty"`
	On          map[string]string `json:"on,omitempty"`
	Transitions []TransitionHook  `json:"transitions,omitempty"`
}

// Workflow defines the task status state machine (spec.md §3.1).
type Workflow struct {
	Statuses         []string            `json:"statuses"`
	Transitions      map[string][]string `json:"transitions"`
	WIPLimits        map[string]int      `json:"wip_limits,omitempty"`
	UniversalTargets []string            `json:"universal_targets,omitempty"`
}

// HasStatus implements events.WorkflowPolicy.
func (w Workflow) HasStatus(status string) bool {
	for _, s := range w.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTransitionAllowed implements events.WorkflowPolicy: to is reachable
// from from either because it is listed under from, or because to is a
// universal target reachable from anywhere.
func (w Workflow) IsTransitionAllowed(from, to string) bool {
	for _, u := range w.UniversalTargets {
		if u == to {
			return true
		}
	}
	for _, allowed := range w.Transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Config is the full ".lattice/config.json" document (spec.md §3.1).
type Config struct {
	SchemaVersion    int            `json:"schema_version"`
	ProjectCode      string         `json:"project_code,omitempty"`
	Workflow         Workflow       `json:"workflow"`
	Hooks            Hooks          `json:"hooks,omitempty"`
	CompletionPolicy map[string]any `json:"completion_policy,omitempty"`
	WorkerPolicies   map[string]any `json:"worker_policies,omitempty"`
}

// Default returns the built-in workflow shipped by `lattice init`
// (backlog -> ready -> in_progress -> done, with cancelled as a
// universal target).
func Default() Config {
	return Config{
		SchemaVersion: 1,
		Workflow: Workflow{
			Statuses: []string{"backlog", "ready", "in_progress", "blocked", "done", "cancelled"},
			Transitions: map[string][]string{
				"backlog":     {"ready", "cancelled"},
				"ready":       {"in_progress", "blocked", "cancelled"},
				"in_progress": {"blocked", "done", "cancelled"},
				"blocked":     {"ready", "in_progress", "cancelled"},
				"done":        {},
				"cancelled":   {},
			},
			UniversalTargets: []string{"cancelled"},
		},
	}
}

// Path returns the path to config.json under root.
func Path(root string) string {
	return filepath.Join(fsutil.LatticeDir(root), "config.json")
}

// Load reads and parses config.json, preserving the order of the
// hooks.transitions array so transition-hook precedence
// matching (spec.md §4.3, §8 property 6) reflects the file as written.
func Load(root string) (Config, error) {
	const op = "config.Load"

	path := Path(root)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, errs.Wrap(errs.KindIO, op, "read config.json", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errs.Wrap(errs.KindConfig, op, "parse config.json", err)
	}

	return cfg, nil
}

// Save atomically writes cfg to config.json using the same
// deterministic serializer as snapshots (spec.md §4.1, §6).
func Save(root string, cfg Config) error {
	data, err := fsutil.MarshalPrettySorted(cfg)
	if err != nil {
		return errs.Wrap(errs.KindConfig, "config.Save", "marshal config", err)
	}
	return fsutil.AtomicWrite(Path(root), data, 0644)
}

// PatternMap returns transitions as the (map, order) pair
// events.MatchTransitionHooks expects, normalizing whitespace around
// each pattern's arrow.
func (h Hooks) PatternMap() (patterns map[string]string, order []string) {
	patterns = make(map[string]string, len(h.Transitions))
	order = make([]string, 0, len(h.Transitions))
	for _, th := range h.Transitions {
		key := events.NormalizePattern(th.Pattern)
		patterns[key] = th.Command
		order = append(order, key)
	}
	return patterns, order
}
