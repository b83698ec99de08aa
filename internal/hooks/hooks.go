// Package hooks dispatches post-event side effects configured in
// config.Hooks (spec.md §4.4 step 4): a global post_event command, an
// on.<type> command per event type, and wildcard-aware transition
// hooks for status_changed events. Every invocation is a detached
// shell command; failures are logged and never propagate back to the
// write pipeline.
package hooks

import (
	"log/slog"
	"time"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/events"
)

// defaultTimeout bounds how long a fire-and-forget hook may run before
// its process group is killed. The write pipeline never waits on this;
// it only protects against hooks accumulating forever in the
// background across a long-lived process.
const defaultTimeout = 30 * time.Second

// Runner executes hook commands asynchronously.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner returns a Runner that logs failures to logger. A nil
// logger falls back to slog.Default().
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{timeout: defaultTimeout, logger: logger}
}

// Dispatch fires every hook configured for taskID's newly-appended
// events, in the order: global post_event, then per-event on.<type>,
// then (for status_changed events) transition hooks in
// MatchTransitionHooks precedence order. The hooks run one after
// another in a single background goroutine, so Dispatch returns
// without waiting. Called outside the write lock (spec.md §4.4 step 4).
func (r *Runner) Dispatch(cfg config.Hooks, taskID string, appended []events.Event) {
	go r.dispatchInOrder(cfg, taskID, appended)
}

func (r *Runner) dispatchInOrder(cfg config.Hooks, taskID string, appended []events.Event) {
	patterns, order := cfg.PatternMap()

	for _, ev := range appended {
		env := baseEnv(taskID, ev)

		if cfg.PostEvent != "" {
			r.run(cfg.PostEvent, env)
		}
		if cmd, ok := cfg.On[string(ev.Type)]; ok && cmd != "" {
			r.run(cmd, env)
		}
		if ev.Type == events.StatusChanged {
			from, _ := ev.Data["from"].(string)
			to, _ := ev.Data["to"].(string)
			transEnv := append(append([]string(nil), env...), "FROM_STATUS="+from, "TO_STATUS="+to)
			for _, cmd := range events.MatchTransitionHooks(patterns, order, from, to) {
				r.run(cmd, transEnv)
			}
		}
	}
}

func baseEnv(taskID string, ev events.Event) []string {
	return []string{
		"LATTICE_TASK_ID=" + taskID,
		"LATTICE_EVENT_ID=" + ev.ID,
		"LATTICE_EVENT_TYPE=" + string(ev.Type),
		"LATTICE_ACTOR=" + ev.Actor,
		"LATTICE_TS=" + ev.TS,
	}
}

// run executes cmd and logs (without surfacing) any failure.
func (r *Runner) run(cmd string, env []string) {
	if cmd == "" {
		return
	}
	if err := r.runHook(cmd, env); err != nil {
		r.logger.Warn("hook failed", "command", cmd, "error", err)
	}
}
