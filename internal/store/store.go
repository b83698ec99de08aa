// Package store implements the write pipeline described in spec.md
// §4.4 — the single authoritative mutation primitive every task
// mutation funnels through — plus the read paths (snapshot load,
// event scan, active-task listing) and the archive/unarchive
// lifecycle of §4.6. Every exported entry point here is the boundary
// the CLI, dashboard, and MCP adapters are expected to call through;
// nothing upstream of this package is allowed to touch ".lattice/"
// directly.
package store

import (
	"time"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/hooks"
	"github.com/lattice-dev/lattice/internal/lockfile"
)

// Context threads the root path, loaded config, clock, lock manager,
// and hook runner through every store operation in place of the global mutable state
// the source relied on (spec.md §9 Design Notes).
type Context struct {
	Root   string
	Config config.Config
	Clock  func() time.Time
	Locks  *lockfile.Manager
	Hooks  *hooks.Runner
}

// NewContext builds a Context rooted at root with cfg already loaded.
// A nil clock defaults to time.Now; a nil hook runner builds one
// against the standard logger.
func NewContext(root string, cfg config.Config, clock func() time.Time, hookRunner *hooks.Runner) *Context {
	if clock == nil {
		clock = time.Now
	}
	if hookRunner == nil {
		hookRunner = hooks.NewRunner(nil)
	}
	return &Context{
		Root:   root,
		Config: cfg,
		Clock:  clock,
		Locks:  lockfile.NewManager(locksDir(root)),
		Hooks:  hookRunner,
	}
}

func (c *Context) now() time.Time { return c.Clock() }
