// Package lockfile implements the named multi-lock manager described in
// spec.md §4.2: each name maps to a file under ".lattice/locks/", an
// exclusive advisory lock is taken on that file, and a multi-lock
// acquires a set of names in sorted order to keep independent writers
// deadlock-free.
package lockfile

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/lattice-dev/lattice/internal/errs"
)

// Manager resolves lock names to files under a fixed locks directory
// and acquires them for callers.
type Manager struct {
	dir string
}

// NewManager returns a Manager rooted at locksDir (typically
// "<root>/.lattice/locks").
func NewManager(locksDir string) *Manager {
	return &Manager{dir: locksDir}
}

func (m *Manager) pathFor(name string) string {
	return filepath.Join(m.dir, name+".lock")
}

// Held represents one or more named locks acquired together. Release
// must be called at least once, regardless of success or failure in the
// caller's critical section.
type Held struct {
	locks []*flock.Flock
}

// Release unlocks every held lock in reverse acquisition order. It is
// safe to call Release more than once; subsequent calls are no-ops.
func (h *Held) Release() {
	if h == nil {
		return
	}
	for i := len(h.locks) - 1; i >= 0; i-- {
		_ = h.locks[i].Unlock()
	}
	h.locks = nil
}

// Lock acquires a single named lock, blocking until it is available.
func (m *Manager) Lock(name string) (*Held, error) {
	return m.LockAll([]string{name})
}

// LockAll acquires every named lock in names, sorted into
// lexicographic byte order first so that any two callers sharing a
// subset of names always acquire the shared prefix in the same order
// (spec.md §4.2, §5). Acquisition blocks until every lock is held; if
// any acquisition fails, every lock already held is released before
// returning the error.
func (m *Manager) LockAll(names []string) (*Held, error) {
	const op = "lockfile.LockAll"

	if err := os.MkdirAll(m.dir, 0750); err != nil {
		return nil, errs.Wrap(errs.KindIO, op, "create locks directory", err)
	}

	sorted := uniqueSorted(names)
	held := &Held{locks: make([]*flock.Flock, 0, len(sorted))}

	for _, name := range sorted {
		fl := flock.New(m.pathFor(name))
		if err := fl.Lock(); err != nil {
			held.Release()
			return nil, errs.Wrap(errs.KindLockContention, op, "acquire lock "+name, err)
		}
		held.locks = append(held.locks, fl)
	}

	return held, nil
}

// TryLockAll behaves like LockAll but returns immediately with ok=false
// if any named lock is already held elsewhere, releasing any locks it
// had already acquired.
func (m *Manager) TryLockAll(names []string) (held *Held, ok bool, err error) {
	const op = "lockfile.TryLockAll"

	if err := os.MkdirAll(m.dir, 0750); err != nil {
		return nil, false, errs.Wrap(errs.KindIO, op, "create locks directory", err)
	}

	sorted := uniqueSorted(names)
	h := &Held{locks: make([]*flock.Flock, 0, len(sorted))}

	for _, name := range sorted {
		fl := flock.New(m.pathFor(name))
		locked, lockErr := fl.TryLock()
		if lockErr != nil {
			h.Release()
			return nil, false, errs.Wrap(errs.KindLockContention, op, "try-acquire lock "+name, lockErr)
		}
		if !locked {
			h.Release()
			return nil, false, nil
		}
		h.locks = append(h.locks, fl)
	}

	return h, true, nil
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Names used by the write pipeline (spec.md §4.2).
const (
	eventsPrefix    = "events_"
	tasksPrefix     = "tasks_"
	resourcesPrefix = "resources_"
	lifecycleName   = "events__lifecycle"
	idsName         = "ids_json"
	configName      = "config"
)

// EventsLock names the per-task event log lock.
func EventsLock(taskID string) string { return eventsPrefix + taskID }

// TaskLock names the per-task snapshot lock.
func TaskLock(taskID string) string { return tasksPrefix + taskID }

// ResourceLock names an external resource-coordination lock.
func ResourceLock(name string) string { return resourcesPrefix + name }

// LifecycleLock names the shared lifecycle log lock.
func LifecycleLock() string { return lifecycleName }

// IDsLock names the short-ID allocator lock.
func IDsLock() string { return idsName }

// ConfigLock names the config-mutation lock.
func ConfigLock() string { return configName }
