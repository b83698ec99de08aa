package store

import (
	"encoding/json"
	"os"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/events"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/lockfile"
)

// WriteTaskEvent is the single authoritative mutation primitive
// (spec.md §4.4): it appends events to taskID's per-task log, mirrors
// any lifecycle-subset events into the global lifecycle log, rewrites
// the snapshot atomically, and fires post-event hooks once the lock is
// released. The caller-supplied events must already carry allocated
// IDs and timestamps (see events.NewEvent); WriteTaskEvent does not
// mint them, so retries are detectable as duplicate IDs.
func (c *Context) WriteTaskEvent(taskID string, toAppend []events.Event) (events.Snapshot, error) {
	const op = "store.WriteTaskEvent"

	if len(toAppend) == 0 {
		return events.Snapshot{}, errs.New(errs.KindInvalidID, op, "no events to append")
	}

	lockNames := []string{lockfile.EventsLock(taskID), lockfile.TaskLock(taskID)}
	if anyLifecycle(toAppend) {
		lockNames = append(lockNames, lockfile.LifecycleLock())
	}

	held, err := c.Locks.LockAll(lockNames)
	if err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindLockContention, op, "acquire lock set", err)
	}
	defer held.Release()

	// Step 2a: re-read the latest snapshot under the lock (TOCTOU-safe).
	snap, readErr, found := loadSnapshotAt(snapshotPath(c.Root, taskID, false))
	if readErr != nil {
		return events.Snapshot{}, readErr
	}
	if !found {
		return events.Snapshot{}, errs.New(errs.KindNotFound, op, "task not found: "+taskID)
	}

	// Step 2b/2c: re-validate preconditions and apply events in order.
	existingIDs, err := existingEventIDs(eventLogPath(c.Root, taskID, false))
	if err != nil {
		return events.Snapshot{}, err
	}
	working := snap
	for _, ev := range toAppend {
		if _, dup := existingIDs[ev.ID]; dup {
			return events.Snapshot{}, errs.New(errs.KindConflict, op, "duplicate event id: "+ev.ID)
		}
		existingIDs[ev.ID] = struct{}{}
		working, err = events.Apply(working, ev, c.Config.Workflow)
		if err != nil {
			return events.Snapshot{}, err
		}
	}

	// Step 2d: append events to the per-task log.
	eventLog := eventLogPath(c.Root, taskID, false)
	for _, ev := range toAppend {
		if err := fsutil.AppendJSONL(eventLog, ev); err != nil {
			return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "append event", err)
		}
	}

	// Step 2e: mirror lifecycle-subset events into the global log.
	lc := lifecyclePath(c.Root)
	for _, ev := range toAppend {
		if events.IsLifecycle(ev.Type) {
			if err := fsutil.AppendJSONL(lc, ev); err != nil {
				return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "append lifecycle event", err)
			}
		}
	}

	// Step 2f: atomically rewrite the snapshot.
	if err := writeSnapshot(c.Root, taskID, working, false); err != nil {
		return events.Snapshot{}, err
	}

	held.Release()

	// Step 4: fire hooks outside the lock.
	c.Hooks.Dispatch(c.Config.Hooks, taskID, toAppend)

	return working, nil
}

func anyLifecycle(evs []events.Event) bool {
	for _, ev := range evs {
		if events.IsLifecycle(ev.Type) {
			return true
		}
	}
	return false
}

func existingEventIDs(path string) (map[string]struct{}, error) {
	ids := map[string]struct{}{}
	_, err := fsutil.ReadJSONLLines(path, func(line []byte) error {
		var ev events.Event
		if jsonErr := json.Unmarshal(line, &ev); jsonErr != nil {
			return jsonErr
		}
		ids[ev.ID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "store.existingEventIDs", "scan event log", err)
	}
	return ids, nil
}

func writeSnapshot(root, taskID string, snap events.Snapshot, archived bool) error {
	const op = "store.writeSnapshot"
	data, err := fsutil.MarshalPrettySorted(snap)
	if err != nil {
		return errs.Wrap(errs.KindIO, op, "marshal snapshot", err)
	}
	path := snapshotPath(root, taskID, archived)
	if _, statErr := os.Stat(tasksDir(root, archived)); statErr != nil {
		if mkErr := os.MkdirAll(tasksDir(root, archived), 0750); mkErr != nil {
			return errs.Wrap(errs.KindIO, op, "create tasks directory", mkErr)
		}
	}
	return fsutil.AtomicWrite(path, data, 0644)
}
