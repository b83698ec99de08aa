package store

import (
	"os"
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/events"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/lockfile"
)

// Archive appends a task_archived event, applies it, rewrites the
// snapshot, then moves the snapshot, per-task event log, and notes
// file into the archive tree. Artifacts are never moved (spec.md
// §4.6). The event is appended before anything moves, so an
// interruption mid-move is always recoverable via RebuildAll/RebuildTask.
// Archiving an already-archived task is a no-op that returns its
// current snapshot unchanged.
func (c *Context) Archive(taskID, actor string) (events.Snapshot, error) {
	return c.moveArchiveState(taskID, actor, events.TaskArchived, false)
}

// Unarchive is Archive's inverse: it appends task_unarchived, rewrites
// the snapshot, and moves the task's files back into the active tree.
// Unarchiving an already-active task is a no-op.
func (c *Context) Unarchive(taskID, actor string) (events.Snapshot, error) {
	return c.moveArchiveState(taskID, actor, events.TaskUnarchived, true)
}

// moveArchiveState implements both directions of the archive lifecycle.
// fromArchived names which tree the task currently lives in.
func (c *Context) moveArchiveState(taskID, actor string, evType events.Type, fromArchived bool) (events.Snapshot, error) {
	const op = "store.moveArchiveState"

	lockNames := []string{lockfile.EventsLock(taskID), lockfile.TaskLock(taskID), lockfile.LifecycleLock()}
	held, err := c.Locks.LockAll(lockNames)
	if err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindLockContention, op, "acquire lock set", err)
	}
	defer held.Release()

	snap, readErr, found := loadSnapshotAt(snapshotPath(c.Root, taskID, fromArchived))
	if !found {
		// Already in the destination tree: nothing to append or move.
		done, doneErr, inDest := loadSnapshotAt(snapshotPath(c.Root, taskID, !fromArchived))
		if inDest && doneErr == nil && done.Archived == !fromArchived {
			return done, nil
		}
		return events.Snapshot{}, errs.New(errs.KindNotFound, op, "task not found: "+taskID)
	}
	if readErr != nil {
		return events.Snapshot{}, readErr
	}

	toArchived := !fromArchived
	if snap.Archived == toArchived {
		// The event and snapshot rewrite from a prior attempt already
		// landed (found at the fromArchived path); only the file move
		// was interrupted. Finish it without appending a duplicate
		// event (spec.md §4.6 "recoverable... because the event was
		// appended first").
		if err := moveTaskFiles(c.Root, taskID, fromArchived, toArchived); err != nil {
			return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "finish interrupted move", err)
		}
		return snap, nil
	}

	now := c.now()
	ev, err := events.NewEvent(events.NewEventInput{
		Type:   evType,
		Actor:  actor,
		TaskID: taskID,
	}, now)
	if err != nil {
		return events.Snapshot{}, err
	}

	working, err := events.Apply(snap, ev, c.Config.Workflow)
	if err != nil {
		return events.Snapshot{}, err
	}

	if err := fsutil.AppendJSONL(eventLogPath(c.Root, taskID, fromArchived), ev); err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "append event", err)
	}
	if err := fsutil.AppendJSONL(lifecyclePath(c.Root), ev); err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "append lifecycle event", err)
	}
	if err := writeSnapshot(c.Root, taskID, working, fromArchived); err != nil {
		return events.Snapshot{}, err
	}

	if err := moveTaskFiles(c.Root, taskID, fromArchived, toArchived); err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "move task files", err)
	}

	held.Release()

	c.Hooks.Dispatch(c.Config.Hooks, taskID, []events.Event{ev})

	return working, nil
}

// moveTaskFiles relocates a task's snapshot, event log, and (if
// present) notes file between the active and archive trees. Artifacts
// are intentionally untouched (spec.md §3.2, §4.6).
func moveTaskFiles(root, taskID string, fromArchived, toArchived bool) error {
	moves := []struct{ from, to string }{
		{snapshotPath(root, taskID, fromArchived), snapshotPath(root, taskID, toArchived)},
		{eventLogPath(root, taskID, fromArchived), eventLogPath(root, taskID, toArchived)},
	}

	fromNotes := notesPath(root, taskID, fromArchived)
	toNotes := notesPath(root, taskID, toArchived)
	if _, err := os.Stat(fromNotes); err == nil {
		moves = append(moves, struct{ from, to string }{fromNotes, toNotes})
	}

	for _, m := range moves {
		if _, err := os.Stat(m.from); os.IsNotExist(err) {
			// Already moved by a prior, interrupted attempt at this
			// same operation: idempotently skip it.
			continue
		}
		if err := os.MkdirAll(filepath.Dir(m.to), 0750); err != nil {
			return err
		}
		if err := os.Rename(m.from, m.to); err != nil {
			return err
		}
	}
	return nil
}
