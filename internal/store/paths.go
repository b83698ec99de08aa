package store

import (
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/fsutil"
)

func locksDir(root string) string { return filepath.Join(fsutil.LatticeDir(root), "locks") }

func tasksDir(root string, archived bool) string {
	if archived {
		return filepath.Join(fsutil.LatticeDir(root), "archive", "tasks")
	}
	return filepath.Join(fsutil.LatticeDir(root), "tasks")
}

func eventsDir(root string, archived bool) string {
	if archived {
		return filepath.Join(fsutil.LatticeDir(root), "archive", "events")
	}
	return filepath.Join(fsutil.LatticeDir(root), "events")
}

func notesDir(root string, archived bool) string {
	if archived {
		return filepath.Join(fsutil.LatticeDir(root), "archive", "notes")
	}
	return filepath.Join(fsutil.LatticeDir(root), "notes")
}

func snapshotPath(root, taskID string, archived bool) string {
	return filepath.Join(tasksDir(root, archived), taskID+".json")
}

func eventLogPath(root, taskID string, archived bool) string {
	return filepath.Join(eventsDir(root, archived), taskID+".jsonl")
}

func notesPath(root, taskID string, archived bool) string {
	return filepath.Join(notesDir(root, archived), taskID+".md")
}

func lifecyclePath(root string) string {
	return filepath.Join(fsutil.LatticeDir(root), "events", "_lifecycle.jsonl")
}
