package store

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/events"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/idgen"
	"github.com/lattice-dev/lattice/internal/shortid"
)

// LoadSnapshot reads a task's current materialized snapshot,
// lock-free, from either the active or archive tree. Readers may
// observe a snapshot that trails the event log slightly; LastEventID
// lets callers detect drift (spec.md §5).
func (c *Context) LoadSnapshot(taskID string) (events.Snapshot, error) {
	const op = "store.LoadSnapshot"

	if snap, err, ok := loadSnapshotAt(snapshotPath(c.Root, taskID, false)); ok {
		return snap, err
	}
	if snap, err, ok := loadSnapshotAt(snapshotPath(c.Root, taskID, true)); ok {
		return snap, err
	}
	return events.Snapshot{}, errs.New(errs.KindNotFound, op, "task not found: "+taskID)
}

func loadSnapshotAt(path string) (snap events.Snapshot, err error, found bool) {
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return events.Snapshot{}, nil, false
		}
		return events.Snapshot{}, errs.Wrap(errs.KindIO, "store.loadSnapshotAt", "read snapshot", readErr), true
	}
	if jsonErr := json.Unmarshal(raw, &snap); jsonErr != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindIntegrity, "store.loadSnapshotAt", "parse snapshot", jsonErr), true
	}
	return snap, nil, true
}

// ScanEvents reads a task's full per-task event log in file order,
// tolerating a single truncated trailing line (spec.md §4.6) by simply
// omitting it from the returned slice; doctor is responsible for
// reporting/repairing truncation.
func (c *Context) ScanEvents(taskID string) ([]events.Event, error) {
	const op = "store.ScanEvents"

	path := eventLogPath(c.Root, taskID, false)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = eventLogPath(c.Root, taskID, true)
	}

	var out []events.Event
	_, err := fsutil.ReadJSONLLines(path, func(line []byte) error {
		var ev events.Event
		if jsonErr := json.Unmarshal(line, &ev); jsonErr != nil {
			return errs.Wrap(errs.KindIntegrity, op, "parse event line", jsonErr)
		}
		out = append(out, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveTaskFilter narrows ListActiveTasks. A zero value matches
// everything.
type ActiveTaskFilter struct {
	Status     string
	Type       string
	AssignedTo string
	Tag        string
}

func (f ActiveTaskFilter) matches(s events.Snapshot) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if f.AssignedTo != "" && s.AssignedTo != f.AssignedTo {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range s.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ListActiveTasks scans tasks/ (never archive/) and returns every
// snapshot matching filter, sorted by ID for deterministic output.
func (c *Context) ListActiveTasks(filter ActiveTaskFilter) ([]events.Snapshot, error) {
	const op = "store.ListActiveTasks"

	entries, err := os.ReadDir(tasksDir(c.Root, false))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindIO, op, "read tasks directory", err)
	}

	var out []events.Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		taskID := strings.TrimSuffix(entry.Name(), ".json")
		if !idgen.HasPrefix(taskID, idgen.PrefixTask) {
			continue
		}
		snap, readErr, ok := loadSnapshotAt(snapshotPath(c.Root, taskID, false))
		if !ok || readErr != nil {
			continue
		}
		if filter.matches(snap) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Resolve maps a short ID or a bare long task ID to its task ID
// (spec.md §4.5). A long ID is detected by its task_ prefix and
// returned unchanged without consulting the index.
func (c *Context) Resolve(shortOrLongID string) (string, error) {
	const op = "store.Resolve"

	if idgen.HasPrefix(shortOrLongID, idgen.PrefixTask) {
		return shortOrLongID, nil
	}

	idx, err := shortid.Load(c.Root)
	if err != nil {
		return "", err
	}
	taskID, ok := idx.Resolve(shortOrLongID)
	if !ok {
		return "", errs.New(errs.KindNotFound, op, "no task resolves from: "+shortOrLongID)
	}
	return taskID, nil
}
