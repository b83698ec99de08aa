package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/events"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/idgen"
	"github.com/lattice-dev/lattice/internal/lockfile"
	"github.com/lattice-dev/lattice/internal/shortid"
)

// RebuildResult summarizes a rebuild run (spec.md §4.6).
type RebuildResult struct {
	TasksRebuilt   []string
	LifecycleLines int
	ShortIDs       int
}

// RebuildTask replays a single task's per-task event log and overwrites
// its snapshot, tolerating a single truncated trailing line the same
// way scanning does. It does not touch the lifecycle log or the
// short-ID index; use RebuildAll for full-tree regeneration.
func (c *Context) RebuildTask(taskID string) (events.Snapshot, error) {
	const op = "store.RebuildTask"

	archived := false
	path := eventLogPath(c.Root, taskID, false)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		archived = true
		path = eventLogPath(c.Root, taskID, true)
	}

	held, err := c.Locks.LockAll([]string{lockfile.EventsLock(taskID), lockfile.TaskLock(taskID)})
	if err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindLockContention, op, "acquire lock set", err)
	}
	defer held.Release()

	evs, err := readEventLog(path)
	if err != nil {
		return events.Snapshot{}, err
	}
	if len(evs) == 0 {
		return events.Snapshot{}, errs.New(errs.KindNotFound, op, "no event log for task: "+taskID)
	}

	snap, err := events.Fold(evs, c.Config.Workflow)
	if err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindIntegrity, op, "replay event log", err)
	}

	if err := writeSnapshot(c.Root, taskID, snap, archived); err != nil {
		return events.Snapshot{}, err
	}
	return snap, nil
}

// RebuildAll replays every per-task event log (active and archived),
// then regenerates the lifecycle log from those event logs and the
// short-ID index from the resulting snapshots. Rebuild is deterministic: the same input logs
// always produce byte-identical output (spec.md §4.6, §8 property 1).
func (c *Context) RebuildAll() (RebuildResult, error) {
	const op = "store.RebuildAll"

	var result RebuildResult

	for _, archived := range []bool{false, true} {
		ids, err := listTaskIDsFromEventsDir(eventsDir(c.Root, archived))
		if err != nil {
			return RebuildResult{}, err
		}
		for _, taskID := range ids {
			if _, err := c.RebuildTask(taskID); err != nil {
				return RebuildResult{}, errs.Wrap(errs.KindIntegrity, op, "rebuild task "+taskID, err)
			}
			result.TasksRebuilt = append(result.TasksRebuilt, taskID)
		}
	}
	sort.Strings(result.TasksRebuilt)

	held, err := c.Locks.LockAll([]string{lockfile.LifecycleLock(), lockfile.IDsLock()})
	if err != nil {
		return RebuildResult{}, errs.Wrap(errs.KindLockContention, op, "acquire lock set", err)
	}
	defer held.Release()

	lifecycleCount, err := c.regenerateLifecycle()
	if err != nil {
		return RebuildResult{}, err
	}
	result.LifecycleLines = lifecycleCount

	idxCount, err := c.regenerateShortIDIndex()
	if err != nil {
		return RebuildResult{}, err
	}
	result.ShortIDs = idxCount

	return result, nil
}

// regenerateLifecycle rebuilds events/_lifecycle.jsonl from the union
// of lifecycle-subset events across every per-task log (active and
// archived), ordered by (timestamp, id) for a deterministic tiebreak
// (spec.md §4.6). Callers must hold the lifecycle lock.
func (c *Context) regenerateLifecycle() (int, error) {
	const op = "store.regenerateLifecycle"

	var lifecycleEvents []events.Event
	for _, archived := range []bool{false, true} {
		ids, err := listTaskIDsFromEventsDir(eventsDir(c.Root, archived))
		if err != nil {
			return 0, err
		}
		for _, taskID := range ids {
			evs, err := readEventLog(eventLogPath(c.Root, taskID, archived))
			if err != nil {
				return 0, err
			}
			for _, ev := range evs {
				if events.IsLifecycle(ev.Type) {
					lifecycleEvents = append(lifecycleEvents, ev)
				}
			}
		}
	}

	sort.SliceStable(lifecycleEvents, func(i, j int) bool {
		if lifecycleEvents[i].TS != lifecycleEvents[j].TS {
			return lifecycleEvents[i].TS < lifecycleEvents[j].TS
		}
		return lifecycleEvents[i].ID < lifecycleEvents[j].ID
	})

	var buf []byte
	for _, ev := range lifecycleEvents {
		line, err := fsutil.MarshalCompactSorted(ev)
		if err != nil {
			return 0, errs.Wrap(errs.KindIO, op, "marshal lifecycle event", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	if err := fsutil.AtomicWrite(lifecyclePath(c.Root), buf, 0644); err != nil {
		return 0, err
	}
	return len(lifecycleEvents), nil
}

// regenerateShortIDIndex rebuilds ids.json by scanning every active and
// archived snapshot for an assigned short_id, computing next_seqs as
// one past the maximum observed sequence per prefix (spec.md §4.5,
// §4.6). Callers must hold the ids_json lock.
func (c *Context) regenerateShortIDIndex() (int, error) {
	idx := shortid.Default()

	for _, archived := range []bool{false, true} {
		snaps, err := listSnapshots(tasksDir(c.Root, archived))
		if err != nil {
			return 0, err
		}
		for _, snap := range snaps {
			if snap.ShortID == "" {
				continue
			}
			idx.Map[snap.ShortID] = snap.ID
			prefix, seq, ok := splitShortID(snap.ShortID)
			if !ok {
				continue
			}
			if seq+1 > idx.NextSeqs[prefix] {
				idx.NextSeqs[prefix] = seq + 1
			}
		}
	}

	if err := shortid.Save(c.Root, idx); err != nil {
		return 0, err
	}
	return len(idx.Map), nil
}

func splitShortID(shortID string) (prefix string, seq int, ok bool) {
	i := strings.LastIndexByte(shortID, '-')
	if i <= 0 || i == len(shortID)-1 {
		return "", 0, false
	}
	seq, err := strconv.Atoi(shortID[i+1:])
	if err != nil {
		return "", 0, false
	}
	return shortID[:i], seq, true
}

func listTaskIDsFromEventsDir(dir string) ([]string, error) {
	const op = "store.listTaskIDsFromEventsDir"

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindIO, op, "read events directory", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		taskID := strings.TrimSuffix(entry.Name(), ".jsonl")
		if taskID == "_lifecycle" || !idgen.HasPrefix(taskID, idgen.PrefixTask) {
			continue
		}
		ids = append(ids, taskID)
	}
	sort.Strings(ids)
	return ids, nil
}

func listSnapshots(dir string) ([]events.Snapshot, error) {
	const op = "store.listSnapshots"

	entries, err := os.ReadDir(dir)
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
		raw, readErr := os.ReadFile(filepath.Join(dir, entry.Name()))
		if readErr != nil {
			continue
		}
		var snap events.Snapshot
		if jsonErr := json.Unmarshal(raw, &snap); jsonErr != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// readEventLog parses a per-task JSONL log in file order, silently
// omitting an at-most-one truncated trailing line (spec.md §4.6 —
// rebuild tolerates truncation; doctor is responsible for reporting
// and, with --fix, repairing it).
func readEventLog(path string) ([]events.Event, error) {
	const op = "store.readEventLog"

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
