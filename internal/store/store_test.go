package store_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/events"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/shortid"
	"github.com/lattice-dev/lattice/internal/store"
)

// newTestContext initializes a fresh ".lattice" tree under t.TempDir()
// with project code "LAT" and returns a ready-to-use *store.Context.
func newTestContext(t *testing.T) *store.Context {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.ProjectCode = "LAT"

	cfgBytes, err := fsutil.MarshalPrettySorted(cfg)
	require.NoError(t, err)
	idxBytes, err := fsutil.MarshalPrettySorted(shortid.Default())
	require.NoError(t, err)

	_, err = fsutil.Init(root, cfgBytes, idxBytes)
	require.NoError(t, err)

	return store.NewContext(root, cfg, nil, nil)
}

// S1 Create-then-status (spec.md §8).
func TestCreateThenStatus(t *testing.T) {
	ctx := newTestContext(t)

	snap, err := ctx.CreateTask(store.CreateTaskInput{
		ID:    "task_A",
		Title: "Fix login",
		Actor: "human:a",
	})
	require.NoError(t, err)
	require.Equal(t, "LAT-1", snap.ShortID)
	require.Equal(t, "backlog", snap.Status)
	firstEventID := snap.LastEventID
	require.NotEmpty(t, firstEventID)

	evs, err := ctx.ScanEvents("task_A")
	require.NoError(t, err)
	require.Len(t, evs, 2) // task_created + task_short_id_assigned

	statusEvent, err := events.NewEvent(events.NewEventInput{
		Type:   events.StatusChanged,
		Actor:  "human:a",
		TaskID: "task_A",
		Data:   map[string]any{"from": "backlog", "to": "ready"},
	}, time.Now())
	require.NoError(t, err)

	updated, err := ctx.WriteTaskEvent("task_A", []events.Event{statusEvent})
	require.NoError(t, err)
	require.Equal(t, "ready", updated.Status)
	require.Equal(t, statusEvent.ID, updated.LastEventID)

	evs, err = ctx.ScanEvents("task_A")
	require.NoError(t, err)
	require.Len(t, evs, 3)

	lifecycle, err := readLifecycle(t, ctx)
	require.NoError(t, err)
	require.Len(t, lifecycle, 1) // only task_created is lifecycle; status_changed is not
}

// S2 Idempotent replay (spec.md §8).
func TestCreateTaskIdempotentReplay(t *testing.T) {
	ctx := newTestContext(t)

	in := store.CreateTaskInput{ID: "task_A", Title: "Fix login", Actor: "human:a"}
	first, err := ctx.CreateTask(in)
	require.NoError(t, err)

	second, err := ctx.CreateTask(in)
	require.NoError(t, err)
	require.Equal(t, first, second)

	evs, err := ctx.ScanEvents("task_A")
	require.NoError(t, err)
	require.Len(t, evs, 2)
}

// S3 Conflict (spec.md §8).
func TestCreateTaskConflict(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.CreateTask(store.CreateTaskInput{ID: "task_A", Title: "Fix login", Actor: "human:a"})
	require.NoError(t, err)

	_, err = ctx.CreateTask(store.CreateTaskInput{ID: "task_A", Title: "Different", Actor: "human:a"})
	require.Error(t, err)

	snap, err := ctx.LoadSnapshot("task_A")
	require.NoError(t, err)
	require.Equal(t, "Fix login", snap.Title)

	evs, err := ctx.ScanEvents("task_A")
	require.NoError(t, err)
	require.Len(t, evs, 2)
}

// S4 Crash mid-write: an event lands on disk but the snapshot rewrite
// never happens; RebuildTask must reconcile (spec.md §8 property 2).
func TestRebuildRecoversFromCrashBetweenAppendAndSnapshot(t *testing.T) {
	ctx := newTestContext(t)

	snap, err := ctx.CreateTask(store.CreateTaskInput{ID: "task_A", Title: "Fix login", Actor: "human:a"})
	require.NoError(t, err)
	preCrashEventID := snap.LastEventID

	ev, err := events.NewEvent(events.NewEventInput{
		Type:   events.StatusChanged,
		Actor:  "human:a",
		TaskID: "task_A",
		Data:   map[string]any{"from": "backlog", "to": "ready"},
	}, time.Now())
	require.NoError(t, err)

	// Simulate the crash window: append the event directly, skipping
	// the snapshot rewrite WriteTaskEvent would otherwise perform.
	require.NoError(t, fsutil.AppendJSONL(eventLogPathForTest(t, ctx, "task_A"), ev))

	stale, err := ctx.LoadSnapshot("task_A")
	require.NoError(t, err)
	require.Equal(t, "backlog", stale.Status)
	require.Equal(t, preCrashEventID, stale.LastEventID)

	recovered, err := ctx.RebuildTask("task_A")
	require.NoError(t, err)
	require.Equal(t, "ready", recovered.Status)
	require.Equal(t, ev.ID, recovered.LastEventID)

	reread, err := ctx.LoadSnapshot("task_A")
	require.NoError(t, err)
	require.Equal(t, recovered, reread)
}

// custom_fields supplied at creation must be recoverable from the event
// log alone: they are part of the task_created event's data, not just
// the live snapshot, so a rebuild never diverges from the original
// write (spec.md §1 events-are-authoritative, §8 property 2).
func TestRebuildPreservesCustomFieldsFromCreation(t *testing.T) {
	ctx := newTestContext(t)

	created, err := ctx.CreateTask(store.CreateTaskInput{
		ID:           "task_A",
		Title:        "Fix login",
		Actor:        "human:a",
		CustomFields: map[string]any{"eta": "friday", "points": float64(3)},
	})
	require.NoError(t, err)
	require.Equal(t, "friday", created.CustomFields["eta"])

	rebuilt, err := ctx.RebuildTask("task_A")
	require.NoError(t, err)
	require.Equal(t, created.CustomFields, rebuilt.CustomFields)
}

// Rebuild determinism (spec.md §8 property 1): two independent
// RebuildAll runs against the same event logs produce byte-identical
// snapshots, lifecycle log, and short-ID index.
func TestRebuildAllIsDeterministic(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.CreateTask(store.CreateTaskInput{ID: "task_A", Title: "Fix login", Actor: "human:a"})
	require.NoError(t, err)
	_, err = ctx.CreateTask(store.CreateTaskInput{ID: "task_B", Title: "Write docs", Actor: "human:b"})
	require.NoError(t, err)

	ev, err := events.NewEvent(events.NewEventInput{
		Type: events.StatusChanged, Actor: "human:a", TaskID: "task_A",
		Data: map[string]any{"from": "backlog", "to": "ready"},
	}, time.Now())
	require.NoError(t, err)
	_, err = ctx.WriteTaskEvent("task_A", []events.Event{ev})
	require.NoError(t, err)

	_, err = ctx.RebuildAll()
	require.NoError(t, err)
	snapshot1 := snapshotBytes(t, ctx, "tasks/task_A.json")
	lifecycle1 := snapshotBytes(t, ctx, "events/_lifecycle.jsonl")
	ids1 := snapshotBytes(t, ctx, "ids.json")

	_, err = ctx.RebuildAll()
	require.NoError(t, err)
	snapshot2 := snapshotBytes(t, ctx, "tasks/task_A.json")
	lifecycle2 := snapshotBytes(t, ctx, "events/_lifecycle.jsonl")
	ids2 := snapshotBytes(t, ctx, "ids.json")

	require.Equal(t, snapshot1, snapshot2)
	require.Equal(t, lifecycle1, lifecycle2)
	require.Equal(t, ids1, ids2)
}

// S6 Archive/unarchive (spec.md §8).
func TestArchiveUnarchive(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.CreateTask(store.CreateTaskInput{ID: "task_A", Title: "Fix login", Actor: "human:a"})
	require.NoError(t, err)

	notesPath := filepath.Join(ctx.Root, ".lattice", "notes", "task_A.md")
	require.NoError(t, os.WriteFile(notesPath, []byte("scratch notes"), 0644))

	archived, err := ctx.Archive("task_A", "human:a")
	require.NoError(t, err)
	require.True(t, archived.Archived)

	require.NoFileExists(t, filepath.Join(ctx.Root, ".lattice", "tasks", "task_A.json"))
	require.FileExists(t, filepath.Join(ctx.Root, ".lattice", "archive", "tasks", "task_A.json"))
	require.FileExists(t, filepath.Join(ctx.Root, ".lattice", "archive", "events", "task_A.jsonl"))
	require.FileExists(t, filepath.Join(ctx.Root, ".lattice", "archive", "notes", "task_A.md"))

	unarchived, err := ctx.Unarchive("task_A", "human:a")
	require.NoError(t, err)
	require.False(t, unarchived.Archived)
	require.FileExists(t, filepath.Join(ctx.Root, ".lattice", "tasks", "task_A.json"))
	require.FileExists(t, filepath.Join(ctx.Root, ".lattice", "notes", "task_A.md"))

	evs, err := ctx.ScanEvents("task_A")
	require.NoError(t, err)
	require.True(t, hasEventType(evs, events.TaskArchived))
	require.True(t, hasEventType(evs, events.TaskUnarchived))
	require.Less(t, indexOfType(evs, events.TaskArchived), indexOfType(evs, events.TaskUnarchived))
}

// S5 Concurrent short-IDs (spec.md §8): N concurrent creators produce
// N distinct contiguous short IDs with no gaps and no duplicates.
func TestConcurrentShortIDAllocationIsMonotonic(t *testing.T) {
	ctx := newTestContext(t)

	const n = 8
	g := new(errgroup.Group)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_, err := ctx.CreateTask(store.CreateTaskInput{
				Title: "task",
				Actor: "human:worker",
				CustomFields: map[string]any{
					"worker": i,
				},
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	idx, err := shortid.Load(ctx.Root)
	require.NoError(t, err)
	require.Equal(t, n+1, idx.NextSeqs["LAT"])

	seen := map[string]struct{}{}
	for shortID := range idx.Map {
		_, dup := seen[shortID]
		require.False(t, dup)
		seen[shortID] = struct{}{}
	}
	require.Len(t, seen, n)
}

// Doctor trims a single truncated trailing JSONL line under --fix and
// leaves a well-formed log alone otherwise (spec.md §8 property 2, §4.6).
func TestDoctorTrimsTruncatedTail(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.CreateTask(store.CreateTaskInput{ID: "task_A", Title: "Fix login", Actor: "human:a"})
	require.NoError(t, err)

	logPath := eventLogPathForTest(t, ctx, "task_A")
	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	corrupted := append(raw, []byte(`{"id":"ev_broken`)...)
	require.NoError(t, os.WriteFile(logPath, corrupted, 0644))

	report, err := ctx.Doctor(false)
	require.NoError(t, err)
	require.True(t, hasFinding(report.Findings, store.FindingTruncatedJSONL))
	for _, f := range report.Findings {
		if f.Kind == store.FindingTruncatedJSONL {
			require.False(t, f.Fixed)
		}
	}

	report, err = ctx.Doctor(true)
	require.NoError(t, err)
	require.True(t, hasFinding(report.Findings, store.FindingTruncatedJSONL))

	report, err = ctx.Doctor(false)
	require.NoError(t, err)
	require.False(t, hasFinding(report.Findings, store.FindingTruncatedJSONL))
}

// Doctor reports last_event_id drift without repairing it — only
// rebuild rewrites snapshots (spec.md §4.6).
func TestDoctorReportsDriftWithoutFixing(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.CreateTask(store.CreateTaskInput{ID: "task_A", Title: "Fix login", Actor: "human:a"})
	require.NoError(t, err)

	ev, err := events.NewEvent(events.NewEventInput{
		Type: events.StatusChanged, Actor: "human:a", TaskID: "task_A",
		Data: map[string]any{"from": "backlog", "to": "ready"},
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, fsutil.AppendJSONL(eventLogPathForTest(t, ctx, "task_A"), ev))

	report, err := ctx.Doctor(true)
	require.NoError(t, err)
	require.True(t, hasFinding(report.Findings, store.FindingDrift))

	snap, err := ctx.LoadSnapshot("task_A")
	require.NoError(t, err)
	require.Equal(t, "backlog", snap.Status, "doctor --fix must not rewrite snapshots; only rebuild does")
}

func hasEventType(evs []events.Event, t events.Type) bool {
	return indexOfType(evs, t) >= 0
}

func indexOfType(evs []events.Event, t events.Type) int {
	for i, ev := range evs {
		if ev.Type == t {
			return i
		}
	}
	return -1
}

func hasFinding(findings []store.Finding, kind store.FindingKind) bool {
	for _, f := range findings {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

func eventLogPathForTest(t *testing.T, ctx *store.Context, taskID string) string {
	t.Helper()
	return filepath.Join(ctx.Root, ".lattice", "events", taskID+".jsonl")
}

func snapshotBytes(t *testing.T, ctx *store.Context, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(ctx.Root, ".lattice", rel))
	require.NoError(t, err)
	return data
}

func readLifecycle(t *testing.T, ctx *store.Context) ([]events.Event, error) {
	t.Helper()
	path := filepath.Join(ctx.Root, ".lattice", "events", "_lifecycle.jsonl")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []events.Event
	for _, line := range splitLines(raw) {
		if len(line) == 0 {
			continue
		}
		var ev events.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func splitLines(raw []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range raw {
		if b == '\n' {
			out = append(out, raw[start:i])
			start = i + 1
		}
	}
	if start < len(raw) {
		out = append(out, raw[start:])
	}
	return out
}
