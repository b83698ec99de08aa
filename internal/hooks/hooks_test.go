package hooks

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/events"
)

func waitForFile(t *testing.T, path string) []byte {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil {
			return data
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("file %s was not written in time", path)
	return nil
}

func TestDispatch_PostEvent(t *testing.T) {
	tmpDir := t.TempDir()
	outFile := filepath.Join(tmpDir, "post.txt")

	cfg := config.Hooks{PostEvent: "echo $LATTICE_TASK_ID > " + outFile}
	r := NewRunner(slog.Default())

	ev := events.Event{ID: "ev_1", Type: events.CommentAdded, Actor: "human:a", TS: "2026-01-01T00:00:00Z"}
	r.Dispatch(cfg, "task_1", []events.Event{ev})

	data := waitForFile(t, outFile)
	if got := string(data); got != "task_1\n" {
		t.Errorf("post_event output = %q, want %q", got, "task_1\n")
	}
}

func TestDispatch_OnType(t *testing.T) {
	tmpDir := t.TempDir()
	outFile := filepath.Join(tmpDir, "on.txt")

	cfg := config.Hooks{On: map[string]string{
		"comment_added": "echo hit > " + outFile,
	}}
	r := NewRunner(slog.Default())

	ev := events.Event{ID: "ev_1", Type: events.CommentAdded, Actor: "human:a", TS: "2026-01-01T00:00:00Z"}
	r.Dispatch(cfg, "task_1", []events.Event{ev})

	data := waitForFile(t, outFile)
	if got := string(data); got != "hit\n" {
		t.Errorf("on.<type> output = %q, want %q", got, "hit\n")
	}
}

func TestDispatch_TransitionPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	outFile := filepath.Join(tmpDir, "transitions.txt")

	cfg := config.Hooks{Transitions: []config.TransitionHook{
		{Pattern: "* -> *", Command: "echo double >> " + outFile},
		{Pattern: "backlog -> *", Command: "echo wildcard_to >> " + outFile},
		{Pattern: "* -> ready", Command: "echo wildcard_from >> " + outFile},
		{Pattern: "backlog -> ready", Command: "echo exact >> " + outFile},
	}}
	r := NewRunner(slog.Default())

	ev := events.Event{
		ID: "ev_1", Type: events.StatusChanged, Actor: "human:a", TS: "2026-01-01T00:00:00Z",
		Data: map[string]any{"from": "backlog", "to": "ready"},
	}
	r.Dispatch(cfg, "task_1", []events.Event{ev})

	want := "exact\nwildcard_from\nwildcard_to\ndouble\n"

	deadline := time.Now().Add(3 * time.Second)
	var data []byte
	for time.Now().Before(deadline) {
		data, _ = os.ReadFile(outFile)
		if string(data) == want {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}

	if string(data) != want {
		t.Errorf("transition hook order = %q, want %q", string(data), want)
	}
}

func TestDispatch_NoHooksConfigured(t *testing.T) {
	r := NewRunner(slog.Default())
	ev := events.Event{ID: "ev_1", Type: events.CommentAdded, Actor: "human:a", TS: "2026-01-01T00:00:00Z"}
	// Must not panic or block with an empty config.
	r.Dispatch(config.Hooks{}, "task_1", []events.Event{ev})
}

func TestDispatch_FailureDoesNotPropagate(t *testing.T) {
	r := NewRunner(slog.Default())
	cfg := config.Hooks{PostEvent: "exit 1"}
	ev := events.Event{ID: "ev_1", Type: events.CommentAdded, Actor: "human:a", TS: "2026-01-01T00:00:00Z"}
	// Failing hooks must never propagate to the caller.
	r.Dispatch(cfg, "task_1", []events.Event{ev})
}
