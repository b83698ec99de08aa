package fsutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lattice-dev/lattice/internal/errs"
)

// Atomic write integrity (spec.md §8 property 3): the target is never
// left in a partial state, and a write to a missing parent directory
// fails cleanly rather than creating anything.
func TestAtomicWriteReplacesFileWholesale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	require.NoError(t, AtomicWrite(path, []byte(`{"v":1}`), 0644))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"v":1}`, string(got))

	// A second write must fully replace the first; no trace of the old
	// content or a leftover temp file may remain.
	require.NoError(t, AtomicWrite(path, []byte(`{"v":2,"longer":"payload"}`), 0644))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"v":2,"longer":"payload"}`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file should survive a successful atomic write")
}

func TestAtomicWriteFailsCleanlyWhenParentMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist", "snapshot.json")

	err := AtomicWrite(path, []byte("x"), 0644)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindParentMissing))
}

// Round-trip (spec.md §8 property 9): deterministic marshal followed by
// parse followed by re-marshal yields byte-identical output.
func TestMarshalPrettySortedRoundTrips(t *testing.T) {
	type doc struct {
		Zebra string `json:"zebra"`
		Alpha string `json:"alpha"`
	}

	first, err := MarshalPrettySorted(doc{Zebra: "z", Alpha: "a"})
	require.NoError(t, err)
	require.Equal(t, "{\n  \"alpha\": \"a\",\n  \"zebra\": \"z\"\n}\n", string(first))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(first, &parsed))

	second, err := MarshalPrettySorted(parsed)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestMarshalCompactSortedHasNoTrailingWhitespace(t *testing.T) {
	line, err := MarshalCompactSorted(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2}`, string(line))
}
