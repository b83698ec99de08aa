// Package shortid implements the derived short-ID index described in
// spec.md §4.5: an "ids.json" document mapping a per-prefix sequence
// counter and a short_id -> task_id table, allocated under the
// ids_json lock alongside the owning task's locks.
package shortid

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/fsutil"
)

// SchemaVersion is the current schema_version stamped onto ids.json.
const SchemaVersion = 1

// Index is the full "ids.json" document (spec.md §4.5). Rebuildable
// from snapshots, so it carries no information that cannot be
// regenerated from the tasks it indexes.
type Index struct {
	SchemaVersion int            `json:"schema_version"`
	NextSeqs      map[string]int `json:"next_seqs"`
	Map           map[string]string `json:"map"`
}

// Default returns the empty index written at `lattice init` time.
func Default() Index {
	return Index{SchemaVersion: SchemaVersion, NextSeqs: map[string]int{}, Map: map[string]string{}}
}

// Path returns the path to ids.json under root.
func Path(root string) string {
	return filepath.Join(fsutil.LatticeDir(root), "ids.json")
}

// Load reads and parses ids.json, defaulting to an empty index if the
// file does not exist.
func Load(root string) (Index, error) {
	const op = "shortid.Load"

	raw, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Index{}, errs.Wrap(errs.KindIO, op, "read ids.json", err)
	}

	var idx Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return Index{}, errs.Wrap(errs.KindIntegrity, op, "parse ids.json", err)
	}
	if idx.NextSeqs == nil {
		idx.NextSeqs = map[string]int{}
	}
	if idx.Map == nil {
		idx.Map = map[string]string{}
	}
	return idx, nil
}

// Save atomically writes idx to ids.json using the same deterministic
// serializer as snapshots and config (spec.md §4.1, §6).
func Save(root string, idx Index) error {
	data, err := fsutil.MarshalPrettySorted(idx)
	if err != nil {
		return errs.Wrap(errs.KindIntegrity, "shortid.Save", "marshal ids.json", err)
	}
	return fsutil.AtomicWrite(Path(root), data, 0644)
}

// Allocate reads ids.json, assigns the next short ID for prefix to
// taskID, writes the updated index back, and returns the short ID
// assigned. Callers must hold the ids_json lock (plus the owning
// task's locks) across this call (spec.md §4.5 steps 1-6).
func Allocate(root, prefix, taskID string) (string, error) {
	const op = "shortid.Allocate"

	if prefix == "" {
		return "", errs.New(errs.KindConfig, op, "project code (short-id prefix) is empty")
	}

	idx, err := Load(root)
	if err != nil {
		return "", err
	}

	seq := idx.NextSeqs[prefix]
	if seq == 0 {
		seq = 1
	}
	shortID := fmt.Sprintf("%s-%d", prefix, seq)

	idx.NextSeqs[prefix] = seq + 1
	idx.Map[shortID] = taskID

	if err := Save(root, idx); err != nil {
		return "", err
	}
	return shortID, nil
}

// Resolve looks up a short ID in idx, returning the task ID it names
// and ok=true if found.
func (idx Index) Resolve(shortID string) (taskID string, ok bool) {
	taskID, ok = idx.Map[shortID]
	return taskID, ok
}
