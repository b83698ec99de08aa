package fsutil

import (
	"os"
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/errs"
)

// Layout enumerates the directory tree created under ".lattice" at
// init time (spec.md §3.3).
var layout = []string{
	"tasks",
	"events",
	"artifacts/meta",
	"artifacts/payload",
	"notes",
	"archive/tasks",
	"archive/events",
	"archive/notes",
	"locks",
}

// InitResult reports whether Init created a new tree or found one
// already present.
type InitResult struct {
	AlreadyInitialized bool
	Root               string
}

// Init creates the full ".lattice" directory tree rooted at root,
// writes an empty lifecycle log, a default config, and an empty
// short-ID index. It is idempotent: if ".lattice" already exists as a
// directory, Init reports AlreadyInitialized and makes no changes.
// Fails with PathIsFile if ".lattice" exists as a non-directory.
func Init(root string, defaultConfig, defaultIndex []byte) (InitResult, error) {
	const op = "fsutil.Init"

	latticeDir := LatticeDir(root)
	if info, err := os.Stat(latticeDir); err == nil {
		if !info.IsDir() {
			return InitResult{}, errs.New(errs.KindPathIsFile, op, latticeDir+" exists and is not a directory")
		}
		return InitResult{AlreadyInitialized: true, Root: root}, nil
	} else if !os.IsNotExist(err) {
		return InitResult{}, errs.Wrap(errs.KindIO, op, "stat .lattice", err)
	}

	for _, rel := range layout {
		if err := os.MkdirAll(filepath.Join(latticeDir, rel), 0750); err != nil {
			return InitResult{}, errs.Wrap(errs.KindIO, op, "create directory "+rel, err)
		}
	}

	lifecyclePath := filepath.Join(latticeDir, "events", "_lifecycle.jsonl")
	if err := AtomicWrite(lifecyclePath, []byte{}, 0644); err != nil {
		return InitResult{}, err
	}

	configPath := filepath.Join(latticeDir, "config.json")
	if err := AtomicWrite(configPath, defaultConfig, 0644); err != nil {
		return InitResult{}, err
	}

	idsPath := filepath.Join(latticeDir, "ids.json")
	if err := AtomicWrite(idsPath, defaultIndex, 0644); err != nil {
		return InitResult{}, err
	}

	return InitResult{Root: root}, nil
}
