package fsutil

import (
	"os"
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/errs"
)

// RootDirName is the name of the directory that marks a Lattice root.
const RootDirName = ".lattice"

// RootEnvVar is the environment override that, when set, must name an
// existing directory containing RootDirName. It never falls back to
// the walk-up search and rejects an empty value outright (spec.md §4.1).
const RootEnvVar = "LATTICE_ROOT"

// FindRoot resolves the Lattice root directory. If the override
// environment variable is set, it is validated and used exclusively.
// Otherwise start (or the current working directory, if start is
// empty) is resolved to an absolute path and walked upward until a
// directory containing RootDirName is found, stopping at the
// filesystem root. Returns "" with no error if nothing is found and no
// override is set.
func FindRoot(start string) (string, error) {
	const op = "fsutil.FindRoot"

	if override, ok := os.LookupEnv(RootEnvVar); ok {
		if override == "" {
			return "", errs.New(errs.KindConfig, op, RootEnvVar+" is set but empty")
		}
		info, err := os.Stat(override)
		if err != nil || !info.IsDir() {
			return "", errs.Wrap(errs.KindConfig, op, RootEnvVar+" does not name an existing directory", err)
		}
		latticeDir := filepath.Join(override, RootDirName)
		if info, err := os.Stat(latticeDir); err != nil || !info.IsDir() {
			return "", errs.New(errs.KindConfig, op, RootEnvVar+" does not contain "+RootDirName)
		}
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", errs.Wrap(errs.KindIO, op, "resolve absolute path", err)
		}
		return abs, nil
	}

	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", errs.Wrap(errs.KindIO, op, "get working directory", err)
		}
		start = cwd
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", errs.Wrap(errs.KindIO, op, "resolve absolute path", err)
	}

	for dir := abs; ; {
		latticeDir := filepath.Join(dir, RootDirName)
		if info, err := os.Stat(latticeDir); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LatticeDir returns the ".lattice" directory beneath root.
func LatticeDir(root string) string { return filepath.Join(root, RootDirName) }
