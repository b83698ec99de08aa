// Package fsutil provides the filesystem primitives the storage engine
// builds on: atomic durable writes, JSONL append, deterministic JSON
// serialization, and root discovery (spec.md §4.1).
package fsutil

import (
	"os"
	"path/filepath"

	"github.com/lattice-dev/lattice/internal/errs"
)

// AtomicWrite writes data to path by creating a temp file in the same
// directory, writing every byte (re-issuing the write on short writes),
// fsyncing, closing, then renaming over the target. The target is never
// observed in a partial state. On any failure after the temp file is
// created, the temp file is removed.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	const op = "fsutil.AtomicWrite"

	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errs.New(errs.KindParentMissing, op, "parent directory does not exist: "+dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.Wrap(errs.KindIO, op, "create temp file", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := writeFull(tmp, data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errs.Wrap(errs.KindIO, op, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errs.Wrap(errs.KindIO, op, "fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errs.Wrap(errs.KindIO, op, "close temp file", err)
	}
	if perm != 0 {
		_ = os.Chmod(tmpPath, perm)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return errs.Wrap(errs.KindIO, op, "rename temp file over target", err)
	}
	return nil
}

// writeFull guarantees every byte of data is written, re-issuing the
// write call for any partial progress or interrupted I/O (EINTR-style
// short writes are not assumed impossible on every platform).
func writeFull(f *os.File, data []byte) error {
	for len(data) > 0 {
		n, err := f.Write(data)
		if n > 0 {
			data = data[n:]
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return os.ErrClosed
		}
	}
	return nil
}
