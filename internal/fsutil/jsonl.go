package fsutil

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/lattice-dev/lattice/internal/errs"
)

// AppendJSONL appends a single compact JSON line (with keys sorted, no
// extra whitespace, terminated by '\n') to path, opening the file in
// append mode and flushing before returning. Callers are expected to
// hold the relevant named lock across this call.
func AppendJSONL(path string, v any) error {
	const op = "fsutil.AppendJSONL"

	line, err := MarshalCompactSorted(v)
	if err != nil {
		return errs.Wrap(errs.KindIO, op, "marshal event line", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(errs.KindIO, op, "open jsonl for append", err)
	}
	defer func() { _ = f.Close() }()

	if err := writeFull(f, append(line, '\n')); err != nil {
		return errs.Wrap(errs.KindIO, op, "write jsonl line", err)
	}
	return f.Sync()
}

// ReadJSONLLines parses a JSONL file, calling fn with the raw bytes of
// each complete line in file order. A single truncated trailing line
// (one that fails to unmarshal as complete JSON and has no trailing
// newline) is reported via truncated=true rather than as an error, so
// callers can decide whether to tolerate or repair it (spec.md §4.6).
func ReadJSONLLines(path string, fn func(line []byte) error) (truncated bool, err error) {
	const op = "fsutil.ReadJSONLLines"

	f, openErr := os.Open(path)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return false, nil
		}
		return false, errs.Wrap(errs.KindIO, op, "open jsonl", openErr)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		raw, readErr := r.ReadBytes('\n')
		atEOF := readErr == io.EOF
		if readErr != nil && !atEOF {
			return false, errs.Wrap(errs.KindIO, op, "read jsonl line", readErr)
		}

		trimmed := raw
		if atEOF {
			// No trailing newline: either the file ends cleanly with a
			// newline-terminated last line already consumed (trimmed is
			// empty) or we have a partial/truncated final line.
			if len(trimmed) == 0 {
				break
			}
			if !json.Valid(trimmed) {
				return true, nil
			}
		} else {
			trimmed = trimmed[:len(trimmed)-1]
			if len(trimmed) == 0 {
				continue
			}
		}

		if err := fn(trimmed); err != nil {
			return false, err
		}
		if atEOF {
			break
		}
	}
	return false, nil
}

// TrimTruncatedTail removes a single truncated trailing line from path,
// if one is present (spec.md §4.6, §8 property 2 — the only JSONL
// mutation doctor's --fix is permitted to make). A trailing line that
// parses as valid JSON but is simply missing its newline terminator is
// repaired in place rather than discarded, since no data was lost.
// Reports trimmed=false if the file is well-formed or does not exist.
func TrimTruncatedTail(path string) (trimmed bool, err error) {
	const op = "fsutil.TrimTruncatedTail"

	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return false, nil
		}
		return false, errs.Wrap(errs.KindIO, op, "read jsonl", readErr)
	}
	if len(raw) == 0 {
		return false, nil
	}

	lastNL := lastIndexByte(raw, '\n')
	if lastNL == len(raw)-1 {
		return false, nil
	}

	tail := raw[lastNL+1:]
	if json.Valid(tail) {
		fixed := append(append([]byte(nil), raw...), '\n')
		if err := AtomicWrite(path, fixed, 0644); err != nil {
			return false, err
		}
		return true, nil
	}

	kept := raw[:lastNL+1]
	if err := AtomicWrite(path, kept, 0644); err != nil {
		return false, err
	}
	return true, nil
}

func lastIndexByte(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}
