package fsutil

import (
	"bytes"
	"encoding/json"
)

// MarshalPrettySorted serializes v as JSON with lexicographically
// sorted object keys, 2-space indentation, and a terminal newline. Used
// for snapshots, ids.json, config.json, and artifact metadata
// (spec.md §6).
func MarshalPrettySorted(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	sorted, err := sortJSON(raw)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, sorted, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// MarshalCompactSorted serializes v as a single JSON line with
// lexicographically sorted object keys and no extraneous whitespace,
// the format used for event and lifecycle log lines (spec.md §6).
// The caller is responsible for appending the line terminator.
func MarshalCompactSorted(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	sorted, err := sortJSON(raw)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, sorted); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sortJSON re-encodes arbitrary JSON bytes with every object's keys
// sorted lexicographically, recursively. encoding/json already sorts
// map[string]any keys on marshal, but struct field order follows Go
// struct declaration order; decoding through map[string]any and
// re-encoding normalizes both shapes identically, which is what lets
// rebuild (spec.md §4.6) produce byte-identical output regardless of
// whether a value started life as a struct or an open map.
func sortJSON(raw []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(sortValue(v))
}

// sortValue recursively normalizes decoded JSON values. encoding/json
// already emits map[string]any keys in sorted order on marshal, so the
// map case only needs to recurse into values; it exists mainly to make
// that guarantee explicit rather than incidental.
func sortValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = sortValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortValue(e)
		}
		return out
	default:
		return t
	}
}
