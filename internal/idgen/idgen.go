// Package idgen generates the fixed-prefix ULIDs used throughout the
// storage engine (task_, ev_, art_ — spec.md §6).
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// PrefixTask identifies a task ID.
	PrefixTask = "task_"
	// PrefixEvent identifies an event ID.
	PrefixEvent = "ev_"
	// PrefixArtifact identifies an artifact ID.
	PrefixArtifact = "art_"
)

// Clock abstracts time so callers (and tests) can control the instant a
// ULID is minted without reaching for the wall clock directly.
type Clock func() time.Time

// Source generates ULIDs for a fixed prefix. It is safe for concurrent
// use; each call draws its own entropy from crypto/rand.
type Source struct {
	prefix string
	clock  Clock
}

// NewSource returns a Source that mints IDs of the form "<prefix><ULID>".
func NewSource(prefix string, clock Clock) Source {
	if clock == nil {
		clock = time.Now
	}
	return Source{prefix: prefix, clock: clock}
}

// New mints a new ID.
func (s Source) New() string {
	t := s.clock().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return s.prefix + strings.ToLower(id.String())
}

// Task mints a task ID.
func Task() string { return NewSource(PrefixTask, time.Now).New() }

// Event mints an event ID.
func Event() string { return NewSource(PrefixEvent, time.Now).New() }

// Artifact mints an artifact ID.
func Artifact() string { return NewSource(PrefixArtifact, time.Now).New() }

// HasPrefix reports whether id is tagged with the given known prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix)
}

// ValidatePrefixed returns an error-shaped message if id does not carry
// the expected prefix followed by a non-empty suffix.
func ValidatePrefixed(id, prefix string) error {
	if !strings.HasPrefix(id, prefix) || len(id) <= len(prefix) {
		return fmt.Errorf("id %q does not have the expected prefix %q", id, prefix)
	}
	return nil
}
