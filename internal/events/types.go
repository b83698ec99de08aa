// Package events implements the pure event and snapshot algebra
// described in spec.md §4.3: event construction and validation,
// snapshot initialization, the apply() state transition function, and
// transition-hook pattern matching. Nothing in this package touches
// disk.
package events

import (
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Type is a built-in or custom ("x_"-prefixed) event type name.
type Type string

// Built-in event types (the closed set from spec.md §3.1).
const (
	TaskCreated         Type = "task_created"
	TaskArchived        Type = "task_archived"
	TaskUnarchived       Type = "task_unarchived"
	TaskShortIDAssigned  Type = "task_short_id_assigned"
	StatusChanged        Type = "status_changed"
	AssignmentChanged    Type = "assignment_changed"
	FieldUpdated         Type = "field_updated"
	CommentAdded         Type = "comment_added"
	RelationshipAdded    Type = "relationship_added"
	RelationshipRemoved  Type = "relationship_removed"
	ArtifactAttached     Type = "artifact_attached"
	ProcessStarted       Type = "process_started"
	ProcessCompleted     Type = "process_completed"
	ProcessFailed        Type = "process_failed"
	GitEvent             Type = "git_event"
)

// CustomPrefix is the required prefix for caller-defined event types.
const CustomPrefix = "x_"

// builtinTypes is the closed set of built-in event types.
var builtinTypes = map[Type]struct{}{
	TaskCreated:         {},
	TaskArchived:        {},
	TaskUnarchived:      {},
	TaskShortIDAssigned: {},
	StatusChanged:       {},
	AssignmentChanged:   {},
	FieldUpdated:        {},
	CommentAdded:        {},
	RelationshipAdded:   {},
	RelationshipRemoved: {},
	ArtifactAttached:    {},
	ProcessStarted:      {},
	ProcessCompleted:    {},
	ProcessFailed:       {},
	GitEvent:            {},
}

// lifecycleTypes is the subset duplicated into the global lifecycle log.
var lifecycleTypes = map[Type]struct{}{
	TaskCreated:    {},
	TaskArchived:   {},
	TaskUnarchived: {},
}

// IsBuiltin reports whether t is one of the fixed built-in event types.
func IsBuiltin(t Type) bool {
	_, ok := builtinTypes[t]
	return ok
}

// IsLifecycle reports whether t belongs to the lifecycle subset that is
// duplicated into events/_lifecycle.jsonl.
func IsLifecycle(t Type) bool {
	_, ok := lifecycleTypes[t]
	return ok
}

// IsValidType reports whether t is either built-in or carries the
// custom event prefix.
func IsValidType(t Type) bool {
	if IsBuiltin(t) {
		return true
	}
	return len(t) > len(CustomPrefix) && string(t)[:len(CustomPrefix)] == CustomPrefix
}

// ProtectedFields names snapshot fields that field_updated may never
// target (spec.md §4.3).
var ProtectedFields = map[string]struct{}{
	"id":                {},
	"short_id":          {},
	"created_at":        {},
	"created_by":        {},
	"relationships_out": {},
	"artifact_refs":     {},
	"active_processes":  {},
	"last_event_id":     {},
}

// IsProtectedField reports whether field may not be mutated by
// field_updated.
func IsProtectedField(field string) bool {
	_, ok := ProtectedFields[field]
	return ok
}

// AgentMeta records which agent produced an event. Model reuses the
// Anthropic SDK's Model string type so a model name round-trips as a
// recognizable Claude model identifier without the core ever making a
// network call.
type AgentMeta struct {
	Model   anthropic.Model `json:"model,omitempty"`
	Session string          `json:"session,omitempty"`
}

// OTel carries optional distributed-tracing correlation IDs.
type OTel struct {
	TraceID      string `json:"trace_id,omitempty"`
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
}

// Event is the immutable envelope persisted to a per-task JSONL log
// (spec.md §3.1).
type Event struct {
	SchemaVersion int            `json:"schema_version"`
	ID            string         `json:"id"`
	TS            string         `json:"ts"`
	Type          Type           `json:"type"`
	Actor         string         `json:"actor"`
	Data          map[string]any `json:"data"`
	TaskID        string         `json:"task_id,omitempty"`
	AgentMeta     *AgentMeta     `json:"agent_meta,omitempty"`
	OTel          *OTel          `json:"otel,omitempty"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	RunID         string         `json:"run_id,omitempty"`
}

// SchemaVersion is the current schema_version stamped onto new events
// and snapshots.
const SchemaVersion = 1

// FormatTimestamp renders t as RFC 3339 UTC with a literal "Z" suffix,
// the timestamp format required everywhere on disk (spec.md §6).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
