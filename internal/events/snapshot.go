package events

import "sort"

// Relationship is a directed out-edge from a task to another task
// (spec.md §3.1). Only out-edges are stored; reverse lookups are scans.
type Relationship struct {
	Type         string `json:"type"`
	TargetTaskID string `json:"target_task_id"`
	CreatedAt    string `json:"created_at"`
	CreatedBy    string `json:"created_by"`
	Note         string `json:"note,omitempty"`
}

// ProcessRecord tracks a worker that announced it started work on a
// task via process_started, keyed by the event ID that started it.
type ProcessRecord struct {
	StartedEventID string `json:"started_event_id"`
	StartedAt      string `json:"started_at"`
	Actor          string `json:"actor"`
}

// gitContextCacheLimit bounds the ring buffer of recent git_event
// payloads kept on a snapshot (SPEC_FULL.md §C).
const gitContextCacheLimit = 20

// Snapshot is the materialized view of a task, derived entirely from
// its event log (spec.md §3.1).
type Snapshot struct {
	SchemaVersion    int                 `json:"schema_version"`
	ID               string              `json:"id"`
	ShortID          string              `json:"short_id,omitempty"`
	Title            string              `json:"title"`
	Description      string              `json:"description,omitempty"`
	Status           string              `json:"status"`
	Priority         string              `json:"priority,omitempty"`
	Urgency          string              `json:"urgency,omitempty"`
	Type             string              `json:"type,omitempty"`
	Tags             []string            `json:"tags,omitempty"`
	AssignedTo       string              `json:"assigned_to,omitempty"`
	CreatedBy        string              `json:"created_by"`
	CreatedAt        string              `json:"created_at"`
	UpdatedAt        string              `json:"updated_at"`
	RelationshipsOut []Relationship      `json:"relationships_out"`
	ArtifactRefs     []string            `json:"artifact_refs"`
	ActiveProcesses  []ProcessRecord     `json:"active_processes"`
	LastEventID      string              `json:"last_event_id"`
	CustomFields     map[string]any      `json:"custom_fields,omitempty"`
	Archived         bool                `json:"archived"`
	GitContext       []map[string]any    `json:"git_context,omitempty"`
}

// Clone returns a deep-enough copy of s suitable for speculative
// mutation by Apply without aliasing slices/maps with the original.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Tags = append([]string(nil), s.Tags...)
	out.RelationshipsOut = append([]Relationship(nil), s.RelationshipsOut...)
	out.ArtifactRefs = append([]string(nil), s.ArtifactRefs...)
	out.ActiveProcesses = append([]ProcessRecord(nil), s.ActiveProcesses...)
	out.GitContext = append([]map[string]any(nil), s.GitContext...)
	if s.CustomFields != nil {
		out.CustomFields = make(map[string]any, len(s.CustomFields))
		for k, v := range s.CustomFields {
			out.CustomFields[k] = v
		}
	}
	return out
}

// dedupeTags returns tags deduplicated and sorted, matching the
// invariant that tags form a set (spec.md §3.1). An empty result is
// nil, which is what the omitempty "tags" field parses back to, so a
// snapshot without tags survives a save/load round trip unchanged.
func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// InitSnapshot builds the initial snapshot from a task_created event's
// fields. Required: task_id, title, status, created_at, created_by.
func InitSnapshot(taskID, title, status, createdAt, createdBy string, opts SnapshotInitOptions) Snapshot {
	return Snapshot{
		SchemaVersion:    SchemaVersion,
		ID:               taskID,
		Title:            title,
		Description:      opts.Description,
		Status:           status,
		Priority:         opts.Priority,
		Urgency:          opts.Urgency,
		Type:             opts.Type,
		Tags:             dedupeTags(opts.Tags),
		AssignedTo:       opts.AssignedTo,
		CreatedBy:        createdBy,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
		RelationshipsOut: []Relationship{},
		ArtifactRefs:     []string{},
		ActiveProcesses:  []ProcessRecord{},
		CustomFields:     opts.CustomFields,
	}
}

// SnapshotInitOptions carries the optional task_created fields.
type SnapshotInitOptions struct {
	Description  string
	Priority     string
	Urgency      string
	Type         string
	Tags         []string
	AssignedTo   string
	CustomFields map[string]any
}

// CreationFields are the fields compared for idempotent creation
// (spec.md §4.3): when a caller-supplied task ID already exists, an
// exact match on these fields means success-with-no-write, any
// divergence is a Conflict. CreatedAt is deliberately excluded: it is
// stamped from the wall clock at creation time, so a replay of an
// otherwise-identical create would never match it and every retry
// would be misreported as a Conflict.
type CreationFields struct {
	Title     string
	CreatedBy string
	Type      string
}

// CreationFieldsOf extracts the fields relevant to idempotent-creation
// comparison from a snapshot.
func CreationFieldsOf(s Snapshot) CreationFields {
	return CreationFields{Title: s.Title, CreatedBy: s.CreatedBy, Type: s.Type}
}

// SameCreation reports whether two creation payloads are identical.
func SameCreation(a, b CreationFields) bool { return a == b }
