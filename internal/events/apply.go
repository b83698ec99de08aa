package events

import (
	"fmt"

	"github.com/lattice-dev/lattice/internal/errs"
)

// WorkflowPolicy is the minimal view of the configured workflow that
// Apply needs to validate an unforced status_changed transition. It is
// defined here (rather than importing the config package) so this
// package stays pure and dependency-free; internal/config's Workflow
// type satisfies this interface.
type WorkflowPolicy interface {
	// IsTransitionAllowed reports whether the configured workflow
	// permits moving from `from` to `to`, including via a universal
	// target.
	IsTransitionAllowed(from, to string) bool
	// HasStatus reports whether status is a member of the configured
	// status set.
	HasStatus(status string) bool
}

// Apply folds a single event onto snapshot, returning the resulting
// snapshot. It never mutates its input. policy may be nil only when
// applying events to a brand-new snapshot that has no status yet, or
// when callers accept unconditional acceptance of status_changed
// (e.g. during rebuild trusting an already-validated log).
func Apply(snapshot Snapshot, ev Event, policy WorkflowPolicy) (Snapshot, error) {
	const op = "events.Apply"

	out := snapshot.Clone()

	switch ev.Type {
	case TaskCreated:
		return out, errs.New(errs.KindConflict, op, "task_created is only valid as the first event in a log")

	case StatusChanged:
		to, _ := ev.Data["to"].(string)
		from, _ := ev.Data["from"].(string)
		forced, _ := ev.Data["forced"].(bool)
		if to == "" {
			return out, errs.New(errs.KindInvalidTransition, op, "status_changed requires data.to")
		}
		if policy != nil && !policy.HasStatus(to) {
			return out, errs.New(errs.KindInvalidTransition, op, fmt.Sprintf("status %q is not a configured status", to))
		}
		if !forced {
			if from != out.Status {
				return out, errs.New(errs.KindInvalidTransition, op, fmt.Sprintf("data.from %q does not match current status %q", from, out.Status))
			}
			if policy != nil && !policy.IsTransitionAllowed(out.Status, to) {
				return out, errs.New(errs.KindInvalidTransition, op, fmt.Sprintf("transition %s -> %s is not permitted", out.Status, to))
			}
		}
		out.Status = to

	case AssignmentChanged:
		to, _ := ev.Data["to"].(string)
		out.AssignedTo = to

	case FieldUpdated:
		field, _ := ev.Data["field"].(string)
		if field == "" {
			return out, errs.New(errs.KindInvalidID, op, "field_updated requires data.field")
		}
		if IsProtectedField(field) {
			return out, errs.New(errs.KindProtectedField, op, fmt.Sprintf("field %q is protected", field))
		}
		if err := setField(&out, field, ev.Data["to"]); err != nil {
			return out, errs.Wrap(errs.KindInvalidID, op, "apply field_updated", err)
		}

	case CommentAdded:
		// No snapshot mutation beyond updated_at/last_event_id below.

	case RelationshipAdded:
		relType, _ := ev.Data["type"].(string)
		target, _ := ev.Data["target"].(string)
		if target == out.ID {
			return out, errs.New(errs.KindInvalidID, op, "relationship cannot target its own task")
		}
		note, _ := ev.Data["note"].(string)
		exists := false
		for _, r := range out.RelationshipsOut {
			if r.Type == relType && r.TargetTaskID == target {
				exists = true
				break
			}
		}
		if !exists {
			out.RelationshipsOut = append(out.RelationshipsOut, Relationship{
				Type:         relType,
				TargetTaskID: target,
				CreatedAt:    ev.TS,
				CreatedBy:    ev.Actor,
				Note:         note,
			})
		}

	case RelationshipRemoved:
		relType, _ := ev.Data["type"].(string)
		target, _ := ev.Data["target"].(string)
		filtered := out.RelationshipsOut[:0:0]
		for _, r := range out.RelationshipsOut {
			if r.Type == relType && r.TargetTaskID == target {
				continue
			}
			filtered = append(filtered, r)
		}
		out.RelationshipsOut = filtered

	case ArtifactAttached:
		artifactID, _ := ev.Data["artifact_id"].(string)
		found := false
		for _, id := range out.ArtifactRefs {
			if id == artifactID {
				found = true
				break
			}
		}
		if !found && artifactID != "" {
			out.ArtifactRefs = append(out.ArtifactRefs, artifactID)
		}

	case TaskArchived:
		out.Archived = true

	case TaskUnarchived:
		out.Archived = false

	case TaskShortIDAssigned:
		shortID, _ := ev.Data["short_id"].(string)
		if out.ShortID != "" && out.ShortID != shortID {
			return out, errs.New(errs.KindConflict, op, "short_id is already set to a different value")
		}
		out.ShortID = shortID

	case ProcessStarted:
		out.ActiveProcesses = append(out.ActiveProcesses, ProcessRecord{
			StartedEventID: ev.ID,
			StartedAt:      ev.TS,
			Actor:          ev.Actor,
		})

	case ProcessCompleted, ProcessFailed:
		startedEventID, _ := ev.Data["started_event_id"].(string)
		filtered := out.ActiveProcesses[:0:0]
		for _, p := range out.ActiveProcesses {
			if p.StartedEventID == startedEventID {
				continue
			}
			filtered = append(filtered, p)
		}
		out.ActiveProcesses = filtered

	case GitEvent:
		out.GitContext = append(out.GitContext, ev.Data)
		if len(out.GitContext) > gitContextCacheLimit {
			out.GitContext = out.GitContext[len(out.GitContext)-gitContextCacheLimit:]
		}

	default:
		if !IsValidType(ev.Type) {
			return out, errs.New(errs.KindInvalidID, op, fmt.Sprintf("unknown event type %q", ev.Type))
		}
		// x_-prefixed custom event: no mutation beyond the envelope fields below.
	}

	out.LastEventID = ev.ID
	out.UpdatedAt = ev.TS
	return out, nil
}

func setField(s *Snapshot, field string, value any) error {
	switch field {
	case "title":
		s.Title, _ = value.(string)
	case "description":
		s.Description, _ = value.(string)
	case "priority":
		s.Priority, _ = value.(string)
	case "urgency":
		s.Urgency, _ = value.(string)
	case "type":
		s.Type, _ = value.(string)
	case "assigned_to":
		s.AssignedTo, _ = value.(string)
	case "status":
		s.Status, _ = value.(string)
	case "tags":
		if raw, ok := value.([]any); ok {
			tags := make([]string, 0, len(raw))
			for _, v := range raw {
				if str, ok := v.(string); ok {
					tags = append(tags, str)
				}
			}
			s.Tags = dedupeTags(tags)
		}
	default:
		if s.CustomFields == nil {
			s.CustomFields = map[string]any{}
		}
		s.CustomFields[field] = value
	}
	return nil
}
