package events

import "github.com/lattice-dev/lattice/internal/errs"

// Fold replays a well-formed per-task event log from scratch into a
// snapshot (spec.md §4.6 rebuild): the first event must be
// task_created (used to initialize the snapshot directly, since Apply
// rejects task_created as a non-initial event), and every subsequent
// event is folded in file order via Apply. Fold is pure and
// deterministic: the same event slice always yields the same
// snapshot, which is what lets rebuild produce byte-identical output
// across runs (spec.md §8 property 1).
func Fold(evs []Event, policy WorkflowPolicy) (Snapshot, error) {
	const op = "events.Fold"

	if len(evs) == 0 {
		return Snapshot{}, errs.New(errs.KindIntegrity, op, "empty event log")
	}

	first := evs[0]
	if first.Type != TaskCreated {
		return Snapshot{}, errs.New(errs.KindIntegrity, op, "first event is not task_created: "+string(first.Type))
	}

	title, _ := first.Data["title"].(string)
	status, _ := first.Data["status"].(string)
	description, _ := first.Data["description"].(string)
	priority, _ := first.Data["priority"].(string)
	urgency, _ := first.Data["urgency"].(string)
	typ, _ := first.Data["type"].(string)
	assignedTo, _ := first.Data["assigned_to"].(string)

	var tags []string
	if raw, ok := first.Data["tags"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	var customFields map[string]any
	if raw, ok := first.Data["custom_fields"].(map[string]any); ok {
		customFields = raw
	}

	taskID := first.TaskID
	if taskID == "" {
		if id, ok := first.Data["task_id"].(string); ok {
			taskID = id
		}
	}

	snap := InitSnapshot(taskID, title, status, first.TS, first.Actor, SnapshotInitOptions{
		Description:  description,
		Priority:     priority,
		Urgency:      urgency,
		Type:         typ,
		Tags:         tags,
		AssignedTo:   assignedTo,
		CustomFields: customFields,
	})
	snap.SchemaVersion = SchemaVersion
	snap.LastEventID = first.ID
	snap.UpdatedAt = first.TS

	for _, ev := range evs[1:] {
		var err error
		snap, err = Apply(snap, ev, policy)
		if err != nil {
			return Snapshot{}, errs.Wrap(errs.KindIntegrity, op, "apply event "+ev.ID+" ("+string(ev.Type)+")", err)
		}
	}

	return snap, nil
}
