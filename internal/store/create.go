package store

import (
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/events"
	"github.com/lattice-dev/lattice/internal/fsutil"
	"github.com/lattice-dev/lattice/internal/idgen"
	"github.com/lattice-dev/lattice/internal/lockfile"
	"github.com/lattice-dev/lattice/internal/shortid"
)

// CreateTaskInput carries the caller-supplied task_created payload.
// ID is optional; when supplied, creation is idempotent against an
// existing task with the same ID (spec.md §4.3).
type CreateTaskInput struct {
	ID           string
	Title        string
	Actor        string
	Description  string
	Priority     string
	Urgency      string
	Type         string
	Tags         []string
	AssignedTo   string
	CustomFields map[string]any
	AgentMeta    *events.AgentMeta
}

// CreateTask allocates a task ID (if none supplied) and appends the
// task_created event under the task's lock set, plus the lifecycle and
// ids_json locks. When the config has a project code it also allocates
// a short ID and appends a task_short_id_assigned event. It writes the
// log, lifecycle log, and snapshot itself rather than calling
// WriteTaskEvent. A caller-supplied ID that already names an existing task with an
// identical creation payload short-circuits with success and no new
// write; a divergent payload returns Conflict (spec.md §4.3, §4.4
// "Idempotency envelope").
func (c *Context) CreateTask(in CreateTaskInput) (events.Snapshot, error) {
	const op = "store.CreateTask"

	taskID := in.ID
	if taskID == "" {
		taskID = idgen.Task()
	} else if err := idgen.ValidatePrefixed(taskID, idgen.PrefixTask); err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindInvalidID, op, "invalid task id", err)
	}

	lockNames := []string{
		lockfile.EventsLock(taskID),
		lockfile.TaskLock(taskID),
		lockfile.LifecycleLock(),
		lockfile.IDsLock(),
	}
	held, err := c.Locks.LockAll(lockNames)
	if err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindLockContention, op, "acquire lock set", err)
	}
	defer held.Release()

	now := c.now()
	createdAt := events.FormatTimestamp(now)

	incoming := events.CreationFields{Title: in.Title, CreatedBy: in.Actor, Type: in.Type}

	if existing, readErr, found := loadSnapshotAt(snapshotPath(c.Root, taskID, false)); found {
		if readErr != nil {
			return events.Snapshot{}, readErr
		}
		if events.SameCreation(events.CreationFieldsOf(existing), incoming) {
			return existing, nil
		}
		return events.Snapshot{}, errs.New(errs.KindConflict, op, "task "+taskID+" already exists with a different creation payload")
	}

	createEvent, err := events.NewEvent(events.NewEventInput{
		Type:   events.TaskCreated,
		Actor:  in.Actor,
		TaskID: taskID,
		Data: map[string]any{
			"task_id":       taskID,
			"title":         in.Title,
			"status":        c.defaultStatus(),
			"description":   in.Description,
			"priority":      in.Priority,
			"urgency":       in.Urgency,
			"type":          in.Type,
			"tags":          toAnySlice(in.Tags),
			"assigned_to":   in.AssignedTo,
			"custom_fields": in.CustomFields,
		},
		AgentMeta: in.AgentMeta,
	}, now)
	if err != nil {
		return events.Snapshot{}, err
	}

	snap := events.InitSnapshot(taskID, in.Title, c.defaultStatus(), createdAt, in.Actor, events.SnapshotInitOptions{
		Description:  in.Description,
		Priority:     in.Priority,
		Urgency:      in.Urgency,
		Type:         in.Type,
		Tags:         in.Tags,
		AssignedTo:   in.AssignedTo,
		CustomFields: in.CustomFields,
	})
	snap.SchemaVersion = events.SchemaVersion
	snap.LastEventID = createEvent.ID
	snap.UpdatedAt = createEvent.TS

	if err := fsutil.AppendJSONL(eventLogPath(c.Root, taskID, false), createEvent); err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "append creation event", err)
	}
	if err := fsutil.AppendJSONL(lifecyclePath(c.Root), createEvent); err != nil {
		return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "append lifecycle event", err)
	}

	if c.Config.ProjectCode != "" {
		shortID, err := shortid.Allocate(c.Root, c.Config.ProjectCode, taskID)
		if err != nil {
			return events.Snapshot{}, err
		}
		snap.ShortID = shortID

		assignEvent, err := events.NewEvent(events.NewEventInput{
			Type:   events.TaskShortIDAssigned,
			Actor:  in.Actor,
			TaskID: taskID,
			Data:   map[string]any{"short_id": shortID},
		}, now)
		if err != nil {
			return events.Snapshot{}, err
		}
		if err := fsutil.AppendJSONL(eventLogPath(c.Root, taskID, false), assignEvent); err != nil {
			return events.Snapshot{}, errs.Wrap(errs.KindIO, op, "append short-id event", err)
		}
		snap.LastEventID = assignEvent.ID
		snap.UpdatedAt = assignEvent.TS
	}

	if err := writeSnapshot(c.Root, taskID, snap, false); err != nil {
		return events.Snapshot{}, err
	}

	held.Release()

	appended := []events.Event{createEvent}
	c.Hooks.Dispatch(c.Config.Hooks, taskID, appended)

	return snap, nil
}

func (c *Context) defaultStatus() string {
	if len(c.Config.Workflow.Statuses) == 0 {
		return ""
	}
	return c.Config.Workflow.Statuses[0]
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
