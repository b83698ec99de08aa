package events

import (
	"strings"
	"time"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/idgen"
)

// NewEventInput carries everything a caller supplies to construct an
// Event (spec.md §4.3). ID, AgentMeta, OTel, Metrics, and RunID are
// optional.
type NewEventInput struct {
	Type      Type
	Actor     string
	Data      map[string]any
	TaskID    string
	ID        string
	AgentMeta *AgentMeta
	OTel      *OTel
	Metrics   map[string]any
	RunID     string
}

// ValidateActor reports whether actor matches "<nonempty_prefix>:<nonempty_identifier>".
func ValidateActor(actor string) error {
	const op = "events.ValidateActor"

	idx := strings.IndexByte(actor, ':')
	if idx <= 0 || idx == len(actor)-1 {
		return errs.New(errs.KindInvalidActor, op, "actor must match \"<prefix>:<identifier>\" with non-empty halves, got "+actor)
	}
	return nil
}

// NewEvent validates the input and assembles an Event, allocating an ID
// and timestamp if none were supplied.
func NewEvent(in NewEventInput, now time.Time) (Event, error) {
	const op = "events.NewEvent"

	if err := ValidateActor(in.Actor); err != nil {
		return Event{}, err
	}
	if !IsValidType(in.Type) {
		return Event{}, errs.New(errs.KindInvalidID, op, "event type must be built-in or \""+CustomPrefix+"\"-prefixed, got "+string(in.Type))
	}

	id := in.ID
	if id == "" {
		id = idgen.Event()
	} else if err := idgen.ValidatePrefixed(id, idgen.PrefixEvent); err != nil {
		return Event{}, errs.Wrap(errs.KindInvalidID, op, "invalid event id", err)
	}

	data := in.Data
	if data == nil {
		data = map[string]any{}
	}

	return Event{
		SchemaVersion: SchemaVersion,
		ID:            id,
		TS:            FormatTimestamp(now),
		Type:          in.Type,
		Actor:         in.Actor,
		Data:          data,
		TaskID:        in.TaskID,
		AgentMeta:     in.AgentMeta,
		OTel:          in.OTel,
		Metrics:       in.Metrics,
		RunID:         in.RunID,
	}, nil
}
