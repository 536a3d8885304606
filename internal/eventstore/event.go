package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
)

// EventType names a recorded fact about a run.
type EventType string

const (
	TypeRunStarted    EventType = "RunStarted"
	TypeStepCompleted EventType = "StepCompleted"
	TypeRunCompleted  EventType = "RunCompleted"
	TypeRunFailed     EventType = "RunFailed"
)

// Event is one row of run history. Payload is the JSON form of the payload
// struct matching Type.
type Event struct {
	ID       int64
	RunID    string
	Type     EventType
	At       time.Time
	Payload  json.RawMessage
	Metadata map[string]string
}

// Payload is implemented by the typed payload structs.
type Payload interface {
	EventType() EventType
}

// NewEvent encodes p into an event of p's type.
func NewEvent(runID string, at time.Time, p Payload) (Event, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, errors.HistoryError("failed to encode "+string(p.EventType())+" payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}
	return Event{RunID: runID, Type: p.EventType(), At: at, Payload: data}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
