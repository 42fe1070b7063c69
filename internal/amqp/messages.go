package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashplan/internal/core"

	"github.com/google/uuid"
)

// EventMessage is the wire form of a lifecycle event. ID is unique per
// published message and lets consumers drop redeliveries.
type EventMessage struct {
	ID         string         `json:"id"`
	Type       core.EventType `json:"type"`
	CompanyID  string         `json:"company_id"`
	ScenarioID string         `json:"scenario_id,omitempty"`
	ImportID   string         `json:"import_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewEventMessage(e core.Event) *EventMessage {
	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &EventMessage{
		ID:         uuid.NewString(),
		Type:       e.Type,
		CompanyID:  e.CompanyID,
		ScenarioID: e.ScenarioID,
		ImportID:   e.ImportID,
		Actor:      e.Actor,
		Data:       e.Data,
		Timestamp:  ts,
	}
}

// Event converts the message back to a domain event.
func (m *EventMessage) Event() core.Event {
	return core.Event{
		Type:       m.Type,
		CompanyID:  m.CompanyID,
		ScenarioID: m.ScenarioID,
		ImportID:   m.ImportID,
		Actor:      m.Actor,
		OccurredAt: m.Timestamp,
		Data:       m.Data,
	}
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes and checks a message body.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("event message without id")
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.CompanyID == "" {
		return nil, errors.New("event message without company id")
	}
	return &msg, nil
}
