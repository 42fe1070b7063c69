package core

import "time"

type EventType string

const (
	EventImportCompleted    EventType = "import.completed"
	EventImportFailed       EventType = "import.failed"
	EventScenarioCreated    EventType = "scenario.created"
	EventScenarioUpdated    EventType = "scenario.updated"
	EventScenarioLocked     EventType = "scenario.locked"
	EventScenarioDuplicated EventType = "scenario.duplicated"
	EventScenarioDeleted    EventType = "scenario.deleted"
	EventOverrideUpserted   EventType = "override.upserted"
	EventOverrideDeleted    EventType = "override.deleted"
)

// Event is a lifecycle notification emitted after a successful write.
type Event struct {
	Type       EventType
	CompanyID  string
	ScenarioID string
	ImportID   string
	Actor      string
	OccurredAt time.Time
	Data       map[string]any
}

func (t EventType) Valid() bool {
	switch t {
	case EventImportCompleted, EventImportFailed,
		EventScenarioCreated, EventScenarioUpdated, EventScenarioLocked,
		EventScenarioDuplicated, EventScenarioDeleted,
		EventOverrideUpserted, EventOverrideDeleted:
		return true
	}
	return false
}
