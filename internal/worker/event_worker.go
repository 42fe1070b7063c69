// Package worker consumes lifecycle events: every event lands in the audit
// log and locked scenarios are published as spreadsheet snapshots.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cashplan/internal/amqp"
	"cashplan/internal/core"
	"cashplan/internal/export"
	"cashplan/internal/log"
	"cashplan/internal/sheets"
	"cashplan/internal/storage"
)

// SnapshotLoader reads the export tables of a scenario.
type SnapshotLoader interface {
	Load(ctx context.Context, companyID, scenarioID string) (export.Data, error)
}

// EventWorker handles messages from the event queue.
type EventWorker struct {
	storage *storage.SQLiteRepository
	loader  SnapshotLoader
	sheets  sheets.SnapshotWriter
	now     func() time.Time
}

// NewEventWorker builds a worker. A nil writer disables snapshots.
func NewEventWorker(storage *storage.SQLiteRepository, loader SnapshotLoader, writer sheets.SnapshotWriter) *EventWorker {
	return &EventWorker{
		storage: storage,
		loader:  loader,
		sheets:  writer,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent processes a single event message from AMQP. The snapshot is
// written before the audit row so a failed snapshot is retried on
// redelivery; rewriting a snapshot is harmless.
func (w *EventWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	slog.InfoContext(ctx, "Processing event message",
		log.FieldMessageID, msg.ID,
		log.FieldEventType, msg.Type,
		log.FieldCompanyID, msg.CompanyID,
		log.FieldScenarioID, msg.ScenarioID)

	if msg.Type == core.EventScenarioLocked {
		if _, err := w.Snapshot(ctx, msg.CompanyID, msg.ScenarioID); err != nil {
			if !core.IsKind(err, core.KindNotFound) {
				return fmt.Errorf("snapshot scenario %s: %w", msg.ScenarioID, err)
			}
			slog.WarnContext(ctx, "Locked scenario no longer exists, skipping snapshot",
				"scenario_id", msg.ScenarioID)
		}
	}

	inserted, err := w.storage.RecordAuditEvent(ctx, auditEvent(msg, w.now()))
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	if !inserted {
		slog.InfoContext(ctx, "Duplicate event message ignored",
			log.FieldOperation, log.OpAudit,
			log.FieldMessageID, msg.ID)
	}
	return nil
}

// Snapshot publishes the current tables of a scenario. It returns an empty
// reference when no writer is configured.
func (w *EventWorker) Snapshot(ctx context.Context, companyID, scenarioID string) (string, error) {
	if w.sheets == nil {
		slog.DebugContext(ctx, "No snapshot writer configured, skipping", "scenario_id", scenarioID)
		return "", nil
	}
	data, err := w.loader.Load(ctx, companyID, scenarioID)
	if err != nil {
		return "", err
	}
	ref, err := w.sheets.WriteSnapshot(ctx, data)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	slog.InfoContext(ctx, "Scenario snapshot published",
		log.FieldOperation, log.OpSnapshot,
		log.FieldScenarioID, scenarioID,
		"ref", ref)
	return ref, nil
}

func auditEvent(msg *amqp.EventMessage, recordedAt time.Time) core.AuditEvent {
	payload := "{}"
	if len(msg.Data) > 0 {
		if b, err := json.Marshal(msg.Data); err == nil {
			payload = string(b)
		}
	}
	return core.AuditEvent{
		MessageID:  msg.ID,
		EventType:  string(msg.Type),
		CompanyID:  msg.CompanyID,
		ScenarioID: msg.ScenarioID,
		ImportID:   msg.ImportID,
		Actor:      msg.Actor,
		Payload:    payload,
		OccurredAt: msg.Timestamp,
		RecordedAt: recordedAt,
	}
}
