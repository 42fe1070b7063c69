package storage

import (
	"context"
	"database/sql"

	"cashplan/internal/core"
)

const auditColumns = `id, message_id, event_type, company_id, scenario_id, import_id, actor, payload, occurred_at, recorded_at`

const insertAuditEvent = `
INSERT INTO audit_events (message_id, event_type, company_id, scenario_id, import_id, actor, payload, occurred_at, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (message_id) DO NOTHING
`

// InsertAuditEvent returns the number of inserted rows; zero means the
// message was already recorded.
func (q *Queries) InsertAuditEvent(ctx context.Context, e core.AuditEvent) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertAuditEvent,
		e.MessageID, e.EventType, e.CompanyID, nullString(e.ScenarioID), nullString(e.ImportID),
		e.Actor, e.Payload, formatTime(e.OccurredAt), formatTime(e.RecordedAt))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listAuditEvents = `
SELECT ` + auditColumns + ` FROM audit_events
WHERE company_id = ?
ORDER BY occurred_at DESC, id DESC
LIMIT ? OFFSET ?
`

func (q *Queries) ListAuditEvents(ctx context.Context, companyID string, limit, offset int) ([]core.AuditEvent, error) {
	rows, err := q.db.QueryContext(ctx, listAuditEvents, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.AuditEvent
	for rows.Next() {
		var e core.AuditEvent
		var scenarioID, importID sql.NullString
		var occurredAt, recordedAt string
		if err := rows.Scan(&e.ID, &e.MessageID, &e.EventType, &e.CompanyID, &scenarioID, &importID,
			&e.Actor, &e.Payload, &occurredAt, &recordedAt); err != nil {
			return nil, err
		}
		e.ScenarioID = scenarioID.String
		e.ImportID = importID.String
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		if e.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const countAuditEvents = `
SELECT COUNT(*) FROM audit_events WHERE company_id = ?
`

func (q *Queries) CountAuditEvents(ctx context.Context, companyID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countAuditEvents, companyID).Scan(&n)
	return n, err
}
