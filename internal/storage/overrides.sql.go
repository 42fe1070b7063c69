package storage

import (
	"context"
	"database/sql"

	"cashplan/internal/core"
)

const overrideColumns = `id, scenario_id, flow_id, original_date, original_amount_cents, new_date, new_amount_cents, note, created_at, updated_at`

// Originals are written on insert only; the conflict branch leaves them alone.
const upsertOverride = `
INSERT INTO scenario_overrides (` + overrideColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (scenario_id, flow_id) DO UPDATE SET
    new_date = excluded.new_date,
    new_amount_cents = excluded.new_amount_cents,
    note = excluded.note,
    updated_at = excluded.updated_at
`

func (q *Queries) UpsertOverride(ctx context.Context, o core.Override) error {
	_, err := q.db.ExecContext(ctx, upsertOverride,
		o.ID, o.ScenarioID, o.FlowID, o.OriginalDate.String(), o.OriginalAmount.Cents,
		nullDate(o.NewDate), nullMoney(o.NewAmount), o.Note,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	return err
}

const getOverride = `
SELECT ` + overrideColumns + ` FROM scenario_overrides WHERE scenario_id = ? AND flow_id = ?
`

func (q *Queries) GetOverride(ctx context.Context, scenarioID, flowID string) (core.Override, error) {
	return scanOverride(q.db.QueryRowContext(ctx, getOverride, scenarioID, flowID))
}

const listOverrides = `
SELECT ` + overrideColumns + ` FROM scenario_overrides WHERE scenario_id = ? ORDER BY created_at, id
`

func (q *Queries) ListOverrides(ctx context.Context, scenarioID string) ([]core.Override, error) {
	rows, err := q.db.QueryContext(ctx, listOverrides, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const deleteOverride = `
DELETE FROM scenario_overrides WHERE scenario_id = ? AND flow_id = ?
`

func (q *Queries) DeleteOverride(ctx context.Context, scenarioID, flowID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteOverride, scenarioID, flowID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullMoney(m *core.Money) sql.NullInt64 {
	if m == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: m.Cents, Valid: true}
}

func scanOverride(row rowScanner) (core.Override, error) {
	var o core.Override
	var originalDate, createdAt, updatedAt string
	var newDate sql.NullString
	var newAmount sql.NullInt64
	err := row.Scan(&o.ID, &o.ScenarioID, &o.FlowID, &originalDate, &o.OriginalAmount.Cents,
		&newDate, &newAmount, &o.Note, &createdAt, &updatedAt)
	if err != nil {
		return o, err
	}
	if o.OriginalDate, err = parseDate(originalDate); err != nil {
		return o, err
	}
	if newDate.Valid {
		d, err := parseDate(newDate.String)
		if err != nil {
			return o, err
		}
		o.NewDate = &d
	}
	if newAmount.Valid {
		o.NewAmount = &core.Money{Cents: newAmount.Int64}
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return o, err
	}
	o.UpdatedAt, err = parseTime(updatedAt)
	return o, err
}
