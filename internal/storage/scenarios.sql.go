package storage

import (
	"context"
	"database/sql"
	"time"

	"cashplan/internal/core"
)

const scenarioColumns = `id, company_id, import_id, name, description, status, start_date, end_date, base_scenario_id, created_by, created_at, updated_at, locked_at, deleted_at`

const createScenario = `
INSERT INTO scenarios (` + scenarioColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateScenario(ctx context.Context, s core.Scenario) error {
	_, err := q.db.ExecContext(ctx, createScenario,
		s.ID, s.CompanyID, s.ImportID, s.Name, s.Description, string(s.Status),
		s.StartDate.String(), s.EndDate.String(), nullString(s.BaseScenarioID),
		s.CreatedBy, formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
		nullTime(s.LockedAt), nullTime(s.DeletedAt))
	return err
}

const getScenario = `
SELECT ` + scenarioColumns + ` FROM scenarios
WHERE company_id = ? AND id = ? AND deleted_at IS NULL
`

func (q *Queries) GetScenario(ctx context.Context, companyID, id string) (core.Scenario, error) {
	return scanScenario(q.db.QueryRowContext(ctx, getScenario, companyID, id))
}

const listScenarios = `
SELECT ` + scenarioColumns + ` FROM scenarios
WHERE company_id = ? AND deleted_at IS NULL AND (? = '' OR status = ?)
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?
`

func (q *Queries) ListScenarios(ctx context.Context, companyID string, status core.ScenarioStatus, limit, offset int) ([]core.Scenario, error) {
	rows, err := q.db.QueryContext(ctx, listScenarios, companyID, string(status), string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const countScenarios = `
SELECT COUNT(*) FROM scenarios
WHERE company_id = ? AND deleted_at IS NULL AND (? = '' OR status = ?)
`

func (q *Queries) CountScenarios(ctx context.Context, companyID string, status core.ScenarioStatus) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countScenarios, companyID, string(status), string(status)).Scan(&n)
	return n, err
}

const scenarioNameTaken = `
SELECT COUNT(*) FROM scenarios
WHERE company_id = ? AND name = ? AND deleted_at IS NULL AND id <> ?
`

func (q *Queries) ScenarioNameTaken(ctx context.Context, companyID, name, excludeID string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, scenarioNameTaken, companyID, name, excludeID).Scan(&n)
	return n > 0, err
}

const updateScenario = `
UPDATE scenarios
SET name = ?, description = ?, start_date = ?, end_date = ?, updated_at = ?
WHERE company_id = ? AND id = ? AND status = 'Draft' AND deleted_at IS NULL
`

func (q *Queries) UpdateScenario(ctx context.Context, s core.Scenario) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateScenario,
		s.Name, s.Description, s.StartDate.String(), s.EndDate.String(), formatTime(s.UpdatedAt),
		s.CompanyID, s.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const lockScenario = `
UPDATE scenarios
SET status = 'Locked', locked_at = ?, updated_at = ?
WHERE company_id = ? AND id = ? AND status = 'Draft' AND deleted_at IS NULL
`

func (q *Queries) LockScenario(ctx context.Context, companyID, id string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, lockScenario, formatTime(at), formatTime(at), companyID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countDependents = `
SELECT COUNT(*) FROM scenarios WHERE base_scenario_id = ? AND deleted_at IS NULL
`

func (q *Queries) CountDependents(ctx context.Context, id string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countDependents, id).Scan(&n)
	return n, err
}

const softDeleteScenario = `
UPDATE scenarios
SET deleted_at = ?, updated_at = ?
WHERE company_id = ? AND id = ? AND deleted_at IS NULL
  AND NOT EXISTS (
      SELECT 1 FROM scenarios d WHERE d.base_scenario_id = scenarios.id AND d.deleted_at IS NULL
  )
`

func (q *Queries) SoftDeleteScenario(ctx context.Context, companyID, id string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, softDeleteScenario, formatTime(at), formatTime(at), companyID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanScenario(row rowScanner) (core.Scenario, error) {
	var s core.Scenario
	var status, start, end, createdAt, updatedAt string
	var base, lockedAt, deletedAt sql.NullString
	err := row.Scan(&s.ID, &s.CompanyID, &s.ImportID, &s.Name, &s.Description, &status,
		&start, &end, &base, &s.CreatedBy, &createdAt, &updatedAt, &lockedAt, &deletedAt)
	if err != nil {
		return s, err
	}
	s.Status = core.ScenarioStatus(status)
	s.BaseScenarioID = base.String
	if s.StartDate, err = parseDate(start); err != nil {
		return s, err
	}
	if s.EndDate, err = parseDate(end); err != nil {
		return s, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return s, err
	}
	if s.LockedAt, err = parseNullTime(lockedAt); err != nil {
		return s, err
	}
	s.DeletedAt, err = parseNullTime(deletedAt)
	return s, err
}
