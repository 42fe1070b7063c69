package storage

import (
	"context"
	"database/sql"

	"cashplan/internal/core"
)

const importColumns = `id, company_id, account_id, file_name, status, total_rows, valid_rows, invalid_rows, error_message, created_by, created_at, completed_at`

const createImport = `
INSERT INTO imports (` + importColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateImport(ctx context.Context, imp core.Import) error {
	_, err := q.db.ExecContext(ctx, createImport,
		imp.ID, imp.CompanyID, nullString(imp.AccountID), imp.FileName, string(imp.Status),
		imp.TotalRows, imp.ValidRows, imp.InvalidRows, nullString(imp.ErrorMessage),
		imp.CreatedBy, formatTime(imp.CreatedAt), nullTime(imp.CompletedAt))
	return err
}

const setImportStatus = `
UPDATE imports SET status = ? WHERE id = ?
`

func (q *Queries) SetImportStatus(ctx context.Context, id string, status core.ImportStatus) (int64, error) {
	res, err := q.db.ExecContext(ctx, setImportStatus, string(status), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const finishImport = `
UPDATE imports
SET status = ?, total_rows = ?, valid_rows = ?, invalid_rows = ?, error_message = ?, completed_at = ?
WHERE id = ?
`

func (q *Queries) FinishImport(ctx context.Context, imp core.Import) error {
	_, err := q.db.ExecContext(ctx, finishImport,
		string(imp.Status), imp.TotalRows, imp.ValidRows, imp.InvalidRows,
		nullString(imp.ErrorMessage), nullTime(imp.CompletedAt), imp.ID)
	return err
}

const getImport = `
SELECT ` + importColumns + ` FROM imports WHERE company_id = ? AND id = ?
`

func (q *Queries) GetImport(ctx context.Context, companyID, id string) (core.Import, error) {
	return scanImport(q.db.QueryRowContext(ctx, getImport, companyID, id))
}

const listImports = `
SELECT ` + importColumns + ` FROM imports WHERE company_id = ?
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?
`

func (q *Queries) ListImports(ctx context.Context, companyID string, limit, offset int) ([]core.Import, error) {
	rows, err := q.db.QueryContext(ctx, listImports, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, imp)
	}
	return items, rows.Err()
}

const countImports = `
SELECT COUNT(*) FROM imports WHERE company_id = ?
`

func (q *Queries) CountImports(ctx context.Context, companyID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countImports, companyID).Scan(&n)
	return n, err
}

func scanImport(row rowScanner) (core.Import, error) {
	var imp core.Import
	var accountID, errMsg, completedAt sql.NullString
	var status, createdAt string
	err := row.Scan(&imp.ID, &imp.CompanyID, &accountID, &imp.FileName, &status,
		&imp.TotalRows, &imp.ValidRows, &imp.InvalidRows, &errMsg,
		&imp.CreatedBy, &createdAt, &completedAt)
	if err != nil {
		return imp, err
	}
	imp.AccountID = accountID.String
	imp.ErrorMessage = errMsg.String
	imp.Status = core.ImportStatus(status)
	if imp.CreatedAt, err = parseTime(createdAt); err != nil {
		return imp, err
	}
	imp.CompletedAt, err = parseNullTime(completedAt)
	return imp, err
}

const insertImportError = `
INSERT INTO import_errors (import_id, row_number, field, message) VALUES (?, ?, ?, ?)
`

func (q *Queries) InsertImportError(ctx context.Context, importID string, e core.ImportRowError) error {
	_, err := q.db.ExecContext(ctx, insertImportError, importID, e.Row, e.Field, e.Message)
	return err
}

const listImportErrors = `
SELECT row_number, field, message FROM import_errors WHERE import_id = ? ORDER BY row_number, id
`

func (q *Queries) ListImportErrors(ctx context.Context, importID string) ([]core.ImportRowError, error) {
	rows, err := q.db.QueryContext(ctx, listImportErrors, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.ImportRowError
	for rows.Next() {
		var e core.ImportRowError
		if err := rows.Scan(&e.Row, &e.Field, &e.Message); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
