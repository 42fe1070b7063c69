package storage

import (
	"context"

	"cashplan/internal/core"
)

const transactionColumns = `id, company_id, import_id, direction, amount_cents, currency, due_date, counterparty, description, category, created_at`

const insertTransaction = `
INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		t.ID, t.CompanyID, t.ImportID, string(t.Direction), t.Amount.Cents, t.Currency,
		t.DueDate.String(), t.Counterparty, t.Description, t.Category, formatTime(t.CreatedAt))
	return err
}

const getTransaction = `
SELECT ` + transactionColumns + ` FROM transactions WHERE import_id = ? AND id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, importID, id string) (core.Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, importID, id))
}

const listTransactions = `
SELECT ` + transactionColumns + ` FROM transactions WHERE import_id = ?
ORDER BY due_date, id
LIMIT ? OFFSET ?
`

func (q *Queries) ListTransactions(ctx context.Context, importID string, limit, offset int) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, importID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const countTransactions = `
SELECT COUNT(*) FROM transactions WHERE import_id = ?
`

func (q *Queries) CountTransactions(ctx context.Context, importID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countTransactions, importID).Scan(&n)
	return n, err
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var direction, dueDate, createdAt string
	err := row.Scan(&t.ID, &t.CompanyID, &t.ImportID, &direction, &t.Amount.Cents, &t.Currency,
		&dueDate, &t.Counterparty, &t.Description, &t.Category, &createdAt)
	if err != nil {
		return t, err
	}
	t.Direction = core.Direction(direction)
	if t.DueDate, err = parseDate(dueDate); err != nil {
		return t, err
	}
	t.CreatedAt, err = parseTime(createdAt)
	return t, err
}
