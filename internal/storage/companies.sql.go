package storage

import (
	"context"

	"cashplan/internal/core"
)

const createCompany = `
INSERT INTO companies (id, name, created_at) VALUES (?, ?, ?)
`

func (q *Queries) CreateCompany(ctx context.Context, c core.Company) error {
	_, err := q.db.ExecContext(ctx, createCompany, c.ID, c.Name, formatTime(c.CreatedAt))
	return err
}

const addMember = `
INSERT INTO company_members (company_id, user_id, role, created_at) VALUES (?, ?, ?, ?)
`

type AddMemberParams struct {
	CompanyID string
	UserID    string
	Role      core.Role
	CreatedAt string
}

func (q *Queries) AddMember(ctx context.Context, arg AddMemberParams) error {
	_, err := q.db.ExecContext(ctx, addMember, arg.CompanyID, arg.UserID, string(arg.Role), arg.CreatedAt)
	return err
}

const getMemberRole = `
SELECT role FROM company_members WHERE company_id = ? AND user_id = ?
`

func (q *Queries) GetMemberRole(ctx context.Context, companyID, userID string) (core.Role, error) {
	var role string
	err := q.db.QueryRowContext(ctx, getMemberRole, companyID, userID).Scan(&role)
	return core.Role(role), err
}

const getCompanyForUser = `
SELECT c.id, c.name, c.created_at, m.role
FROM companies c
JOIN company_members m ON m.company_id = c.id
WHERE c.id = ? AND m.user_id = ?
`

func (q *Queries) GetCompanyForUser(ctx context.Context, companyID, userID string) (core.Company, error) {
	return scanCompany(q.db.QueryRowContext(ctx, getCompanyForUser, companyID, userID))
}

const listCompaniesForUser = `
SELECT c.id, c.name, c.created_at, m.role
FROM companies c
JOIN company_members m ON m.company_id = c.id
WHERE m.user_id = ?
ORDER BY c.name, c.id
`

func (q *Queries) ListCompaniesForUser(ctx context.Context, userID string) ([]core.Company, error) {
	rows, err := q.db.QueryContext(ctx, listCompaniesForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func scanCompany(row rowScanner) (core.Company, error) {
	var c core.Company
	var createdAt, role string
	if err := row.Scan(&c.ID, &c.Name, &createdAt, &role); err != nil {
		return c, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return c, err
	}
	c.CreatedAt = t
	c.Role = core.Role(role)
	return c, nil
}

const createAccount = `
INSERT INTO bank_accounts (id, company_id, name, currency, created_at) VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, createAccount, a.ID, a.CompanyID, a.Name, a.Currency, formatTime(a.CreatedAt))
	return err
}

const getAccount = `
SELECT id, company_id, name, currency, created_at FROM bank_accounts WHERE company_id = ? AND id = ?
`

func (q *Queries) GetAccount(ctx context.Context, companyID, id string) (core.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx, getAccount, companyID, id))
}

const listAccounts = `
SELECT id, company_id, name, currency, created_at FROM bank_accounts WHERE company_id = ? ORDER BY name, id
`

func (q *Queries) ListAccounts(ctx context.Context, companyID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	var createdAt string
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Name, &a.Currency, &createdAt); err != nil {
		return a, err
	}
	t, err := parseTime(createdAt)
	a.CreatedAt = t
	return a, err
}
