package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cashplan/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// dsn enables foreign keys, WAL and a busy timeout on every pooled connection.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(4)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// inTx runs fn inside a transaction. Only q may be used within fn.
func (r *SQLiteRepository) inTx(ctx context.Context, op string, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Database(op, err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return core.Database(op, err)
	}
	return nil
}

// mapErr turns driver errors into classified application errors.
func mapErr(op, resource, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return core.NotFound(resource, id)
	case isUniqueViolation(err):
		return &core.Error{Kind: core.KindConflict, Message: resource + " already exists", Err: err}
	case isForeignKeyViolation(err):
		return &core.Error{Kind: core.KindValidation, Message: "referenced record does not exist", Err: err}
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	return core.Database(op, err)
}

// Companies

func (r *SQLiteRepository) CreateCompany(ctx context.Context, c core.Company, ownerID string) error {
	return r.inTx(ctx, "create company", func(q *Queries) error {
		if err := q.CreateCompany(ctx, c); err != nil {
			return mapErr("create company", "company", c.ID, err)
		}
		err := q.AddMember(ctx, AddMemberParams{
			CompanyID: c.ID,
			UserID:    ownerID,
			Role:      core.RoleOwner,
			CreatedAt: formatTime(c.CreatedAt),
		})
		return mapErr("add owner", "member", ownerID, err)
	})
}

func (r *SQLiteRepository) GetCompanyForUser(ctx context.Context, companyID, userID string) (core.Company, error) {
	c, err := r.queries.GetCompanyForUser(ctx, companyID, userID)
	return c, mapErr("get company", "company", companyID, err)
}

func (r *SQLiteRepository) ListCompaniesForUser(ctx context.Context, userID string) ([]core.Company, error) {
	items, err := r.queries.ListCompaniesForUser(ctx, userID)
	return items, mapErr("list companies", "company", "", err)
}

// MemberRole returns NotFound when the user does not belong to the company.
func (r *SQLiteRepository) MemberRole(ctx context.Context, companyID, userID string) (core.Role, error) {
	role, err := r.queries.GetMemberRole(ctx, companyID, userID)
	return role, mapErr("get member role", "membership", userID, err)
}

func (r *SQLiteRepository) AddMember(ctx context.Context, companyID, userID string, role core.Role, at time.Time) error {
	err := r.queries.AddMember(ctx, AddMemberParams{
		CompanyID: companyID,
		UserID:    userID,
		Role:      role,
		CreatedAt: formatTime(at),
	})
	return mapErr("add member", "member", userID, err)
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	return mapErr("create account", "account", a.Name, r.queries.CreateAccount(ctx, a))
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, companyID, id string) (core.Account, error) {
	a, err := r.queries.GetAccount(ctx, companyID, id)
	return a, mapErr("get account", "account", id, err)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, companyID string) ([]core.Account, error) {
	items, err := r.queries.ListAccounts(ctx, companyID)
	return items, mapErr("list accounts", "account", "", err)
}

// Imports

func (r *SQLiteRepository) CreateImport(ctx context.Context, imp core.Import) error {
	return mapErr("create import", "import", imp.ID, r.queries.CreateImport(ctx, imp))
}

func (r *SQLiteRepository) SetImportStatus(ctx context.Context, id string, status core.ImportStatus) error {
	n, err := r.queries.SetImportStatus(ctx, id, status)
	if err != nil {
		return mapErr("set import status", "import", id, err)
	}
	if n == 0 {
		return core.NotFound("import", id)
	}
	return nil
}

// FinishImport stores the parsed rows and row errors and records the final
// status and counts, all in one transaction.
func (r *SQLiteRepository) FinishImport(ctx context.Context, imp core.Import, txs []core.Transaction, rowErrs []core.ImportRowError) error {
	err := r.inTx(ctx, "finish import", func(q *Queries) error {
		for _, t := range txs {
			if err := q.InsertTransaction(ctx, t); err != nil {
				return mapErr("insert transaction", "transaction", t.ID, err)
			}
		}
		for _, e := range rowErrs {
			if err := q.InsertImportError(ctx, imp.ID, e); err != nil {
				return mapErr("insert import error", "import error", imp.ID, err)
			}
		}
		return mapErr("finish import", "import", imp.ID, q.FinishImport(ctx, imp))
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Import stored",
		"import_id", imp.ID,
		"status", imp.Status,
		"valid_rows", imp.ValidRows,
		"invalid_rows", imp.InvalidRows)
	return nil
}

func (r *SQLiteRepository) GetImport(ctx context.Context, companyID, id string) (core.Import, error) {
	imp, err := r.queries.GetImport(ctx, companyID, id)
	return imp, mapErr("get import", "import", id, err)
}

func (r *SQLiteRepository) ListImports(ctx context.Context, companyID string, page core.Page) (core.PageResult[core.Import], error) {
	res := core.PageResult[core.Import]{Page: page}
	items, err := r.queries.ListImports(ctx, companyID, page.Size, page.Offset())
	if err != nil {
		return res, mapErr("list imports", "import", "", err)
	}
	total, err := r.queries.CountImports(ctx, companyID)
	if err != nil {
		return res, mapErr("count imports", "import", "", err)
	}
	res.Items, res.Total = items, total
	return res, nil
}

func (r *SQLiteRepository) ListImportErrors(ctx context.Context, importID string) ([]core.ImportRowError, error) {
	items, err := r.queries.ListImportErrors(ctx, importID)
	return items, mapErr("list import errors", "import", importID, err)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, importID, id string) (core.Transaction, error) {
	t, err := r.queries.GetTransaction(ctx, importID, id)
	return t, mapErr("get transaction", "transaction", id, err)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, importID string, page core.Page) (core.PageResult[core.Transaction], error) {
	res := core.PageResult[core.Transaction]{Page: page}
	items, err := r.queries.ListTransactions(ctx, importID, page.Size, page.Offset())
	if err != nil {
		return res, mapErr("list transactions", "transaction", "", err)
	}
	total, err := r.queries.CountTransactions(ctx, importID)
	if err != nil {
		return res, mapErr("count transactions", "transaction", "", err)
	}
	res.Items, res.Total = items, total
	return res, nil
}

// Scenarios

func (r *SQLiteRepository) CreateScenario(ctx context.Context, s core.Scenario) error {
	err := r.queries.CreateScenario(ctx, s)
	if isUniqueViolation(err) {
		return core.Conflict(fmt.Sprintf("scenario name %q is already in use", s.Name))
	}
	return mapErr("create scenario", "scenario", s.ID, err)
}

func (r *SQLiteRepository) GetScenario(ctx context.Context, companyID, id string) (core.Scenario, error) {
	s, err := r.queries.GetScenario(ctx, companyID, id)
	return s, mapErr("get scenario", "scenario", id, err)
}

func (r *SQLiteRepository) ListScenarios(ctx context.Context, companyID string, status core.ScenarioStatus, page core.Page) (core.PageResult[core.Scenario], error) {
	res := core.PageResult[core.Scenario]{Page: page}
	items, err := r.queries.ListScenarios(ctx, companyID, status, page.Size, page.Offset())
	if err != nil {
		return res, mapErr("list scenarios", "scenario", "", err)
	}
	total, err := r.queries.CountScenarios(ctx, companyID, status)
	if err != nil {
		return res, mapErr("count scenarios", "scenario", "", err)
	}
	res.Items, res.Total = items, total
	return res, nil
}

func (r *SQLiteRepository) ScenarioNameTaken(ctx context.Context, companyID, name, excludeID string) (bool, error) {
	taken, err := r.queries.ScenarioNameTaken(ctx, companyID, name, excludeID)
	return taken, mapErr("check scenario name", "scenario", name, err)
}

// UpdateScenario only touches Draft scenarios; a Locked one yields Conflict.
func (r *SQLiteRepository) UpdateScenario(ctx context.Context, s core.Scenario) error {
	n, err := r.queries.UpdateScenario(ctx, s)
	if isUniqueViolation(err) {
		return core.Conflict(fmt.Sprintf("scenario name %q is already in use", s.Name))
	}
	if err != nil {
		return mapErr("update scenario", "scenario", s.ID, err)
	}
	if n == 0 {
		return r.draftConflict(ctx, s.CompanyID, s.ID)
	}
	return nil
}

func (r *SQLiteRepository) LockScenario(ctx context.Context, companyID, id string, at time.Time) error {
	n, err := r.queries.LockScenario(ctx, companyID, id, at)
	if err != nil {
		return mapErr("lock scenario", "scenario", id, err)
	}
	if n == 0 {
		return r.draftConflict(ctx, companyID, id)
	}
	return nil
}

// draftConflict explains why a Draft-only statement matched no row.
func (r *SQLiteRepository) draftConflict(ctx context.Context, companyID, id string) error {
	s, err := r.GetScenario(ctx, companyID, id)
	if err != nil {
		return err
	}
	if err := s.RequireDraft(); err != nil {
		return err
	}
	return core.Conflict("scenario was modified concurrently")
}

// DuplicateScenario inserts dup and copies every override of its base
// scenario, original values included.
func (r *SQLiteRepository) DuplicateScenario(ctx context.Context, dup core.Scenario) error {
	return r.inTx(ctx, "duplicate scenario", func(q *Queries) error {
		overrides, err := q.ListOverrides(ctx, dup.BaseScenarioID)
		if err != nil {
			return mapErr("list overrides", "scenario", dup.BaseScenarioID, err)
		}
		if err := q.CreateScenario(ctx, dup); err != nil {
			if isUniqueViolation(err) {
				return core.Conflict(fmt.Sprintf("scenario name %q is already in use", dup.Name))
			}
			return mapErr("create scenario", "scenario", dup.ID, err)
		}
		for _, o := range overrides {
			o.ID = uuid.NewString()
			o.ScenarioID = dup.ID
			o.CreatedAt = dup.CreatedAt
			o.UpdatedAt = dup.CreatedAt
			if err := q.UpsertOverride(ctx, o); err != nil {
				return mapErr("copy override", "override", o.FlowID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) CountDependents(ctx context.Context, id string) (int, error) {
	n, err := r.queries.CountDependents(ctx, id)
	return n, mapErr("count dependents", "scenario", id, err)
}

// SoftDeleteScenario sets deleted_at unless live scenarios still use this
// one as their base.
func (r *SQLiteRepository) SoftDeleteScenario(ctx context.Context, companyID, id string, at time.Time) error {
	return r.inTx(ctx, "delete scenario", func(q *Queries) error {
		if _, err := q.GetScenario(ctx, companyID, id); err != nil {
			return mapErr("get scenario", "scenario", id, err)
		}
		dependents, err := q.CountDependents(ctx, id)
		if err != nil {
			return mapErr("count dependents", "scenario", id, err)
		}
		if dependents > 0 {
			return core.Conflict(fmt.Sprintf("scenario is the base of %d other scenario(s)", dependents))
		}
		n, err := q.SoftDeleteScenario(ctx, companyID, id, at)
		if err != nil {
			return mapErr("delete scenario", "scenario", id, err)
		}
		if n == 0 {
			return core.NotFound("scenario", id)
		}
		return nil
	})
}

// Overrides

func (r *SQLiteRepository) ListOverrides(ctx context.Context, scenarioID string) ([]core.Override, error) {
	items, err := r.queries.ListOverrides(ctx, scenarioID)
	return items, mapErr("list overrides", "override", "", err)
}

// UpsertOverride writes o while re-checking, in the same transaction, that
// the scenario is still Draft. It returns the stored row, whose originals
// come from the first write.
func (r *SQLiteRepository) UpsertOverride(ctx context.Context, companyID string, o core.Override) (core.Override, error) {
	var stored core.Override
	err := r.inTx(ctx, "upsert override", func(q *Queries) error {
		s, err := q.GetScenario(ctx, companyID, o.ScenarioID)
		if err != nil {
			return mapErr("get scenario", "scenario", o.ScenarioID, err)
		}
		if err := s.RequireDraft(); err != nil {
			return err
		}
		if err := q.UpsertOverride(ctx, o); err != nil {
			return mapErr("upsert override", "override", o.FlowID, err)
		}
		stored, err = q.GetOverride(ctx, o.ScenarioID, o.FlowID)
		return mapErr("get override", "override", o.FlowID, err)
	})
	return stored, err
}

func (r *SQLiteRepository) DeleteOverride(ctx context.Context, companyID, scenarioID, flowID string) error {
	return r.inTx(ctx, "delete override", func(q *Queries) error {
		s, err := q.GetScenario(ctx, companyID, scenarioID)
		if err != nil {
			return mapErr("get scenario", "scenario", scenarioID, err)
		}
		if err := s.RequireDraft(); err != nil {
			return err
		}
		n, err := q.DeleteOverride(ctx, scenarioID, flowID)
		if err != nil {
			return mapErr("delete override", "override", flowID, err)
		}
		if n == 0 {
			return core.NotFound("override", flowID)
		}
		return nil
	})
}

// Projections

func (r *SQLiteRepository) WeeklyAggregates(ctx context.Context, scenarioID string) ([]core.WeeklyAggregateRow, error) {
	items, err := r.queries.WeeklyAggregates(ctx, scenarioID)
	return items, mapErr("read weekly aggregates", "scenario", scenarioID, err)
}

func (r *SQLiteRepository) RunningBalance(ctx context.Context, scenarioID string) ([]core.BalancePoint, error) {
	items, err := r.queries.RunningBalance(ctx, scenarioID)
	return items, mapErr("read running balance", "scenario", scenarioID, err)
}

func (r *SQLiteRepository) ScenarioFlows(ctx context.Context, scenarioID string, limit, offset int) ([]core.ScenarioFlow, error) {
	items, err := r.queries.ScenarioFlows(ctx, scenarioID, limit, offset)
	return items, mapErr("read scenario flows", "scenario", scenarioID, err)
}

func (r *SQLiteRepository) CountScenarioFlows(ctx context.Context, scenarioID string) (int, error) {
	n, err := r.queries.CountScenarioFlows(ctx, scenarioID)
	return n, mapErr("count scenario flows", "scenario", scenarioID, err)
}

// Audit

// RecordAuditEvent stores e once per message id. It reports whether the
// event was new.
func (r *SQLiteRepository) RecordAuditEvent(ctx context.Context, e core.AuditEvent) (bool, error) {
	n, err := r.queries.InsertAuditEvent(ctx, e)
	if err != nil {
		return false, mapErr("record audit event", "audit event", e.MessageID, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ListAuditEvents(ctx context.Context, companyID string, page core.Page) (core.PageResult[core.AuditEvent], error) {
	res := core.PageResult[core.AuditEvent]{Page: page}
	items, err := r.queries.ListAuditEvents(ctx, companyID, page.Size, page.Offset())
	if err != nil {
		return res, mapErr("list audit events", "audit event", "", err)
	}
	total, err := r.queries.CountAuditEvents(ctx, companyID)
	if err != nil {
		return res, mapErr("count audit events", "audit event", "", err)
	}
	res.Items, res.Total = items, total
	return res, nil
}
