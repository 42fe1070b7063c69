package http

import (
	"time"

	"cashplan/internal/core"
	"cashplan/internal/csvimport"
	"cashplan/internal/services"
)

// JSON views of domain values. Money is sent as integer cents plus a
// decimal string in major units.

type pageJSON[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

func presentPage[S, T any](res core.PageResult[S], f func(S) T) pageJSON[T] {
	items := make([]T, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, f(it))
	}
	return pageJSON[T]{Items: items, Page: res.Page.Number, PageSize: res.Page.Size, Total: res.Total}
}

func presentList[S, T any](in []S, f func(S) T) []T {
	out := make([]T, 0, len(in))
	for _, it := range in {
		out = append(out, f(it))
	}
	return out
}

type companyJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      core.Role `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func presentCompany(c core.Company) companyJSON {
	return companyJSON{ID: c.ID, Name: c.Name, Role: c.Role, CreatedAt: c.CreatedAt}
}

type accountJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

func presentAccount(a core.Account) accountJSON {
	return accountJSON{ID: a.ID, Name: a.Name, Currency: a.Currency, CreatedAt: a.CreatedAt}
}

type importJSON struct {
	ID           string            `json:"id"`
	AccountID    string            `json:"account_id,omitempty"`
	FileName     string            `json:"file_name"`
	Status       core.ImportStatus `json:"status"`
	TotalRows    int               `json:"total_rows"`
	ValidRows    int               `json:"valid_rows"`
	InvalidRows  int               `json:"invalid_rows"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

func presentImport(i core.Import) importJSON {
	return importJSON{
		ID: i.ID, AccountID: i.AccountID, FileName: i.FileName, Status: i.Status,
		TotalRows: i.TotalRows, ValidRows: i.ValidRows, InvalidRows: i.InvalidRows,
		ErrorMessage: i.ErrorMessage, CreatedBy: i.CreatedBy, CreatedAt: i.CreatedAt, CompletedAt: i.CompletedAt,
	}
}

type rowErrorJSON struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func presentRowError(e core.ImportRowError) rowErrorJSON {
	return rowErrorJSON{Row: e.Row, Field: e.Field, Message: e.Message}
}

type importDetailJSON struct {
	importJSON
	Errors []rowErrorJSON `json:"errors"`
}

func presentImportDetail(d services.ImportDetail) importDetailJSON {
	return importDetailJSON{importJSON: presentImport(d.Import), Errors: presentList(d.Errors, presentRowError)}
}

type transactionJSON struct {
	ID           string         `json:"id"`
	ImportID     string         `json:"import_id"`
	Direction    core.Direction `json:"direction"`
	AmountCents  int64          `json:"amount_cents"`
	Amount       string         `json:"amount"`
	Currency     string         `json:"currency"`
	DueDate      core.Date      `json:"due_date"`
	Counterparty string         `json:"counterparty,omitempty"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
}

func presentTransaction(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID: t.ID, ImportID: t.ImportID, Direction: t.Direction,
		AmountCents: t.Amount.Cents, Amount: t.Amount.Major(), Currency: t.Currency,
		DueDate: t.DueDate, Counterparty: t.Counterparty, Description: t.Description, Category: t.Category,
	}
}

type previewRowJSON struct {
	Line         int            `json:"line"`
	Direction    core.Direction `json:"direction"`
	AmountCents  int64          `json:"amount_cents"`
	Amount       string         `json:"amount"`
	Currency     string         `json:"currency"`
	DueDate      core.Date      `json:"due_date"`
	Counterparty string         `json:"counterparty,omitempty"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
}

type previewJSON struct {
	Headers     []string         `json:"headers"`
	Delimiter   string           `json:"delimiter"`
	TotalRows   int              `json:"total_rows"`
	InvalidRows int              `json:"invalid_rows"`
	Rows        []previewRowJSON `json:"rows"`
	Errors      []rowErrorJSON   `json:"errors"`
}

func presentPreview(res csvimport.Result) previewJSON {
	return previewJSON{
		Headers:     res.Headers,
		Delimiter:   string(res.Delimiter),
		TotalRows:   res.TotalRows,
		InvalidRows: res.InvalidRows,
		Rows: presentList(res.Rows, func(r csvimport.Row) previewRowJSON {
			return previewRowJSON{
				Line: r.Line, Direction: r.Direction, AmountCents: r.Amount.Cents, Amount: r.Amount.Major(),
				Currency: r.Currency, DueDate: r.DueDate, Counterparty: r.Counterparty,
				Description: r.Description, Category: r.Category,
			}
		}),
		Errors: presentList(res.Errors, presentRowError),
	}
}

type scenarioJSON struct {
	ID             string              `json:"id"`
	ImportID       string              `json:"import_id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Status         core.ScenarioStatus `json:"status"`
	StartDate      core.Date           `json:"start_date"`
	EndDate        core.Date           `json:"end_date"`
	BaseScenarioID string              `json:"base_scenario_id,omitempty"`
	CreatedBy      string              `json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	LockedAt       *time.Time          `json:"locked_at,omitempty"`
}

func presentScenario(s core.Scenario) scenarioJSON {
	return scenarioJSON{
		ID: s.ID, ImportID: s.ImportID, Name: s.Name, Description: s.Description, Status: s.Status,
		StartDate: s.StartDate, EndDate: s.EndDate, BaseScenarioID: s.BaseScenarioID,
		CreatedBy: s.CreatedBy, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt, LockedAt: s.LockedAt,
	}
}

type overrideJSON struct {
	ID                  string     `json:"id"`
	FlowID              string     `json:"flow_id"`
	OriginalDate        core.Date  `json:"original_date"`
	OriginalAmountCents int64      `json:"original_amount_cents"`
	OriginalAmount      string     `json:"original_amount"`
	NewDate             *core.Date `json:"new_date,omitempty"`
	NewAmountCents      *int64     `json:"new_amount_cents,omitempty"`
	NewAmount           *string    `json:"new_amount,omitempty"`
	Note                string     `json:"note,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func presentOverride(o core.Override) overrideJSON {
	out := overrideJSON{
		ID: o.ID, FlowID: o.FlowID, OriginalDate: o.OriginalDate,
		OriginalAmountCents: o.OriginalAmount.Cents, OriginalAmount: o.OriginalAmount.Major(),
		NewDate: o.NewDate, Note: o.Note, UpdatedAt: o.UpdatedAt,
	}
	if o.NewAmount != nil {
		cents, major := o.NewAmount.Cents, o.NewAmount.Major()
		out.NewAmountCents, out.NewAmount = &cents, &major
	}
	return out
}

type flowItemJSON struct {
	FlowID       string    `json:"flow_id"`
	Counterparty string    `json:"counterparty,omitempty"`
	Description  string    `json:"description,omitempty"`
	Date         core.Date `json:"date"`
	AmountCents  int64     `json:"amount_cents"`
	Amount       string    `json:"amount"`
}

type bucketJSON struct {
	Top        []flowItemJSON `json:"top"`
	OtherCents int64          `json:"other_cents"`
	Other      string         `json:"other"`
	OtherCount int            `json:"other_count"`
	TotalCents int64          `json:"total_cents"`
	Total      string         `json:"total"`
	Count      int            `json:"count"`
}

func presentBucket(b core.Bucket) bucketJSON {
	return bucketJSON{
		Top: presentList(b.Top, func(it core.FlowItem) flowItemJSON {
			return flowItemJSON{
				FlowID: it.FlowID, Counterparty: it.Counterparty, Description: it.Description,
				Date: it.Date, AmountCents: it.Amount.Cents, Amount: it.Amount.Major(),
			}
		}),
		OtherCents: b.Other.Cents, Other: b.Other.Major(), OtherCount: b.OtherCount,
		TotalCents: b.Total.Cents, Total: b.Total.Major(), Count: b.Count,
	}
}

type weekJSON struct {
	Index     int        `json:"index"`
	Label     string     `json:"label"`
	StartDate core.Date  `json:"start_date"`
	Initial   bucketJSON `json:"initial"`
	Inflow    bucketJSON `json:"inflow"`
	Outflow   bucketJSON `json:"outflow"`
	NetCents  int64      `json:"net_cents"`
	Net       string     `json:"net"`
}

type weeklySummaryJSON struct {
	ScenarioID string     `json:"scenario_id"`
	StartDate  core.Date  `json:"start_date"`
	EndDate    core.Date  `json:"end_date"`
	Weeks      []weekJSON `json:"weeks"`
}

func presentWeeklySummary(ws services.WeeklySummary) weeklySummaryJSON {
	return weeklySummaryJSON{
		ScenarioID: ws.Scenario.ID,
		StartDate:  ws.Scenario.StartDate,
		EndDate:    ws.Scenario.EndDate,
		Weeks: presentList(ws.Weeks, func(w core.WeekSummary) weekJSON {
			return weekJSON{
				Index: w.Index, Label: w.Label, StartDate: w.StartDate,
				Initial: presentBucket(w.Initial), Inflow: presentBucket(w.Inflow), Outflow: presentBucket(w.Outflow),
				NetCents: w.Net.Cents, Net: w.Net.Major(),
			}
		}),
	}
}

type balancePointJSON struct {
	Date         core.Date `json:"date"`
	InitialCents int64     `json:"initial_cents"`
	InflowCents  int64     `json:"inflow_cents"`
	OutflowCents int64     `json:"outflow_cents"`
	NetCents     int64     `json:"net_cents"`
	BalanceCents int64     `json:"balance_cents"`
	Balance      string    `json:"balance"`
}

func presentBalancePoint(p core.BalancePoint) balancePointJSON {
	return balancePointJSON{
		Date: p.Date, InitialCents: p.Initial.Cents, InflowCents: p.Inflow.Cents,
		OutflowCents: p.Outflow.Cents, NetCents: p.Net.Cents,
		BalanceCents: p.Balance.Cents, Balance: p.Balance.Major(),
	}
}

type scenarioFlowJSON struct {
	FlowID               string         `json:"flow_id"`
	Direction            core.Direction `json:"direction"`
	Currency             string         `json:"currency"`
	Counterparty         string         `json:"counterparty,omitempty"`
	Description          string         `json:"description,omitempty"`
	Category             string         `json:"category,omitempty"`
	OriginalDate         core.Date      `json:"original_date"`
	EffectiveDate        core.Date      `json:"effective_date"`
	OriginalAmountCents  int64          `json:"original_amount_cents"`
	EffectiveAmountCents int64          `json:"effective_amount_cents"`
	EffectiveAmount      string         `json:"effective_amount"`
	Overridden           bool           `json:"overridden"`
	Week                 string         `json:"week"`
}

func presentScenarioFlow(f core.ScenarioFlow) scenarioFlowJSON {
	return scenarioFlowJSON{
		FlowID: f.FlowID, Direction: f.Direction, Currency: f.Currency,
		Counterparty: f.Counterparty, Description: f.Description, Category: f.Category,
		OriginalDate: f.OriginalDate, EffectiveDate: f.EffectiveDate,
		OriginalAmountCents: f.OriginalAmount.Cents, EffectiveAmountCents: f.EffectiveAmount.Cents,
		EffectiveAmount: f.EffectiveAmount.Major(), Overridden: f.Overridden, Week: core.WeekLabel(f.WeekIndex),
	}
}

type auditEventJSON struct {
	ID         int64     `json:"id"`
	EventType  string    `json:"event_type"`
	ScenarioID string    `json:"scenario_id,omitempty"`
	ImportID   string    `json:"import_id,omitempty"`
	Actor      string    `json:"actor"`
	Payload    rawJSON   `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// rawJSON embeds a stored JSON document as is.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("{}"), nil
	}
	return []byte(r), nil
}

func presentAuditEvent(e core.AuditEvent) auditEventJSON {
	return auditEventJSON{
		ID: e.ID, EventType: e.EventType, ScenarioID: e.ScenarioID, ImportID: e.ImportID,
		Actor: e.Actor, Payload: rawJSON(e.Payload), OccurredAt: e.OccurredAt, RecordedAt: e.RecordedAt,
	}
}
