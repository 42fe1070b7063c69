package storage

import (
	"context"
	"database/sql"

	"cashplan/internal/core"
)

const weeklyAggregates = `
SELECT week_index, direction, flow_id, counterparty, description, effective_date, amount_cents, item_count, flow_rank, is_other
FROM weekly_aggregates_v
WHERE scenario_id = ?
ORDER BY week_index, direction, flow_rank
`

func (q *Queries) WeeklyAggregates(ctx context.Context, scenarioID string) ([]core.WeeklyAggregateRow, error) {
	rows, err := q.db.QueryContext(ctx, weeklyAggregates, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.WeeklyAggregateRow
	for rows.Next() {
		var r core.WeeklyAggregateRow
		var direction string
		var flowID, counterparty, description, date sql.NullString
		var isOther int
		if err := rows.Scan(&r.WeekIndex, &direction, &flowID, &counterparty, &description, &date,
			&r.Amount.Cents, &r.ItemCount, &r.Rank, &isOther); err != nil {
			return nil, err
		}
		r.Direction = core.Direction(direction)
		r.FlowID = flowID.String
		r.Counterparty = counterparty.String
		r.Description = description.String
		r.IsOther = isOther == 1
		if date.Valid {
			if r.Date, err = parseDate(date.String); err != nil {
				return nil, err
			}
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const runningBalance = `
SELECT balance_date, initial_cents, inflow_cents, outflow_cents, net_cents, balance_cents
FROM running_balance_v
WHERE scenario_id = ?
ORDER BY balance_date
`

func (q *Queries) RunningBalance(ctx context.Context, scenarioID string) ([]core.BalancePoint, error) {
	rows, err := q.db.QueryContext(ctx, runningBalance, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.BalancePoint
	for rows.Next() {
		var p core.BalancePoint
		var date string
		if err := rows.Scan(&date, &p.Initial.Cents, &p.Inflow.Cents, &p.Outflow.Cents, &p.Net.Cents, &p.Balance.Cents); err != nil {
			return nil, err
		}
		if p.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const scenarioFlows = `
SELECT flow_id, direction, currency, counterparty, description, category,
       original_date, effective_date, original_amount_cents, effective_amount_cents, overridden, week_index
FROM scenario_export_v
WHERE scenario_id = ?
ORDER BY week_index, effective_date, flow_id
LIMIT ? OFFSET ?
`

func (q *Queries) ScenarioFlows(ctx context.Context, scenarioID string, limit, offset int) ([]core.ScenarioFlow, error) {
	rows, err := q.db.QueryContext(ctx, scenarioFlows, scenarioID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.ScenarioFlow
	for rows.Next() {
		var f core.ScenarioFlow
		var direction, originalDate, effectiveDate string
		var overridden int
		if err := rows.Scan(&f.FlowID, &direction, &f.Currency, &f.Counterparty, &f.Description, &f.Category,
			&originalDate, &effectiveDate, &f.OriginalAmount.Cents, &f.EffectiveAmount.Cents,
			&overridden, &f.WeekIndex); err != nil {
			return nil, err
		}
		f.Direction = core.Direction(direction)
		f.Overridden = overridden == 1
		if f.OriginalDate, err = parseDate(originalDate); err != nil {
			return nil, err
		}
		if f.EffectiveDate, err = parseDate(effectiveDate); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

const countScenarioFlows = `
SELECT COUNT(*) FROM scenario_export_v WHERE scenario_id = ?
`

func (q *Queries) CountScenarioFlows(ctx context.Context, scenarioID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countScenarioFlows, scenarioID).Scan(&n)
	return n, err
}
