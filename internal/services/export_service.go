package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cashplan/internal/core"
	"cashplan/internal/export"
	"cashplan/internal/storage"

	"golang.org/x/sync/errgroup"
)

// DefaultExportPageSize is the page length used to read the export view.
const DefaultExportPageSize = 1000

const maxLoadAttempts = 3

// ExportService assembles scenario workbooks.
type ExportService struct {
	storage     *storage.SQLiteRepository
	projections *ProjectionService
	pageSize    int
	now         Clock
}

func NewExportService(storage *storage.SQLiteRepository, projections *ProjectionService, pageSize int) *ExportService {
	if pageSize <= 0 {
		pageSize = DefaultExportPageSize
	}
	return &ExportService{storage: storage, projections: projections, pageSize: pageSize, now: systemClock}
}

// Export writes the workbook of a scenario to w and returns its file name.
func (e *ExportService) Export(ctx context.Context, userID, companyID, scenarioID string, w io.Writer) (string, error) {
	if _, err := requireMember(ctx, e.storage, companyID, userID); err != nil {
		return "", err
	}
	data, err := e.Load(ctx, companyID, scenarioID)
	if err != nil {
		return "", err
	}
	if err := export.Write(w, data); err != nil {
		return "", fmt.Errorf("render workbook: %w", err)
	}
	return export.FileName(data.Scenario.Name, e.now()), nil
}

// Load reads the three data sets of a scenario concurrently. It performs no
// membership check and is shared with the snapshot worker. The read is
// repeated when the scenario is invalidated while it runs, so all data sets
// describe one scenario state.
func (e *ExportService) Load(ctx context.Context, companyID, scenarioID string) (export.Data, error) {
	for attempt := 1; ; attempt++ {
		gen := e.projections.generation(scenarioID)
		data, err := e.load(ctx, companyID, scenarioID)
		if err != nil {
			return export.Data{}, err
		}
		if e.projections.generation(scenarioID) == gen {
			return data, nil
		}
		if attempt == maxLoadAttempts {
			return export.Data{}, core.Conflict("scenario changed while it was being exported; retry")
		}
		slog.DebugContext(ctx, "Scenario changed during export load, reloading", "scenario_id", scenarioID, "attempt", attempt)
	}
}

func (e *ExportService) load(ctx context.Context, companyID, scenarioID string) (export.Data, error) {
	sc, err := e.storage.GetScenario(ctx, companyID, scenarioID)
	if err != nil {
		return export.Data{}, err
	}

	data := export.Data{Scenario: sc}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		weeks, err := e.projections.weeks(gctx, sc)
		data.Weeks = weeks
		return err
	})
	g.Go(func() error {
		points, err := e.projections.balance(gctx, sc)
		data.Balance = points
		return err
	})
	g.Go(func() error {
		flows, err := e.loadFlows(gctx, sc.ID)
		data.Flows = flows
		return err
	})
	if err := g.Wait(); err != nil {
		return export.Data{}, err
	}

	slog.InfoContext(ctx, "Scenario export data loaded",
		"scenario_id", sc.ID,
		"weeks", len(data.Weeks),
		"flows", len(data.Flows),
		"balance_points", len(data.Balance),
		"duration", time.Since(start))
	return data, nil
}

// loadFlows reads the export view page by page until a short page.
func (e *ExportService) loadFlows(ctx context.Context, scenarioID string) ([]core.ScenarioFlow, error) {
	var all []core.ScenarioFlow
	for offset := 0; ; offset += e.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := e.storage.ScenarioFlows(ctx, scenarioID, e.pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < e.pageSize {
			return all, nil
		}
	}
}
