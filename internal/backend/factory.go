package backend

import (
	"context"
	"fmt"

	"cashplan/internal/log"
	"cashplan/internal/sheets"
	gsheet "cashplan/internal/sheets/google"
	"cashplan/internal/sheets/memory"
)

// Factory builds the snapshot writer chosen by configuration.
type Factory struct {
	logger *log.Logger
	// newSheets is replaced in tests to avoid reaching Google.
	newSheets func(ctx context.Context, cfg gsheet.Config) (sheets.SnapshotWriter, error)
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentSheets})
	}
	return &Factory{
		logger: logger,
		newSheets: func(ctx context.Context, cfg gsheet.Config) (sheets.SnapshotWriter, error) {
			return gsheet.New(ctx, cfg)
		},
	}
}

// SnapshotWriter returns the configured writer. The none backend returns a
// nil interface, which disables snapshots in the worker.
func (f *Factory) SnapshotWriter(ctx context.Context, cfg Config) (sheets.SnapshotWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SheetsBackend:
		w, err := f.newSheets(ctx, cfg.Sheets)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets snapshot backend", "spreadsheet_id", cfg.Sheets.SpreadsheetID)
		return w, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory snapshot backend; snapshots are kept in process only")
		return memory.New(), nil
	default:
		f.logger.Info("Snapshot publishing disabled")
		return nil, nil
	}
}
