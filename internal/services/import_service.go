package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cashplan/internal/core"
	"cashplan/internal/csvimport"
	"cashplan/internal/storage"

	"github.com/google/uuid"
)

// DefaultPreviewRows is how many parsed rows a preview returns.
const DefaultPreviewRows = 20

// ImportService turns uploaded CSV files into immutable transactions.
type ImportService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
	now     Clock
}

func NewImportService(storage *storage.SQLiteRepository, events EventPublisher) *ImportService {
	return &ImportService{storage: storage, events: events, now: systemClock}
}

type ImportInput struct {
	FileName  string
	AccountID string
	Mapping   csvimport.Mapping
	File      io.Reader
}

type ImportDetail struct {
	Import core.Import
	Errors []core.ImportRowError
}

// Import parses and stores a file synchronously. The import row moves
// pending -> processing -> completed|failed; it completes when at least one
// row is valid. Invalid rows are skipped and recorded as row errors.
func (s *ImportService) Import(ctx context.Context, userID, companyID string, in ImportInput) (core.Import, error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return core.Import{}, err
	}
	in.FileName = strings.TrimSpace(in.FileName)
	if in.FileName == "" {
		return core.Import{}, core.Validation("invalid import", core.FieldError{Field: "file", Message: "file is required"})
	}
	if err := in.Mapping.Validate(); err != nil {
		return core.Import{}, err
	}
	if in.AccountID != "" {
		if _, err := s.storage.GetAccount(ctx, companyID, in.AccountID); err != nil {
			return core.Import{}, err
		}
	}

	imp := core.Import{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		AccountID: in.AccountID,
		FileName:  in.FileName,
		Status:    core.ImportPending,
		CreatedBy: userID,
		CreatedAt: s.now(),
	}
	if err := s.storage.CreateImport(ctx, imp); err != nil {
		return core.Import{}, fmt.Errorf("create import: %w", err)
	}
	if err := s.storage.SetImportStatus(ctx, imp.ID, core.ImportProcessing); err != nil {
		return core.Import{}, fmt.Errorf("start import: %w", err)
	}
	imp.Status = core.ImportProcessing

	res, parseErr := csvimport.Parse(in.File, in.Mapping)
	if parseErr != nil {
		imp = s.finishFailed(ctx, imp, res, parseErr.Error())
		return imp, parseErr
	}

	txs := make([]core.Transaction, 0, len(res.Rows))
	for _, r := range res.Rows {
		txs = append(txs, core.Transaction{
			ID:           uuid.NewString(),
			CompanyID:    companyID,
			ImportID:     imp.ID,
			Direction:    r.Direction,
			Amount:       r.Amount,
			Currency:     r.Currency,
			DueDate:      r.DueDate,
			Counterparty: r.Counterparty,
			Description:  r.Description,
			Category:     r.Category,
			CreatedAt:    imp.CreatedAt,
		})
	}

	completed := s.now()
	imp.TotalRows, imp.ValidRows, imp.InvalidRows = res.TotalRows, len(txs), res.InvalidRows
	imp.CompletedAt = &completed
	imp.Status = core.ImportCompleted
	if len(txs) == 0 {
		imp.Status = core.ImportFailed
		imp.ErrorMessage = "file contains no valid rows"
	}

	if err := s.storage.FinishImport(ctx, imp, txs, res.Errors); err != nil {
		imp.ValidRows = 0
		s.finishFailed(ctx, imp, res, "import rows could not be stored")
		return core.Import{}, fmt.Errorf("store import: %w", err)
	}
	s.emitResult(ctx, imp)
	return imp, nil
}

func (s *ImportService) finishFailed(ctx context.Context, imp core.Import, res csvimport.Result, msg string) core.Import {
	completed := s.now()
	imp.Status = core.ImportFailed
	imp.ErrorMessage = msg
	imp.TotalRows, imp.InvalidRows = res.TotalRows, res.InvalidRows
	imp.CompletedAt = &completed
	// Runs even when the request was cancelled.
	if err := s.storage.FinishImport(context.WithoutCancel(ctx), imp, nil, nil); err != nil {
		slog.ErrorContext(ctx, "Failed to mark import as failed", "import_id", imp.ID, "error", err)
	}
	s.emitResult(ctx, imp)
	return imp
}

func (s *ImportService) emitResult(ctx context.Context, imp core.Import) {
	eventType := core.EventImportCompleted
	if imp.Status == core.ImportFailed {
		eventType = core.EventImportFailed
	}
	emit(ctx, s.events, core.Event{
		Type:       eventType,
		CompanyID:  imp.CompanyID,
		ImportID:   imp.ID,
		Actor:      imp.CreatedBy,
		OccurredAt: s.now(),
		Data: map[string]any{
			"file_name":    imp.FileName,
			"total_rows":   imp.TotalRows,
			"valid_rows":   imp.ValidRows,
			"invalid_rows": imp.InvalidRows,
		},
	})
}

// Preview parses a file without storing anything.
func (s *ImportService) Preview(ctx context.Context, userID, companyID string, m csvimport.Mapping, file io.Reader, limit int) (csvimport.Result, error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return csvimport.Result{}, err
	}
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	return csvimport.Preview(file, m, limit)
}

func (s *ImportService) GetImport(ctx context.Context, userID, companyID, importID string) (ImportDetail, error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return ImportDetail{}, err
	}
	imp, err := s.storage.GetImport(ctx, companyID, importID)
	if err != nil {
		return ImportDetail{}, err
	}
	rowErrs, err := s.storage.ListImportErrors(ctx, importID)
	if err != nil {
		return ImportDetail{}, err
	}
	return ImportDetail{Import: imp, Errors: rowErrs}, nil
}

func (s *ImportService) ListImports(ctx context.Context, userID, companyID string, page core.Page) (core.PageResult[core.Import], error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return core.PageResult[core.Import]{}, err
	}
	return s.storage.ListImports(ctx, companyID, page)
}

func (s *ImportService) ListTransactions(ctx context.Context, userID, companyID, importID string, page core.Page) (core.PageResult[core.Transaction], error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return core.PageResult[core.Transaction]{}, err
	}
	if _, err := s.storage.GetImport(ctx, companyID, importID); err != nil {
		return core.PageResult[core.Transaction]{}, err
	}
	return s.storage.ListTransactions(ctx, importID, page)
}
