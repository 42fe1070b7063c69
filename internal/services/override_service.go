package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"cashplan/internal/core"
	"cashplan/internal/storage"

	"github.com/google/uuid"
)

// OverrideService edits a scenario's view of single transactions. The
// transactions themselves never change.
type OverrideService struct {
	storage     *storage.SQLiteRepository
	events      EventPublisher
	projections *ProjectionService
	now         Clock
}

func NewOverrideService(storage *storage.SQLiteRepository, events EventPublisher, projections *ProjectionService) *OverrideService {
	return &OverrideService{storage: storage, events: events, projections: projections, now: systemClock}
}

type OverrideInput struct {
	NewDate   *core.Date
	NewAmount *core.Money
	Note      string
}

func (s *OverrideService) draftScenario(ctx context.Context, userID, companyID, scenarioID string) (core.Scenario, error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return core.Scenario{}, err
	}
	sc, err := s.storage.GetScenario(ctx, companyID, scenarioID)
	if err != nil {
		return core.Scenario{}, err
	}
	return sc, sc.RequireDraft()
}

func (s *OverrideService) List(ctx context.Context, userID, companyID, scenarioID string) ([]core.Override, error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return nil, err
	}
	if _, err := s.storage.GetScenario(ctx, companyID, scenarioID); err != nil {
		return nil, err
	}
	return s.storage.ListOverrides(ctx, scenarioID)
}

// Upsert creates or replaces the override of flowID. The first write
// captures the transaction's date and amount as originals; later writes
// only change the new values.
func (s *OverrideService) Upsert(ctx context.Context, userID, companyID, scenarioID, flowID string, in OverrideInput) (core.Override, error) {
	sc, err := s.draftScenario(ctx, userID, companyID, scenarioID)
	if err != nil {
		return core.Override{}, err
	}
	tx, err := s.storage.GetTransaction(ctx, sc.ImportID, flowID)
	if err != nil {
		return core.Override{}, err
	}

	var fe core.FieldErrors
	if in.NewDate == nil && in.NewAmount == nil {
		fe.Add("new_date", "new_date or new_amount is required")
	}
	if in.NewAmount != nil && in.NewAmount.IsNegative() && tx.Direction != core.Initial {
		fe.Add("new_amount", fmt.Sprintf("amount of an %s flow must not be negative", strings.ToLower(string(tx.Direction))))
	}
	if in.NewDate != nil && in.NewDate.IsZero() {
		fe.Add("new_date", "new_date is not a valid date")
	}
	if utf8.RuneCountInString(in.Note) > core.MaxDescriptionLength {
		fe.Add("note", fmt.Sprintf("note must be at most %d characters", core.MaxDescriptionLength))
	}
	if err := fe.Err("invalid override"); err != nil {
		return core.Override{}, err
	}

	now := s.now()
	stored, err := s.storage.UpsertOverride(ctx, companyID, core.Override{
		ID:             uuid.NewString(),
		ScenarioID:     sc.ID,
		FlowID:         tx.ID,
		OriginalDate:   tx.DueDate,
		OriginalAmount: tx.Amount,
		NewDate:        in.NewDate,
		NewAmount:      in.NewAmount,
		Note:           in.Note,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return core.Override{}, err
	}

	s.projections.Invalidate(sc.ID)
	data := map[string]any{"flow_id": tx.ID}
	if stored.NewDate != nil {
		data["new_date"] = stored.NewDate.String()
	}
	if stored.NewAmount != nil {
		data["new_amount_cents"] = stored.NewAmount.Cents
	}
	emit(ctx, s.events, core.Event{
		Type:       core.EventOverrideUpserted,
		CompanyID:  companyID,
		ScenarioID: sc.ID,
		ImportID:   sc.ImportID,
		Actor:      userID,
		OccurredAt: now,
		Data:       data,
	})
	return stored, nil
}

// Delete reverts a flow to its original values in a Draft scenario.
func (s *OverrideService) Delete(ctx context.Context, userID, companyID, scenarioID, flowID string) error {
	sc, err := s.draftScenario(ctx, userID, companyID, scenarioID)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteOverride(ctx, companyID, scenarioID, flowID); err != nil {
		return err
	}
	s.projections.Invalidate(sc.ID)
	emit(ctx, s.events, core.Event{
		Type:       core.EventOverrideDeleted,
		CompanyID:  companyID,
		ScenarioID: sc.ID,
		ImportID:   sc.ImportID,
		Actor:      userID,
		OccurredAt: s.now(),
		Data:       map[string]any{"flow_id": flowID},
	})
	return nil
}
