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

// maxCopySuffix bounds the search for a free "(copy) N" name.
const maxCopySuffix = 1000

// ScenarioService owns the scenario lifecycle: Draft until locked, soft
// deleted when no other scenario is based on it.
type ScenarioService struct {
	storage     *storage.SQLiteRepository
	events      EventPublisher
	projections *ProjectionService
	now         Clock
}

func NewScenarioService(storage *storage.SQLiteRepository, events EventPublisher, projections *ProjectionService) *ScenarioService {
	return &ScenarioService{storage: storage, events: events, projections: projections, now: systemClock}
}

type ScenarioInput struct {
	ImportID    string
	Name        string
	Description string
	StartDate   core.Date
	EndDate     core.Date
}

// ScenarioPatch carries the fields to change; nil means unchanged.
type ScenarioPatch struct {
	Name        *string
	Description *string
	StartDate   *core.Date
	EndDate     *core.Date
}

func (s *ScenarioService) Create(ctx context.Context, userID, companyID string, in ScenarioInput) (core.Scenario, error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return core.Scenario{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if strings.TrimSpace(in.ImportID) == "" {
		return core.Scenario{}, core.Validation("invalid scenario", core.FieldError{Field: "import_id", Message: "import_id is required"})
	}
	if err := core.ValidateScenarioFields(in.Name, in.Description, in.StartDate, in.EndDate); err != nil {
		return core.Scenario{}, err
	}

	imp, err := s.storage.GetImport(ctx, companyID, in.ImportID)
	if err != nil {
		return core.Scenario{}, err
	}
	if imp.Status != core.ImportCompleted {
		return core.Scenario{}, core.Validation("invalid scenario", core.FieldError{
			Field:   "import_id",
			Message: fmt.Sprintf("import is %s; only completed imports can back a scenario", imp.Status),
		})
	}
	if err := s.requireFreeName(ctx, companyID, in.Name, ""); err != nil {
		return core.Scenario{}, err
	}

	now := s.now()
	sc := core.Scenario{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		ImportID:    imp.ID,
		Name:        in.Name,
		Description: in.Description,
		Status:      core.ScenarioDraft,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.storage.CreateScenario(ctx, sc); err != nil {
		return core.Scenario{}, err
	}
	s.emit(ctx, core.EventScenarioCreated, userID, sc, nil)
	return sc, nil
}

func (s *ScenarioService) requireFreeName(ctx context.Context, companyID, name, excludeID string) error {
	taken, err := s.storage.ScenarioNameTaken(ctx, companyID, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return core.Conflict(fmt.Sprintf("scenario name %q is already in use", name))
	}
	return nil
}

func (s *ScenarioService) List(ctx context.Context, userID, companyID string, status core.ScenarioStatus, page core.Page) (core.PageResult[core.Scenario], error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return core.PageResult[core.Scenario]{}, err
	}
	if status != "" && !status.Valid() {
		return core.PageResult[core.Scenario]{}, core.Validation("invalid filter", core.FieldError{Field: "status", Message: "status must be Draft or Locked"})
	}
	return s.storage.ListScenarios(ctx, companyID, status, page)
}

func (s *ScenarioService) Get(ctx context.Context, userID, companyID, scenarioID string) (core.Scenario, error) {
	if _, err := requireMember(ctx, s.storage, companyID, userID); err != nil {
		return core.Scenario{}, err
	}
	return s.storage.GetScenario(ctx, companyID, scenarioID)
}

// Update edits a Draft scenario.
func (s *ScenarioService) Update(ctx context.Context, userID, companyID, scenarioID string, patch ScenarioPatch) (core.Scenario, error) {
	sc, err := s.Get(ctx, userID, companyID, scenarioID)
	if err != nil {
		return core.Scenario{}, err
	}
	if err := sc.RequireDraft(); err != nil {
		return core.Scenario{}, err
	}

	if patch.Name != nil {
		sc.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		sc.Description = *patch.Description
	}
	if patch.StartDate != nil {
		sc.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		sc.EndDate = *patch.EndDate
	}
	if err := core.ValidateScenarioFields(sc.Name, sc.Description, sc.StartDate, sc.EndDate); err != nil {
		return core.Scenario{}, err
	}
	if err := s.requireFreeName(ctx, companyID, sc.Name, sc.ID); err != nil {
		return core.Scenario{}, err
	}

	sc.UpdatedAt = s.now()
	if err := s.storage.UpdateScenario(ctx, sc); err != nil {
		return core.Scenario{}, err
	}
	s.projections.Invalidate(sc.ID)
	s.emit(ctx, core.EventScenarioUpdated, userID, sc, nil)
	return sc, nil
}

// Lock moves a Draft scenario to Locked. There is no way back.
func (s *ScenarioService) Lock(ctx context.Context, userID, companyID, scenarioID string) (core.Scenario, error) {
	sc, err := s.Get(ctx, userID, companyID, scenarioID)
	if err != nil {
		return core.Scenario{}, err
	}
	if sc.Status != core.ScenarioDraft {
		return core.Scenario{}, core.Conflict(fmt.Sprintf("scenario %q is already locked", sc.Name))
	}

	at := s.now()
	if err := s.storage.LockScenario(ctx, companyID, scenarioID, at); err != nil {
		return core.Scenario{}, err
	}
	sc.Status = core.ScenarioLocked
	sc.LockedAt = &at
	sc.UpdatedAt = at
	s.projections.Invalidate(sc.ID)
	s.emit(ctx, core.EventScenarioLocked, userID, sc, nil)
	return sc, nil
}

// Duplicate creates a Draft copy of a scenario, overrides included. An
// empty name picks "<name> (copy)" with a numeric suffix when needed.
func (s *ScenarioService) Duplicate(ctx context.Context, userID, companyID, scenarioID, name string) (core.Scenario, error) {
	src, err := s.Get(ctx, userID, companyID, scenarioID)
	if err != nil {
		return core.Scenario{}, err
	}

	name = strings.TrimSpace(name)
	explicit := name != ""
	if !explicit {
		if name, err = s.copyName(ctx, companyID, src.Name); err != nil {
			return core.Scenario{}, err
		}
	}
	if err := core.ValidateName("name", name); err != nil {
		return core.Scenario{}, err
	}
	if explicit {
		if err := s.requireFreeName(ctx, companyID, name, ""); err != nil {
			return core.Scenario{}, err
		}
	}

	now := s.now()
	dup := core.Scenario{
		ID:             uuid.NewString(),
		CompanyID:      companyID,
		ImportID:       src.ImportID,
		Name:           name,
		Description:    src.Description,
		Status:         core.ScenarioDraft,
		StartDate:      src.StartDate,
		EndDate:        src.EndDate,
		BaseScenarioID: src.ID,
		CreatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.storage.DuplicateScenario(ctx, dup); err != nil {
		return core.Scenario{}, err
	}
	s.emit(ctx, core.EventScenarioDuplicated, userID, dup, map[string]any{"base_scenario_id": src.ID})
	return dup, nil
}

func (s *ScenarioService) copyName(ctx context.Context, companyID, source string) (string, error) {
	// Leave room for " (copy) 1000", counted in characters like ValidateName.
	room := core.MaxNameLength - utf8.RuneCountInString(fmt.Sprintf(" (copy) %d", maxCopySuffix))
	if r := []rune(source); len(r) > room {
		source = strings.TrimSpace(string(r[:room]))
	}
	base := source + " (copy)"
	candidate := base
	for i := 2; i <= maxCopySuffix; i++ {
		taken, err := s.storage.ScenarioNameTaken(ctx, companyID, candidate, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s %d", base, i)
	}
	return "", core.Conflict("no free name for the copy; pass an explicit name")
}

// Delete soft-deletes a scenario unless other scenarios are based on it.
func (s *ScenarioService) Delete(ctx context.Context, userID, companyID, scenarioID string) error {
	sc, err := s.Get(ctx, userID, companyID, scenarioID)
	if err != nil {
		return err
	}
	if err := s.storage.SoftDeleteScenario(ctx, companyID, scenarioID, s.now()); err != nil {
		return err
	}
	s.projections.Invalidate(scenarioID)
	s.emit(ctx, core.EventScenarioDeleted, userID, sc, nil)
	return nil
}

func (s *ScenarioService) emit(ctx context.Context, t core.EventType, actor string, sc core.Scenario, extra map[string]any) {
	data := map[string]any{
		"name":       sc.Name,
		"status":     string(sc.Status),
		"start_date": sc.StartDate.String(),
		"end_date":   sc.EndDate.String(),
	}
	for k, v := range extra {
		data[k] = v
	}
	emit(ctx, s.events, core.Event{
		Type:       t,
		CompanyID:  sc.CompanyID,
		ScenarioID: sc.ID,
		ImportID:   sc.ImportID,
		Actor:      actor,
		OccurredAt: s.now(),
		Data:       data,
	})
}
