package http

import (
	"net/http"
	"strings"

	"cashplan/internal/core"
	"cashplan/internal/log"
	"cashplan/internal/services"
)

type createScenarioRequest struct {
	ImportID    string    `json:"import_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   core.Date `json:"start_date"`
	EndDate     core.Date `json:"end_date"`
}

type updateScenarioRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartDate   *core.Date `json:"start_date"`
	EndDate     *core.Date `json:"end_date"`
}

type duplicateScenarioRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := core.ScenarioStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	res, err := s.deps.Scenarios.List(r.Context(), userID(r), r.PathValue("companyID"), status, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentPage(res, presentScenario)))
}

func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var req createScenarioRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := s.deps.Scenarios.Create(r.Context(), userID(r), r.PathValue("companyID"), services.ScenarioInput{
		ImportID:    sanitizeInput(req.ImportID),
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordScenarioWrite(r, log.OpCreate, sc.ID)
	writeJSON(w, r, Created(presentScenario(sc)))
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.deps.Scenarios.Get(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentScenario(sc)))
}

func (s *Server) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	var req updateScenarioRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	patch := services.ScenarioPatch{StartDate: req.StartDate, EndDate: req.EndDate}
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		patch.Name = &name
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		patch.Description = &desc
	}
	sc, err := s.deps.Scenarios.Update(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordScenarioWrite(r, log.OpUpdate, sc.ID)
	writeJSON(w, r, OK(presentScenario(sc)))
}

func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID := r.PathValue("scenarioID")
	if err := s.deps.Scenarios.Delete(r.Context(), userID(r), r.PathValue("companyID"), scenarioID); err != nil {
		writeError(w, r, err)
		return
	}
	s.recordScenarioWrite(r, log.OpDelete, scenarioID)
	writeJSON(w, r, NoContent())
}

func (s *Server) handleLockScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.deps.Scenarios.Lock(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordScenarioWrite(r, log.OpLock, sc.ID)
	writeJSON(w, r, OK(presentScenario(sc)))
}

func (s *Server) handleDuplicateScenario(w http.ResponseWriter, r *http.Request) {
	var req duplicateScenarioRequest
	if err := DecodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	dup, err := s.deps.Scenarios.Duplicate(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordScenarioWrite(r, log.OpDuplicate, dup.ID)
	writeJSON(w, r, Created(presentScenario(dup)))
}

// Overrides.

type upsertOverrideRequest struct {
	NewDate        *core.Date `json:"new_date"`
	NewAmountCents *int64     `json:"new_amount_cents"`
	NewAmount      *string    `json:"new_amount"`
	Note           string     `json:"note"`
}

// input resolves the amount, which may be sent as cents or as a decimal
// string in major units but not both.
func (req upsertOverrideRequest) input() (services.OverrideInput, error) {
	in := services.OverrideInput{NewDate: req.NewDate, Note: sanitizeInput(req.Note)}
	switch {
	case req.NewAmountCents != nil && req.NewAmount != nil:
		return in, core.Validation("invalid override", core.FieldError{Field: "new_amount", Message: "send new_amount or new_amount_cents, not both"})
	case req.NewAmountCents != nil:
		in.NewAmount = &core.Money{Cents: *req.NewAmountCents}
	case req.NewAmount != nil:
		cents, err := core.ParseAmount(*req.NewAmount, core.AmountEN)
		if err != nil {
			return in, core.Validation("invalid override", core.FieldError{Field: "new_amount", Message: err.Error()})
		}
		in.NewAmount = &core.Money{Cents: cents}
	}
	return in, nil
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.deps.Overrides.List(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(map[string]interface{}{"items": presentList(overrides, presentOverride)}))
}

func (s *Server) handleUpsertOverride(w http.ResponseWriter, r *http.Request) {
	var req upsertOverrideRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Overrides.Upsert(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"), r.PathValue("flowID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordScenarioWrite(r, log.OpOverride, o.ScenarioID)
	writeJSON(w, r, OK(presentOverride(o)))
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	scenarioID := r.PathValue("scenarioID")
	err := s.deps.Overrides.Delete(r.Context(), userID(r), r.PathValue("companyID"), scenarioID, r.PathValue("flowID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordScenarioWrite(r, log.OpRevert, scenarioID)
	writeJSON(w, r, NoContent())
}

func (s *Server) recordScenarioWrite(r *http.Request, op, scenarioID string) {
	s.appMetrics.scenarioWrites.Add(1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Scenario changed",
		log.FieldOperation, op,
		log.FieldCompanyID, r.PathValue("companyID"),
		log.FieldScenarioID, scenarioID)
}
