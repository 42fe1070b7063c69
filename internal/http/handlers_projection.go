package http

import (
	"bytes"
	"net/http"
	"strconv"

	"cashplan/internal/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	ws, err := s.deps.Projections.WeeklySummary(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentWeeklySummary(ws)))
}

func (s *Server) handleRunningBalance(w http.ResponseWriter, r *http.Request) {
	points, err := s.deps.Projections.RunningBalance(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(map[string]interface{}{"items": presentList(points, presentBalancePoint)}))
}

func (s *Server) handleScenarioTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Projections.Transactions(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("scenarioID"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentPage(res, presentScenarioFlow)))
}

// handleExport renders the workbook in memory so a failure still produces
// the JSON error envelope instead of a truncated download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	scenarioID := r.PathValue("scenarioID")
	name, err := s.deps.Exports.Export(r.Context(), userID(r), r.PathValue("companyID"), scenarioID, &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.appMetrics.exportsTotal.Add(1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Workbook exported",
		log.FieldOperation, log.OpExport,
		log.FieldScenarioID, scenarioID,
		"file_name", name,
		"bytes", buf.Len())

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
