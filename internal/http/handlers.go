package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cashplan/internal/core"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, OK(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}))
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.deps.Storage == nil {
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Storage.Ping(ctx); err != nil {
		checks["database"] = "failed"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, r, NewJSONResponse().Status(httpStatus).Body(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}))
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %v\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Total number of 5xx responses", traceMetrics.ServerErrors)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)
	counter("imports_total", "Total number of CSV imports processed", s.appMetrics.importsTotal.Load())
	counter("scenario_writes_total", "Total number of scenario and override writes", s.appMetrics.scenarioWrites.Load())
	counter("exports_total", "Total number of workbooks exported", s.appMetrics.exportsTotal.Load())
	counter("unauthorized_requests_total", "Total requests rejected for missing or invalid tokens", s.appMetrics.unauthorizedHits.Load())
	counter("rate_limit_hits_total", "Total rate limit hits", rateLimitMetrics.TotalHits)
	counter("suspicious_requests_total", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	gauge("uptime_seconds", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

// Companies, members, accounts and audit.

type createCompanyRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.deps.Companies.ListCompanies(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(map[string]interface{}{"items": presentList(companies, presentCompany)}))
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Companies.CreateCompany(r.Context(), userID(r), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, Created(presentCompany(c)))
}

type addMemberRequest struct {
	UserID string    `json:"user_id"`
	Role   core.Role `json:"role"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.deps.Companies.AddMember(r.Context(), userID(r), r.PathValue("companyID"), sanitizeInput(req.UserID), req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	role := req.Role
	if role == "" {
		role = core.RoleMember
	}
	writeJSON(w, r, Created(map[string]interface{}{"user_id": sanitizeInput(req.UserID), "role": role}))
}

type createAccountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.deps.Companies.ListAccounts(r.Context(), userID(r), r.PathValue("companyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(map[string]interface{}{"items": presentList(accounts, presentAccount)}))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.deps.Companies.CreateAccount(r.Context(), userID(r), r.PathValue("companyID"), sanitizeInput(req.Name), req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, Created(presentAccount(a)))
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Companies.ListAuditEvents(r.Context(), userID(r), r.PathValue("companyID"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentPage(res, presentAuditEvent)))
}
