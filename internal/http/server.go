package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"cashplan/internal/auth"
	"cashplan/internal/core"
	"cashplan/internal/log"
	"cashplan/internal/middleware/ratelimit"
	"cashplan/internal/middleware/security"
	"cashplan/internal/middleware/trace"
	"cashplan/internal/services"
	"cashplan/internal/storage"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Storage     *storage.SQLiteRepository
	Companies   *services.CompanyService
	Imports     *services.ImportService
	Scenarios   *services.ScenarioService
	Overrides   *services.OverrideService
	Projections *services.ProjectionService
	Exports     *services.ExportService
	Auth        *auth.Service
	Logger      *log.Logger

	MaxUploadBytes     int64
	RateLimitPerMinute int
}

type appMetrics struct {
	uptime           time.Time
	importsTotal     atomic.Int64
	scenarioWrites   atomic.Int64
	exportsTotal     atomic.Int64
	unauthorizedHits atomic.Int64
}

type Server struct {
	http.Server
	deps Deps

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}
	limiterCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	detector := security.NewDetector()
	s := &Server{
		deps:             deps,
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		traceMiddleware:  trace.NewMiddleware(deps.Logger, detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", s.apiHandler())
	mux.HandleFunc("/", s.handleNotFound)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(handler)
	handler = log.Middleware(deps.Logger.WithComponent(log.ComponentHTTP))(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = headers.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// apiHandler routes /api requests behind rate limiting and authentication.
func (s *Server) apiHandler() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/companies", s.handleListCompanies)
	api.HandleFunc("POST /api/companies", s.handleCreateCompany)
	api.HandleFunc("POST /api/companies/{companyID}/members", s.handleAddMember)
	api.HandleFunc("GET /api/companies/{companyID}/accounts", s.handleListAccounts)
	api.HandleFunc("POST /api/companies/{companyID}/accounts", s.handleCreateAccount)
	api.HandleFunc("GET /api/companies/{companyID}/audit", s.handleListAudit)

	api.HandleFunc("GET /api/companies/{companyID}/imports", s.handleListImports)
	api.HandleFunc("POST /api/companies/{companyID}/imports", s.handleCreateImport)
	api.HandleFunc("POST /api/companies/{companyID}/imports/preview", s.handlePreviewImport)
	api.HandleFunc("GET /api/companies/{companyID}/imports/{importID}", s.handleGetImport)
	api.HandleFunc("GET /api/companies/{companyID}/imports/{importID}/transactions", s.handleListImportTransactions)

	api.HandleFunc("GET /api/companies/{companyID}/scenarios", s.handleListScenarios)
	api.HandleFunc("POST /api/companies/{companyID}/scenarios", s.handleCreateScenario)
	api.HandleFunc("GET /api/companies/{companyID}/scenarios/{scenarioID}", s.handleGetScenario)
	api.HandleFunc("PATCH /api/companies/{companyID}/scenarios/{scenarioID}", s.handleUpdateScenario)
	api.HandleFunc("DELETE /api/companies/{companyID}/scenarios/{scenarioID}", s.handleDeleteScenario)
	api.HandleFunc("POST /api/companies/{companyID}/scenarios/{scenarioID}/lock", s.handleLockScenario)
	api.HandleFunc("POST /api/companies/{companyID}/scenarios/{scenarioID}/duplicate", s.handleDuplicateScenario)

	api.HandleFunc("GET /api/companies/{companyID}/scenarios/{scenarioID}/overrides", s.handleListOverrides)
	api.HandleFunc("PUT /api/companies/{companyID}/scenarios/{scenarioID}/overrides/{flowID}", s.handleUpsertOverride)
	api.HandleFunc("DELETE /api/companies/{companyID}/scenarios/{scenarioID}/overrides/{flowID}", s.handleDeleteOverride)

	api.HandleFunc("GET /api/companies/{companyID}/scenarios/{scenarioID}/weekly", s.handleWeeklySummary)
	api.HandleFunc("GET /api/companies/{companyID}/scenarios/{scenarioID}/running-balance", s.handleRunningBalance)
	api.HandleFunc("GET /api/companies/{companyID}/scenarios/{scenarioID}/transactions", s.handleScenarioTransactions)
	api.HandleFunc("GET /api/companies/{companyID}/scenarios/{scenarioID}/export", s.handleExport)

	api.HandleFunc("/api/", s.handleNotFound)

	var h http.Handler = api
	h = s.deps.Auth.Middleware(s.handleUnauthorized)(h)
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, TooManyRequestsError())
	})(h)
	return h
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	s.appMetrics.unauthorizedHits.Add(1)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Unauthorized request",
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
	writeJSON(w, r, ErrorResponse(core.Unauthorized("missing or invalid bearer token")))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, core.NotFound("route", r.Method+" "+r.URL.Path))
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
