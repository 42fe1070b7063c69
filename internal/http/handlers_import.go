package http

import (
	"net/http"
	"strconv"
	"strings"

	"cashplan/internal/core"
	"cashplan/internal/log"
	"cashplan/internal/services"
)

// maxPreviewRows bounds the preview "limit" parameter.
const maxPreviewRows = 200

func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	up, err := ParseUpload(w, r, s.deps.MaxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer up.File.Close()

	companyID := r.PathValue("companyID")
	imp, err := s.deps.Imports.Import(r.Context(), userID(r), companyID, services.ImportInput{
		FileName:  up.FileName,
		AccountID: up.AccountID,
		Mapping:   up.Mapping,
		File:      up.File,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.appMetrics.importsTotal.Add(1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Import processed",
		log.FieldCompanyID, companyID,
		log.FieldImportID, imp.ID,
		"status", imp.Status,
		"valid_rows", imp.ValidRows,
		"invalid_rows", imp.InvalidRows)

	detail, err := s.deps.Imports.GetImport(r.Context(), userID(r), companyID, imp.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, Created(presentImportDetail(detail)))
}

func (s *Server) handlePreviewImport(w http.ResponseWriter, r *http.Request) {
	limit := services.DefaultPreviewRows
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, core.BadRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, maxPreviewRows)
	}

	up, err := ParseUpload(w, r, s.deps.MaxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer up.File.Close()

	res, err := s.deps.Imports.Preview(r.Context(), userID(r), r.PathValue("companyID"), up.Mapping, up.File, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentPreview(res)))
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Imports.ListImports(r.Context(), userID(r), r.PathValue("companyID"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentPage(res, presentImport)))
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	detail, err := s.deps.Imports.GetImport(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("importID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentImportDetail(detail)))
}

func (s *Server) handleListImportTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Imports.ListTransactions(r.Context(), userID(r), r.PathValue("companyID"), r.PathValue("importID"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, OK(presentPage(res, presentTransaction)))
}
