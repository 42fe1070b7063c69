package http

import (
	"net/http"
	"strings"

	"cashplan/internal/auth"
	"cashplan/internal/core"
	"cashplan/internal/log"
)

// writeJSON sends b and logs encoding failures.
func writeJSON(w http.ResponseWriter, r *http.Request, b *JSONResponseBuilder) {
	if err := b.Write(w); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write response", log.FieldError, err)
	}
}

// writeError sends the error envelope for err. Server-side failures are
// logged with their cause; client errors are logged at debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	b := ErrorResponse(err)
	logger := log.FromContext(r.Context())
	if b.StatusCode() >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldErrorCode, string(core.KindOf(err)),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldError, err,
			log.FieldErrorCode, string(core.KindOf(err)))
	}
	writeJSON(w, r, b)
}

// userID returns the authenticated caller. Routes under /api are always
// behind the auth middleware.
func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
