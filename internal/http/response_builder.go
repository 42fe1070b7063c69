// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses.
// It provides a fluent API for status codes, headers and bodies, and the
// single mapping from classified errors to the error envelope.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cashplan/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       interface{}
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v interface{}) *JSONResponseBuilder {
	b.body = v
	return b
}

// StatusCode returns the configured status code.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the response. A nil body with 204 writes no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) error {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	return json.NewEncoder(w).Encode(b.body)
}

// Convenience constructors for common responses.

// OK returns a 200 response with body.
func OK(body interface{}) *JSONResponseBuilder {
	return NewJSONResponse().Body(body)
}

// Created returns a 201 response with body.
func Created(body interface{}) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusCreated).Body(body)
}

// NoContent returns an empty 204 response.
func NoContent() *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusNoContent)
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []core.FieldError `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// StatusFor maps an error class to its HTTP status.
func StatusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindValidation:
		return http.StatusUnprocessableEntity
	case core.KindConflict:
		return http.StatusConflict
	case core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ErrorResponse builds the error envelope for err. Database and
// unclassified errors never expose their cause.
func ErrorResponse(err error) *JSONResponseBuilder {
	kind := core.KindOf(err)
	status := StatusFor(kind)
	body := errorBody{Code: string(kind), Message: "internal server error"}

	var ce *core.Error
	if errors.As(err, &ce) {
		switch kind {
		case core.KindDatabase:
			body.Message = ce.Message
		case core.KindInternal:
		default:
			body.Message = ce.Message
			body.Details = ce.Details
		}
	}
	return NewJSONResponse().Status(status).Body(errorEnvelope{Error: body})
}

// TooManyRequestsError returns the envelope written when a client exceeds
// its request budget.
func TooManyRequestsError() *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusTooManyRequests).Body(errorEnvelope{Error: errorBody{
		Code:    "RATE_LIMITED",
		Message: "rate limit exceeded, please try again later",
	}})
}
