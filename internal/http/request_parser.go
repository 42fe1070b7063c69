// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// pagination parameters, JSON bodies and multipart CSV uploads.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"cashplan/internal/core"
	"cashplan/internal/csvimport"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// ParsePage reads page and page_size from the query string. Missing values
// take the defaults; out-of-range sizes are clamped.
func ParsePage(r *http.Request) (core.Page, error) {
	q := r.URL.Query()
	number, err := queryInt(q.Get("page"), 1)
	if err != nil {
		return core.Page{}, core.BadRequest("page must be an integer")
	}
	size, err := queryInt(q.Get("page_size"), core.DefaultPageSize)
	if err != nil {
		return core.Page{}, core.BadRequest("page_size must be an integer")
	}
	return core.NewPage(number, size), nil
}

func queryInt(v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// DecodeJSON reads a JSON body into dst. Unknown fields and trailing data
// are rejected. An empty body leaves dst untouched when allowEmpty is set.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return core.BadRequest("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return core.BadRequest("request body is too large")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return core.Validation("invalid request body", core.FieldError{Field: typeErr.Field, Message: "has the wrong type"})
		}
		return core.BadRequest("malformed JSON body: " + sanitizeInput(err.Error()))
	}
	if dec.More() {
		return core.BadRequest("request body must contain a single JSON object")
	}
	return nil
}

// Upload is a CSV file received as multipart form data.
type Upload struct {
	File      multipart.File
	FileName  string
	Mapping   csvimport.Mapping
	AccountID string
}

// ParseUpload reads the "file" part, the "mapping" JSON field and the
// optional "account_id" field. The caller closes Upload.File.
func ParseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return Upload{}, core.BadRequest("upload exceeds " + strconv.FormatInt(maxBytes, 10) + " bytes")
		}
		return Upload{}, core.BadRequest("request must be multipart/form-data")
	}

	var fe core.FieldErrors
	var up Upload
	raw := strings.TrimSpace(r.FormValue("mapping"))
	if raw == "" {
		fe.Add("mapping", "mapping is required")
	} else if err := json.Unmarshal([]byte(raw), &up.Mapping); err != nil {
		fe.Add("mapping", "mapping must be a JSON object")
	}
	up.AccountID = sanitizeInput(r.FormValue("account_id"))

	file, header, err := r.FormFile("file")
	if err != nil {
		fe.Add("file", "file is required")
	} else {
		up.File = file
		up.FileName = sanitizeInput(header.Filename)
	}
	if err := fe.Err("invalid upload"); err != nil {
		if up.File != nil {
			up.File.Close()
		}
		return Upload{}, err
	}
	return up, nil
}
