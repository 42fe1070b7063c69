package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cashplan/internal/core"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantNum  int
		wantSize int
		wantErr  bool
	}{
		{"defaults", "", 1, core.DefaultPageSize, false},
		{"explicit", "page=3&page_size=20", 3, 20, false},
		{"clamped size", "page_size=10000", 1, core.MaxPageSize, false},
		{"zero page", "page=0", 1, core.DefaultPageSize, false},
		{"non numeric page", "page=abc", 0, 0, true},
		{"non numeric size", "page_size=1.5", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			p, err := ParsePage(r)
			if tt.wantErr {
				if !core.IsKind(err, core.KindBadRequest) {
					t.Fatalf("err = %v, want bad request", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Number != tt.wantNum || p.Size != tt.wantSize {
				t.Errorf("got %+v, want number %d size %d", p, tt.wantNum, tt.wantSize)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	tests := []struct {
		name       string
		body       string
		allowEmpty bool
		wantKind   core.ErrorKind
	}{
		{"valid", `{"name":"a","count":2}`, false, ""},
		{"empty allowed", ``, true, ""},
		{"empty rejected", ``, false, core.KindBadRequest},
		{"unknown field", `{"nope":1}`, false, core.KindBadRequest},
		{"wrong type", `{"count":"two"}`, false, core.KindValidation},
		{"trailing object", `{"name":"a"}{"name":"b"}`, false, core.KindBadRequest},
		{"malformed", `{"name":`, false, core.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), r, &p, tt.allowEmpty)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := core.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %s, want %s (err %v)", got, tt.wantKind, err)
			}
		})
	}
}

func multipartRequest(t *testing.T, fields map[string]string, file string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != "" {
		fw, err := mw.CreateFormFile("file", "data.csv")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(file))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/upload", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestParseUpload(t *testing.T) {
	r := multipartRequest(t, map[string]string{
		"mapping":    `{"date":"d","amount":"a","default_currency":"PLN"}`,
		"account_id": " acc-1 ",
	}, "d,a\n2024-01-01,1\n")
	up, err := ParseUpload(httptest.NewRecorder(), r, 1<<20)
	if err != nil {
		t.Fatalf("ParseUpload: %v", err)
	}
	defer up.File.Close()
	if up.FileName != "data.csv" || up.AccountID != "acc-1" {
		t.Errorf("got file %q account %q", up.FileName, up.AccountID)
	}
	if up.Mapping.Date != "d" || up.Mapping.DefaultCurrency != "PLN" {
		t.Errorf("mapping = %+v", up.Mapping)
	}
}

func TestParseUploadErrors(t *testing.T) {
	t.Run("missing file and mapping", func(t *testing.T) {
		r := multipartRequest(t, map[string]string{"account_id": "x"}, "")
		_, err := ParseUpload(httptest.NewRecorder(), r, 1<<20)
		if !core.IsKind(err, core.KindValidation) {
			t.Fatalf("err = %v, want validation", err)
		}
		ce := err.(*core.Error)
		if len(ce.Details) != 2 {
			t.Errorf("details = %+v, want file and mapping", ce.Details)
		}
	})

	t.Run("mapping not json", func(t *testing.T) {
		r := multipartRequest(t, map[string]string{"mapping": "date=d"}, "d\n")
		_, err := ParseUpload(httptest.NewRecorder(), r, 1<<20)
		if !core.IsKind(err, core.KindValidation) {
			t.Fatalf("err = %v, want validation", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		r := multipartRequest(t, map[string]string{"mapping": "{}"}, strings.Repeat("x", 4096))
		_, err := ParseUpload(httptest.NewRecorder(), r, 1024)
		if !core.IsKind(err, core.KindBadRequest) {
			t.Fatalf("err = %v, want bad request", err)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
		r.Header.Set("Content-Type", "application/json")
		_, err := ParseUpload(httptest.NewRecorder(), r, 1024)
		if !core.IsKind(err, core.KindBadRequest) {
			t.Fatalf("err = %v, want bad request", err)
		}
	})
}
