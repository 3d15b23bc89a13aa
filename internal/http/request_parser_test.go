package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"pocketbook/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Title string    `json:"title"`
		Date  core.Date `json:"date"`
	}

	tests := []struct {
		name      string
		body      string
		wantErr   error
		wantTitle string
	}{
		{name: "valid", body: `{"title":"Rent","date":"2024-03-01"}`, wantTitle: "Rent"},
		{name: "empty body", body: ``, wantErr: ErrMalformedRequest},
		{name: "unknown field", body: `{"title":"x","owner":1}`, wantErr: ErrMalformedRequest},
		{name: "trailing data", body: `{"title":"x"}{"title":"y"}`, wantErr: ErrMalformedRequest},
		{name: "syntax error", body: `{"title":`, wantErr: ErrMalformedRequest},
		{name: "bad date keeps validation error", body: `{"title":"x","date":"03/01/2024"}`, wantErr: core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(httptest.NewRecorder(), r, &p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeJSON: %v", err)
			}
			if p.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", p.Title, tt.wantTitle)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.raw)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			got, err := pathID(r, "id")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedRequest) {
				t.Errorf("err = %v, want ErrMalformedRequest", err)
			}
			if got != tt.want {
				t.Errorf("id = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	def := core.NewDate(2024, 3, 15)
	r := httptest.NewRequest(http.MethodGet, "/?start=2024-03-01&limit=10&bad=x&when=yesterday", nil)

	if d, err := queryDate(r, "start", def); err != nil || d.String() != "2024-03-01" {
		t.Errorf("queryDate(start) = %v, %v", d, err)
	}
	if d, err := queryDate(r, "end", def); err != nil || !d.Equal(def.Time) {
		t.Errorf("queryDate(end) = %v, %v; want default", d, err)
	}
	if _, err := queryDate(r, "when", def); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("queryDate(when) err = %v", err)
	}

	if n, err := queryInt(r, "limit", 50); err != nil || n != 10 {
		t.Errorf("queryInt(limit) = %d, %v", n, err)
	}
	if n, err := queryInt(r, "missing", 50); err != nil || n != 50 {
		t.Errorf("queryInt(missing) = %d, %v", n, err)
	}
	if _, err := queryInt(r, "bad", 50); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("queryInt(bad) err = %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Groceries  ", "Groceries"},
		{"Coffee\x00\x07", "Coffee"},
		{"line one\nline two", "line one\nline two"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
