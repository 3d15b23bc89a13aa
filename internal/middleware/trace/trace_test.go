package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "pocketbook/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	var seen string
	h := NewMiddleware(nil, applog.New(applog.Config{Output: &bytes.Buffer{}})).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if seen == "" || rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("generated id = %q, header = %q", seen, rec.Header().Get(HeaderRequestID))
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "client-abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "client-abc-123" {
		t.Errorf("incoming id not propagated, got %q", seen)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "bad id with spaces")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen == "bad id with spaces" {
		t.Error("invalid incoming id was accepted")
	}
}

func TestMiddleware_LogsAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(func(*http.Request) string { return "10.1.1.1" },
		applog.New(applog.Config{Format: "json", Output: &buf}))

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/boom", nil))

	got := m.GetMetrics()
	if got.TotalRequests != 2 || got.ServerErrors != 1 {
		t.Errorf("metrics = %+v", got)
	}

	out := buf.String()
	if strings.Count(out, "HTTP request completed") != 2 {
		t.Fatalf("log output = %s", out)
	}
	if !strings.Contains(out, `"status_code":500`) || !strings.Contains(out, `"client_ip":"10.1.1.1"`) {
		t.Errorf("log output missing fields: %s", out)
	}
}

func TestMetrics_AverageResponseTime(t *testing.T) {
	if got := (Metrics{}).AverageResponseTime(); got != 0 {
		t.Errorf("empty average = %d", got)
	}
	if got := (Metrics{TotalRequests: 4, TotalDurationUs: 100}).AverageResponseTime(); got != 25 {
		t.Errorf("average = %d, want 25", got)
	}
}
