package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"solstice/internal/observability/jsonlog"
)

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || w.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("generated id=%q header=%q", seen, w.Header().Get(RequestIDHeader))
	}
	if len(seen) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if seen != "abc-123" || w.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("propagated id=%q header=%q", seen, w.Header().Get(RequestIDHeader))
	}
}

func TestLogging_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonlog.New(&buf)

	h := WithRequestID()(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonlog.FromContext(r.Context()).Info("inside", nil)
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var inner map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &inner); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if inner["rid"] != "rid-1" {
		t.Fatalf("request logger missing rid: %v", inner)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["msg"] != "http_request" || entry["rid"] != "rid-1" || entry["path"] != "/x" {
		t.Fatalf("entry=%v", entry)
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("status=%v", entry["status"])
	}
}

func TestTimeout_SetsDeadline(t *testing.T) {
	var hasDeadline bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !hasDeadline {
		t.Fatalf("expected deadline on request context")
	}

	h = Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	if hasDeadline {
		t.Fatalf("zero timeout should not set a deadline")
	}
}

func TestCORS_AnyOrigin(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status=%d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin=%q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Fatalf("allow-headers=%q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPatch) {
		t.Fatalf("allow-methods=%q", got)
	}
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	h := CORS([]string{"https://ok.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://ok.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ok.example" {
		t.Fatalf("allow-origin=%q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin=%q", got)
	}
}
