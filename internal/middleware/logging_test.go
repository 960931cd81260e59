package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLoggingEmitsStartAndCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var ctxRequestID string
	handler := RequestLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxRequestID, _ = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/surfaces", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if ctxRequestID == "" {
		t.Fatal("request id missing from handler context")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2", len(lines))
	}

	var completed map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &completed); err != nil {
		t.Fatalf("unmarshal completion line: %v", err)
	}
	if completed["msg"] != "request completed" {
		t.Fatalf("msg = %v, want %q", completed["msg"], "request completed")
	}
	if completed["status_code"] != float64(http.StatusTeapot) {
		t.Fatalf("status_code = %v, want %d", completed["status_code"], http.StatusTeapot)
	}
	if completed["request_id"] != ctxRequestID {
		t.Fatalf("request_id = %v, want %q", completed["request_id"], ctxRequestID)
	}
}

func TestLoggerFromContextFallsBack(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if LoggerFromContext(req.Context()) == nil {
		t.Fatal("LoggerFromContext returned nil")
	}
}
