package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ben-hawker/nudgz/internal/middleware"
)

func TestNew(t *testing.T) {
	m := New()
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	m.AuthFailuresTotal.Inc()
	fams, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(fams) == 0 {
		t.Fatal("expected at least one metric family after increment")
	}
}

func TestEligibilityOutcome(t *testing.T) {
	m := New()

	m.EligibilityOutcome("tour", "delivered")
	m.EligibilityOutcome("tour", "delivered")
	m.EligibilityOutcome("survey", "suppressed")

	if got := testutil.ToFloat64(m.EligibilityTotal.WithLabelValues("tour", "delivered")); got != 2 {
		t.Fatalf("tour delivered count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EligibilityTotal.WithLabelValues("survey", "suppressed")); got != 1 {
		t.Fatalf("survey suppressed count = %v, want 1", got)
	}
}

func TestImpressionRecorded(t *testing.T) {
	m := New()

	m.ImpressionRecorded("shown", false)
	m.ImpressionRecorded("completed", false)
	m.ImpressionRecorded("completed", true)

	if got := testutil.ToFloat64(m.ImpressionsTotal.WithLabelValues("completed")); got != 2 {
		t.Fatalf("completed count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ImpressionDedups); got != 1 {
		t.Fatalf("dedup count = %v, want 1", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.ImpressionRecorded("shown", false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "nudgz_impressions_total") {
		t.Fatalf("metrics output missing nudgz_impressions_total:\n%s", body)
	}
}

func TestHTTPMiddlewareRecordsRoutePattern(t *testing.T) {
	m := New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/surfaces/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := m.HTTPMiddleware(mux)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/surfaces/abc", nil))

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /v1/surfaces/{id}", "200"))
	if got != 1 {
		t.Fatalf("request count = %v, want 1", got)
	}
}

func TestHTTPMiddlewareRouteLabelSurvivesMiddlewareChain(t *testing.T) {
	m := New()

	inner := http.NewServeMux()
	inner.HandleFunc("GET /v1/surfaces/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Copies the request the way the auth middleware does when it injects
	// the workspace ID.
	authed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.NewContextWithWorkspaceID(r.Context(), "ws-1")
		CaptureRoute(inner).ServeHTTP(w, r.WithContext(ctx))
	})

	outer := http.NewServeMux()
	outer.Handle("/v1/", authed)
	outer.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := m.HTTPMiddleware(middleware.RequestLogging(logger)(CaptureRoute(outer)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/surfaces/abc", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /v1/surfaces/{id}", "200")); got != 1 {
		t.Fatalf("surfaces route count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "200")); got != 0 {
		t.Fatalf("unmatched count = %v, want 0", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /healthz", "200")); got != 1 {
		t.Fatalf("healthz route count = %v, want 1", got)
	}
}
