package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubValidator struct {
	workspaceID string
	err         error
}

func (v *stubValidator) ValidateToken(_ context.Context, _ string) (string, error) {
	return v.workspaceID, v.err
}

func TestBearerAuthInjectsWorkspaceAndKeyID(t *testing.T) {
	validator := &stubValidator{workspaceID: "ws-1"}

	var gotWorkspace, gotKeyID string
	var okWorkspace, okKeyID bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWorkspace, okWorkspace = WorkspaceIDFromContext(r.Context())
		gotKeyID, okKeyID = APIKeyIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := BearerAuth(validator)(next)
	req := httptest.NewRequest(http.MethodGet, "/v1/surfaces", nil)
	req.Header.Set("Authorization", "Bearer key-1.secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !okWorkspace || gotWorkspace != "ws-1" {
		t.Fatalf("workspace id = (%q, %t), want (ws-1, true)", gotWorkspace, okWorkspace)
	}
	if !okKeyID || gotKeyID != "key-1" {
		t.Fatalf("api key id = (%q, %t), want (key-1, true)", gotKeyID, okKeyID)
	}
}

func TestBearerAuthRejections(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		validator *stubValidator
	}{
		{name: "missing header", header: "", validator: &stubValidator{workspaceID: "ws-1"}},
		{name: "wrong scheme", header: "Basic abc", validator: &stubValidator{workspaceID: "ws-1"}},
		{name: "validator error", header: "Bearer key-1.nope", validator: &stubValidator{err: errors.New("invalid token")}},
		{name: "empty workspace", header: "Bearer key-1.secret", validator: &stubValidator{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := 0
			handler := BearerAuth(tt.validator, WithOnAuthFailure(func() { failures++ }))(
				http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
					t.Fatal("next handler called for unauthorized request")
				}),
			)

			req := httptest.NewRequest(http.MethodGet, "/v1/surfaces", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatalf("WWW-Authenticate = %q, want Bearer", rec.Header().Get("WWW-Authenticate"))
			}
			if failures != 1 {
				t.Fatalf("failure callbacks = %d, want 1", failures)
			}
		})
	}
}

func TestBearerAuthRateLimitsRepeatedFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 2)
	defer rl.Stop()

	handler := BearerAuth(&stubValidator{err: errors.New("invalid token")}, WithRateLimiter(rl))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
	)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/surfaces", nil)
		req.RemoteAddr = "10.0.0.9:4242"
		req.Header.Set("Authorization", "Bearer key-1.bad")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusUnauthorized || statuses[1] != http.StatusUnauthorized {
		t.Fatalf("first statuses = %v, want 401s", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("third status = %d, want %d", statuses[2], http.StatusTooManyRequests)
	}
}

func TestParseBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer key-1.secret", want: "key-1.secret"},
		{name: "case insensitive scheme", header: "bearer tok", want: "tok"},
		{name: "missing token", header: "Bearer", wantErr: true},
		{name: "extra parts", header: "Bearer a b", wantErr: true},
		{name: "wrong scheme", header: "Token abc", wantErr: true},
		{name: "empty", header: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBearerToken(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseBearerToken(%q) error = nil, want error", tt.header)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("parseBearerToken(%q) = (%q, %v), want (%q, nil)", tt.header, got, err, tt.want)
			}
		})
	}
}

func TestAPIKeyHashRoundTrip(t *testing.T) {
	hash, err := HashAPIKey("super-secret")
	if err != nil {
		t.Fatalf("HashAPIKey() error = %v", err)
	}
	if !APIKeyMatchesHash(hash, "super-secret") {
		t.Fatal("APIKeyMatchesHash() = false for matching secret")
	}
	if APIKeyMatchesHash(hash, "other-secret") {
		t.Fatal("APIKeyMatchesHash() = true for wrong secret")
	}
	if APIKeyMatchesHash("not-a-bcrypt-hash", "super-secret") {
		t.Fatal("APIKeyMatchesHash() = true for malformed hash")
	}
}
