package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ben-hawker/nudgz/internal/core"
	"github.com/ben-hawker/nudgz/internal/middleware"
	"github.com/ben-hawker/nudgz/internal/repository"
	"github.com/ben-hawker/nudgz/internal/service"
)

const defaultMaxJSONBodyBytes = 1 << 20

var errJSONBodyTooLarge = errors.New("json request body too large")

type HTTPServer struct {
	service          Service
	maxJSONBodyBytes int64
	metricsHandler   http.Handler
}

// Option configures optional HTTP server parameters.
type Option func(*HTTPServer)

// WithMaxJSONBodySize caps accepted JSON request bodies at n bytes.
func WithMaxJSONBodySize(n int64) Option {
	return func(s *HTTPServer) {
		if n > 0 {
			s.maxJSONBodyBytes = n
		}
	}
}

// WithMetricsHandler serves the given handler on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *HTTPServer) { s.metricsHandler = h }
}

type visitorUpsertRequest struct {
	Email            string          `json:"email,omitempty"`
	Name             string          `json:"name,omitempty"`
	ExternalUserID   string          `json:"externalUserId,omitempty"`
	CustomAttributes json.RawMessage `json:"customAttributes,omitempty"`
}

type eligibilityResponse struct {
	Surfaces map[string][]service.EligibleSurface `json:"surfaces"`
}

type previewRequest struct {
	Rules json.RawMessage `json:"rules,omitempty"`
}

func NewHTTPHandler(svc Service, opts ...Option) http.Handler {
	if svc == nil {
		panic("service is nil")
	}

	server := &HTTPServer{
		service:          svc,
		maxJSONBodyBytes: defaultMaxJSONBodyBytes,
	}
	for _, opt := range opts {
		opt(server)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/surfaces", server.handleCreateSurface)
	mux.HandleFunc("GET /v1/surfaces", server.handleListSurfaces)
	mux.HandleFunc("GET /v1/surfaces/{id}", server.handleGetSurface)
	mux.HandleFunc("PUT /v1/surfaces/{id}", server.handleUpdateSurface)
	mux.HandleFunc("DELETE /v1/surfaces/{id}", server.handleRemoveSurface)
	mux.HandleFunc("POST /v1/surfaces/{id}/activate", server.handleActivateSurface)
	mux.HandleFunc("POST /v1/surfaces/{id}/pause", server.handlePauseSurface)
	mux.HandleFunc("POST /v1/surfaces/{id}/archive", server.handleArchiveSurface)
	mux.HandleFunc("POST /v1/surfaces/{id}/duplicate", server.handleDuplicateSurface)
	mux.HandleFunc("GET /v1/surfaces/{id}/stats", server.handleSurfaceStats)
	mux.HandleFunc("PUT /v1/visitors/{id}", server.handleUpsertVisitor)
	mux.HandleFunc("POST /v1/eligibility", server.handleEligibility)
	mux.HandleFunc("POST /v1/impressions", server.handleTrackImpression)
	mux.HandleFunc("POST /v1/segments/preview", server.handlePreviewSegment)
	mux.HandleFunc("GET /healthz", server.handleHealthz)
	mux.HandleFunc("GET /metrics", server.handleMetrics)

	return mux
}

func (s *HTTPServer) handleCreateSurface(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := requestWorkspaceID(w, r)
	if !ok {
		return
	}

	var surface repository.Surface
	if err := s.decodeJSONBody(w, r, &surface); err != nil {
		writeJSONDecodeError(w, err)
		return
	}
	surface.WorkspaceID = workspaceID

	created, err := s.service.CreateSurface(r.Context(), surface)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleListSurfaces(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := requestWorkspaceID(w, r)
	if !ok {
		return
	}

	surfaces, err := s.service.ListSurfaces(r.Context(), workspaceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, surfaces)
}

func (s *HTTPServer) handleGetSurface(w http.ResponseWriter, r *http.Request) {
	workspaceID, id, ok := requestSurfaceID(w, r)
	if !ok {
		return
	}

	surface, err := s.service.GetSurface(r.Context(), workspaceID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, surface)
}

func (s *HTTPServer) handleUpdateSurface(w http.ResponseWriter, r *http.Request) {
	workspaceID, id, ok := requestSurfaceID(w, r)
	if !ok {
		return
	}

	var surface repository.Surface
	if err := s.decodeJSONBody(w, r, &surface); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	if surface.ID != "" && surface.ID != id {
		writeJSONError(w, http.StatusBadRequest, "path id and body id must match")
		return
	}
	surface.ID = id
	surface.WorkspaceID = workspaceID

	updated, err := s.service.UpdateSurface(r.Context(), surface)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleRemoveSurface(w http.ResponseWriter, r *http.Request) {
	workspaceID, id, ok := requestSurfaceID(w, r)
	if !ok {
		return
	}

	if err := s.service.RemoveSurface(r.Context(), workspaceID, id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleActivateSurface(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.service.ActivateSurface)
}

func (s *HTTPServer) handlePauseSurface(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.service.PauseSurface)
}

func (s *HTTPServer) handleArchiveSurface(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.service.ArchiveSurface)
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (repository.Surface, error)) {
	workspaceID, id, ok := requestSurfaceID(w, r)
	if !ok {
		return
	}

	surface, err := op(r.Context(), workspaceID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, surface)
}

func (s *HTTPServer) handleDuplicateSurface(w http.ResponseWriter, r *http.Request) {
	workspaceID, id, ok := requestSurfaceID(w, r)
	if !ok {
		return
	}

	created, err := s.service.DuplicateSurface(r.Context(), workspaceID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleSurfaceStats(w http.ResponseWriter, r *http.Request) {
	workspaceID, id, ok := requestSurfaceID(w, r)
	if !ok {
		return
	}

	stats, err := s.service.SurfaceStats(r.Context(), workspaceID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleUpsertVisitor(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := requestWorkspaceID(w, r)
	if !ok {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "visitor id is required")
		return
	}

	var request visitorUpsertRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	visitor, err := s.service.UpsertVisitor(r.Context(), repository.Visitor{
		ID:               id,
		WorkspaceID:      workspaceID,
		Email:            request.Email,
		Name:             request.Name,
		ExternalUserID:   request.ExternalUserID,
		CustomAttributes: request.CustomAttributes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, visitor)
}

func (s *HTTPServer) handleEligibility(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := requestWorkspaceID(w, r)
	if !ok {
		return
	}

	var request service.EligibilityRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	if strings.TrimSpace(request.VisitorID) == "" {
		writeJSONError(w, http.StatusBadRequest, "visitorId is required")
		return
	}

	results, err := s.service.CheckEligibility(r.Context(), workspaceID, request)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eligibilityResponse{Surfaces: results})
}

func (s *HTTPServer) handleTrackImpression(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := requestWorkspaceID(w, r)
	if !ok {
		return
	}

	var request service.TrackImpressionRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	if strings.TrimSpace(request.SurfaceID) == "" {
		writeJSONError(w, http.StatusBadRequest, "surfaceId is required")
		return
	}
	if strings.TrimSpace(request.VisitorID) == "" {
		writeJSONError(w, http.StatusBadRequest, "visitorId is required")
		return
	}

	result, err := s.service.TrackImpression(r.Context(), workspaceID, request)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handlePreviewSegment(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := requestWorkspaceID(w, r)
	if !ok {
		return
	}

	var request previewRequest
	if err := s.decodeJSONBody(w, r, &request); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	result, err := s.service.PreviewSegment(r.Context(), workspaceID, request.Rules)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metricsHandler == nil {
		writeJSONError(w, http.StatusNotFound, "metrics not configured")
		return
	}
	s.metricsHandler.ServeHTTP(w, r)
}

func requestWorkspaceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	workspaceID, ok := middleware.WorkspaceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workspaceID) == "" {
		writeJSONError(w, http.StatusUnauthorized, "workspace not resolved")
		return "", false
	}
	return workspaceID, true
}

func requestSurfaceID(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	workspaceID, ok := requestWorkspaceID(w, r)
	if !ok {
		return "", "", false
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "surface id is required")
		return "", "", false
	}

	return workspaceID, id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSurface),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidAttributes),
		errors.Is(err, core.ErrInvalidRule),
		errors.Is(err, core.ErrInvalidTrigger):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSurfaceNotFound):
		writeJSONError(w, http.StatusNotFound, "surface not found")
	case errors.Is(err, core.ErrIllegalTransition),
		errors.Is(err, service.ErrSurfaceNotActive),
		errors.Is(err, service.ErrSurfaceActive),
		errors.Is(err, service.ErrSurfaceInUse):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		writeJSONError(w, http.StatusRequestTimeout, "request canceled")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSONDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errJSONBodyTooLarge) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *HTTPServer) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxJSONBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return normalizeJSONDecodeError(err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("request body must contain a single JSON object")
		}
		return normalizeJSONDecodeError(err)
	}

	return nil
}

func normalizeJSONDecodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errJSONBodyTooLarge
	}
	return err
}
