// Package http provides an HTTP client for the nudgz audience targeting
// service.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	nudgz "github.com/ben-hawker/nudgz/clients/go"
)

// Config holds configuration for the HTTP client.
type Config struct {
	// BaseURL is the base URL of the nudgz server, e.g. "http://localhost:8080".
	BaseURL string
	// APIKey is the bearer token in "id.secret" format.
	APIKey string
	// HTTPClient is optional; defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client implements nudgz.SurfaceManager and nudgz.Delivery over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPClient returns a new HTTP client for the nudgz service.
func NewHTTPClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: hc}
}

// -- wire types --------------------------------------------------------------

type wireSurface struct {
	ID            string          `json:"id,omitempty"`
	Type          string          `json:"type,omitempty"`
	Name          string          `json:"name,omitempty"`
	Description   string          `json:"description,omitempty"`
	Status        string          `json:"status,omitempty"`
	AudienceRules json.RawMessage `json:"audience_rules,omitempty"`
	Trigger       json.RawMessage `json:"trigger,omitempty"`
	Frequency     string          `json:"frequency,omitempty"`
	StartsAt      *time.Time      `json:"starts_at,omitempty"`
	EndsAt        *time.Time      `json:"ends_at,omitempty"`
	Priority      int             `json:"priority,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

type wireStats struct {
	Shown          int     `json:"shown"`
	Clicked        int     `json:"clicked"`
	Completed      int     `json:"completed"`
	Dismissed      int     `json:"dismissed"`
	CompletionRate float64 `json:"completionRate"`
	ClickRate      float64 `json:"clickRate"`
}

type wireVisitorUpsert struct {
	Email            string         `json:"email,omitempty"`
	Name             string         `json:"name,omitempty"`
	ExternalUserID   string         `json:"externalUserId,omitempty"`
	CustomAttributes map[string]any `json:"customAttributes,omitempty"`
}

type wireVisitor struct {
	ID               string          `json:"id"`
	Email            string          `json:"email,omitempty"`
	Name             string          `json:"name,omitempty"`
	ExternalUserID   string          `json:"external_user_id,omitempty"`
	CustomAttributes json.RawMessage `json:"custom_attributes,omitempty"`
}

type wireDeliveryContext struct {
	CurrentURL        string  `json:"currentUrl,omitempty"`
	TimeOnPageSeconds float64 `json:"timeOnPageSeconds,omitempty"`
	FiredEventName    string  `json:"firedEventName,omitempty"`
}

type wireEligibilityReq struct {
	VisitorID string              `json:"visitorId"`
	SessionID string              `json:"sessionId,omitempty"`
	Context   wireDeliveryContext `json:"context"`
}

type wireEligibleSurface struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Priority int             `json:"priority"`
	Trigger  json.RawMessage `json:"trigger,omitempty"`
}

type wireEligibilityResp struct {
	Surfaces map[string][]wireEligibleSurface `json:"surfaces"`
}

type wireImpressionReq struct {
	SurfaceID   string `json:"surfaceId"`
	VisitorID   string `json:"visitorId"`
	SessionID   string `json:"sessionId,omitempty"`
	Action      string `json:"action"`
	ScreenIndex *int   `json:"screenIndex,omitempty"`
	ButtonIndex *int   `json:"buttonIndex,omitempty"`
}

type wireImpressionResp struct {
	ImpressionID string `json:"impressionId"`
	Deduped      bool   `json:"deduped"`
}

type wirePreviewReq struct {
	Rules json.RawMessage `json:"rules,omitempty"`
}

type wirePreviewResp struct {
	Matched int `json:"matched"`
	Sampled int `json:"sampled"`
}

// -- helpers -----------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("nudgz: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("nudgz: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nudgz: http: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("nudgz: decode response: %w", err)
	}
	return nil
}

// APIError is returned when the server responds with an HTTP error status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nudgz: HTTP %d: %s", e.StatusCode, e.Message)
}

func decodeSurface(ws wireSurface) nudgz.Surface {
	s := nudgz.Surface{
		ID:            ws.ID,
		Type:          ws.Type,
		Name:          ws.Name,
		Description:   ws.Description,
		Status:        ws.Status,
		AudienceRules: ws.AudienceRules,
		Trigger:       ws.Trigger,
		Frequency:     ws.Frequency,
		StartsAt:      ws.StartsAt,
		EndsAt:        ws.EndsAt,
		Priority:      ws.Priority,
	}
	if ws.CreatedAt != nil {
		s.CreatedAt = *ws.CreatedAt
	}
	if ws.UpdatedAt != nil {
		s.UpdatedAt = *ws.UpdatedAt
	}
	return s
}

func encodeSurface(s nudgz.Surface) wireSurface {
	return wireSurface{
		ID:            s.ID,
		Type:          s.Type,
		Name:          s.Name,
		Description:   s.Description,
		AudienceRules: s.AudienceRules,
		Trigger:       s.Trigger,
		Frequency:     s.Frequency,
		StartsAt:      s.StartsAt,
		EndsAt:        s.EndsAt,
		Priority:      s.Priority,
	}
}

func surfacePath(id string) string {
	return "/v1/surfaces/" + url.PathEscape(id)
}

// -- SurfaceManager ----------------------------------------------------------

func (c *Client) CreateSurface(ctx context.Context, surface nudgz.Surface) (nudgz.Surface, error) {
	var out wireSurface
	if err := c.doJSON(ctx, http.MethodPost, "/v1/surfaces", encodeSurface(surface), &out); err != nil {
		return nudgz.Surface{}, err
	}
	return decodeSurface(out), nil
}

func (c *Client) GetSurface(ctx context.Context, id string) (nudgz.Surface, error) {
	var out wireSurface
	if err := c.doJSON(ctx, http.MethodGet, surfacePath(id), nil, &out); err != nil {
		return nudgz.Surface{}, err
	}
	return decodeSurface(out), nil
}

func (c *Client) ListSurfaces(ctx context.Context) ([]nudgz.Surface, error) {
	var out []wireSurface
	if err := c.doJSON(ctx, http.MethodGet, "/v1/surfaces", nil, &out); err != nil {
		return nil, err
	}
	surfaces := make([]nudgz.Surface, 0, len(out))
	for _, ws := range out {
		surfaces = append(surfaces, decodeSurface(ws))
	}
	return surfaces, nil
}

func (c *Client) UpdateSurface(ctx context.Context, surface nudgz.Surface) (nudgz.Surface, error) {
	var out wireSurface
	if err := c.doJSON(ctx, http.MethodPut, surfacePath(surface.ID), encodeSurface(surface), &out); err != nil {
		return nudgz.Surface{}, err
	}
	return decodeSurface(out), nil
}

func (c *Client) RemoveSurface(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, surfacePath(id), nil, nil)
}

func (c *Client) ActivateSurface(ctx context.Context, id string) (nudgz.Surface, error) {
	return c.transition(ctx, id, "activate")
}

func (c *Client) PauseSurface(ctx context.Context, id string) (nudgz.Surface, error) {
	return c.transition(ctx, id, "pause")
}

func (c *Client) ArchiveSurface(ctx context.Context, id string) (nudgz.Surface, error) {
	return c.transition(ctx, id, "archive")
}

func (c *Client) DuplicateSurface(ctx context.Context, id string) (nudgz.Surface, error) {
	return c.transition(ctx, id, "duplicate")
}

func (c *Client) transition(ctx context.Context, id, verb string) (nudgz.Surface, error) {
	var out wireSurface
	if err := c.doJSON(ctx, http.MethodPost, surfacePath(id)+"/"+verb, nil, &out); err != nil {
		return nudgz.Surface{}, err
	}
	return decodeSurface(out), nil
}

func (c *Client) SurfaceStats(ctx context.Context, id string) (nudgz.Stats, error) {
	var out wireStats
	if err := c.doJSON(ctx, http.MethodGet, surfacePath(id)+"/stats", nil, &out); err != nil {
		return nudgz.Stats{}, err
	}
	return nudgz.Stats{
		Shown:          out.Shown,
		Clicked:        out.Clicked,
		Completed:      out.Completed,
		Dismissed:      out.Dismissed,
		CompletionRate: out.CompletionRate,
		ClickRate:      out.ClickRate,
	}, nil
}

// -- Delivery ----------------------------------------------------------------

func (c *Client) UpsertVisitor(ctx context.Context, visitor nudgz.Visitor) (nudgz.Visitor, error) {
	body := wireVisitorUpsert{
		Email:            visitor.Email,
		Name:             visitor.Name,
		ExternalUserID:   visitor.ExternalUserID,
		CustomAttributes: visitor.CustomAttributes,
	}
	var out wireVisitor
	if err := c.doJSON(ctx, http.MethodPut, "/v1/visitors/"+url.PathEscape(visitor.ID), body, &out); err != nil {
		return nudgz.Visitor{}, err
	}

	result := nudgz.Visitor{
		ID:             out.ID,
		Email:          out.Email,
		Name:           out.Name,
		ExternalUserID: out.ExternalUserID,
	}
	if len(out.CustomAttributes) > 0 && string(out.CustomAttributes) != "null" {
		if err := json.Unmarshal(out.CustomAttributes, &result.CustomAttributes); err != nil {
			return result, fmt.Errorf("nudgz: decode custom attributes: %w", err)
		}
	}
	return result, nil
}

func (c *Client) CheckEligibility(ctx context.Context, req nudgz.EligibilityRequest) (nudgz.EligibilityResult, error) {
	body := wireEligibilityReq{
		VisitorID: req.VisitorID,
		SessionID: req.SessionID,
		Context: wireDeliveryContext{
			CurrentURL:        req.Context.CurrentURL,
			TimeOnPageSeconds: req.Context.TimeOnPageSeconds,
			FiredEventName:    req.Context.FiredEventName,
		},
	}
	var out wireEligibilityResp
	if err := c.doJSON(ctx, http.MethodPost, "/v1/eligibility", body, &out); err != nil {
		return nudgz.EligibilityResult{}, err
	}

	result := nudgz.EligibilityResult{Surfaces: make(map[string][]nudgz.EligibleSurface, len(out.Surfaces))}
	for surfaceType, entries := range out.Surfaces {
		surfaces := make([]nudgz.EligibleSurface, 0, len(entries))
		for _, e := range entries {
			surfaces = append(surfaces, nudgz.EligibleSurface{
				ID:       e.ID,
				Type:     e.Type,
				Name:     e.Name,
				Priority: e.Priority,
				Trigger:  e.Trigger,
			})
		}
		result.Surfaces[surfaceType] = surfaces
	}
	return result, nil
}

func (c *Client) TrackImpression(ctx context.Context, req nudgz.ImpressionRequest) (nudgz.ImpressionResult, error) {
	body := wireImpressionReq{
		SurfaceID:   req.SurfaceID,
		VisitorID:   req.VisitorID,
		SessionID:   req.SessionID,
		Action:      req.Action,
		ScreenIndex: req.ScreenIndex,
		ButtonIndex: req.ButtonIndex,
	}
	var out wireImpressionResp
	if err := c.doJSON(ctx, http.MethodPost, "/v1/impressions", body, &out); err != nil {
		return nudgz.ImpressionResult{}, err
	}
	return nudgz.ImpressionResult{ImpressionID: out.ImpressionID, Deduped: out.Deduped}, nil
}

func (c *Client) PreviewSegment(ctx context.Context, rules json.RawMessage) (nudgz.PreviewResult, error) {
	var out wirePreviewResp
	if err := c.doJSON(ctx, http.MethodPost, "/v1/segments/preview", wirePreviewReq{Rules: rules}, &out); err != nil {
		return nudgz.PreviewResult{}, err
	}
	return nudgz.PreviewResult{Matched: out.Matched, Sampled: out.Sampled}, nil
}
