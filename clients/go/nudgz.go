// Package nudgz provides client interfaces and domain types for the nudgz
// audience targeting service.
//
// Use the sub-package to create a transport-specific client:
//
//	import nudgzhttp "github.com/ben-hawker/nudgz/clients/go/http"
package nudgz

import (
	"context"
	"encoding/json"
	"time"
)

// SurfaceManager covers management operations on engagement surfaces.
type SurfaceManager interface {
	CreateSurface(ctx context.Context, surface Surface) (Surface, error)
	GetSurface(ctx context.Context, id string) (Surface, error)
	ListSurfaces(ctx context.Context) ([]Surface, error)
	UpdateSurface(ctx context.Context, surface Surface) (Surface, error)
	RemoveSurface(ctx context.Context, id string) error
	ActivateSurface(ctx context.Context, id string) (Surface, error)
	PauseSurface(ctx context.Context, id string) (Surface, error)
	ArchiveSurface(ctx context.Context, id string) (Surface, error)
	DuplicateSurface(ctx context.Context, id string) (Surface, error)
	SurfaceStats(ctx context.Context, id string) (Stats, error)
}

// Delivery covers the runtime endpoints a host application calls on behalf of
// its end users.
type Delivery interface {
	UpsertVisitor(ctx context.Context, visitor Visitor) (Visitor, error)
	CheckEligibility(ctx context.Context, req EligibilityRequest) (EligibilityResult, error)
	TrackImpression(ctx context.Context, req ImpressionRequest) (ImpressionResult, error)
	PreviewSegment(ctx context.Context, rules json.RawMessage) (PreviewResult, error)
}

// Surface is the domain representation of an engagement surface.
type Surface struct {
	ID            string
	Type          string // "tour" | "survey" | "carousel" | "message"
	Name          string
	Description   string
	Status        string          // "draft" | "active" | "paused" | "archived"
	AudienceRules json.RawMessage // may be nil
	Trigger       json.RawMessage // may be nil
	Frequency     string          // "once" | "once_per_session" | "until_completed"
	StartsAt      *time.Time
	EndsAt        *time.Time
	Priority      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Stats are the per-action impression counts and derived rates for a surface.
type Stats struct {
	Shown          int
	Clicked        int
	Completed      int
	Dismissed      int
	CompletionRate float64
	ClickRate      float64
}

// Visitor is an end user of the host application.
type Visitor struct {
	ID               string
	Email            string
	Name             string
	ExternalUserID   string
	CustomAttributes map[string]any // may be nil
}

// DeliveryContext carries the page state at eligibility check time.
type DeliveryContext struct {
	CurrentURL        string
	TimeOnPageSeconds float64
	FiredEventName    string
}

// EligibilityRequest asks which surfaces a visitor should see right now.
type EligibilityRequest struct {
	VisitorID string
	SessionID string
	Context   DeliveryContext
}

// EligibleSurface is one deliverable surface in an eligibility result.
type EligibleSurface struct {
	ID       string
	Type     string
	Name     string
	Priority int
	Trigger  json.RawMessage // may be nil
}

// EligibilityResult groups eligible surfaces by surface type. Every type key
// is present; types with nothing to deliver map to an empty slice.
type EligibilityResult struct {
	Surfaces map[string][]EligibleSurface
}

// ImpressionRequest records a delivery event for a surface and visitor.
type ImpressionRequest struct {
	SurfaceID   string
	VisitorID   string
	SessionID   string
	Action      string // "shown" | "clicked" | "completed" | "dismissed" | "screen_progressed"
	ScreenIndex *int
	ButtonIndex *int
}

// ImpressionResult reports the stored impression. Deduped is true when a
// terminal action had already been recorded for this surface and visitor.
type ImpressionResult struct {
	ImpressionID string
	Deduped      bool
}

// PreviewResult reports how many sampled visitors matched a rule set.
type PreviewResult struct {
	Matched int
	Sampled int
}
