// Package service implements the delivery engine's operations on top of the
// repository: surface management, the eligibility pipeline, impression
// recording, stats, and segment preview.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ben-hawker/nudgz/internal/core"
	"github.com/ben-hawker/nudgz/internal/repository"
)

const defaultPreviewSampleSize = 1000

var (
	ErrSurfaceNotFound   = errors.New("surface not found")
	ErrSurfaceNotActive  = errors.New("surface not active")
	ErrSurfaceActive     = errors.New("surface is active")
	ErrSurfaceInUse      = errors.New("surface has recorded impressions")
	ErrInvalidSurface    = errors.New("invalid surface")
	ErrInvalidAction     = errors.New("invalid impression action")
	ErrInvalidAttributes = errors.New("invalid visitor attributes")
)

type Repository interface {
	CreateSurface(ctx context.Context, surface repository.Surface) (repository.Surface, error)
	UpdateSurface(ctx context.Context, surface repository.Surface) (repository.Surface, error)
	UpdateSurfaceStatus(ctx context.Context, workspaceID, id, status string) (repository.Surface, error)
	GetSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error)
	ListSurfaces(ctx context.Context, workspaceID string) ([]repository.Surface, error)
	ListActiveSurfaces(ctx context.Context, workspaceID string) ([]repository.Surface, error)
	DeleteSurface(ctx context.Context, workspaceID, id string) error
	HasImpressions(ctx context.Context, surfaceID string) (bool, error)

	UpsertVisitor(ctx context.Context, visitor repository.Visitor) (repository.Visitor, error)
	GetVisitor(ctx context.Context, workspaceID, id string) (repository.Visitor, error)
	SampleVisitors(ctx context.Context, workspaceID string, limit int) ([]repository.Visitor, error)

	InsertImpression(ctx context.Context, impression repository.Impression) (string, error)
	InsertTerminalImpression(ctx context.Context, impression repository.Impression) (string, bool, error)
	SuppressionFactsFor(ctx context.Context, visitorID, sessionID string, surfaceIDs []string) (map[string]repository.SuppressionFacts, error)
	CountImpressionsByAction(ctx context.Context, surfaceID string) (map[string]int, error)
}

// Metrics receives delivery decision counters. Implementations must be safe
// for concurrent use.
type Metrics interface {
	EligibilityOutcome(surfaceType, outcome string)
	ImpressionRecorded(action string, deduped bool)
}

type noopMetrics struct{}

func (noopMetrics) EligibilityOutcome(string, string) {}
func (noopMetrics) ImpressionRecorded(string, bool)   {}

// Options tune engine behavior. The zero value is usable.
type Options struct {
	Logger  *slog.Logger
	Metrics Metrics
	// Now overrides the wall clock for schedule checks.
	Now func() time.Time
	// PreviewSampleSize bounds the visitor sample used by segment preview.
	PreviewSampleSize int
	// RepeatUntilCompleted lets until_completed surfaces reappear within the
	// same session until a terminal impression lands.
	RepeatUntilCompleted bool
}

type Service struct {
	repo                 Repository
	logger               *slog.Logger
	metrics              Metrics
	now                  func() time.Time
	previewSampleSize    int
	repeatUntilCompleted bool
}

func New(repo Repository, opts Options) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repository is nil")
	}

	svc := &Service{
		repo:                 repo,
		logger:               opts.Logger,
		metrics:              opts.Metrics,
		now:                  opts.Now,
		previewSampleSize:    opts.PreviewSampleSize,
		repeatUntilCompleted: opts.RepeatUntilCompleted,
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.metrics == nil {
		svc.metrics = noopMetrics{}
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.previewSampleSize <= 0 {
		svc.previewSampleSize = defaultPreviewSampleSize
	}

	return svc, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// visitorRecordToCore resolves a stored visitor into the evaluation view. A
// corrupt attribute document degrades to an empty attribute map rather than
// failing the caller.
func visitorRecordToCore(visitor repository.Visitor) core.Visitor {
	resolved := core.Visitor{
		ID:             visitor.ID,
		Email:          visitor.Email,
		Name:           visitor.Name,
		ExternalUserID: visitor.ExternalUserID,
	}
	if len(visitor.CustomAttributes) > 0 {
		_ = json.Unmarshal(visitor.CustomAttributes, &resolved.CustomAttributes)
	}

	return resolved
}

func wrapInvalidSurface(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidSurface, err)
}
