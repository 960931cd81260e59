package server

import (
	"context"
	"encoding/json"

	"github.com/ben-hawker/nudgz/internal/core"
	"github.com/ben-hawker/nudgz/internal/repository"
	"github.com/ben-hawker/nudgz/internal/service"
)

type Service interface {
	CreateSurface(ctx context.Context, surface repository.Surface) (repository.Surface, error)
	UpdateSurface(ctx context.Context, surface repository.Surface) (repository.Surface, error)
	GetSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error)
	ListSurfaces(ctx context.Context, workspaceID string) ([]repository.Surface, error)
	RemoveSurface(ctx context.Context, workspaceID, id string) error
	ActivateSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error)
	PauseSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error)
	ArchiveSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error)
	DuplicateSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error)
	SurfaceStats(ctx context.Context, workspaceID, id string) (core.Stats, error)
	UpsertVisitor(ctx context.Context, visitor repository.Visitor) (repository.Visitor, error)
	CheckEligibility(ctx context.Context, workspaceID string, req service.EligibilityRequest) (map[string][]service.EligibleSurface, error)
	TrackImpression(ctx context.Context, workspaceID string, req service.TrackImpressionRequest) (service.TrackImpressionResult, error)
	PreviewSegment(ctx context.Context, workspaceID string, rules json.RawMessage) (service.PreviewResult, error)
}

var _ Service = (*service.Service)(nil)
