package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ben-hawker/nudgz/internal/core"
	"github.com/ben-hawker/nudgz/internal/repository"
)

// CreateSurface stores a new surface in draft status. Rules and trigger are
// validated up front so nothing unparseable ever reaches the pipeline.
func (s *Service) CreateSurface(ctx context.Context, surface repository.Surface) (repository.Surface, error) {
	if err := validateSurface(surface); err != nil {
		return repository.Surface{}, err
	}

	surface.Status = string(core.StatusDraft)
	created, err := s.repo.CreateSurface(ctx, surface)
	if err != nil {
		return repository.Surface{}, fmt.Errorf("create surface: %w", err)
	}

	return created, nil
}

// UpdateSurface replaces a surface's mutable fields. Status is never changed
// here; lifecycle transitions go through their own operations.
func (s *Service) UpdateSurface(ctx context.Context, surface repository.Surface) (repository.Surface, error) {
	if err := validateSurface(surface); err != nil {
		return repository.Surface{}, err
	}

	updated, err := s.repo.UpdateSurface(ctx, surface)
	if err != nil {
		if isNotFound(err) {
			return repository.Surface{}, ErrSurfaceNotFound
		}
		return repository.Surface{}, fmt.Errorf("update surface: %w", err)
	}

	return updated, nil
}

func (s *Service) GetSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error) {
	surface, err := s.repo.GetSurface(ctx, workspaceID, id)
	if err != nil {
		if isNotFound(err) {
			return repository.Surface{}, ErrSurfaceNotFound
		}
		return repository.Surface{}, fmt.Errorf("get surface: %w", err)
	}

	return surface, nil
}

func (s *Service) ListSurfaces(ctx context.Context, workspaceID string) ([]repository.Surface, error) {
	surfaces, err := s.repo.ListSurfaces(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list surfaces: %w", err)
	}

	return surfaces, nil
}

// SurfaceStats folds the surface's impression log into aggregate counts and
// rates. Always recomputed from the log, never cached.
func (s *Service) SurfaceStats(ctx context.Context, workspaceID, id string) (core.Stats, error) {
	surface, err := s.GetSurface(ctx, workspaceID, id)
	if err != nil {
		return core.Stats{}, err
	}

	rawCounts, err := s.repo.CountImpressionsByAction(ctx, surface.ID)
	if err != nil {
		return core.Stats{}, fmt.Errorf("count impressions: %w", err)
	}

	counts := make(map[core.Action]int, len(rawCounts))
	for action, count := range rawCounts {
		counts[core.Action(action)] = count
	}

	return core.StatsFromCounts(counts), nil
}

func validateSurface(surface repository.Surface) error {
	if strings.TrimSpace(surface.Name) == "" {
		return wrapInvalidSurface(errors.New("name is required"))
	}
	if !core.SurfaceType(surface.Type).Valid() {
		return wrapInvalidSurface(fmt.Errorf("unknown surface type %q", surface.Type))
	}
	if !core.Frequency(surface.Frequency).Valid() {
		return wrapInvalidSurface(fmt.Errorf("unknown frequency %q", surface.Frequency))
	}
	if _, err := core.ParseRule(surface.AudienceRules); err != nil {
		return err
	}
	if _, err := core.ParseTrigger(surface.Trigger); err != nil {
		return err
	}

	return nil
}
