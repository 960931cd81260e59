package service

import (
	"context"
	"fmt"

	"github.com/ben-hawker/nudgz/internal/core"
	"github.com/ben-hawker/nudgz/internal/repository"
)

// ActivateSurface moves a draft or paused surface into active status.
func (s *Service) ActivateSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error) {
	return s.transition(ctx, workspaceID, id, core.Activate)
}

// PauseSurface moves an active surface into paused status. Pausing a draft is
// an illegal transition and fails loudly.
func (s *Service) PauseSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error) {
	return s.transition(ctx, workspaceID, id, core.Pause)
}

// ArchiveSurface retires an active or paused surface. Archived is terminal.
func (s *Service) ArchiveSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error) {
	return s.transition(ctx, workspaceID, id, core.Archive)
}

func (s *Service) transition(ctx context.Context, workspaceID, id string, step func(core.Status) (core.Status, error)) (repository.Surface, error) {
	surface, err := s.GetSurface(ctx, workspaceID, id)
	if err != nil {
		return repository.Surface{}, err
	}

	next, err := step(core.Status(surface.Status))
	if err != nil {
		return repository.Surface{}, err
	}

	updated, err := s.repo.UpdateSurfaceStatus(ctx, workspaceID, id, string(next))
	if err != nil {
		if isNotFound(err) {
			return repository.Surface{}, ErrSurfaceNotFound
		}
		return repository.Surface{}, fmt.Errorf("update surface status: %w", err)
	}

	return updated, nil
}

// DuplicateSurface clones a surface into a fresh draft. Legal from any
// status, including archived; the copy carries no impression history.
func (s *Service) DuplicateSurface(ctx context.Context, workspaceID, id string) (repository.Surface, error) {
	source, err := s.GetSurface(ctx, workspaceID, id)
	if err != nil {
		return repository.Surface{}, err
	}

	clone := repository.Surface{
		WorkspaceID:   source.WorkspaceID,
		Type:          source.Type,
		Name:          source.Name + " (copy)",
		Description:   source.Description,
		Status:        string(core.StatusDraft),
		AudienceRules: source.AudienceRules,
		Trigger:       source.Trigger,
		Frequency:     source.Frequency,
		StartsAt:      source.StartsAt,
		EndsAt:        source.EndsAt,
		Priority:      source.Priority,
	}

	created, err := s.repo.CreateSurface(ctx, clone)
	if err != nil {
		return repository.Surface{}, fmt.Errorf("duplicate surface: %w", err)
	}

	return created, nil
}

// RemoveSurface deletes a surface. Active surfaces are never removable, and a
// non-archived surface that has recorded impressions is refused so live
// delivery history is not destroyed by accident.
func (s *Service) RemoveSurface(ctx context.Context, workspaceID, id string) error {
	surface, err := s.GetSurface(ctx, workspaceID, id)
	if err != nil {
		return err
	}

	status := core.Status(surface.Status)
	if !core.Removable(status) {
		return ErrSurfaceActive
	}
	if status != core.StatusArchived {
		inUse, err := s.repo.HasImpressions(ctx, surface.ID)
		if err != nil {
			return fmt.Errorf("check impressions: %w", err)
		}
		if inUse {
			return ErrSurfaceInUse
		}
	}

	if err := s.repo.DeleteSurface(ctx, workspaceID, id); err != nil {
		if isNotFound(err) {
			return ErrSurfaceNotFound
		}
		return fmt.Errorf("delete surface: %w", err)
	}

	return nil
}
