package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ben-hawker/nudgz/internal/core"
	"github.com/ben-hawker/nudgz/internal/repository"
)

type TrackImpressionRequest struct {
	SurfaceID   string `json:"surfaceId"`
	VisitorID   string `json:"visitorId"`
	SessionID   string `json:"sessionId,omitempty"`
	Action      string `json:"action"`
	ScreenIndex *int   `json:"screenIndex,omitempty"`
	ButtonIndex *int   `json:"buttonIndex,omitempty"`
}

type TrackImpressionResult struct {
	ImpressionID string `json:"impressionId"`
	Deduped      bool   `json:"deduped,omitempty"`
}

// TrackImpression appends a delivery outcome to the impression log. Terminal
// actions (completed, dismissed) are idempotent per (surface, visitor): a
// replay of either terminal action returns the id of the first terminal
// record and writes nothing. A surface deleted concurrently with the write
// yields an empty id and no error, since the visitor-facing outcome already
// happened.
func (s *Service) TrackImpression(ctx context.Context, workspaceID string, req TrackImpressionRequest) (TrackImpressionResult, error) {
	action := core.Action(req.Action)
	if !action.Valid() {
		return TrackImpressionResult{}, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if strings.TrimSpace(req.VisitorID) == "" {
		return TrackImpressionResult{}, errors.New("visitor id is required")
	}

	surface, err := s.GetSurface(ctx, workspaceID, req.SurfaceID)
	if err != nil {
		return TrackImpressionResult{}, err
	}
	if core.Status(surface.Status) != core.StatusActive {
		return TrackImpressionResult{}, ErrSurfaceNotActive
	}

	impression := repository.Impression{
		SurfaceID:   surface.ID,
		VisitorID:   req.VisitorID,
		SessionID:   req.SessionID,
		Action:      req.Action,
		ScreenIndex: req.ScreenIndex,
		ButtonIndex: req.ButtonIndex,
	}

	var (
		id      string
		deduped bool
	)
	if action.Terminal() {
		id, deduped, err = s.repo.InsertTerminalImpression(ctx, impression)
	} else {
		id, err = s.repo.InsertImpression(ctx, impression)
	}
	if err != nil {
		if errors.Is(err, repository.ErrSurfaceDeleted) {
			return TrackImpressionResult{}, nil
		}
		return TrackImpressionResult{}, fmt.Errorf("record impression: %w", err)
	}

	s.metrics.ImpressionRecorded(req.Action, deduped)

	return TrackImpressionResult{ImpressionID: id, Deduped: deduped}, nil
}
