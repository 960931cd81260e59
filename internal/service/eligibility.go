package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ben-hawker/nudgz/internal/core"
	"github.com/ben-hawker/nudgz/internal/repository"
)

// Eligibility stage outcomes, reported per surface evaluation.
const (
	OutcomeDelivered     = "delivered"
	OutcomeScheduleMiss  = "schedule_closed"
	OutcomeSuppressed    = "suppressed"
	OutcomeAudienceMiss  = "audience_miss"
	OutcomeTriggerMiss   = "trigger_unsatisfied"
	OutcomeCorruptConfig = "corrupt_config"
)

type EligibilityRequest struct {
	VisitorID string               `json:"visitorId"`
	SessionID string               `json:"sessionId,omitempty"`
	Context   core.DeliveryContext `json:"context"`
}

// EligibleSurface is the delivery summary returned for each surface that
// passed every stage. Trigger is echoed verbatim so clients arm it locally.
type EligibleSurface struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Priority int             `json:"priority"`
	Trigger  json.RawMessage `json:"trigger,omitempty"`
}

// CheckEligibility runs every active surface in the workspace through the
// status, schedule, suppression, audience, and trigger stages in that order,
// short-circuiting on the first failing stage. Results are grouped per
// surface type, each list ordered by priority (higher first, ties by
// creation). No arbitration happens across types.
//
// An unknown visitor evaluates against an empty attribute record, and a
// surface whose stored rules or trigger no longer parse is skipped without
// failing the call.
func (s *Service) CheckEligibility(ctx context.Context, workspaceID string, req EligibilityRequest) (map[string][]EligibleSurface, error) {
	now := req.Context.Now
	if now.IsZero() {
		now = s.now()
	}

	visitor := core.Visitor{ID: req.VisitorID}
	record, err := s.repo.GetVisitor(ctx, workspaceID, req.VisitorID)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("get visitor: %w", err)
	}
	if err == nil {
		visitor = visitorRecordToCore(record)
	}

	surfaces, err := s.repo.ListActiveSurfaces(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list active surfaces: %w", err)
	}

	surfaceIDs := make([]string, 0, len(surfaces))
	for _, surface := range surfaces {
		surfaceIDs = append(surfaceIDs, surface.ID)
	}

	facts := map[string]repository.SuppressionFacts{}
	if len(surfaceIDs) > 0 {
		facts, err = s.repo.SuppressionFactsFor(ctx, req.VisitorID, req.SessionID, surfaceIDs)
		if err != nil {
			return nil, fmt.Errorf("load suppression facts: %w", err)
		}
	}

	results := make(map[string][]EligibleSurface, len(core.SurfaceTypes))
	for _, surfaceType := range core.SurfaceTypes {
		results[string(surfaceType)] = []EligibleSurface{}
	}

	for _, surface := range surfaces {
		if core.Status(surface.Status) != core.StatusActive {
			continue
		}

		if !core.ScheduleOpen(surface.StartsAt, surface.EndsAt, now) {
			s.metrics.EligibilityOutcome(surface.Type, OutcomeScheduleMiss)
			continue
		}

		f := facts[surface.ID]
		suppression := core.Suppression{Terminal: f.Terminal, EverShown: f.EverShown, ShownThisSession: f.ShownThisSession}
		if core.Suppressed(core.Frequency(surface.Frequency), suppression, s.repeatUntilCompleted) {
			s.metrics.EligibilityOutcome(surface.Type, OutcomeSuppressed)
			continue
		}

		rule, err := core.ParseRule(surface.AudienceRules)
		if err != nil {
			s.logger.Warn("skipping surface with unparseable rules", "surface_id", surface.ID, "error", err)
			s.metrics.EligibilityOutcome(surface.Type, OutcomeCorruptConfig)
			continue
		}
		if !core.Evaluate(rule, visitor) {
			s.metrics.EligibilityOutcome(surface.Type, OutcomeAudienceMiss)
			continue
		}

		trigger, err := core.ParseTrigger(surface.Trigger)
		if err != nil {
			s.logger.Warn("skipping surface with unparseable trigger", "surface_id", surface.ID, "error", err)
			s.metrics.EligibilityOutcome(surface.Type, OutcomeCorruptConfig)
			continue
		}
		satisfied, err := trigger.Satisfied(req.Context)
		if err != nil {
			s.logger.Warn("skipping surface with unevaluable trigger", "surface_id", surface.ID, "error", err)
			s.metrics.EligibilityOutcome(surface.Type, OutcomeCorruptConfig)
			continue
		}
		if !satisfied {
			s.metrics.EligibilityOutcome(surface.Type, OutcomeTriggerMiss)
			continue
		}

		s.metrics.EligibilityOutcome(surface.Type, OutcomeDelivered)
		results[surface.Type] = append(results[surface.Type], EligibleSurface{
			ID:       surface.ID,
			Type:     surface.Type,
			Name:     surface.Name,
			Priority: surface.Priority,
			Trigger:  surface.Trigger,
		})
	}

	return results, nil
}
