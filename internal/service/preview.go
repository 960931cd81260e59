package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ben-hawker/nudgz/internal/core"
)

type PreviewResult struct {
	Matched int `json:"matched"`
	Sampled int `json:"sampled"`
}

// PreviewSegment evaluates a candidate rule document against a bounded sample
// of recently seen visitors. The counts are an editor-facing estimate, not an
// exact audience size.
func (s *Service) PreviewSegment(ctx context.Context, workspaceID string, rules json.RawMessage) (PreviewResult, error) {
	rule, err := core.ParseRule(rules)
	if err != nil {
		return PreviewResult{}, err
	}

	visitors, err := s.repo.SampleVisitors(ctx, workspaceID, s.previewSampleSize)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("sample visitors: %w", err)
	}

	result := PreviewResult{Sampled: len(visitors)}
	for _, visitor := range visitors {
		if core.Evaluate(rule, visitorRecordToCore(visitor)) {
			result.Matched++
		}
	}

	return result, nil
}
