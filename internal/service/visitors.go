package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ben-hawker/nudgz/internal/repository"
)

// UpsertVisitor creates or refreshes a visitor's attribute record. Custom
// attribute values must be JSON primitives; nested objects and arrays are
// rejected so rule evaluation stays a flat key lookup.
func (s *Service) UpsertVisitor(ctx context.Context, visitor repository.Visitor) (repository.Visitor, error) {
	if strings.TrimSpace(visitor.ID) == "" {
		return repository.Visitor{}, errors.New("visitor id is required")
	}
	if err := validateCustomAttributes(visitor.CustomAttributes); err != nil {
		return repository.Visitor{}, err
	}

	stored, err := s.repo.UpsertVisitor(ctx, visitor)
	if err != nil {
		return repository.Visitor{}, fmt.Errorf("upsert visitor: %w", err)
	}

	return stored, nil
}

func validateCustomAttributes(payload json.RawMessage) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}

	var attributes map[string]any
	if err := json.Unmarshal(payload, &attributes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttributes, err)
	}

	for key, value := range attributes {
		switch value.(type) {
		case nil, string, bool, float64:
		default:
			return fmt.Errorf("%w: attribute %q is not a primitive", ErrInvalidAttributes, key)
		}
	}

	return nil
}
