package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TriggerType discriminates the trigger variants.
type TriggerType string

const (
	TriggerImmediate  TriggerType = "immediate"
	TriggerPageVisit  TriggerType = "page_visit"
	TriggerTimeOnPage TriggerType = "time_on_page"
	TriggerEvent      TriggerType = "event"
)

// URLMatchMode controls how a page_visit trigger compares URLs.
type URLMatchMode string

const (
	MatchExact    URLMatchMode = "exact"
	MatchContains URLMatchMode = "contains"
	MatchRegex    URLMatchMode = "regex"
)

// Trigger is the situational condition a surface waits for before it may be
// delivered. Fields beyond Type apply only to the matching variant.
type Trigger struct {
	Type         TriggerType  `json:"type"`
	PageURL      string       `json:"pageUrl,omitempty"`
	MatchMode    URLMatchMode `json:"matchMode,omitempty"`
	DelaySeconds float64      `json:"delaySeconds,omitempty"`
	EventName    string       `json:"eventName,omitempty"`
}

var ErrInvalidTrigger = errors.New("invalid trigger")

// ParseTrigger decodes and validates a trigger document. A nil result with
// nil error means no trigger was configured; such surfaces deliver
// immediately.
func ParseTrigger(payload json.RawMessage) (*Trigger, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}

	var trigger Trigger
	if err := json.Unmarshal(payload, &trigger); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
	}
	if err := trigger.validate(); err != nil {
		return nil, err
	}

	return &trigger, nil
}

func (t *Trigger) validate() error {
	switch t.Type {
	case TriggerImmediate:
		return nil
	case TriggerPageVisit:
		if t.PageURL == "" {
			return fmt.Errorf("%w: page_visit requires pageUrl", ErrInvalidTrigger)
		}
		switch t.MatchMode {
		case MatchExact, MatchContains:
			return nil
		case MatchRegex:
			if _, err := regexp.Compile(t.PageURL); err != nil {
				return fmt.Errorf("%w: pageUrl regex: %v", ErrInvalidTrigger, err)
			}
			return nil
		default:
			return fmt.Errorf("%w: unknown matchMode %q", ErrInvalidTrigger, t.MatchMode)
		}
	case TriggerTimeOnPage:
		if t.DelaySeconds < 0 {
			return fmt.Errorf("%w: delaySeconds must be >= 0", ErrInvalidTrigger)
		}
		return nil
	case TriggerEvent:
		return nil
	default:
		return fmt.Errorf("%w: unknown trigger type %q", ErrInvalidTrigger, t.Type)
	}
}

// Satisfied reports whether the trigger fires for the given delivery context.
// A nil trigger behaves like immediate. Regex compilation failures are
// returned as errors so callers can fail the single surface without taking
// down the rest of the pipeline.
func (t *Trigger) Satisfied(ctx DeliveryContext) (bool, error) {
	if t == nil {
		return true, nil
	}

	switch t.Type {
	case TriggerImmediate:
		return true, nil
	case TriggerPageVisit:
		return t.pageVisitSatisfied(ctx.CurrentURL)
	case TriggerTimeOnPage:
		return ctx.TimeOnPageSeconds >= t.DelaySeconds, nil
	case TriggerEvent:
		if ctx.FiredEventName == "" {
			return false, nil
		}
		return t.EventName == "" || t.EventName == ctx.FiredEventName, nil
	default:
		return false, fmt.Errorf("%w: unknown trigger type %q", ErrInvalidTrigger, t.Type)
	}
}

func (t *Trigger) pageVisitSatisfied(currentURL string) (bool, error) {
	if currentURL == "" {
		return false, nil
	}

	switch t.MatchMode {
	case MatchExact:
		return currentURL == t.PageURL, nil
	case MatchContains:
		return strings.Contains(currentURL, t.PageURL), nil
	case MatchRegex:
		matched, err := regexp.MatchString(t.PageURL, currentURL)
		if err != nil {
			return false, fmt.Errorf("%w: pageUrl regex: %v", ErrInvalidTrigger, err)
		}
		return matched, nil
	default:
		return false, fmt.Errorf("%w: unknown matchMode %q", ErrInvalidTrigger, t.MatchMode)
	}
}
