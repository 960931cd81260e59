// Package core implements the pure targeting logic of the nudgz engine:
// audience rule evaluation, property resolution, trigger matching, schedule
// windows, suppression, and the surface lifecycle state machine. Nothing in
// this package touches storage or transport; every function is deterministic
// and safe for concurrent use.
package core

import "time"

// SurfaceType identifies the kind of outbound engagement surface.
type SurfaceType string

const (
	SurfaceTour     SurfaceType = "tour"
	SurfaceSurvey   SurfaceType = "survey"
	SurfaceCarousel SurfaceType = "carousel"
	SurfaceMessage  SurfaceType = "message"
)

// SurfaceTypes lists all supported surface types in catalog order.
var SurfaceTypes = []SurfaceType{SurfaceTour, SurfaceSurvey, SurfaceCarousel, SurfaceMessage}

// Valid reports whether t is a known surface type.
func (t SurfaceType) Valid() bool {
	switch t {
	case SurfaceTour, SurfaceSurvey, SurfaceCarousel, SurfaceMessage:
		return true
	default:
		return false
	}
}

// Status is a surface's lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusArchived:
		return true
	default:
		return false
	}
}

// Frequency controls how often a surface may be re-shown to the same visitor.
type Frequency string

const (
	FrequencyOnce           Frequency = "once"
	FrequencyOncePerSession Frequency = "once_per_session"
	FrequencyUntilCompleted Frequency = "until_completed"
)

// Valid reports whether f is a known frequency. The empty frequency is valid
// and behaves like once_per_session.
func (f Frequency) Valid() bool {
	switch f {
	case "", FrequencyOnce, FrequencyOncePerSession, FrequencyUntilCompleted:
		return true
	default:
		return false
	}
}

// Visitor is the resolved view of a visitor used for rule evaluation. System
// properties are fixed fields; CustomAttributes is an open, caller-controlled
// map whose values are JSON primitives.
type Visitor struct {
	ID               string         `json:"id"`
	Email            string         `json:"email,omitempty"`
	Name             string         `json:"name,omitempty"`
	ExternalUserID   string         `json:"externalUserId,omitempty"`
	CustomAttributes map[string]any `json:"customAttributes,omitempty"`
}

// DeliveryContext carries the situational inputs of one eligibility call.
type DeliveryContext struct {
	CurrentURL        string    `json:"currentUrl,omitempty"`
	TimeOnPageSeconds float64   `json:"timeOnPageSeconds,omitempty"`
	FiredEventName    string    `json:"firedEventName,omitempty"`
	Now               time.Time `json:"now,omitempty"`
}

// ScheduleOpen reports whether now falls inside the optional [start, end]
// window. Both bounds are inclusive at the boundary instant.
func ScheduleOpen(start, end *time.Time, now time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}
