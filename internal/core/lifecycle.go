package core

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned for lifecycle transitions the state
// machine forbids. Illegal transitions always fail loudly; a silent no-op
// would mask authoring bugs such as pausing a surface that was never live.
var ErrIllegalTransition = errors.New("illegal status transition")

// Activate returns the status after activating a surface. Legal from draft
// and paused only.
func Activate(current Status) (Status, error) {
	switch current {
	case StatusDraft, StatusPaused:
		return StatusActive, nil
	case StatusActive:
		return "", fmt.Errorf("%w: surface is already active", ErrIllegalTransition)
	default:
		return "", fmt.Errorf("%w: cannot activate a %s surface", ErrIllegalTransition, current)
	}
}

// Pause returns the status after pausing a surface. Legal only from active.
func Pause(current Status) (Status, error) {
	if current != StatusActive {
		return "", fmt.Errorf("%w: cannot pause a %s surface", ErrIllegalTransition, current)
	}
	return StatusPaused, nil
}

// Archive returns the status after archiving a surface. Archived is terminal
// and reachable from active or paused.
func Archive(current Status) (Status, error) {
	switch current {
	case StatusActive, StatusPaused:
		return StatusArchived, nil
	default:
		return "", fmt.Errorf("%w: cannot archive a %s surface", ErrIllegalTransition, current)
	}
}

// Removable reports whether a surface in the given status may be deleted.
// Active surfaces are never removable.
func Removable(current Status) bool {
	switch current {
	case StatusDraft, StatusPaused, StatusArchived:
		return true
	default:
		return false
	}
}
