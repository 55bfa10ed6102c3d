package scan

import (
	"fmt"

	"maintscan/internal/transition"
)

// IllegalTransitionError: the record exists but its current status is not
// in the active transition's allowed set. Carries the actual status so the
// operator sees where the item really is.
type IllegalTransitionError struct {
	TransitionLabel string
	CurrentStatus   transition.Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s not allowed: current status is %q", e.TransitionLabel, e.CurrentStatus)
}

// PersistenceError: validation passed but the status write failed. The
// record is assumed unchanged.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("status update failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
