package store

import "errors"

var (
	// ErrNotFound: no record for the given maintenance number. Distinct
	// from transport errors so callers can give operator feedback.
	ErrNotFound = errors.New("maintenance record not found")
	// ErrConflict: the record's status changed underneath a guarded
	// update; the write was not applied.
	ErrConflict = errors.New("record status changed concurrently")
	// ErrExists: intake attempted with a maintenance number already in use.
	ErrExists = errors.New("maintenance number already exists")
)
