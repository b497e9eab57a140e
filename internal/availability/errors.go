package availability

import "errors"

var (
	// ErrInvalidRange is returned for malformed or unbounded time range queries.
	ErrInvalidRange = errors.New("invalid range")
	// ErrNotFound is returned when no opening exists within a bounded search horizon.
	ErrNotFound = errors.New("no opening found")
	// ErrMisconfiguredSchedule reports rules that cannot be resolved deterministically.
	ErrMisconfiguredSchedule = errors.New("misconfigured schedule")
)
