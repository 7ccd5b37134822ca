package artifact

import "errors"

var (
	// ErrNotFound is returned when no data file with the given id exists.
	ErrNotFound = errors.New("data file not found")
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = errors.New("data file too large")
)
