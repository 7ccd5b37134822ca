package session

import "errors"

var (
	// ErrNotFound is returned when no record exists for a session id.
	ErrNotFound = errors.New("session record not found")
	// ErrWriterClosed is returned by Enqueue after Close.
	ErrWriterClosed = errors.New("session writer closed")
)
