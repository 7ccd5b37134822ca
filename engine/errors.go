package engine

import "errors"

var (
	// ErrEngineClosed is returned by Run and Start after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrEmptyRequest is returned for a blank user request.
	ErrEmptyRequest = errors.New("request is empty")
	// ErrSessionCancelled is the failure of a session stopped with Cancel.
	ErrSessionCancelled = errors.New("session cancelled")
	// ErrSessionNotFound is returned by Cancel for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
)
