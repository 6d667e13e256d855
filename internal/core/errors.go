// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors following the wrap-and-match error handling pattern:
// callers wrap with fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	// Pipeline errors
	ErrPipelineStopped = errors.New("facerelay: pipeline stopped")

	// Frame handling errors
	ErrMissingParameter = errors.New("facerelay: missing face parameter")
	ErrNilFrame         = errors.New("facerelay: nil frame")

	// Transport errors
	ErrNotStarted = errors.New("facerelay: transport not started")
	ErrSendFailed = errors.New("facerelay: send failed")

	// Configuration errors
	ErrConfigInvalid = errors.New("facerelay: invalid configuration")
)
