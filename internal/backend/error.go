package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound     = errors.New("backend not found in registry")
	ErrEmptyInput   = errors.New("backend received empty input")
	ErrEmptyOutput  = errors.New("backend produced no output")
	ErrUnconfigured = errors.New("backend is not configured")
)
