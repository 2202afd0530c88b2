package service

import "errors"

var (
	// ErrInference wraps every failure of an inference backend.
	ErrInference = errors.New("inference failed")

	// ErrNotAssigned is returned when no model is assigned to a service.
	ErrNotAssigned = errors.New("no model assigned")
)
