// Package domain contains the core data model of the colocation scheduler:
// core sets, job identity and lifecycle, colocation states, and the domain errors
// shared by every component.
package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a target process, job, or container cannot be located.
	ErrNotFound = errors.New("target not found")

	// ErrAlreadyExists is returned when trying to register a job that is already tracked.
	ErrAlreadyExists = errors.New("job already exists")

	// ErrInvalidArgument is returned when an invalid argument is provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransient is returned for observation failures that are expected to clear
	// on their own, such as a failed utilization sample. Callers skip the current
	// tick and retry on the next one.
	ErrTransient = errors.New("transient failure")

	// ErrOperationFailed is returned when an external action (affinity change,
	// container operation) fails permanently for this attempt.
	ErrOperationFailed = errors.New("operation failed")

	// ErrConflict is returned when an operation contradicts current bookkeeping,
	// for example stopping a timer that was never started.
	ErrConflict = errors.New("conflict with current state")
)
