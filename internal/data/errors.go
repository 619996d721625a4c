// Package data implements the Postgres repositories behind the core ports.
package data

import "errors"

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrHistoryNotFound is returned when a job history is not found.
	ErrHistoryNotFound = errors.New("job history not found")
	// ErrWorkerNotFound is returned when a worker token does not match a registered worker.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrJobConflict is returned when a job is not in a state that permits the
	// requested transition.
	ErrJobConflict = errors.New("job state does not permit this transition")
	// ErrJobNotDeletable is returned when attempting to delete an in-progress job.
	ErrJobNotDeletable = errors.New("job cannot be deleted while in progress")
)
