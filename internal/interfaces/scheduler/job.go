package scheduler

import "context"

// Job is a unit of work executed by the worker pool.
type Job interface {
	// Execute must respect ctx cancellation.
	Execute(ctx context.Context) error

	// UserID is the profile the job acts on, used for logging and tracing.
	UserID() string

	Description() string
}

// JobProvider lists the jobs for one scheduled run.
type JobProvider func(ctx context.Context) ([]Job, error)
