// Package result implements the supplemental result backend of
// SPEC_FULL.md §4.9: a store independent of the job hash record, for
// callers in a different process than the worker that want to await
// completion without polling Queue.GetJob. Grounded on the teacher's
// internal/result package.
package result

import (
	"context"
	"time"

	"github.com/jetqueue/jetqueue/internal/job"
)

// Backend stores and retrieves job results, keyed by job ID.
type Backend interface {
	// StoreResult persists r, keyed by r.JobID.
	StoreResult(ctx context.Context, r *job.Result) error

	// GetResult returns the stored result for jobID, or (nil, nil) if none
	// exists (not yet complete, or its TTL expired).
	GetResult(ctx context.Context, jobID string) (*job.Result, error)

	// WaitForResult blocks until a result is stored for jobID or timeout
	// elapses. A nil, nil return means the timeout elapsed with no result.
	WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*job.Result, error)

	// DeleteResult removes jobID's result. Not an error if absent.
	DeleteResult(ctx context.Context, jobID string) error

	// Close releases any resources the backend holds.
	Close() error
}
