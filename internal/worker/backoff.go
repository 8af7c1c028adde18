package worker

import "github.com/jetqueue/jetqueue/internal/job"

// Backoff computes the retry delay in milliseconds, per spec.md §4.6.
// attemptsMade is the count after incrementing (≥1).
func Backoff(attemptsMade int, b job.Backoff) int64 {
	switch b.Type {
	case job.BackoffFixed:
		return b.Delay
	case job.BackoffExponential:
		return b.Delay * (1 << uint(attemptsMade-1))
	default:
		return 0
	}
}
