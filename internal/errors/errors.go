// Package errors holds the sentinel error values grouped into the three
// categories spec.md §7 names: connection/queue, job, and worker errors.
package errors

import "errors"

// Connection/queue errors: failure to reach Redis, enqueue into a not-ready
// queue, or malformed records. Surfaced to the caller and to `error`
// observers.
var (
	ErrQueueNotReady   = errors.New("jetqueue: queue is not ready")
	ErrQueueClosed     = errors.New("jetqueue: queue is closed")
	ErrConnectionSetup = errors.New("jetqueue: failed to establish redis connection")
	ErrMalformedRecord = errors.New("jetqueue: malformed job record")
)

// Job errors: operations targeting a missing or malformed id.
var (
	ErrJobNotFound = errors.New("jetqueue: job not found")
)

// Worker errors: initialization failure, duplicate handler registration,
// handler timeouts.
var (
	ErrWorkerInit        = errors.New("jetqueue: worker initialization failed")
	ErrHandlerAlreadySet = errors.New("jetqueue: worker already has a handler installed")
	// ErrHandlerTimeout carries the exact failedReason text a timed-out job
	// records, unprefixed unlike the other sentinels here.
	ErrHandlerTimeout     = errors.New("Job timeout")
	ErrUnknownBackoffType = errors.New("jetqueue: unknown backoff type")
)
