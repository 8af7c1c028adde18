// Package job defines the Job record and its lifecycle options.
package job

import (
	"time"

	"github.com/jetqueue/jetqueue/internal/serialization"
)

// Status is the current position of a Job in its lifecycle.
type Status string

const (
	// StatusWaiting indicates the job is eligible for immediate dispatch.
	StatusWaiting Status = "waiting"
	// StatusActive indicates a handler is currently executing the job.
	StatusActive Status = "active"
	// StatusDelayed indicates the job is scheduled for a future dispatch.
	StatusDelayed Status = "delayed"
	// StatusCompleted indicates the job finished successfully. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job exhausted its attempts. Terminal.
	StatusFailed Status = "failed"
)

// BackoffType selects the retry delay formula used by Options.Backoff.
type BackoffType string

const (
	// BackoffFixed retries after the same delay every time.
	BackoffFixed BackoffType = "fixed"
	// BackoffExponential doubles the delay on each successive retry.
	BackoffExponential BackoffType = "exponential"
)

// Backoff configures the delay inserted between retry attempts.
type Backoff struct {
	Type  BackoffType `json:"type,omitempty"`
	Delay int64       `json:"delay,omitempty"` // milliseconds
}

// Options controls enqueue-time and retry behavior. Frozen at enqueue
// except for the retry counters tracked on Job itself.
type Options struct {
	// Attempts is the maximum total number of execution attempts. Default 1.
	Attempts int `json:"attempts,omitempty"`
	// Backoff configures the retry delay. Zero value means no backoff (0ms).
	Backoff Backoff `json:"backoff,omitempty"`
	// Delay, if > 0, enqueues the job in the delayed state this many
	// milliseconds in the future.
	Delay int64 `json:"delay,omitempty"`
	// Timeout caps a single attempt's wall-clock time in milliseconds.
	// Zero or absent means no cap.
	Timeout int64 `json:"timeout,omitempty"`
	// RemoveOnComplete deletes the job record on success.
	RemoveOnComplete bool `json:"removeOnComplete,omitempty"`
	// RemoveOnFail deletes the job record on terminal failure.
	RemoveOnFail bool `json:"removeOnFail,omitempty"`
	// Priority is recognized but unused by the core dispatch loop.
	Priority int `json:"priority,omitempty"`
}

// DefaultOptions returns the Options applied when the caller supplies none.
func DefaultOptions() Options {
	return Options{Attempts: 1}
}

// merge overlays non-zero fields of o onto a copy of defaults and returns it.
func (o Options) merge(defaults Options) Options {
	out := defaults
	if o.Attempts != 0 {
		out.Attempts = o.Attempts
	}
	if o.Backoff.Type != "" {
		out.Backoff = o.Backoff
	}
	if o.Delay != 0 {
		out.Delay = o.Delay
	}
	if o.Timeout != 0 {
		out.Timeout = o.Timeout
	}
	if o.RemoveOnComplete {
		out.RemoveOnComplete = true
	}
	if o.RemoveOnFail {
		out.RemoveOnFail = true
	}
	if o.Priority != 0 {
		out.Priority = o.Priority
	}
	if out.Attempts < 1 {
		out.Attempts = 1
	}
	return out
}

// Merge returns options with o's explicitly set fields layered over
// defaultOptions, matching spec.md §4.4 ("Merges options over
// defaultJobOptions").
func Merge(opts, defaultOptions Options) Options {
	return opts.merge(defaultOptions)
}

// Job is the central entity: one unit of work with a payload, scheduling
// options, and lifecycle state.
type Job struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Data         []byte   `json:"data"`
	Options      Options  `json:"options"`
	CreatedAt    int64    `json:"createdAt"` // epoch ms
	Status       Status   `json:"status"`
	AttemptsMade int      `json:"attemptsMade"`
	FailedReason string   `json:"failedReason,omitempty"`
	StackTrace   []string `json:"stackTrace,omitempty"`
	// ReturnValue and Data are raw bytes, base64-encoded by the outer JSON
	// envelope, so either can hold a protobuf payload tagged by
	// PayloadFormat instead of plain JSON.
	ReturnValue   []byte `json:"returnValue,omitempty"`
	PayloadFormat byte   `json:"payloadFormat,omitempty"`
}

// NowMs returns the current time as epoch milliseconds.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// Clone returns a deep copy of the job, safe to hand to callers that may
// mutate it.
func (j *Job) Clone() *Job {
	out := *j
	if j.Data != nil {
		out.Data = append([]byte(nil), j.Data...)
	}
	if j.ReturnValue != nil {
		out.ReturnValue = append([]byte(nil), j.ReturnValue...)
	}
	if j.StackTrace != nil {
		out.StackTrace = append([]string(nil), j.StackTrace...)
	}
	return &out
}

// UnmarshalData decodes the job's payload into dest, using the format
// tagged by the leading byte of Data (see internal/serialization).
func (j *Job) UnmarshalData(dest interface{}) error {
	var s serialization.Serializer
	return s.Unmarshal(j.Data, dest)
}
