package job

import (
	"time"
)

// Result is a snapshot of a job's outcome, independent of the job hash
// itself. Used by the supplemental result backend (internal/result) for
// callers that want to await completion from a different process.
//
// ReturnValue is plain []byte, not json.RawMessage: like Job.ReturnValue it
// may hold a protobuf-encoded payload tagged by PayloadFormat rather than
// valid JSON.
type Result struct {
	JobID         string        `json:"job_id"`
	Status        Status        `json:"status"`
	ReturnValue   []byte        `json:"return_value,omitempty"`
	PayloadFormat byte          `json:"payload_format,omitempty"`
	Error         string        `json:"error,omitempty"`
	CompletedAt   time.Time     `json:"completed_at"`
	Duration      time.Duration `json:"duration"`
}

// IsSuccess reports whether the result represents a completed job.
func (r *Result) IsSuccess() bool {
	return r.Status == StatusCompleted
}

// IsFailed reports whether the result represents a terminally failed job.
func (r *Result) IsFailed() bool {
	return r.Status == StatusFailed
}
