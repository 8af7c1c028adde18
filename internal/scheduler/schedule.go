// Package scheduler implements recurring cron-triggered enqueues
// (SPEC_FULL.md §4.8), distinct from the delayed-job promoter: a Schedule
// fires on a calendar expression and enqueues a brand-new job each tick,
// rather than moving an already-existing job between states. Grounded on
// the teacher's internal/scheduler package.
package scheduler

import (
	"time"

	"github.com/jetqueue/jetqueue/internal/job"
)

// Schedule is one named recurring job definition.
type Schedule struct {
	// ID uniquely identifies the schedule within a Registry.
	ID string

	// Cron is a standard 5-field expression (minute hour dom month dow).
	Cron string

	// JobName is the job name enqueued on every fire (matched against a
	// Worker's handler the way any other Queue.Add job name is).
	JobName string

	// Data is the job payload passed to Queue.Add verbatim.
	Data interface{}

	// Options carries per-fire job options (attempts, backoff, timeout);
	// Delay is ignored since the schedule itself controls timing.
	Options job.Options

	// Timezone is an IANA zone name; empty means UTC.
	Timezone string

	// Enabled allows disabling a schedule without removing it.
	Enabled bool

	// Description is a free-text label; the scheduler does not read or log
	// it.
	Description string
}

// State is the runtime bookkeeping for a Schedule, persisted in Redis so
// multiple cooperating scheduler instances agree on what has already run.
type State struct {
	ID          string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	LastError   string
	LastSuccess time.Time
}
