// Package metrics is an in-process counter/gauge collector, adapted from
// the teacher's singleton Collector (internal/metrics/metrics.go) and
// re-keyed by queue name instead of priority tier, since the core dispatch
// path has no priority lanes (spec.md §4.4 keeps Options.Priority reserved
// but unused).
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jetqueue/jetqueue/internal/job"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// Collector tracks process-wide job and worker metrics in memory.
type Collector struct {
	totalJobsProcessed atomic.Int64
	totalJobsCompleted atomic.Int64
	totalJobsFailed    atomic.Int64

	mu             sync.RWMutex
	jobsByStatus   map[job.Status]int64
	queueDepths    map[string]int64
	totalDuration  time.Duration
	startTime      time.Time
	activeWorkers  int64
	totalWorkers   int64
	errorCount     int64
	operationCount int64
}

// Snapshot is a point-in-time read of the collector's state.
type Snapshot struct {
	TotalJobsProcessed int64                `json:"total_jobs_processed"`
	TotalJobsCompleted int64                `json:"total_jobs_completed"`
	TotalJobsFailed    int64                `json:"total_jobs_failed"`
	JobsByStatus       map[job.Status]int64 `json:"jobs_by_status"`
	QueueDepths        map[string]int64     `json:"queue_depths"`
	AvgJobDuration     time.Duration        `json:"avg_job_duration"`
	WorkerUtilization  float64              `json:"worker_utilization"`
	ErrorRate          float64              `json:"error_rate"`
	Uptime             time.Duration        `json:"uptime"`
}

// Default returns the process-wide collector, creating it on first use.
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// NewCollector returns an independent collector, useful in tests that must
// not share state with the process-wide Default.
func NewCollector() *Collector {
	return &Collector{
		jobsByStatus: make(map[job.Status]int64),
		queueDepths:  make(map[string]int64),
		startTime:    time.Now(),
	}
}

// RecordJobStarted marks one job transitioning into active.
func (c *Collector) RecordJobStarted() {
	c.totalJobsProcessed.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsByStatus[job.StatusActive]++
}

// RecordJobCompleted records a successful completion and its duration.
func (c *Collector) RecordJobCompleted(duration time.Duration) {
	c.totalJobsCompleted.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsByStatus[job.StatusActive]--
	c.jobsByStatus[job.StatusCompleted]++
	c.totalDuration += duration
	c.operationCount++
}

// RecordJobFailed records one failed attempt and its duration, whether the
// job will be retried or has failed terminally.
func (c *Collector) RecordJobFailed(duration time.Duration) {
	c.totalJobsFailed.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsByStatus[job.StatusActive]--
	c.jobsByStatus[job.StatusFailed]++
	c.totalDuration += duration
	c.operationCount++
	c.errorCount++
}

// RecordQueueDepth updates the last-observed depth for a named queue.
func (c *Collector) RecordQueueDepth(queueName string, depth int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueDepths[queueName] = depth
}

// RecordWorkerActivity updates the active/total worker gauge pair.
func (c *Collector) RecordWorkerActivity(active, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeWorkers = active
	c.totalWorkers = total
}

// Snapshot returns a copy of the current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	jobsByStatus := make(map[job.Status]int64, len(c.jobsByStatus))
	for k, v := range c.jobsByStatus {
		jobsByStatus[k] = v
	}
	queueDepths := make(map[string]int64, len(c.queueDepths))
	for k, v := range c.queueDepths {
		queueDepths[k] = v
	}

	var avgDuration time.Duration
	if c.operationCount > 0 {
		avgDuration = c.totalDuration / time.Duration(c.operationCount)
	}
	var utilization float64
	if c.totalWorkers > 0 {
		utilization = float64(c.activeWorkers) / float64(c.totalWorkers) * 100
	}
	var errorRate float64
	if c.operationCount > 0 {
		errorRate = float64(c.errorCount) / float64(c.operationCount) * 100
	}

	return Snapshot{
		TotalJobsProcessed: c.totalJobsProcessed.Load(),
		TotalJobsCompleted: c.totalJobsCompleted.Load(),
		TotalJobsFailed:    c.totalJobsFailed.Load(),
		JobsByStatus:       jobsByStatus,
		QueueDepths:        queueDepths,
		AvgJobDuration:     avgDuration,
		WorkerUtilization:  utilization,
		ErrorRate:          errorRate,
		Uptime:             time.Since(c.startTime),
	}
}

// Reset clears all metrics. Intended for test teardown.
func (c *Collector) Reset() {
	c.totalJobsProcessed.Store(0)
	c.totalJobsCompleted.Store(0)
	c.totalJobsFailed.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobsByStatus = make(map[job.Status]int64)
	c.queueDepths = make(map[string]int64)
	c.totalDuration = 0
	c.startTime = time.Now()
	c.activeWorkers = 0
	c.totalWorkers = 0
	c.errorCount = 0
	c.operationCount = 0
}
