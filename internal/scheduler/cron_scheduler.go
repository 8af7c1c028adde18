package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jetqueue/jetqueue/internal/job"
	"github.com/jetqueue/jetqueue/internal/logger"
)

// Enqueuer is the subset of *queue.Queue the scheduler needs. A schedule
// tick enqueues a brand-new job; it never touches the delayed/promoter
// mechanism.
type Enqueuer interface {
	Add(ctx context.Context, name string, data interface{}, opts job.Options) (*job.Job, error)
}

// CronScheduler ticks on Interval and enqueues every due, enabled Schedule
// in its Registry, guarded by a per-schedule distributed lock so only one
// of several cooperating processes fires a given tick.
type CronScheduler struct {
	registry *Registry
	queue    Enqueuer
	client   *redis.Client
	prefix   string
	interval time.Duration
	lockTTL  time.Duration
	log      logger.Logger
}

// NewCronScheduler builds a scheduler over registry, enqueuing through
// queue and coordinating locks/state through client. prefix namespaces the
// lock and state keys (e.g. a QueueConfig.Prefix); it defaults to "jet" if
// empty.
func NewCronScheduler(registry *Registry, queue Enqueuer, client *redis.Client, prefix string, interval time.Duration) *CronScheduler {
	if prefix == "" {
		prefix = "jet"
	}
	return &CronScheduler{
		registry: registry,
		queue:    queue,
		client:   client,
		prefix:   prefix,
		interval: interval,
		lockTTL:  60 * time.Second,
		log:      logger.Default().WithComponent(logger.ComponentScheduler),
	}
}

// SetLockTTL overrides the distributed lock's TTL (default 60s).
func (cs *CronScheduler) SetLockTTL(ttl time.Duration) {
	cs.lockTTL = ttl
}

// Start runs the tick loop until ctx is cancelled.
func (cs *CronScheduler) Start(ctx context.Context) {
	cs.log.Info("cron scheduler started", "interval", cs.interval, "schedules", cs.registry.Count())

	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cs.log.Info("cron scheduler stopping")
			return
		case <-ticker.C:
			cs.tick(ctx)
		}
	}
}

func (cs *CronScheduler) tick(ctx context.Context) {
	now := time.Now()
	for _, s := range cs.registry.List() {
		if !s.Enabled {
			continue
		}
		if cs.isDue(ctx, s, now) {
			cs.execute(ctx, s, now)
		}
	}
}

func (cs *CronScheduler) isDue(ctx context.Context, s *Schedule, now time.Time) bool {
	state, err := cs.getState(ctx, s.ID)
	if err != nil {
		cs.log.Error("failed to get schedule state", "schedule_id", s.ID, "error", err)
		return false
	}

	nextRun, err := cs.registry.NextRun(s, state.LastRun)
	if err != nil {
		cs.log.Error("failed to calculate next run", "schedule_id", s.ID, "error", err)
		return false
	}

	return now.After(nextRun.Add(-1*time.Second)) || now.Equal(nextRun)
}

func (cs *CronScheduler) execute(ctx context.Context, s *Schedule, now time.Time) {
	lock, err := AcquireLock(ctx, cs.client, cs.lockKey(s.ID), cs.lockTTL)
	if err != nil {
		cs.log.Error("failed to acquire schedule lock", "schedule_id", s.ID, "error", err)
		return
	}
	if lock == nil {
		cs.log.Debug("schedule already locked by another instance", "schedule_id", s.ID)
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			cs.log.Error("failed to release schedule lock", "schedule_id", s.ID, "error", err)
		}
	}()

	opts := s.Options
	opts.Delay = 0
	j, err := cs.queue.Add(ctx, s.JobName, s.Data, opts)
	if err != nil {
		cs.log.Error("failed to enqueue scheduled job", "schedule_id", s.ID, "job_name", s.JobName, "error", err)
		if updateErr := cs.updateState(ctx, s.ID, &State{ID: s.ID, LastRun: now, LastError: err.Error()}); updateErr != nil {
			cs.log.Warn("failed to update schedule state", "schedule_id", s.ID, "error", updateErr)
		}
		return
	}

	cs.log.Info("scheduled job enqueued", "schedule_id", s.ID, "job_name", s.JobName, "job_id", j.ID)

	nextRun, err := cs.registry.NextRun(s, now)
	if err != nil {
		cs.log.Error("failed to calculate next run time", "schedule_id", s.ID, "error", err)
		nextRun = time.Time{}
	}

	runCount := cs.incrementRunCount(ctx, s.ID)
	if updateErr := cs.updateState(ctx, s.ID, &State{
		ID:          s.ID,
		LastRun:     now,
		NextRun:     nextRun,
		LastSuccess: now,
		RunCount:    runCount,
	}); updateErr != nil {
		cs.log.Warn("failed to update schedule state", "schedule_id", s.ID, "error", updateErr)
	}
}

func (cs *CronScheduler) lockKey(scheduleID string) string {
	return fmt.Sprintf("%s:schedule_lock:%s", cs.prefix, scheduleID)
}

func (cs *CronScheduler) stateKey(scheduleID string) string {
	return fmt.Sprintf("%s:schedules:%s", cs.prefix, scheduleID)
}

func (cs *CronScheduler) getState(ctx context.Context, scheduleID string) (*State, error) {
	result, err := cs.client.HGetAll(ctx, cs.stateKey(scheduleID)).Result()
	if err != nil {
		return nil, fmt.Errorf("jetqueue: getting schedule state: %w", err)
	}
	if len(result) == 0 {
		return &State{ID: scheduleID}, nil
	}

	state := &State{ID: scheduleID}
	if v, ok := result["last_run"]; ok && v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			state.LastRun = parsed
		}
	}
	if v, ok := result["next_run"]; ok && v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			state.NextRun = parsed
		}
	}
	if v, ok := result["last_success"]; ok && v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			state.LastSuccess = parsed
		}
	}
	if v, ok := result["last_error"]; ok {
		state.LastError = v
	}
	if v, ok := result["run_count"]; ok && v != "" {
		var count int64
		if _, err := fmt.Sscanf(v, "%d", &count); err == nil {
			state.RunCount = count
		}
	}
	return state, nil
}

func (cs *CronScheduler) updateState(ctx context.Context, scheduleID string, state *State) error {
	key := cs.stateKey(scheduleID)
	fields := map[string]interface{}{
		"last_run": state.LastRun.Format(time.RFC3339),
	}
	if !state.NextRun.IsZero() {
		fields["next_run"] = state.NextRun.Format(time.RFC3339)
	}
	if !state.LastSuccess.IsZero() {
		fields["last_success"] = state.LastSuccess.Format(time.RFC3339)
	}
	if state.LastError != "" {
		fields["last_error"] = state.LastError
	} else {
		cs.client.HDel(ctx, key, "last_error")
	}
	return cs.client.HSet(ctx, key, fields).Err()
}

func (cs *CronScheduler) incrementRunCount(ctx context.Context, scheduleID string) int64 {
	count, err := cs.client.HIncrBy(ctx, cs.stateKey(scheduleID), "run_count", 1).Result()
	if err != nil {
		cs.log.Error("failed to increment run count", "schedule_id", scheduleID, "error", err)
		return 0
	}
	return count
}

// GetState exposes a schedule's persisted runtime state for monitoring.
func (cs *CronScheduler) GetState(ctx context.Context, scheduleID string) (*State, error) {
	return cs.getState(ctx, scheduleID)
}
