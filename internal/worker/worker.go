// Package worker implements the consumer side of the protocol: the
// dispatcher loop, the delayed-job promoter loop, per-job execution, the
// failure path, and worker control (spec.md §4.5). It is grounded on the
// teacher's Pool/Executor split (internal/worker/pool.go and executor.go)
// — a fixed-size worker loop driving a handler registry with panic recovery
// and per-job timeouts — generalized from the teacher's priority-queue
// dequeue and job-type routing down to the single moveToActive/
// promoteDelayed transitions spec.md mandates.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jetqueue/jetqueue/internal/config"
	jqerrors "github.com/jetqueue/jetqueue/internal/errors"
	"github.com/jetqueue/jetqueue/internal/events"
	"github.com/jetqueue/jetqueue/internal/job"
	"github.com/jetqueue/jetqueue/internal/keys"
	"github.com/jetqueue/jetqueue/internal/logger"
	"github.com/jetqueue/jetqueue/internal/metrics"
	"github.com/jetqueue/jetqueue/internal/registry"
	"github.com/jetqueue/jetqueue/internal/result"
	"github.com/jetqueue/jetqueue/internal/scripts"
)

const quiesceDelay = 50 * time.Millisecond

// Handler processes one job and returns the value recorded as returnValue.
type Handler func(ctx context.Context, j *job.Job) ([]byte, error)

type handlerResult struct {
	value []byte
	err   error
}

// Worker drives the dispatcher and promoter loops against a single queue.
type Worker struct {
	keys   keys.Space
	client *redis.Client
	scr    *scripts.Scripts
	opts   config.ConnectionOptions
	wcfg   config.WorkerConfig
	events *events.Emitter

	mu            sync.Mutex
	handler       Handler
	ctx           context.Context
	resultBackend result.Backend

	isRunning          atomic.Bool
	closed             atomic.Bool
	processedJobsCount atomic.Int64
	inFlight           sync.WaitGroup
	slots              chan struct{}
}

// New obtains a client from the registry, emits ready (or error then
// returns it), and returns the worker handle. It does not start any loops
// until Process installs a handler.
func New(ctx context.Context, name string, qcfg config.QueueConfig, connOpts config.ConnectionOptions, wcfg config.WorkerConfig, emitter *events.Emitter) (*Worker, error) {
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	if wcfg.Concurrency < 1 {
		wcfg.Concurrency = 1
	}
	if wcfg.PollInterval <= 0 {
		wcfg.PollInterval = config.DefaultWorkerConfig().PollInterval
	}
	if wcfg.SchedulerInterval <= 0 {
		wcfg.SchedulerInterval = config.DefaultWorkerConfig().SchedulerInterval
	}

	conn, err := registry.Get(ctx, connOpts)
	if err != nil {
		logger.Default().WithComponent(logger.ComponentWorker).Error("worker init failed", "queue", name, "error", err)
		emitter.Emit(events.Error, err)
		return nil, err
	}

	slots := make(chan struct{}, wcfg.Concurrency)
	for i := 0; i < wcfg.Concurrency; i++ {
		slots <- struct{}{}
	}

	w := &Worker{
		keys:   keys.New(qcfg.Prefix, name),
		client: conn.Client,
		scr:    conn.Scripts,
		opts:   connOpts,
		wcfg:   wcfg,
		events: emitter,
		slots:  slots,
	}
	emitter.Emit(events.Ready, nil)
	return w, nil
}

// Events returns the emitter for this worker.
func (w *Worker) Events() *events.Emitter { return w.events }

// Client exposes the underlying Redis client for components sharing this
// worker's connection (e.g. a result backend).
func (w *Worker) Client() *redis.Client { return w.client }

// SetResultBackend attaches an optional result store. Once set, every job
// that reaches a terminal completed or failed state (and whose record still
// exists) is mirrored there for callers awaiting it from another process,
// e.g. pkg/client.SubmitAndWait. Retries are intermediate, not terminal, and
// are never mirrored. Call before Process to avoid racing the first job.
func (w *Worker) SetResultBackend(b result.Backend) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resultBackend = b
}

// Process installs handler and starts the dispatcher and promoter loops.
// Installing a second handler fails with ErrHandlerAlreadySet.
func (w *Worker) Process(ctx context.Context, handler Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.handler != nil {
		return jqerrors.ErrHandlerAlreadySet
	}
	w.handler = handler
	w.ctx = ctx
	w.startLoopsLocked()
	return nil
}

func (w *Worker) startLoopsLocked() {
	w.isRunning.Store(true)
	go w.dispatchLoop(w.ctx)
	go w.promoteLoop(w.ctx)
}

// dispatchLoop implements spec.md §4.5's dispatcher iteration.
func (w *Worker) dispatchLoop(ctx context.Context) {
	for w.isRunning.Load() {
		select {
		case <-ctx.Done():
			return
		case <-w.slots:
		}

		if !w.isRunning.Load() {
			w.slots <- struct{}{}
			return
		}

		paused, err := w.isPaused(ctx)
		if err != nil {
			w.events.Emit(events.Error, err)
			w.slots <- struct{}{}
			time.Sleep(w.wcfg.PollInterval)
			continue
		}
		if paused {
			w.slots <- struct{}{}
			time.Sleep(w.wcfg.PollInterval)
			continue
		}

		id, err := w.scr.RunMoveToActive(ctx, w.client, w.keys.Waiting, w.keys.Active, w.keys.JobPrefix(), job.NowMs())
		if err != nil {
			logger.Default().WithComponent(logger.ComponentWorker).Error("moveToActive failed", "error", err)
			w.events.Emit(events.Error, err)
			w.slots <- struct{}{}
			time.Sleep(w.wcfg.PollInterval)
			continue
		}
		if id == "" {
			w.slots <- struct{}{}
			time.Sleep(w.wcfg.PollInterval)
			continue
		}

		metrics.Default().RecordWorkerActivity(int64(w.wcfg.Concurrency-len(w.slots)), int64(w.wcfg.Concurrency))

		w.inFlight.Add(1)
		go func(id string) {
			defer w.inFlight.Done()
			defer func() { w.slots <- struct{}{} }()
			w.executeJob(ctx, id)
		}(id)

		if w.bumpBudgetAndMaybeStop(1) {
			return
		}
	}
}

// promoteLoop implements spec.md §4.5.3.
func (w *Worker) promoteLoop(ctx context.Context) {
	for w.isRunning.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ids, err := w.scr.RunPromoteDelayed(ctx, w.client, w.keys.Delayed, w.keys.Waiting, job.NowMs())
		if err != nil {
			logger.Default().WithComponent(logger.ComponentWorker).Error("promoteDelayed failed", "error", err)
			w.events.Emit(events.Error, err)
			time.Sleep(w.wcfg.SchedulerInterval)
			continue
		}

		if len(ids) > 0 && w.bumpBudgetAndMaybeStop(int64(len(ids))) {
			return
		}

		time.Sleep(w.wcfg.SchedulerInterval)
	}
}

// bumpBudgetAndMaybeStop adds n to the shared job budget both loops draw
// from (spec.md §9: maxJobsPerWorker is counted once via a single shared
// counter) and, once the configured ceiling is reached, stops the worker.
func (w *Worker) bumpBudgetAndMaybeStop(n int64) (stopped bool) {
	if w.wcfg.MaxJobsPerWorker <= 0 {
		w.processedJobsCount.Add(n)
		return false
	}
	count := w.processedJobsCount.Add(n)
	if count < int64(w.wcfg.MaxJobsPerWorker) {
		return false
	}
	w.isRunning.Store(false)
	w.inFlight.Wait()
	w.events.Emit(events.Completed, "max jobs per worker reached")
	_ = w.Close(w.ctx)
	return true
}

func (w *Worker) isPaused(ctx context.Context) (bool, error) {
	n, err := w.client.Exists(ctx, w.keys.Paused).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (w *Worker) getJob(ctx context.Context, id string) (*job.Job, error) {
	raw, err := w.client.HGet(ctx, w.keys.Job(id), "data").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var j job.Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("%w: %v", jqerrors.ErrMalformedRecord, err)
	}
	return &j, nil
}

// executeJob implements spec.md §4.5.1.
func (w *Worker) executeJob(ctx context.Context, id string) {
	j, err := w.getJob(ctx, id)
	if err != nil {
		w.events.Emit(events.Error, err)
		return
	}
	if j == nil {
		// Removed while in flight; the only intentional data loss path.
		return
	}

	j.Status = job.StatusActive
	w.events.Emit(events.Processing, j)
	metrics.Default().RecordJobStarted()
	started := time.Now()

	jobCtx := ctx
	var cancel context.CancelFunc
	if j.Options.Timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, time.Duration(j.Options.Timeout)*time.Millisecond)
		defer cancel()
	}

	resultCh := make(chan handlerResult, 1)
	go func() {
		var res handlerResult
		defer func() {
			// recover must be called by the deferred function itself; a
			// helper called from here would see no panic.
			if r := recover(); r != nil {
				res = handlerResult{err: &jqerrors.PanicError{Value: r, Stacktrace: string(debug.Stack())}}
			}
			resultCh <- res
		}()
		rv, herr := w.handler(jobCtx, j)
		res = handlerResult{value: rv, err: herr}
	}()

	var res handlerResult
	select {
	case res = <-resultCh:
		if res.err != nil && j.Options.Timeout > 0 && jobCtx.Err() == context.DeadlineExceeded {
			// A context-aware handler can return its own error at the
			// deadline before this select sees jobCtx.Done.
			res.err = jqerrors.ErrHandlerTimeout
		}
	case <-jobCtx.Done():
		if j.Options.Timeout > 0 && jobCtx.Err() == context.DeadlineExceeded {
			res = handlerResult{err: jqerrors.ErrHandlerTimeout}
		} else {
			// Parent context cancelled (worker shutting down); abandon the
			// handler without touching job state.
			return
		}
	}

	if res.err != nil {
		w.handleFailure(ctx, j, res.err, time.Since(started))
		return
	}
	w.handleSuccess(ctx, j, res.value, time.Since(started))
}

func (w *Worker) handleSuccess(ctx context.Context, j *job.Job, rv []byte, duration time.Duration) {
	j.Status = job.StatusCompleted
	j.ReturnValue = rv
	metrics.Default().RecordJobCompleted(duration)

	var encoded []byte
	if !j.Options.RemoveOnComplete {
		var err error
		encoded, err = json.Marshal(j)
		if err != nil {
			w.events.Emit(events.Error, err)
			return
		}
	}

	existed, err := w.scr.RunFinalizeJob(ctx, w.client, w.keys.Job(j.ID), w.keys.Active, w.keys.Delayed, j.ID, j.Options.RemoveOnComplete, encoded, false, 0)
	if err != nil {
		w.events.Emit(events.Error, err)
		return
	}
	if !existed {
		// Removed from under us while the handler ran (Queue.RemoveJob); no
		// transition writes a record and no completed event fires for it.
		return
	}
	w.events.Emit(events.Completed, j)
	w.storeResult(ctx, j, nil, duration)
}

// handleFailure implements spec.md §4.5.2.
func (w *Worker) handleFailure(ctx context.Context, j *job.Job, handlerErr error, duration time.Duration) {
	metrics.Default().RecordJobFailed(duration)
	j.AttemptsMade++
	j.FailedReason = handlerErr.Error()
	j.StackTrace = append(j.StackTrace, handlerErr.Error())

	if j.AttemptsMade < j.Options.Attempts {
		delay := Backoff(j.AttemptsMade, j.Options.Backoff)
		j.Status = job.StatusDelayed
		encoded, merr := json.Marshal(j)
		if merr != nil {
			w.events.Emit(events.Error, merr)
			return
		}
		existed, err := w.scr.RunFinalizeJob(ctx, w.client, w.keys.Job(j.ID), w.keys.Active, w.keys.Delayed, j.ID, false, encoded, true, job.NowMs()+delay)
		if err != nil {
			w.events.Emit(events.Error, err)
			return
		}
		if !existed {
			return
		}
		w.events.Emit(events.Failed, j)
		w.events.Emit(events.Retrying, j)
		return
	}

	j.Status = job.StatusFailed
	var encoded []byte
	if !j.Options.RemoveOnFail {
		var merr error
		encoded, merr = json.Marshal(j)
		if merr != nil {
			w.events.Emit(events.Error, merr)
			return
		}
	}
	existed, err := w.scr.RunFinalizeJob(ctx, w.client, w.keys.Job(j.ID), w.keys.Active, w.keys.Delayed, j.ID, j.Options.RemoveOnFail, encoded, false, 0)
	if err != nil {
		w.events.Emit(events.Error, err)
		return
	}
	if !existed {
		return
	}
	w.events.Emit(events.Failed, j)
	w.storeResult(ctx, j, handlerErr, duration)
}

// storeResult mirrors a terminal outcome into the optional result backend.
// handlerErr is nil for a completed job. Best-effort: a storage failure is
// logged, never propagated, since the job's own record already holds the
// authoritative outcome.
func (w *Worker) storeResult(ctx context.Context, j *job.Job, handlerErr error, duration time.Duration) {
	w.mu.Lock()
	backend := w.resultBackend
	w.mu.Unlock()
	if backend == nil {
		return
	}

	res := &job.Result{
		JobID:       j.ID,
		CompletedAt: time.Now(),
		Duration:    duration,
	}
	if handlerErr != nil {
		res.Status = job.StatusFailed
		res.Error = handlerErr.Error()
	} else {
		res.Status = job.StatusCompleted
		res.ReturnValue = j.ReturnValue
		res.PayloadFormat = j.PayloadFormat
	}
	if err := backend.StoreResult(ctx, res); err != nil {
		logger.Default().WithComponent(logger.ComponentWorker).Warn("failed to store result", "job_id", j.ID, "error", err)
	}
}

// Pause clears isRunning; in-flight jobs continue to completion.
func (w *Worker) Pause(ctx context.Context) error {
	w.isRunning.Store(false)
	w.events.Emit(events.Paused, nil)
	return nil
}

// Resume restarts the dispatcher and promoter loops if not already running.
func (w *Worker) Resume(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning.Load() {
		return nil
	}
	if w.handler == nil {
		return nil
	}
	w.ctx = ctx
	w.startLoopsLocked()
	w.events.Emit(events.Resumed, nil)
	return nil
}

// Close clears isRunning, emits closed, waits out a short quiesce delay,
// then releases the shared client. Safe to call multiple times.
func (w *Worker) Close(ctx context.Context) error {
	w.isRunning.Store(false)
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.events.Emit(events.Closed, nil)
	time.Sleep(quiesceDelay)
	return registry.Release(w.opts)
}
