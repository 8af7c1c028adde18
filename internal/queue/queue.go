// Package queue implements the producer side of the protocol: add, getJob,
// removeJob, pause/resume/isPaused, count, close (spec.md §4.4). It is
// grounded on the teacher's RedisQueue (internal/queue/redis.go) — the
// pipelined Enqueue/Complete/Fail style, the pre-computed key fields, and
// the "close marks not-ready and never closes a client other holders still
// use" shape —
// generalized from the teacher's three priority lanes down to the single
// waiting/active/delayed/paused key-space spec.md defines.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jetqueue/jetqueue/internal/config"
	jqerrors "github.com/jetqueue/jetqueue/internal/errors"
	"github.com/jetqueue/jetqueue/internal/events"
	"github.com/jetqueue/jetqueue/internal/job"
	"github.com/jetqueue/jetqueue/internal/keys"
	"github.com/jetqueue/jetqueue/internal/registry"
	"github.com/jetqueue/jetqueue/internal/scripts"
	"github.com/jetqueue/jetqueue/internal/serialization"
)

// Queue is the producer handle for a single named queue.
type Queue struct {
	name   string
	keys   keys.Space
	client *redis.Client
	scr    *scripts.Scripts
	opts   config.ConnectionOptions

	defaultOptions job.Options
	events         *events.Emitter
	serializer     *serialization.Serializer

	ready  atomic.Bool
	closed atomic.Bool
}

// SetSerializer installs a non-default payload serializer (e.g. protobuf).
// Without a call to this, Add encodes Data as JSON.
func (q *Queue) SetSerializer(s *serialization.Serializer) {
	q.serializer = s
}

// New connects to Redis (via the shared registry), emits ready or error,
// and returns the producer handle. defaultOptions are merged under every
// Add call per spec.md §4.4.
func New(ctx context.Context, name string, qcfg config.QueueConfig, connOpts config.ConnectionOptions, defaultOptions job.Options, emitter *events.Emitter) (*Queue, error) {
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	conn, err := registry.Get(ctx, connOpts)
	if err != nil {
		emitter.Emit(events.Error, err)
		return nil, err
	}

	q := &Queue{
		name:           name,
		keys:           keys.New(qcfg.Prefix, name),
		client:         conn.Client,
		scr:            conn.Scripts,
		opts:           connOpts,
		defaultOptions: defaultOptions,
		events:         emitter,
		serializer:     serialization.NewJSONSerializer(),
	}
	q.ready.Store(true)
	emitter.Emit(events.Ready, nil)
	return q, nil
}

// Events returns the emitter other components (e.g. a Worker sharing this
// queue) can subscribe to.
func (q *Queue) Events() *events.Emitter { return q.events }

// Keys exposes the queue's key space for components that need direct access
// (the worker's dispatcher and promoter loops).
func (q *Queue) Keys() keys.Space { return q.keys }

// Client exposes the underlying Redis client for components that need to
// issue their own commands against the same connection (the worker).
func (q *Queue) Client() *redis.Client { return q.client }

// Scripts exposes the loaded moveToActive/promoteDelayed scripts.
func (q *Queue) Scripts() *scripts.Scripts { return q.scr }

// Add enqueues a new job. Status is delayed iff the merged options carry a
// positive delay, otherwise waiting.
func (q *Queue) Add(ctx context.Context, name string, data interface{}, opts job.Options) (*job.Job, error) {
	if !q.ready.Load() {
		return nil, jqerrors.ErrQueueNotReady
	}

	raw, err := q.serializer.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("jetqueue: marshaling job data: %w", err)
	}
	format := byte(q.serializer.DefaultFormat)

	merged := job.Merge(opts, q.defaultOptions)
	switch merged.Backoff.Type {
	case "", job.BackoffFixed, job.BackoffExponential:
	default:
		return nil, fmt.Errorf("%w: %q", jqerrors.ErrUnknownBackoffType, merged.Backoff.Type)
	}
	status := job.StatusWaiting
	if merged.Delay > 0 {
		status = job.StatusDelayed
	}

	j := &job.Job{
		ID:            uuid.NewString(),
		Name:          name,
		Data:          raw,
		Options:       merged,
		CreatedAt:     job.NowMs(),
		Status:        status,
		PayloadFormat: format,
	}

	encoded, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("jetqueue: marshaling job record: %w", err)
	}

	jobKey := q.keys.Job(j.ID)
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, jobKey, "data", encoded)
		if status == job.StatusDelayed {
			pipe.ZAdd(ctx, q.keys.Delayed, redis.Z{
				Score:  float64(j.CreatedAt + merged.Delay),
				Member: j.ID,
			})
		} else {
			pipe.LPush(ctx, q.keys.Waiting, j.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("jetqueue: enqueuing job: %w", err)
	}

	q.events.Emit(events.Added, j)
	return j, nil
}

// GetJob returns the job for id, or (nil, nil) if it does not exist. A
// malformed hash record yields a queue-category error rather than a job
// error: absence is expected, corruption is not.
func (q *Queue) GetJob(ctx context.Context, id string) (*job.Job, error) {
	raw, err := q.client.HGet(ctx, q.keys.Job(id), "data").Result()
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

// RemoveJob deletes id from every collection and its hash record. It is
// idempotent: removing an id that no longer exists is not an error.
func (q *Queue) RemoveJob(ctx context.Context, id string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.keys.Waiting, 0, id)
		pipe.LRem(ctx, q.keys.Active, 0, id)
		pipe.ZRem(ctx, q.keys.Delayed, id)
		pipe.Del(ctx, q.keys.Job(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("jetqueue: removing job %s: %w", id, err)
	}
	q.events.Emit(events.Removed, id)
	return nil
}

// Pause sets the pause flag. Dispatch loops consult it each iteration;
// Add is unaffected.
func (q *Queue) Pause(ctx context.Context) error {
	if err := q.client.Set(ctx, q.keys.Paused, "1", 0).Err(); err != nil {
		return err
	}
	q.events.Emit(events.Paused, nil)
	return nil
}

// Resume clears the pause flag.
func (q *Queue) Resume(ctx context.Context) error {
	if err := q.client.Del(ctx, q.keys.Paused).Err(); err != nil {
		return err
	}
	q.events.Emit(events.Resumed, nil)
	return nil
}

// IsPaused reports whether the pause flag is currently set.
func (q *Queue) IsPaused(ctx context.Context) (bool, error) {
	n, err := q.client.Exists(ctx, q.keys.Paused).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Count returns waiting + active + delayed cardinality as one pipelined,
// non-atomic snapshot.
func (q *Queue) Count(ctx context.Context) (int64, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, q.keys.Waiting)
	active := pipe.LLen(ctx, q.keys.Active)
	delayed := pipe.ZCard(ctx, q.keys.Delayed)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return waiting.Val() + active.Val() + delayed.Val(), nil
}

// Close marks the producer not-ready, emits closed, and releases this
// queue's reference to the registry-owned Redis client. The registry closes
// the client only once no other holder remains.
func (q *Queue) Close(ctx context.Context) error {
	q.ready.Store(false)
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	q.events.Emit(events.Closed, nil)
	return registry.Release(q.opts)
}
