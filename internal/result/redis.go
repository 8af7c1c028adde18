package result

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jetqueue/jetqueue/internal/job"
)

// RedisBackend implements Backend over a shared *redis.Client, notifying
// waiters through pub/sub the way the teacher's RedisBackend does.
type RedisBackend struct {
	client     *redis.Client
	prefix     string
	successTTL time.Duration
	failureTTL time.Duration
}

// NewRedisBackend returns a RedisBackend storing successful results for
// successTTL and failed results for failureTTL. prefix namespaces the keys
// (e.g. a QueueConfig.Prefix); it defaults to "jet" if empty.
func NewRedisBackend(client *redis.Client, prefix string, successTTL, failureTTL time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "jet"
	}
	return &RedisBackend{client: client, prefix: prefix, successTTL: successTTL, failureTTL: failureTTL}
}

func (r *RedisBackend) key(jobID string) string {
	return fmt.Sprintf("%s:result:%s", r.prefix, jobID)
}

func (r *RedisBackend) notifyChannel(jobID string) string {
	return fmt.Sprintf("%s:result:notify:%s", r.prefix, jobID)
}

// StoreResult writes res and publishes a "ready" notification in one
// pipeline, so a concurrent WaitForResult cannot observe the notification
// without the data already being readable.
func (r *RedisBackend) StoreResult(ctx context.Context, res *job.Result) error {
	data := map[string]interface{}{
		"status":       string(res.Status),
		"completed_at": res.CompletedAt.Format(time.RFC3339),
		"duration_ms":  res.Duration.Milliseconds(),
	}
	if res.IsSuccess() && len(res.ReturnValue) > 0 {
		data["result"] = res.ReturnValue
		data["format"] = int(res.PayloadFormat)
	}
	if res.IsFailed() && res.Error != "" {
		data["error"] = res.Error
	}

	ttl := r.successTTL
	if res.IsFailed() {
		ttl = r.failureTTL
	}

	key := r.key(res.JobID)
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, ttl)
	pipe.Publish(ctx, r.notifyChannel(res.JobID), "ready")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jetqueue: storing result for %s: %w", res.JobID, err)
	}
	return nil
}

// GetResult returns the stored result for jobID, or (nil, nil) if absent.
func (r *RedisBackend) GetResult(ctx context.Context, jobID string) (*job.Result, error) {
	data, err := r.client.HGetAll(ctx, r.key(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("jetqueue: getting result for %s: %w", jobID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	res := &job.Result{JobID: jobID}
	if v, ok := data["status"]; ok {
		res.Status = job.Status(v)
	}
	if v, ok := data["completed_at"]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			res.CompletedAt = t
		}
	}
	if v, ok := data["duration_ms"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			res.Duration = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := data["result"]; ok {
		res.ReturnValue = []byte(v)
	}
	if v, ok := data["format"]; ok {
		if f, err := strconv.Atoi(v); err == nil {
			res.PayloadFormat = byte(f)
		}
	}
	if v, ok := data["error"]; ok {
		res.Error = v
	}
	return res, nil
}

// WaitForResult polls for an already-stored result, then subscribes and
// blocks for up to timeout for a "ready" notification. It does not check
// again right after subscribing; a result stored between the first check
// and the subscription is returned by the final check when timeout elapses.
func (r *RedisBackend) WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*job.Result, error) {
	if res, err := r.GetResult(ctx, jobID); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pubsub := r.client.Subscribe(waitCtx, r.notifyChannel(jobID))
	defer pubsub.Close()

	select {
	case <-waitCtx.Done():
		return r.GetResult(ctx, jobID)
	case msg := <-pubsub.Channel():
		if msg != nil && msg.Payload == "ready" {
			return r.GetResult(ctx, jobID)
		}
		return nil, nil
	}
}

// DeleteResult removes jobID's stored result, if any.
func (r *RedisBackend) DeleteResult(ctx context.Context, jobID string) error {
	if err := r.client.Del(ctx, r.key(jobID)).Err(); err != nil {
		return fmt.Errorf("jetqueue: deleting result for %s: %w", jobID, err)
	}
	return nil
}

// Close is a no-op: the client is owned by the connection registry, not
// this backend.
func (r *RedisBackend) Close() error {
	return nil
}
