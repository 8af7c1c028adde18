package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// checkDeleteScript atomically releases a lock only if the caller still
// owns it (token matches), so a lock that expired and was re-acquired by
// another instance cannot be stolen out from under it.
const checkDeleteScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// checkExtendScript atomically extends a lock's TTL only if the caller
// still owns it.
const checkExtendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Lock is a Redis SETNX-based distributed lock ensuring only one
// cooperating scheduler instance executes a given schedule tick.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// AcquireLock attempts to take the lock at key. A nil, nil return means
// another instance currently holds it.
func AcquireLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	acquired, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("jetqueue: acquiring schedule lock: %w", err)
	}
	if !acquired {
		return nil, nil
	}
	return &Lock{client: client, key: key, token: token, ttl: ttl}, nil
}

// Release deletes the lock iff it is still owned by this Lock's token.
func (l *Lock) Release(ctx context.Context) error {
	return l.client.Eval(ctx, checkDeleteScript, []string{l.key}, l.token).Err()
}

// Extend pushes out the lock's TTL, failing if ownership was lost (e.g.
// the original TTL expired and another instance acquired it first).
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := l.client.Eval(ctx, checkExtendScript, []string{l.key}, l.token, ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if n, ok := res.(int64); ok && n == 0 {
		return fmt.Errorf("jetqueue: lock %s no longer owned by this instance", l.key)
	}
	l.ttl = ttl
	return nil
}

// Key returns the Redis key backing this lock.
func (l *Lock) Key() string { return l.key }

// Token returns the random value identifying this lock's owner.
func (l *Lock) Token() string { return l.token }
