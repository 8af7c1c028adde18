// Package scripts holds the atomic Redis-side transitions the protocol
// depends on: moveToActive and promoteDelayed (spec.md §4.2), plus
// finalizeJob, the worker's guarded terminal write. All three are loaded
// once per client by the connection registry and invoked through
// redis.Script, which transparently prefers EVALSHA and falls back to EVAL
// on a cache miss — the same raw-Lua-over-client.Eval style the teacher
// repo uses for its FetchDue/purgeByStatus/CleanStaleJobs scripts and its
// scheduler lock's check-and-delete/check-and-extend scripts.
package scripts

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// moveToActiveSrc pops the tail of the waiting list, pushes it to the head
// of the active list, stamps the job hash's startedAt field, and returns
// the id (or false if waiting was empty).
const moveToActiveSrc = `
local id = redis.call('RPOP', KEYS[1])
if not id then
	return false
end
redis.call('LPUSH', KEYS[2], id)
local jobKey = KEYS[3] .. id
if redis.call('EXISTS', jobKey) == 1 then
	redis.call('HSET', jobKey, 'startedAt', ARGV[1])
end
return id
`

// promoteDelayedSrc moves every delayed id whose score is due into the
// waiting list and returns the set of promoted ids.
const promoteDelayedSrc = `
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for i = 1, #ids do
	redis.call('ZREM', KEYS[1], ids[i])
	redis.call('LPUSH', KEYS[2], ids[i])
end
return ids
`

// finalizeJobSrc removes id from active and, only if its job hash still
// exists, either deletes it or overwrites its data field (and, for a retry,
// re-adds it to delayed). A job record can vanish out from under a running
// handler via Queue.RemoveJob; this guard is what stops a terminal write from
// resurrecting it. Returns 1 if the hash existed, 0 otherwise.
const finalizeJobSrc = `
redis.call('LREM', KEYS[2], 0, ARGV[1])
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if ARGV[2] == '1' then
	redis.call('DEL', KEYS[1])
else
	redis.call('HSET', KEYS[1], 'data', ARGV[3])
end
if ARGV[4] == '1' then
	redis.call('ZADD', KEYS[3], ARGV[5], ARGV[1])
end
return 1
`

// Scripts bundles the compiled scripts for a single Redis client.
type Scripts struct {
	MoveToActive   *redis.Script
	PromoteDelayed *redis.Script
	FinalizeJob    *redis.Script
}

// New compiles the scripts. It does not touch the network; call Load to
// register them with a client.
func New() *Scripts {
	return &Scripts{
		MoveToActive:   redis.NewScript(moveToActiveSrc),
		PromoteDelayed: redis.NewScript(promoteDelayedSrc),
		FinalizeJob:    redis.NewScript(finalizeJobSrc),
	}
}

// Load registers every script with client so the first real invocation can
// use EVALSHA instead of paying to ship the source every time.
func (s *Scripts) Load(ctx context.Context, client redis.Scripter) error {
	if err := s.MoveToActive.Load(ctx, client).Err(); err != nil {
		return err
	}
	if err := s.PromoteDelayed.Load(ctx, client).Err(); err != nil {
		return err
	}
	return s.FinalizeJob.Load(ctx, client).Err()
}

// RunMoveToActive executes the moveToActive transition. It returns ("", nil)
// when the waiting list was empty.
func (s *Scripts) RunMoveToActive(ctx context.Context, client redis.Scripter, waitingKey, activeKey, jobPrefix string, nowMs int64) (string, error) {
	res, err := s.MoveToActive.Run(ctx, client, []string{waitingKey, activeKey, jobPrefix}, nowMs).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	id, ok := res.(string)
	if !ok {
		return "", nil
	}
	return id, nil
}

// RunPromoteDelayed executes the promoteDelayed transition, returning the ids
// that were moved from delayed into waiting.
func (s *Scripts) RunPromoteDelayed(ctx context.Context, client redis.Scripter, delayedKey, waitingKey string, nowMs int64) ([]string, error) {
	res, err := s.PromoteDelayed.Run(ctx, client, []string{delayedKey, waitingKey}, nowMs).Result()
	if err != nil {
		return nil, err
	}
	items, ok := res.([]interface{})
	if !ok {
		return nil, nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// RunFinalizeJob executes the finalizeJob transition: it always removes id
// from active, then either deletes or overwrites the job hash's data field
// (or, when requeue is true, overwrites it and re-adds id to delayed scored
// at requeueAt) but only if the hash still exists. existed reports whether
// the hash was present; callers use it to suppress terminal events for a job
// that was removed out from under an in-flight handler.
func (s *Scripts) RunFinalizeJob(ctx context.Context, client redis.Scripter, jobKey, activeKey, delayedKey, id string, remove bool, data []byte, requeue bool, requeueAt int64) (existed bool, err error) {
	removeArg := "0"
	if remove {
		removeArg = "1"
	}
	requeueArg := "0"
	if requeue {
		requeueArg = "1"
	}
	res, err := s.FinalizeJob.Run(ctx, client, []string{jobKey, activeKey, delayedKey}, id, removeArg, data, requeueArg, requeueAt).Result()
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}
