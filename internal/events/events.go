// Package events is the in-process observer surface both Queue and Worker
// publish to: ready, added, processing, completed, failed, retrying, paused,
// resumed, closed, removed, error (spec.md §4.7). It is a plain callback
// registry, not Redis-transported — the teacher's result backend publishes
// completion over a Redis pub/sub channel (internal/result/redis.go), but
// that mechanism exists to notify a *different process*; here the emitter
// and its subscribers live in the same process, so a guarded map of
// callbacks is the idiomatic fit.
package events

import "sync"

// Name identifies one of the fixed event kinds a Queue or Worker emits.
type Name string

const (
	Ready      Name = "ready"
	Added      Name = "added"
	Processing Name = "processing"
	Completed  Name = "completed"
	Failed     Name = "failed"
	Retrying   Name = "retrying"
	Paused     Name = "paused"
	Resumed    Name = "resumed"
	Closed     Name = "closed"
	Removed    Name = "removed"
	Error      Name = "error"
)

// Handler receives the payload associated with an emitted event. Its shape
// depends on Name: job-related events pass a *job.Job, Removed passes the
// removed job's id string, Completed passes a summary string instead of a
// job when a worker stops at its MaxJobsPerWorker budget, Error passes an
// error, the rest pass nil. Handlers run synchronously on the emitting
// goroutine and must not block.
type Handler func(payload interface{})

// Emitter is a guarded multimap of event name to subscribed handlers.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[Name][]Handler)}
}

// On registers handler to run whenever name is emitted. Returns a function
// that removes the handler when called.
func (e *Emitter) On(name Name, handler Handler) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = append(e.handlers[name], handler)
	idx := len(e.handlers[name]) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		hs := e.handlers[name]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}
}

// Emit invokes every handler registered for name with payload. Panics in a
// handler are not recovered here; they propagate to the goroutine that
// called Emit.
func (e *Emitter) Emit(name Name, payload interface{}) {
	e.mu.RLock()
	hs := make([]Handler, len(e.handlers[name]))
	copy(hs, e.handlers[name])
	e.mu.RUnlock()

	for _, h := range hs {
		if h != nil {
			h(payload)
		}
	}
}
