package queue

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jetqueue/jetqueue/internal/config"
	"github.com/jetqueue/jetqueue/internal/events"
	"github.com/jetqueue/jetqueue/internal/job"
	"github.com/jetqueue/jetqueue/internal/serialization"
)

func setupTestQueue(t *testing.T) (*miniredis.Miniredis, *Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Cleanup(mr.Close)

	host, portStr, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	connOpts := config.DefaultConnectionOptions()
	connOpts.Host = host
	connOpts.Port = port

	ctx := context.Background()
	q, err := New(ctx, "test-queue", config.QueueConfig{Name: "test-queue", Prefix: "jet"}, connOpts, job.DefaultOptions(), events.NewEmitter())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { q.Close(context.Background()) })
	return mr, q
}

func TestAdd_EnqueuesToWaitingByDefault(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	j, err := q.Add(ctx, "send_email", map[string]string{"to": "a@b.com"}, job.Options{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if j.Status != job.StatusWaiting {
		t.Errorf("Status = %v, want waiting", j.Status)
	}
	if j.ID == "" {
		t.Error("expected a non-empty job id")
	}

	count, err := q.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestAdd_DelayedGoesToDelayedState(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	j, err := q.Add(ctx, "send_email", nil, job.Options{Delay: 60_000})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if j.Status != job.StatusDelayed {
		t.Errorf("Status = %v, want delayed", j.Status)
	}
}

func TestAdd_RejectsWhenNotReady(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := q.Add(ctx, "x", nil, job.Options{}); err == nil {
		t.Error("expected error adding to a closed queue")
	}
}

func TestAdd_RejectsUnknownBackoffType(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()
	_, err := q.Add(ctx, "x", nil, job.Options{Backoff: job.Backoff{Type: "unknown"}})
	if err == nil {
		t.Error("expected error for unknown backoff type")
	}
}

func TestGetJob_RoundTrip(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	created, err := q.Add(ctx, "send_email", map[string]string{"to": "a@b.com"}, job.Options{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := q.GetJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("getJob: %v", err)
	}
	if got == nil || got.ID != created.ID || got.Name != "send_email" {
		t.Fatalf("got = %+v", got)
	}
}

func TestGetJob_MissingReturnsNilNil(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	got, err := q.GetJob(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("getJob: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestRemoveJob_DeletesRecordAndMembership(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	j, err := q.Add(ctx, "x", nil, job.Options{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := q.RemoveJob(ctx, j.ID); err != nil {
		t.Fatalf("removeJob: %v", err)
	}

	got, err := q.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("getJob: %v", err)
	}
	if got != nil {
		t.Error("expected job record to be gone after RemoveJob")
	}
	count, err := q.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestRemoveJob_MissingIDIsNotAnError(t *testing.T) {
	_, q := setupTestQueue(t)
	if err := q.RemoveJob(context.Background(), "ghost"); err != nil {
		t.Errorf("removeJob on missing id: %v", err)
	}
}

func TestPauseResumeIsPaused(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	paused, err := q.IsPaused(ctx)
	if err != nil {
		t.Fatalf("isPaused: %v", err)
	}
	if paused {
		t.Fatal("expected queue to start unpaused")
	}

	if err := q.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused, err = q.IsPaused(ctx)
	if err != nil {
		t.Fatalf("isPaused: %v", err)
	}
	if !paused {
		t.Error("expected queue to be paused")
	}

	if err := q.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	paused, err = q.IsPaused(ctx)
	if err != nil {
		t.Fatalf("isPaused: %v", err)
	}
	if paused {
		t.Error("expected queue to be unpaused after Resume")
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := q.Close(ctx); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestSetSerializer_TagsPayloadFormat(t *testing.T) {
	_, q := setupTestQueue(t)
	ctx := context.Background()

	q.SetSerializer(serialization.NewProtobufSerializer())
	j, err := q.Add(ctx, "x", wrapperspb.String("hi"), job.Options{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if j.PayloadFormat != byte(serialization.FormatProtobuf) {
		t.Errorf("PayloadFormat = %d, want %d", j.PayloadFormat, serialization.FormatProtobuf)
	}
}
