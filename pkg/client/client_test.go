package client

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jetqueue/jetqueue/internal/config"
	"github.com/jetqueue/jetqueue/internal/job"
)

func testConnOpts(t *testing.T, mr *miniredis.Miniredis) config.ConnectionOptions {
	host, portStr, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("splitting addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port: %v", err)
	}
	opts := config.DefaultConnectionOptions()
	opts.Host = host
	opts.Port = port
	return opts
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	ctx := context.Background()
	c, err := New(ctx, Options{QueueName: "test-queue", ConnectionOptions: testConnOpts(t, mr)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close(ctx)

	if c.queue == nil {
		t.Error("expected queue to be initialized")
	}
}

func TestSubmitAndGetJob(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	ctx := context.Background()
	c, err := New(ctx, Options{QueueName: "test-queue", ConnectionOptions: testConnOpts(t, mr)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close(ctx)

	id, err := c.Submit(ctx, "send_email", map[string]string{"to": "a@b.com"}, job.Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty job id")
	}

	j, err := c.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("getJob: %v", err)
	}
	if j == nil || j.Name != "send_email" {
		t.Fatalf("getJob = %v", j)
	}
}

func TestGetResult_BackendNotEnabled(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	ctx := context.Background()
	c, err := New(ctx, Options{QueueName: "test-queue", ConnectionOptions: testConnOpts(t, mr)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close(ctx)

	if _, err := c.GetResult(ctx, "whatever"); err == nil {
		t.Error("expected error when result backend is not enabled")
	}
}

func TestSubmitAndWait_TimesOut(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	ctx := context.Background()
	c, err := New(ctx, Options{
		QueueName:           "test-queue",
		ConnectionOptions:   testConnOpts(t, mr),
		EnableResultBackend: true,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close(ctx)

	_, err = c.SubmitAndWait(ctx, "no_worker", nil, job.Options{}, 50*time.Millisecond)
	if err == nil {
		t.Error("expected timeout error when nothing processes the job")
	}
}

func TestSubmitAndWait_Succeeds(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	ctx := context.Background()
	c, err := New(ctx, Options{
		QueueName:           "test-queue",
		ConnectionOptions:   testConnOpts(t, mr),
		EnableResultBackend: true,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close(ctx)

	handler := func(ctx context.Context, j *job.Job) ([]byte, error) {
		return []byte("done"), nil
	}
	wcfg := config.WorkerConfig{Concurrency: 1, PollInterval: 10 * time.Millisecond, SchedulerInterval: 10 * time.Millisecond}
	if err := c.StartWorker(ctx, wcfg, handler); err != nil {
		t.Fatalf("startWorker: %v", err)
	}

	res, err := c.SubmitAndWait(ctx, "send_email", map[string]string{"to": "a@b.com"}, job.Options{}, time.Second)
	if err != nil {
		t.Fatalf("submitAndWait: %v", err)
	}
	if !res.IsSuccess() {
		t.Fatalf("expected success, got status %q error %q", res.Status, res.Error)
	}
	if string(res.ReturnValue) != "done" {
		t.Errorf("ReturnValue = %q, want done", res.ReturnValue)
	}
}

func TestClose_Idempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	ctx := context.Background()
	c, err := New(ctx, Options{QueueName: "test-queue", ConnectionOptions: testConnOpts(t, mr)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Errorf("second close should be safe: %v", err)
	}
}
