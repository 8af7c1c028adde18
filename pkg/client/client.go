// Package client provides a single-call facade over internal/queue,
// internal/worker, and internal/result for programs that only need to
// submit and/or process jobs without wiring each piece by hand. Grounded
// on the teacher's pkg/client.Client.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jetqueue/jetqueue/internal/config"
	"github.com/jetqueue/jetqueue/internal/events"
	"github.com/jetqueue/jetqueue/internal/job"
	"github.com/jetqueue/jetqueue/internal/queue"
	"github.com/jetqueue/jetqueue/internal/result"
	"github.com/jetqueue/jetqueue/internal/worker"
)

// Client bundles a producer, an optional consumer, and an optional result
// backend behind one handle.
type Client struct {
	queue         *queue.Queue
	worker        *worker.Worker
	resultBackend result.Backend

	queueName string
	qcfg      config.QueueConfig
	connOpts  config.ConnectionOptions
}

// Options configures New. Zero value connects to localhost Redis with
// default queue/worker settings and no result backend.
type Options struct {
	QueueName           string
	ConnectionOptions   config.ConnectionOptions
	QueueConfig         config.QueueConfig
	DefaultJobOptions   job.Options
	EnableResultBackend bool
	ResultSuccessTTL    time.Duration
	ResultFailureTTL    time.Duration
}

// New connects a producer for a single named queue. It starts no consumer;
// call StartWorker for that.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.ConnectionOptions == (config.ConnectionOptions{}) {
		opts.ConnectionOptions = config.DefaultConnectionOptions()
	}
	emitter := events.NewEmitter()

	q, err := queue.New(ctx, opts.QueueName, opts.QueueConfig, opts.ConnectionOptions, opts.DefaultJobOptions, emitter)
	if err != nil {
		return nil, fmt.Errorf("jetqueue: connecting queue: %w", err)
	}

	c := &Client{
		queue:     q,
		queueName: opts.QueueName,
		qcfg:      opts.QueueConfig,
		connOpts:  opts.ConnectionOptions,
	}

	if opts.EnableResultBackend {
		successTTL := opts.ResultSuccessTTL
		if successTTL == 0 {
			successTTL = time.Hour
		}
		failureTTL := opts.ResultFailureTTL
		if failureTTL == 0 {
			failureTTL = 24 * time.Hour
		}
		c.resultBackend = result.NewRedisBackend(q.Client(), opts.QueueConfig.Prefix, successTTL, failureTTL)
	}

	return c, nil
}

// StartWorker attaches a consumer to the same queue and begins processing
// with handler. Only one worker may be attached per Client.
func (c *Client) StartWorker(ctx context.Context, wcfg config.WorkerConfig, handler worker.Handler) error {
	if c.worker != nil {
		return fmt.Errorf("jetqueue: worker already started")
	}

	w, err := worker.New(ctx, c.queueName, c.qcfg, c.connOpts, wcfg, c.queue.Events())
	if err != nil {
		return fmt.Errorf("jetqueue: starting worker: %w", err)
	}
	if c.resultBackend != nil {
		w.SetResultBackend(c.resultBackend)
	}
	if err := w.Process(ctx, handler); err != nil {
		return fmt.Errorf("jetqueue: processing: %w", err)
	}
	c.worker = w
	return nil
}

// Submit enqueues name/data with opts merged over the client's default job
// options, returning the created job's ID.
func (c *Client) Submit(ctx context.Context, name string, data interface{}, opts job.Options) (string, error) {
	j, err := c.queue.Add(ctx, name, data, opts)
	if err != nil {
		return "", err
	}
	return j.ID, nil
}

// GetJob returns the job for id, or (nil, nil) if it doesn't exist.
func (c *Client) GetJob(ctx context.Context, id string) (*job.Job, error) {
	return c.queue.GetJob(ctx, id)
}

// GetResult returns id's stored result via the result backend. Requires
// Options.EnableResultBackend.
func (c *Client) GetResult(ctx context.Context, id string) (*job.Result, error) {
	if c.resultBackend == nil {
		return nil, fmt.Errorf("jetqueue: result backend not enabled")
	}
	return c.resultBackend.GetResult(ctx, id)
}

// SubmitAndWait submits a job and blocks for its result, RPC-style.
// Requires Options.EnableResultBackend.
func (c *Client) SubmitAndWait(ctx context.Context, name string, data interface{}, opts job.Options, timeout time.Duration) (*job.Result, error) {
	if c.resultBackend == nil {
		return nil, fmt.Errorf("jetqueue: result backend not enabled")
	}

	id, err := c.Submit(ctx, name, data, opts)
	if err != nil {
		return nil, fmt.Errorf("jetqueue: submitting job: %w", err)
	}

	res, err := c.resultBackend.WaitForResult(ctx, id, timeout)
	if err != nil {
		return nil, fmt.Errorf("jetqueue: waiting for result: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("jetqueue: job %s did not complete within %v", id, timeout)
	}
	return res, nil
}

// Close shuts down the consumer (if started), the producer, and the
// result backend, returning the first error encountered.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if c.worker != nil {
		if err := c.worker.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.resultBackend != nil {
		if err := c.resultBackend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.queue.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
