// Command jetqueue-producer enqueues a single job from the command line,
// for manual testing and examples.
//
// Usage: jetqueue-producer <job-name> <json-payload>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jetqueue/jetqueue/internal/config"
	"github.com/jetqueue/jetqueue/internal/events"
	"github.com/jetqueue/jetqueue/internal/job"
	"github.com/jetqueue/jetqueue/internal/logger"
	"github.com/jetqueue/jetqueue/internal/queue"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: jetqueue-producer <job-name> <json-payload>")
		os.Exit(1)
	}
	jobName := os.Args[1]
	rawPayload := os.Args[2]

	var payload interface{}
	if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
		fmt.Fprintf(os.Stderr, "jetqueue: invalid JSON payload: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "jetqueue: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logger.SetDefault(log)

	queueName := os.Getenv("QUEUE_NAME")
	if queueName == "" {
		queueName = "default"
	}

	ctx := context.Background()
	q, err := queue.New(ctx, queueName, config.LoadQueueConfig(queueName), config.LoadConnectionOptions(), job.DefaultOptions(), events.NewEmitter())
	if err != nil {
		fmt.Fprintf(os.Stderr, "jetqueue: failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer q.Close(ctx)

	j, err := q.Add(ctx, jobName, payload, job.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "jetqueue: failed to enqueue: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("enqueued job %s (%s) on queue %q\n", j.ID, j.Name, queueName)
}
