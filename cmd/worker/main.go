// Command jetqueue-worker runs a consumer process against a single named
// queue, wiring configuration, logging, metrics, and the worker loop the
// way the teacher's cmd/worker/main.go assembles its pool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jetqueue/jetqueue/internal/config"
	"github.com/jetqueue/jetqueue/internal/events"
	"github.com/jetqueue/jetqueue/internal/job"
	"github.com/jetqueue/jetqueue/internal/logger"
	"github.com/jetqueue/jetqueue/internal/metrics"
	"github.com/jetqueue/jetqueue/internal/queue"
	"github.com/jetqueue/jetqueue/internal/result"
	"github.com/jetqueue/jetqueue/internal/scheduler"
	"github.com/jetqueue/jetqueue/internal/worker"
)

func main() {
	connOpts := config.LoadConnectionOptions()
	queueName := os.Getenv("QUEUE_NAME")
	if queueName == "" {
		queueName = "default"
	}
	qcfg := config.LoadQueueConfig(queueName)

	wcfg, err := config.LoadWorkerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jetqueue: invalid worker config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "jetqueue: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logger.SetDefault(log)

	workerLog := log.WithComponent(logger.ComponentWorker)
	workerLog.Info("worker starting", "queue", queueName, "concurrency", wcfg.Concurrency, "redis_host", connOpts.Host)

	emitter := events.NewEmitter()
	emitter.On(events.Error, func(payload interface{}) {
		workerLog.Error("queue error", "error", payload)
	})

	w, err := worker.New(context.Background(), queueName, qcfg, connOpts, wcfg, emitter)
	if err != nil {
		workerLog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	resultBackend := result.NewRedisBackend(w.Client(), qcfg.Prefix, time.Hour, 24*time.Hour)
	w.SetResultBackend(resultBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Process(ctx, exampleHandler); err != nil {
		workerLog.Error("failed to start processing", "error", err)
		os.Exit(1)
	}

	schedulerQueue, err := queue.New(ctx, queueName, qcfg, connOpts, job.DefaultOptions(), emitter)
	if err != nil {
		workerLog.Error("failed to start scheduler queue", "error", err)
		os.Exit(1)
	}
	defer schedulerQueue.Close(context.Background())

	registry := scheduler.NewRegistry()
	// TODO: register recurring schedules specific to this deployment, e.g.
	// registry.MustRegister(&scheduler.Schedule{ID: "nightly-report", Cron: "0 2 * * *", JobName: "send_report"})

	cronScheduler := scheduler.NewCronScheduler(registry, schedulerQueue, w.Client(), qcfg.Prefix, wcfg.SchedulerInterval)
	go cronScheduler.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := metrics.Default().Snapshot()
				workerLog.Info("metrics snapshot",
					"jobs_processed", snap.TotalJobsProcessed,
					"jobs_completed", snap.TotalJobsCompleted,
					"jobs_failed", snap.TotalJobsFailed,
					"worker_utilization", fmt.Sprintf("%.1f%%", snap.WorkerUtilization))
			}
		}
	}()

	sig := <-sigCh
	workerLog.Info("shutdown signal received", "signal", sig.String())

	cancel()
	if err := w.Close(context.Background()); err != nil {
		workerLog.Error("error during shutdown", "error", err)
	}
	workerLog.Info("worker shut down")
}

// exampleHandler dispatches on job name. The worker mirrors its outcome into
// the attached result backend automatically; handlers need not do so
// themselves (see Worker.SetResultBackend).
func exampleHandler(ctx context.Context, j *job.Job) ([]byte, error) {
	switch j.Name {
	case "send_email":
		var payload struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
		}
		if err := j.UnmarshalData(&payload); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"status": "sent", "to": payload.To})
	default:
		return nil, fmt.Errorf("jetqueue: no handler for job name %q", j.Name)
	}
}
