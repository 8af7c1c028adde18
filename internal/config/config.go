// Package config loads connection, queue, and worker settings from the
// environment, following the get-env-with-default style the teacher repo
// uses throughout internal/config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConnectionOptions describes how to reach Redis. Host/Port/Password/DB
// together form the registry's connection identity (internal/registry).
type ConnectionOptions struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize        int
	MinIdleConns    int
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionOptions mirrors the pool tuning the teacher applies to
// its single RedisQueue client, scaled down slightly since jetqueue opens
// one client per distinct (host, port, password, db) rather than one per
// process.
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		Host:            "localhost",
		Port:            6379,
		DB:              0,
		PoolSize:        20,
		MinIdleConns:    2,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    3 * time.Second,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// LoadConnectionOptions reads REDIS_HOST / REDIS_PORT / REDIS_PASSWORD /
// REDIS_DB over the defaults above.
func LoadConnectionOptions() ConnectionOptions {
	opts := DefaultConnectionOptions()
	opts.Host = getEnv("REDIS_HOST", opts.Host)
	opts.Port = getEnvAsInt("REDIS_PORT", opts.Port)
	opts.Password = getEnv("REDIS_PASSWORD", opts.Password)
	opts.DB = getEnvAsInt("REDIS_DB", opts.DB)
	return opts
}

// QueueConfig holds the per-queue settings not tied to a single job.
type QueueConfig struct {
	// Name identifies the queue and namespaces its Redis keys.
	Name string
	// Prefix namespaces all keys for a deployment; defaults to "jet".
	Prefix string
}

// LoadQueueConfig reads QUEUE_PREFIX, defaulting to "jet".
func LoadQueueConfig(name string) QueueConfig {
	return QueueConfig{
		Name:   name,
		Prefix: getEnv("QUEUE_PREFIX", "jet"),
	}
}

// WorkerConfig controls dispatch concurrency and polling cadence. It is
// deliberately simpler than the teacher's WorkerConfig (no routing keys, no
// worker modes) since spec.md's core worker has none of that surface.
type WorkerConfig struct {
	// Concurrency is the number of jobs processed in parallel by one worker.
	Concurrency int
	// MaxJobsPerWorker caps lifetime jobs processed before Close is called
	// automatically; 0 means unbounded.
	MaxJobsPerWorker int
	// PollInterval is how often the dispatcher polls when waiting is empty.
	PollInterval time.Duration
	// SchedulerInterval is how often promoteDelayed runs.
	SchedulerInterval time.Duration
}

// DefaultWorkerConfig returns the defaults spec.md §9 settles on.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:       1,
		MaxJobsPerWorker:  0,
		PollInterval:      100 * time.Millisecond,
		SchedulerInterval: 1000 * time.Millisecond,
	}
}

// LoadWorkerConfig reads WORKER_CONCURRENCY, WORKER_MAX_JOBS,
// WORKER_POLL_INTERVAL and WORKER_SCHEDULER_INTERVAL over the defaults.
func LoadWorkerConfig() (WorkerConfig, error) {
	cfg := DefaultWorkerConfig()
	cfg.Concurrency = getEnvAsInt("WORKER_CONCURRENCY", cfg.Concurrency)
	cfg.MaxJobsPerWorker = getEnvAsInt("WORKER_MAX_JOBS", cfg.MaxJobsPerWorker)
	cfg.PollInterval = getEnvAsDuration("WORKER_POLL_INTERVAL", cfg.PollInterval)
	cfg.SchedulerInterval = getEnvAsDuration("WORKER_SCHEDULER_INTERVAL", cfg.SchedulerInterval)

	if cfg.Concurrency < 1 {
		return cfg, fmt.Errorf("jetqueue: WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.MaxJobsPerWorker < 0 {
		return cfg, fmt.Errorf("jetqueue: WORKER_MAX_JOBS cannot be negative")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
