package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConnectionOptions(t *testing.T) {
	opts := DefaultConnectionOptions()
	if opts.Host != "localhost" || opts.Port != 6379 {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

func TestLoadConnectionOptions_Defaults(t *testing.T) {
	for _, k := range []string{"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB"} {
		os.Unsetenv(k)
	}
	opts := LoadConnectionOptions()
	if opts != DefaultConnectionOptions() {
		t.Errorf("LoadConnectionOptions() = %+v, want defaults", opts)
	}
}

func TestLoadConnectionOptions_FromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "7000")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")

	opts := LoadConnectionOptions()
	if opts.Host != "redis.internal" || opts.Port != 7000 || opts.Password != "secret" || opts.DB != 3 {
		t.Errorf("LoadConnectionOptions() = %+v", opts)
	}
}

func TestLoadConnectionOptions_InvalidPortFallsBackToDefault(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-number")
	opts := LoadConnectionOptions()
	if opts.Port != DefaultConnectionOptions().Port {
		t.Errorf("Port = %d, want default on invalid input", opts.Port)
	}
}

func TestLoadQueueConfig_DefaultPrefix(t *testing.T) {
	os.Unsetenv("QUEUE_PREFIX")
	cfg := LoadQueueConfig("emails")
	if cfg.Name != "emails" || cfg.Prefix != "jet" {
		t.Errorf("LoadQueueConfig = %+v", cfg)
	}
}

func TestLoadQueueConfig_FromEnv(t *testing.T) {
	t.Setenv("QUEUE_PREFIX", "myapp")
	cfg := LoadQueueConfig("emails")
	if cfg.Prefix != "myapp" {
		t.Errorf("Prefix = %q, want myapp", cfg.Prefix)
	}
}

func TestDefaultWorkerConfig(t *testing.T) {
	cfg := DefaultWorkerConfig()
	if cfg.Concurrency != 1 || cfg.MaxJobsPerWorker != 0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PollInterval != 100*time.Millisecond || cfg.SchedulerInterval != 1000*time.Millisecond {
		t.Errorf("unexpected interval defaults: %+v", cfg)
	}
}

func TestLoadWorkerConfig_Defaults(t *testing.T) {
	for _, k := range []string{"WORKER_CONCURRENCY", "WORKER_MAX_JOBS", "WORKER_POLL_INTERVAL", "WORKER_SCHEDULER_INTERVAL"} {
		os.Unsetenv(k)
	}
	cfg, err := LoadWorkerConfig()
	if err != nil {
		t.Fatalf("LoadWorkerConfig: %v", err)
	}
	if cfg != DefaultWorkerConfig() {
		t.Errorf("LoadWorkerConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadWorkerConfig_FromEnv(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("WORKER_MAX_JOBS", "1000")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("WORKER_SCHEDULER_INTERVAL", "2s")

	cfg, err := LoadWorkerConfig()
	if err != nil {
		t.Fatalf("LoadWorkerConfig: %v", err)
	}
	if cfg.Concurrency != 8 || cfg.MaxJobsPerWorker != 1000 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PollInterval != 250*time.Millisecond || cfg.SchedulerInterval != 2*time.Second {
		t.Errorf("cfg intervals = %+v", cfg)
	}
}

func TestLoadWorkerConfig_RejectsZeroConcurrency(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "0")
	if _, err := LoadWorkerConfig(); err == nil {
		t.Error("expected error for zero concurrency")
	}
}

func TestLoadWorkerConfig_RejectsNegativeMaxJobs(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "1")
	t.Setenv("WORKER_MAX_JOBS", "-1")
	if _, err := LoadWorkerConfig(); err == nil {
		t.Error("expected error for negative max jobs")
	}
}

func TestLoadWorkerConfig_InvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("WORKER_POLL_INTERVAL", "not-a-duration")
	cfg, err := LoadWorkerConfig()
	if err != nil {
		t.Fatalf("LoadWorkerConfig: %v", err)
	}
	if cfg.PollInterval != DefaultWorkerConfig().PollInterval {
		t.Errorf("PollInterval = %v, want default on invalid input", cfg.PollInterval)
	}
}
