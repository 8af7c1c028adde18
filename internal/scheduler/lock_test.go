package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, mr
}

func TestAcquireLock_Success(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	lock, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if lock == nil {
		t.Fatal("expected non-nil lock")
	}
	if lock.Key() != "test:lock" {
		t.Errorf("key = %q", lock.Key())
	}
	if lock.Token() == "" {
		t.Error("expected non-empty token")
	}
}

func TestAcquireLock_AlreadyLocked(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	lock1, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil || lock1 == nil {
		t.Fatalf("first acquire: lock=%v err=%v", lock1, err)
	}

	lock2, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if lock2 != nil {
		t.Error("expected nil for already-locked key")
	}
}

func TestLock_ReleaseAllowsReacquire(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	lock, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	lock2, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if lock2 == nil {
		t.Error("expected to reacquire after release")
	}
}

func TestLock_ReleaseNotOwned(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	client.Set(ctx, "test:lock", "different-token", 10*time.Second)

	lock := &Lock{client: client, key: "test:lock", token: "my-token", ttl: 10 * time.Second}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release should not error: %v", err)
	}

	exists, err := client.Exists(ctx, "test:lock").Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 1 {
		t.Error("expected key to survive a release by a non-owner")
	}
}

func TestLock_ExtendNotOwned(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	client.Set(ctx, "test:lock", "different-token", 10*time.Second)

	lock := &Lock{client: client, key: "test:lock", token: "my-token", ttl: 10 * time.Second}
	if err := lock.Extend(ctx, 20*time.Second); err == nil {
		t.Error("expected error extending a lock not owned")
	}
}

func TestLock_ExtendSuccess(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	lock, err := AcquireLock(ctx, client, "test:lock", 5*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lock.Extend(ctx, 10*time.Second); err != nil {
		t.Fatalf("extend: %v", err)
	}

	ttl, err := client.TTL(ctx, "test:lock").Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl < 9*time.Second || ttl > 10*time.Second {
		t.Errorf("ttl = %v, want ~10s", ttl)
	}
}

func TestAcquireLock_AfterTTLExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	lock, err := AcquireLock(ctx, client, "test:lock", 1*time.Second)
	if err != nil || lock == nil {
		t.Fatalf("acquire: lock=%v err=%v", lock, err)
	}

	mr.FastForward(2 * time.Second)

	lock2, err := AcquireLock(ctx, client, "test:lock", 1*time.Second)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if lock2 == nil {
		t.Error("expected to acquire after TTL expiry")
	}
}

func TestLock_MultipleRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	lock, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Error("second release should be safe")
	}
}
