package registry

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/jetqueue/jetqueue/internal/config"
)

func testOpts(t *testing.T, mr *miniredis.Miniredis) config.ConnectionOptions {
	t.Helper()
	host, portStr, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	opts := config.DefaultConnectionOptions()
	opts.Host = host
	opts.Port = port
	return opts
}

func TestGet_CreatesAndPingsClient(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	r := New()
	ctx := context.Background()
	conn, err := r.Get(ctx, testOpts(t, mr))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if conn.Client == nil || conn.Scripts == nil {
		t.Fatal("expected client and scripts to be populated")
	}
	if conn.refs != 1 {
		t.Errorf("refs = %d, want 1", conn.refs)
	}
}

func TestGet_SharesConnectionAndIncrementsRefcount(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	r := New()
	ctx := context.Background()
	opts := testOpts(t, mr)

	c1, err := r.Get(ctx, opts)
	if err != nil {
		t.Fatalf("get 1: %v", err)
	}
	c2, err := r.Get(ctx, opts)
	if err != nil {
		t.Fatalf("get 2: %v", err)
	}
	if c1 != c2 {
		t.Error("expected identical connections from duplicate Get calls")
	}
	if c1.refs != 2 {
		t.Errorf("refs = %d, want 2", c1.refs)
	}
}

func TestGet_DistinctOptionsGetDistinctConnections(t *testing.T) {
	mrA := miniredis.RunT(t)
	defer mrA.Close()
	mrB := miniredis.RunT(t)
	defer mrB.Close()

	r := New()
	ctx := context.Background()
	a, err := r.Get(ctx, testOpts(t, mrA))
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	b, err := r.Get(ctx, testOpts(t, mrB))
	if err != nil {
		t.Fatalf("get b: %v", err)
	}
	if a == b {
		t.Error("expected distinct connections for distinct addresses")
	}
}

func TestGet_FailsOnUnreachableHost(t *testing.T) {
	r := New()
	ctx := context.Background()
	opts := config.DefaultConnectionOptions()
	opts.Host = "127.0.0.1"
	opts.Port = 1 // nothing listens here
	opts.DialTimeout = 0

	if _, err := r.Get(ctx, opts); err == nil {
		t.Error("expected error connecting to unreachable host")
	}
}

func TestRelease_ClosesAtZeroRefcount(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	r := New()
	ctx := context.Background()
	opts := testOpts(t, mr)

	if _, err := r.Get(ctx, opts); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := r.Release(opts); err != nil {
		t.Fatalf("release: %v", err)
	}

	r.mu.Lock()
	_, ok := r.conns[key{host: opts.Host, port: opts.Port, password: opts.Password, db: opts.DB}]
	r.mu.Unlock()
	if ok {
		t.Error("expected connection to be removed once refcount hit zero")
	}
}

func TestRelease_DecrementsWithoutClosingWhileRefsRemain(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	r := New()
	ctx := context.Background()
	opts := testOpts(t, mr)

	if _, err := r.Get(ctx, opts); err != nil {
		t.Fatalf("get 1: %v", err)
	}
	if _, err := r.Get(ctx, opts); err != nil {
		t.Fatalf("get 2: %v", err)
	}
	if err := r.Release(opts); err != nil {
		t.Fatalf("release: %v", err)
	}

	r.mu.Lock()
	c, ok := r.conns[key{host: opts.Host, port: opts.Port, password: opts.Password, db: opts.DB}]
	r.mu.Unlock()
	if !ok {
		t.Fatal("expected connection to still be cached")
	}
	if c.refs != 1 {
		t.Errorf("refs = %d, want 1", c.refs)
	}
}

func TestRelease_UnknownOptionsIsNoop(t *testing.T) {
	r := New()
	opts := config.DefaultConnectionOptions()
	if err := r.Release(opts); err != nil {
		t.Errorf("release on unknown connection should be a no-op, got %v", err)
	}
}

func TestCloseAll(t *testing.T) {
	mrA := miniredis.RunT(t)
	defer mrA.Close()
	mrB := miniredis.RunT(t)
	defer mrB.Close()

	r := New()
	ctx := context.Background()
	if _, err := r.Get(ctx, testOpts(t, mrA)); err != nil {
		t.Fatalf("get a: %v", err)
	}
	if _, err := r.Get(ctx, testOpts(t, mrB)); err != nil {
		t.Fatalf("get b: %v", err)
	}

	if err := r.CloseAll(); err != nil {
		t.Fatalf("closeAll: %v", err)
	}
	if len(r.conns) != 0 {
		t.Errorf("expected empty registry after CloseAll, got %d entries", len(r.conns))
	}
}
