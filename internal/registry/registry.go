// Package registry is the process-wide connection cache spec.md §4.3
// describes: one *redis.Client per distinct (host, port, password, db),
// created on first use, reference-counted, and closed when its last holder
// releases it or on CloseAll. Every client gets all three of the scripts
// package's Lua scripts loaded once, the same one-time-setup idea
// the teacher applies when it tunes and pings a fresh client inside
// NewRedisQueue.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/jetqueue/jetqueue/internal/config"
	"github.com/jetqueue/jetqueue/internal/errors"
	"github.com/jetqueue/jetqueue/internal/scripts"
)

// Conn bundles a client with its loaded scripts.
type Conn struct {
	Client  *redis.Client
	Scripts *scripts.Scripts

	refs int
}

type key struct {
	host     string
	port     int
	password string
	db       int
}

// Registry is the guarded map of live connections.
type Registry struct {
	mu    sync.Mutex
	conns map[key]*Conn
}

var global = New()

// New returns an empty registry. Most callers use the package-level Get/
// Release/CloseAll instead of constructing their own.
func New() *Registry {
	return &Registry{conns: make(map[key]*Conn)}
}

// Get returns the shared *Conn for opts, creating and pinging it on first
// use. Each call increments a reference count; pair it with a Release.
func (r *Registry) Get(ctx context.Context, opts config.ConnectionOptions) (*Conn, error) {
	k := key{host: opts.Host, port: opts.Port, password: opts.Password, db: opts.DB}

	r.mu.Lock()
	if c, ok := r.conns[k]; ok {
		c.refs++
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password:        opts.Password,
		DB:              opts.DB,
		PoolSize:        opts.PoolSize,
		MinIdleConns:    opts.MinIdleConns,
		DialTimeout:     opts.DialTimeout,
		ReadTimeout:     opts.ReadTimeout,
		WriteTimeout:    opts.WriteTimeout,
		ConnMaxIdleTime: opts.ConnMaxIdleTime,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", errors.ErrConnectionSetup, err)
	}

	s := scripts.New()
	if err := s.Load(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: loading scripts: %v", errors.ErrConnectionSetup, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[k]; ok {
		// Lost the race against a concurrent Get; keep the winner, drop ours.
		client.Close()
		c.refs++
		return c, nil
	}
	c := &Conn{Client: client, Scripts: s, refs: 1}
	r.conns[k] = c
	return c, nil
}

// Release decrements the reference count for opts and closes the underlying
// client once it reaches zero.
func (r *Registry) Release(opts config.ConnectionOptions) error {
	k := key{host: opts.Host, port: opts.Port, password: opts.Password, db: opts.DB}

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[k]
	if !ok {
		return nil
	}
	c.refs--
	if c.refs > 0 {
		return nil
	}
	delete(r.conns, k)
	return c.Client.Close()
}

// CloseAll force-closes every cached connection regardless of reference
// count. Intended for process shutdown and test teardown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for k, c := range r.conns {
		if err := c.Client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.conns, k)
	}
	return firstErr
}

// Get, Release, and CloseAll below operate on the package-level registry
// shared by every queue and worker in the process.

func Get(ctx context.Context, opts config.ConnectionOptions) (*Conn, error) {
	return global.Get(ctx, opts)
}

func Release(opts config.ConnectionOptions) error {
	return global.Release(opts)
}

func CloseAll() error {
	return global.CloseAll()
}
