// Package kv defines a small Redis-like key-value interface with redis and
// in-memory backends. It covers only the operations this service needs:
// string values, counters and sets.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found.
var ErrNotFound = errors.New("not found")

// Store is the key-value contract shared by the redis and memory backends.
type Store interface {
	// String operations
	Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)

	// Counter operations
	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	// Set operations
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SIsMember(ctx context.Context, key string, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}
