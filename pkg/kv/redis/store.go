// Package redis is the redis-backed kv.Store.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bisqwatch/bisqwatch-backend/pkg/kv"
)

// Store is a Redis-backed implementation of the kv.Store interface.
type Store struct {
	client *redis.Client
}

// NewStore connects to the given address and verifies the connection.
func NewStore(addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Store{client: client}, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	var expiry time.Duration
	if len(ttl) > 0 {
		expiry = ttl[0]
	}
	return s.client.Set(ctx, key, value, expiry).Err()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, kv.ErrNotFound
	}
	return data, err
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	return s.client.Del(ctx, keys...).Result()
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	return s.client.Exists(ctx, keys...).Result()
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return s.client.IncrBy(ctx, key, n).Result()
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]interface{}, len(members))
	for i, member := range members {
		args[i] = member
	}
	return s.client.SAdd(ctx, key, args...).Result()
}

func (s *Store) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	return s.client.SIsMember(ctx, key, member).Result()
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ kv.Store = (*Store)(nil)
