// Package memory is an in-memory kv.Store used when redis is unavailable and
// in tests.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bisqwatch/bisqwatch-backend/pkg/kv"
)

// Store is an in-memory implementation of the kv.Store interface.
type Store struct {
	mu          sync.RWMutex
	strings     map[string][]byte
	sets        map[string]map[string]struct{}
	expirations map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		strings:     make(map[string][]byte),
		sets:        make(map[string]map[string]struct{}),
		expirations: make(map[string]time.Time),
	}
}

// expireIfDue lazily drops a key whose TTL has passed (must hold write lock).
func (s *Store) expireIfDue(key string) {
	if expiry, ok := s.expirations[key]; ok && time.Now().After(expiry) {
		s.deleteKey(key)
	}
}

// deleteKey removes a key from all data structures (must hold write lock).
func (s *Store) deleteKey(key string) {
	delete(s.strings, key)
	delete(s.sets, key)
	delete(s.expirations, key)
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteKey(key)
	s.strings[key] = value
	if len(ttl) > 0 && ttl[0] > 0 {
		s.expirations[key] = time.Now().Add(ttl[0])
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfDue(key)
	value, ok := s.strings[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return value, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		s.expireIfDue(key)
		if _, ok := s.strings[key]; ok {
			deleted++
		} else if _, ok := s.sets[key]; ok {
			deleted++
		} else {
			continue
		}
		s.deleteKey(key)
	}
	return deleted, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, key := range keys {
		s.expireIfDue(key)
		if _, ok := s.strings[key]; ok {
			count++
		} else if _, ok := s.sets[key]; ok {
			count++
		}
	}
	return count, nil
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfDue(key)
	var current int64
	if raw, ok := s.strings[key]; ok {
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, err
		}
		current = parsed
	}
	current += n
	s.strings[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfDue(key)
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	var added int64
	for _, member := range members {
		if _, exists := set[member]; !exists {
			set[member] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *Store) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfDue(key)
	set, ok := s.sets[key]
	if !ok {
		return false, nil
	}
	_, exists := set[member]
	return exists, nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireIfDue(key)
	set, ok := s.sets[key]
	if !ok {
		return nil, nil
	}
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	return members, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

var _ kv.Store = (*Store)(nil)
