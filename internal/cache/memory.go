package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"
)

// DefaultMemorySize bounds the in-memory store.
const DefaultMemorySize = 256

// MemoryStore is an LRU Store with per-entry expiration, used when no
// Redis URL is configured.
type MemoryStore struct {
	cache gcache.Cache
}

// NewMemoryStore creates an LRU store holding at most size entries.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &MemoryStore{cache: gcache.New(size).LRU().Build()}
}

// Get returns the cached value for key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := s.cache.Get(key)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

// Set stores a copy of value under key. A non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := append([]byte(nil), value...)
	if ttl <= 0 {
		return s.cache.Set(key, stored)
	}
	return s.cache.SetWithExpire(key, stored, ttl)
}

// Name identifies the store in logs.
func (s *MemoryStore) Name() string {
	return "memory"
}

