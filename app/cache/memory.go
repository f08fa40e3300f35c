package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps entries in process memory; expired entries are purged
// every cleanupInterval.
type MemoryStore struct {
	cache *gocache.Cache
}

func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}

	data, ok := val.([]byte)
	if !ok {
		s.cache.Delete(key)
		return nil, false, nil
	}
	return data, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Flush(ctx context.Context) error {
	s.cache.Flush()
	return nil
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) Count() int {
	return s.cache.ItemCount()
}
