package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// Store is a transient key/value cache. Get reports a miss with found=false
// and a nil error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
	Name() string
}

// GenerateFeedKey generates a consistent cache key for a feed address
func GenerateFeedKey(address string) string {
	hash := sha256.Sum256([]byte(address))
	return fmt.Sprintf("feed:%x", hash)
}
