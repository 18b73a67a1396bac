// Package cache provides byte-oriented TTL stores used to cache upstream
// geodata query responses.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key/value store. Get reports a miss with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Name() string
}
