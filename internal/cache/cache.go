// Package cache provides a small read-through cache used by the catalog
// read path. When Redis is unreachable at startup a no-op implementation is
// substituted, so callers never branch on cache availability.
package cache

import (
	"context"
	"time"
)

// Cache is a minimal string cache. Get reports a miss with found=false and
// a nil error; errors are reserved for transport failures.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Noop is the stand-in cache installed when Redis is disabled or
// unreachable. Every lookup is a miss and every write succeeds.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }

func (Noop) Delete(context.Context, ...string) error { return nil }
