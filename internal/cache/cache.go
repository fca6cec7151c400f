package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// Once atomically claims key for ttl; it returns true only for the
	// first caller. Used as the cross-delivery one-shot guard for session
	// cancellation.
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
