// Package provider defines the byte stores a fallback secondary cache can sit on.
//
// rcache.NewProviderCache turns a Provider into a Secondary: keys are built
// the same way as on the primary and values go through the same codec, so a
// value written during an outage reads back identically.
//
// Implementations must be byte-for-byte transparent: Get returns exactly the
// bytes given to Set.
//
// Adapters:
//   - provider/ristretto: admission-controlled in-process cache with per-entry TTL.
//   - provider/bigcache:  sharded in-process cache with a global life window.
//   - provider/redis:     a separate Redis instance.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (<= 0 means no expiry). cost may be
	// ignored. ok=false means the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
