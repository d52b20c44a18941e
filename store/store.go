// Package store defines the key-value capability rcache routes operations to.
//
// A Store is one backend connection (usually a pooled client to a single Redis
// instance). rcache never talks to a network protocol directly: every read and
// write goes through this interface, so any store offering the same primitives
// can sit behind the router.
//
// Adapters:
//   - store/redis:  go-redis v9 client per node.
//   - store/memory: in-process map with TTLs and `*`/`?` key patterns (tests, local dev).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConnectivity marks transport-level failures talking to a backend.
// It is the only error kind that triggers rcache's fallback cache.
var ErrConnectivity = errors.New("store: connectivity failure")

// ErrInvalidAddress is returned by dialers for malformed node addresses.
var ErrInvalidAddress = errors.New("store: invalid address")

// Store is the capability set rcache needs from a backend.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// MGet returns one slot per key in request order; a nil slot is a miss.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)

	// Set stores value. ttl <= 0 stores without expiry (SET), ttl > 0 uses SETEX.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Exists(ctx context.Context, key string) (bool, error)

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Keys returns every key matching a Redis glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// TTL reports the remaining time to live.
	// ok=false: key absent. ok=true and ttl==0: key has no expiry.
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)

	FlushDB(ctx context.Context) error

	// Pipeline batches writes into a single round trip.
	Pipeline() Pipeline

	// Close releases every pooled connection.
	Close() error
}

// Pipeline queues write commands until Exec.
type Pipeline interface {
	Set(key string, value []byte, ttl time.Duration)
	Del(keys ...string)
	Exec(ctx context.Context) error
}

// Dialer opens the connection for a node address.
type Dialer func(node string) (Store, error)

// ConnError wraps a transport failure with the node it happened on.
// errors.Is(err, ErrConnectivity) reports true for any ConnError.
type ConnError struct {
	Node string
	Err  error
}

func (e *ConnError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("store: connectivity failure: %v", e.Err)
	}
	return fmt.Sprintf("store: connectivity failure on %s: %v", e.Node, e.Err)
}

func (e *ConnError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnectivity}
	}
	return []error{ErrConnectivity, e.Err}
}

// IsConnectivity reports whether err is (or wraps) a connectivity failure.
func IsConnectivity(err error) bool {
	return err != nil && errors.Is(err, ErrConnectivity)
}
