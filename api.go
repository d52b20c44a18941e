package rcache

import (
	"context"
	"math"
	"time"

	"github.com/unkn0wn-root/rcache/codec"
	"github.com/unkn0wn-root/rcache/keys"
	"github.com/unkn0wn-root/rcache/router"
	"github.com/unkn0wn-root/rcache/store"
	"github.com/unkn0wn-root/rcache/version"
)

// DefaultTimeout asks Set, Add and SetMany to use Options.Timeout.
const DefaultTimeout time.Duration = math.MinInt64

const (
	defaultTimeout       = 300 * time.Second
	defaultVersion       = 1
	DefaultFallbackCalls = 20
)

// Cache is the client API. V is the caller's value type; a Codec turns it into bytes.
//
// Timeouts: DefaultTimeout uses Options.Timeout, 0 stores without expiry, a
// positive value is truncated to whole seconds (minimum one second) and a
// negative value stores nothing.
type Cache[V any] interface {
	Get(ctx context.Context, key string, opts ...CallOption) (v V, ok bool, err error)
	// GetOr returns def on a miss.
	GetOr(ctx context.Context, key string, def V, opts ...CallOption) (V, error)
	// Set reports whether the value was written.
	Set(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error)
	// Add writes only when the key does not exist yet. The check and the write
	// are two commands: concurrent Adds may both succeed.
	Add(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error)
	Delete(ctx context.Context, key string, opts ...CallOption) error
	DeleteMany(ctx context.Context, keys []string, opts ...CallOption) error
	// DeletePattern removes every key matching a glob. Not available under ring
	// routing unless a connection is given with WithConn.
	DeletePattern(ctx context.Context, pattern string, opts ...CallOption) error

	// GetMany omits misses from the result.
	GetMany(ctx context.Context, keys []string, opts ...CallOption) (map[string]V, error)
	SetMany(ctx context.Context, items map[string]V, timeout time.Duration, opts ...CallOption) error

	// Incr and Decr read, add and write back; they are not atomic.
	// ErrNotFound when the key is absent, ErrNotNumeric when V is not a number.
	Incr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error)
	Decr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error)

	// IncrVersion moves the value of key from its current version to
	// version+delta, keeping the remaining TTL, and returns the new version.
	IncrVersion(ctx context.Context, key string, delta int, opts ...CallOption) (int, error)

	HasKey(ctx context.Context, key string, opts ...CallOption) (bool, error)
	// Keys returns the user keys matching pattern at the current version, sorted.
	Keys(ctx context.Context, pattern string, opts ...CallOption) ([]string, error)
	// Clear flushes every database the cache writes to.
	Clear(ctx context.Context) error
	// Close releases every connection. Failures are logged, never returned.
	Close(ctx context.Context) error
}

// Options configure New. Codec is required; the rest have defaults.
type Options[V any] struct {
	// Nodes are store addresses ("host:port:db", "unix:path:db"). Duplicates
	// are dropped keeping the first occurrence. Default "127.0.0.1:6379:0".
	Nodes  []string
	Dialer store.Dialer // nil => go-redis dialer without password
	Router router.Kind  // Auto => Single for one node, MasterReplica otherwise
	Codec  codec.Codec[V]

	KeyPrefix string
	KeyFunc   keys.Func      // nil => "{prefix}:{version}:{key}"
	Version   int            // 0 => 1; ignored when Versions is set
	Versions  version.Source // where the default version comes from
	Timeout   time.Duration  // default timeout; 0 => 300s

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// Fallback builds the secondary cache used while the primary is
	// unreachable. It is called once, on the first connectivity failure.
	// nil disables fallback.
	Fallback func() (Secondary[V], error)
	// FallbackCalls is how many calls the secondary serves before the
	// primary is probed again. 0 => 20.
	FallbackCalls int
}

// CallOption adjusts a single call.
type CallOption func(*callOpts)

type callOpts struct {
	version    int
	hasVersion bool
	conn       store.Store
}

// WithVersion overrides the version keys are built with.
func WithVersion(v int) CallOption {
	return func(o *callOpts) {
		o.version = v
		o.hasVersion = true
	}
}

// WithConn sends the call to conn, bypassing routing.
func WithConn(conn store.Store) CallOption {
	return func(o *callOpts) { o.conn = conn }
}

func collect(opts []CallOption) callOpts {
	var o callOpts
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// New connects to every node and returns the cache, wrapped with fallback
// handling when Options.Fallback is set.
func New[V any](opts Options[V]) (Cache[V], error) {
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	if opts.Fallback == nil {
		return c, nil
	}
	return newFallback[V](c, opts), nil
}
