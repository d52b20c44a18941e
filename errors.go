package rcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/rcache/store"
)

var (
	// ErrNotFound is returned by Incr, Decr and IncrVersion when the key is absent.
	ErrNotFound = errors.New("rcache: key not found")
	// ErrUnsupported is returned by DeletePattern under ring routing.
	ErrUnsupported = errors.New("rcache: operation not supported by this router")
	// ErrNotNumeric is returned by Incr and Decr when V is not a numeric type.
	ErrNotNumeric = errors.New("rcache: value is not numeric")
	// ErrOverflow is returned by Incr/Decr when the result does not fit the
	// stored integer type. The stored value is left unchanged.
	ErrOverflow = errors.New("rcache: counter overflow")
	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("rcache: cache closed")

	// ErrConnectivity marks transport failures. It is the only error that
	// switches a cache into fallback mode.
	ErrConnectivity = store.ErrConnectivity
)

// IsConnectivity reports whether err is (or wraps) a connectivity failure.
func IsConnectivity(err error) bool { return store.IsConnectivity(err) }

// ConfigError reports a misconfiguration detected while building a cache or
// its fallback.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("rcache: improperly configured: %v", e.Err)
	}
	return fmt.Sprintf("rcache: improperly configured %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// KeyError wraps a failure on a single key. In ring mode batch operations
// return one KeyError or NodeError per failed part, joined with errors.Join.
type KeyError struct {
	Op  string
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("rcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// NodeError wraps a failure of a per-node batch.
type NodeError struct {
	Op   string
	Node string
	Keys int
	Err  error
}

func (e *NodeError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("rcache: %s (%d keys): %v", e.Op, e.Keys, e.Err)
	}
	return fmt.Sprintf("rcache: %s on %s (%d keys): %v", e.Op, e.Node, e.Keys, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
