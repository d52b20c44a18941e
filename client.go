package rcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/rcache/codec"
	"github.com/unkn0wn-root/rcache/keys"
	"github.com/unkn0wn-root/rcache/router"
	"github.com/unkn0wn-root/rcache/store"
	rstore "github.com/unkn0wn-root/rcache/store/redis"
	"github.com/unkn0wn-root/rcache/version"
)

const defaultNode = "127.0.0.1:6379:0"

type client[V any] struct {
	rt       router.Router
	codec    codec.Codec[V]
	namer    keys.Namer
	versions version.Source
	timeout  time.Duration
	log      Logger
	hooks    Hooks
	closed   atomic.Bool
}

var _ Cache[struct{}] = (*client[struct{}])(nil)

func newClient[V any](opts Options[V]) (*client[V], error) {
	if opts.Codec == nil {
		return nil, &ConfigError{Field: "Codec", Err: errors.New("codec is required")}
	}
	nodes := dedupe(opts.Nodes)
	if len(nodes) == 0 {
		nodes = []string{defaultNode}
	}
	if opts.Router == router.Single && len(nodes) != 1 {
		return nil, &ConfigError{Field: "Router", Err: fmt.Errorf("single routing with %d nodes", len(nodes))}
	}

	c := &client[V]{
		codec: opts.Codec,
		namer: keys.Namer{Prefix: opts.KeyPrefix, Func: opts.KeyFunc},
	}
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.timeout = coalesce(opts.Timeout, defaultTimeout)
	if opts.Versions != nil {
		c.versions = opts.Versions
	} else {
		c.versions = version.Static(coalesce(opts.Version, defaultVersion))
	}

	dial := opts.Dialer
	if dial == nil {
		dial = rstore.Dialer(rstore.Config{})
	}
	conns := make(map[string]store.Store, len(nodes))
	for _, n := range nodes {
		s, err := dial(n)
		if err != nil {
			_ = router.CloseAll(conns)
			return nil, &ConfigError{Field: "Nodes", Err: fmt.Errorf("connect %s: %w", n, err)}
		}
		conns[n] = s
	}

	rt, err := router.New(opts.Router, nodes, conns)
	if err != nil {
		_ = router.CloseAll(conns)
		return nil, &ConfigError{Field: "Router", Err: err}
	}
	c.rt = rt
	c.log.Debug("cache ready", Fields{"router": rt.Kind().String(), "nodes": len(nodes)})
	return c, nil
}

// key builds the versioned key of name for this call.
func (c *client[V]) key(ctx context.Context, name string, o callOpts) (keys.Key, error) {
	v, err := c.version(ctx, o)
	if err != nil {
		return keys.Key{}, err
	}
	return keys.Make(c.namer, name, v), nil
}

func (c *client[V]) version(ctx context.Context, o callOpts) (int, error) {
	if o.hasVersion {
		return o.version, nil
	}
	v, err := c.versions.Current(ctx)
	if err != nil {
		return 0, fmt.Errorf("rcache: current version: %w", err)
	}
	return v, nil
}

func (c *client[V]) readConn(k keys.Key, o callOpts) (store.Store, error) {
	if o.conn != nil {
		return o.conn, nil
	}
	return c.rt.ForRead(k.String())
}

func (c *client[V]) writeConn(k keys.Key, o callOpts) (store.Store, error) {
	if o.conn != nil {
		return o.conn, nil
	}
	return c.rt.ForWrite(k.String())
}

// sharded reports whether batches must be split by node.
func (c *client[V]) sharded(o callOpts) bool {
	return o.conn == nil && c.rt.Kind() == router.Ring
}

func (c *client[V]) Get(ctx context.Context, key string, opts ...CallOption) (V, bool, error) {
	var zero V
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	o := collect(opts)
	k, err := c.key(ctx, key, o)
	if err != nil {
		return zero, false, err
	}
	conn, err := c.readConn(k, o)
	if err != nil {
		return zero, false, err
	}
	raw, ok, err := conn.Get(ctx, k.String())
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		return zero, false, &KeyError{Op: "decode", Key: key, Err: err}
	}
	return v, true, nil
}

func (c *client[V]) GetOr(ctx context.Context, key string, def V, opts ...CallOption) (V, error) {
	v, ok, err := c.Get(ctx, key, opts...)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func (c *client[V]) Set(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	o := collect(opts)
	k, err := c.key(ctx, key, o)
	if err != nil {
		return false, err
	}
	conn, err := c.writeConn(k, o)
	if err != nil {
		return false, err
	}
	return c.set(ctx, conn, k, v, timeout)
}

func (c *client[V]) set(ctx context.Context, conn store.Store, k keys.Key, v V, timeout time.Duration) (bool, error) {
	ttl, write := normalizeTimeout(timeout, c.timeout)
	if !write {
		c.log.Debug("negative timeout, value not stored", Fields{"key": k.Original(), "timeout": timeout})
		return false, nil
	}
	raw, err := c.codec.Encode(v)
	if err != nil {
		return false, &KeyError{Op: "encode", Key: k.Original(), Err: err}
	}
	if err := conn.Set(ctx, k.String(), raw, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (c *client[V]) Add(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	o := collect(opts)
	k, err := c.key(ctx, key, o)
	if err != nil {
		return false, err
	}
	conn, err := c.writeConn(k, o)
	if err != nil {
		return false, err
	}
	exists, err := conn.Exists(ctx, k.String())
	if err != nil || exists {
		return false, err
	}
	return c.set(ctx, conn, k, v, timeout)
}

func (c *client[V]) Delete(ctx context.Context, key string, opts ...CallOption) error {
	if c.closed.Load() {
		return ErrClosed
	}
	o := collect(opts)
	k, err := c.key(ctx, key, o)
	if err != nil {
		return err
	}
	conn, err := c.writeConn(k, o)
	if err != nil {
		return err
	}
	return conn.Del(ctx, k.String())
}

func (c *client[V]) DeletePattern(ctx context.Context, pattern string, opts ...CallOption) error {
	if c.closed.Load() {
		return ErrClosed
	}
	o := collect(opts)
	if c.sharded(o) {
		return fmt.Errorf("%w: delete_pattern under ring routing", ErrUnsupported)
	}
	ver, err := c.version(ctx, o)
	if err != nil {
		return err
	}
	conn := o.conn
	if conn == nil {
		conn = c.rt.Primary()
	}
	matched, err := conn.Keys(ctx, c.namer.Pattern(pattern, ver))
	if err != nil {
		return err
	}
	if len(matched) == 0 {
		return nil
	}
	c.log.Debug("delete by pattern", Fields{"pattern": pattern, "count": len(matched)})
	return conn.Del(ctx, matched...)
}

func (c *client[V]) HasKey(ctx context.Context, key string, opts ...CallOption) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	o := collect(opts)
	k, err := c.key(ctx, key, o)
	if err != nil {
		return false, err
	}
	conn, err := c.readConn(k, o)
	if err != nil {
		return false, err
	}
	return conn.Exists(ctx, k.String())
}

func (c *client[V]) Keys(ctx context.Context, pattern string, opts ...CallOption) ([]string, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	o := collect(opts)
	ver, err := c.version(ctx, o)
	if err != nil {
		return nil, err
	}
	var conns []store.Store
	switch {
	case o.conn != nil:
		conns = []store.Store{o.conn}
	case c.rt.Kind() == router.Ring:
		conns = c.rt.All()
	default:
		conn, err := c.rt.ForRead("")
		if err != nil {
			return nil, err
		}
		conns = []store.Store{conn}
	}

	glob := c.namer.Pattern(pattern, ver)
	seen := make(map[string]struct{})
	var errs []error
	for i, conn := range conns {
		found, err := conn.Keys(ctx, glob)
		if err != nil {
			errs = append(errs, &NodeError{Op: "keys", Node: c.nodeName(o, i), Err: err})
			continue
		}
		for _, w := range found {
			seen[c.namer.Strip(w)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, errors.Join(errs...)
}

// nodeName names the i-th connection of a Keys fan-out. Only ring routing
// fans out; a single connection stays unnamed.
func (c *client[V]) nodeName(o callOpts, i int) string {
	if o.conn != nil || c.rt.Kind() != router.Ring {
		return ""
	}
	return c.rt.Nodes()[i]
}

func (c *client[V]) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.rt.Kind() != router.Ring {
		return c.rt.Primary().FlushDB(ctx)
	}
	var errs []error
	for _, n := range c.rt.Nodes() {
		if err := c.rt.Conn(n).FlushDB(ctx); err != nil {
			errs = append(errs, &NodeError{Op: "clear", Node: n, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Close closes every node connection and the version source. It never fails;
// errors go to the logger and Hooks.CloseError. Repeated calls are no-ops.
func (c *client[V]) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.rt.Close(func(n string, err error) {
		c.log.Warn("close connection failed", Fields{"node": n, "err": err})
		c.hooks.CloseError(n, err)
	})
	if err := c.versions.Close(ctx); err != nil {
		c.log.Warn("close version source failed", Fields{"err": err})
	}
	return nil
}
