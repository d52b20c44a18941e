package rcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Secondary is the cache served while the primary is unreachable. Get, Set
// and Delete are required. Every other Cache method is optional: when the
// secondary lacks it the call returns zero values and Hooks.SecondaryUnsupported
// fires. A Cache[V] built by New or NewProviderCache satisfies Secondary.
type Secondary[V any] interface {
	Get(ctx context.Context, key string, opts ...CallOption) (V, bool, error)
	Set(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error)
	Delete(ctx context.Context, key string, opts ...CallOption) error
}

// optional secondary capabilities
type (
	adder[V any] interface {
		Add(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error)
	}
	manyGetter[V any] interface {
		GetMany(ctx context.Context, keys []string, opts ...CallOption) (map[string]V, error)
	}
	manySetter[V any] interface {
		SetMany(ctx context.Context, items map[string]V, timeout time.Duration, opts ...CallOption) error
	}
	manyDeleter interface {
		DeleteMany(ctx context.Context, keys []string, opts ...CallOption) error
	}
	patternDeleter interface {
		DeletePattern(ctx context.Context, pattern string, opts ...CallOption) error
	}
	incrementer[V any] interface {
		Incr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error)
		Decr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error)
	}
	versioner interface {
		IncrVersion(ctx context.Context, key string, delta int, opts ...CallOption) (int, error)
	}
	keyChecker interface {
		HasKey(ctx context.Context, key string, opts ...CallOption) (bool, error)
	}
	keyLister interface {
		Keys(ctx context.Context, pattern string, opts ...CallOption) ([]string, error)
	}
	clearer interface {
		Clear(ctx context.Context) error
	}
	closer interface {
		Close(ctx context.Context) error
	}
)

const normal = -1

var errNilSecondary = errors.New("fallback factory returned nil")

// secondaryOpts drops WithConn: a pinned primary connection means nothing to
// the secondary.
func secondaryOpts(opts []CallOption) []CallOption {
	o := collect(opts)
	if !o.hasVersion {
		return nil
	}
	return []CallOption{WithVersion(o.version)}
}

// fallback routes calls to the primary until a connectivity failure, then
// serves max calls from the secondary before probing the primary again.
//
// state is the whole state machine: -1 is normal, n >= 0 means n calls have
// been served by the secondary since the last failure.
type fallback[V any] struct {
	primary Cache[V]
	build   func() (Secondary[V], error)
	max     int64
	log     Logger
	hooks   Hooks

	state  atomic.Int64
	closed atomic.Bool

	once   sync.Once
	sec    Secondary[V]
	secErr error
}

var _ Cache[struct{}] = (*fallback[struct{}])(nil)

func newFallback[V any](primary Cache[V], opts Options[V]) *fallback[V] {
	f := &fallback[V]{
		primary: primary,
		build:   opts.Fallback,
		max:     int64(coalesce(opts.FallbackCalls, DefaultFallbackCalls)),
		log:     coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:   coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
	f.state.Store(normal)
	return f
}

// secondary builds the secondary on first use. A build failure is permanent.
func (f *fallback[V]) secondary() (Secondary[V], error) {
	f.once.Do(func() {
		f.sec, f.secErr = f.build()
		if f.secErr == nil && f.sec == nil {
			f.secErr = errNilSecondary
		}
		if f.secErr != nil {
			f.sec = nil
			f.secErr = &ConfigError{Field: "Fallback", Err: f.secErr}
		}
	})
	return f.sec, f.secErr
}

// call runs one operation through the state machine. Only connectivity
// errors change state; every other error is returned as is.
func call[V, T any](f *fallback[V], op string, primary func() (T, error), secondary func(Secondary[V]) (T, error)) (T, error) {
	if f.closed.Load() {
		var zero T
		return zero, ErrClosed
	}
	for {
		s := f.state.Load()
		switch {
		case s == normal:
			res, err := primary()
			if !IsConnectivity(err) {
				return res, err
			}
			f.enter(op, err)
			return onSecondary(f, secondary)

		case s < f.max:
			if !f.state.CompareAndSwap(s, s+1) {
				continue
			}
			return onSecondary(f, secondary)

		default:
			if !f.state.CompareAndSwap(s, normal) {
				continue
			}
			f.hooks.FallbackProbe()
			res, err := primary()
			if !IsConnectivity(err) {
				f.log.Info("primary cache recovered", Fields{"op": op})
				f.hooks.PrimaryRecovered()
				return res, err
			}
			f.enter(op, err)
			return onSecondary(f, secondary)
		}
	}
}

func onSecondary[V, T any](f *fallback[V], run func(Secondary[V]) (T, error)) (T, error) {
	sec, err := f.secondary()
	if err != nil {
		var zero T
		return zero, err
	}
	return run(sec)
}

// enter switches to fallback. Concurrent failures reset the counter to zero,
// which only delays the next probe.
func (f *fallback[V]) enter(op string, err error) {
	if f.state.Swap(0) == normal {
		f.log.Warn("primary cache unreachable, using fallback", Fields{"op": op, "err": err, "calls": f.max})
	}
	f.hooks.FallbackEntered(op, err)
}

func (f *fallback[V]) unsupported(op string) {
	f.log.Debug("fallback cache cannot serve operation", Fields{"op": op})
	f.hooks.SecondaryUnsupported(op)
}

func (f *fallback[V]) Get(ctx context.Context, key string, opts ...CallOption) (V, bool, error) {
	type result struct {
		v  V
		ok bool
	}
	r, err := call(f, "get",
		func() (result, error) {
			v, ok, err := f.primary.Get(ctx, key, opts...)
			return result{v, ok}, err
		},
		func(s Secondary[V]) (result, error) {
			v, ok, err := s.Get(ctx, key, secondaryOpts(opts)...)
			return result{v, ok}, err
		})
	return r.v, r.ok, err
}

func (f *fallback[V]) GetOr(ctx context.Context, key string, def V, opts ...CallOption) (V, error) {
	v, ok, err := f.Get(ctx, key, opts...)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

func (f *fallback[V]) Set(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error) {
	return call(f, "set",
		func() (bool, error) { return f.primary.Set(ctx, key, v, timeout, opts...) },
		func(s Secondary[V]) (bool, error) { return s.Set(ctx, key, v, timeout, secondaryOpts(opts)...) })
}

func (f *fallback[V]) Add(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error) {
	return call(f, "add",
		func() (bool, error) { return f.primary.Add(ctx, key, v, timeout, opts...) },
		func(s Secondary[V]) (bool, error) {
			if a, ok := s.(adder[V]); ok {
				return a.Add(ctx, key, v, timeout, secondaryOpts(opts)...)
			}
			f.unsupported("add")
			return false, nil
		})
}

func (f *fallback[V]) Delete(ctx context.Context, key string, opts ...CallOption) error {
	_, err := call(f, "delete",
		func() (struct{}, error) { return struct{}{}, f.primary.Delete(ctx, key, opts...) },
		func(s Secondary[V]) (struct{}, error) { return struct{}{}, s.Delete(ctx, key, secondaryOpts(opts)...) })
	return err
}

func (f *fallback[V]) DeleteMany(ctx context.Context, keys []string, opts ...CallOption) error {
	_, err := call(f, "delete_many",
		func() (struct{}, error) { return struct{}{}, f.primary.DeleteMany(ctx, keys, opts...) },
		func(s Secondary[V]) (struct{}, error) {
			if d, ok := s.(manyDeleter); ok {
				return struct{}{}, d.DeleteMany(ctx, keys, secondaryOpts(opts)...)
			}
			f.unsupported("delete_many")
			return struct{}{}, nil
		})
	return err
}

func (f *fallback[V]) DeletePattern(ctx context.Context, pattern string, opts ...CallOption) error {
	_, err := call(f, "delete_pattern",
		func() (struct{}, error) { return struct{}{}, f.primary.DeletePattern(ctx, pattern, opts...) },
		func(s Secondary[V]) (struct{}, error) {
			if d, ok := s.(patternDeleter); ok {
				return struct{}{}, d.DeletePattern(ctx, pattern, secondaryOpts(opts)...)
			}
			f.unsupported("delete_pattern")
			return struct{}{}, nil
		})
	return err
}

func (f *fallback[V]) GetMany(ctx context.Context, keys []string, opts ...CallOption) (map[string]V, error) {
	return call(f, "get_many",
		func() (map[string]V, error) { return f.primary.GetMany(ctx, keys, opts...) },
		func(s Secondary[V]) (map[string]V, error) {
			if g, ok := s.(manyGetter[V]); ok {
				return g.GetMany(ctx, keys, secondaryOpts(opts)...)
			}
			f.unsupported("get_many")
			return map[string]V{}, nil
		})
}

func (f *fallback[V]) SetMany(ctx context.Context, items map[string]V, timeout time.Duration, opts ...CallOption) error {
	_, err := call(f, "set_many",
		func() (struct{}, error) { return struct{}{}, f.primary.SetMany(ctx, items, timeout, opts...) },
		func(s Secondary[V]) (struct{}, error) {
			if m, ok := s.(manySetter[V]); ok {
				return struct{}{}, m.SetMany(ctx, items, timeout, secondaryOpts(opts)...)
			}
			f.unsupported("set_many")
			return struct{}{}, nil
		})
	return err
}

func (f *fallback[V]) Incr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error) {
	return call(f, "incr",
		func() (V, error) { return f.primary.Incr(ctx, key, delta, opts...) },
		func(s Secondary[V]) (V, error) {
			if i, ok := s.(incrementer[V]); ok {
				return i.Incr(ctx, key, delta, secondaryOpts(opts)...)
			}
			f.unsupported("incr")
			var zero V
			return zero, nil
		})
}

func (f *fallback[V]) Decr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error) {
	return call(f, "decr",
		func() (V, error) { return f.primary.Decr(ctx, key, delta, opts...) },
		func(s Secondary[V]) (V, error) {
			if i, ok := s.(incrementer[V]); ok {
				return i.Decr(ctx, key, delta, secondaryOpts(opts)...)
			}
			f.unsupported("decr")
			var zero V
			return zero, nil
		})
}

func (f *fallback[V]) IncrVersion(ctx context.Context, key string, delta int, opts ...CallOption) (int, error) {
	return call(f, "incr_version",
		func() (int, error) { return f.primary.IncrVersion(ctx, key, delta, opts...) },
		func(s Secondary[V]) (int, error) {
			if v, ok := s.(versioner); ok {
				return v.IncrVersion(ctx, key, delta, secondaryOpts(opts)...)
			}
			f.unsupported("incr_version")
			return 0, nil
		})
}

func (f *fallback[V]) HasKey(ctx context.Context, key string, opts ...CallOption) (bool, error) {
	return call(f, "has_key",
		func() (bool, error) { return f.primary.HasKey(ctx, key, opts...) },
		func(s Secondary[V]) (bool, error) {
			if k, ok := s.(keyChecker); ok {
				return k.HasKey(ctx, key, secondaryOpts(opts)...)
			}
			f.unsupported("has_key")
			return false, nil
		})
}

func (f *fallback[V]) Keys(ctx context.Context, pattern string, opts ...CallOption) ([]string, error) {
	return call(f, "keys",
		func() ([]string, error) { return f.primary.Keys(ctx, pattern, opts...) },
		func(s Secondary[V]) ([]string, error) {
			if k, ok := s.(keyLister); ok {
				return k.Keys(ctx, pattern, secondaryOpts(opts)...)
			}
			f.unsupported("keys")
			return nil, nil
		})
}

func (f *fallback[V]) Clear(ctx context.Context) error {
	_, err := call(f, "clear",
		func() (struct{}, error) { return struct{}{}, f.primary.Clear(ctx) },
		func(s Secondary[V]) (struct{}, error) {
			if c, ok := s.(clearer); ok {
				return struct{}{}, c.Clear(ctx)
			}
			f.unsupported("clear")
			return struct{}{}, nil
		})
	return err
}

// Close closes the primary and, if it was ever built, the secondary.
// It does not go through the state machine and never fails.
func (f *fallback[V]) Close(ctx context.Context) error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = f.primary.Close(ctx)
	f.once.Do(func() { f.secErr = ErrClosed })
	if c, ok := f.sec.(closer); ok {
		if err := c.Close(ctx); err != nil {
			f.log.Warn("close fallback cache failed", Fields{"err": err})
		}
	}
	return nil
}
