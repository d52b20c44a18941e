package rcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unkn0wn-root/rcache/codec"
	"github.com/unkn0wn-root/rcache/keys"
	"github.com/unkn0wn-root/rcache/provider"
)

// ProviderOptions configure NewProviderCache.
type ProviderOptions struct {
	KeyPrefix string
	KeyFunc   keys.Func
	Version   int           // 0 => 1
	Timeout   time.Duration // 0 => 300s
	// Cost computes the admission cost of an entry for providers that weigh
	// entries (ristretto). nil => payload length.
	Cost func(key string, raw []byte) int64
}

// ProviderCache is a fallback secondary backed by an in-process or remote
// byte provider. It serves the key-addressed subset of Cache; DeletePattern,
// Keys, Clear and IncrVersion need key scans the providers do not offer.
type ProviderCache[V any] struct {
	p       provider.Provider
	codec   codec.Codec[V]
	namer   keys.Namer
	version int
	timeout time.Duration
	cost    func(string, []byte) int64

	// serializes read-modify-write counters
	mu sync.Mutex
}

var _ Secondary[struct{}] = (*ProviderCache[struct{}])(nil)

func NewProviderCache[V any](p provider.Provider, c codec.Codec[V], opts ProviderOptions) (*ProviderCache[V], error) {
	if p == nil {
		return nil, &ConfigError{Field: "Provider", Err: errors.New("provider is required")}
	}
	if c == nil {
		return nil, &ConfigError{Field: "Codec", Err: errors.New("codec is required")}
	}
	pc := &ProviderCache[V]{
		p:       p,
		codec:   c,
		namer:   keys.Namer{Prefix: opts.KeyPrefix, Func: opts.KeyFunc},
		version: coalesce(opts.Version, defaultVersion),
		timeout: coalesce(opts.Timeout, defaultTimeout),
		cost:    opts.Cost,
	}
	if pc.cost == nil {
		pc.cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	return pc, nil
}

func (pc *ProviderCache[V]) key(name string, opts []CallOption) keys.Key {
	o := collect(opts)
	v := pc.version
	if o.hasVersion {
		v = o.version
	}
	return keys.Make(pc.namer, name, v)
}

func (pc *ProviderCache[V]) Get(ctx context.Context, key string, opts ...CallOption) (V, bool, error) {
	var zero V
	k := pc.key(key, opts)
	raw, ok, err := pc.p.Get(ctx, k.String())
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := pc.codec.Decode(raw)
	if err != nil {
		_ = pc.p.Del(ctx, k.String()) // self-heal
		return zero, false, nil
	}
	return v, true, nil
}

func (pc *ProviderCache[V]) GetOr(ctx context.Context, key string, def V, opts ...CallOption) (V, error) {
	v, ok, err := pc.Get(ctx, key, opts...)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// Set reports false when the timeout is negative or the provider rejected
// the entry under memory pressure.
func (pc *ProviderCache[V]) Set(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error) {
	return pc.set(ctx, pc.key(key, opts), v, timeout)
}

func (pc *ProviderCache[V]) set(ctx context.Context, k keys.Key, v V, timeout time.Duration) (bool, error) {
	ttl, write := normalizeTimeout(timeout, pc.timeout)
	if !write {
		return false, nil
	}
	raw, err := pc.codec.Encode(v)
	if err != nil {
		return false, &KeyError{Op: "encode", Key: k.Original(), Err: err}
	}
	return pc.p.Set(ctx, k.String(), raw, pc.cost(k.String(), raw), ttl)
}

func (pc *ProviderCache[V]) Add(ctx context.Context, key string, v V, timeout time.Duration, opts ...CallOption) (bool, error) {
	k := pc.key(key, opts)
	_, ok, err := pc.p.Get(ctx, k.String())
	if err != nil || ok {
		return false, err
	}
	return pc.set(ctx, k, v, timeout)
}

func (pc *ProviderCache[V]) HasKey(ctx context.Context, key string, opts ...CallOption) (bool, error) {
	_, ok, err := pc.p.Get(ctx, pc.key(key, opts).String())
	return ok, err
}

func (pc *ProviderCache[V]) Delete(ctx context.Context, key string, opts ...CallOption) error {
	return pc.p.Del(ctx, pc.key(key, opts).String())
}

func (pc *ProviderCache[V]) DeleteMany(ctx context.Context, names []string, opts ...CallOption) error {
	var errs []error
	for _, n := range names {
		if err := pc.Delete(ctx, n, opts...); err != nil {
			errs = append(errs, &KeyError{Op: "delete_many", Key: n, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (pc *ProviderCache[V]) GetMany(ctx context.Context, names []string, opts ...CallOption) (map[string]V, error) {
	out := make(map[string]V, len(names))
	var errs []error
	for _, n := range names {
		v, ok, err := pc.Get(ctx, n, opts...)
		if err != nil {
			errs = append(errs, &KeyError{Op: "get_many", Key: n, Err: err})
			continue
		}
		if ok {
			out[n] = v
		}
	}
	return out, errors.Join(errs...)
}

func (pc *ProviderCache[V]) SetMany(ctx context.Context, items map[string]V, timeout time.Duration, opts ...CallOption) error {
	var errs []error
	for n, v := range items {
		if _, err := pc.Set(ctx, n, v, timeout, opts...); err != nil {
			errs = append(errs, &KeyError{Op: "set_many", Key: n, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (pc *ProviderCache[V]) Incr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error) {
	return pc.incr(ctx, "incr", key, delta, opts)
}

func (pc *ProviderCache[V]) Decr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error) {
	return pc.incr(ctx, "decr", key, -delta, opts)
}

func (pc *ProviderCache[V]) incr(ctx context.Context, op, key string, delta int64, opts []CallOption) (V, error) {
	var zero V
	pc.mu.Lock()
	defer pc.mu.Unlock()

	k := pc.key(key, opts)
	v, ok, err := pc.Get(ctx, key, opts...)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, &KeyError{Op: op, Key: key, Err: ErrNotFound}
	}
	nv, err := addDelta(v, delta)
	if err != nil {
		return zero, &KeyError{Op: op, Key: key, Err: err}
	}
	if _, err := pc.set(ctx, k, nv, DefaultTimeout); err != nil {
		return zero, err
	}
	return nv, nil
}

func (pc *ProviderCache[V]) Close(ctx context.Context) error {
	return pc.p.Close(ctx)
}
