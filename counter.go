package rcache

import (
	"context"
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/rcache/keys"
)

func (c *client[V]) Incr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error) {
	return c.incr(ctx, "incr", key, delta, opts)
}

func (c *client[V]) Decr(ctx context.Context, key string, delta int64, opts ...CallOption) (V, error) {
	return c.incr(ctx, "decr", key, -delta, opts)
}

// incr reads, adds and writes back with the default timeout. Two concurrent
// calls on one key may lose an update.
func (c *client[V]) incr(ctx context.Context, op, key string, delta int64, opts []CallOption) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	o := collect(opts)
	k, err := c.key(ctx, key, o)
	if err != nil {
		return zero, err
	}
	conn, err := c.writeConn(k, o)
	if err != nil {
		return zero, err
	}
	exists, err := conn.Exists(ctx, k.String())
	if err != nil {
		return zero, err
	}
	if !exists {
		return zero, &KeyError{Op: op, Key: key, Err: ErrNotFound}
	}
	raw, ok, err := conn.Get(ctx, k.String())
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, &KeyError{Op: op, Key: key, Err: ErrNotFound}
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		return zero, &KeyError{Op: "decode", Key: key, Err: err}
	}
	nv, err := addDelta(v, delta)
	if err != nil {
		return zero, &KeyError{Op: op, Key: key, Err: err}
	}
	if _, err := c.set(ctx, conn, k, nv, DefaultTimeout); err != nil {
		return zero, err
	}
	return nv, nil
}

// addDelta adds delta to any integer or float kind, including named types
// and numbers held in an interface (e.g. float64 from a JSON-decoded any).
func addDelta[V any](v V, delta int64) (V, error) {
	rv := reflect.ValueOf(&v).Elem()
	if err := addValue(rv, delta); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

func addValue(rv reflect.Value, delta int64) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		sum := n + delta
		if (delta > 0 && sum < n) || (delta < 0 && sum > n) || rv.OverflowInt(sum) {
			return fmt.Errorf("%w: %d%+d does not fit %s", ErrOverflow, n, delta, rv.Type())
		}
		rv.SetInt(sum)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		var sum uint64
		if delta >= 0 {
			sum = u + uint64(delta)
			if sum < u || rv.OverflowUint(sum) {
				return fmt.Errorf("%w: %d%+d does not fit %s", ErrOverflow, u, delta, rv.Type())
			}
		} else {
			// -(delta+1)+1 keeps math.MinInt64 representable
			d := uint64(-(delta + 1)) + 1
			if d > u {
				return fmt.Errorf("%w: %d%+d does not fit %s", ErrOverflow, u, delta, rv.Type())
			}
			sum = u - d
		}
		rv.SetUint(sum)
	case reflect.Float32, reflect.Float64:
		rv.SetFloat(rv.Float() + float64(delta))
	case reflect.Interface:
		if rv.IsNil() {
			return ErrNotNumeric
		}
		inner := reflect.New(rv.Elem().Type()).Elem()
		inner.Set(rv.Elem())
		if err := addValue(inner, delta); err != nil {
			return err
		}
		rv.Set(inner)
	default:
		return fmt.Errorf("%w: %s", ErrNotNumeric, rv.Type())
	}
	return nil
}

// IncrVersion copies the stored bytes of key to version+delta with the
// remaining TTL and then deletes the old entry. The steps are separate
// commands, so a concurrent writer may observe both versions or neither.
// Under ring routing the old entry is read and deleted on its own node and
// the new one is written to the node owning the new key.
func (c *client[V]) IncrVersion(ctx context.Context, key string, delta int, opts ...CallOption) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	o := collect(opts)
	ver, err := c.version(ctx, o)
	if err != nil {
		return 0, err
	}
	old := keys.Make(c.namer, key, ver)
	conn, err := c.writeConn(old, o)
	if err != nil {
		return 0, err
	}

	raw, ok, err := conn.Get(ctx, old.String())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &KeyError{Op: "incr_version", Key: key, Err: ErrNotFound}
	}
	if delta == 0 {
		// the old and new key are the same entry
		return ver, nil
	}
	remaining, ok, err := conn.TTL(ctx, old.String())
	if err != nil {
		return 0, err
	}
	if !ok {
		// expired between GET and TTL
		return 0, &KeyError{Op: "incr_version", Key: key, Err: ErrNotFound}
	}
	// copied as-is: the new entry must not outlive the old one. 0 is persistent.
	ttl := remaining

	next := c.namer.At(old, ver+delta)
	dst, err := c.writeConn(next, o)
	if err != nil {
		return 0, err
	}
	if err := dst.Set(ctx, next.String(), raw, ttl); err != nil {
		return 0, err
	}
	if err := conn.Del(ctx, old.String()); err != nil {
		return 0, err
	}
	c.log.Debug("version bumped", Fields{"key": key, "from": ver, "to": ver + delta, "ttl": ttl})
	return ver + delta, nil
}
