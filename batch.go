package rcache

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/rcache/keys"
	"github.com/unkn0wn-root/rcache/store"
)

// group is the share of a batch owned by one connection.
type group struct {
	node string
	conn store.Store
	keys []keys.Key
}

// partition splits ks by owning connection, keeping first-seen node order.
// Without ring routing all keys form one group on the read or write connection.
func (c *client[V]) partition(ks []keys.Key, o callOpts, write bool) ([]*group, error) {
	if !c.sharded(o) {
		var (
			conn store.Store
			err  error
		)
		switch {
		case len(ks) == 0:
			return nil, nil
		case write:
			conn, err = c.writeConn(ks[0], o)
		default:
			conn, err = c.readConn(ks[0], o)
		}
		if err != nil {
			return nil, err
		}
		return []*group{{conn: conn, keys: ks}}, nil
	}

	byNode := make(map[string]*group)
	var out []*group
	for _, k := range ks {
		n, err := c.rt.NodeFor(k.String())
		if err != nil {
			return nil, err
		}
		g, ok := byNode[n]
		if !ok {
			g = &group{node: n, conn: c.rt.Conn(n)}
			byNode[n] = g
			out = append(out, g)
		}
		g.keys = append(g.keys, k)
	}
	return out, nil
}

func (c *client[V]) buildKeys(ctx context.Context, names []string, o callOpts) ([]keys.Key, error) {
	ver, err := c.version(ctx, o)
	if err != nil {
		return nil, err
	}
	out := make([]keys.Key, 0, len(names))
	for _, n := range dedupe(names) {
		out = append(out, keys.Make(c.namer, n, ver))
	}
	return out, nil
}

func wires(ks []keys.Key) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = k.String()
	}
	return out
}

// GetMany issues one MGET per involved connection. Under ring routing a
// failing node does not hide the hits from the other nodes: they are returned
// together with the joined per-node errors.
func (c *client[V]) GetMany(ctx context.Context, names []string, opts ...CallOption) (map[string]V, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	out := make(map[string]V, len(names))
	if len(names) == 0 {
		return out, nil
	}
	o := collect(opts)
	ks, err := c.buildKeys(ctx, names, o)
	if err != nil {
		return nil, err
	}
	groups, err := c.partition(ks, o, false)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, g := range groups {
		vals, err := g.conn.MGet(ctx, wires(g.keys)...)
		if err != nil {
			errs = append(errs, &NodeError{Op: "get_many", Node: g.node, Keys: len(g.keys), Err: err})
			continue
		}
		for i, raw := range vals {
			if raw == nil {
				continue
			}
			k := g.keys[i]
			v, err := c.codec.Decode(raw)
			if err != nil {
				errs = append(errs, &KeyError{Op: "decode", Key: k.Original(), Err: err})
				continue
			}
			out[k.Original()] = v
		}
	}
	if len(groups) > 1 {
		c.log.Debug("get_many fanned out", Fields{"keys": len(ks), "nodes": len(groups)})
	}
	return out, errors.Join(errs...)
}

// SetMany writes through one pipeline per involved connection. Nodes are
// written one after another and a failed node does not roll back the others.
func (c *client[V]) SetMany(ctx context.Context, items map[string]V, timeout time.Duration, opts ...CallOption) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if len(items) == 0 {
		return nil
	}
	ttl, write := normalizeTimeout(timeout, c.timeout)
	if !write {
		c.log.Debug("negative timeout, values not stored", Fields{"count": len(items), "timeout": timeout})
		return nil
	}

	o := collect(opts)
	names := make([]string, 0, len(items))
	for n := range items {
		names = append(names, n)
	}
	ks, err := c.buildKeys(ctx, names, o)
	if err != nil {
		return err
	}
	payload := make(map[string][]byte, len(ks))
	for _, k := range ks {
		raw, err := c.codec.Encode(items[k.Original()])
		if err != nil {
			return &KeyError{Op: "encode", Key: k.Original(), Err: err}
		}
		payload[k.String()] = raw
	}
	groups, err := c.partition(ks, o, true)
	if err != nil {
		return err
	}

	var errs []error
	for _, g := range groups {
		p := g.conn.Pipeline()
		for _, k := range g.keys {
			p.Set(k.String(), payload[k.String()], ttl)
		}
		if err := p.Exec(ctx); err != nil {
			errs = append(errs, &NodeError{Op: "set_many", Node: g.node, Keys: len(g.keys), Err: err})
		}
	}
	return errors.Join(errs...)
}

func (c *client[V]) DeleteMany(ctx context.Context, names []string, opts ...CallOption) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if len(names) == 0 {
		return nil
	}
	o := collect(opts)
	ks, err := c.buildKeys(ctx, names, o)
	if err != nil {
		return err
	}
	groups, err := c.partition(ks, o, true)
	if err != nil {
		return err
	}
	var errs []error
	for _, g := range groups {
		if err := g.conn.Del(ctx, wires(g.keys)...); err != nil {
			errs = append(errs, &NodeError{Op: "delete_many", Node: g.node, Keys: len(g.keys), Err: err})
		}
	}
	return errors.Join(errs...)
}
