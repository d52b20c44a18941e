// Package redis adapts a go-redis client to store.Store.
//
// One Store wraps one node: a single go-redis client (with its own connection
// pool) for a `host:port:db` or `unix:path:db` address. Transport failures are
// reported as *store.ConnError so rcache can fail over.
package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

// Address is a parsed node address.
type Address struct {
	Network string // "tcp" or "unix"
	Addr    string // host:port or socket path
	DB      int
}

func (a Address) String() string {
	if a.Network == "unix" {
		return "unix:" + a.Addr + ":" + strconv.Itoa(a.DB)
	}
	return a.Addr + ":" + strconv.Itoa(a.DB)
}

// DefaultDB is the database of a `host:port` address without a db part.
const DefaultDB = 1

// ParseAddress accepts `host:port:db`, `unix:path:db` and `host:port`
// (DefaultDB).
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, ":")
	switch {
	case len(parts) == 3 && parts[0] == "unix":
		if parts[1] == "" {
			return Address{}, fmt.Errorf("%w: empty socket path in %q", store.ErrInvalidAddress, s)
		}
		db, err := strconv.Atoi(parts[2])
		if err != nil || db < 0 {
			return Address{}, fmt.Errorf("%w: bad db in %q", store.ErrInvalidAddress, s)
		}
		return Address{Network: "unix", Addr: parts[1], DB: db}, nil
	case len(parts) == 3 || len(parts) == 2:
		host := parts[0]
		if host == "" || host == "unix" {
			return Address{}, fmt.Errorf("%w: bad host in %q", store.ErrInvalidAddress, s)
		}
		port, err := strconv.Atoi(parts[1])
		if err != nil || port <= 0 || port > 65535 {
			return Address{}, fmt.Errorf("%w: bad port in %q", store.ErrInvalidAddress, s)
		}
		db := DefaultDB
		if len(parts) == 3 {
			if db, err = strconv.Atoi(parts[2]); err != nil || db < 0 {
				return Address{}, fmt.Errorf("%w: bad db in %q", store.ErrInvalidAddress, s)
			}
		}
		return Address{Network: "tcp", Addr: net.JoinHostPort(host, parts[1]), DB: db}, nil
	default:
		return Address{}, fmt.Errorf("%w: %q is not host:port:db or unix:path:db", store.ErrInvalidAddress, s)
	}
}

// Config tunes the go-redis clients opened by Dialer.
type Config struct {
	Password     string
	DialTimeout  time.Duration // 0 => go-redis default
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// Dialer returns a store.Dialer that parses node addresses and opens one
// go-redis client per node. Connections are established lazily by go-redis.
func Dialer(cfg Config) store.Dialer {
	return func(node string) (store.Store, error) {
		addr, err := ParseAddress(node)
		if err != nil {
			return nil, err
		}
		return New(node, goredis.NewClient(&goredis.Options{
			Network:      addr.Network,
			Addr:         addr.Addr,
			DB:           addr.DB,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		}))
	}
}

type Store struct {
	node string
	rdb  goredis.UniversalClient
}

var _ store.Store = (*Store)(nil)

// New wraps an existing client. node is only used in error reports.
func New(node string, client goredis.UniversalClient) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Store{node: node, rdb: client}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap(err)
	}
	return b, true, nil
}

func (s *Store) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
		case string:
			out[i] = []byte(vv)
		case []byte:
			out[i] = vv
		default:
			out[i] = []byte(fmt.Sprint(vv))
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.wrap(s.rdb.Set(ctx, key, value, ttl).Err())
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, s.wrap(err)
	}
	return n > 0, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.wrap(s.rdb.Del(ctx, keys...).Err())
}

func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	ks, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	return ks, nil
}

// TTL reads PTTL and maps its -2 (absent) and -1 (no expiry) replies. A key
// with under a millisecond left reports 1ms, never the "no expiry" zero.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, s.wrap(err)
	}
	switch {
	case d == -2:
		return 0, false, nil
	case d == -1:
		return 0, true, nil
	case d < time.Millisecond:
		return time.Millisecond, true, nil
	}
	return d, true, nil
}

func (s *Store) FlushDB(ctx context.Context) error {
	return s.wrap(s.rdb.FlushDB(ctx).Err())
}

func (s *Store) Pipeline() store.Pipeline { return &pipeline{s: s} }

// Close closes the client and every pooled connection. Repeated calls are no-ops.
func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

func (s *Store) wrap(err error) error { return Classify(s.node, err) }

// Classify tags go-redis transport failures with store.ErrConnectivity as a
// *store.ConnError for node. Server replies (WRONGTYPE, NOAUTH, ...) and nil
// pass through untouched.
func Classify(node string, err error) error {
	if err == nil || !isTransport(err) {
		return err
	}
	return &store.ConnError{Node: node, Err: err}
}

func isTransport(err error) bool {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, goredis.ErrClosed):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

type pipeline struct {
	s   *Store
	ops []func(ctx context.Context, p goredis.Pipeliner)
}

func (p *pipeline) Set(key string, value []byte, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	p.ops = append(p.ops, func(ctx context.Context, pl goredis.Pipeliner) {
		pl.Set(ctx, key, value, ttl)
	})
}

func (p *pipeline) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	p.ops = append(p.ops, func(ctx context.Context, pl goredis.Pipeliner) {
		pl.Del(ctx, keys...)
	})
}

// Exec sends every queued command in one round trip.
func (p *pipeline) Exec(ctx context.Context) error {
	if len(p.ops) == 0 {
		return nil
	}
	ops := p.ops
	p.ops = nil
	_, err := p.s.rdb.Pipelined(ctx, func(pl goredis.Pipeliner) error {
		for _, op := range ops {
			op(ctx, pl)
		}
		return nil
	})
	return p.s.wrap(err)
}
