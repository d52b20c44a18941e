// Package memory is an in-process store.Store.
//
// It mirrors the subset of Redis semantics rcache relies on: per-key expiry,
// KEYS with `*` and `?` wildcards, TTL with "absent" and "no expiry" states
// and pipelines applied atomically on Exec. Expired entries are dropped lazily
// on access.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/match"

	"github.com/unkn0wn-root/rcache/store"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && !now.Before(e.exp)
}

// ErrPattern is returned by Keys for `[...]` character classes, which only
// a real Redis understands.
var ErrPattern = errors.New("memory store: character classes are not supported")

// Store keeps entries in a map guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	m      map[string]entry
	now    func() time.Time
	closed bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{m: make(map[string]entry), now: time.Now}
}

// Dialer returns a store.Dialer handing out one fresh Store per node.
// The stores are also recorded in the returned map so callers can inspect them.
func Dialer() (store.Dialer, map[string]*Store) {
	var mu sync.Mutex
	opened := make(map[string]*Store)
	return func(node string) (store.Store, error) {
		mu.Lock()
		defer mu.Unlock()
		s := New()
		opened[node] = s
		return s, nil
	}, opened
}

// lookup must be called with at least a read lock held.
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.m[key]
	if !ok || e.expired(s.now()) {
		return entry{}, false
	}
	return e, true
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return clone(e.v), true, nil
}

func (s *Store) MGet(_ context.Context, keys ...string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if e, ok := s.lookup(k); ok {
			out[i] = clone(e.v)
		}
	}
	return out, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.set(key, value, ttl)
	s.mu.Unlock()
	return nil
}

func (s *Store) set(key string, value []byte, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.m[key] = entry{v: clone(value), exp: exp}
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(key)
	return ok, nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.m, k)
	}
	s.mu.Unlock()
	return nil
}

// Keys returns matching keys sorted, so callers get stable output.
func (s *Store) Keys(_ context.Context, pattern string) ([]string, error) {
	if strings.ContainsRune(pattern, '[') {
		return nil, ErrPattern
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []string
	for k, e := range s.m {
		if e.expired(now) {
			continue
		}
		if match.Match(k, pattern) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	if e.exp.IsZero() {
		return 0, true, nil
	}
	return e.exp.Sub(s.now()), true, nil
}

func (s *Store) FlushDB(context.Context) error {
	s.mu.Lock()
	s.m = make(map[string]entry)
	s.mu.Unlock()
	return nil
}

func (s *Store) Pipeline() store.Pipeline { return &pipeline{s: s} }

// Close marks the store closed. Data is kept so a closed store can still be inspected.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	n := 0
	for _, e := range s.m {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

type pipeline struct {
	s   *Store
	ops []func()
}

func (p *pipeline) Set(key string, value []byte, ttl time.Duration) {
	v := clone(value)
	p.ops = append(p.ops, func() { p.s.set(key, v, ttl) })
}

func (p *pipeline) Del(keys ...string) {
	ks := append([]string(nil), keys...)
	p.ops = append(p.ops, func() {
		for _, k := range ks {
			delete(p.s.m, k)
		}
	})
}

func (p *pipeline) Exec(context.Context) error {
	p.s.mu.Lock()
	for _, op := range p.ops {
		op()
	}
	p.s.mu.Unlock()
	p.ops = nil
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
