package rcache

import (
	"context"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/unkn0wn-root/rcache/codec"
	"github.com/unkn0wn-root/rcache/store"
	"github.com/unkn0wn-root/rcache/store/memory"
)

// testStore wraps an in-memory store, counts calls per method and can be
// switched "down" to fail every call with a connectivity error.
type testStore struct {
	*memory.Store
	node string
	down atomic.Bool

	mu       sync.Mutex
	calls    map[string]int
	closeErr error
}

func newTestStore(node string) *testStore {
	return &testStore{Store: memory.New(), node: node, calls: make(map[string]int)}
}

func (s *testStore) hit(op string) error {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
	if s.down.Load() {
		return &store.ConnError{Node: s.node, Err: syscall.ECONNREFUSED}
	}
	return nil
}

func (s *testStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// has checks the underlying map without counting a call.
func (s *testStore) has(wire string) bool {
	ok, _ := s.Store.Exists(context.Background(), wire)
	return ok
}

func (s *testStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *testStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.hit("get"); err != nil {
		return nil, false, err
	}
	return s.Store.Get(ctx, key)
}

func (s *testStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := s.hit("mget"); err != nil {
		return nil, err
	}
	return s.Store.MGet(ctx, keys...)
}

func (s *testStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.hit("set"); err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func (s *testStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.hit("exists"); err != nil {
		return false, err
	}
	return s.Store.Exists(ctx, key)
}

func (s *testStore) Del(ctx context.Context, keys ...string) error {
	if err := s.hit("del"); err != nil {
		return err
	}
	return s.Store.Del(ctx, keys...)
}

func (s *testStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := s.hit("keys"); err != nil {
		return nil, err
	}
	return s.Store.Keys(ctx, pattern)
}

func (s *testStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	if err := s.hit("ttl"); err != nil {
		return 0, false, err
	}
	return s.Store.TTL(ctx, key)
}

func (s *testStore) FlushDB(ctx context.Context) error {
	if err := s.hit("flushdb"); err != nil {
		return err
	}
	return s.Store.FlushDB(ctx)
}

func (s *testStore) Pipeline() store.Pipeline {
	return &testPipeline{Pipeline: s.Store.Pipeline(), s: s}
}

func (s *testStore) Close() error {
	_ = s.Store.Close()
	return s.closeErr
}

type testPipeline struct {
	store.Pipeline
	s *testStore
}

func (p *testPipeline) Exec(ctx context.Context) error {
	if err := p.s.hit("exec"); err != nil {
		return err
	}
	return p.Pipeline.Exec(ctx)
}

func testDialer() (store.Dialer, map[string]*testStore) {
	var mu sync.Mutex
	opened := make(map[string]*testStore)
	return func(node string) (store.Store, error) {
		mu.Lock()
		defer mu.Unlock()
		s := newTestStore(node)
		opened[node] = s
		return s, nil
	}, opened
}

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestCache[V any](t *testing.T, cd codec.Codec[V], nodes []string, optsOpt func(*Options[V])) (Cache[V], map[string]*testStore) {
	t.Helper()
	dial, stores := testDialer()
	opts := Options[V]{
		Nodes:     nodes,
		Dialer:    dial,
		Codec:     cd,
		KeyPrefix: "p",
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	c, err := New[V](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, stores
}

// recHooks records hook events.
type recHooks struct {
	mu          sync.Mutex
	entered     []string
	probes      int
	recovered   int
	unsupported []string
	closeErrs   []string
}

func (h *recHooks) FallbackEntered(op string, _ error) {
	h.mu.Lock()
	h.entered = append(h.entered, op)
	h.mu.Unlock()
}

func (h *recHooks) FallbackProbe() {
	h.mu.Lock()
	h.probes++
	h.mu.Unlock()
}

func (h *recHooks) PrimaryRecovered() {
	h.mu.Lock()
	h.recovered++
	h.mu.Unlock()
}

func (h *recHooks) SecondaryUnsupported(op string) {
	h.mu.Lock()
	h.unsupported = append(h.unsupported, op)
	h.mu.Unlock()
}

func (h *recHooks) CloseError(node string, _ error) {
	h.mu.Lock()
	h.closeErrs = append(h.closeErrs, node)
	h.mu.Unlock()
}

// memProvider is a map-backed provider.Provider.
type memProvider struct {
	mu     sync.Mutex
	m      map[string][]byte
	ttls   map[string]time.Duration
	costs  map[string]int64
	reject bool
	closed bool
}

func newMemProvider() *memProvider {
	return &memProvider{m: make(map[string][]byte), ttls: make(map[string]time.Duration), costs: make(map[string]int64)}
}

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false, nil
	}
	p.m[key] = value
	p.ttls[key] = ttl
	p.costs[key] = cost
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
