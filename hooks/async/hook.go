// Package asynchook moves rcache hook calls off the request path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{FallbackEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := rcache.New[User](rcache.Options[User]{
//	    Nodes: []string{"10.0.0.1:6379:0"},
//	    Codec: codec.JSON[User]{},
//	    Hooks: hooks,
//	})
//
// Events are dropped when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/rcache"
)

type Hooks struct {
	inner   rcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ rcache.Hooks = (*Hooks)(nil)

func New(inner rcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Hook calls after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FallbackEntered(op string, err error) {
	h.try(func() { h.inner.FallbackEntered(op, err) })
}
func (h *Hooks) FallbackProbe()                 { h.try(h.inner.FallbackProbe) }
func (h *Hooks) PrimaryRecovered()              { h.try(h.inner.PrimaryRecovered) }
func (h *Hooks) SecondaryUnsupported(op string) { h.try(func() { h.inner.SecondaryUnsupported(op) }) }
func (h *Hooks) CloseError(node string, err error) {
	h.try(func() { h.inner.CloseError(node, err) })
}
