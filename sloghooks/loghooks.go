// Package sloghooks logs rcache hook events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/rcache"
)

type Options struct {
	// Sampling to avoid floods during an outage; 0/1 = log all.
	FallbackEvery    uint64
	UnsupportedEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fallbackCtr    atomic.Uint64
	unsupportedCtr atomic.Uint64
}

var _ rcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 1
}

func (h *Hooks) FallbackEntered(op string, err error) {
	if h.l == nil || !sample(h.opts.FallbackEvery, &h.fallbackCtr) {
		return
	}
	h.l.Warn("rcache.fallback_entered",
		"op", op,
		"err", err)
}

func (h *Hooks) FallbackProbe() {
	if h.l == nil {
		return
	}
	h.l.Debug("rcache.fallback_probe")
}

func (h *Hooks) PrimaryRecovered() {
	if h.l == nil {
		return
	}
	h.l.Info("rcache.primary_recovered")
}

func (h *Hooks) SecondaryUnsupported(op string) {
	if h.l == nil || !sample(h.opts.UnsupportedEvery, &h.unsupportedCtr) {
		return
	}
	h.l.Debug("rcache.secondary_unsupported",
		"op", op)
}

func (h *Hooks) CloseError(node string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("rcache.close_error",
		"node", node,
		"err", err)
}
