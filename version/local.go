package version

import (
	"context"
	"sync/atomic"
)

// Local keeps the version in-process. Bumps are visible to every cache sharing
// the same *Local, but not to other processes.
type Local struct {
	v atomic.Int64
}

var _ Source = (*Local)(nil)

func NewLocal(initial int) *Local {
	l := &Local{}
	l.v.Store(int64(initial))
	return l
}

func (l *Local) Current(context.Context) (int, error) { return int(l.v.Load()), nil }

func (l *Local) Bump(_ context.Context, delta int) (int, error) {
	return int(l.v.Add(int64(delta))), nil
}

func (l *Local) Close(context.Context) error { return nil }
