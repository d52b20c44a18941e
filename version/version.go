// Package version provides the default key version of a cache namespace.
//
// Every cache key embeds a version. Bumping the namespace version makes all
// keys written under the previous one unreachable at once; they age out through
// their TTLs.
//
// Use Static for a fixed version, Local for an in-process counter, or Redis to
// share the counter across processes.
package version

import (
	"context"
	"errors"
)

// ErrReadOnly is returned by Bump on a Static source.
var ErrReadOnly = errors.New("version: static source cannot be bumped")

// Source abstracts where the namespace version lives.
type Source interface {
	// Current returns the version new keys are built with.
	Current(ctx context.Context) (int, error)
	// Bump adds delta and returns the new version.
	Bump(ctx context.Context, delta int) (int, error)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}

// Static always reports the same version.
type Static int

var _ Source = Static(0)

func (s Static) Current(context.Context) (int, error) { return int(s), nil }

func (s Static) Bump(context.Context, int) (int, error) { return int(s), ErrReadOnly }

func (Static) Close(context.Context) error { return nil }
