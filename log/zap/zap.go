// Package zap adapts a *zap.Logger to rcache.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/rcache"
)

var _ rcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New wraps l; nil means a no-op logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("rcache")}
}

func (z Logger) Debug(msg string, f rcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f rcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f rcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f rcache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f rcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
