// Package logrus adapts a *logrus.Entry to rcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/rcache"
)

var _ rcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l; nil means logrus.StandardLogger().
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: l.WithField("component", "rcache")}
}

func (l Logger) Debug(msg string, f rcache.Fields) { l.E.WithFields(logrus.Fields(f)).Debug(msg) }
func (l Logger) Info(msg string, f rcache.Fields)  { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f rcache.Fields)  { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f rcache.Fields) { l.E.WithFields(logrus.Fields(f)).Error(msg) }
