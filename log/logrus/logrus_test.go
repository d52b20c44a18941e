package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/rcache"
)

func TestLoggerForwardsFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Info("primary cache recovered", rcache.Fields{"op": "set"})

	e := hook.LastEntry()
	if e == nil {
		t.Fatal("no entry")
	}
	if e.Level != logrus.InfoLevel || e.Message != "primary cache recovered" {
		t.Fatalf("entry = %v %q", e.Level, e.Message)
	}
	if e.Data["op"] != "set" || e.Data["component"] != "rcache" {
		t.Fatalf("data = %v", e.Data)
	}
}
