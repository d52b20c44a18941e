package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSamplingLogsFirstOfEveryN(t *testing.T) {
	var buf bytes.Buffer
	h := New(slog.New(slog.NewTextHandler(&buf, nil)), Options{FallbackEvery: 3})

	for range 7 {
		h.FallbackEntered("get", errors.New("dial tcp: refused"))
	}
	if n := strings.Count(buf.String(), "rcache.fallback_entered"); n != 3 {
		t.Fatalf("logged %d times; want 3 (calls 1, 4, 7)\n%s", n, buf.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.FallbackEntered("get", nil)
	h.FallbackProbe()
	h.PrimaryRecovered()
	h.SecondaryUnsupported("keys")
	h.CloseError("a", nil)
}

func TestCloseErrorIncludesNode(t *testing.T) {
	var buf bytes.Buffer
	h := New(slog.New(slog.NewTextHandler(&buf, nil)), Options{})
	h.CloseError("10.0.0.1:6379:0", errors.New("boom"))
	if !strings.Contains(buf.String(), "node=10.0.0.1:6379:0") {
		t.Fatalf("output: %s", buf.String())
	}
}
