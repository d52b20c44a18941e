package promhooks

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(reg, "users")

	h.FallbackEntered("get", errors.New("refused"))
	h.FallbackEntered("get", errors.New("refused"))
	h.FallbackEntered("set", errors.New("refused"))
	h.FallbackProbe()
	h.SecondaryUnsupported("keys")
	h.CloseError("a:6379:0", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(h.fallbackEntered.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.fallbackEntered.WithLabelValues("set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.fallbackProbes))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.secondaryUnsupported.WithLabelValues("keys")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.closeErrors.WithLabelValues("a:6379:0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.inFallback))

	h.PrimaryRecovered()
	assert.Equal(t, 0.0, testutil.ToFloat64(h.inFallback))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.primaryRecoveries))
}

func TestCacheLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(reg, "orders")
	h.FallbackProbe()

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP rcache_fallback_probes_total Calls sent to the primary after the fallback budget was spent.
# TYPE rcache_fallback_probes_total counter
rcache_fallback_probes_total{cache="orders"} 1
`), "rcache_fallback_probes_total")
	require.NoError(t, err)
}

func TestTwoCachesShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() {
		New(reg, "a")
		New(reg, "b")
	})
}
