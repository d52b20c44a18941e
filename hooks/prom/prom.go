// Package promhooks exports rcache hook events as Prometheus metrics.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/rcache"
)

type Hooks struct {
	fallbackEntered      *prometheus.CounterVec
	fallbackProbes       prometheus.Counter
	primaryRecoveries    prometheus.Counter
	secondaryUnsupported *prometheus.CounterVec
	closeErrors          *prometheus.CounterVec
	inFallback           prometheus.Gauge
}

var _ rcache.Hooks = (*Hooks)(nil)

// New registers the metrics on reg (prometheus.DefaultRegisterer when nil).
// name distinguishes several caches in one process; it becomes the "cache" label.
func New(reg prometheus.Registerer, name string) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg = prometheus.WrapRegistererWith(prometheus.Labels{"cache": name}, reg)
	f := promauto.With(reg)
	return &Hooks{
		fallbackEntered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcache_fallback_entered_total",
			Help: "Connectivity failures that switched the cache to its fallback.",
		}, []string{"op"}),
		fallbackProbes: f.NewCounter(prometheus.CounterOpts{
			Name: "rcache_fallback_probes_total",
			Help: "Calls sent to the primary after the fallback budget was spent.",
		}),
		primaryRecoveries: f.NewCounter(prometheus.CounterOpts{
			Name: "rcache_primary_recoveries_total",
			Help: "Probes that found the primary reachable again.",
		}),
		secondaryUnsupported: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcache_secondary_unsupported_total",
			Help: "Calls the fallback cache could not serve.",
		}, []string{"op"}),
		closeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcache_close_errors_total",
			Help: "Node connections that failed to close.",
		}, []string{"node"}),
		inFallback: f.NewGauge(prometheus.GaugeOpts{
			Name: "rcache_in_fallback",
			Help: "1 while the fallback cache serves calls, 0 otherwise.",
		}),
	}
}

func (h *Hooks) FallbackEntered(op string, _ error) {
	h.fallbackEntered.WithLabelValues(op).Inc()
	h.inFallback.Set(1)
}

func (h *Hooks) FallbackProbe() { h.fallbackProbes.Inc() }

func (h *Hooks) PrimaryRecovered() {
	h.primaryRecoveries.Inc()
	h.inFallback.Set(0)
}

func (h *Hooks) SecondaryUnsupported(op string) { h.secondaryUnsupported.WithLabelValues(op).Inc() }

func (h *Hooks) CloseError(node string, _ error) { h.closeErrors.WithLabelValues(node).Inc() }
