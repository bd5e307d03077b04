// Package metrics exports simulator counters to Prometheus.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromCounter is a device.ConvergenceCounter that also exports every signal
// as bsim_nonconvergence_total{source=...}. Count and Reset act on the
// per-iteration tally only; the exported counter is monotonic.
type PromCounter struct {
	total *prometheus.CounterVec
	n     atomic.Int64
}

// NewPromCounter registers the counter on reg (prometheus.DefaultRegisterer when nil).
func NewPromCounter(reg prometheus.Registerer) *PromCounter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PromCounter{
		total: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "bsim_nonconvergence_total",
			Help: "Non-convergence signals raised by device evaluation, by source",
		}, []string{"source"}),
	}
}

func (c *PromCounter) NonConverged(source string) {
	c.total.WithLabelValues(source).Inc()
	c.n.Add(1)
}

func (c *PromCounter) Count() int { return int(c.n.Load()) }

func (c *PromCounter) Reset() { c.n.Store(0) }

// Fork returns a counter with its own tally that exports into the same collector, one per
// concurrently running analysis.
func (c *PromCounter) Fork() *PromCounter {
	return &PromCounter{total: c.total}
}

// Vec exposes the underlying collector.
func (c *PromCounter) Vec() *prometheus.CounterVec { return c.total }
