package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/metrics"
)

var _ device.ConvergenceCounter = (*metrics.PromCounter)(nil)

func TestPromCounter(t *testing.T) {
	c := metrics.NewPromCounter(prometheus.NewRegistry())

	c.NonConverged("limiter")
	c.NonConverged("limiter")
	c.NonConverged("convtest")
	assert.Equal(t, 3, c.Count())

	c.Reset()
	assert.Equal(t, 0, c.Count())
	c.NonConverged("convtest")
	assert.Equal(t, 1, c.Count())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Vec().WithLabelValues("limiter")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Vec().WithLabelValues("convtest")))
}

func TestForkSharesExport(t *testing.T) {
	c := metrics.NewPromCounter(prometheus.NewRegistry())
	f := c.Fork()

	f.NonConverged("limiter")
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, 1, f.Count())

	c.NonConverged("limiter")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Vec().WithLabelValues("limiter")))
}
