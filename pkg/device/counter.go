package device

import "sync/atomic"

// Counter is the plain ConvergenceCounter.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) NonConverged(string) { c.n.Add(1) }

func (c *Counter) Count() int { return int(c.n.Load()) }

func (c *Counter) Reset() { c.n.Store(0) }
