package staging

import "github.com/puzpuzpuz/xsync/v4"

// Counter tracks per-run row accounting. Sources are normalized in parallel,
// so the counters must be safe for concurrent increments.
type Counter struct {
	processed *xsync.Counter
	dropped   *xsync.Counter
}

func NewCounter() *Counter {
	return &Counter{
		processed: xsync.NewCounter(),
		dropped:   xsync.NewCounter(),
	}
}

func (c *Counter) RowProcessed() { c.processed.Inc() }
func (c *Counter) RowDropped()   { c.dropped.Inc() }

func (c *Counter) Processed() uint64 { return uint64(c.processed.Value()) }
func (c *Counter) Dropped() uint64   { return uint64(c.dropped.Value()) }

// DropRate returns the dropped fraction of all rows seen this run.
func (c *Counter) DropRate() float64 {
	total := c.Processed() + c.Dropped()
	if total == 0 {
		return 0
	}
	return float64(c.Dropped()) / float64(total)
}

// CheckThreshold returns a DropRateExceededError when the run's drop rate
// passed the configured maximum.
func (c *Counter) CheckThreshold(max float64) error {
	rate := c.DropRate()
	if rate > max {
		return &DropRateExceededError{
			Dropped:   c.Dropped(),
			Processed: c.Processed(),
			Rate:      rate,
			Threshold: max,
		}
	}
	return nil
}
