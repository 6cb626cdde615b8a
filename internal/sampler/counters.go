package sampler

import (
	"log/slog"
	"sync/atomic"

	"mediapool.click/internal/trigger"
)

// errorKind indexes the per-kind validation counters
type errorKind int

const (
	kindInvalidIndex errorKind = iota
	kindOutOfRange
	kindMalformed
	kindVoiceExhausted
	kindDecoderFailure
	kindCount
)

var kindNames = [kindCount]string{
	"invalid_index",
	"out_of_range",
	"malformed",
	"voice_exhausted",
	"decoder_failure",
}

// warnInterval is how often one error kind may log, in seconds
const warnInterval = 1.0

// backpressureInterval is how often the queue-depth warning may log
const backpressureInterval = 5.0

// counters tracks dropped and rejected events per kind. Counts are atomic so
// Stats can snapshot them from any thread; the rate-limited logging runs only
// on the control thread.
type counters struct {
	counts   [kindCount]atomic.Uint64
	lastWarn [kindCount]float64

	lastBackpressureWarn float64
}

func newCounters() *counters {
	c := &counters{}
	for i := range c.lastWarn {
		c.lastWarn[i] = -warnInterval
	}
	c.lastBackpressureWarn = -backpressureInterval
	return c
}

// bump increments a kind's counter and emits at most one warning per kind
// per second. Control thread only.
func (c *counters) bump(kind errorKind, now float64) {
	total := c.counts[kind].Add(1)

	if now-c.lastWarn[kind] >= warnInterval {
		c.lastWarn[kind] = now
		slog.Warn("trigger event dropped",
			"kind", kindNames[kind],
			"total", total)
	}
}

// maybeWarnBackpressure logs at most once per five seconds when the queue is
// more than half full. Control thread only.
func (c *counters) maybeWarnBackpressure(q *trigger.Queue, now float64) {
	depth := q.SizeApprox()
	if depth <= q.Capacity()/2 {
		return
	}
	if now-c.lastBackpressureWarn < backpressureInterval {
		return
	}
	c.lastBackpressureWarn = now
	slog.Warn("trigger queue backpressure",
		"depth", depth,
		"capacity", q.Capacity(),
		"dropped", q.Dropped())
}

// snapshot returns the current counts keyed by kind name
func (c *counters) snapshot() map[string]uint64 {
	out := make(map[string]uint64, kindCount)
	for i := errorKind(0); i < kindCount; i++ {
		out[kindNames[i]] = c.counts[i].Load()
	}
	return out
}
