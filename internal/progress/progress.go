// Package progress defines the reporter contract shared by every download in
// the installer and the aggregator that folds many concurrent downloads into a
// single byte count.
package progress

import (
	"sync"
	"time"
)

// UnknownTotal is passed to Setup when the final size is not known.
const UnknownTotal int64 = -1

// DefaultInterval is the minimum delay between two aggregated emissions.
const DefaultInterval = 200 * time.Millisecond

// Reporter receives progress for one logical operation. Implementations
// must be safe for use from multiple goroutines.
type Reporter interface {
	Setup(total int64, label string)
	Progress(current int64)
	SetMessage(text string)
	Done()
}

// Nop discards every update.
type Nop struct{}

func (Nop) Setup(int64, string) {}
func (Nop) Progress(int64)      {}
func (Nop) SetMessage(string)   {}
func (Nop) Done()               {}

// OrNop returns r, or a Nop reporter when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop{}
	}
	return r
}

// Aggregator sums byte deltas from many file trackers into one monotonically
// increasing total and forwards it to a Reporter at most once per interval.
type Aggregator struct {
	out      Reporter
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	total    int64
	lastEmit time.Time
	emitted  int64
}

// NewAggregator returns an aggregator forwarding to out. A non-positive
// interval selects DefaultInterval.
func NewAggregator(out Reporter, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{
		out:      OrNop(out),
		interval: interval,
		now:      time.Now,
	}
}

// Track returns a tracker for one file download.
func (a *Aggregator) Track() *Tracker {
	return &Tracker{agg: a}
}

// Total returns the bytes accumulated so far.
func (a *Aggregator) Total() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

func (a *Aggregator) add(delta int64) {
	if delta == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.total += delta
	now := a.now()
	if now.Sub(a.lastEmit) >= a.interval {
		a.lastEmit = now
		a.emitted = a.total
		a.out.Progress(a.total)
	}
}

// Flush forwards the current total if it has not been emitted yet.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.emitted == a.total {
		return
	}
	a.lastEmit = a.now()
	a.emitted = a.total
	a.out.Progress(a.total)
}

// Tracker converts the absolute progress of one file into deltas for its
// aggregator. A tracker belongs to a single download and is not safe for
// concurrent use.
type Tracker struct {
	agg  *Aggregator
	last int64
}

// Report records that the file has now received current bytes in total.
func (t *Tracker) Report(current int64) {
	delta := current - t.last
	t.last = current
	t.agg.add(delta)
}
