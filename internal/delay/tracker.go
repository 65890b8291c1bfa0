// Package delay measures how long data points take to reach the screen.
//
// A Tracker is called once per render with the frame about to be displayed
// and the one displayed before it. It reports, for every timestamp that is
// new since the last render of the same time series, the difference between
// the current time and that timestamp.
package delay

import (
	"sync"
	"time"

	"github.com/and161185/liveperf/internal/frame"
	"go.uber.org/zap"
)

// DataRenderDelay is the measurement name used for every sample.
const DataRenderDelay = "DataRenderDelay"

// Sink receives render delay samples.
type Sink interface {
	Add(name string, value float64)
}

// Clock returns the current time in epoch milliseconds.
type Clock func() int64

// SystemClock reads the wall clock.
func SystemClock() int64 {
	return time.Now().UnixMilli()
}

// Tracker keeps, per time series identity, the number of points already
// measured. Entries are never evicted.
type Tracker struct {
	sink      Sink
	now       Clock
	logger    *zap.SugaredLogger
	mu        sync.Mutex
	baselines map[uint64]int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.now = c }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a tracker that reports to sink.
func NewTracker(sink Sink, opts ...Option) *Tracker {
	t := &Tracker{
		sink:      sink,
		now:       SystemClock,
		logger:    zap.NewNop().Sugar(),
		baselines: make(map[uint64]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordRender emits one sample for every point of current's time field that
// has not been measured yet and returns the number of samples emitted.
//
// The first time a series is seen, everything already present in previous is
// treated as history. If a known series got shorter, its baseline is moved
// down to the new length and nothing is emitted.
func (t *Tracker) RecordRender(current, previous *frame.Frame) int {
	cur := current.TimeVector()
	if cur == nil {
		return 0
	}
	curLen := cur.Len()
	key := cur.ID()

	prevLen := 0
	if prev := previous.TimeVector(); prev != nil {
		prevLen = prev.Len()
	}

	t.mu.Lock()
	baseline, ok := t.baselines[key]
	if !ok {
		baseline = prevLen
	}
	t.baselines[key] = curLen
	t.mu.Unlock()

	if curLen < baseline {
		t.logger.Debugf("time series %d shrank from %d to %d, baseline reset", key, baseline, curLen)
		return 0
	}

	now := t.now()
	for i := baseline; i < curLen; i++ {
		t.sink.Add(DataRenderDelay, float64(now-cur.At(i)))
	}
	return curLen - baseline
}

// Baseline returns the number of points already measured for a series.
func (t *Tracker) Baseline(id uint64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.baselines[id]
	return n, ok
}

// Reset forgets every series.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baselines = make(map[uint64]int)
}
