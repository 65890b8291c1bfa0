// Package perf aggregates live performance measurements between flushes.
package perf

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/and161185/liveperf/model"
	"go.uber.org/zap"
)

// Stats is the aggregate of one measurement since the last flush.
type Stats struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Last  float64
}

// Mean returns the average value or 0 for an empty window.
func (s Stats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

func (s *Stats) add(v float64) {
	if s.Count == 0 {
		s.Min, s.Max = v, v
	} else {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Count++
	s.Sum += v
	s.Last = v
}

type storage interface {
	SaveBatch(ctx context.Context, metrics []model.Metric) error
}

// Collector receives measurements by name. Add never blocks on I/O; the
// accumulated windows are written to storage by Flush.
type Collector struct {
	store  storage
	logger *zap.SugaredLogger

	mu      sync.Mutex
	windows map[string]*Stats
}

// NewCollector creates a collector writing to store. A nil logger is replaced by a no-op one.
func NewCollector(store storage, logger *zap.SugaredLogger) *Collector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Collector{
		store:   store,
		logger:  logger,
		windows: make(map[string]*Stats),
	}
}

// Add records a single measurement.
func (c *Collector) Add(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[name]
	if !ok {
		w = &Stats{}
		c.windows[name] = w
	}
	w.add(value)
}

// Stats returns a copy of the current windows.
func (c *Collector) Stats() map[string]Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Stats, len(c.windows))
	for name, w := range c.windows {
		out[name] = *w
	}
	return out
}

// Flush saves every non-empty window as metrics and starts new windows.
// On a storage error the windows are dropped, not retried.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	windows := c.windows
	c.windows = make(map[string]*Stats)
	c.mu.Unlock()

	if len(windows) == 0 {
		return nil
	}

	names := make([]string, 0, len(windows))
	for name := range windows {
		names = append(names, name)
	}
	sort.Strings(names)

	metrics := make([]model.Metric, 0, len(windows)*5)
	for _, name := range names {
		metrics = append(metrics, ToMetrics(name, *windows[name])...)
	}

	if err := c.store.SaveBatch(ctx, metrics); err != nil {
		c.logger.Errorf("failed to flush %d measurements: %v", len(names), err)
		return fmt.Errorf("flush: %w", err)
	}
	c.logger.Debugf("flushed measurements: %v", names)
	return nil
}

// ToMetrics converts a window into the metrics reported for name.
func ToMetrics(name string, s Stats) []model.Metric {
	return []model.Metric{
		*model.NewGauge(name, s.Last),
		*model.NewCounter(name+"Count", s.Count),
		*model.NewGauge(name+"Min", s.Min),
		*model.NewGauge(name+"Max", s.Max),
		*model.NewGauge(name+"Mean", s.Mean()),
	}
}
