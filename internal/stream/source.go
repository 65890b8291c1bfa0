package stream

import (
	"context"
	"time"
)

// Source emits one timestamp per tick, lagging the clock by a fixed ingest delay.
type Source struct {
	now         func() int64
	ingestDelay time.Duration
}

// NewSource creates a source reading time from now (epoch ms).
func NewSource(now func() int64, ingestDelay time.Duration) *Source {
	return &Source{now: now, ingestDelay: ingestDelay}
}

// Next returns the timestamp of a point produced now.
func (s *Source) Next() int64 {
	return s.now() - s.ingestDelay.Milliseconds()
}

// Run pushes a point into p every interval until ctx is done.
func (s *Source) Run(ctx context.Context, p *Panel, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Push(s.Next())
		}
	}
}
