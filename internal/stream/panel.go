// Package stream simulates a live time series panel: points arrive from a
// source and are shown on the next render.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/liveperf/internal/frame"
	"go.uber.org/zap"
)

// Mode selects how the panel turns new points into the displayed frame.
type Mode int

const (
	// Mutate appends new points to the displayed frame in place.
	Mutate Mode = iota
	// Replace builds a new frame on every render.
	Replace
)

type recorder interface {
	RecordRender(current, previous *frame.Frame) int
}

// Panel holds the displayed frame and reports every render to a recorder.
type Panel struct {
	mode      Mode
	maxPoints int
	rec       recorder
	logger    *zap.SugaredLogger

	mu         sync.Mutex
	pending    []int64
	displayed  *frame.Frame
	windowFull bool
}

// NewPanel creates a panel and renders its initial empty frame, so that every
// point pushed afterwards is measured. maxPoints <= 0 keeps every point; it
// only applies to Replace mode.
func NewPanel(mode Mode, maxPoints int, rec recorder, logger *zap.SugaredLogger) *Panel {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &Panel{
		mode:      mode,
		maxPoints: maxPoints,
		rec:       rec,
		logger:    logger,
		displayed: frame.New("live", frame.NewTimeField("time")),
	}
	rec.RecordRender(p.displayed, nil)
	return p
}

// Push queues timestamps for the next render.
func (p *Panel) Push(ts ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, ts...)
}

// Displayed returns the frame currently on screen.
func (p *Panel) Displayed() *frame.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayed
}

// Render applies pending points and records the render. It returns the
// number of measured points. Renders are serialized: the recorder reads the
// displayed time vector while the panel lock is held.
func (p *Panel) Render() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.pending
	p.pending = nil
	prev := p.displayed

	var next *frame.Frame
	switch p.mode {
	case Mutate:
		prev.TimeVector().Append(pending...)
		next = prev
	default:
		values := append(prev.TimeVector().Values(), pending...)
		if p.maxPoints > 0 && len(values) > p.maxPoints {
			values = values[len(values)-p.maxPoints:]
			if !p.windowFull {
				p.windowFull = true
				p.logger.Warnf("window of %d points is full, later points replace old ones and are not measured", p.maxPoints)
			}
		}
		next = frame.New(prev.Name, frame.NewTimeField("time", values...))
	}
	p.displayed = next

	n := p.rec.RecordRender(next, prev)
	if n > 0 {
		p.logger.Debugf("render measured %d new points (total %d)", n, next.Len())
	}
	return n
}

// Run renders every interval until ctx is done.
func (p *Panel) Run(ctx context.Context, interval time.Duration) {
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
			p.Render()
		}
	}
}
