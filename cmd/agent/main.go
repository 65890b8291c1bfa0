package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/and161185/liveperf/internal/buildinfo"
	"github.com/and161185/liveperf/internal/client"
	"github.com/and161185/liveperf/internal/config"
	"github.com/and161185/liveperf/internal/delay"
	"github.com/and161185/liveperf/internal/perf"
	"github.com/and161185/liveperf/internal/stream"
	"github.com/and161185/liveperf/storage/inmemory"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildinfo.Print(buildVersion, buildDate, buildCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.NewClientConfig()
	logger := cfg.Logger

	st := inmemory.NewMemStorage()
	collector := perf.NewCollector(st, logger)
	tracker := delay.NewTracker(collector, delay.WithLogger(logger))

	mode := stream.Replace
	if cfg.Mutate {
		mode = stream.Mutate
	}
	panel := stream.NewPanel(mode, cfg.MaxPoints, tracker, logger)
	source := stream.NewSource(delay.SystemClock, time.Duration(cfg.IngestDelay)*time.Millisecond)

	logger.Infof("Agent config: ServerAddr=%s, ReportInterval=%d, PollInterval=%d, RateLimit=%d, RenderInterval=%dms, PointInterval=%dms, IngestDelay=%dms, Mutate=%t, MaxPoints=%d",
		cfg.ServerAddr, cfg.ReportInterval, cfg.PollInterval, cfg.RateLimit,
		cfg.RenderInterval, cfg.PointInterval, cfg.IngestDelay, cfg.Mutate, cfg.MaxPoints)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		source.Run(ctx, panel, time.Duration(cfg.PointInterval)*time.Millisecond)
	}()
	go func() {
		defer wg.Done()
		panel.Run(ctx, time.Duration(cfg.RenderInterval)*time.Millisecond)
	}()

	clnt, err := client.NewClient(st, cfg, collector)
	if err != nil {
		logger.Errorf("agent setup: %v", err)
		stop()
		wg.Wait()
		os.Exit(1)
	}
	err = clnt.Run(ctx)
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("agent stopped: %v", err)
		os.Exit(1)
	}
}
