// Package client collects agent metrics and reports them to the metrics server.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/and161185/liveperf/cmd/agent/collector"
	"github.com/and161185/liveperf/internal/client/transport"
	"github.com/and161185/liveperf/internal/config"
	"github.com/and161185/liveperf/internal/utils"
	"github.com/and161185/liveperf/model"
	"go.uber.org/zap"
)

type storage interface {
	Save(ctx context.Context, metric *model.Metric) error
	GetAll(ctx context.Context) (map[string]*model.Metric, error)
}

type flusher interface {
	Flush(ctx context.Context) error
}

// Client implements an agent that sends metrics to the server.
type Client struct {
	storage    storage
	config     *config.ClientConfig
	httpClient *http.Client
	logger     *zap.SugaredLogger
	realIP     string
	flushers   []flusher

	mu       sync.Mutex
	lastSent map[string]int64
	inflight map[string]bool
}

// report is a metric on its way to the server. For a counter, total is the
// stored value its delta was computed against.
type report struct {
	metric model.Metric
	total  int64
}

// NewClient creates a new client instance with the given storage and configuration.
// Every flusher is flushed into storage once per poll interval. Reports are
// sealed when cfg.CryptoKey names a public key.
func NewClient(s storage, cfg *config.ClientConfig, flushers ...flusher) (*Client, error) {
	hc, err := transport.NewHTTPClient(cfg.ClientTimeout, cfg.CryptoKey)
	if err != nil {
		return nil, err
	}
	return NewClientWithHTTP(s, cfg, hc, flushers...), nil
}

// NewClientWithHTTP is NewClient with a ready http.Client.
func NewClientWithHTTP(s storage, cfg *config.ClientConfig, hc *http.Client, flushers ...flusher) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		storage:    s,
		config:     cfg,
		httpClient: hc,
		logger:     logger,
		realIP:     detectOutboundIP(),
		flushers:   flushers,
		lastSent:   make(map[string]int64),
		inflight:   make(map[string]bool),
	}
}

func detectOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if la, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return la.IP.String()
	}
	return ""
}

// Run collects metrics and sends them to the server until ctx is done. The
// remaining metrics are sent in one batch before it returns.
func (clnt *Client) Run(ctx context.Context) error {
	poll := time.Duration(clnt.config.PollInterval) * time.Second
	reportEvery := time.Duration(clnt.config.ReportInterval) * time.Second
	rl := max(clnt.config.RateLimit, 1)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() { defer wg.Done(); clnt.poll(ctx, poll, collector.CollectRuntimeMetrics, "runtime") }()
	go func() { defer wg.Done(); clnt.poll(ctx, poll, collector.CollectGopsutilMetrics, "gopsutil") }()
	go func() { defer wg.Done(); clnt.flushLoop(ctx, poll) }()

	reportsCh := make(chan *report, rl)
	var workers sync.WaitGroup
	for i := 0; i < rl; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for r := range reportsCh {
				reqCtx, cancel := context.WithTimeout(context.Background(),
					time.Duration(clnt.config.ClientTimeout)*time.Second)
				err := clnt.sendMetricToServer(reqCtx, &r.metric)
				if err != nil {
					clnt.logger.Warnf("failed to send metric %s: %v", r.metric.ID, err)
				}
				clnt.settle(err == nil, *r)
				cancel()
			}
		}()
	}

	clnt.dispatchMetrics(ctx, reportsCh, reportEvery)
	close(reportsCh)
	workers.Wait()
	wg.Wait()

	finalCtx, cancel := context.WithTimeout(context.Background(), time.Duration(clnt.config.ClientTimeout)*time.Second)
	defer cancel()
	clnt.flushAll(finalCtx)
	if err := clnt.sendToServer(finalCtx); err != nil {
		clnt.logger.Warnf("final report failed: %v", err)
	}
	return ctx.Err()
}

func (clnt *Client) poll(ctx context.Context, interval time.Duration, collect func() []model.Metric, label string) {
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
			clnt.collectAndSave(ctx, collect, label)
		}
	}
}

func (clnt *Client) collectAndSave(ctx context.Context, collect func() []model.Metric, label string) {
	for _, m := range collect() {
		if ctx.Err() != nil {
			return
		}
		mm := m
		if err := clnt.storage.Save(ctx, &mm); err != nil {
			clnt.logger.Errorf("failed to save metric [%s][%s]: %v", label, mm.ID, err)
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (clnt *Client) flushLoop(ctx context.Context, interval time.Duration) {
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
			clnt.flushAll(ctx)
		}
	}
}

func (clnt *Client) flushAll(ctx context.Context) {
	for _, f := range clnt.flushers {
		if err := f.Flush(ctx); err != nil {
			clnt.logger.Warnf("flush failed: %v", err)
		}
	}
}

func (clnt *Client) dispatchMetrics(ctx context.Context, ch chan<- *report, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pending, err := clnt.pending(ctx)
			if err != nil {
				clnt.logger.Errorf("get metrics: %v", err)
				continue
			}
			for i := range pending {
				select {
				case ch <- &pending[i]:
				case <-ctx.Done():
					clnt.settle(false, pending[i:]...)
					return
				}
			}
		}
	}
}

// pending returns every gauge and, for counters, the growth since the last
// delivered report. A counter already on its way is skipped until it settles.
func (clnt *Client) pending(ctx context.Context) ([]report, error) {
	all, err := clnt.storage.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	clnt.mu.Lock()
	defer clnt.mu.Unlock()

	out := make([]report, 0, len(all))
	for id, m := range all {
		switch m.Type {
		case model.Gauge:
			if m.Value != nil {
				out = append(out, report{metric: *m})
			}
		case model.Counter:
			if m.Delta == nil || clnt.inflight[id] {
				continue
			}
			if d := *m.Delta - clnt.lastSent[id]; d > 0 {
				clnt.inflight[id] = true
				out = append(out, report{metric: *model.NewCounter(id, d), total: *m.Delta})
			}
		}
	}
	return out, nil
}

// settle releases counters taken by pending. Delivered counters move their
// cursor forward; undelivered growth is reported again next time.
func (clnt *Client) settle(delivered bool, reports ...report) {
	clnt.mu.Lock()
	defer clnt.mu.Unlock()
	for _, r := range reports {
		if r.metric.Type != model.Counter {
			continue
		}
		delete(clnt.inflight, r.metric.ID)
		if delivered && r.total > clnt.lastSent[r.metric.ID] {
			clnt.lastSent[r.metric.ID] = r.total
		}
	}
}

func (clnt *Client) postGzipJSON(ctx context.Context, path string, payload any) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err = zw.Write(raw); err != nil {
		return 0, fmt.Errorf("gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return 0, fmt.Errorf("gzip close: %w", err)
	}
	compressed := body.Bytes()

	var code int
	err = utils.WithRetry(ctx, func() error {
		req, e := http.NewRequestWithContext(ctx, http.MethodPost, clnt.config.ServerAddr+path, bytes.NewReader(compressed))
		if e != nil {
			return e
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Encoding", "gzip")
		if clnt.realIP != "" {
			req.Header.Set("X-Real-IP", clnt.realIP)
		}
		if clnt.config.Key != "" {
			req.Header.Set("HashSHA256", utils.CalculateHash(compressed, clnt.config.Key))
		}

		resp, e := clnt.httpClient.Do(req)
		if e != nil {
			return e
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		code = resp.StatusCode
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	return code, nil
}

func (clnt *Client) sendMetricToServer(ctx context.Context, m *model.Metric) error {
	code, err := clnt.postGzipJSON(ctx, "/update/", m)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", code)
	}
	return nil
}

func (clnt *Client) sendToServer(ctx context.Context) (err error) {
	reports, err := clnt.pending(ctx)
	if err != nil || len(reports) == 0 {
		return err
	}
	defer func() { clnt.settle(err == nil, reports...) }()

	metrics := make([]model.Metric, len(reports))
	for i, r := range reports {
		metrics[i] = r.metric
	}

	code, err := clnt.postGzipJSON(ctx, "/updates/", metrics)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", code)
	}
	return nil
}
