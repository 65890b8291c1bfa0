// Package inmemory implements a map-backed metric store with JSON file dumps.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/and161185/liveperf/internal/errs"
	"github.com/and161185/liveperf/internal/utils"
	"github.com/and161185/liveperf/model"
)

type MemStorage struct {
	metrics map[string]*model.Metric
	mu      sync.RWMutex
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		metrics: make(map[string]*model.Metric),
	}
}

// Save stores a copy of m. A counter's delta is added to the stored one and
// m.Delta is updated to the accumulated value.
func (store *MemStorage) Save(ctx context.Context, m *model.Metric) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	existing, ok := store.metrics[m.ID]
	switch {
	case !ok || m.Type == model.Gauge || existing.Type != m.Type:
		store.metrics[m.ID] = clone(m)
	case m.Type == model.Counter && m.Delta != nil:
		sum := *m.Delta
		if existing.Delta != nil {
			sum += *existing.Delta
		}
		existing.Delta = utils.Ptr(sum)
		m.Delta = utils.Ptr(sum)
	}
	return nil
}

func (store *MemStorage) SaveBatch(ctx context.Context, metrics []model.Metric) error {
	for i := range metrics {
		if err := store.Save(ctx, &metrics[i]); err != nil {
			return err
		}
	}
	return nil
}

func (store *MemStorage) Get(ctx context.Context, m *model.Metric) (*model.Metric, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	val, ok := store.metrics[m.ID]
	if !ok || (m.Type != "" && val.Type != m.Type) {
		return m, errs.ErrMetricNotFound
	}
	return clone(val), nil
}

func (store *MemStorage) GetAll(ctx context.Context) (map[string]*model.Metric, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	result := make(map[string]*model.Metric, len(store.metrics))
	for k, v := range store.metrics {
		result[k] = clone(v)
	}
	return result, nil
}

// Reset drops every metric.
func (store *MemStorage) Reset() {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.metrics = make(map[string]*model.Metric)
}

func (store *MemStorage) SaveToFile(ctx context.Context, filePath string) error {
	metrics, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to get metrics: %w", err)
	}

	if len(metrics) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create dir: %w", err)
		}
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// LoadFromFile restores metrics dumped by SaveToFile. A missing file is not an error.
func (store *MemStorage) LoadFromFile(ctx context.Context, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	var metrics map[string]*model.Metric
	if err := json.Unmarshal(data, &metrics); err != nil {
		return fmt.Errorf("failed to unmarshal metrics: %w", err)
	}

	for _, m := range metrics {
		if err := store.Save(ctx, m); err != nil {
			return fmt.Errorf("failed to restore metric %s: %w", m.ID, err)
		}
	}
	return nil
}

func (store *MemStorage) Ping(ctx context.Context) error {
	return nil
}

func clone(m *model.Metric) *model.Metric {
	c := &model.Metric{ID: m.ID, Type: m.Type}
	if m.Delta != nil {
		c.Delta = utils.Ptr(*m.Delta)
	}
	if m.Value != nil {
		c.Value = utils.Ptr(*m.Value)
	}
	return c
}
