// Package storage declares the metric store shared by the agent and the server.
package storage

import (
	"context"

	"github.com/and161185/liveperf/model"
)

// Storage keeps metrics by ID. Gauges are overwritten, counters accumulate.
type Storage interface {
	Save(ctx context.Context, metric *model.Metric) error
	SaveBatch(ctx context.Context, metrics []model.Metric) error
	Get(ctx context.Context, metric *model.Metric) (*model.Metric, error)
	GetAll(ctx context.Context) (map[string]*model.Metric, error)
	Ping(ctx context.Context) error
}
