// Package metrics parses and validates metrics received by the server.
package metrics

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/and161185/liveperf/model"
)

var (
	ErrInvalidValue = errors.New("invalid value")
	ErrInvalidType  = errors.New("invalid metric type")
	ErrInvalidName  = errors.New("invalid metric name")
)

// NewEmptyMetric builds a metric without a value, used for lookups.
func NewEmptyMetric(typ, name string) (*model.Metric, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	metricType := model.MetricType(typ)
	if invalidMetricType(metricType) {
		return nil, ErrInvalidType
	}
	return &model.Metric{ID: name, Type: metricType}, nil
}

// NewMetric parses a metric from URL parameters. Counter values must be integers.
func NewMetric(typ, name, val string) (*model.Metric, error) {
	metric, err := NewEmptyMetric(typ, name)
	if err != nil {
		return nil, err
	}

	switch metric.Type {
	case model.Counter:
		d, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		metric.Delta = &d
	default:
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		metric.Value = &v
	}
	return metric, nil
}

// CheckMetric validates a metric decoded from JSON.
func CheckMetric(m *model.Metric) error {
	if m.ID == "" {
		return ErrInvalidName
	}
	switch m.Type {
	case model.Counter:
		if m.Delta == nil {
			return fmt.Errorf("%w: delta required for counter", ErrInvalidValue)
		}
	case model.Gauge:
		if m.Value == nil {
			return fmt.Errorf("%w: value required for gauge", ErrInvalidValue)
		}
	default:
		return ErrInvalidType
	}
	return nil
}

func invalidMetricType(typ model.MetricType) bool {
	return typ != model.Gauge && typ != model.Counter
}
