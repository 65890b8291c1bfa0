package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// serverJSON mirrors ServerConfig in the JSON config file. Unset keys stay nil.
type serverJSON struct {
	Address       *string `json:"address"`
	Restore       *bool   `json:"restore"`
	StoreInterval *string `json:"store_interval"` // Go duration, "300s"
	StoreFile     *string `json:"store_file"`
	DatabaseDSN   *string `json:"database_dsn"`
	SQLitePath    *string `json:"sqlite_path"`
	CryptoKey     *string `json:"crypto_key"`
	TrustedSubnet *string `json:"trusted_subnet"`
}

// clientJSON mirrors ClientConfig. Render, point and delay settings are
// durations read with millisecond precision.
type clientJSON struct {
	Address        *string `json:"address"`
	ReportInterval *string `json:"report_interval"`
	PollInterval   *string `json:"poll_interval"`
	CryptoKey      *string `json:"crypto_key"`
	RenderInterval *string `json:"render_interval"` // "100ms"
	PointInterval  *string `json:"point_interval"`
	IngestDelay    *string `json:"ingest_delay"`
	Mutate         *bool   `json:"mutate"`
	MaxPoints      *int    `json:"max_points"`
}

func loadServerJSON(path string) (*serverJSON, error) { return loadJSON[serverJSON](path) }

func loadClientJSON(path string) (*clientJSON, error) { return loadJSON[clientJSON](path) }

func loadJSON[T any](path string) (*T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &v, nil
}

// parseDurationSeconds turns "2s" or "1m" into whole seconds.
func parseDurationSeconds(s string) (int, error) { return parseDurationIn(s, time.Second) }

// parseDurationMillis turns "100ms" into whole milliseconds.
func parseDurationMillis(s string) (int, error) { return parseDurationIn(s, time.Millisecond) }

func parseDurationIn(s string, unit time.Duration) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return int(d / unit), nil
}
