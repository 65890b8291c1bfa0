// Package testutils builds servers backed by in-memory storage for tests.
package testutils

import (
	"github.com/and161185/liveperf/internal/config"
	"github.com/and161185/liveperf/internal/server"
	"github.com/and161185/liveperf/storage/inmemory"
	"go.uber.org/zap"
)

func NewTestServer() *server.Server {
	return server.NewServer(inmemory.NewMemStorage(), &config.ServerConfig{
		StoreInterval:   1,
		FileStoragePath: "./dev-null",
		Logger:          zap.NewNop().Sugar(),
	})
}
