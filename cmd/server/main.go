package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/liveperf/internal/buildinfo"
	"github.com/and161185/liveperf/internal/config"
	"github.com/and161185/liveperf/internal/server"
	"github.com/and161185/liveperf/storage"
	"github.com/and161185/liveperf/storage/inmemory"
	"github.com/and161185/liveperf/storage/postgres"
	"github.com/and161185/liveperf/storage/sqlite"
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

	cfg := config.NewServerConfig()

	var st storage.Storage
	switch {
	case cfg.DatabaseDsn != "":
		pg, err := postgres.NewPostgresStorage(ctx, cfg.DatabaseDsn)
		if err != nil {
			cfg.Logger.Fatal(err)
		}
		defer pg.Close()
		st = pg
	case cfg.SQLitePath != "":
		lite, err := sqlite.NewSQLiteStorage(ctx, cfg.SQLitePath)
		if err != nil {
			cfg.Logger.Fatal(err)
		}
		defer lite.Close()
		st = lite
	default:
		st = inmemory.NewMemStorage()
	}

	cfg.Logger.Infof("Server config: Addr=%s, StoreInterval=%d, FileStoragePath=%q, Restore=%t, DatabaseDSN set=%t, SQLitePath=%q",
		cfg.Addr,
		cfg.StoreInterval,
		cfg.FileStoragePath,
		cfg.Restore,
		cfg.DatabaseDsn != "",
		cfg.SQLitePath,
	)

	srv := server.NewServer(st, cfg)
	if err := srv.Run(ctx); err != nil {
		cfg.Logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
