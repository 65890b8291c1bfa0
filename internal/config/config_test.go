package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setEnvAndRun(t *testing.T, env map[string]string, fn func()) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	fn()
}

func withFreshFlagSet(t *testing.T, args []string, fn func()) {
	t.Helper()
	oldSet, oldArgs := flag.CommandLine, os.Args
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	os.Args = append([]string{oldArgs[0]}, args...)
	defer func() { flag.CommandLine, os.Args = oldSet, oldArgs }()
	fn()
}

func TestReadServerEnvironment(t *testing.T) {
	env := map[string]string{
		"ADDRESS":           "127.0.0.1:9999",
		"STORE_INTERVAL":    "5",
		"FILE_STORAGE_PATH": "/tmp/testfile.json",
		"RESTORE":           "false",
		"SQLITE_PATH":       "/tmp/m.db",
	}

	setEnvAndRun(t, env, func() {
		cfg := &ServerConfig{Restore: true}
		readServerEnvironment(cfg)

		require.Equal(t, "127.0.0.1:9999", cfg.Addr)
		require.Equal(t, 5, cfg.StoreInterval)
		require.Equal(t, "/tmp/testfile.json", cfg.FileStoragePath)
		require.Equal(t, "/tmp/m.db", cfg.SQLitePath)
		require.False(t, cfg.Restore)
	})
}

func TestReadServerEnvironment_Invalid(t *testing.T) {
	env := map[string]string{
		"STORE_INTERVAL": "bad",
		"RESTORE":        "nope",
		"DATABASE_DSN":   "postgres://u:p@h/db",
		"KEY":            "secret",
	}
	setEnvAndRun(t, env, func() {
		cfg := &ServerConfig{StoreInterval: 300, Restore: true}
		readServerEnvironment(cfg)
		require.Equal(t, 300, cfg.StoreInterval)
		require.True(t, cfg.Restore)
		require.Equal(t, "postgres://u:p@h/db", cfg.DatabaseDsn)
		require.Equal(t, "secret", cfg.Key)
	})
}

func TestReadClientEnvironment(t *testing.T) {
	env := map[string]string{
		"ADDRESS":         "srv:8081",
		"REPORT_INTERVAL": "7",
		"POLL_INTERVAL":   "3",
		"RENDER_INTERVAL": "16",
		"INGEST_DELAY":    "120",
		"MUTATE_FRAMES":   "false",
		"KEY":             "k",
		"CRYPTO_KEY":      "/keys/server.pub.pem",
	}
	setEnvAndRun(t, env, func() {
		cfg := &ClientConfig{Mutate: true}
		readClientEnvironment(cfg)
		require.Equal(t, "srv:8081", cfg.ServerAddr)
		require.Equal(t, 7, cfg.ReportInterval)
		require.Equal(t, 3, cfg.PollInterval)
		require.Equal(t, 16, cfg.RenderInterval)
		require.Equal(t, 120, cfg.IngestDelay)
		require.False(t, cfg.Mutate)
		require.Equal(t, "k", cfg.Key)
		require.Equal(t, "/keys/server.pub.pem", cfg.CryptoKey)
	})
}

func TestNewClientConfig_AddsHTTPPrefix(t *testing.T) {
	setEnvAndRun(t, map[string]string{"ADDRESS": "srv:9090"}, func() {
		withFreshFlagSet(t, nil, func() {
			cfg := NewClientConfig()
			require.Equal(t, "http://srv:9090", cfg.ServerAddr)
			require.NotNil(t, cfg.Logger)
			require.True(t, cfg.Mutate)
		})
	})
}

func TestNewClientConfig_FlagsOverJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"address": "json:1",
		"poll_interval": "4s",
		"render_interval": "40ms",
		"mutate": false,
		"max_points": 10
	}`), 0o600))

	withFreshFlagSet(t, []string{"-c", path, "-a", "flag:2", "-mutate", "-crypto-key", "agent.pub.pem"}, func() {
		cfg := NewClientConfig()
		require.Equal(t, "agent.pub.pem", cfg.CryptoKey)
		require.Equal(t, "http://flag:2", cfg.ServerAddr)
		require.Equal(t, 4, cfg.PollInterval)
		require.Equal(t, 40, cfg.RenderInterval)
		require.True(t, cfg.Mutate)
		require.Equal(t, 10, cfg.MaxPoints)
	})
}

func TestNewServerConfig_BuildsLoggerAndReadsEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	env := map[string]string{
		"ADDRESS":           "127.0.0.1:7070",
		"FILE_STORAGE_PATH": "/tmp/s.json",
		"DATABASE_DSN":      "dsn",
		"KEY":               "s",
	}
	setEnvAndRun(t, env, func() {
		withFreshFlagSet(t, []string{"-i", "9"}, func() {
			cfg := NewServerConfig()
			require.NotNil(t, cfg.Logger)
			require.Equal(t, "127.0.0.1:7070", cfg.Addr)
			require.Equal(t, 9, cfg.StoreInterval)
			require.Equal(t, "/tmp/s.json", cfg.FileStoragePath)
			require.Equal(t, "dsn", cfg.DatabaseDsn)
			require.Equal(t, "s", cfg.Key)
			require.True(t, cfg.Restore)
		})
	})
}

func TestNewServerConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	path := filepath.Join(dir, "server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"address": "0.0.0.0:8000",
		"restore": false,
		"store_interval": "2s",
		"sqlite_path": "m.db",
		"crypto_key": "server.pem",
		"trusted_subnet": "10.0.0.0/8"
	}`), 0o600))

	withFreshFlagSet(t, []string{"-config", path}, func() {
		cfg := NewServerConfig()
		require.Equal(t, "0.0.0.0:8000", cfg.Addr)
		require.False(t, cfg.Restore)
		require.Equal(t, 2, cfg.StoreInterval)
		require.Equal(t, "m.db", cfg.SQLitePath)
		require.Equal(t, "server.pem", cfg.CryptoKey)
		require.Equal(t, "10.0.0.0/8", cfg.TrustedSubnet)
	})
}

func TestSetFlag(t *testing.T) {
	i := newIntFlag(250)
	require.Equal(t, "250", i.String())
	require.False(t, i.IsBoolFlag())
	require.Error(t, i.Set("fast"))
	require.False(t, i.set)
	require.NoError(t, i.Set("16"))
	require.True(t, i.set)
	require.Equal(t, 16, i.v)

	b := newBoolFlag(true)
	require.True(t, b.IsBoolFlag())
	require.NoError(t, b.Set("false"))
	require.Equal(t, "false", b.String())

	var zero strFlag
	require.Empty(t, zero.String())
}

func TestParseDurations(t *testing.T) {
	ms, err := parseDurationMillis("1.5s")
	require.NoError(t, err)
	require.Equal(t, 1500, ms)

	sec, err := parseDurationSeconds("2m")
	require.NoError(t, err)
	require.Equal(t, 120, sec)

	_, err = parseDurationMillis("-10ms")
	require.Error(t, err)
	_, err = parseDurationSeconds("soon")
	require.Error(t, err)
}
