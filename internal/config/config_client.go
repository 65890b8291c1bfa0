// Package config provides application configuration structures and helpers.
package config

import (
	"flag"
	"os"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ClientConfig holds the configuration settings for the agent.
type ClientConfig struct {
	ServerAddr     string // Server address
	ReportInterval int    // Interval for sending metrics (in seconds)
	PollInterval   int    // Interval for collecting and flushing metrics (in seconds)
	ClientTimeout  int    // HTTP client timeout (in seconds)
	Key            string // Key for hash generation
	CryptoKey      string // Path to the server's RSA public key, reports are sealed when set
	RateLimit      int    // Limit on simultaneous outgoing requests
	RenderInterval int    // Panel render interval (in milliseconds)
	PointInterval  int    // Interval between generated data points (in milliseconds)
	IngestDelay    int    // Age of a point when it reaches the panel (in milliseconds)
	Mutate         bool   // Append to the displayed frame instead of replacing it
	MaxPoints      int    // Points kept by a replaced frame, 0 for all
	Logger         *zap.SugaredLogger
}

// NewClientConfig creates and returns a new ClientConfig by parsing flags and environment variables.
func NewClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		ServerAddr:     "http://localhost:8080",
		ReportInterval: 10,
		PollInterval:   2,
		ClientTimeout:  10,
		RateLimit:      runtime.NumCPU(),
		RenderInterval: 100,
		PointInterval:  250,
		IngestDelay:    50,
		Mutate:         true,
		MaxPoints:      1000,
	}

	fAddr, fKey, fCrypto, fConf := newStrFlag(""), newStrFlag(""), newStrFlag(""), newStrFlag("")
	fRep, fPoll, fTO, fRate := newIntFlag(cfg.ReportInterval), newIntFlag(cfg.PollInterval), newIntFlag(cfg.ClientTimeout), newIntFlag(cfg.RateLimit)
	fRender, fPoint, fDelay, fMax := newIntFlag(cfg.RenderInterval), newIntFlag(cfg.PointInterval), newIntFlag(cfg.IngestDelay), newIntFlag(cfg.MaxPoints)
	fMutate := newBoolFlag(cfg.Mutate)
	flag.Var(fAddr, "a", "HTTP server address (must include http(s)://)")
	flag.Var(fRep, "r", "report interval (seconds)")
	flag.Var(fPoll, "p", "poll interval (seconds)")
	flag.Var(fTO, "t", "client timeout (seconds)")
	flag.Var(fKey, "k", "Hash key string")
	flag.Var(fCrypto, "crypto-key", "path to the server public key (PEM)")
	flag.Var(fRate, "l", "rate limit")
	flag.Var(fRender, "fps-ms", "render interval (milliseconds)")
	flag.Var(fPoint, "point-ms", "data point interval (milliseconds)")
	flag.Var(fDelay, "delay-ms", "simulated ingest delay (milliseconds)")
	flag.Var(fMutate, "mutate", "mutate the displayed frame in place")
	flag.Var(fMax, "max-points", "points kept by a replaced frame; once full, new points are not measured")
	flag.Var(fConf, "c", "Path to JSON config file")
	flag.Var(fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	cfg.Logger = newLogger([]string{"stdout"})

	if fAddr.set {
		cfg.ServerAddr = fAddr.v
	}
	if fRep.set {
		cfg.ReportInterval = fRep.v
	}
	if fPoll.set {
		cfg.PollInterval = fPoll.v
	}
	if fTO.set {
		cfg.ClientTimeout = fTO.v
	}
	if fKey.set {
		cfg.Key = fKey.v
	}
	if fRate.set {
		cfg.RateLimit = fRate.v
	}
	if fCrypto.set {
		cfg.CryptoKey = fCrypto.v
	}
	if fRender.set {
		cfg.RenderInterval = fRender.v
	}
	if fPoint.set {
		cfg.PointInterval = fPoint.v
	}
	if fDelay.set {
		cfg.IngestDelay = fDelay.v
	}
	if fMutate.set {
		cfg.Mutate = fMutate.v
	}
	if fMax.set {
		cfg.MaxPoints = fMax.v
	}

	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		js, err := loadClientJSON(fConf.v)
		if err != nil {
			cfg.Logger.Warnf("failed to load config file %s: %v", fConf.v, err)
		} else {
			applyClientJSON(cfg, js, map[string]bool{
				"a": fAddr.set, "r": fRep.set, "p": fPoll.set, "crypto-key": fCrypto.set, "fps-ms": fRender.set,
				"point-ms": fPoint.set, "delay-ms": fDelay.set, "mutate": fMutate.set, "max-points": fMax.set,
			})
		}
	}

	readClientEnvironment(cfg)

	if cfg.RateLimit < 1 {
		cfg.RateLimit = 1
	}
	if !strings.HasPrefix(cfg.ServerAddr, "http://") && !strings.HasPrefix(cfg.ServerAddr, "https://") {
		cfg.ServerAddr = "http://" + cfg.ServerAddr
	}
	return cfg
}

func applyClientJSON(cfg *ClientConfig, js *clientJSON, set map[string]bool) {
	if js.Address != nil && !set["a"] {
		cfg.ServerAddr = *js.Address
	}
	if js.ReportInterval != nil && !set["r"] {
		if sec, err := parseDurationSeconds(*js.ReportInterval); err == nil {
			cfg.ReportInterval = sec
		}
	}
	if js.PollInterval != nil && !set["p"] {
		if sec, err := parseDurationSeconds(*js.PollInterval); err == nil {
			cfg.PollInterval = sec
		}
	}
	if js.CryptoKey != nil && !set["crypto-key"] {
		cfg.CryptoKey = *js.CryptoKey
	}
	if js.RenderInterval != nil && !set["fps-ms"] {
		if ms, err := parseDurationMillis(*js.RenderInterval); err == nil {
			cfg.RenderInterval = ms
		}
	}
	if js.PointInterval != nil && !set["point-ms"] {
		if ms, err := parseDurationMillis(*js.PointInterval); err == nil {
			cfg.PointInterval = ms
		}
	}
	if js.IngestDelay != nil && !set["delay-ms"] {
		if ms, err := parseDurationMillis(*js.IngestDelay); err == nil {
			cfg.IngestDelay = ms
		}
	}
	if js.Mutate != nil && !set["mutate"] {
		cfg.Mutate = *js.Mutate
	}
	if js.MaxPoints != nil && !set["max-points"] {
		cfg.MaxPoints = *js.MaxPoints
	}
}

func readClientEnvironment(cfg *ClientConfig) {
	logger := loggerOrNop(cfg.Logger)

	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.ServerAddr = addr
	}
	envInt(logger, "REPORT_INTERVAL", &cfg.ReportInterval)
	envInt(logger, "POLL_INTERVAL", &cfg.PollInterval)
	envInt(logger, "RATE_LIMIT", &cfg.RateLimit)
	envInt(logger, "RENDER_INTERVAL", &cfg.RenderInterval)
	envInt(logger, "POINT_INTERVAL", &cfg.PointInterval)
	envInt(logger, "INGEST_DELAY", &cfg.IngestDelay)
	envInt(logger, "MAX_POINTS", &cfg.MaxPoints)
	envBool(logger, "MUTATE_FRAMES", &cfg.Mutate)

	if key := os.Getenv("KEY"); key != "" {
		cfg.Key = key
	}
	if path := os.Getenv("CRYPTO_KEY"); path != "" {
		cfg.CryptoKey = path
	}
}

func envInt(logger *zap.SugaredLogger, name string, dst *int) {
	s := os.Getenv(name)
	if s == "" {
		return
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Warnf("invalid %s env var: %v", name, err)
		return
	}
	*dst = v
}

func envBool(logger *zap.SugaredLogger, name string, dst *bool) {
	s := os.Getenv(name)
	if s == "" {
		return
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		logger.Warnf("invalid %s env var: %v", name, err)
		return
	}
	*dst = v
}

func newLogger(outputs []string) *zap.SugaredLogger {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = outputs
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if l, err := zap.ParseAtomicLevel(lvl); err == nil {
			logCfg.Level = l
		}
	}
	return zap.Must(logCfg.Build()).Sugar()
}

func loggerOrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
