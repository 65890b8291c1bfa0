package config

import (
	"flag"
	"os"

	"go.uber.org/zap"
)

// ServerConfig holds the configuration settings for the server.
type ServerConfig struct {
	Addr            string // Server address
	Logger          *zap.SugaredLogger
	StoreInterval   int    // Interval for storing metrics to file (in seconds)
	FileStoragePath string // Path to the file for metric storage
	Restore         bool   // Whether to restore metrics from file on startup
	DatabaseDsn     string // Data Source Name for PostgreSQL
	SQLitePath      string // Path to a SQLite database, used when DatabaseDsn is empty
	Key             string // Key for hash verification
	CryptoKey       string // Path to the RSA private key, sealed reports are required when set
	TrustedSubnet   string // CIDR, ex. "192.168.1.0/24"
}

// NewServerConfig creates and returns a new ServerConfig by parsing flags and environment variables.
func NewServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Addr:            "localhost:8080",
		StoreInterval:   300,
		FileStoragePath: "./tmp/metrics-db.json",
		Restore:         true,
	}

	fAddr := newStrFlag(cfg.Addr)
	fStoreI := newIntFlag(cfg.StoreInterval)
	fFile := newStrFlag(cfg.FileStoragePath)
	fRestore := newBoolFlag(cfg.Restore)
	fDSN, fSQLite, fKey, fCrypto, fConf, fTrustedSubnet := newStrFlag(""), newStrFlag(""), newStrFlag(""), newStrFlag(""), newStrFlag(""), newStrFlag("")

	flag.Var(fAddr, "a", "HTTP server address")
	flag.Var(fStoreI, "i", "store interval (seconds)")
	flag.Var(fFile, "f", "path to metrics file")
	flag.Var(fRestore, "r", "restore from file")
	flag.Var(fDSN, "d", "DB connection string")
	flag.Var(fSQLite, "s", "SQLite database path")
	flag.Var(fKey, "k", "Hash key string")
	flag.Var(fCrypto, "crypto-key", "path to the private key (PEM)")
	flag.Var(fConf, "c", "Path to JSON config file")
	flag.Var(fConf, "config", "Path to JSON config file (alias)")
	flag.Var(fTrustedSubnet, "t", "trusted subnet")
	flag.Parse()

	cfg.Logger = newLogger([]string{"stdout", "server.log"})

	cfg.Addr = fAddr.v
	cfg.StoreInterval = fStoreI.v
	cfg.FileStoragePath = fFile.v
	cfg.Restore = fRestore.v
	cfg.DatabaseDsn = fDSN.v
	cfg.SQLitePath = fSQLite.v
	cfg.Key = fKey.v
	cfg.CryptoKey = fCrypto.v
	cfg.TrustedSubnet = fTrustedSubnet.v

	// JSON has the lowest priority
	if fConf.v == "" {
		fConf.v = os.Getenv("CONFIG")
	}
	if fConf.v != "" {
		js, err := loadServerJSON(fConf.v)
		if err != nil {
			cfg.Logger.Warnf("failed to load config file %s: %v", fConf.v, err)
		} else {
			if js.Address != nil && !fAddr.set {
				cfg.Addr = *js.Address
			}
			if js.Restore != nil && !fRestore.set {
				cfg.Restore = *js.Restore
			}
			if js.StoreInterval != nil && !fStoreI.set {
				if sec, err := parseDurationSeconds(*js.StoreInterval); err == nil {
					cfg.StoreInterval = sec
				}
			}
			if js.StoreFile != nil && !fFile.set {
				cfg.FileStoragePath = *js.StoreFile
			}
			if js.DatabaseDSN != nil && !fDSN.set {
				cfg.DatabaseDsn = *js.DatabaseDSN
			}
			if js.SQLitePath != nil && !fSQLite.set {
				cfg.SQLitePath = *js.SQLitePath
			}
			if js.CryptoKey != nil && !fCrypto.set {
				cfg.CryptoKey = *js.CryptoKey
			}
			if js.TrustedSubnet != nil && !fTrustedSubnet.set {
				cfg.TrustedSubnet = *js.TrustedSubnet
			}
		}
	}

	readServerEnvironment(cfg)
	return cfg
}

func readServerEnvironment(cfg *ServerConfig) {
	logger := loggerOrNop(cfg.Logger)

	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.Addr = addr
	}
	envInt(logger, "STORE_INTERVAL", &cfg.StoreInterval)

	if fsp := os.Getenv("FILE_STORAGE_PATH"); fsp != "" {
		cfg.FileStoragePath = fsp
	} else if fsp := os.Getenv("STORE_FILE"); fsp != "" {
		cfg.FileStoragePath = fsp
	}
	if dbDsn := os.Getenv("DATABASE_DSN"); dbDsn != "" {
		cfg.DatabaseDsn = dbDsn
	}
	if p := os.Getenv("SQLITE_PATH"); p != "" {
		cfg.SQLitePath = p
	}
	envBool(logger, "RESTORE", &cfg.Restore)

	if key := os.Getenv("KEY"); key != "" {
		cfg.Key = key
	}
	if path := os.Getenv("CRYPTO_KEY"); path != "" {
		cfg.CryptoKey = path
	}
	if trustedSubnet := os.Getenv("TRUSTED_SUBNET"); trustedSubnet != "" {
		cfg.TrustedSubnet = trustedSubnet
	}
}
