package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Driver identifies the relational backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const (
	DefaultSQLitePath = "data/blue_crab.db"
	DefaultAddr       = "127.0.0.1:5050"
)

var (
	ErrUnknownDriver  = errors.New("unknown database driver")
	ErrMissingDSN     = errors.New("DATABASE_URL is required for the postgres driver")
	ErrInvalidLimiter = errors.New("rate limit and burst must be positive")
)

type Database struct {
	Driver      Driver        `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	SlowQuery   time.Duration `yaml:"slow_query"`
	Verbose     bool          `yaml:"verbose"`
}

type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RPS            float64  `yaml:"rps"`
	Burst          int      `yaml:"burst"`
}

type Config struct {
	Env      string   `yaml:"env"`
	LogLevel string   `yaml:"log_level"`
	Database Database `yaml:"database"`
	Server   Server   `yaml:"server"`
}

func defaults() Config {
	return Config{
		Env:      "development",
		LogLevel: "info",
		Database: Database{
			Driver:     DriverSQLite,
			SQLitePath: DefaultSQLitePath,
			SlowQuery:  100 * time.Millisecond,
		},
		Server: Server{
			Addr:           DefaultAddr,
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			RPS:            50,
			Burst:          100,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CRABGIS_CONFIG, and environment variables, in that order of precedence.
//
// Environment variables:
//   - CRABGIS_CONFIG: path to a YAML file
//   - CRABGIS_ENV: "development" or "production" (default: development)
//   - CRABGIS_LOG_LEVEL: zap level (default: info)
//   - CRABGIS_DB_DRIVER: "sqlite" or "postgres" (default: sqlite)
//   - CRABGIS_SQLITE_PATH: database file (default: data/blue_crab.db)
//   - DATABASE_URL: postgres DSN
//   - CRABGIS_SLOW_QUERY_MS: slow query threshold (default: 100)
//   - CRABGIS_ADDR: listen address (default: 127.0.0.1:5050)
//   - CRABGIS_ALLOWED_ORIGINS: comma separated CORS origins
//   - CRABGIS_RPS, CRABGIS_BURST: API rate limit
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CRABGIS_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Env, "CRABGIS_ENV")
	setString(&cfg.LogLevel, "CRABGIS_LOG_LEVEL")
	if v := env("CRABGIS_DB_DRIVER"); v != "" {
		cfg.Database.Driver = Driver(strings.ToLower(v))
	}
	setString(&cfg.Database.SQLitePath, "CRABGIS_SQLITE_PATH")
	setString(&cfg.Database.PostgresDSN, "DATABASE_URL")
	setString(&cfg.Server.Addr, "CRABGIS_ADDR")

	if v := env("CRABGIS_SLOW_QUERY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRABGIS_SLOW_QUERY_MS: %w", err)
		}
		cfg.Database.SlowQuery = time.Duration(ms) * time.Millisecond
	}
	if v := env("CRABGIS_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v := env("CRABGIS_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CRABGIS_RPS: %w", err)
		}
		cfg.Server.RPS = f
	}
	if v := env("CRABGIS_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRABGIS_BURST: %w", err)
		}
		cfg.Server.Burst = n
	}
	return nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

// Validate checks that the selected backend is usable.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("sqlite path is empty")
		}
	case DriverPostgres:
		if c.Database.PostgresDSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	if c.Server.RPS <= 0 || c.Server.Burst <= 0 {
		return ErrInvalidLimiter
	}
	return nil
}

func (c Config) Production() bool { return strings.EqualFold(c.Env, "production") }
