// Package config reads engine settings from the environment, with optional
// .env files, and derives the component configurations from them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/keyring"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/pipeline"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/scheduler"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/utils"
)

type Config struct {
	// Local
	ConfigDir    string
	SnapshotPath string
	User         string
	Timezone     string

	// Remote ledger (driver: sqlite, postgres or pgx)
	LedgerDriver string
	LedgerDSN    string

	// Scheduler
	TickInterval      time.Duration
	ReconcileInterval time.Duration
	FlushInterval     time.Duration

	// Remote writes
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RemoteTimeout  time.Duration

	// Observability
	Debug     bool
	SentryDSN string

	// Warnings collects values that were ignored in favour of defaults.
	// Load runs before the logger exists, so the caller logs them.
	Warnings []string
}

// Load reads .env files (defaulting to ./.env) when present and builds the
// configuration from the environment
func Load(files ...string) *Config {
	// A missing .env file is normal
	_ = godotenv.Load(files...)

	cfg := &Config{}
	cfg.ConfigDir = utils.ExpandHome(cfg.envString("BETTERU_CONFIG_DIR", constants.DefaultConfigDir))
	cfg.SnapshotPath = utils.ExpandHome(cfg.envString("BETTERU_SNAPSHOT_PATH", filepath.Join(cfg.ConfigDir, constants.SnapshotFileName)))
	cfg.User = cfg.envString("BETTERU_USER", "")
	cfg.Timezone = cfg.envString("BETTERU_TIMEZONE", "Local")

	cfg.LedgerDriver = cfg.envString("BETTERU_LEDGER_DRIVER", constants.DriverSQLite)
	cfg.LedgerDSN = cfg.envString("BETTERU_LEDGER_DSN", "")

	cfg.TickInterval = cfg.envDuration("BETTERU_TICK_INTERVAL", constants.DefaultTickInterval)
	cfg.ReconcileInterval = cfg.envDuration("BETTERU_RECONCILE_INTERVAL", constants.DefaultReconcileInterval)
	cfg.FlushInterval = cfg.envDuration("BETTERU_FLUSH_INTERVAL", constants.DefaultFlushInterval)

	cfg.MaxRetries = cfg.envInt("BETTERU_MAX_RETRIES", constants.DefaultMaxRetries)
	cfg.RetryBaseDelay = cfg.envDuration("BETTERU_RETRY_BASE_DELAY", constants.DefaultRetryBaseDelay)
	cfg.RetryMaxDelay = cfg.envDuration("BETTERU_RETRY_MAX_DELAY", constants.DefaultRetryMaxDelay)
	cfg.RemoteTimeout = cfg.envDuration("BETTERU_REMOTE_TIMEOUT", constants.DefaultRemoteTimeout)

	cfg.Debug = cfg.envBool("BETTERU_DEBUG", false)
	cfg.SentryDSN = cfg.envString("SENTRY_DSN", "")

	return cfg
}

// SetConfigDir moves the config directory and, unless the snapshot path was
// set explicitly, the snapshot with it
func (c *Config) SetConfigDir(dir string) {
	dir = utils.ExpandHome(dir)
	if c.SnapshotPath == filepath.Join(c.ConfigDir, constants.SnapshotFileName) {
		c.SnapshotPath = filepath.Join(dir, constants.SnapshotFileName)
	}
	c.ConfigDir = dir
}

// Validate checks the values Load could not check on its own
func (c *Config) Validate() error {
	var errs []error
	if !utils.ValidateTimezone(c.Timezone) {
		errs = append(errs, fmt.Errorf("invalid timezone %q", c.Timezone))
	}
	switch c.LedgerDriver {
	case constants.DriverSQLite, constants.DriverPostgres, constants.DriverPgx:
	default:
		errs = append(errs, fmt.Errorf("unsupported ledger driver %q (expected sqlite, postgres or pgx)", c.LedgerDriver))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries))
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		errs = append(errs, fmt.Errorf("retry delays must satisfy 0 < base (%s) <= max (%s)", c.RetryBaseDelay, c.RetryMaxDelay))
	}
	if c.TickInterval <= 0 || c.FlushInterval <= 0 {
		errs = append(errs, errors.New("tick and flush intervals must be positive"))
	}
	if c.ReconcileInterval < 0 {
		errs = append(errs, errors.New("reconcile interval must not be negative"))
	}
	return errors.Join(errs...)
}

// Location loads the configured timezone
func (c *Config) Location() (*time.Location, error) {
	return utils.LoadLocation(c.Timezone)
}

// RetryPolicy returns the remote write policy
func (c *Config) RetryPolicy() pipeline.RetryPolicy {
	p := pipeline.DefaultPolicy()
	p.MaxRetries = c.MaxRetries
	p.BaseDelay = c.RetryBaseDelay
	p.MaxDelay = c.RetryMaxDelay
	p.Timeout = c.RemoteTimeout
	return p
}

// SchedulerConfig returns the scheduler intervals
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		TickInterval:      c.TickInterval,
		ReconcileInterval: c.ReconcileInterval,
	}
}

// ResolveLedgerDSN returns the ledger connection string. The environment wins,
// then the OS keyring; a sqlite ledger defaults to a file next to the snapshot.
// Passwords are only accepted from the keyring.
func (c *Config) ResolveLedgerDSN() (string, error) {
	if c.LedgerDriver == constants.DriverSQLite {
		if c.LedgerDSN == "" {
			return filepath.Join(c.ConfigDir, "ledger.db"), nil
		}
		return utils.ExpandHome(c.LedgerDSN), nil
	}

	if c.LedgerDSN != "" {
		if err := ledger.ValidateConnString(c.LedgerDSN); err != nil {
			if errors.Is(err, ledger.ErrEmbeddedCredentials) {
				return "", fmt.Errorf("%w: store it with 'betteru keyring set' or use .pgpass", err)
			}
			return "", err
		}
		return c.LedgerDSN, nil
	}

	stored, err := keyring.GetConnectionString()
	if errors.Is(err, keyring.ErrNotFound) {
		return "", errors.New("no ledger connection string: set BETTERU_LEDGER_DSN or run 'betteru keyring set'")
	}
	if err != nil {
		return "", err
	}
	return stored, nil
}

func (c *Config) warn(key, value string, def any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s=%q, using default %v", key, value, def))
}

func (c *Config) envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func (c *Config) envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.warn(key, v, def)
		return def
	}
	return n
}

func (c *Config) envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.warn(key, v, def)
		return def
	}
	return b
}

func (c *Config) envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.warn(key, v, def)
		return def
	}
	return d
}
