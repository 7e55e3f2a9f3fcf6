// Package config loads server configuration from a YAML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Upstream modes.
const (
	UpstreamMock  = "mock"
	UpstreamRelay = "relay"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all server settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	WS       WSConfig       `yaml:"ws"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	CORSOrigin      string        `yaml:"cors_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// UpstreamConfig configures the chain data feed.
type UpstreamConfig struct {
	Mode              string        `yaml:"mode"`
	ChainID           string        `yaml:"chain_id"`
	RPCURL            string        `yaml:"rpc_url"`
	RelayURL          string        `yaml:"relay_url"`
	Timeout           time.Duration `yaml:"timeout"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MockSeed          uint64        `yaml:"mock_seed"`
	MockEventInterval time.Duration `yaml:"mock_event_interval"`
}

// TrackerConfig configures history caps, backfill and fetch retries.
type TrackerConfig struct {
	WalletHistory     int           `yaml:"wallet_history"`
	FlowHistory       int           `yaml:"flow_history"`
	MovementHistory   int           `yaml:"movement_history"`
	WalletBackfill    int           `yaml:"wallet_backfill"`
	FlowBackfillHours int           `yaml:"flow_backfill_hours"`
	HolderLimit       int           `yaml:"holder_limit"`
	WhaleRefresh      time.Duration `yaml:"whale_refresh_interval"`
	FetchRetries      int           `yaml:"fetch_retries"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
}

// WSConfig configures the subscriber channel.
type WSConfig struct {
	SendBuffer int `yaml:"send_buffer"`
}

// StorageConfig configures the journal and flow archive.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	JournalSize   int    `yaml:"journal_size"` // memory backend only
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			CORSOrigin:      "*",
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			Mode:              UpstreamMock,
			ChainID:           "sei-devnet-1",
			Timeout:           30 * time.Second,
			ReconnectAttempts: 5,
			ReconnectDelay:    time.Second,
			MockSeed:          42,
			MockEventInterval: 2 * time.Second,
		},
		Tracker: TrackerConfig{
			WalletHistory:     500,
			FlowHistory:       168,
			MovementHistory:   1000,
			WalletBackfill:    50,
			FlowBackfillHours: 24,
			HolderLimit:       100,
			WhaleRefresh:      15 * time.Minute,
			FetchRetries:      3,
			FetchTimeout:      15 * time.Second,
		},
		WS: WSConfig{
			SendBuffer: 256,
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			JournalSize: 10000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Missing files are ignored; existing environment variables are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.CORSOrigin = getEnv("CORS_ORIGIN", c.Server.CORSOrigin)
	c.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Upstream.Mode = getEnv("UPSTREAM_MODE", c.Upstream.Mode)
	c.Upstream.ChainID = getEnv("SEI_CHAIN_ID", c.Upstream.ChainID)
	c.Upstream.RPCURL = getEnv("SEI_RPC_URL", c.Upstream.RPCURL)
	c.Upstream.RelayURL = getEnv("SEI_WS_URL", c.Upstream.RelayURL)
	c.Upstream.Timeout = getEnvDuration("SEI_TIMEOUT", c.Upstream.Timeout)
	c.Upstream.ReconnectAttempts = getEnvInt("WS_MAX_RECONNECT_ATTEMPTS", c.Upstream.ReconnectAttempts)
	c.Upstream.ReconnectDelay = getEnvDuration("WS_RECONNECT_DELAY", c.Upstream.ReconnectDelay)
	c.Upstream.MockEventInterval = getEnvDuration("MOCK_EVENT_INTERVAL", c.Upstream.MockEventInterval)

	c.Tracker.FlowHistory = getEnvInt("TRACKER_FLOW_HISTORY", c.Tracker.FlowHistory)
	c.Tracker.MovementHistory = getEnvInt("TRACKER_MOVEMENT_HISTORY", c.Tracker.MovementHistory)
	c.Tracker.WalletHistory = getEnvInt("TRACKER_WALLET_HISTORY", c.Tracker.WalletHistory)
	c.Tracker.FetchRetries = getEnvInt("TRACKER_FETCH_RETRIES", c.Tracker.FetchRetries)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.PostgresDSN = getEnv("POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Storage.ClickhouseDSN = getEnv("CLICKHOUSE_DSN", c.Storage.ClickhouseDSN)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvBool("LOG_PRETTY", c.Log.Pretty)
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	switch c.Upstream.Mode {
	case UpstreamMock:
	case UpstreamRelay:
		if c.Upstream.RPCURL == "" {
			errs = append(errs, errors.New("upstream.rpc_url is required in relay mode"))
		}
		if c.Upstream.RelayURL == "" {
			errs = append(errs, errors.New("upstream.relay_url is required in relay mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("upstream.mode must be %q or %q, got %q", UpstreamMock, UpstreamRelay, c.Upstream.Mode))
	}
	if c.Upstream.ReconnectAttempts < 1 {
		errs = append(errs, errors.New("upstream.reconnect_attempts must be at least 1"))
	}

	t := c.Tracker
	if t.WalletHistory < 1 {
		errs = append(errs, errors.New("tracker.wallet_history must be positive"))
	}
	if t.FlowHistory < 24 || t.FlowHistory > 168 {
		errs = append(errs, fmt.Errorf("tracker.flow_history must be within [24, 168], got %d", t.FlowHistory))
	}
	if t.MovementHistory < 50 || t.MovementHistory > 1000 {
		errs = append(errs, fmt.Errorf("tracker.movement_history must be within [50, 1000], got %d", t.MovementHistory))
	}
	if t.WalletBackfill < 0 || t.FlowBackfillHours < 0 || t.HolderLimit < 0 {
		errs = append(errs, errors.New("tracker backfill sizes must not be negative"))
	}
	if t.FetchRetries < 0 {
		errs = append(errs, errors.New("tracker.fetch_retries must not be negative"))
	}

	if c.WS.SendBuffer < 1 {
		errs = append(errs, errors.New("ws.send_buffer must be positive"))
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn and storage.clickhouse_dsn are required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage.Backend))
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level unknown: %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
