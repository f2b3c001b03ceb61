// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers accepted by StoreConfig.Driver.
const (
	StoreDriverMemory   = "memory"
	StoreDriverFile     = "file"
	StoreDriverSQLite   = "sqlite"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Remote        RemoteConfig        `yaml:"remote"`
	Store         StoreConfig         `yaml:"store"`
	Query         QueryConfig         `yaml:"query"`
	Search        SearchConfig        `yaml:"search"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// RemoteConfig describes the creature catalogue API.
type RemoteConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	PageSize       int                  `yaml:"page_size"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig describes circuit breaker settings for the remote API.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// StoreConfig describes local key-value persistence.
type StoreConfig struct {
	Driver       string `yaml:"driver"`
	Path         string `yaml:"path"`
	AddrEnv      string `yaml:"addr_env"`
	DSNEnv       string `yaml:"dsn_env"`
	DB           int    `yaml:"db"`
	KeyPrefix    string `yaml:"key_prefix"`
	FavoritesKey string `yaml:"favorites_key"`
}

// StaleTimes holds the staleness window of each query kind.
type StaleTimes struct {
	List      time.Duration `yaml:"list"`
	Detail    time.Duration `yaml:"detail"`
	Species   time.Duration `yaml:"species"`
	Evolution time.Duration `yaml:"evolution"`
	Search    time.Duration `yaml:"search"`
	Favorites time.Duration `yaml:"favorites"`
}

// QueryConfig describes the query cache and its retry policy.
type QueryConfig struct {
	StaleTimes      StaleTimes    `yaml:"stale_times"`
	MaxEntries      int           `yaml:"max_entries"`
	ReadRetries     int           `yaml:"read_retries"`
	MutationRetries int           `yaml:"mutation_retries"`
	BackoffInitial  time.Duration `yaml:"backoff_initial"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
}

// SearchConfig describes search session settings.
type SearchConfig struct {
	Debounce          time.Duration `yaml:"debounce"`
	MinRemoteLength   int           `yaml:"min_remote_length"`
	DetailConcurrency int           `yaml:"detail_concurrency"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`
	// LogFormat is "json" (default) or "console".
	LogFormat string        `yaml:"log_format"`
	Tracing   TracingConfig `yaml:"tracing"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Correlation-Id", "X-Device-Id"},
				MaxAge:         86400,
			},
		},
		Remote: RemoteConfig{
			BaseURL:  "https://pokeapi.co/api/v2",
			Timeout:  15 * time.Second,
			PageSize: 20,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Store: StoreConfig{
			Driver:       StoreDriverFile,
			Path:         "pokerub-store.json",
			AddrEnv:      "POKERUB_REDIS_ADDR",
			DSNEnv:       "POKERUB_DATABASE_URL",
			KeyPrefix:    "pokerub:",
			FavoritesKey: "favorites-storage",
		},
		Query: QueryConfig{
			StaleTimes: StaleTimes{
				List:      10 * time.Minute,
				Detail:    15 * time.Minute,
				Species:   15 * time.Minute,
				Evolution: 15 * time.Minute,
				Search:    5 * time.Minute,
				Favorites: 0,
			},
			MaxEntries:      2000,
			ReadRetries:     3,
			MutationRetries: 1,
			BackoffInitial:  200 * time.Millisecond,
			BackoffMax:      5 * time.Second,
		},
		Search: SearchConfig{
			Debounce:          500 * time.Millisecond,
			MinRemoteLength:   3,
			DetailConcurrency: 8,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Remote.BaseURL == "" {
		errs = append(errs, "remote.base_url is required")
	}
	if c.Remote.Timeout <= 0 {
		errs = append(errs, "remote.timeout must be positive")
	}
	if c.Remote.PageSize < 1 {
		errs = append(errs, "remote.page_size must be positive")
	}
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverRedis, StoreDriverPostgres:
	case StoreDriverFile, StoreDriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Sprintf("store.path is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.FavoritesKey == "" {
		errs = append(errs, "store.favorites_key is required")
	}
	if c.Query.ReadRetries < 0 || c.Query.MutationRetries < 0 {
		errs = append(errs, "query retries must not be negative")
	}
	switch c.Observability.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("observability.log_format %q is not supported", c.Observability.LogFormat))
	}
	if c.Search.MinRemoteLength < 1 {
		errs = append(errs, "search.min_remote_length must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads POKERUB_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POKERUB_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("POKERUB_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("POKERUB_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("POKERUB_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("POKERUB_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("POKERUB_OBSERVABILITY_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
