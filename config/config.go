package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Unitflow UnitflowConfig `yaml:"unitflow"`
	Venue    VenueConfig    `yaml:"venue"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type UnitflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Namespace  string `yaml:"namespace"`
	Dashboard  string `yaml:"dashboard"`
	Region     string `yaml:"region"`
}

type VenueConfig struct {
	APIKey         string               `yaml:"api_key"`
	APISecret      string               `yaml:"api_secret"`
	Testnet        bool                 `yaml:"testnet"`
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Contracts      []string             `yaml:"contracts"`
	Stream         StreamConfig         `yaml:"stream"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// LoadConfig reads the YAML configuration at path, applies environment
// variable overrides for credentials and validates the result. An
// environment specific file (config.<env>.yml) next to the default path
// takes precedence when present.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, defaultConfigPath, map[string]string{
		environmentProduction: "config/config.production.yml",
		environmentStaging:    "config/config.staging.yml",
	})

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Venue: VenueConfig{
			Timeout: 10 * time.Second,
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 90 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 5,
				BurstSize:         10,
			},
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Credentials always come from the environment when set there; the
	// YAML fields exist for development convenience only.
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		config.Venue.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		config.Venue.APISecret = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_TESTNET"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			config.Venue.Testnet = b
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

const defaultConfigPath = "config/config.yml"

func validateConfig(cfg *Config) error {
	if cfg.Unitflow.Name == "" {
		return fmt.Errorf("unitflow.name is required")
	}

	if cfg.Unitflow.Version == "" {
		return fmt.Errorf("unitflow.version is required")
	}

	if cfg.Venue.Timeout <= 0 {
		return fmt.Errorf("venue.timeout must be greater than 0")
	}

	if cfg.Venue.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("venue.rate_limit.requests_per_second must be greater than 0")
	}
	if cfg.Venue.RateLimit.BurstSize <= 0 {
		return fmt.Errorf("venue.rate_limit.burst_size must be greater than 0")
	}

	for _, c := range cfg.Venue.Contracts {
		if !strings.Contains(c, "_") {
			return fmt.Errorf("venue.contracts entry '%s' is not in BASE_QUOTE form", c)
		}
	}

	if cfg.Venue.Stream.Enabled && cfg.Venue.Stream.URL == "" {
		return fmt.Errorf("venue.stream.url is required when the stream is enabled")
	}

	return nil
}
