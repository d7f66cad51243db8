// Package config provides application configuration management.
// Configuration is loaded from environment variables, optionally seeded from
// a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/linkgate/linkgate/internal/logging"
	"github.com/linkgate/linkgate/internal/shortcode"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// LogConfig is shared by every binary.
type LogConfig struct {
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`
}

// LoggingOptions converts the log settings for logging.New.
func (c LogConfig) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Comma-separated list of allowed origins (e.g., "https://example.com,https://*.example.org")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *ServerConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *ServerConfig) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Config holds the link and QR service configuration.
type Config struct {
	ServerConfig
	LogConfig

	AppPort  int `env:"APP_PORT" envDefault:"8080"`
	GRPCPort int `env:"GRPC_PORT" envDefault:"9090"`

	// Base URL for short links (e.g., https://sho.rt)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Storage
	StoreDriver     string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL     string `env:"DATABASE_URL"`
	RunMigrations   bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	ShortCodeLength int    `env:"SHORT_CODE_LENGTH" envDefault:"7"`
	MaxCodeRetries  int    `env:"MAX_CODE_RETRIES" envDefault:"5"`

	// Redis backs the rate limiter when set; otherwise limits are per process.
	RedisURL         string `env:"REDIS_URL"`
	RateLimitEnabled bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	// Click enrichment
	GeoIPDatabase string        `env:"GEOIP_DATABASE"`
	EnrichTimeout time.Duration `env:"ENRICH_TIMEOUT" envDefault:"250ms"`

	LiveAnalyticsInterval time.Duration `env:"LIVE_ANALYTICS_INTERVAL" envDefault:"5s"`

	// Generated QR codes
	QRRetention time.Duration `env:"QR_RETENTION" envDefault:"24h"`
	QRMaxStored int           `env:"QR_MAX_STORED" envDefault:"10000"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// GatewayConfig holds the protocol gateway configuration.
type GatewayConfig struct {
	ServerConfig
	LogConfig

	Port int `env:"GATEWAY_PORT" envDefault:"8000"`

	LinkRESTURL  string `env:"LINK_REST_URL" envDefault:"http://localhost:8080"`
	QRRESTURL    string `env:"QR_REST_URL" envDefault:"http://localhost:8080"`
	LinkGRPCAddr string `env:"LINK_GRPC_ADDR" envDefault:"localhost:9090"`
	QRGRPCAddr   string `env:"QR_GRPC_ADDR" envDefault:"localhost:9090"`

	BackendTimeout time.Duration `env:"GATEWAY_BACKEND_TIMEOUT" envDefault:"5s"`
}

// Load parses environment variables and returns a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadGateway parses environment variables and returns a GatewayConfig.
func LoadGateway() (*GatewayConfig, error) {
	cfg := &GatewayConfig{}
	if err := parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(cfg any) error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate checks constraints that span fields.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StorePostgres, c.StoreDriver))
	}

	if c.ShortCodeLength < shortcode.MinLength || c.ShortCodeLength > shortcode.MaxLength {
		errs = append(errs, fmt.Errorf("SHORT_CODE_LENGTH must be between %d and %d, got %d",
			shortcode.MinLength, shortcode.MaxLength, c.ShortCodeLength))
	}
	if c.MaxCodeRetries < 1 {
		errs = append(errs, fmt.Errorf("MAX_CODE_RETRIES must be positive, got %d", c.MaxCodeRetries))
	}
	if c.AppPort == c.GRPCPort {
		errs = append(errs, fmt.Errorf("APP_PORT and GRPC_PORT must differ, both are %d", c.AppPort))
	}
	if c.LiveAnalyticsInterval <= 0 {
		errs = append(errs, errors.New("LIVE_ANALYTICS_INTERVAL must be positive"))
	}
	if c.QRRetention <= 0 || c.QRMaxStored < 1 {
		errs = append(errs, errors.New("QR_RETENTION and QR_MAX_STORED must be positive"))
	}

	return errors.Join(errs...)
}

// Validate checks constraints that span fields.
func (c *GatewayConfig) Validate() error {
	var errs []error
	if c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_BACKEND_TIMEOUT must be positive"))
	}
	for name, v := range map[string]string{"LINK_REST_URL": c.LinkRESTURL, "QR_REST_URL": c.QRRESTURL} {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			errs = append(errs, fmt.Errorf("%s must be an http(s) URL, got %q", name, v))
		}
	}
	return errors.Join(errs...)
}
