package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/Papaai2/baladymall-sub000/pkg/config"
	"github.com/Papaai2/baladymall-sub000/pkg/database"
	"github.com/Papaai2/baladymall-sub000/pkg/tracing"
)

// ServiceName tags logs, metrics and spans.
const ServiceName = "storefront"

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort            int `env:"HTTP_PORT" envDefault:"8080"`
	HTTPRequestTimeoutS int `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"baladymall"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"baladymall_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"baladymall"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	MigrateOnStart        bool  `env:"MIGRATE_ON_START" envDefault:"true"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka. An empty list disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Cart
	CartTTLHours      int `env:"CART_TTL_HOURS" envDefault:"168"`
	CartMaxQtyPerLine int `env:"CART_MAX_QTY_PER_LINE" envDefault:"100"`
	CartMaxLines      int `env:"CART_MAX_LINES" envDefault:"50"`

	// Checkout
	Currency            string        `env:"CURRENCY" envDefault:"EGP"`
	CheckoutTxTimeout   time.Duration `env:"CHECKOUT_TX_TIMEOUT" envDefault:"10s"`
	CheckoutLockTimeout time.Duration `env:"CHECKOUT_LOCK_TIMEOUT" envDefault:"3s"`
	ShippingFlatFee     int64         `env:"SHIPPING_FLAT_FEE" envDefault:"0"`
	LoginURL            string        `env:"LOGIN_URL" envDefault:"/login"`

	// Notifications
	NotifyDriver      string        `env:"NOTIFY_DRIVER" envDefault:"log"`
	NotifyHTTPURL     string        `env:"NOTIFY_HTTP_URL"`
	NotifyFrom        string        `env:"NOTIFY_FROM" envDefault:"orders@baladymall.example"`
	NotifyTimeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"15s"`
	NotifyConcurrency int           `env:"NOTIFY_CONCURRENCY" envDefault:"4"`

	// Circuit breaker around the mail relay
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom is Load over an explicit variable set.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.CartTTLHours < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTLHours)
	}
	if c.CartMaxQtyPerLine < 1 {
		return fmt.Errorf("CART_MAX_QTY_PER_LINE must be positive, got %d", c.CartMaxQtyPerLine)
	}
	if c.CartMaxLines < 1 {
		return fmt.Errorf("CART_MAX_LINES must be positive, got %d", c.CartMaxLines)
	}
	if c.CheckoutTxTimeout <= 0 {
		return fmt.Errorf("CHECKOUT_TX_TIMEOUT must be positive")
	}
	if c.CheckoutLockTimeout <= 0 || c.CheckoutLockTimeout >= c.CheckoutTxTimeout {
		return fmt.Errorf("CHECKOUT_LOCK_TIMEOUT must be positive and shorter than CHECKOUT_TX_TIMEOUT")
	}
	if c.ShippingFlatFee < 0 {
		return fmt.Errorf("SHIPPING_FLAT_FEE must not be negative")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q", c.Currency)
	}
	if c.LoginURL == "" {
		return fmt.Errorf("LOGIN_URL is required")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	if c.NotifyConcurrency < 1 {
		return fmt.Errorf("NOTIFY_CONCURRENCY must be positive, got %d", c.NotifyConcurrency)
	}
	switch c.NotifyDriver {
	case "log":
	case "http":
		if _, err := url.ParseRequestURI(c.NotifyHTTPURL); err != nil {
			return fmt.Errorf("invalid NOTIFY_HTTP_URL %q: %w", c.NotifyHTTPURL, err)
		}
	default:
		return fmt.Errorf("NOTIFY_DRIVER must be log or http, got %q", c.NotifyDriver)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the pool settings for database.NewPostgresPool.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the client settings for database.NewRedisClient.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:         c.RedisAddr,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// CartTTL is how long an idle cart survives.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

// EventsEnabled reports whether a Kafka broker list was configured.
func (c *Config) EventsEnabled() bool {
	for _, b := range c.KafkaBrokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}
