// Package config provides centralized configuration management for the portal.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	API      APIConfig
	Session  SessionConfig
	Redis    RedisConfig
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Maps     MapsConfig
	OTP      OTPConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080" validate:"min=1,max=65535"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
}

// APIConfig describes how to reach the ITP backend.
// The base URL is assembled from scheme, host, port and base path.
type APIConfig struct {
	Scheme   string        `env:"API_SCHEME" default:"http" validate:"oneof=http https"`
	Host     string        `env:"API_HOST" envAlt:"VITE_API_HOST" required:"true"`
	Port     int           `env:"API_PORT" envAlt:"VITE_API_PORT" default:"80" validate:"min=1,max=65535"`
	BasePath string        `env:"API_BASE_PATH" default:"/api"`
	Timeout  time.Duration `env:"API_TIMEOUT" default:"15s" validate:"gt=0"`

	// Language is sent as Accept-Language on every backend call.
	Language string `env:"API_LANGUAGE" default:"ro"`
}

// SessionConfig holds per-browser session storage settings.
type SessionConfig struct {
	// Store selects the backend: memory, redis, postgres or sqlite (default: memory)
	Store string `env:"SESSION_STORE" default:"memory" validate:"oneof=memory redis postgres sqlite"`

	CookieName   string `env:"SESSION_COOKIE_NAME" default:"itp_sid"`
	CookieSecure bool   `env:"SESSION_COOKIE_SECURE" default:"false"`

	// CustomerTTL is the fixed customer portal session window (default: 24h)
	CustomerTTL time.Duration `env:"SESSION_CUSTOMER_TTL" default:"24h" validate:"gt=0"`

	// MaxAge is how long an untouched session value survives in the store (default: 720h)
	MaxAge time.Duration `env:"SESSION_MAX_AGE" default:"720h"`

	// JanitorInterval is how often stale session rows are purged (default: 1h)
	JanitorInterval time.Duration `env:"SESSION_JANITOR_INTERVAL" default:"1h" validate:"gt=0"`
}

// RedisConfig holds Redis connection settings for the redis session store.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDRESS" envAlt:"REDIS_ADDR" default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" secret:"true"`
	DB       int    `env:"REDIS_DB" default:"0"`
	Prefix   string `env:"REDIS_PREFIX" default:"itp:sess"`
}

// DatabaseConfig holds PostgreSQL settings for the postgres session store.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required when SESSION_STORE=postgres)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" secret:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SQLiteConfig holds settings for the sqlite session store.
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" default:"sessions.db"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute float64 `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
	Burst             int     `env:"RATE_LIMIT_BURST" default:"40"`

	// OTPPerMinute limits customer OTP send/verify attempts per IP (default: 5)
	OTPPerMinute float64 `env:"RATE_LIMIT_OTP_PER_MINUTE" default:"5"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
}

// MapsConfig configures the geocoding service used for branch pins.
// An empty URL disables geocoding.
type MapsConfig struct {
	GeocoderURL string        `env:"MAPS_GEOCODER_URL"`
	APIKey      string        `env:"MAPS_API_KEY" envAlt:"VITE_MAPS_API_KEY" secret:"true"`
	Timeout     time.Duration `env:"MAPS_TIMEOUT" default:"5s"`
}

// OTPConfig holds customer one-time password settings.
type OTPConfig struct {
	ResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" default:"60s" validate:"gt=0"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL assembles the backend base URL, e.g. http://api.local:8000/api.
func (c *APIConfig) BaseURL() string {
	host := c.Host
	if !(c.Scheme == "http" && c.Port == 80) && !(c.Scheme == "https" && c.Port == 443) && c.Port > 0 {
		host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	u := url.URL{
		Scheme: c.Scheme,
		Host:   host,
		Path:   "/" + strings.Trim(c.BasePath, "/"),
	}
	return strings.TrimSuffix(u.String(), "/")
}
