package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration, loaded from the environment.
type Config struct {
	Server ServerConfig
	Auth   AuthConfig

	// PostgresDSN is required; the auth schema lives there.
	PostgresDSN string

	// RedisURL selects the shared revocation store. Empty means the
	// process-local in-memory blacklist.
	RedisURL string

	// Production toggles Secure cookies and stricter defaults.
	Production bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps request bodies. Zero disables the cap.
	MaxBodyBytes int64

	// RateBurst and RatePerSecond configure the per-IP request limiter.
	// Zero for either disables it.
	RateBurst     int
	RatePerSecond int
}

// AuthConfig holds token and cookie settings.
type AuthConfig struct {
	Secret        string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessCookie  string
	RefreshCookie string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("GIRDER_ADDR", ":8080"),
			ReadTimeout:     getEnvDuration("GIRDER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("GIRDER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("GIRDER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("GIRDER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:    getEnvInt64("GIRDER_MAX_BODY_BYTES", 1<<20),
			RateBurst:       getEnvInt("GIRDER_RATE_BURST", 50),
			RatePerSecond:   getEnvInt("GIRDER_RATE_PER_SECOND", 25),
		},
		Auth: AuthConfig{
			Secret:        os.Getenv("GIRDER_AUTH_SECRET"),
			Issuer:        getEnv("GIRDER_TOKEN_ISSUER", "girder"),
			AccessTTL:     getEnvDuration("GIRDER_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:    getEnvDuration("GIRDER_REFRESH_TTL", 7*24*time.Hour),
			AccessCookie:  getEnv("GIRDER_ACCESS_COOKIE", "girder_access"),
			RefreshCookie: getEnv("GIRDER_REFRESH_COOKIE", "girder_refresh"),
		},
		PostgresDSN: os.Getenv("GIRDER_PG_DSN"),
		RedisURL:    os.Getenv("GIRDER_REDIS_URL"),
		Production:  getEnvBool("GIRDER_PRODUCTION", false),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("GIRDER_AUTH_SECRET is required")
	}
	if strings.TrimSpace(c.PostgresDSN) == "" {
		return errors.New("GIRDER_PG_DSN is required")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if c.Auth.AccessCookie == c.Auth.RefreshCookie {
		return errors.New("access and refresh cookie names must differ")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
