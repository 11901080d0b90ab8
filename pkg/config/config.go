package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all client configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Connection
	URL         string
	DialTimeout time.Duration

	// Auth token helper (see pkg/authtoken)
	JWTPrivateKeyPath string
	JWTIssuer         string
	JWTTokenTTL       time.Duration

	// Pool
	PoolSize              int
	PoolMessageBufferSize int

	// Cache
	CacheMaxCost     int64
	CacheNumCounters int64
}

// LoadFromEnv loads configuration from environment variables, falling back
// to sane defaults for a local development cable server.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		URL:         getEnvOrDefault("ACTION_CABLE_URL", "ws://localhost:28080/cable"),
		DialTimeout: getDurationOrDefault("ACTION_CABLE_DIAL_TIMEOUT", 10*time.Second),

		JWTPrivateKeyPath: os.Getenv("ACTION_CABLE_JWT_PRIVATE_KEY_PATH"),
		JWTIssuer:         getEnvOrDefault("ACTION_CABLE_JWT_ISSUER", "actioncable-go"),
		JWTTokenTTL:       getDurationOrDefault("ACTION_CABLE_JWT_TOKEN_TTL", 5*time.Minute),

		PoolSize:              getIntOrDefault("ACTION_CABLE_POOL_SIZE", 1),
		PoolMessageBufferSize: getIntOrDefault("ACTION_CABLE_POOL_MESSAGE_BUFFER_SIZE", 64),

		CacheMaxCost:     getInt64OrDefault("ACTION_CABLE_CACHE_MAX_COST", 1<<20),
		CacheNumCounters: getInt64OrDefault("ACTION_CABLE_CACHE_NUM_COUNTERS", 1e5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT cannot be empty")
	}
	if c.URL == "" {
		return errors.New("ACTION_CABLE_URL cannot be empty")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("ACTION_CABLE_DIAL_TIMEOUT must be positive, got %s", c.DialTimeout)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("ACTION_CABLE_POOL_SIZE must be at least 1, got %d", c.PoolSize)
	}
	if c.PoolSize > 64 {
		return fmt.Errorf("ACTION_CABLE_POOL_SIZE must not exceed 64, got %d", c.PoolSize)
	}
	if c.PoolMessageBufferSize < 1 {
		return fmt.Errorf("ACTION_CABLE_POOL_MESSAGE_BUFFER_SIZE must be positive, got %d", c.PoolMessageBufferSize)
	}
	return nil
}

// GetConfig resolves a single setting by name, the Go-native stand-in for a
// browser's document meta-tag config lookup: it checks the environment
// variable ACTION_CABLE_<NAME> (name upper-cased), returning ok=false if
// unset or empty.
func GetConfig(name string) (string, bool) {
	key := "ACTION_CABLE_" + strings.ToUpper(name)
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
