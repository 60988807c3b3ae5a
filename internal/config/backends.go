package config

import "fmt"

// PostgreSQLConfig holds PostgreSQL connection settings.
type PostgreSQLConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string // disable, allow, prefer, require, verify-ca, verify-full
	Options        string // Extra connection string parameters
	MaxConnections int
	AutoMigrate    bool
}

// RedisConfig holds settings for the shared rate limit entry backend.
// It is loaded whenever REDIS_ADDR is set but only used when RATE_LIMIT_BACKEND is redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// loadPostgreSQLConfig loads PostgreSQL configuration from environment variables.
// Environment variables:
//   - POSTGRES_HOST (default: localhost)
//   - POSTGRES_PORT (default: 5432)
//   - POSTGRES_USER (default: storefront)
//   - POSTGRES_PASSWORD
//   - POSTGRES_DB (default: storefront)
//   - POSTGRES_SSLMODE (default: prefer)
//   - POSTGRES_OPTIONS
//   - POSTGRES_MAX_CONNECTIONS (default: 25)
//   - POSTGRES_AUTO_MIGRATE (default: true)
func loadPostgreSQLConfig() *PostgreSQLConfig {
	return &PostgreSQLConfig{
		Host:           getEnv("POSTGRES_HOST", "localhost"),
		Port:           getEnvInt("POSTGRES_PORT", 5432),
		User:           getEnv("POSTGRES_USER", "storefront"),
		Password:       getEnv("POSTGRES_PASSWORD", ""),
		Database:       getEnv("POSTGRES_DB", "storefront"),
		SSLMode:        getEnv("POSTGRES_SSLMODE", "prefer"),
		Options:        getEnv("POSTGRES_OPTIONS", ""),
		MaxConnections: getEnvInt("POSTGRES_MAX_CONNECTIONS", 25),
		AutoMigrate:    getEnvBool("POSTGRES_AUTO_MIGRATE", true),
	}
}

// loadRedisConfig returns nil unless REDIS_ADDR is set.
func loadRedisConfig() *RedisConfig {
	addr := getEnv("REDIS_ADDR", "")
	if addr == "" {
		return nil
	}
	return &RedisConfig{
		Addr:     addr,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

// validatePostgreSQLSettings validates PostgreSQL configuration.
func (c *Config) validatePostgreSQLSettings() error {
	pg := c.PostgreSQL
	if pg == nil {
		return fmt.Errorf("PostgreSQL configuration is missing")
	}
	if pg.Host == "" {
		return fmt.Errorf("POSTGRES_HOST cannot be empty")
	}
	if pg.Port <= 0 || pg.Port > 65535 {
		return fmt.Errorf("POSTGRES_PORT must be between 1 and 65535, got %d", pg.Port)
	}
	if pg.User == "" {
		return fmt.Errorf("POSTGRES_USER cannot be empty")
	}
	if pg.Database == "" {
		return fmt.Errorf("POSTGRES_DB cannot be empty")
	}
	switch pg.SSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("POSTGRES_SSLMODE %q is not a valid sslmode", pg.SSLMode)
	}
	if pg.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive, got %d", pg.MaxConnections)
	}
	return nil
}

// validateRateLimitBackend checks RATE_LIMIT_BACKEND against the configured stores.
func (c *Config) validateRateLimitBackend() error {
	switch c.RateLimitBackend {
	case RateLimitBackendMemory, RateLimitBackendDatabase:
		return nil
	case RateLimitBackendRedis:
		if c.Redis == nil {
			return fmt.Errorf("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
		}
		return nil
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory, redis or database, got %q", c.RateLimitBackend)
	}
}
