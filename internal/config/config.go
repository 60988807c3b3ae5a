package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database backend identifiers accepted by DB_TYPE.
const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

// Rate limit entry backends accepted by RATE_LIMIT_BACKEND.
const (
	RateLimitBackendMemory   = "memory"
	RateLimitBackendRedis    = "redis"
	RateLimitBackendDatabase = "database"
)

// minIssuerSecretLength is the shortest accepted HS256 key.
const minIssuerSecretLength = 32

// Config holds all application configuration
type Config struct {
	Port                string
	LogLevel            string
	DBType              string
	DBPath              string
	PostgreSQL          *PostgreSQLConfig
	Redis               *RedisConfig // nil when REDIS_ADDR is unset
	ClientStorageDir    string       // Empty keeps per-client storage in memory
	HTTPSEnabled        bool
	TrustProxyHeaders   string // "true", "false" or "auto"
	TrustedProxyIPs     string // Comma-separated IPs and CIDR ranges
	ReadTimeoutSeconds  int
	WriteTimeoutSeconds int

	ClientStorageTabIdleHours      int // Tab scopes untouched this long are removed
	ClientStorageMaxIdleDays       int // Client scopes untouched this long are removed
	ClientStorageSweepIntervalMins int

	CSRFTokenTTLMinutes int

	SessionMaxAgeHours             int
	SessionRenewalThresholdMinutes int
	SessionMaxPerUser              int
	SessionActivityIntervalSeconds int
	SessionActivityThrottleSeconds int
	SessionIssuerSecret            string // HS256 key shared with the backend that signs sign-in assertions
	SessionIssuer                  string // Expected "iss" of sign-in assertions

	RateLimitBackend              string // memory, redis or database
	RateLimitSweepIntervalSeconds int
	RateLimitAPIMaxRequests       int
	RateLimitAPIWindowSeconds     int
	RateLimitLoginMaxRequests     int

	AuditQueueSize   int
	AuditWorkers     int
	LogRetentionDays int
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DBType:              strings.ToLower(getEnv("DB_TYPE", DBTypeSQLite)),
		DBPath:              getEnv("DB_PATH", "./storefront.db"),
		ClientStorageDir:    getEnv("CLIENT_STORAGE_DIR", ""),
		HTTPSEnabled:        getEnvBool("HTTPS_ENABLED", false),
		TrustProxyHeaders:   strings.ToLower(getEnv("TRUST_PROXY_HEADERS", "auto")),
		TrustedProxyIPs:     getEnv("TRUSTED_PROXY_IPS", "127.0.0.1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"),
		ReadTimeoutSeconds:  getEnvInt("READ_TIMEOUT_SECONDS", 30),
		WriteTimeoutSeconds: getEnvInt("WRITE_TIMEOUT_SECONDS", 30),

		ClientStorageTabIdleHours:      getEnvInt("CLIENT_STORAGE_TAB_IDLE_HOURS", 24),
		ClientStorageMaxIdleDays:       getEnvInt("CLIENT_STORAGE_MAX_IDLE_DAYS", 30),
		ClientStorageSweepIntervalMins: getEnvInt("CLIENT_STORAGE_SWEEP_INTERVAL_MINUTES", 30),

		CSRFTokenTTLMinutes: getEnvInt("CSRF_TOKEN_TTL_MINUTES", 60),

		SessionMaxAgeHours:             getEnvInt("SESSION_MAX_AGE_HOURS", 24),
		SessionRenewalThresholdMinutes: getEnvInt("SESSION_RENEWAL_THRESHOLD_MINUTES", 60),
		SessionMaxPerUser:              getEnvInt("SESSION_MAX_PER_USER", 5),
		SessionActivityIntervalSeconds: getEnvInt("SESSION_ACTIVITY_INTERVAL_SECONDS", 300),
		SessionActivityThrottleSeconds: getEnvInt("SESSION_ACTIVITY_THROTTLE_SECONDS", 60),
		SessionIssuerSecret:            os.Getenv("SESSION_ISSUER_SECRET"),
		SessionIssuer:                  getEnv("SESSION_ISSUER", "naaz-backend"),

		RateLimitBackend:              strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendMemory)),
		RateLimitSweepIntervalSeconds: getEnvInt("RATE_LIMIT_SWEEP_INTERVAL_SECONDS", 300),
		RateLimitAPIMaxRequests:       getEnvInt("RATE_LIMIT_API_MAX_REQUESTS", 100),
		RateLimitAPIWindowSeconds:     getEnvInt("RATE_LIMIT_API_WINDOW_SECONDS", 60),
		RateLimitLoginMaxRequests:     getEnvInt("RATE_LIMIT_LOGIN_MAX_REQUESTS", 5),

		AuditQueueSize:   getEnvInt("AUDIT_QUEUE_SIZE", 1000),
		AuditWorkers:     getEnvInt("AUDIT_WORKERS", 2),
		LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 30),
	}

	cfg.PostgreSQL = loadPostgreSQLConfig()
	cfg.Redis = loadRedisConfig()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	switch c.DBType {
	case DBTypeSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DBTypePostgres:
		if err := c.validatePostgreSQLSettings(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("DB_TYPE must be %q or %q, got %q", DBTypeSQLite, DBTypePostgres, c.DBType)
	}

	switch c.TrustProxyHeaders {
	case "true", "false", "auto":
	default:
		return fmt.Errorf("TRUST_PROXY_HEADERS must be true, false or auto, got %q", c.TrustProxyHeaders)
	}

	if err := c.validateRateLimitBackend(); err != nil {
		return err
	}

	positive := []struct {
		name  string
		value int
	}{
		{"READ_TIMEOUT_SECONDS", c.ReadTimeoutSeconds},
		{"WRITE_TIMEOUT_SECONDS", c.WriteTimeoutSeconds},
		{"CLIENT_STORAGE_TAB_IDLE_HOURS", c.ClientStorageTabIdleHours},
		{"CLIENT_STORAGE_MAX_IDLE_DAYS", c.ClientStorageMaxIdleDays},
		{"CLIENT_STORAGE_SWEEP_INTERVAL_MINUTES", c.ClientStorageSweepIntervalMins},
		{"CSRF_TOKEN_TTL_MINUTES", c.CSRFTokenTTLMinutes},
		{"SESSION_MAX_AGE_HOURS", c.SessionMaxAgeHours},
		{"SESSION_RENEWAL_THRESHOLD_MINUTES", c.SessionRenewalThresholdMinutes},
		{"SESSION_MAX_PER_USER", c.SessionMaxPerUser},
		{"SESSION_ACTIVITY_INTERVAL_SECONDS", c.SessionActivityIntervalSeconds},
		{"SESSION_ACTIVITY_THROTTLE_SECONDS", c.SessionActivityThrottleSeconds},
		{"RATE_LIMIT_SWEEP_INTERVAL_SECONDS", c.RateLimitSweepIntervalSeconds},
		{"RATE_LIMIT_API_MAX_REQUESTS", c.RateLimitAPIMaxRequests},
		{"RATE_LIMIT_API_WINDOW_SECONDS", c.RateLimitAPIWindowSeconds},
		{"RATE_LIMIT_LOGIN_MAX_REQUESTS", c.RateLimitLoginMaxRequests},
		{"AUDIT_QUEUE_SIZE", c.AuditQueueSize},
		{"AUDIT_WORKERS", c.AuditWorkers},
		{"LOG_RETENTION_DAYS", c.LogRetentionDays},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	if c.SessionIssuerSecret != "" && len(c.SessionIssuerSecret) < minIssuerSecretLength {
		return fmt.Errorf("SESSION_ISSUER_SECRET must be at least %d bytes", minIssuerSecretLength)
	}

	if c.SessionRenewalThreshold() >= c.SessionMaxAge() {
		return fmt.Errorf("SESSION_RENEWAL_THRESHOLD_MINUTES (%d) must be shorter than SESSION_MAX_AGE_HOURS (%d)",
			c.SessionRenewalThresholdMinutes, c.SessionMaxAgeHours)
	}

	return nil
}

// ClientStorageTabIdle returns how long an untouched tab scope is kept.
func (c *Config) ClientStorageTabIdle() time.Duration {
	return time.Duration(c.ClientStorageTabIdleHours) * time.Hour
}

// ClientStorageMaxIdle returns how long an untouched client scope is kept.
func (c *Config) ClientStorageMaxIdle() time.Duration {
	return time.Duration(c.ClientStorageMaxIdleDays) * 24 * time.Hour
}

// ClientStorageSweepInterval returns the period of the client storage sweep.
func (c *Config) ClientStorageSweepInterval() time.Duration {
	return time.Duration(c.ClientStorageSweepIntervalMins) * time.Minute
}

// CSRFTokenTTL returns how long a generated CSRF token stays valid.
func (c *Config) CSRFTokenTTL() time.Duration {
	return time.Duration(c.CSRFTokenTTLMinutes) * time.Minute
}

// SessionMaxAge returns the lifetime of a newly created or renewed session.
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeHours) * time.Hour
}

// SessionRenewalThreshold returns the remaining lifetime below which a session should be renewed.
func (c *Config) SessionRenewalThreshold() time.Duration {
	return time.Duration(c.SessionRenewalThresholdMinutes) * time.Minute
}

// SessionActivityInterval returns the period of the background activity heartbeat.
func (c *Config) SessionActivityInterval() time.Duration {
	return time.Duration(c.SessionActivityIntervalSeconds) * time.Second
}

// SessionActivityThrottle returns the minimum spacing between activity updates.
func (c *Config) SessionActivityThrottle() time.Duration {
	return time.Duration(c.SessionActivityThrottleSeconds) * time.Second
}

// RateLimitSweepInterval returns how often stale rate limit entries are swept.
func (c *Config) RateLimitSweepInterval() time.Duration {
	return time.Duration(c.RateLimitSweepIntervalSeconds) * time.Second
}

// RateLimitAPIWindow returns the window of the generic "api" action.
func (c *Config) RateLimitAPIWindow() time.Duration {
	return time.Duration(c.RateLimitAPIWindowSeconds) * time.Second
}

// LogRetention returns how long security log rows are kept.
func (c *Config) LogRetention() time.Duration {
	return time.Duration(c.LogRetentionDays) * 24 * time.Hour
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
