package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Security SecurityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
	AllowedOrigins []string
}

// SecurityConfig is the typed configuration surface of the security core.
// Validated at process start; no dynamic option bags.
type SecurityConfig struct {
	SessionSecret   string
	SessionTTL      time.Duration
	CleanupInterval time.Duration

	MaxLoginAttempts int
	LockoutDuration  time.Duration
	AttemptRetention time.Duration

	RateLimitWindow      time.Duration
	RateLimitMaxRequests int

	CsrfTokenTTL     time.Duration
	RememberTokenTTL time.Duration

	PasswordMinLength      int
	PasswordRequireSpecial bool

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	AuditRetentionDays int

	TimingBaseDelayMs    int
	TimingRandomDelayMs  int
	TimingDelayOnSuccess bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "storefront"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", nil),
		},
		Security: SecurityConfig{
			SessionSecret:   sessionSecret,
			SessionTTL:      getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			CleanupInterval: getEnvAsDuration("SECURITY_CLEANUP_INTERVAL", 1*time.Hour),

			MaxLoginAttempts: getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:  getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			AttemptRetention: getEnvAsDuration("LOGIN_ATTEMPT_RETENTION", 24*time.Hour),

			RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 60),

			CsrfTokenTTL:     getEnvAsDuration("CSRF_TOKEN_TTL", 15*time.Minute),
			RememberTokenTTL: getEnvAsDuration("REMEMBER_TOKEN_TTL", 30*24*time.Hour),

			PasswordMinLength:      getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			PasswordRequireSpecial: getEnvAsBool("PASSWORD_REQUIRE_SPECIAL", true),

			CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:   getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite: getEnv("COOKIE_SAMESITE", "lax"),

			AuditRetentionDays: getEnvAsInt("AUDIT_RETENTION_DAYS", 90),

			TimingBaseDelayMs:    getEnvAsInt("TIMING_DELAY_BASE_MS", 100),
			TimingRandomDelayMs:  getEnvAsInt("TIMING_DELAY_RANDOM_MS", 50),
			TimingDelayOnSuccess: getEnvAsBool("TIMING_DELAY_ON_SUCCESS", true),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *SecurityConfig) validate() error {
	if c.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1 (got %d)", c.MaxLoginAttempts)
	}
	if c.LockoutDuration < 0 {
		return fmt.Errorf("LOCKOUT_DURATION must not be negative")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.RateLimitMaxRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be at least 1 (got %d)", c.RateLimitMaxRequests)
	}
	if c.CsrfTokenTTL <= 0 {
		return fmt.Errorf("CSRF_TOKEN_TTL must be positive")
	}
	if c.RememberTokenTTL <= 0 {
		return fmt.Errorf("REMEMBER_TOKEN_TTL must be positive")
	}
	if c.PasswordMinLength < 8 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be at least 8 (got %d)", c.PasswordMinLength)
	}
	return nil
}

// validateSessionSecret enforces minimum strength for the session signing key
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
