// Package config validates the process's environment-variable configuration
// up front, following the teacher's ValidateEnv fail-fast pattern: collect
// every validation error before returning, rather than failing on the first.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for the room server.
type Config struct {
	// Core endpoints (IdentityBaseURL is required; ListenAddr has a default)
	ListenAddr      string
	IdentityBaseURL string

	// Admin surface
	AdminListenAddr string
	AdminJWTSecret  string

	// Storage
	SecurityStorePath  string
	MonitorsPath       string
	PluginsDir         string
	PluginPollInterval time.Duration

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	RedisEnabled bool
	RedisAddr    string
	RedisPass    string

	// Rate limits (ulule/limiter formatted strings, e.g. "10-S")
	RateLimitConnPerIP   string
	RateLimitAdminAPI    string
	RateLimitAdminPublic string
}

// ValidateEnv validates all required environment variables and returns a
// Config object. Returns an error describing every problem found, not just
// the first.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", "0.0.0.0:12346")
	if !isValidHostPort(cfg.ListenAddr) {
		errs = append(errs, fmt.Sprintf("LISTEN_ADDR must be in format 'host:port' (got '%s')", cfg.ListenAddr))
	}

	cfg.IdentityBaseURL = os.Getenv("IDENTITY_BASE_URL")
	if cfg.IdentityBaseURL == "" {
		errs = append(errs, "IDENTITY_BASE_URL is required")
	}

	cfg.AdminListenAddr = getEnvOrDefault("ADMIN_LISTEN_ADDR", ":9090")
	cfg.AdminJWTSecret = os.Getenv("ADMIN_JWT_SECRET")
	if cfg.AdminJWTSecret == "" {
		errs = append(errs, "ADMIN_JWT_SECRET is required")
	} else if len(cfg.AdminJWTSecret) < 32 {
		errs = append(errs, fmt.Sprintf("ADMIN_JWT_SECRET must be at least 32 characters (got %d)", len(cfg.AdminJWTSecret)))
	}

	cfg.SecurityStorePath = getEnvOrDefault("SECURITY_STORE_PATH", "security.json")
	cfg.MonitorsPath = getEnvOrDefault("MONITORS_PATH", "monitors.txt")
	cfg.PluginsDir = getEnvOrDefault("PLUGINS_DIR", "plugins")
	pollSecs, convErr := strconv.Atoi(getEnvOrDefault("PLUGIN_POLL_INTERVAL_SECONDS", "10"))
	if convErr != nil || pollSecs < 1 {
		errs = append(errs, fmt.Sprintf("PLUGIN_POLL_INTERVAL_SECONDS must be a positive integer (got '%s')", os.Getenv("PLUGIN_POLL_INTERVAL_SECONDS")))
	} else {
		cfg.PluginPollInterval = time.Duration(pollSecs) * time.Second
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPass = os.Getenv("REDIS_PASSWORD")
	}

	cfg.RateLimitConnPerIP = getEnvOrDefault("RATE_LIMIT_CONN_IP", "10-S")
	cfg.RateLimitAdminAPI = getEnvOrDefault("RATE_LIMIT_ADMIN_API", "100-M")
	cfg.RateLimitAdminPublic = getEnvOrDefault("RATE_LIMIT_ADMIN_PUBLIC", "20-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return true
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"listen_addr", cfg.ListenAddr,
		"identity_base_url", cfg.IdentityBaseURL,
		"admin_listen_addr", cfg.AdminListenAddr,
		"admin_jwt_secret", redactSecret(cfg.AdminJWTSecret),
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
