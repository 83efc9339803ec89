package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "homegrubhub-dev-secret"

// Config holds the application configuration.
type Config struct {
	ServerPort       int
	DatabasePath     string
	AppEnv           string
	LogLevel         string
	JWTSecret        string
	JWTTTL           time.Duration
	AllowedOrigins   []string
	RedisURL         string
	PostcodeAPIURL   string
	RateLimitRPS     float64
	RateLimitBurst   int
	SchedulerEnabled bool
	PriceCacheTTL    time.Duration
	BackupPath       string
	BackupKeep       int
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from an optional .env file and environment
// variables, falling back to defaults.
func Load() (*Config, error) {
	// A missing .env file is fine; real environments set variables directly.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	schedulerEnabled, err := strconv.ParseBool(getEnv("SCHEDULER_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_ENABLED: %w", err)
	}
	cacheTTL, err := time.ParseDuration(getEnv("PRICE_CACHE_TTL", "6h"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_CACHE_TTL: %w", err)
	}
	backupKeep, err := strconv.Atoi(getEnv("BACKUP_KEEP", "7"))
	if err != nil || backupKeep < 1 {
		return nil, fmt.Errorf("invalid BACKUP_KEEP: %q", getEnv("BACKUP_KEEP", ""))
	}

	cfg := &Config{
		ServerPort:       port,
		DatabasePath:     getEnv("DATABASE_PATH", "./homegrubhub.db"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTTTL:           ttl,
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RedisURL:         getEnv("REDIS_URL", ""),
		PostcodeAPIURL:   strings.TrimRight(getEnv("POSTCODE_API_URL", "https://api.postcodes.io"), "/"),
		RateLimitRPS:     rps,
		RateLimitBurst:   burst,
		SchedulerEnabled: schedulerEnabled,
		PriceCacheTTL:    cacheTTL,
		BackupPath:       getEnv("BACKUP_PATH", "./backups"),
		BackupKeep:       backupKeep,
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
