package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "./homegrubhub.db", cfg.DatabasePath)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, "./backups", cfg.BackupPath)
	assert.Equal(t, 7, cfg.BackupKeep)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_LIMIT_RPS", "1.5")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("POSTCODE_API_URL", "http://localhost:1234/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 1.5, cfg.RateLimitRPS)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, "http://localhost:1234", cfg.PostcodeAPIURL)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad port":          {"PORT": "eighty"},
		"bad ttl":           {"JWT_TTL": "tomorrow"},
		"bad burst":         {"RATE_LIMIT_BURST": "x"},
		"bad bool":          {"SCHEDULER_ENABLED": "maybe"},
		"zero backups kept": {"BACKUP_KEEP": "0"},
		"prod needs secret": {"APP_ENV": "production", "JWT_SECRET": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
