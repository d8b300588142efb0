package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg := Load()
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.True(t, cfg.MetricsEnabled)
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.Warnings())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ADMIN_PIN", "654321")
	t.Setenv("MANAGER_PIN", "5678")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "60")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("APP_ENV", "dev")

	cfg := Load()
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "654321", cfg.AdminPIN)
	assert.Equal(t, "5678", cfg.ManagerPIN)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.False(t, cfg.MetricsEnabled)
	assert.True(t, cfg.IsDev())
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{JWTSecret: testSecret, AdminPIN: "123456", RateLimitPerMinute: 30}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, false},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, false},
		{"pin too short", func(c *Config) { c.AdminPIN = "1234" }, false},
		{"pin not numeric", func(c *Config) { c.AdminPIN = "12a456" }, false},
		{"bad manager pin", func(c *Config) { c.ManagerPIN = "12" }, false},
		{"manager pin 4 digits", func(c *Config) { c.ManagerPIN = "5678" }, true},
		{"zero rate limit", func(c *Config) { c.RateLimitPerMinute = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
