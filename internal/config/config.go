package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=warehouse port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
	defaultAdminPIN    = "123456"
)

type Config struct {
	Env                string
	HTTPPort           string
	DatabaseDSN        string
	JWTSecret          string
	CORSOrigins        string
	AdminPIN           string // 6 digits, compared literally
	ManagerPIN         string
	RateLimitPerMinute int
	MetricsEnabled     bool
}

// Load reads the configuration from the environment (and .env, loaded by main).
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "prod")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DATABASE_DSN", defaultDSN)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", defaultCORSOrigins)
	v.SetDefault("ADMIN_PIN", defaultAdminPIN)
	v.SetDefault("MANAGER_PIN", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("METRICS_ENABLED", true)

	return &Config{
		Env:                v.GetString("APP_ENV"),
		HTTPPort:           v.GetString("HTTP_PORT"),
		DatabaseDSN:        v.GetString("DATABASE_DSN"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		CORSOrigins:        v.GetString("CORS_ALLOWED_ORIGINS"),
		AdminPIN:           strings.TrimSpace(v.GetString("ADMIN_PIN")),
		ManagerPIN:         strings.TrimSpace(v.GetString("MANAGER_PIN")),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		MetricsEnabled:     v.GetBool("METRICS_ENABLED"),
	}
}

// Validate returns the first fatal problem. Non-fatal ones come back from Warnings.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if !isPIN(c.AdminPIN, 6) {
		return fmt.Errorf("ADMIN_PIN must be exactly 6 digits")
	}
	if c.ManagerPIN != "" && !isPIN(c.ManagerPIN, 4) && !isPIN(c.ManagerPIN, 6) {
		return fmt.Errorf("MANAGER_PIN must be 4 or 6 digits")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}
	return nil
}

func (c *Config) Warnings() []string {
	var out []string
	if c.DatabaseDSN == defaultDSN {
		out = append(out, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		out = append(out, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	if c.AdminPIN == defaultAdminPIN {
		out = append(out, "ADMIN_PIN uses the default value")
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func isPIN(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
