package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"go.uber.org/zap"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env           string        `env:"APP_ENV" envDefault:"dev"`
	Port          string        `env:"PORT" envDefault:"8080"`
	DBPath        string        `env:"DB_PATH" envDefault:"./dev.db"`
	SessionSecret string        `env:"SESSION_SECRET"`
	AdminEmail    string        `env:"ADMIN_EMAIL"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
	LogMode       string        `env:"LOG_MODE" envDefault:"dev"`
	CatalogPath   string        `env:"CATALOG_PATH"`
	StatusTTL     time.Duration `env:"STATUS_TTL" envDefault:"4s"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	ContactEndpoint   string        `env:"CONTACT_ENDPOINT"`
	ContactTimeout    time.Duration `env:"CONTACT_TIMEOUT" envDefault:"10s"`
	ContactMaxRetries uint64        `env:"CONTACT_MAX_RETRIES" envDefault:"3"`
}

// Load reads the optional .env file and then the process environment.
func Load() (Config, error) {
	// Local development convenience; production injects real environment variables.
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.StatusTTL <= 0 {
		return Config{}, fmt.Errorf("parse config: STATUS_TTL must be positive")
	}
	return cfg, nil
}

// IsDev reports whether the application runs in local development mode.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "dev" || c.Env == "development"
}

// Warn logs settings that are unset but expected in a real deployment.
func (c Config) Warn(logger *zap.Logger) {
	if c.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL is not set")
	}
	if c.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD is not set")
	}
	if c.SessionSecret == "" {
		logger.Warn("SESSION_SECRET is not set")
	}
	if c.ContactEndpoint == "" {
		logger.Warn("CONTACT_ENDPOINT is not set, contact requests will only be logged")
	}
}
