// Package config loads application configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/trailpace.db"`

	StravaClientID     string `env:"STRAVA_CLIENT_ID"`
	StravaClientSecret string `env:"STRAVA_CLIENT_SECRET"`

	// Optional cross-service token resolver. Both values must be set for
	// the resolver to be enabled.
	CrossServiceAPIKey string `env:"CROSS_SERVICE_API_KEY"`
	AydaRunAPIURL      string `env:"AYDA_RUN_API_URL"`

	// Optional Telegram push channel. Absent token disables push.
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	SyncBatchSize        int `env:"SYNC_BATCH_SIZE" envDefault:"10"`
	MinSyncIntervalHours int `env:"MIN_SYNC_INTERVAL_HOURS" envDefault:"6"`
	UsersPerBatch        int `env:"USERS_PER_BATCH" envDefault:"5"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.SyncBatchSize < 1 || cfg.SyncBatchSize > 200 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be between 1 and 200, got %d", cfg.SyncBatchSize)
	}
	if cfg.UsersPerBatch < 1 {
		return nil, fmt.Errorf("USERS_PER_BATCH must be positive, got %d", cfg.UsersPerBatch)
	}
	return &cfg, nil
}

// HasStrava reports whether provider credentials are configured.
func (c *Config) HasStrava() bool {
	return c.StravaClientID != "" && c.StravaClientSecret != ""
}

// HasResolver reports whether the cross-service token resolver is enabled.
func (c *Config) HasResolver() bool {
	return c.CrossServiceAPIKey != "" && c.AydaRunAPIURL != ""
}

// HasTelegram reports whether the push channel is enabled.
func (c *Config) HasTelegram() bool {
	return c.TelegramBotToken != ""
}
