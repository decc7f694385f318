package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken      string        `envconfig:"TELEGRAM_TOKEN" required:"true"`
	DBDriver           string        `envconfig:"DB_DRIVER" default:"sqlite"` // postgres|sqlite
	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	SQLitePath         string        `envconfig:"SQLITE_PATH" default:"./data/reminder_bot.db"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	Environment        string        `envconfig:"ENVIRONMENT" default:"development"`
	SweepCronSpec      string        `envconfig:"SWEEP_CRON_SPEC" default:"@every 1h"`
	DeliveryTimeout    time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"30s"`
	DeliveryRatePerSec float64       `envconfig:"DELIVERY_RATE_PER_SEC" default:"25"`
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8080"` // Empty disables the status server
	DefaultLanguage    string        `envconfig:"DEFAULT_LANGUAGE" default:"en"`
	PollerTimeout      time.Duration `envconfig:"POLLER_TIMEOUT" default:"10s"`
	AdminTelegramID    int64         `envconfig:"ADMIN_TELEGRAM_ID"` // 0 disables admin commands
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)
	cfg.DefaultLanguage = strings.ToLower(cfg.DefaultLanguage)

	switch cfg.DBDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH is not set")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.DeliveryTimeout <= 0 {
		return nil, fmt.Errorf("DELIVERY_TIMEOUT must be positive")
	}
	if cfg.DeliveryRatePerSec <= 0 {
		return nil, fmt.Errorf("DELIVERY_RATE_PER_SEC must be positive")
	}

	return cfg, nil
}

// DataSource returns the connection string for the configured driver.
func (c *AppConfig) DataSource() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.SQLitePath
}
