// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	HTTPAddr            string        `mapstructure:"HTTP_ADDR"`
	DBURL               string        `mapstructure:"DB_URL"`
	GithubAPIURL        string        `mapstructure:"GITHUB_API_URL"`
	OpenAIAPIKey        string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel         string        `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL       string        `mapstructure:"OPENAI_BASE_URL"`
	SyncInterval        time.Duration `mapstructure:"SYNC_INTERVAL"`
	SyncConcurrency     int           `mapstructure:"SYNC_CONCURRENCY"`
	ExternalCallTimeout time.Duration `mapstructure:"EXTERNAL_CALL_TIMEOUT"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	viper.SetDefault("SYNC_INTERVAL", "1h")
	viper.SetDefault("SYNC_CONCURRENCY", 4)
	viper.SetDefault("EXTERNAL_CALL_TIMEOUT", "30s")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.SyncConcurrency <= 0 {
		return nil, errors.New("SYNC_CONCURRENCY must be a positive integer")
	}
	if cfg.ExternalCallTimeout <= 0 {
		return nil, errors.New("EXTERNAL_CALL_TIMEOUT must be a positive duration")
	}

	// OPENAI_API_KEY is deliberately optional: without it the enrichment
	// engine serves fallback content instead of calling the oracle.

	return &cfg, nil
}
