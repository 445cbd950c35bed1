package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Model     ModelConfig
	Broker    BrokerConfig
	Auth      AuthConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"3000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ModelConfig holds model-provider configuration.
type ModelConfig struct {
	APIKey    string `envconfig:"OPENAI_API_KEY"`
	BaseURL   string `envconfig:"OPENAI_BASE_URL"`
	Model     string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	MiniModel string `envconfig:"OPENAI_MINI_MODEL" default:"gpt-4o-mini"`
}

// BrokerConfig holds tool-broker configuration.
type BrokerConfig struct {
	APIKey      string `envconfig:"COMPOSIO_API_KEY"`
	BaseURL     string `envconfig:"COMPOSIO_BASE_URL" default:"https://backend.composio.dev/api/v2"`
	EntityID    string `envconfig:"COMPOSIO_ENTITY_ID" default:"default"`
	CatalogPath string `envconfig:"TOOL_CATALOG"`
}

// AuthConfig holds caller-identity configuration.
type AuthConfig struct {
	Enabled  bool   `envconfig:"AUTH_ENABLED" default:"false"`
	Audience string `envconfig:"AUTH_AUDIENCE"`
	Issuer   string `envconfig:"AUTH_ISSUER"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"20"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "3000",
			Host: "0.0.0.0",
		},
		Model: ModelConfig{
			Model:     "gpt-4o",
			MiniModel: "gpt-4o-mini",
		},
		Broker: BrokerConfig{
			BaseURL:  "https://backend.composio.dev/api/v2",
			EntityID: "default",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
	}
}
