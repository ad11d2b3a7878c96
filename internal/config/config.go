// Package config loads runtime settings from the environment. A .env file
// in the working directory is honored for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration; unset values fall back to the
// defaults of the hosted Touchstone service.
type Config struct {
	// TouchstoneURL is the base URL of the Touchstone service.
	TouchstoneURL string `env:"TOUCHSTONE_BASE_URL" envDefault:"https://touchstone.aegis.net"`

	// CloudURL is the streamable HTTP endpoint the proxy command forwards to.
	CloudURL string `env:"TS_MCP_CLOUD_URL" envDefault:"https://ts-mcp.fly.dev/mcp"`

	// Port is the cloud HTTP listen port.
	Port int `env:"PORT" envDefault:"3000"`

	// RedisURL addresses the session store in cloud mode.
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// EncryptionKey is the base64 encoded 32 byte key sealing API keys at
	// rest. Required in cloud mode.
	EncryptionKey string `env:"TS_MCP_ENCRYPTION_KEY"`

	// SessionTTLDays bounds the cloud session lifetime.
	SessionTTLDays int `env:"TS_MCP_SESSION_TTL_DAYS" envDefault:"30"`

	// SecretsDir overrides the local secret store location.
	SecretsDir string `env:"TS_MCP_SECRETS_DIR"`

	// TelemetryEnabled toggles anonymous usage analytics.
	TelemetryEnabled bool `env:"TS_MCP_TELEMETRY" envDefault:"true"`

	// PostHogAPIKey enables the PostHog tracker when set.
	PostHogAPIKey string `env:"TS_MCP_POSTHOG_KEY"`

	// LogLevel selects the zap level: debug, info, warn or error.
	LogLevel string `env:"TS_MCP_LOG_LEVEL" envDefault:"info"`
}

// SessionTTL returns the session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLDays) * 24 * time.Hour
}

// ValidateCloud checks the settings the cloud server cannot run without.
func (c *Config) ValidateCloud() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("TS_MCP_ENCRYPTION_KEY is required in cloud mode")
	}
	if c.SessionTTLDays <= 0 {
		return fmt.Errorf("TS_MCP_SESSION_TTL_DAYS must be positive, got %d", c.SessionTTLDays)
	}
	return nil
}

// Load reads the configuration from the environment, honoring a local .env
// file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
