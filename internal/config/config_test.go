package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.Nil(t, err)
	assert.Equal(t, "https://touchstone.aegis.net", cfg.TouchstoneURL)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 30, cfg.SessionTTLDays)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTTL())
	assert.True(t, cfg.TelemetryEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOUCHSTONE_BASE_URL", "https://touchstone.example.org")
	t.Setenv("TS_MCP_SESSION_TTL_DAYS", "7")
	t.Setenv("TS_MCP_TELEMETRY", "false")
	cfg, err := Load()
	require.Nil(t, err)
	assert.Equal(t, "https://touchstone.example.org", cfg.TouchstoneURL)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL())
	assert.False(t, cfg.TelemetryEnabled)
}

func TestValidateCloud(t *testing.T) {
	cfg := &Config{SessionTTLDays: 30}
	assert.NotNil(t, cfg.ValidateCloud(), "missing encryption key is rejected")

	cfg.EncryptionKey = "a2V5"
	cfg.SessionTTLDays = 0
	assert.NotNil(t, cfg.ValidateCloud(), "non positive ttl is rejected")

	cfg.SessionTTLDays = 30
	assert.Nil(t, cfg.ValidateCloud())
}
