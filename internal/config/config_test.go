package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, uint64(3), cfg.EditRetryAttempts)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.True(t, cfg.AutoMigrateUp)
	assert.False(t, cfg.AutoMigrateDown)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:9000")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "20")
	t.Setenv("AUTO_MIGRATE_UP", "false")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ServerAddress)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 20, cfg.MaxOpenConns)
	assert.False(t, cfg.AutoMigrateUp)
}

func TestNewConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"LOG_FORMAT":              "xml",
		"POSTGRES_MAX_OPEN_CONNS": "0",
		"SHUTDOWN_TIMEOUT":        "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}
