package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Cache.StateTTL)
	assert.Equal(t, 15*time.Second, cfg.Idempotency.Window)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Hour, cfg.Timer.MaxDuration)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
server:
  port: "9090"
store:
  driver: postgres
cache:
  state_ttl: 45s
rate_limit:
  per_second: 2
  burst: 10
timer:
  max_duration: 1h
`), 0o600))

	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("IDEMPOTENCY_WINDOW", "20s")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 45*time.Second, cfg.Cache.StateTTL)
	assert.Equal(t, 2.0, cfg.RateLimit.PerSecond)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, 20*time.Second, cfg.Idempotency.Window)
	assert.Equal(t, time.Hour, cfg.Timer.MaxDuration)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown store", "store:\n  driver: mongo\n"},
		{"jetstream without nats", "cache:\n  driver: jetstream\n"},
		{"malformed", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := loadConfig(path)
			assert.Error(t, err)
		})
	}
}
