package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30, cfg.Lobby.HeartbeatTimeoutSeconds)
	assert.Equal(t, 10, cfg.Lobby.CleanupIntervalSeconds)
	assert.Equal(t, 30*time.Second, cfg.Lobby.HeartbeatTimeout())
	assert.Equal(t, 10*time.Second, cfg.Lobby.CleanupInterval())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "lobby-events", cfg.Kafka.Topic)
	assert.False(t, cfg.Kafka.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
lobby:
  heartbeat_timeout_seconds: 45
  cleanup_interval_seconds: 5
kafka:
  enabled: true
  brokers:
    - kafka-1:9092
    - kafka-2:9092
  topic: match-lobby-events
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45, cfg.Lobby.HeartbeatTimeoutSeconds)
	assert.Equal(t, 5, cfg.Lobby.CleanupIntervalSeconds)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "match-lobby-events", cfg.Kafka.Topic)

	// Unset fields fall back to defaults
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("LOBBY_SERVER_PORT", "7001")
	path := writeConfig(t, `
server:
  port: ${LOBBY_SERVER_PORT}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative heartbeat timeout", func(c *Config) { c.Lobby.HeartbeatTimeoutSeconds = -1 }},
		{"negative cleanup interval", func(c *Config) { c.Lobby.CleanupIntervalSeconds = -5 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
lobby:
  heartbeat_timeout_seconds: -1
`)
	_, err := Load(path)
	assert.Error(t, err)
}
