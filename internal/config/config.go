package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Lobby  LobbyConfig  `yaml:"lobby"`
	Kafka  KafkaConfig  `yaml:"kafka"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LobbyConfig holds lobby heartbeat timeout and cleanup cadence, in seconds
type LobbyConfig struct {
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"`
	CleanupIntervalSeconds  int `yaml:"cleanup_interval_seconds"`
}

// HeartbeatTimeout returns the heartbeat timeout as a duration
func (c *LobbyConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

// CleanupInterval returns the cleanup cadence as a duration
func (c *LobbyConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// KafkaConfig holds Kafka connection configuration for lobby event publishing
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Enabled bool     `yaml:"enabled"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects invalid settings instead of silently clamping them
func (c *Config) Validate() error {
	if c.Lobby.HeartbeatTimeoutSeconds <= 0 {
		return fmt.Errorf("lobby.heartbeat_timeout_seconds must be positive, got %d", c.Lobby.HeartbeatTimeoutSeconds)
	}
	if c.Lobby.CleanupIntervalSeconds <= 0 {
		return fmt.Errorf("lobby.cleanup_interval_seconds must be positive, got %d", c.Lobby.CleanupIntervalSeconds)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Lobby defaults
	if c.Lobby.HeartbeatTimeoutSeconds == 0 {
		c.Lobby.HeartbeatTimeoutSeconds = 30
	}
	if c.Lobby.CleanupIntervalSeconds == 0 {
		c.Lobby.CleanupIntervalSeconds = 10
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "lobby-events"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
