// Package config holds the configuration for the livefind binaries.
// Order of precedence: defaults, then config.yml, then config.local.yml,
// then environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"livefind/internal/logging"
)

// StorageConfig selects and configures the storage engine.
type StorageConfig struct {
	// Backend is "memory" or "mongo".
	Backend string `yaml:"backend"`

	Mongo MongoConfig `yaml:"mongo"`
}

// MongoConfig configures the MongoDB engine.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// RelayConfig selects and configures the cross-context relay.
type RelayConfig struct {
	// Kind is "memory", "nats" or "ws". Empty disables relaying.
	Kind string `yaml:"kind"`

	// NatsURL is the NATS server address for kind "nats".
	NatsURL string `yaml:"nats_url"`

	// WsURL is the relay server address for kind "ws".
	WsURL string `yaml:"ws_url"`
}

// Config holds the application configuration.
type Config struct {
	Storage StorageConfig  `yaml:"storage"`
	Relay   RelayConfig    `yaml:"relay"`
	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns the built-in defaults: in-memory storage, no
// relay, text logging at info.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "memory",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "livefind",
				Collection: "docs",
			},
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration files and environment overrides on top of
// the defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LIVEFIND_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("LIVEFIND_MONGO_URI"); v != "" {
		c.Storage.Mongo.URI = v
	}
	if v := os.Getenv("LIVEFIND_RELAY_KIND"); v != "" {
		c.Relay.Kind = v
	}
	if v := os.Getenv("LIVEFIND_NATS_URL"); v != "" {
		c.Relay.NatsURL = v
	}
	if v := os.Getenv("LIVEFIND_WS_URL"); v != "" {
		c.Relay.WsURL = v
	}
	if v := os.Getenv("LIVEFIND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "mongo":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Relay.Kind {
	case "", "memory", "nats", "ws":
	default:
		return fmt.Errorf("unknown relay kind %q", c.Relay.Kind)
	}
	if c.Relay.Kind == "nats" && c.Relay.NatsURL == "" {
		return fmt.Errorf("relay kind nats requires nats_url")
	}
	if c.Relay.Kind == "ws" && c.Relay.WsURL == "" {
		return fmt.Errorf("relay kind ws requires ws_url")
	}
	return nil
}
