package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "shiptrack.yml"

// Config models shiptrack.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr" json:"addr"`
		BasePath string `yaml:"base_path" json:"base_path"`
	} `yaml:"server" json:"server"`
	Refresh struct {
		Shipments     time.Duration `yaml:"shipments" json:"shipments"`
		Notifications time.Duration `yaml:"notifications" json:"notifications"`
	} `yaml:"refresh" json:"refresh"`
	Mock struct {
		Latency bool `yaml:"latency" json:"latency"`
	} `yaml:"mock" json:"mock"`
	Logging struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"logging" json:"logging"`
	Relay struct {
		Brokers  []string      `yaml:"brokers" json:"brokers"`
		Topic    string        `yaml:"topic" json:"topic"`
		Interval time.Duration `yaml:"interval" json:"interval"`
	} `yaml:"relay" json:"relay"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with st config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Refresh.Shipments <= 0 {
		return fmt.Errorf("config.refresh.shipments must be positive")
	}
	if c.Refresh.Notifications <= 0 {
		return fmt.Errorf("config.refresh.notifications must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config.logging.format must be console or json")
	}
	for _, b := range c.Relay.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("config.relay.brokers contains an empty address")
		}
	}
	if len(c.Relay.Brokers) > 0 && c.Relay.Topic == "" {
		return fmt.Errorf("config.relay.topic is required when brokers are set")
	}
	if c.Relay.Interval <= 0 {
		return fmt.Errorf("config.relay.interval must be positive")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0

refresh:
  shipments: 60s
  notifications: 30s

mock:
  # simulate network latency on every data source call
  latency: true

logging:
  level: info
  format: console

relay:
  brokers: []
  topic: shiptrack.events
  interval: 2s
`
