// Package config handles Rikugan configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Model  ModelConfig  `yaml:"model"`
	Trace  TraceConfig  `yaml:"trace"`
}

// ServerConfig holds HTTP and WebSocket server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AllowedOrigins lists origins permitted by CORS and the
	// WebSocket upgrade check. "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Timeouts in seconds. Zero means the default applies.
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool `yaml:"pretty"`
}

// ModelConfig holds model adapter settings.
type ModelConfig struct {
	// Default is the model loaded at startup. Empty means none.
	Default string `yaml:"default"`

	Device string `yaml:"device"`
	DType  string `yaml:"dtype"`
}

// TraceConfig holds turn trace recorder settings.
type TraceConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the DuckDB database file. Empty means in-memory.
	Path string `yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8321,
			AllowedOrigins: []string{"*"},
			ReadTimeout:    30,
			WriteTimeout:   30,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
		Model: ModelConfig{
			Default: "",
			Device:  "auto",
			DType:   "float32",
		},
		Trace: TraceConfig{
			Enabled: false,
			Path:    "",
		},
	}
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	if _, err := os.Stat("rikugan.yaml"); err == nil {
		return "rikugan.yaml"
	}
	if _, err := os.Stat("config/rikugan.yaml"); err == nil {
		return "config/rikugan.yaml"
	}
	return "rikugan.yaml"
}

// InitConfig creates a default config file if it doesn't exist.
func InitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // Already exists
	}

	cfg := Default()
	return cfg.Save(path)
}
