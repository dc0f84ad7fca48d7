// Package config loads the feedtrack client settings from
// ~/.feedtrack/config.yaml with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ValidBackends lists the supported credential store backends.
var ValidBackends = []string{BackendFile, BackendSQLite, BackendMemory}

type Config struct {
	// Server is the base URL of feedtrackd.
	Server string `yaml:"server"`

	TokenBackend string `yaml:"token_backend"`
	TokenPath    string `yaml:"token_path"`
	DatabasePath string `yaml:"database_path"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	CheckTimeout   time.Duration `yaml:"check_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Dir returns the per-user configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".feedtrack"
	}
	return filepath.Join(home, ".feedtrack")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Server:         "http://127.0.0.1:8080",
		TokenBackend:   BackendFile,
		TokenPath:      filepath.Join(dir, "token"),
		DatabasePath:   filepath.Join(dir, "feedtrack.db"),
		LogLevel:       "info",
		LogFile:        filepath.Join(dir, "feedtrack.log"),
		CheckTimeout:   10 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if server := os.Getenv("FEEDTRACK_SERVER"); server != "" {
		c.Server = server
	}
	if backend := os.Getenv("FEEDTRACK_TOKEN_BACKEND"); backend != "" {
		c.TokenBackend = backend
	}
	if level := os.Getenv("FEEDTRACK_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server) == "" {
		return fmt.Errorf("server URL not configured (set server in %s or FEEDTRACK_SERVER)", DefaultPath())
	}
	if !strings.HasPrefix(c.Server, "http://") && !strings.HasPrefix(c.Server, "https://") {
		return fmt.Errorf("invalid server URL %q: expected http:// or https://", c.Server)
	}
	valid := false
	for _, backend := range ValidBackends {
		if c.TokenBackend == backend {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid token backend: %s (valid: %v)", c.TokenBackend, ValidBackends)
	}
	if c.CheckTimeout <= 0 {
		return fmt.Errorf("check_timeout must be positive")
	}
	return nil
}
