package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig holds configuration for the libra CLI.
type ClientConfig struct {
	Server        string        `yaml:"server"`         // API root (default http://localhost:8000/api/)
	Timeout       time.Duration `yaml:"timeout"`        // Per-request timeout (default 10s)
	AuthScheme    string        `yaml:"auth_scheme"`    // Authorization header scheme (default "Token")
	DataDir       string        `yaml:"data_dir"`       // Local state directory (default ~/.libra)
	DBPath        string        `yaml:"db_path"`        // Credential database (default <data_dir>/libra.db, ":memory:" for testing)
	LogLevel      string        `yaml:"log_level"`      // Log level: debug, info, warn, error
	LogFormat     string        `yaml:"log_format"`     // Log format: text, json
	DeviceToken   string        `yaml:"device_token"`   // Fixed push token; generated per installation when empty
	WatchInterval time.Duration `yaml:"watch_interval"` // Notification polling interval (default 30s)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	dataDir := defaultDataDir()
	return ClientConfig{
		Server:        "http://localhost:8000/api/",
		Timeout:       10 * time.Second,
		AuthScheme:    "Token",
		DataDir:       dataDir,
		DBPath:        filepath.Join(dataDir, "libra.db"),
		LogLevel:      "warn",
		LogFormat:     "text",
		WatchInterval: 30 * time.Second,
	}
}

// DefaultConfigPath is where LoadClientConfig looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".libra"
	}
	return filepath.Join(home, ".libra")
}

// Environment variables that override the file.
const (
	EnvServer      = "LIBRA_SERVER"
	EnvDB          = "LIBRA_DB"
	EnvDeviceToken = "LIBRA_DEVICE_TOKEN"
)

// LoadClientConfig applies, in order: defaults, the YAML file at path (or
// the default path, which may be absent), then environment overrides. An
// explicitly named file that does not exist is an error.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dataDir := cfg.DataDir
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		// A relocated data dir moves the default database with it.
		if cfg.DataDir != dataDir && cfg.DBPath == filepath.Join(dataDir, "libra.db") {
			cfg.DBPath = filepath.Join(cfg.DataDir, "libra.db")
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

func (c *ClientConfig) applyEnv(getenv func(string) string) {
	if v := getenv(EnvServer); v != "" {
		c.Server = v
	}
	if v := getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := getenv(EnvDeviceToken); v != "" {
		c.DeviceToken = v
	}
}

// Validate reports configuration that cannot work.
func (c ClientConfig) Validate() error {
	if !strings.HasPrefix(c.Server, "http://") && !strings.HasPrefix(c.Server, "https://") {
		return fmt.Errorf("server must be an http(s) URL, got %q", c.Server)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("watch_interval must be positive, got %s", c.WatchInterval)
	}
	return nil
}

// DevServerConfig holds configuration for the development backend.
type DevServerConfig struct {
	Addr       string // Listen address (default ":8000")
	LogLevel   string // Log level: debug, info, warn, error
	LogFormat  string // Log format: text, json
	SeedFile   string // Optional YAML catalog seed
	PathPrefix string // API mount point (default "/api")
}

// DefaultDevServerConfig returns sensible defaults.
func DefaultDevServerConfig() DevServerConfig {
	return DevServerConfig{
		Addr:       ":8000",
		LogLevel:   "info",
		LogFormat:  "text",
		PathPrefix: "/api",
	}
}
