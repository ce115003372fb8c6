package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.Server != "http://localhost:8000/api/" || cfg.Timeout != 10*time.Second || cfg.AuthScheme != "Token" {
		t.Errorf("defaults = %+v", cfg)
	}
	if !strings.HasSuffix(cfg.DBPath, "libra.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadClientConfig_File(t *testing.T) {
	t.Setenv(EnvServer, "")
	t.Setenv(EnvDB, "")
	t.Setenv(EnvDeviceToken, "")

	path := writeFile(t, `
server: https://library.example.org/api/
timeout: 3s
auth_scheme: Bearer
data_dir: /tmp/libra-test
watch_interval: 1m
`)
	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server != "https://library.example.org/api/" || cfg.Timeout != 3*time.Second || cfg.AuthScheme != "Bearer" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DBPath != filepath.Join("/tmp/libra-test", "libra.db") {
		t.Errorf("DBPath did not follow data_dir: %q", cfg.DBPath)
	}
	if cfg.WatchInterval != time.Minute {
		t.Errorf("WatchInterval = %s", cfg.WatchInterval)
	}
}

func TestLoadClientConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server: https://file.example.org/api/\n")
	t.Setenv(EnvServer, "http://env.example.org/api/")
	t.Setenv(EnvDB, ":memory:")
	t.Setenv(EnvDeviceToken, "device-1")

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server != "http://env.example.org/api/" || cfg.DBPath != ":memory:" || cfg.DeviceToken != "device-1" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadClientConfig_Errors(t *testing.T) {
	t.Setenv(EnvServer, "")

	if _, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("explicit missing file accepted")
	}
	if _, err := LoadClientConfig(writeFile(t, "server: [not, a, string\n")); err == nil {
		t.Error("malformed YAML accepted")
	}
	if _, err := LoadClientConfig(writeFile(t, "server: ftp://example.org\n")); err == nil {
		t.Error("non-http server accepted")
	}
}

func TestDefaultDevServerConfig(t *testing.T) {
	cfg := DefaultDevServerConfig()
	if cfg.Addr != ":8000" || cfg.PathPrefix != "/api" {
		t.Errorf("defaults = %+v", cfg)
	}
}
