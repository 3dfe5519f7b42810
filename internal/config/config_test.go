package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
api:
  base_url: https://api.example.com/
  timeout: 10s
session:
  db_path: /tmp/folio-test.db
sync:
  poll_interval: 2s
log:
  level: debug
`

// TestLoad_File verifies that Load correctly unmarshals a yaml config file.
func TestLoad_File(t *testing.T) {
	// Write config to temp file
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(sampleConfig); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Fatalf("unexpected base url: %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.API.Timeout)
	}
	if cfg.Sync.PollInterval != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.Sync.PollInterval)
	}
	if cfg.Session.DBPath != "/tmp/folio-test.db" {
		t.Fatalf("unexpected db path: %s", cfg.Session.DBPath)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %s", cfg.Log.Level)
	}
	// untouched sections keep their defaults
	require.Equal(t, Default().Stub.Addr, cfg.Stub.Addr)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5000", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FOLIO_API_BASE_URL", "http://backend:8080/")
	t.Setenv("FOLIO_SYNC_POLL_INTERVAL", "750ms")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://backend:8080", cfg.API.BaseURL)
	require.Equal(t, 750*time.Millisecond, cfg.Sync.PollInterval)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
