package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FEEDTRACK_SERVER", "")
	t.Setenv("FEEDTRACK_TOKEN_BACKEND", "")
	t.Setenv("FEEDTRACK_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", cfg.Server)
	assert.Equal(t, BackendFile, cfg.TokenBackend)
	assert.Equal(t, 10*time.Second, cfg.CheckTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server: https://feedback.example.edu\n"+
			"token_backend: sqlite\n"+
			"check_timeout: 3s\n"), 0o600))

	t.Setenv("FEEDTRACK_SERVER", "")
	t.Setenv("FEEDTRACK_TOKEN_BACKEND", "")
	t.Setenv("FEEDTRACK_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://feedback.example.edu", cfg.Server)
	assert.Equal(t, BackendSQLite, cfg.TokenBackend)
	assert.Equal(t, 3*time.Second, cfg.CheckTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("FEEDTRACK_SERVER", "http://localhost:9000")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.Server)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TokenBackend = "keyring"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server = "ftp://example"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Server = "http://example.local:8080"
	require.NoError(t, cfg.Save(path))

	t.Setenv("FEEDTRACK_SERVER", "")
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server, loaded.Server)
}
