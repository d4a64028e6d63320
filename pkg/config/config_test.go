package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "tapd.yaml", `
capture:
  maxEntries: 500
  maxBodyBytes: 1024
  enabled: false
  ignorePaths:
    - /healthz
    - /internal/**
inspect:
  port: 9999
forward:
  brokerUrl: tcp://localhost:1883
  topic: traffic/audit
log:
  level: debug
  format: json
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Capture.MaxEntries)
	assert.Equal(t, int64(1024), cfg.Capture.MaxBodyBytes)
	require.NotNil(t, cfg.Capture.Enabled)
	assert.False(t, *cfg.Capture.Enabled)
	assert.Equal(t, []string{"/healthz", "/internal/**"}, cfg.Capture.IgnorePaths)
	assert.Equal(t, 9999, cfg.Inspect.Port)
	assert.Equal(t, "tcp://localhost:1883", cfg.Forward.BrokerURL)
	assert.Equal(t, "traffic/audit", cfg.Forward.Topic)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "tapd.json", `{"capture":{"maxEntries":7},"inspect":{"host":"0.0.0.0"}}`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Capture.MaxEntries)
	assert.Equal(t, "0.0.0.0", cfg.Inspect.Host)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = LoadFile(writeFile(t, "empty.yaml", "  \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = LoadFile(writeFile(t, "bad.json", `{"capture":`))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = LoadFile(writeFile(t, "bad.yaml", "capture: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TAPD_CAPTURE_ENABLED", "false")
	t.Setenv("TAPD_CAPTURE_MAX_ENTRIES", "42")
	t.Setenv("TAPD_INSPECT_PORT", "4300")
	t.Setenv("TAPD_FORWARD_BROKER_URL", "tcp://broker:1883")
	t.Setenv("TAPD_LOG_LEVEL", "WARN")

	cfg := Default()
	cfg.ApplyEnv()

	require.NotNil(t, cfg.Capture.Enabled)
	assert.False(t, *cfg.Capture.Enabled)
	assert.Equal(t, 42, cfg.Capture.MaxEntries)
	assert.Equal(t, 4300, cfg.Inspect.Port)
	assert.Equal(t, "tcp://broker:1883", cfg.Forward.BrokerURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvWinsOverFile(t *testing.T) {
	t.Setenv("TAPD_INSPECT_PORT", "5000")
	path := writeFile(t, "tapd.yaml", "inspect:\n  port: 4246\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Inspect.Port)
}
