package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"droidview/client/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_UsesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load("non-existent-config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Session.ConnectGracePeriod)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.Len(t, cfg.WebRTC.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.WebRTC.ICEServers[0].URLs)
}

func TestLoad_LoadsFromYAMLAndAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
api:
  base_url: "https://devices.example.com"
  timeout: 20s

signal:
  ping_interval: 15s
  write_timeout: 5s

webrtc:
  ice_servers:
    - urls: ["stun:stun.example.com:3478"]
    - urls: ["turn:turn.example.com:3478"]
      username: "droid"
      credential: "hunter2"

session:
  connect_grace_period: 7s

logging:
  level: "debug"
  format: "json"
`)

	t.Setenv("DROIDVIEW_API_URL", "https://override.example.com")
	t.Setenv("DROIDVIEW_LOG_LEVEL", "warn")
	t.Setenv("DROIDVIEW_USER_ID", "42")
	t.Setenv("DROIDVIEW_DEVICE_ID", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	// YAML values.
	assert.Equal(t, 20*time.Second, cfg.API.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Signal.PingInterval)
	assert.Equal(t, 7*time.Second, cfg.Session.ConnectGracePeriod)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.Len(t, cfg.WebRTC.ICEServers, 2)
	assert.Equal(t, "droid", cfg.WebRTC.ICEServers[1].Username)

	// Env overrides.
	assert.Equal(t, "https://override.example.com", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 42, cfg.UserID)
	assert.Equal(t, 7, cfg.DeviceID)
}

func TestLoad_InvalidConfigFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `
api:
  base_url: ""
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url")
}

func TestLoad_EmptyICEServerListRejected(t *testing.T) {
	cfg := defaults()
	cfg.WebRTC.ICEServers = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ice_servers")
}

func TestLoad_ICEServerWithoutURLsRejected(t *testing.T) {
	cfg := defaults()
	cfg.WebRTC.ICEServers = append(cfg.WebRTC.ICEServers, domain.ICEServer{})
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urls")
}
