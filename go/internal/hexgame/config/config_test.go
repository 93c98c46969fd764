package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		ConfigPathEnv,
		"HEXFORT_AUTHORITY_URL",
		"HEXFORT_SOCKET_PATH",
		"HEXFORT_TRANSPORT",
		"NATS_URL",
		"HEXFORT_NATS_PREFIX",
		"HEXFORT_VIEW_ADDR",
		"HEXFORT_TICK_INTERVAL",
		"HEXFORT_REQUEST_TIMEOUT",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hexfort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
authority_url: http://game.example.com:5000
transport: nats
nats:
  url: nats://nats.example.com:4222
tick_interval: 500ms
log_level: debug
`)
	t.Setenv("HEXFORT_REQUEST_TIMEOUT", "3s")
	t.Setenv("HEXFORT_AUTHORITY_URL", "http://override.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://override.example.com", cfg.AuthorityURL, "env wins over file")
	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATS.URL)
	assert.Equal(t, "hexfort.games", cfg.NATS.SubjectPrefix, "unset keys keep defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadPathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(ConfigPathEnv, writeFile(t, "view_addr: 0.0.0.0:9000\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.ViewAddr)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad yaml", file: "transport: [websocket"},
		{name: "unknown transport", env: map[string]string{"HEXFORT_TRANSPORT": "carrier-pigeon"}},
		{name: "bad duration", env: map[string]string{"HEXFORT_TICK_INTERVAL": "soon"}},
		{name: "negative timeout", env: map[string]string{"HEXFORT_REQUEST_TIMEOUT": "-1s"}},
		{name: "relative authority", env: map[string]string{"HEXFORT_AUTHORITY_URL": "localhost"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
