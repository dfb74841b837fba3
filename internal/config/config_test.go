package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4*time.Second, cfg.Poll.Steady)
	assert.Equal(t, 12*time.Second, cfg.Poll.Relaxed)
	assert.Equal(t, 15*time.Second, cfg.Poll.Hidden)
	assert.Equal(t, 8*time.Second, cfg.Poll.Degraded)
	assert.Equal(t, 800*time.Millisecond, cfg.Poll.BurstFast)
	assert.Equal(t, 60*time.Second, cfg.Uptime.MaxAge)
	assert.Equal(t, 15*time.Second, cfg.Toast.TTL)
	assert.Equal(t, 900*time.Millisecond, cfg.Toast.Quiet)
	assert.Equal(t, 10000, cfg.Events.LogCapacity)
	assert.Equal(t, "memory://", cfg.Store.DSN)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
session_id = "dash-1"

[api]
base_url = "https://copycord.example/api"
timeout = "5s"

[poll]
steady = "2s"

[store]
dsn = "sqlite:///tmp/session.db"

[server]
enabled = true
listen = "127.0.0.1:9999"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dash-1", cfg.SessionID)
	assert.Equal(t, "https://copycord.example/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Poll.Steady)
	assert.Equal(t, "sqlite:///tmp/session.db", cfg.Store.DSN)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)

	// untouched sections keep their defaults
	assert.Equal(t, 12*time.Second, cfg.Poll.Relaxed)
	assert.Equal(t, 15*time.Second, cfg.Toast.TTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadMalformedTOML(t *testing.T) {
	path := writeConfig(t, `[api  base_url =`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, false},
		{"negative log capacity", func(c *Config) { c.Events.LogCapacity = -1 }, false},
		{"zero steady", func(c *Config) { c.Poll.Steady = 0 }, false},
		{"negative degraded", func(c *Config) { c.Poll.Degraded = -time.Second }, false},
		{"zero burst fast", func(c *Config) { c.Poll.BurstFast = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
