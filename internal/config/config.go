package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level TOML structure for the console.
type Config struct {
	// SessionID scopes the persisted client-side keys (uptime cache, toast
	// dedup). Empty means generate a fresh one per run.
	SessionID string `toml:"session_id" mapstructure:"session_id"`

	API     APIConfig     `toml:"api" mapstructure:"api"`
	Push    PushConfig    `toml:"push" mapstructure:"push"`
	Events  EventsConfig  `toml:"events" mapstructure:"events"`
	Poll    PollConfig    `toml:"poll" mapstructure:"poll"`
	Uptime  UptimeConfig  `toml:"uptime" mapstructure:"uptime"`
	Toast   ToastConfig   `toml:"toast" mapstructure:"toast"`
	Store   StoreConfig   `toml:"store" mapstructure:"store"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
}

// APIConfig points at the Copycord admin REST API.
type APIConfig struct {
	BaseURL  string        `toml:"base_url" mapstructure:"base_url"`
	Timeout  time.Duration `toml:"timeout" mapstructure:"timeout"`
	Insecure bool          `toml:"insecure" mapstructure:"insecure"`
	TLS      TLSConfig     `toml:"tls" mapstructure:"tls"`
}

// TLSConfig mirrors the client's TLS options.
type TLSConfig struct {
	Enabled    bool   `toml:"enabled" mapstructure:"enabled"`
	CACert     string `toml:"ca_cert" mapstructure:"ca_cert"`
	ClientCert string `toml:"client_cert" mapstructure:"client_cert"`
	ClientKey  string `toml:"client_key" mapstructure:"client_key"`
	ServerName string `toml:"server_name" mapstructure:"server_name"`
	SkipVerify bool   `toml:"skip_verify" mapstructure:"skip_verify"`
}

// PushConfig describes the persistent push socket.
type PushConfig struct {
	URL            string        `toml:"url" mapstructure:"url"`
	ReconnectDelay time.Duration `toml:"reconnect_delay" mapstructure:"reconnect_delay"`
}

// EventsConfig describes the server-sent event endpoints.
type EventsConfig struct {
	BusURL string `toml:"bus_url" mapstructure:"bus_url"`
	// LogURLTemplate contains one %s for the role name.
	LogURLTemplate string        `toml:"log_url_template" mapstructure:"log_url_template"`
	ReconnectDelay time.Duration `toml:"reconnect_delay" mapstructure:"reconnect_delay"`
	LogCapacity    int           `toml:"log_capacity" mapstructure:"log_capacity"`
}

// PollConfig holds the scheduler cadences.
type PollConfig struct {
	Steady        time.Duration `toml:"steady" mapstructure:"steady"`
	Relaxed       time.Duration `toml:"relaxed" mapstructure:"relaxed"`
	Hidden        time.Duration `toml:"hidden" mapstructure:"hidden"`
	Degraded      time.Duration `toml:"degraded" mapstructure:"degraded"`
	BurstFast     time.Duration `toml:"burst_fast" mapstructure:"burst_fast"`
	BurstDuration time.Duration `toml:"burst_duration" mapstructure:"burst_duration"`
	MaxBackoff    time.Duration `toml:"max_backoff" mapstructure:"max_backoff"`
}

type UptimeConfig struct {
	MaxAge time.Duration `toml:"max_age" mapstructure:"max_age"`
}

type ToastConfig struct {
	TTL   time.Duration `toml:"ttl" mapstructure:"ttl"`
	Quiet time.Duration `toml:"quiet" mapstructure:"quiet"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// HistoryConfig selects an optional transition-history sink.
type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	NoColor    bool   `toml:"no_color" mapstructure:"no_color"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// ServerConfig controls the console's local read-model HTTP endpoint.
type ServerConfig struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: 10 * time.Second,
		},
		Push: PushConfig{
			URL:            "ws://localhost:8080/ws",
			ReconnectDelay: 1500 * time.Millisecond,
		},
		Events: EventsConfig{
			BusURL:         "http://localhost:8080/api/events",
			LogURLTemplate: "http://localhost:8080/api/logs/%s/stream",
			ReconnectDelay: 1500 * time.Millisecond,
			LogCapacity:    10000,
		},
		Poll: PollConfig{
			Steady:        4 * time.Second,
			Relaxed:       12 * time.Second,
			Hidden:        15 * time.Second,
			Degraded:      8 * time.Second,
			BurstFast:     800 * time.Millisecond,
			BurstDuration: 12 * time.Second,
			MaxBackoff:    15 * time.Second,
		},
		Uptime: UptimeConfig{MaxAge: 60 * time.Second},
		Toast:  ToastConfig{TTL: 15 * time.Second, Quiet: 900 * time.Millisecond},
		Store:  StoreConfig{DSN: "memory://"},
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Listen: "127.0.0.1:9210", BasePath: "/console"},
	}
}

// Load reads a TOML config file and merges it over the defaults. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Events.LogCapacity < 0 {
		return fmt.Errorf("events.log_capacity must not be negative")
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"poll.steady", c.Poll.Steady},
		{"poll.relaxed", c.Poll.Relaxed},
		{"poll.hidden", c.Poll.Hidden},
		{"poll.degraded", c.Poll.Degraded},
		{"poll.burst_fast", c.Poll.BurstFast},
		{"poll.max_backoff", c.Poll.MaxBackoff},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	return nil
}
