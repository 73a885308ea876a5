package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment overrides.
const (
	EnvAPIKey  = "WPPDESK_API_KEY"
	EnvBaseURL = "WPPDESK_BASE_URL"
	EnvWSURL   = "WPPDESK_WS_URL"
)

// Config represents ~/.wppdesk/config.toml and the per-profile config files.
type Config struct {
	DefaultProfile string     `toml:"default_profile,omitempty"`
	Backend        Backend    `toml:"backend"`
	Connection     Connection `toml:"connection"`
	Metrics        Metrics    `toml:"metrics"`
	Log            Log        `toml:"log"`
}

// Backend locates the bot backend.
type Backend struct {
	BaseURL string `toml:"base_url"`
	WSURL   string `toml:"ws_url,omitempty"`
	APIKey  string `toml:"api_key"`
}

// Connection tunes heartbeat and reconnection.
type Connection struct {
	HeartbeatInterval    Duration `toml:"heartbeat_interval"`
	WatchdogTimeout      Duration `toml:"watchdog_timeout"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
	BaseBackoff          Duration `toml:"base_backoff"`
	MaxBackoff           Duration `toml:"max_backoff"`
}

// Metrics configures the Prometheus listener. An empty Addr disables it.
type Metrics struct {
	Addr string `toml:"addr"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as "60s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Connection: Connection{
			HeartbeatInterval:    Duration{60 * time.Second},
			WatchdogTimeout:      Duration{5 * time.Second},
			MaxReconnectAttempts: 5,
			BaseBackoff:          Duration{time.Second},
			MaxBackoff:           Duration{30 * time.Second},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path over the defaults. Returns an error
// if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load with a missing file meaning the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadLayered decodes each existing file over the defaults, in order, so
// later files override earlier ones key by key.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := Default()
	for _, p := range paths {
		if _, err := toml.DecodeFile(p, cfg); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ApplyEnv overrides backend settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); v != "" {
		c.Backend.APIKey = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := getenv(EnvWSURL); v != "" {
		c.Backend.WSURL = v
	}
}

// WebSocketURL returns ws_url, or the backend's /ws/ endpoint derived from
// base_url.
func (c *Config) WebSocketURL() (string, error) {
	if c.Backend.WSURL != "" {
		return c.Backend.WSURL, nil
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base_url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("base_url %q: scheme must be http or https", c.Backend.BaseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/"
	return u.String(), nil
}

// Validate reports settings that would keep the console from connecting.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	} else if _, err := c.WebSocketURL(); err != nil {
		errs = append(errs, err)
	}
	if c.Backend.APIKey == "" {
		errs = append(errs, fmt.Errorf("backend.api_key is required (or set %s)", EnvAPIKey))
	}
	conn := c.Connection
	if conn.HeartbeatInterval.Duration <= 0 || conn.WatchdogTimeout.Duration <= 0 {
		errs = append(errs, errors.New("connection: heartbeat_interval and watchdog_timeout must be positive"))
	}
	if conn.MaxReconnectAttempts < 0 {
		errs = append(errs, errors.New("connection.max_reconnect_attempts must not be negative"))
	}
	if conn.BaseBackoff.Duration <= 0 || conn.MaxBackoff.Duration < conn.BaseBackoff.Duration {
		errs = append(errs, errors.New("connection: need 0 < base_backoff <= max_backoff"))
	}
	return errors.Join(errs...)
}
