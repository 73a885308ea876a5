package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Backend.BaseURL = "https://bot.example.com"
	cfg.Backend.APIKey = "secret"
	cfg.Connection.HeartbeatInterval = Duration{30 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Backend.APIKey != "secret" || loaded.Backend.BaseURL != "https://bot.example.com" {
		t.Errorf("Backend = %+v", loaded.Backend)
	}
	if loaded.Connection.HeartbeatInterval.Duration != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", loaded.Connection.HeartbeatInterval)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backend]
base_url = "http://localhost:8000"
api_key = "k"

[connection]
watchdog_timeout = "2s"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Connection.WatchdogTimeout.Duration != 2*time.Second {
		t.Errorf("WatchdogTimeout = %v, want 2s", cfg.Connection.WatchdogTimeout)
	}
	if cfg.Connection.HeartbeatInterval.Duration != 60*time.Second {
		t.Errorf("HeartbeatInterval = %v, want default 60s", cfg.Connection.HeartbeatInterval)
	}
	if cfg.Connection.MaxReconnectAttempts != 5 || cfg.Log.Level != "info" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[connection]\nbase_backoff = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted an invalid duration")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Connection.MaxReconnectAttempts != 5 {
		t.Errorf("LoadOrDefault() did not return defaults: %+v", cfg)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.Backend.APIKey = "from-file"
	env := map[string]string{EnvAPIKey: "from-env"}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Backend.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.Backend.APIKey)
	}
	if cfg.Backend.BaseURL != "" {
		t.Errorf("BaseURL = %q, want unchanged", cfg.Backend.BaseURL)
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base    string
		ws      string
		want    string
		wantErr bool
	}{
		{base: "https://bot.example.com", want: "wss://bot.example.com/ws/"},
		{base: "http://localhost:8000/api/", want: "ws://localhost:8000/api/ws/"},
		{base: "http://x", ws: "wss://other/socket", want: "wss://other/socket"},
		{base: "ftp://x", wantErr: true},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Backend.BaseURL = tt.base
		cfg.Backend.WSURL = tt.ws
		got, err := cfg.WebSocketURL()
		if (err != nil) != tt.wantErr {
			t.Errorf("WebSocketURL(%q) error = %v, wantErr %v", tt.base, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() accepted an empty backend")
	}
	for _, want := range []string{"base_url", "api_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}

	cfg.Backend.BaseURL = "https://bot.example.com"
	cfg.Backend.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v for a complete config", err)
	}

	cfg.Connection.MaxBackoff = Duration{100 * time.Millisecond}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted max_backoff < base_backoff")
	}
}

func TestLoadLayered(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "config.toml")
	local := filepath.Join(dir, "profile.toml")
	if err := os.WriteFile(global, []byte("[backend]\nbase_url = \"https://a\"\napi_key = \"global\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("[backend]\napi_key = \"local\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLayered(global, local, filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("LoadLayered() error = %v", err)
	}
	if cfg.Backend.BaseURL != "https://a" || cfg.Backend.APIKey != "local" {
		t.Errorf("Backend = %+v, want base from global and key from profile", cfg.Backend)
	}
}
