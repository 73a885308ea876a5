package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/wppdesk/internal/config"
)

func TestPaths(t *testing.T) {
	t.Setenv("WPPDESK_HOME", "/tmp/wppdesk-home")

	tests := []struct {
		got  string
		want string
	}{
		{Dir("main"), "/tmp/wppdesk-home/profiles/main"},
		{ConfigPath(), "/tmp/wppdesk-home/config.toml"},
		{ProfileConfigPath("work"), "/tmp/wppdesk-home/profiles/work/config.toml"},
		{LogPath("work"), "/tmp/wppdesk-home/profiles/work/logs/wppdesk.log"},
		{LockPath("work"), "/tmp/wppdesk-home/profiles/work/LOCK"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv("WPPDESK_HOME", "")
	home, _ := os.UserHomeDir()
	if got, want := BaseDir(), filepath.Join(home, ".wppdesk"); got != want {
		t.Errorf("BaseDir() = %q, want %q", got, want)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(LogDir("test"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if !info.IsDir() || info.Mode().Perm() != 0700 {
		t.Errorf("log dir mode = %v", info.Mode())
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())

	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultName)
	}
	cfg := config.Default()
	cfg.DefaultProfile = "work"
	if err := config.Save(ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "work" {
		t.Errorf("Resolve() = %q, want work", got)
	}
	if got := Resolve("other"); got != "other" {
		t.Errorf("Resolve(other) = %q, want other", got)
	}
}

func TestLoadConfigLayersAndEnv(t *testing.T) {
	t.Setenv("WPPDESK_HOME", t.TempDir())
	t.Setenv(config.EnvAPIKey, "env-key")

	global := config.Default()
	global.Backend.BaseURL = "https://bot.example.com"
	if err := config.Save(ConfigPath(), global); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(Dir("work"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ProfileConfigPath("work"), []byte("[metrics]\naddr = \":9090\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("work")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Backend.BaseURL != "https://bot.example.com" || cfg.Metrics.Addr != ":9090" || cfg.Backend.APIKey != "env-key" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-profile", false},
		{"valid with underscore", "my_profile", false},
		{"valid max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my profile", true},
		{"dot", "my.profile", true},
		{"too long", strings.Repeat("a", 65), true},
		{"slash", "my/profile", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LOCK")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if parsePID(string(data)) != os.Getpid() {
		t.Errorf("lock file = %q, want our pid", data)
	}

	_, err = Acquire(path)
	var held *LockHeldError
	if !errors.As(err, &held) {
		t.Fatalf("second Acquire() error = %v, want *LockHeldError", err)
	}
	if held.PID != os.Getpid() {
		t.Errorf("held by %d, want %d", held.PID, os.Getpid())
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	l2.Release()
}
