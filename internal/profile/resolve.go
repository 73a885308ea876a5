package profile

import (
	"fmt"
	"os"

	"github.com/matheus3301/wppdesk/internal/config"
)

const DefaultName = "main"

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. config.toml default_profile
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultName
}

// LoadConfig reads the global config, then the profile's own file over it,
// then the environment overrides.
func LoadConfig(name string) (*config.Config, error) {
	cfg, err := config.LoadLayered(ConfigPath(), ProfileConfigPath(name))
	if err != nil {
		return nil, fmt.Errorf("load config for profile %q: %w", name, err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}
