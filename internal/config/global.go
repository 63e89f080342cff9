// Where: internal/config/global.go
// What: Global config load/save.
// Why: Manage ~/.config/crucible/config.yaml consistently.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crucible-dev/crucible/internal/meta"
	"gopkg.in/yaml.v3"
)

// GlobalConfig represents the per-user configuration file. It tunes behavior
// that does not belong in any single project's config file.
type GlobalConfig struct {
	Version int `yaml:"version"`
	// Interpreters overrides interpreter discovery, mapping a basepython
	// name such as python3.6 to an executable path.
	Interpreters map[string]string `yaml:"interpreters,omitempty"`
	// InstallerOpts are extra arguments appended to every install command.
	InstallerOpts []string `yaml:"installer_opts,omitempty"`
	// NoEmoji strips emoji prefixes from console output.
	NoEmoji bool `yaml:"no_emoji,omitempty"`
	// SkipMissingInterpreters applies when the project config is silent.
	SkipMissingInterpreters bool `yaml:"skip_missing_interpreters,omitempty"`
	// HistoryLimit caps the default number of rows the history command shows.
	HistoryLimit int `yaml:"history_limit,omitempty"`
}

// DefaultGlobalConfig returns an initialized GlobalConfig with version set.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Version:      1,
		Interpreters: map[string]string{},
	}
}

// GlobalConfigPath returns the config.yaml location, honoring the
// directory override environment variable.
func GlobalConfigPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(meta.GlobalConfigEnvVar)); dir != "" {
		return filepath.Join(dir, "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", meta.Slug, "config.yaml"), nil
}

// LoadGlobalConfig reads, validates, and parses the global configuration.
// A missing file yields the defaults.
func LoadGlobalConfig(path string) (GlobalConfig, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGlobalConfig(), nil
		}
		return GlobalConfig{}, fmt.Errorf("read global config: %w", err)
	}

	if err := validateGlobalConfig(payload); err != nil {
		return GlobalConfig{}, fmt.Errorf("validate global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return GlobalConfig{}, fmt.Errorf("decode global config: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	return cfg, nil
}

// SaveGlobalConfig writes a GlobalConfig to the specified path.
func SaveGlobalConfig(path string, cfg GlobalConfig) error {
	payload, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode global config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create global config dir: %w", err)
	}

	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write global config: %w", err)
	}
	return nil
}
