// Package config centralizes githierarchy's process configuration: the
// repository path, the signature the sum re-merger commits as, and the
// logging level. An optional TOML file layers over built-in defaults,
// with environment variables layering over both.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is githierarchy's process-wide configuration.
type Config struct {
	// RepositoryPath is the git repository githierarchy operates on.
	RepositoryPath string `toml:"repository_path"`
	// CommitterName/CommitterEmail identify the re-merger's synthesized
	// merge commits, used as both author and committer.
	CommitterName  string `toml:"committer_name"`
	CommitterEmail string `toml:"committer_email"`
	// LogLevel is a logrus level name (e.g. "info", "debug").
	LogLevel string `toml:"log_level"`
}

// Default returns the built-in defaults, before any file or environment
// override is applied.
func Default() *Config {
	return &Config{
		RepositoryPath: ".",
		CommitterName:  "githierarchy",
		CommitterEmail: "githierarchy@localhost",
		LogLevel:       "info",
	}
}

// Load reads path (a TOML file) over the defaults, then applies
// GITHIER_-prefixed environment variable overrides. A missing
// file is not an error — Load simply returns the defaults with env
// overrides applied, since a config file is optional.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GITHIER_REPOSITORY_PATH"); v != "" {
		cfg.RepositoryPath = v
	}
	if v := os.Getenv("GITHIER_COMMITTER_NAME"); v != "" {
		cfg.CommitterName = v
	}
	if v := os.Getenv("GITHIER_COMMITTER_EMAIL"); v != "" {
		cfg.CommitterEmail = v
	}
	if v := os.Getenv("GITHIER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Write persists cfg to path as TOML, for a "githierarchy init" style
// workflow that wants to leave a starter config file behind.
func Write(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}
