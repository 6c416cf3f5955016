// Package config loads the butler daemon configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	// WorkDir roots all persisted butler state.
	WorkDir string `yaml:"work_dir" env:"BUTLER_WORK_DIR"`

	Log struct {
		Level  string `yaml:"level" env:"BUTLER_LOG_LEVEL"`
		Format string `yaml:"format" env:"BUTLER_LOG_FORMAT"`
	} `yaml:"log"`

	Butler struct {
		DefaultChannel   string `yaml:"default_channel" env:"BUTLER_DEFAULT_CHANNEL"`
		DefaultRecipient string `yaml:"default_recipient" env:"BUTLER_DEFAULT_RECIPIENT"`
		LLMFallback      bool   `yaml:"llm_fallback" env:"BUTLER_LLM_FALLBACK"`
	} `yaml:"butler"`

	Memory struct {
		// Path of the sqlite journal. Empty disables the journal.
		JournalPath string `yaml:"journal_path" env:"BUTLER_MEMORY_JOURNAL"`
	} `yaml:"memory"`

	// RuleProfiles are YAML rule documents loaded at startup.
	RuleProfiles []string `yaml:"rule_profiles" env:"BUTLER_RULE_PROFILES" envSeparator:","`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	cfg := &Config{}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg.WorkDir = filepath.Join(home, ".butler")
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Memory.JournalPath = filepath.Join(cfg.WorkDir, "memory.db")
	return cfg
}

// Load reads the YAML file at path (if it exists) over the defaults, then
// applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}
