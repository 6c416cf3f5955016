package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/greybell/butler/pkg/logger"
)

// RuleProfile is a YAML document declaring a set of trigger rules to load
// at startup.
type RuleProfile struct {
	Name  string       `yaml:"name,omitempty"`
	Rules []RuleConfig `yaml:"rules"`
}

// LoadRuleProfile reads a YAML rule profile and adds its rules to the
// engine. Rules whose name already exists are skipped, so re-loading the
// same profile across restarts never duplicates rules. Returns the number
// of rules added.
func (b *ButlerService) LoadRuleProfile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read rule profile: %w", err)
	}

	var profile RuleProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return 0, fmt.Errorf("parse rule profile %s: %w", path, err)
	}

	log := logger.L().With("component", "butler", "profile", path)

	added := 0
	for _, cfg := range profile.Rules {
		if _, err := b.engine.GetRuleByName(cfg.Name); err == nil {
			log.Debug("rule already present, skipping", "rule", cfg.Name)
			continue
		}
		if _, err := b.AddRuleFromConfig(cfg); err != nil {
			return added, fmt.Errorf("rule %q: %w", cfg.Name, err)
		}
		added++
	}

	log.Info("rule profile loaded", "rules", added, "skipped", len(profile.Rules)-added)
	return added, nil
}
