package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.WorkDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.NotEmpty(t, cfg.Memory.JournalPath)
	assert.False(t, cfg.Butler.LLMFallback)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLFile(t *testing.T) {
	raw := `
work_dir: /var/lib/butler
log:
  level: debug
  format: json
butler:
  default_channel: telegram
  default_recipient: "42"
  llm_fallback: true
rule_profiles:
  - /etc/butler/morning.yaml
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/butler", cfg.WorkDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "telegram", cfg.Butler.DefaultChannel)
	assert.Equal(t, "42", cfg.Butler.DefaultRecipient)
	assert.True(t, cfg.Butler.LLMFallback)
	assert.Equal(t, []string{"/etc/butler/morning.yaml"}, cfg.RuleProfiles)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	raw := "log:\n  level: debug\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	t.Setenv("BUTLER_LOG_LEVEL", "error")
	t.Setenv("BUTLER_DEFAULT_CHANNEL", "signal")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "signal", cfg.Butler.DefaultChannel)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("work_dir: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
