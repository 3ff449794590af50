package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CROSSTAB_API_KEY", "")
	t.Setenv("CROSSTAB_MODEL", "")
	t.Setenv("CROSSTAB_BASE_URL", "")
	t.Setenv("CROSSTAB_DATA_DIR", "")
	t.Setenv("CROSSTAB_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
}

func TestLoadFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CROSSTAB_API_KEY", "")
	t.Setenv("CROSSTAB_MODEL", "")

	path := filepath.Join(t.TempDir(), "crosstab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  api_key: file-key
  model: gpt-4o
  timeout: 90s
data:
  dir: /srv/study
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, "/srv/study", cfg.Data.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crosstab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: file-key\n  model: gpt-4o\n"), 0o644))

	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("CROSSTAB_MODEL", "gpt-4o-mini")
	t.Setenv("CROSSTAB_DATA_DIR", "/data/q3")
	t.Setenv("CROSSTAB_BASE_URL", "")
	t.Setenv("CROSSTAB_API_KEY", "")
	t.Setenv("CROSSTAB_LOG_LEVEL", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "/data/q3", cfg.Data.Dir)
}

func TestAnthropicKeyIsFallbackOnly(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CROSSTAB_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "anthropic-key", cfg.LLM.APIKey)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)

	t.Setenv("OPENAI_API_KEY", "openai-key")
	cfg, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai-key", cfg.LLM.APIKey)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crosstab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "missing api key")

	cfg.LLM.APIKey = "k"
	require.NoError(t, cfg.Validate())

	cfg.Data.Dir = ""
	require.Error(t, cfg.Validate())
}

func TestBadTimeoutFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "soon"
	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
}
