package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.search.brave.com/res/v1", cfg.Brave.BaseURL)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.BaseURL)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, 60, cfg.OpenAI.TimeoutSecs)
	assert.Equal(t, 150, cfg.OpenAI.MaxTokens)
	assert.Equal(t, "benchmarks", cfg.Benchmark.Dir)
	assert.Equal(t, "runs", cfg.Runs.Dir)
	assert.InDelta(t, 0.25, cfg.Evaluate.UnknownCredit, 0.001)
	assert.InDelta(t, 1.0, cfg.Evaluate.WrongPenalty, 0.001)
	assert.Equal(t, 2, cfg.Evaluate.Concurrency)
	assert.Equal(t, 100, cfg.Generate.ProbeLimit)
	assert.Equal(t, 4, cfg.Generate.Concurrency)
}

func TestDomainThresholdDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.DomainThreshold("github"))
	assert.Equal(t, 2, cfg.DomainThreshold("github_popular"))
	assert.Equal(t, 5, cfg.DomainThreshold("pypi"))
	assert.Equal(t, 5, cfg.DomainThreshold("wikipedia"))
	assert.Equal(t, 5, cfg.DomainThreshold("never-configured"))
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
log:
  level: debug
  format: json
openai:
  base_url: http://localhost:11434/v1
  key: local
generate:
  thresholds:
    github: 1
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "http://localhost:11434/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, 1, cfg.DomainThreshold("github"))
	// Defaults still apply for unset values.
	assert.Equal(t, "runs", cfg.Runs.Dir)
}

func TestLoadEnvOverrides(t *testing.T) {
	chtemp(t)

	t.Setenv("ANCHOR_OPENAI_KEY", "sk-test")
	t.Setenv("ANCHOR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAI.Key)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidateEvaluate(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate("evaluate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.key is required")

	cfg.OpenAI.Key = "sk-test"
	assert.NoError(t, cfg.Validate("evaluate"))

	cfg.Evaluate.Concurrency = 0
	err = cfg.Validate("evaluate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluate.concurrency")
}

func TestValidateGenerate(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate("generate"))

	cfg.Generate.Thresholds["github"] = -1
	err = cfg.Validate("generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds.github")
}

func TestValidateUnknownMode(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
