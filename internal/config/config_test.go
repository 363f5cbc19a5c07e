package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collection-qa-go/internal/scoring"
)

var envKeys = []string{
	"ENVIRONMENT", "LOG_LEVEL", "PORT", "DATA_DIR", "DB_PATH", "DATASET_PATH",
	"LLM_PROVIDER", "MODEL_NAME", "LLM_MODEL", "LLM_GATEWAY_URL", "OPENAI_API_KEY", "LLM_API_KEY",
	"ANTHROPIC_API_KEY", "TRANSCRIPTION_URL", "TRANSCRIPTION_API_KEY", "TEMPERATURE", "MIN_QA_SCORE",
	"LLM_TIMEOUT_SECONDS", "LLM_MAX_RETRY_SECONDS", "BATCH_CONCURRENCY", "TRANSCRIPTION_POLL_SECONDS",
	"TRANSCRIPTION_TIMEOUT_SECONDS", "USE_MOCK_TRANSCRIPT", "USE_MOCK_LLM",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ProviderGateway, cfg.LLM.Provider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.Zero(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.85, cfg.Scoring.PassThreshold)
	assert.Equal(t, scoring.DefaultWeights(), cfg.Scoring.Weights)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "analysis.db"), cfg.DBPath)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
data_dir: /var/qa
llm:
  provider: anthropic
  model: claude-sonnet-4-5
  anthropic_api_key: from-yaml
scoring:
  pass_threshold: 0.8
  weights:
    opening: 0.1
    communication: 0.3
    negotiation: 0.4
`)
	t.Setenv("MIN_QA_SCORE", "0.9")
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	assert.Equal(t, "from-env", cfg.LLM.AnthropicAPIKey)
	assert.Equal(t, 0.9, cfg.Scoring.PassThreshold)
	assert.Equal(t, 0.1, cfg.Scoring.Weights.Opening)
	assert.Equal(t, filepath.Join("/var/qa", "analysis.db"), cfg.DBPath)
}

func TestLoadViaConfigPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_PATH", writeYAML(t, "llm:\n  provider: mock\n"))
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, cfg.LLM.Provider)
}

func TestDefaultModelFollowsProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "k")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, DefaultModel(ProviderAnthropic), cfg.LLM.Model)
	assert.NotEqual(t, "gpt-3.5-turbo", cfg.LLM.Model)
}

func TestExplicitZeroPassThreshold(t *testing.T) {
	clearEnv(t)
	t.Setenv("USE_MOCK_LLM", "true")
	t.Setenv("MIN_QA_SCORE", "0")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Scoring.PassThreshold)

	t.Setenv("MIN_QA_SCORE", "")
	cfg, err = LoadFile(writeYAML(t, "scoring:\n  pass_threshold: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Scoring.PassThreshold)
}

func TestUseMockLLM(t *testing.T) {
	clearEnv(t)
	t.Setenv("USE_MOCK_LLM", "true")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, cfg.LLM.Provider)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
		want string
	}{
		{name: "gateway needs key", want: "llm.api_key"},
		{name: "anthropic needs key", env: map[string]string{"LLM_PROVIDER": "anthropic"}, want: "llm.anthropic_api_key"},
		{name: "unknown provider", env: map[string]string{"LLM_PROVIDER": "bard"}, want: "llm.provider"},
		{name: "bad float", env: map[string]string{"USE_MOCK_LLM": "true", "MIN_QA_SCORE": "high"}, want: "MIN_QA_SCORE"},
		{name: "threshold range", env: map[string]string{"USE_MOCK_LLM": "true", "MIN_QA_SCORE": "1.5"}, want: "scoring.pass_threshold"},
		{name: "negative weight", env: map[string]string{"USE_MOCK_LLM": "true"}, yaml: "scoring:\n  weights:\n    opening: -0.1\n", want: "scoring.weights"},
		{name: "weights above one", env: map[string]string{"USE_MOCK_LLM": "true"}, yaml: "scoring:\n  weights:\n    opening: 0.5\n    communication: 0.5\n    negotiation: 0.5\n", want: "sum to at most 1"},
		{name: "broken yaml", yaml: "llm: [", want: "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "absent.yaml")
			if tt.yaml != "" {
				path = writeYAML(t, tt.yaml)
			}
			_, err := LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
