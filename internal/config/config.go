package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"collection-qa-go/internal/scoring"
)

const (
	ProviderGateway   = "gateway"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// DefaultModel is the model used when none is configured for provider.
func DefaultModel(provider string) string {
	if provider == ProviderAnthropic {
		return "claude-sonnet-4-5"
	}
	return "gpt-3.5-turbo"
}

type Config struct {
	Environment      string        `yaml:"environment"`
	LogLevel         string        `yaml:"log_level"`
	Port             string        `yaml:"port"`
	DataDir          string        `yaml:"data_dir"`
	DBPath           string        `yaml:"db_path"`
	DatasetPath      string        `yaml:"dataset_path"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
	LLM              LLM           `yaml:"llm"`
	Scoring          Scoring       `yaml:"scoring"`
	Transcription    Transcription `yaml:"transcription"`
}

type LLM struct {
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	GatewayURL      string  `yaml:"gateway_url"`
	APIKey          string  `yaml:"api_key"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	MaxRetrySeconds int     `yaml:"max_retry_seconds"`
}

func (l LLM) Timeout() time.Duration      { return time.Duration(l.TimeoutSeconds) * time.Second }
func (l LLM) MaxRetryTime() time.Duration { return time.Duration(l.MaxRetrySeconds) * time.Second }

type Scoring struct {
	Weights       scoring.Weights `yaml:"weights"`
	PassThreshold float64         `yaml:"pass_threshold"`
}

type Transcription struct {
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	Mock                bool   `yaml:"mock"`
}

// Load reads .env, then the YAML file named by CONFIG_PATH (default
// config.yaml, optional), then environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := "config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		path = p
	}
	return LoadFile(path)
}

// LoadFile is Load without the .env step. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	// NaN marks the threshold as unset so an explicit 0 survives defaults
	cfg := Config{Scoring: Scoring{PassThreshold: math.NaN()}}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.Environment, "ENVIRONMENT")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.Port, "PORT")
	envOverride(&cfg.DataDir, "DATA_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.DatasetPath, "DATASET_PATH")
	envOverride(&cfg.LLM.Provider, "LLM_PROVIDER")
	envOverride(&cfg.LLM.Model, "MODEL_NAME")
	envOverride(&cfg.LLM.Model, "LLM_MODEL")
	envOverride(&cfg.LLM.GatewayURL, "LLM_GATEWAY_URL")
	envOverride(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	envOverride(&cfg.LLM.APIKey, "LLM_API_KEY")
	envOverride(&cfg.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.Transcription.BaseURL, "TRANSCRIPTION_URL")
	envOverride(&cfg.Transcription.APIKey, "TRANSCRIPTION_API_KEY")

	for _, o := range []struct {
		key string
		fn  func(string) error
	}{
		{"TEMPERATURE", floatInto(&cfg.LLM.Temperature)},
		{"MIN_QA_SCORE", floatInto(&cfg.Scoring.PassThreshold)},
		{"LLM_TIMEOUT_SECONDS", intInto(&cfg.LLM.TimeoutSeconds)},
		{"LLM_MAX_RETRY_SECONDS", intInto(&cfg.LLM.MaxRetrySeconds)},
		{"BATCH_CONCURRENCY", intInto(&cfg.BatchConcurrency)},
		{"TRANSCRIPTION_POLL_SECONDS", intInto(&cfg.Transcription.PollIntervalSeconds)},
		{"TRANSCRIPTION_TIMEOUT_SECONDS", intInto(&cfg.Transcription.TimeoutSeconds)},
		{"USE_MOCK_TRANSCRIPT", boolInto(&cfg.Transcription.Mock)},
	} {
		v := os.Getenv(o.key)
		if v == "" {
			continue
		}
		if err := o.fn(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", o.key, v, err)
		}
	}
	if os.Getenv("USE_MOCK_LLM") == "true" {
		cfg.LLM.Provider = ProviderMock
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "analysis.db")
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = 4
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderGateway
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel(cfg.LLM.Provider)
	}
	if cfg.LLM.GatewayURL == "" {
		cfg.LLM.GatewayURL = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 25
	}
	if cfg.LLM.MaxRetrySeconds == 0 {
		cfg.LLM.MaxRetrySeconds = 45
	}
	if cfg.Scoring.Weights == (scoring.Weights{}) {
		cfg.Scoring.Weights = scoring.DefaultWeights()
	}
	if math.IsNaN(cfg.Scoring.PassThreshold) {
		cfg.Scoring.PassThreshold = 0.85
	}
	if cfg.Transcription.PollIntervalSeconds == 0 {
		cfg.Transcription.PollIntervalSeconds = 1
	}
	if cfg.Transcription.TimeoutSeconds == 0 {
		cfg.Transcription.TimeoutSeconds = 40
	}
}

// Validate names the offending key on failure.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderMock:
	case ProviderGateway:
		if c.LLM.APIKey == "" {
			return errors.New("llm.api_key is required when llm.provider=gateway")
		}
	case ProviderAnthropic:
		if c.LLM.AnthropicAPIKey == "" {
			return errors.New("llm.anthropic_api_key is required when llm.provider=anthropic")
		}
	default:
		return fmt.Errorf("llm.provider must be one of gateway, anthropic, mock; got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.Scoring.PassThreshold < 0 || c.Scoring.PassThreshold > 1 {
		return fmt.Errorf("scoring.pass_threshold must be within [0, 1], got %v", c.Scoring.PassThreshold)
	}
	w := c.Scoring.Weights
	if w.Opening < 0 || w.Communication < 0 || w.Negotiation < 0 {
		return fmt.Errorf("scoring.weights must be non-negative, got %+v", w)
	}
	if sum := w.Opening + w.Communication + w.Negotiation; sum > 1+1e-9 {
		return fmt.Errorf("scoring.weights must sum to at most 1, got %v", sum)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be >= 1, got %d", c.BatchConcurrency)
	}
	return nil
}

func envOverride(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

func floatInto(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func intInto(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func boolInto(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
