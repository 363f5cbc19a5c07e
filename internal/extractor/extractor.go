// Package extractor asks a language model for structured schema instances.
// The scoring core only sees the Service interface.
package extractor

import (
	"context"
	"fmt"

	"collection-qa-go/internal/config"
	"collection-qa-go/internal/logger"
)

// Schema names the structure an extraction must produce.
type Schema string

const (
	SchemaCallData Schema = "CallData"
	SchemaQAScore  Schema = "QAScore"
)

// Service returns one JSON instance of schema for text. Any error means no
// instance was produced.
type Service interface {
	Extract(ctx context.Context, text string, schema Schema, instructions string) ([]byte, error)
}

// ModelInfo is recorded with each analysis.
type ModelInfo struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model_name"`
	Temperature float64 `json:"temperature"`
}

// New picks the provider named in cfg.
func New(cfg config.LLM, log *logger.Logger) (Service, ModelInfo, error) {
	info := ModelInfo{Provider: cfg.Provider, Model: cfg.Model, Temperature: cfg.Temperature}
	switch cfg.Provider {
	case config.ProviderGateway:
		return NewGateway(cfg, log), info, nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg, log), info, nil
	case config.ProviderMock:
		info.Model = "mock"
		return NewMock(), info, nil
	}
	return nil, info, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
