package extractor

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"collection-qa-go/internal/config"
	"collection-qa-go/internal/logger"
)

const anthropicMaxTokens = 4096

// Anthropic extracts through the Messages API. The SDK handles its own
// retries.
type Anthropic struct {
	client      anthropic.Client
	model       string
	temperature float64
	log         *logger.Logger
}

func NewAnthropic(cfg config.LLM, log *logger.Logger, opts ...option.RequestOption) *Anthropic {
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.AnthropicAPIKey)}, opts...)
	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		log:         log.With("component", "llm-anthropic"),
	}
}

func (a *Anthropic) Extract(ctx context.Context, text string, schema Schema, instructions string) ([]byte, error) {
	log := a.log.With("schema", string(schema))
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(a.temperature),
		System: []anthropic.TextBlockParam{
			{Text: instructions},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(text, schema, ""))),
		},
	})
	if err != nil {
		log.WithError(err).Warn("anthropic request failed")
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	for _, block := range message.Content {
		if block.Type != "text" {
			continue
		}
		if js := extractJSON(block.Text); js != "" {
			log.WithField("tokens_out", message.Usage.OutputTokens).Info("extracted schema instance")
			return []byte(js), nil
		}
	}
	return nil, fmt.Errorf("anthropic: no JSON object in response")
}
