package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"collection-qa-go/internal/config"
	"collection-qa-go/internal/logger"
)

// Gateway talks to an OpenAI-compatible chat completions endpoint.
type Gateway struct {
	url          string
	apiKey       string
	model        string
	temperature  float64
	httpTimeout  time.Duration
	maxRetryTime time.Duration
	client       *http.Client
	log          *logger.Logger
}

func NewGateway(cfg config.LLM, log *logger.Logger) *Gateway {
	return &Gateway{
		url:          cfg.GatewayURL,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		httpTimeout:  cfg.Timeout(),
		maxRetryTime: cfg.MaxRetryTime(),
		client:       &http.Client{Timeout: cfg.Timeout()},
		log:          log.With("component", "llm-gateway"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// Extract retries transport errors, 5xx and unparseable output with
// exponential backoff. 4xx responses are not retried.
func (g *Gateway) Extract(ctx context.Context, text string, schema Schema, instructions string) ([]byte, error) {
	if g.url == "" || g.apiKey == "" {
		return nil, fmt.Errorf("llm gateway not configured")
	}
	data, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: BuildPrompt(text, schema, instructions)}},
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, err
	}
	log := g.log.With("schema", string(schema))
	log.WithField("payload_len", len(data)).Debug("llm request")

	var (
		extracted []byte
		lastErr   error
	)
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, g.httpTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = err
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		log.WithField("http_status", resp.StatusCode).Debug("llm raw:\n" + string(body))

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			lastErr = fmt.Errorf("llm gateway returned %d: %s", resp.StatusCode, truncate(string(body), 200))
			return backoff.Permanent(lastErr)
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("llm gateway returned %d", resp.StatusCode)
			return lastErr
		}

		// choices[0].message.content first, then any JSON object in the body
		if inner := extractContentFromChoices(body); inner != "" && json.Valid([]byte(inner)) {
			extracted = []byte(inner)
			return nil
		}
		if fallback := extractJSON(string(body)); fallback != "" && json.Valid([]byte(fallback)) && !isEnvelope(fallback) {
			extracted = []byte(fallback)
			return nil
		}
		lastErr = fmt.Errorf("no JSON found in LLM output")
		return lastErr
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = g.maxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, fmt.Errorf("llm extract failed: %w", lastErr)
	}

	log.WithField("bytes", len(extracted)).Info("extracted schema instance")
	return extracted, nil
}

// isEnvelope reports whether s is a chat completion wrapper rather than an
// instance.
func isEnvelope(s string) bool {
	var obj map[string]json.RawMessage
	if json.Unmarshal([]byte(s), &obj) != nil {
		return false
	}
	_, ok := obj["choices"]
	return ok
}

// extractContentFromChoices attempts to read openai-style choices[0].message.content JSON
func extractContentFromChoices(body []byte) string {
	var obj struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &obj); err != nil || len(obj.Choices) == 0 {
		return ""
	}
	return extractJSON(obj.Choices[0].Message.Content)
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// It strips common markdown fences first. Braces inside strings are skipped.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
