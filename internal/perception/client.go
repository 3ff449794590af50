// Package perception wraps the LLM provider behind a small structured-output
// interface. Callers hand it a pair of prompts and a destination struct; the
// package owns transport, JSON-mode negotiation, and decode validation.
package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client produces one structured completion per call. Implementations make
// exactly one provider request: a malformed completion is surfaced to the
// caller rather than retried, so the orchestrator can report it as a tool
// failure instead of silently burning tokens.
type Client interface {
	StructuredComplete(ctx context.Context, systemPrompt, userPrompt string, out any) (*Trace, error)
}

// Trace records the observable facts of one completion for turn logging.
type Trace struct {
	Model            string        `json:"model"`
	Temperature      float64       `json:"temperature"`
	Latency          time.Duration `json:"latency"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
}

// Config holds provider connection settings for an OpenAI-compatible API.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns connection defaults for the OpenAI API.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		MaxTokens:   2048,
		Timeout:     60 * time.Second,
	}
}

// OpenAIClient talks to any /chat/completions endpoint that honors the
// OpenAI wire format, with response_format forcing JSON output.
type OpenAIClient struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewOpenAIClient builds a client from config. A nil logger is replaced
// with a no-op logger.
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// validator is implemented by contract structs that can check their own
// enum and shape constraints after decode.
type validator interface {
	Validate() error
}

// StructuredComplete sends one JSON-mode completion request and decodes the
// reply into out. One attempt only: transport failures, non-200 statuses,
// undecodable bodies, and contract violations all return an error.
func (c *OpenAIClient) StructuredComplete(ctx context.Context, systemPrompt, userPrompt string, out any) (*Trace, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	// Space requests out so bursty turns do not trip provider rate limits.
	c.mu.Lock()
	if elapsed := time.Since(c.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:      c.cfg.MaxTokens,
		Temperature:    c.cfg.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("API error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	content := extractJSON(chat.Choices[0].Message.Content)
	if err := decodeStrict(content, out); err != nil {
		return nil, fmt.Errorf("completion did not match expected shape: %w", err)
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("completion failed contract validation: %w", err)
		}
	}

	trace := &Trace{
		Model:            c.cfg.Model,
		Temperature:      c.cfg.Temperature,
		Latency:          time.Since(start),
		PromptTokens:     chat.Usage.PromptTokens,
		CompletionTokens: chat.Usage.CompletionTokens,
	}
	c.logger.Debug("structured completion",
		zap.String("model", trace.Model),
		zap.Duration("latency", trace.Latency),
		zap.Int("prompt_tokens", trace.PromptTokens),
		zap.Int("completion_tokens", trace.CompletionTokens))
	return trace, nil
}

func decodeStrict(content string, out any) error {
	dec := json.NewDecoder(strings.NewReader(content))
	if err := dec.Decode(out); err != nil {
		return err
	}
	// Trailing non-whitespace after the JSON value is a malformed reply.
	if dec.More() {
		return fmt.Errorf("trailing content after JSON value")
	}
	return nil
}

// extractJSON strips markdown code fences some models wrap around JSON-mode
// output despite the response_format instruction.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
