// Package openai generates analysis narratives through the OpenAI
// chat-completions API. The client sends a pre-aggregated spending briefing
// and validates the model's JSON reply against the expected schema, retrying
// once on transport failures and once on schema violations.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"finbuddy/internal/analysis"
	"finbuddy/internal/core"
)

var _ analysis.InsightGenerator = (*Client)(nil)

const (
	defaultAPIURL  = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second

	maxTokens   = 800
	temperature = 0.7
)

// ErrMissingAPIKey is returned before any network call when the client has
// no credentials.
var ErrMissingAPIKey = errors.New("openai: missing API key")

// RequestError reports a failed round trip to the API, either a transport
// failure or a non-200 status.
type RequestError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("openai: request failed: %v", e.Err)
	}
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ParseError reports a reply that reached us but did not match the expected
// schema.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("openai: invalid reply: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Config holds client settings. Zero values fall back to defaults, except
// APIKey which is required.
type Config struct {
	APIKey  string
	APIURL  string
	Model   string
	Timeout time.Duration
}

// Client talks to the chat-completions endpoint.
type Client struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.APIURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateInsights asks the model to narrate the given analysis context.
// A reply that fails schema validation triggers one retry with a stricter
// prompt; a failed round trip triggers one retry with the original prompt.
// A missing API key never reaches the network and is never retried.
func (c *Client) GenerateInsights(ctx context.Context, ac core.AnalysisContext) (core.AnalysisResult, error) {
	if c.apiKey == "" {
		return core.AnalysisResult{}, ErrMissingAPIKey
	}

	prompt := buildAnalysisPrompt(ac)
	result, err := c.complete(ctx, prompt)
	if err == nil {
		return result, nil
	}

	var parseErr *ParseError
	var reqErr *RequestError
	switch {
	case errors.As(err, &parseErr):
		slog.WarnContext(ctx, "Model reply failed validation, retrying with schema hint", "error", err)
		return c.complete(ctx, prompt+"\n\n"+strictSchemaHint)
	case errors.As(err, &reqErr):
		slog.WarnContext(ctx, "OpenAI request failed, retrying", "error", err)
		return c.complete(ctx, prompt)
	default:
		return core.AnalysisResult{}, err
	}
}

func (c *Client) complete(ctx context.Context, userPrompt string) (core.AnalysisResult, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return core.AnalysisResult{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return core.AnalysisResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.AnalysisResult{}, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.AnalysisResult{}, &RequestError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return core.AnalysisResult{}, &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return core.AnalysisResult{}, &ParseError{Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if len(cr.Choices) == 0 {
		return core.AnalysisResult{}, &ParseError{Err: errors.New("no choices in reply")}
	}

	var result core.AnalysisResult
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &result); err != nil {
		return core.AnalysisResult{}, &ParseError{Err: fmt.Errorf("decode content: %w", err)}
	}
	if err := result.Validate(); err != nil {
		return core.AnalysisResult{}, &ParseError{Err: err}
	}
	return result, nil
}
