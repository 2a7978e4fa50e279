// Package openrouter is the boundary to the OpenRouter aggregation API: chat
// completions through the OpenAI-compatible endpoint and the raw model
// catalog listing.
package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/madlen/chat-backend/internal/observability"
)

const (
	// DefaultTemperature is applied when a turn does not specify one.
	DefaultTemperature = 0.2

	defaultTimeout = 60 * time.Second
)

// Model is a raw model record from the models endpoint, kept close to the
// wire shape the catalog needs.
type Model struct {
	ID            string  `json:"id"`
	Name          string  `json:"name,omitempty"`
	Description   string  `json:"description,omitempty"`
	ContextLength int     `json:"context_length,omitempty"`
	Pricing       Pricing `json:"pricing"`
}

// CompletionRequest carries one completion call. A nil Temperature selects
// DefaultTemperature.
type CompletionRequest struct {
	Model       string
	Messages    []openai.ChatCompletionMessageParamUnion
	Temperature *float64
}

// Options configures the client.
type Options struct {
	APIKey  string
	BaseURL string // e.g. https://openrouter.ai/api/v1
	Referer string // sent as HTTP-Referer
	Title   string // sent as X-Title
	Timeout time.Duration
}

// Client talks to the OpenRouter API.
type Client struct {
	opts       Options
	api        openai.Client
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates an OpenRouter client. A missing API key is not an error
// here; it surfaces as a ConfigurationError on the first call that needs it.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	api := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
		option.WithHeader("HTTP-Referer", opts.Referer),
		option.WithHeader("X-Title", opts.Title),
		option.WithRequestTimeout(opts.Timeout),
	)

	return &Client{
		opts:       opts,
		api:        api,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger.With().Str("component", "openrouter").Logger(),
	}
}

// Complete requests a chat completion for the mapped history.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*openai.ChatCompletion, error) {
	if c.opts.APIKey == "" {
		return nil, &ConfigurationError{Msg: "missing OpenRouter API key; set OPENROUTER_API_KEY"}
	}

	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    req.Messages,
		Temperature: openai.Float(temperature),
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		observability.IncUpstreamCall("complete", "error")
		return nil, &UpstreamError{Op: "complete", Err: err}
	}

	observability.IncUpstreamCall("complete", "ok")
	c.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("Completion received")
	return completion, nil
}

// ListModels fetches the raw model catalog.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	if c.opts.APIKey == "" {
		return nil, &ConfigurationError{Msg: "missing OpenRouter API key; set OPENROUTER_API_KEY"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/models", nil)
	if err != nil {
		return nil, &UpstreamError{Op: "list models", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("HTTP-Referer", c.opts.Referer)
	req.Header.Set("X-Title", c.opts.Title)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.IncUpstreamCall("list_models", "error")
		return nil, &UpstreamError{Op: "list models", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.IncUpstreamCall("list_models", "error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &UpstreamError{
			Op:     "list models",
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected response: %s", body),
		}
	}

	var envelope struct {
		Data []Model `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		observability.IncUpstreamCall("list_models", "error")
		return nil, &UpstreamError{Op: "list models", Err: fmt.Errorf("decode response: %w", err)}
	}

	observability.IncUpstreamCall("list_models", "ok")
	return envelope.Data, nil
}
