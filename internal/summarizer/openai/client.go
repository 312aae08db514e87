// Package openai calls OpenAI-compatible chat completion endpoints (OpenAI, Groq).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/summarizer"
)

// Client implements news.Summarizer over a chat completions endpoint.
type Client struct {
	opts       summarizer.Options
	httpClient *http.Client
}

var _ news.Summarizer = (*Client)(nil)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature"`
	TopP        float32   `json:"top_p,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// New builds a client. Endpoint and model must be set; see NewGroq and NewOpenAI for defaults.
func New(opts summarizer.Options, httpClient *http.Client) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("summarizer.api_key is required")
	}
	if opts.Endpoint == "" || opts.Model == "" {
		return nil, fmt.Errorf("summarizer endpoint and model are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{opts: opts, httpClient: httpClient}, nil
}

// NewGroq fills Groq defaults for empty endpoint and model.
func NewGroq(opts summarizer.Options, httpClient *http.Client) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = summarizer.GroqEndpoint
	}
	if opts.Model == "" {
		opts.Model = summarizer.GroqModel
	}
	return New(opts, httpClient)
}

// NewOpenAI fills OpenAI defaults for empty endpoint and model.
func NewOpenAI(opts summarizer.Options, httpClient *http.Client) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = summarizer.OpenAIEndpoint
	}
	if opts.Model == "" {
		opts.Model = summarizer.OpenAIModel
	}
	return New(opts, httpClient)
}

// Summarize sends the rendered prompt and returns the first choice.
func (c *Client) Summarize(ctx context.Context, title, content string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{
		Model: c.opts.Model,
		Messages: []message{
			{Role: "user", Content: summarizer.RenderPrompt(c.opts.Prompt, title, content)},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call summarizer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("summarizer error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("decode completion: no choices")
	}
	return summarizer.Finish(out.Choices[0].Message.Content)
}
