// Package gemini summarizes with Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/summarizer"
)

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements news.Summarizer on a Gemini model.
type Client struct {
	client *genai.Client
	model  generator
	opts   summarizer.Options
}

var _ news.Summarizer = (*Client)(nil)

// New connects to the Gemini API.
func New(ctx context.Context, opts summarizer.Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("summarizer.api_key is required")
	}
	if opts.Model == "" {
		opts.Model = summarizer.GeminiModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(opts.Model)
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	model.SetTemperature(opts.Temperature)
	if opts.TopP > 0 {
		model.SetTopP(opts.TopP)
	}
	return &Client{client: client, model: model, opts: opts}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Summarize generates a summary for the article.
func (c *Client) Summarize(ctx context.Context, title, content string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	prompt := summarizer.RenderPrompt(c.opts.Prompt, title, content)
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return summarizer.Finish(responseText(resp))
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
