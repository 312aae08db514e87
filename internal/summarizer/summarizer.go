// Package summarizer holds the prompt and response handling shared by the
// summarization providers.
package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// DefaultPrompt asks for a short formal Indonesian summary. {title} and
// {content} are substituted.
const DefaultPrompt = "Ringkas artikel berikut dalam 2-3 kalimat dengan bahasa Indonesia yang baku. " +
	"Judul: {title}. Isi: {content}"

// Placeholder is returned by some models when they had nothing to work with.
const Placeholder = "No content available for summarization"

// Provider defaults.
const (
	GroqEndpoint   = "https://api.groq.com/openai/v1/chat/completions"
	GroqModel      = "gemma2-9b-it"
	OpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	OpenAIModel    = "gpt-3.5-turbo"
	GeminiModel    = "gemini-1.5-flash"
)

// Options configures a provider client.
type Options struct {
	APIKey      string
	Model       string
	Endpoint    string
	Prompt      string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

// RenderPrompt fills template, or DefaultPrompt when empty, with title and content.
func RenderPrompt(template, title, content string) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultPrompt
	}
	return strings.NewReplacer("{title}", title, "{content}", content).Replace(template)
}

// Finish trims a model answer and rejects empty or placeholder text with news.ErrUnusableSummary.
func Finish(raw string) (string, error) {
	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", fmt.Errorf("empty summary: %w", news.ErrUnusableSummary)
	}
	if strings.EqualFold(strings.TrimRight(summary, "."), Placeholder) {
		return "", fmt.Errorf("placeholder summary: %w", news.ErrUnusableSummary)
	}
	return summary, nil
}
