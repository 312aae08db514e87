// Package extract pulls readable article text out of a fetched page.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// Limits applied to extracted text.
const (
	MaxParagraphs = 10
	MaxChars      = 2000
)

// containerSelectors are tried in order; the first match holding at least one
// paragraph supplies the text.
var containerSelectors = []string{
	"article",
	".article-body",
	".post-content",
	".entry-content",
	".content",
	"main",
	".main-content",
}

// Extractor fetches article pages and returns their leading paragraphs.
type Extractor struct {
	pages   news.PageFetcher
	timeout time.Duration
}

var _ news.Extractor = (*Extractor)(nil)

// New constructs an Extractor. timeout bounds each page fetch; zero means 15s.
func New(pages news.PageFetcher, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Extractor{pages: pages, timeout: timeout}
}

// Extract returns up to MaxParagraphs paragraphs of rawURL joined by spaces
// and capped at MaxChars. Pages without text yield news.ErrNoContent and
// permanent client errors yield news.ErrPageGone.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	page, err := e.pages.Fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	if !page.OK() {
		if gone(page.StatusCode) {
			return "", fmt.Errorf("fetch article %s: status %d: %w", rawURL, page.StatusCode, news.ErrPageGone)
		}
		return "", fmt.Errorf("fetch article %s: status %d", rawURL, page.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}
	text := Text(doc)
	if text == "" {
		return "", fmt.Errorf("extract %s: %w", rawURL, news.ErrNoContent)
	}
	return text, nil
}

// Text applies the container heuristic to doc.
func Text(doc *goquery.Document) string {
	paragraphs := doc.Find("p")
	for _, sel := range containerSelectors {
		if ps := doc.Find(sel).First().Find("p"); ps.Length() > 0 {
			paragraphs = ps
			break
		}
	}

	parts := make([]string, 0, MaxParagraphs)
	paragraphs.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= MaxParagraphs {
			return false
		}
		if text := news.CleanText(s.Text()); text != "" {
			parts = append(parts, text)
		}
		return true
	})
	return news.Truncate(strings.Join(parts, " "), MaxChars)
}

func gone(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
