package feed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// candidateSelectors are tried in order on the front page; every match is kept.
var candidateSelectors = []string{
	"a[href][data-article-id]",
	"a[href].headline",
	"a[href].article__link",
	"article a[href]",
	"h2 a[href]",
	"h3 a[href]",
	"a[href][aria-label]",
	"a[href][title]",
}

type candidate struct {
	url  string
	text string
}

func (f *Fetcher) scrapeFrontPage(ctx context.Context, logger *zap.Logger, domain string) ([]news.Item, error) {
	baseURL := "https://" + domain
	page, err := f.pages.Fetch(ctx, baseURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", domain, ctx.Err())
		}
		logger.Warn("front page fetch failed", zap.Error(err))
		return nil, nil
	}
	if !page.OK() {
		logger.Warn("front page unavailable", zap.Int("status", page.StatusCode))
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		logger.Warn("front page parse failed", zap.Error(err))
		return nil, nil
	}

	cands := candidateLinks(doc, baseURL)
	urls := uniqueSameSite(cands, domain, f.cfg.MaxHTMLLinks)
	now := f.clock.Now().UTC()

	items := make([]news.Item, 0, len(urls))
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", domain, err)
		}
		title := f.pageTitle(ctx, u)
		if title == "" {
			title = anchorText(cands, u)
		}
		if title == "" {
			continue
		}
		items = append(items, news.Item{
			Title:       title,
			URL:         u,
			Source:      domain,
			Category:    news.Categorize(nil, title),
			CrawlDate:   now,
			ContentHash: f.hasher.Fingerprint(u, title),
		})
	}
	return items, nil
}

// candidateLinks collects resolved links with their visible text. When no
// selector matches, every anchor on the page is a candidate.
func candidateLinks(doc *goquery.Document, baseURL string) []candidate {
	var out []candidate
	collect := func(sel *goquery.Selection, withAria bool) {
		sel.Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			u, err := news.ResolveURL(baseURL, href)
			if err != nil {
				return
			}
			text := news.CleanText(a.Text())
			if text == "" {
				text = news.CleanText(a.AttrOr("title", ""))
			}
			if text == "" && withAria {
				text = news.CleanText(a.AttrOr("aria-label", ""))
			}
			out = append(out, candidate{url: u, text: text})
		})
	}
	for _, s := range candidateSelectors {
		collect(doc.Find(s), true)
	}
	if len(out) == 0 {
		collect(doc.Find("a[href]"), false)
	}
	return out
}

func uniqueSameSite(cands []candidate, domain string, limit int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, limit)
	for _, c := range cands {
		if len(out) >= limit {
			break
		}
		if seen[c.url] || !news.SameSite(c.url, domain) {
			continue
		}
		seen[c.url] = true
		out = append(out, c.url)
	}
	return out
}

func anchorText(cands []candidate, u string) string {
	for _, c := range cands {
		if c.url == u && c.text != "" {
			return c.text
		}
	}
	return ""
}

// pageTitle fetches u under the candidate timeout and reads og:title, else <title>.
func (f *Fetcher) pageTitle(ctx context.Context, u string) string {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.PageTimeout)
	defer cancel()

	page, err := f.pages.Fetch(ctx, u)
	if err != nil || !page.OK() {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if t := news.CleanText(og); t != "" {
			return t
		}
	}
	return news.CleanText(doc.Find("title").First().Text())
}
