package feed

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// parseFeed converts an RSS, Atom or JSON feed document into items. Entries
// without a link or title, or whose link cannot be resolved, are skipped.
func parseFeed(
	parser *gofeed.Parser,
	body []byte,
	feedURL, domain string,
	now time.Time,
	hasher news.Hasher,
) ([]news.Item, error) {
	parsed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]news.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		title := news.CleanText(entry.Title)
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		if title == "" || link == "" {
			continue
		}
		itemURL, err := news.ResolveURL(feedURL, link)
		if err != nil {
			continue
		}
		items = append(items, news.Item{
			Title:       title,
			URL:         itemURL,
			Source:      domain,
			Category:    news.Categorize(entry.Categories, title),
			PublishDate: publishDate(entry),
			CrawlDate:   now.UTC(),
			ContentHash: hasher.Fingerprint(itemURL, title),
		})
	}
	return items, nil
}

func publishDate(entry *gofeed.Item) *time.Time {
	ts := entry.PublishedParsed
	if ts == nil {
		ts = entry.UpdatedParsed
	}
	if ts == nil {
		return nil
	}
	utc := ts.UTC()
	return &utc
}
