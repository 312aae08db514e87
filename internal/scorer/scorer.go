// Package scorer ranks unsummarized items and pushes them onto the summarization queue.
package scorer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/telemetry"
)

// RecencyBonus is added when an item carries a publish date.
const RecencyBonus = 5

type weight struct {
	term  string
	score int
}

// sourceWeights is matched by substring against the lowercased source; the first hit wins.
var sourceWeights = []weight{
	{"kompas.com", 20},
	{"detik.com", 20},
	{"tempo.co", 20},
	{"antaranews.com", 18},
	{"bbc.com", 18},
	{"cnbcindonesia.com", 18},
	{"republika.co.id", 15},
	{"katadata.co.id", 15},
	{"theguardian.com", 15},
	{"nytimes.com", 15},
}

// keywordWeights are summed for every term found in the lowercased title.
var keywordWeights = []weight{
	{"pemerintah", 10},
	{"saham", 10},
	{"teknologi", 10},
	{"pemilu", 10},
	{"ekonomi", 8},
	{"kesehatan", 8},
	{"olahraga", 5},
	{"hiburan", 5},
	{"nasional", 8},
	{"internasional", 8},
	{"politik", 10},
	{"bisnis", 8},
	{"pendidikan", 5},
	{"kriminal", 8},
	{"cuaca", 3},
	{"bencana", 8},
	{"corona", 10},
	{"vaksin", 10},
}

// Score is the deterministic priority of an item.
func Score(item news.Item) int {
	score := 0
	source := strings.ToLower(item.Source)
	for _, w := range sourceWeights {
		if strings.Contains(source, w.term) {
			score += w.score
			break
		}
	}
	title := strings.ToLower(item.Title)
	for _, w := range keywordWeights {
		if strings.Contains(title, w.term) {
			score += w.score
		}
	}
	if item.PublishDate != nil {
		score += RecencyBonus
	}
	return score
}

// pageSize bounds each unsummarized-item query.
const pageSize = 500

// Prioritizer scores every unsummarized item and upserts it into the queue.
type Prioritizer struct {
	store  news.Store
	queue  news.Queue
	logger *zap.Logger
}

// NewPrioritizer builds a Prioritizer.
func NewPrioritizer(store news.Store, queue news.Queue, logger *zap.Logger) *Prioritizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prioritizer{store: store, queue: queue, logger: logger}
}

// Prioritize pushes (id, score) for every unsummarized item and returns the
// number pushed. Re-running overwrites scores without duplicating entries.
// A failed push is logged and skipped.
func (p *Prioritizer) Prioritize(ctx context.Context) (int, error) {
	queued := 0
	// Pages are keyed by id so rows summarized mid-run cannot shift later pages.
	cursor := ""
	for {
		items, err := p.store.Select(ctx, news.Filter{Unsummarized: true, ByID: true, AfterID: cursor, Limit: pageSize})
		if err != nil {
			return queued, fmt.Errorf("select unsummarized: %w", err)
		}
		for _, item := range items {
			score := Score(item)
			if err := p.queue.Push(ctx, item.ID, score); err != nil {
				if ctx.Err() != nil {
					return queued, fmt.Errorf("push %s: %w", item.ID, ctx.Err())
				}
				p.logger.Error("queue push failed", zap.String("item_id", item.ID), zap.Error(err))
				continue
			}
			p.logger.Debug("queued item", zap.String("item_id", item.ID), zap.Int("score", score))
			queued++
		}
		if len(items) < pageSize {
			break
		}
		cursor = items[len(items)-1].ID
	}

	telemetry.ObservePrioritized(queued)
	if n, err := p.queue.Len(ctx); err == nil {
		telemetry.ObserveQueueDepth(n)
	}
	p.logger.Info("prioritization completed", zap.Int("queued", queued))
	return queued, nil
}
