// Package memory keeps news items in process memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// Store implements news.Store on maps guarded by a RWMutex.
type Store struct {
	mu     sync.RWMutex
	ids    news.IDGenerator
	items  map[string]news.Item
	byHash map[string]string
}

var _ news.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore(ids news.IDGenerator) *Store {
	return &Store{
		ids:    ids,
		items:  make(map[string]news.Item),
		byHash: make(map[string]string),
	}
}

// Upsert inserts item or refreshes the crawl date of the item with the same content hash.
func (s *Store) Upsert(ctx context.Context, item news.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("upsert: %w", err)
	}
	if err := item.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(item)
}

// UpsertBatch upserts every item or none of them.
func (s *Store) UpsertBatch(ctx context.Context, items []news.Item) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("upsert batch: %w", err)
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id, err := s.upsertLocked(item)
		if err != nil {
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) upsertLocked(item news.Item) (string, error) {
	if id, ok := s.byHash[item.ContentHash]; ok {
		existing := s.items[id]
		existing.CrawlDate = item.CrawlDate.UTC()
		s.items[id] = existing
		return id, nil
	}
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("assign id: %w", err)
	}
	item = clone(item)
	item.ID = id
	item.Source = news.BareDomain(item.Source)
	item.CrawlDate = item.CrawlDate.UTC()
	s.items[id] = item
	s.byHash[item.ContentHash] = id
	return id, nil
}

// Get returns the item with id.
func (s *Store) Get(ctx context.Context, id string) (news.Item, error) {
	if err := ctx.Err(); err != nil {
		return news.Item{}, fmt.Errorf("get %s: %w", id, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return news.Item{}, fmt.Errorf("get %s: %w", id, news.ErrNotFound)
	}
	return clone(item), nil
}

// Select lists items matching f ordered by publish date (undated last), then crawl date, newest first.
func (s *Store) Select(ctx context.Context, f news.Filter) ([]news.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	s.mu.RLock()
	matched := s.matchLocked(f)
	s.mu.RUnlock()

	if f.ByID {
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	} else {
		sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	}
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []news.Item{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// Count counts items matching f, ignoring limit and offset.
func (s *Store) Count(ctx context.Context, f news.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matchLocked(f)), nil
}

// Update applies the non-nil fields of p.
func (s *Store) Update(ctx context.Context, id string, p news.Patch) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, news.ErrNotFound)
	}
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Summary != nil {
		summary := *p.Summary
		item.Summary = &summary
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	s.items[id] = item
	return nil
}

// Delete removes id. Deleting a missing item is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
	return nil
}

// DeleteUncategorized removes items without a category.
func (s *Store) DeleteUncategorized(ctx context.Context) (int, error) {
	return s.deleteWhere(ctx, func(it news.Item) bool { return it.Category == "" })
}

// DeleteOlderThan removes items crawled, or published when byPublishDate is set, before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time, byPublishDate bool) (int, error) {
	return s.deleteWhere(ctx, func(it news.Item) bool {
		if byPublishDate {
			return it.PublishDate != nil && it.PublishDate.Before(cutoff)
		}
		return it.CrawlDate.Before(cutoff)
	})
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) deleteWhere(ctx context.Context, match func(news.Item) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, it := range s.items {
		if match(it) {
			s.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

func (s *Store) deleteLocked(id string) {
	if item, ok := s.items[id]; ok {
		delete(s.byHash, item.ContentHash)
		delete(s.items, id)
	}
}

func (s *Store) matchLocked(f news.Filter) []news.Item {
	needle := strings.ToLower(strings.TrimSpace(f.Query))
	source := news.BareDomain(f.Source)
	out := make([]news.Item, 0)
	for _, it := range s.items {
		if needle != "" && !containsFold(it, needle) {
			continue
		}
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if source != "" && it.Source != source {
			continue
		}
		if f.From != nil && (it.PublishDate == nil || it.PublishDate.Before(*f.From)) {
			continue
		}
		if f.To != nil && (it.PublishDate == nil || it.PublishDate.After(*f.To)) {
			continue
		}
		if f.Unsummarized && it.Summary != nil {
			continue
		}
		if f.AfterID != "" && it.ID <= f.AfterID {
			continue
		}
		out = append(out, clone(it))
	}
	return out
}

func containsFold(it news.Item, needle string) bool {
	if strings.Contains(strings.ToLower(it.Title), needle) {
		return true
	}
	return it.Summary != nil && strings.Contains(strings.ToLower(*it.Summary), needle)
}

// less orders by publish date desc with undated last, then crawl date desc, then id desc.
func less(a, b news.Item) bool {
	switch {
	case a.PublishDate != nil && b.PublishDate == nil:
		return true
	case a.PublishDate == nil && b.PublishDate != nil:
		return false
	case a.PublishDate != nil && !a.PublishDate.Equal(*b.PublishDate):
		return a.PublishDate.After(*b.PublishDate)
	}
	if !a.CrawlDate.Equal(b.CrawlDate) {
		return a.CrawlDate.After(b.CrawlDate)
	}
	return a.ID > b.ID
}

func clone(it news.Item) news.Item {
	if it.Summary != nil {
		s := *it.Summary
		it.Summary = &s
	}
	if it.PublishDate != nil {
		p := it.PublishDate.UTC()
		it.PublishDate = &p
	}
	return it
}
