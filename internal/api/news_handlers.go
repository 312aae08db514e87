package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/news"
)

const (
	defaultListLimit = 20
	maxListLimit     = 50
)

type listResponse struct {
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Items  []news.Item `json:"items"`
}

func (s *Server) listNews(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.store.Select(r.Context(), filter)
	if err != nil {
		s.logger.Error("list news failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list news")
		return
	}
	total, err := s.store.Count(r.Context(), filter)
	if err != nil {
		s.logger.Error("count news failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count news")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Items:  items,
	})
}

func (s *Server) getNews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.store.Get(r.Context(), id)
	if errors.Is(err, news.ErrNotFound) {
		writeError(w, http.StatusNotFound, "news not found")
		return
	}
	if err != nil {
		s.logger.Error("get news failed", zap.String("item_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load news")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func parseListFilter(q url.Values) (news.Filter, error) {
	f := news.Filter{
		Query:  strings.TrimSpace(q.Get("q")),
		Source: strings.TrimSpace(q.Get("source")),
	}
	if raw := q.Get("category"); raw != "" {
		c, ok := news.ParseCategory(raw)
		if !ok {
			return news.Filter{}, fmt.Errorf("unknown category %q", raw)
		}
		f.Category = c
	}
	if raw := q.Get("from_date"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			return news.Filter{}, fmt.Errorf("invalid from_date: %w", err)
		}
		f.From = &from
	}
	if raw := q.Get("to_date"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			return news.Filter{}, fmt.Errorf("invalid to_date: %w", err)
		}
		// Plain dates include the whole day.
		if !strings.Contains(raw, "T") {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &to
	}

	limit, err := intParam(q, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		return news.Filter{}, err
	}
	offset, err := intParam(q, "offset", 0, 0, -1)
	if err != nil {
		return news.Filter{}, err
	}
	f.Limit = limit
	f.Offset = offset
	return f, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	return t.UTC(), nil
}

// intParam reads an integer query parameter within [lo, hi]; hi < 0 means unbounded.
func intParam(q url.Values, name string, def, lo, hi int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < lo || (hi >= 0 && n > hi) {
		if hi >= 0 {
			return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
		}
		return 0, fmt.Errorf("%s must be >= %d", name, lo)
	}
	return n, nil
}

func boolParam(q url.Values, name string, def bool) (bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}
