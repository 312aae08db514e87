package api

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/crawl"
	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/worker"
)

const (
	defaultCleanupDays = 30
	maxCleanupDays     = 365
)

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	concurrency, err := intParam(q, "concurrency", crawl.DefaultConcurrency, 1, crawl.MaxConcurrency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.crawler.Run(r.Context(), splitDomains(q.Get("domains")), concurrency)
	if err != nil {
		s.logger.Error("crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "upserted": res.Upserted})
}

func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	res, err := s.crawler.Run(r.Context(), nil, crawl.DefaultConcurrency)
	if err != nil {
		s.logger.Error("triggered crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"message":  fmt.Sprintf("Triggered crawl job, upserted %d items", res.Upserted),
		"upserted": res.Upserted,
	})
}

func (s *Server) cleanup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := intParam(q, "days", defaultCleanupDays, 1, maxCleanupDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	byPublish, err := boolParam(q, "by_publish", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cutoff := news.RetentionCutoff(s.clock.Now(), days)
	deleted, err := s.store.DeleteOlderThan(r.Context(), cutoff, byPublish)
	if err != nil {
		s.logger.Error("cleanup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	s.logger.Info("cleanup completed", zap.Int("deleted", deleted), zap.Int("days", days), zap.Bool("by_publish", byPublish))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "deleted": deleted})
}

func (s *Server) prioritize(w http.ResponseWriter, r *http.Request) {
	queued, err := s.prioritizer.Prioritize(r.Context())
	if err != nil {
		s.logger.Error("prioritize failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "prioritize failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "queued": queued})
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	concurrency, err := intParam(q, "concurrency", worker.DefaultConcurrency, 1, worker.MaxConcurrency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	batch, err := boolParam(q, "batch", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if batch {
		if _, _, err := s.summarizer.RetryFailed(r.Context()); err != nil {
			s.logger.Warn("retry housekeeping failed", zap.Error(err))
		}
	}
	processed, err := s.summarizer.RunOnce(r.Context(), concurrency)
	if err != nil {
		s.logger.Error("summarize failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "summarize failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "processed": processed})
}

func splitDomains(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, d := range strings.Split(raw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
