package search

import (
	"context"
	"strings"
	"sync"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/logger"
	"crm-ai-orchestrator/internal/common/metrics"
	"crm-ai-orchestrator/internal/orchestrator"
)

// Processor runs one AI request to completion.
type Processor interface {
	Process(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.AIResponse, error)
}

type Config struct {
	HistoryLimit int
	MaxResults   int
}

type ServiceOption func(*Service)

// WithEntityIndex merges index hits into every search.
func WithEntityIndex(idx EntityIndex) ServiceOption {
	return func(s *Service) { s.index = idx }
}

// Service is the global AI search used by the search bar.
type Service struct {
	processor Processor
	cache     SearchCache
	history   HistoryStore
	index     EntityIndex
	cfg       Config
	logger    logger.Logger

	mu     sync.Mutex
	recent []string
}

// NewService loads the persisted history. A history that cannot be read
// starts out empty.
func NewService(ctx context.Context, p Processor, cache SearchCache, history HistoryStore, cfg Config, log logger.Logger, opts ...ServiceOption) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	s := &Service{
		processor: p,
		cache:     cache,
		history:   history,
		cfg:       cfg,
		logger:    log.With(map[string]interface{}{"component": "search"}),
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := history.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load search history", map[string]interface{}{"error": err})
		loaded = nil
	}
	if len(loaded) > cfg.HistoryLimit {
		loaded = loaded[:cfg.HistoryLimit]
	}
	s.recent = loaded
	return s
}

// Search returns results for query. Identical query and filters are answered
// from the cache. An orchestrator failure yields a single fallback result
// which is not cached.
func (s *Service) Search(ctx context.Context, query string, filters map[string]interface{}, searchContext string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewInvalidRequestError("query is required", ErrEmptyQuery)
	}
	defer s.remember(ctx, query)

	key, err := cacheKey(query, filters)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error(), ErrEmptyQuery)
	}

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("search cache read failed", map[string]interface{}{"error": err})
	} else if ok {
		metrics.SearchCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.SearchCacheLookups.WithLabelValues("miss").Inc()

	resp, err := s.processor.Process(ctx, orchestrator.AIRequest{
		Type: orchestrator.RequestSearch,
		Data: orchestrator.SearchInput{Query: query, Filters: filters, Context: searchContext},
	})
	if err != nil {
		return s.fallback(query, err), nil
	}
	found, ok := resp.Result.(orchestrator.SearchResults)
	if !ok {
		return s.fallback(query, apperrors.NewSearchFailedError(query, nil)), nil
	}

	types := typesFromFilters(filters)
	results := narrow(fromHits(found.Results), types)

	if s.index != nil {
		hits, err := s.index.Search(ctx, query, types, s.cfg.MaxResults)
		if err != nil {
			s.logger.Warn("entity index search failed", map[string]interface{}{
				"query": query,
				"error": err,
			})
		} else {
			results = append(results, hits...)
		}
	}
	results = rank(results, s.cfg.MaxResults)

	if err := s.cache.Set(ctx, key, results); err != nil {
		s.logger.Warn("search cache write failed", map[string]interface{}{"error": err})
	}
	return results, nil
}

// ContextualSearch narrows the search to the entity kinds of the page at
// route.
func (s *Service) ContextualSearch(ctx context.Context, query, route string) ([]SearchResult, error) {
	var filters map[string]interface{}
	if types := TypesForRoute(route); len(types) > 0 {
		filters = map[string]interface{}{FilterTypes: types}
	}
	return s.Search(ctx, query, filters, route)
}

// History returns past queries, most recent first.
func (s *Service) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recent...)
}

func (s *Service) ClearHistory(ctx context.Context) {
	s.mu.Lock()
	s.recent = nil
	s.mu.Unlock()

	if err := s.history.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear search history", map[string]interface{}{"error": err})
	}
}

// Suggestions returns history entries starting with prefix, followed by
// entries containing it, at most limit in total. Matching ignores case.
func (s *Service) Suggestions(prefix string, limit int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	history := s.History()
	if limit <= 0 || limit > len(history) {
		limit = len(history)
	}

	var starts, contains []string
	for _, q := range history {
		lower := strings.ToLower(q)
		switch {
		case strings.HasPrefix(lower, prefix):
			starts = append(starts, q)
		case strings.Contains(lower, prefix):
			contains = append(contains, q)
		}
	}
	out := append(starts, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) remember(ctx context.Context, query string) {
	s.mu.Lock()
	s.recent = pushFront(s.recent, query, s.cfg.HistoryLimit)
	s.mu.Unlock()

	if err := s.history.Push(ctx, query, s.cfg.HistoryLimit); err != nil {
		s.logger.Warn("failed to save search history", map[string]interface{}{"error": err})
	}
}

func (s *Service) fallback(query string, err error) []SearchResult {
	metrics.SearchFallbacks.Inc()
	s.logger.Warn("AI search failed, returning fallback result", map[string]interface{}{
		"query": query,
		"error": err,
	})
	return fallbackResults(query)
}
