package search

import (
	"context"
	"errors"
	"sync"

	"crm-ai-orchestrator/internal/common/provider"

	"github.com/redis/go-redis/v9"
)

const DefaultHistoryKey = "ai_search_history"

// HistoryStore persists the search history, most recent first.
type HistoryStore interface {
	Load(ctx context.Context) ([]string, error)
	// Push moves query to the front and trims the list to limit entries.
	Push(ctx context.Context, query string, limit int) error
	Clear(ctx context.Context) error
}

type HistoryParams struct {
	Redis redis.Cmdable
	Key   string
}

var Histories = provider.NewRegistry[HistoryStore, HistoryParams]("search_history")

func init() {
	Histories.Register("memory", func(_ context.Context, _ HistoryParams) (HistoryStore, error) {
		return &MemoryHistory{}, nil
	})
	Histories.Register("redis", func(_ context.Context, p HistoryParams) (HistoryStore, error) {
		if p.Redis == nil {
			return nil, errors.New("redis search history requires a redis client")
		}
		return NewRedisHistory(p.Redis, p.Key), nil
	})
}

// pushFront returns list with query moved to the front, capped at limit.
func pushFront(list []string, query string, limit int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, query)
	for _, q := range list {
		if q != query {
			out = append(out, q)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MemoryHistory keeps the history for the life of the process.
type MemoryHistory struct {
	mu      sync.Mutex
	queries []string
}

func (h *MemoryHistory) Load(context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.queries...), nil
}

func (h *MemoryHistory) Push(_ context.Context, query string, limit int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = pushFront(h.queries, query, limit)
	return nil
}

func (h *MemoryHistory) Clear(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = nil
	return nil
}

// RedisHistory keeps the history as a Redis list.
type RedisHistory struct {
	client redis.Cmdable
	key    string
}

func NewRedisHistory(client redis.Cmdable, key string) *RedisHistory {
	if key == "" {
		key = DefaultHistoryKey
	}
	return &RedisHistory{client: client, key: key}
}

func (h *RedisHistory) Load(ctx context.Context) ([]string, error) {
	return h.client.LRange(ctx, h.key, 0, -1).Result()
}

func (h *RedisHistory) Push(ctx context.Context, query string, limit int) error {
	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, h.key, 0, query)
		pipe.LPush(ctx, h.key, query)
		if limit > 0 {
			pipe.LTrim(ctx, h.key, 0, int64(limit-1))
		}
		return nil
	})
	return err
}

func (h *RedisHistory) Clear(ctx context.Context) error {
	return h.client.Del(ctx, h.key).Err()
}
