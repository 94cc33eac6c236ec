package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"crm-ai-orchestrator/internal/common/database"
	"crm-ai-orchestrator/internal/common/provider"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// SearchCache holds finished result lists by cache key.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]SearchResult, bool, error)
	Set(ctx context.Context, key string, results []SearchResult) error
}

type CacheParams struct {
	Redis      redis.Cmdable
	KeyPrefix  string
	TTL        time.Duration
	MaxEntries int
}

var Caches = provider.NewRegistry[SearchCache, CacheParams]("search_cache")

func init() {
	Caches.Register("memory", func(_ context.Context, p CacheParams) (SearchCache, error) {
		return NewMemoryCache(p.TTL, p.MaxEntries), nil
	})
	Caches.Register("redis", func(_ context.Context, p CacheParams) (SearchCache, error) {
		if p.Redis == nil {
			return nil, errors.New("redis search cache requires a redis client")
		}
		return NewRedisCache(p.Redis, p.KeyPrefix, p.TTL), nil
	})
}

// cacheKey is the query followed by the JSON encoding of filters. Map keys
// are encoded sorted, so equal filters give equal keys.
func cacheKey(query string, filters map[string]interface{}) (string, error) {
	if len(filters) == 0 {
		return query, nil
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("encode filters: %w", err)
	}
	return query + string(data), nil
}

// ==========================
// In-memory cache
// ==========================

// MemoryCache is a TTL cache capped at maxEntries, evicting the oldest write.
// Result slices are copied on the way in and out so callers cannot alter
// cached entries.
type MemoryCache struct {
	lru *expirable.LRU[string, []SearchResult]
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []SearchResult](maxEntries, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]SearchResult, bool, error) {
	results, ok := c.lru.Peek(key)
	if !ok {
		return nil, false, nil
	}
	return cloneResults(results), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, results []SearchResult) error {
	c.lru.Add(key, cloneResults(results))
	return nil
}

func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

func cloneResults(results []SearchResult) []SearchResult {
	if results == nil {
		return nil
	}
	out := append(make([]SearchResult, 0, len(results)), results...)
	for i := range out {
		out[i].Metadata = maps.Clone(out[i].Metadata)
	}
	return out
}

// ==========================
// Redis cache
// ==========================

// RedisCache stores JSON result lists under <prefix>:search:<sha256(key)>.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(key string) string {
	sum := sha256.Sum256([]byte(key))
	return database.JoinKey(c.prefix, "search", hex.EncodeToString(sum[:]))
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]SearchResult, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var results []SearchResult
	if err := json.Unmarshal([]byte(val), &results); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	return results, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, results []SearchResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}
