package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm-ai-orchestrator/internal/common/database"
	"crm-ai-orchestrator/internal/common/metrics"
	"crm-ai-orchestrator/internal/common/provider"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ResponseStore keeps responses keyed by request id. Get returns
// ErrResponseNotFound when no live entry exists.
type ResponseStore interface {
	Save(ctx context.Context, resp *AIResponse) error
	Get(ctx context.Context, requestID string) (*AIResponse, error)
}

// StoreParams carries what the store factories may need.
type StoreParams struct {
	Redis      redis.Cmdable
	KeyPrefix  string
	TTL        time.Duration
	MaxEntries int
}

// Stores maps response_store config names to implementations.
var Stores = provider.NewRegistry[ResponseStore, StoreParams]("response_store")

func init() {
	Stores.Register("memory", func(_ context.Context, p StoreParams) (ResponseStore, error) {
		return NewMemoryStore(p.TTL, p.MaxEntries), nil
	})
	Stores.Register("redis", func(_ context.Context, p StoreParams) (ResponseStore, error) {
		if p.Redis == nil {
			return nil, errors.New("redis response store requires a redis client")
		}
		return NewRedisStore(p.Redis, p.KeyPrefix, p.TTL), nil
	})
}

// ==========================
// In-memory store
// ==========================

// MemoryStore is a bounded TTL cache. When full the least recently saved
// entry is evicted; reads do not refresh position.
type MemoryStore struct {
	lru *expirable.LRU[string, *AIResponse]
}

// NewMemoryStore creates a store; ttl <= 0 disables expiry and maxEntries <= 0
// disables the cap.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if maxEntries < 0 {
		maxEntries = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	onEvict := func(string, *AIResponse) { metrics.AIStoredResponses.Dec() }
	return &MemoryStore{lru: expirable.NewLRU[string, *AIResponse](maxEntries, onEvict, ttl)}
}

func (s *MemoryStore) Save(_ context.Context, resp *AIResponse) error {
	s.lru.Add(resp.RequestID, resp)
	metrics.AIStoredResponses.Set(float64(s.lru.Len()))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, requestID string) (*AIResponse, error) {
	resp, ok := s.lru.Peek(requestID)
	if !ok {
		return nil, ErrResponseNotFound
	}
	return resp, nil
}

// Len returns the number of stored entries. Expired entries are swept in the
// background, so the count can lag the TTL slightly.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

// ==========================
// Redis store
// ==========================

// RedisStore keeps each response as a JSON string under <prefix>:responses:<requestId>.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(requestID string) string {
	return database.JoinKey(s.prefix, "responses", requestID)
}

func (s *RedisStore) Save(ctx context.Context, resp *AIResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := s.client.Set(ctx, s.key(resp.RequestID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, requestID string) (*AIResponse, error) {
	val, err := s.client.Get(ctx, s.key(requestID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrResponseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var resp AIResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
