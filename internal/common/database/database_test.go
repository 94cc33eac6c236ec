package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"crm-ai-orchestrator/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClient_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedis(config.RedisConfig{Address: mr.Addr(), KeyPrefix: "crm-ai"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.NoError(t, c.Ping(context.Background()))
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "crm-ai:responses:r1", JoinKey("crm-ai", "responses", "r1"))
	assert.Equal(t, "search:abc", JoinKey("", "search", "abc"))
	assert.Equal(t, "crm-ai", JoinKey("crm-ai"))
}

func TestNewRedis_EmptyAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisClient_PingFailsWhenServerGone(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	mr.Close()

	assert.Error(t, c.Ping(context.Background()))
}

func TestElasticsearchClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, err := NewElasticsearch(config.ElasticsearchConfig{URL: server.URL, Index: "crm-entities"})
	require.NoError(t, err)
	assert.Equal(t, "crm-entities", c.Index)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestElasticsearchClient_PingErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{server.URL}})
	require.NoError(t, err)
	assert.Error(t, c.Ping(context.Background()))
}

func newIndexServer(t *testing.T, exists int, createStatus int, created *string) *ElasticsearchClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(exists)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			*created = string(body)
			w.WriteHeader(createStatus)
			if createStatus == http.StatusBadRequest {
				_, _ = w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"},"status":400}`))
				return
			}
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewElasticsearch(config.ElasticsearchConfig{URL: server.URL, Index: "crm-entities"})
	require.NoError(t, err)
	return c
}

func TestElasticsearchClient_EnsureIndex(t *testing.T) {
	t.Run("creates missing index with mapping", func(t *testing.T) {
		var body string
		c := newIndexServer(t, http.StatusNotFound, http.StatusOK, &body)

		created, err := c.EnsureIndex(context.Background())
		require.NoError(t, err)
		assert.True(t, created)
		assert.Contains(t, body, `"type":        {"type": "keyword"}`)
	})

	t.Run("existing index is left alone", func(t *testing.T) {
		var body string
		c := newIndexServer(t, http.StatusOK, http.StatusOK, &body)

		created, err := c.EnsureIndex(context.Background())
		require.NoError(t, err)
		assert.False(t, created)
		assert.Empty(t, body)
	})

	t.Run("lost creation race", func(t *testing.T) {
		var body string
		c := newIndexServer(t, http.StatusNotFound, http.StatusBadRequest, &body)

		created, err := c.EnsureIndex(context.Background())
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("cluster error", func(t *testing.T) {
		var body string
		c := newIndexServer(t, http.StatusInternalServerError, http.StatusOK, &body)

		_, err := c.EnsureIndex(context.Background())
		assert.Error(t, err)
	})
}

func TestNewPostgres_AppliesPoolSettings(t *testing.T) {
	pg, err := NewPostgres(config.PostgresConfig{
		Host: "localhost", Port: 5432, User: "crm", Database: "ai",
		SSLMode: "disable", MaxConnections: 7, MaxIdle: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pg.Close() })

	assert.Equal(t, 7, pg.DB.Stats().MaxOpenConnections)
}
