package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/logger"
	"crm-ai-orchestrator/internal/orchestrator"
	"crm-ai-orchestrator/internal/search"
	"crm-ai-orchestrator/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Setup
// ==========================

type testServer struct {
	server *httptest.Server
	orch   *orchestrator.Orchestrator
	search *search.Service
}

func newTestServer(t *testing.T, checks map[string]ReadinessCheck) *testServer {
	t.Helper()
	log := logger.NewTestLogger(t)

	orch, err := orchestrator.New(orchestrator.Config{
		Workers:        1,
		QueueSize:      8,
		PollInterval:   5 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
	}, registry.Default(), orchestrator.NewMemoryStore(time.Minute, 100), log)
	require.NoError(t, err)

	svc := search.NewService(context.Background(), orch, search.NewMemoryCache(time.Minute, 100),
		&search.MemoryHistory{}, search.Config{}, log)

	server := httptest.NewServer(NewRouter(orch, svc, Options{MaxWait: time.Second, Checks: checks}, log))
	t.Cleanup(func() {
		server.Close()
		_ = orch.Close(context.Background())
	})
	return &testServer{server: server, orch: orch, search: svc}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

// ==========================
// AI endpoints
// ==========================

func TestProcessRequest_MarketAnalysis(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodPost, "/v1/ai/requests",
		`{"id":"r1","type":"market_analysis","data":{},"timestamp":"2024-05-01T10:00:00Z"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "r1", body["requestId"])
	assert.Equal(t, "market-analyzer-v2", body["modelId"])

	result := body["result"].(map[string]interface{})
	trends := result["trends"].([]interface{})
	require.NotEmpty(t, trends)
	for _, tr := range trends {
		trend := tr.(map[string]interface{})
		assert.Contains(t, trend, "name")
		assert.Contains(t, trend, "growth")
		assert.Contains(t, trend, "confidence")
	}
}

func TestProcessRequest_ErrorStatuses(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown type", `{"type":"unknown_type"}`, http.StatusUnprocessableEntity, "NO_MODEL_AVAILABLE"},
		{"missing type", `{"id":"x"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"malformed json", `{"type":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"payload shape", `{"type":"deal_prediction","data":{"dealIds":"DEAL-1"}}`, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/v1/ai/requests", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(body))
		})
	}
}

func TestAsyncSubmitThenFetch(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodPost, "/v1/ai/requests:async", `{"id":"async-1","type":"report_generation"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "async-1", body["requestId"])

	resp, body = s.do(t, http.MethodGet, "/v1/ai/responses/async-1?wait=1s", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "report-writer", body["modelId"])

	resp, _ = s.do(t, http.MethodGet, "/v1/ai/responses/async-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetResponse_NotFoundAndBadWait(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodGet, "/v1/ai/responses/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "RESPONSE_NOT_FOUND", errorCode(body))

	resp, _ = s.do(t, http.MethodGet, "/v1/ai/responses/nope?wait=20ms", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/v1/ai/responses/nope?wait=soon", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegistryAndStatusEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodGet, "/v1/ai/models", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.0.0", body["version"])
	assert.Len(t, body["models"], len(registry.Default().Models()))

	resp, body = s.do(t, http.MethodGet, "/v1/ai/pipelines", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["pipelines"])

	resp, body = s.do(t, http.MethodGet, "/v1/ai/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, float64(0), body["queueDepth"])
}

// ==========================
// Search endpoints
// ==========================

func TestSearchEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodPost, "/v1/search", `{"query":"acme"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "acme", body["query"])
	assert.Len(t, body["results"], 6)

	resp, body = s.do(t, http.MethodPost, "/v1/search/contextual", `{"query":"acme","route":"/invoices"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "invoice", results[0].(map[string]interface{})["type"])

	resp, body = s.do(t, http.MethodGet, "/v1/search/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"acme"}, body["history"])

	resp, body = s.do(t, http.MethodGet, "/v1/search/suggestions?q=ac", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"acme"}, body["suggestions"])

	resp, _ = s.do(t, http.MethodDelete, "/v1/search/history", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = s.do(t, http.MethodGet, "/v1/search/history", "")
	assert.Equal(t, []interface{}{}, body["history"])
}

func TestSearch_EmptyQueryIsBadRequest(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, http.MethodPost, "/v1/search", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", errorCode(body))

	resp, _ = s.do(t, http.MethodGet, "/v1/search/suggestions?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ==========================
// Health
// ==========================

func TestHealthAndReady(t *testing.T) {
	healthy := newTestServer(t, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return nil },
	})
	resp, body := healthy.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, _ = healthy.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	degraded := newTestServer(t, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	resp, body = degraded.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "connection refused", body["checks"].(map[string]interface{})["postgres"])
}

// ==========================
// Error mapping
// ==========================

type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) Process(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.AIResponse, error) {
	args := m.Called(ctx, req)
	return nil, args.Error(1)
}

func (m *MockOrchestrator) Submit(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.Ticket, error) {
	args := m.Called(ctx, req)
	return nil, args.Error(1)
}

func (m *MockOrchestrator) Await(ctx context.Context, id string) (*orchestrator.AIResponse, error) {
	return nil, m.Called(ctx, id).Error(1)
}

func (m *MockOrchestrator) Lookup(ctx context.Context, id string) (*orchestrator.AIResponse, error) {
	return nil, m.Called(ctx, id).Error(1)
}

func (m *MockOrchestrator) Registry() *registry.Registry { return registry.Default() }
func (m *MockOrchestrator) State() orchestrator.State    { return orchestrator.StateIdle }
func (m *MockOrchestrator) QueueDepth() int              { return 0 }

func TestWrap_MapsOrchestratorErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"queue full", apperrors.NewQueueFullError(8, orchestrator.ErrQueueFull), http.StatusTooManyRequests},
		{"duplicate", apperrors.NewDuplicateRequestError("r1", orchestrator.ErrDuplicateRequest), http.StatusConflict},
		{"timeout", apperrors.NewRequestTimeoutError("r1", orchestrator.ErrRequestTimeout), http.StatusGatewayTimeout},
		{"handler failed", apperrors.NewHandlerFailedError("r1", orchestrator.ErrHandlerFailed), http.StatusInternalServerError},
		{"closed", apperrors.NewOrchestratorClosedError(orchestrator.ErrClosed), http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := new(MockOrchestrator)
			orch.On("Process", mock.Anything, mock.Anything).Return(nil, tt.err)
			router := NewRouter(orch, nil, Options{}, logger.NewTestLogger(t))

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/ai/requests", strings.NewReader(`{"type":"search"}`))
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}
