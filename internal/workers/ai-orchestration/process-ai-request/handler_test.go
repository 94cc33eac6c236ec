package processairequest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"crm-ai-orchestrator/internal/common/config"
	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/logger"
	"crm-ai-orchestrator/internal/orchestrator"
	"crm-ai-orchestrator/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Logger Implementation
// ==========================

type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t, fields: map[string]interface{}{}}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{})  { l.t.Logf("INFO: %s %v %v", msg, l.fields, fields) }
func (l *TestLogger) Warn(msg string, fields map[string]interface{})  { l.t.Logf("WARN: %s %v %v", msg, l.fields, fields) }
func (l *TestLogger) Error(msg string, fields map[string]interface{}) { l.t.Logf("ERROR: %s %v %v", msg, l.fields, fields) }

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{t: l.t, fields: merged}
}

// ==========================
// Mocks and helpers
// ==========================

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.AIResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.AIResponse), args.Error(1)
}

func (m *MockProcessor) Submit(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.Ticket, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.Ticket), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "crm-ai-process",
		ElementId:          "Activity_ProcessAIRequest",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.New(orchestrator.Config{
		Workers:        2,
		QueueSize:      8,
		PollInterval:   5 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
	}, registry.Default(), orchestrator.NewMemoryStore(time.Minute, 100), logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close(context.Background()) })
	return o
}

func errorCode(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok, "error should be StandardError: %v", err)
	return stdErr.Code
}

// ==========================
// Config
// ==========================

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(&config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: true, Timeout: 5000},
	}})
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.WaitForResponse)

	assert.Equal(t, 30*time.Second, LoadConfig(&config.Config{}).Timeout)
}

// ==========================
// Input parsing
// ==========================

func TestParseInput(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second}, new(MockProcessor), NewTestLogger(t))

	tests := []struct {
		name    string
		vars    map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid",
			vars: map[string]interface{}{"aiRequestId": "r1", "aiRequestType": "deal_prediction", "aiRequestData": map[string]interface{}{"dealIds": []string{"DEAL-1"}}},
		},
		{name: "missing type", vars: map[string]interface{}{"aiRequestId": "r1"}, wantErr: true},
		{name: "type is not a string", vars: map[string]interface{}{"aiRequestType": 7}, wantErr: true},
		{name: "empty type", vars: map[string]interface{}{"aiRequestType": ""}, wantErr: true},
		{name: "data is not an object", vars: map[string]interface{}{"aiRequestType": "search", "aiRequestData": "acme"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.vars))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeInvalidRequest, errorCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "r1", input.RequestID)
			assert.Equal(t, "deal_prediction", input.RequestType)
		})
	}
}

// ==========================
// Execute
// ==========================

func TestExecute_MarketAnalysis(t *testing.T) {
	h := NewHandler(&Config{Timeout: 2 * time.Second, WaitForResponse: true}, newOrchestrator(t), NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		RequestID:   "wf-1",
		RequestType: "market_analysis",
		Data:        json.RawMessage(`{"industry":"saas"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "wf-1", out.RequestID)
	assert.Equal(t, "market-analyzer-v2", out.ModelID)
	assert.NotEmpty(t, out.ResponseID)
	assert.False(t, out.Queued)
	assert.GreaterOrEqual(t, out.Confidence, 0.7)
	assert.Less(t, out.Confidence, 1.0)
	assert.IsType(t, orchestrator.MarketAnalysis{}, out.Result)
}

func TestExecute_OutputVariables(t *testing.T) {
	p := new(MockProcessor)
	p.On("Process", mock.Anything, mock.MatchedBy(func(req orchestrator.AIRequest) bool {
		in, ok := req.Data.(orchestrator.ReportInput)
		return ok && req.ID == "wf-2" && in.ReportType == "pipeline"
	})).Return(&orchestrator.AIResponse{
		ID:         "resp-1",
		RequestID:  "wf-2",
		Type:       orchestrator.RequestReportGeneration,
		ModelID:    "report-writer",
		Confidence: 0.8,
		Result:     orchestrator.Report{Title: "Pipeline report"},
	}, nil)

	h := NewHandler(&Config{Timeout: time.Second, WaitForResponse: true}, p, NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{
		RequestID:   "wf-2",
		RequestType: "report_generation",
		Data:        json.RawMessage(`{"reportType":"pipeline"}`),
	})
	require.NoError(t, err)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &vars))

	assert.Equal(t, "resp-1", vars["aiResponseId"])
	assert.Equal(t, "report-writer", vars["aiModelId"])
	assert.Equal(t, "Pipeline report", vars["aiResult"].(map[string]interface{})["title"])
	p.AssertExpectations(t)
}

func TestExecute_UnknownTypeHasNoModel(t *testing.T) {
	h := NewHandler(&Config{Timeout: time.Second, WaitForResponse: true}, newOrchestrator(t), NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{RequestType: "unknown_type"})
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrNoModelAvailable)
	assert.Equal(t, apperrors.ErrCodeNoModelAvailable, errorCode(t, err))

	bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
	assert.Equal(t, "NO_MODEL_AVAILABLE", bpmn.Code)
	assert.Zero(t, bpmn.Retries)
}

func TestExecute_BadPayloadSkipsProcessor(t *testing.T) {
	p := new(MockProcessor)
	h := NewHandler(&Config{Timeout: time.Second, WaitForResponse: true}, p, NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{
		RequestType: "deal_prediction",
		Data:        json.RawMessage(`{"dealIds":"DEAL-1"}`),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, errorCode(t, err))
	p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestExecute_QueueOnly(t *testing.T) {
	p := new(MockProcessor)
	p.On("Submit", mock.Anything, mock.Anything).Return(&orchestrator.Ticket{RequestID: "wf-3"}, nil)

	h := NewHandler(&Config{Timeout: time.Second}, p, NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{RequestID: "wf-3", RequestType: "search"})
	require.NoError(t, err)

	assert.True(t, out.Queued)
	assert.Equal(t, "wf-3", out.RequestID)
	assert.Nil(t, out.Result)
	p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestExecute_QueueFullIsRetryable(t *testing.T) {
	p := new(MockProcessor)
	p.On("Process", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewQueueFullError(8, orchestrator.ErrQueueFull))

	h := NewHandler(&Config{Timeout: time.Second, WaitForResponse: true}, p, NewTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{RequestType: "search"})
	require.Error(t, err)

	bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
	assert.Equal(t, "AI_BUSY", bpmn.Code)
	assert.Equal(t, 2, bpmn.Retries)
}
