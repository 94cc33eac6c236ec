package processairequest

import (
	"encoding/json"

	"crm-ai-orchestrator/internal/common/validation"
	"crm-ai-orchestrator/internal/orchestrator"
)

type Input struct {
	RequestID   string          `json:"aiRequestId"`
	RequestType string          `json:"aiRequestType"`
	Data        json.RawMessage `json:"aiRequestData"`
}

type Output struct {
	RequestID      string              `json:"aiRequestId"`
	ResponseID     string              `json:"aiResponseId,omitempty"`
	ModelID        string              `json:"aiModelId,omitempty"`
	Confidence     float64             `json:"aiConfidence,omitempty"`
	ProcessingTime int64               `json:"aiProcessingTime,omitempty"`
	Result         orchestrator.Result `json:"aiResult,omitempty"`
	Queued         bool                `json:"aiQueued"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["aiRequestType"],
  "properties": {
    "aiRequestId": {"type": "string"},
    "aiRequestType": {"type": "string", "minLength": 1},
    "aiRequestData": {"type": ["object", "null"]}
  }
}`)
