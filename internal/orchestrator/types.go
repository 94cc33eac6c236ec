package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"
)

// RequestType selects the payload and result variant of a request.
type RequestType string

const (
	RequestMarketAnalysis   RequestType = "market_analysis"
	RequestDealPrediction   RequestType = "deal_prediction"
	RequestSearch           RequestType = "search"
	RequestReportGeneration RequestType = "report_generation"
)

// Known reports whether t has a payload/result variant.
func (t RequestType) Known() bool {
	switch t {
	case RequestMarketAnalysis, RequestDealPrediction, RequestSearch, RequestReportGeneration:
		return true
	}
	return false
}

// Payload is the request-type specific input. The set of implementations is
// closed: one per RequestType.
type Payload interface {
	RequestType() RequestType
}

type MarketAnalysisInput struct {
	Industry string `json:"industry,omitempty"`
	Region   string `json:"region,omitempty"`
	Period   string `json:"period,omitempty"`
}

type DealPredictionInput struct {
	DealIDs []string `json:"dealIds,omitempty"`
	Stage   string   `json:"stage,omitempty"`
}

type SearchInput struct {
	Query   string                 `json:"query"`
	Filters map[string]interface{} `json:"filters,omitempty"`
	Context string                 `json:"context,omitempty"`
}

type ReportInput struct {
	ReportType string   `json:"reportType,omitempty"`
	Period     string   `json:"period,omitempty"`
	Sections   []string `json:"sections,omitempty"`
}

func (MarketAnalysisInput) RequestType() RequestType { return RequestMarketAnalysis }
func (DealPredictionInput) RequestType() RequestType { return RequestDealPrediction }
func (SearchInput) RequestType() RequestType         { return RequestSearch }
func (ReportInput) RequestType() RequestType         { return RequestReportGeneration }

// Result is the request-type specific output, one implementation per RequestType.
type Result interface {
	RequestType() RequestType
}

type MarketAnalysis struct {
	Trends        []Trend       `json:"trends"`
	Opportunities []Opportunity `json:"opportunities"`
	Risks         []string      `json:"risks"`
	Summary       string        `json:"summary"`
}

type Trend struct {
	Name       string  `json:"name"`
	Growth     float64 `json:"growth"`
	Confidence float64 `json:"confidence"`
}

type Opportunity struct {
	Title   string  `json:"title"`
	Segment string  `json:"segment"`
	Uplift  float64 `json:"estimatedUplift"`
}

type DealPredictions struct {
	Predictions []DealPrediction `json:"predictions"`
}

type DealPrediction struct {
	DealID             string   `json:"dealId"`
	DealName           string   `json:"dealName"`
	WinProbability     float64  `json:"winProbability"`
	ExpectedCloseDays  int      `json:"expectedCloseDays"`
	RiskFactors        []string `json:"riskFactors"`
	RecommendedActions []string `json:"recommendedActions"`
}

type SearchResults struct {
	Query       string      `json:"query"`
	Results     []SearchHit `json:"results"`
	Suggestions []string    `json:"suggestions"`
}

// SearchHit is one canned search match. Type is a CRM entity kind such as
// "contact" or "deal".
type SearchHit struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Relevance   float64           `json:"relevance"`
	URL         string            `json:"url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Report struct {
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	Sections    []ReportSection `json:"sections"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

type ReportSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

func (MarketAnalysis) RequestType() RequestType  { return RequestMarketAnalysis }
func (DealPredictions) RequestType() RequestType { return RequestDealPrediction }
func (SearchResults) RequestType() RequestType   { return RequestSearch }
func (Report) RequestType() RequestType          { return RequestReportGeneration }

// AIRequest is the unit of work submitted to the orchestrator.
type AIRequest struct {
	ID        string
	Type      RequestType
	Data      Payload
	Timestamp time.Time
}

// AIResponse is the outcome of a successfully executed request.
type AIResponse struct {
	ID             string
	RequestID      string
	Type           RequestType
	ModelID        string
	Result         Result
	Confidence     float64
	ProcessingTime int64 // milliseconds
	Timestamp      time.Time
}

type requestWire struct {
	ID        string          `json:"id"`
	Type      RequestType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type responseWire struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"requestId"`
	Type           RequestType     `json:"type"`
	ModelID        string          `json:"modelId"`
	Result         json.RawMessage `json:"result"`
	Confidence     float64         `json:"confidence"`
	ProcessingTime int64           `json:"processingTime"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (r AIRequest) MarshalJSON() ([]byte, error) {
	w := requestWire{ID: r.ID, Type: r.Type, Timestamp: r.Timestamp}
	if r.Data != nil {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return nil, err
		}
		w.Data = data
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes data into the variant named by type. Unknown types
// keep a nil payload so routing can reject them.
func (r *AIRequest) UnmarshalJSON(b []byte) error {
	var w requestWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	r.ID, r.Type, r.Timestamp, r.Data = w.ID, w.Type, w.Timestamp, nil
	if !w.Type.Known() {
		return nil
	}
	p, err := DecodePayload(w.Type, w.Data)
	if err != nil {
		return err
	}
	r.Data = p
	return nil
}

func (r AIResponse) MarshalJSON() ([]byte, error) {
	w := responseWire{
		ID:             r.ID,
		RequestID:      r.RequestID,
		Type:           r.Type,
		ModelID:        r.ModelID,
		Confidence:     r.Confidence,
		ProcessingTime: r.ProcessingTime,
		Timestamp:      r.Timestamp,
	}
	if r.Result != nil {
		data, err := json.Marshal(r.Result)
		if err != nil {
			return nil, err
		}
		w.Result = data
	}
	return json.Marshal(w)
}

func (r *AIResponse) UnmarshalJSON(b []byte) error {
	var w responseWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	res, err := DecodeResult(w.Type, w.Result)
	if err != nil {
		return err
	}
	*r = AIResponse{
		ID:             w.ID,
		RequestID:      w.RequestID,
		Type:           w.Type,
		ModelID:        w.ModelID,
		Result:         res,
		Confidence:     w.Confidence,
		ProcessingTime: w.ProcessingTime,
		Timestamp:      w.Timestamp,
	}
	return nil
}

// DecodePayload decodes raw into the payload variant for t. Empty raw yields
// the zero payload.
func DecodePayload(t RequestType, raw json.RawMessage) (Payload, error) {
	switch t {
	case RequestMarketAnalysis:
		return decodeAs[MarketAnalysisInput](raw)
	case RequestDealPrediction:
		return decodeAs[DealPredictionInput](raw)
	case RequestSearch:
		return decodeAs[SearchInput](raw)
	case RequestReportGeneration:
		return decodeAs[ReportInput](raw)
	default:
		return nil, fmt.Errorf("unknown request type %q", t)
	}
}

// DecodeResult decodes raw into the result variant for t.
func DecodeResult(t RequestType, raw json.RawMessage) (Result, error) {
	switch t {
	case RequestMarketAnalysis:
		return decodeAs[MarketAnalysis](raw)
	case RequestDealPrediction:
		return decodeAs[DealPredictions](raw)
	case RequestSearch:
		return decodeAs[SearchResults](raw)
	case RequestReportGeneration:
		return decodeAs[Report](raw)
	default:
		return nil, fmt.Errorf("unknown request type %q", t)
	}
}

func decodeAs[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}
