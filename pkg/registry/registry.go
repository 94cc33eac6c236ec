// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrDuplicateModel    = errors.New("duplicate model id")
	ErrDuplicatePipeline = errors.New("duplicate pipeline id")
	ErrUnknownModelType  = errors.New("unknown model type")
	ErrSchemaViolation   = errors.New("registry file violates schema")
	ErrUnknownModelRef   = errors.New("pipeline step references unknown model")
)

// Registry is an immutable view over models and pipelines. It is safe for
// concurrent use because nothing mutates it after construction.
type Registry struct {
	version   string
	models    []AIModel
	byID      map[string]AIModel
	pipelines []Pipeline
}

// New builds a registry, rejecting empty or duplicate ids and unknown model types.
// Pipeline references are not checked here; see Validate.
func New(version string, models []AIModel, pipelines []Pipeline) (*Registry, error) {
	r := &Registry{
		version:   version,
		models:    make([]AIModel, 0, len(models)),
		byID:      make(map[string]AIModel, len(models)),
		pipelines: make([]Pipeline, 0, len(pipelines)),
	}

	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model %q: empty id", m.Name)
		}
		if !m.Type.Valid() {
			return nil, fmt.Errorf("%w: model %s has type %q", ErrUnknownModelType, m.ID, m.Type)
		}
		if _, exists := r.byID[m.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, m.ID)
		}
		r.byID[m.ID] = m
		r.models = append(r.models, m)
	}

	seen := make(map[string]struct{}, len(pipelines))
	for _, p := range pipelines {
		if _, exists := seen[p.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePipeline, p.ID)
		}
		seen[p.ID] = struct{}{}
		steps := make([]PipelineStep, len(p.Steps))
		copy(steps, p.Steps)
		p.Steps = steps
		r.pipelines = append(r.pipelines, p)
	}

	return r, nil
}

// LoadRegistry reads a registry file, validates it against the registry JSON
// schema and builds a Registry from it.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates and decodes registry JSON.
func Parse(data []byte) (*Registry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(fileSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(errs, "; "))
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return New(f.Version, f.Models, f.Pipelines)
}

// Default returns the built-in registry used when no file is configured.
func Default() *Registry {
	r, err := New("1.0.0", defaultModels(), defaultPipelines())
	if err != nil {
		panic(fmt.Sprintf("built-in registry is invalid: %v", err))
	}
	return r
}

func (r *Registry) Version() string { return r.version }

// Models returns every model in declaration order.
func (r *Registry) Models() []AIModel {
	out := make([]AIModel, len(r.models))
	copy(out, r.models)
	return out
}

// Model looks a model up by id.
func (r *Registry) Model(id string) (AIModel, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// ActiveModels returns the active models of type t ordered by ascending
// priority, ties broken by id.
func (r *Registry) ActiveModels(t ModelType) []AIModel {
	var out []AIModel
	for _, m := range r.models {
		if m.IsActive && m.Type == t {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) Pipelines() []Pipeline {
	out := make([]Pipeline, len(r.pipelines))
	copy(out, r.pipelines)
	return out
}

func (r *Registry) Pipeline(id string) (Pipeline, bool) {
	for _, p := range r.pipelines {
		if p.ID == id {
			return p, true
		}
	}
	return Pipeline{}, false
}

// Validate reports every pipeline step whose model id is not registered.
func (r *Registry) Validate() []error {
	var errs []error
	for _, p := range r.pipelines {
		for i, step := range p.Steps {
			if _, ok := r.byID[step.ModelID]; !ok {
				errs = append(errs, fmt.Errorf("%w: pipeline %s step %d (%s) -> %s",
					ErrUnknownModelRef, p.ID, i, step.Action, step.ModelID))
			}
		}
	}
	return errs
}

func defaultModels() []AIModel {
	return []AIModel{
		{ID: "market-analyzer-v2", Name: "Market Analyzer", Type: ModelTypeAnalysis, Endpoint: "/api/ai/market-analysis", Priority: 1, IsActive: true},
		{ID: "market-analyzer-lite", Name: "Market Analyzer Lite", Type: ModelTypeAnalysis, Endpoint: "/api/ai/market-analysis-lite", Priority: 2, IsActive: true},
		{ID: "deal-predictor", Name: "Deal Outcome Predictor", Type: ModelTypePrediction, Endpoint: "/api/ai/deal-prediction", Priority: 1, IsActive: true},
		{ID: "deal-forecaster-legacy", Name: "Legacy Deal Forecaster", Type: ModelTypePrediction, Endpoint: "/api/ai/forecast", Priority: 0, IsActive: false},
		{ID: "semantic-search", Name: "Semantic CRM Search", Type: ModelTypeSearch, Endpoint: "/api/ai/search", Priority: 1, IsActive: true},
		{ID: "report-writer", Name: "Report Generator", Type: ModelTypeGeneration, Endpoint: "/api/ai/report", Priority: 1, IsActive: true},
	}
}

func defaultPipelines() []Pipeline {
	return []Pipeline{
		{
			ID:          "deal-insights",
			Name:        "Deal Insights",
			Description: "Market context, outcome prediction and a written summary for a deal",
			Steps: []PipelineStep{
				{ModelID: "market-analyzer-v2", Action: "analyze"},
				{ModelID: "deal-predictor", Action: "predict"},
				{ModelID: "report-writer", Action: "summarize"},
			},
		},
		{
			ID:          "smart-search",
			Name:        "Smart Search",
			Description: "Semantic search enriched with market signals",
			Steps: []PipelineStep{
				{ModelID: "semantic-search", Action: "search"},
				{ModelID: "market-analyzer-lite", Action: "enrich"},
			},
		},
	}
}
