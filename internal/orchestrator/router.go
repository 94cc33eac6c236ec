package orchestrator

import "crm-ai-orchestrator/pkg/registry"

var requestModelTypes = map[RequestType]registry.ModelType{
	RequestMarketAnalysis:   registry.ModelTypeAnalysis,
	RequestDealPrediction:   registry.ModelTypePrediction,
	RequestSearch:           registry.ModelTypeSearch,
	RequestReportGeneration: registry.ModelTypeGeneration,
}

// ModelTypeFor returns the model type serving request type t.
func ModelTypeFor(t RequestType) (registry.ModelType, bool) {
	mt, ok := requestModelTypes[t]
	return mt, ok
}

// Route returns the ids of active models eligible for t, most preferred first.
// The result is empty for unknown request types or when nothing is active.
func Route(reg *registry.Registry, t RequestType) []string {
	mt, ok := ModelTypeFor(t)
	if !ok {
		return nil
	}
	models := reg.ActiveModels(mt)
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids
}
