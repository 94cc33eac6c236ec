package orchestrator

import (
	"testing"

	"crm-ai-orchestrator/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_DefaultRegistry(t *testing.T) {
	reg := registry.Default()

	assert.Equal(t, []string{"market-analyzer-v2", "market-analyzer-lite"}, Route(reg, RequestMarketAnalysis))
	// deal-forecaster-legacy is inactive.
	assert.Equal(t, []string{"deal-predictor"}, Route(reg, RequestDealPrediction))
	assert.Equal(t, []string{"semantic-search"}, Route(reg, RequestSearch))
	assert.Equal(t, []string{"report-writer"}, Route(reg, RequestReportGeneration))
	assert.Empty(t, Route(reg, "unknown_type"))
}

func TestRoute_OrdersByPriorityThenID(t *testing.T) {
	reg, err := registry.New("test", []registry.AIModel{
		{ID: "zeta", Type: registry.ModelTypeGeneration, Priority: 1, IsActive: true},
		{ID: "alpha", Type: registry.ModelTypeGeneration, Priority: 1, IsActive: true},
		{ID: "first", Type: registry.ModelTypeGeneration, Priority: 0, IsActive: true},
		{ID: "off", Type: registry.ModelTypeGeneration, Priority: 0, IsActive: false},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "alpha", "zeta"}, Route(reg, RequestReportGeneration))
	assert.Empty(t, Route(reg, RequestSearch))
}

func TestModelTypeFor(t *testing.T) {
	mt, ok := ModelTypeFor(RequestDealPrediction)
	assert.True(t, ok)
	assert.Equal(t, registry.ModelTypePrediction, mt)

	_, ok = ModelTypeFor("translation")
	assert.False(t, ok)
}
