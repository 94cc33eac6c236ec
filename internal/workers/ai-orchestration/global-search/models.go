package globalsearch

import (
	"crm-ai-orchestrator/internal/common/validation"
	"crm-ai-orchestrator/internal/search"
)

type Input struct {
	Query   string                 `json:"searchQuery"`
	Filters map[string]interface{} `json:"searchFilters,omitempty"`
	// Route of the page the search was started from, e.g. /deals.
	Route string `json:"searchRoute,omitempty"`
}

type Output struct {
	Query       string                `json:"searchQuery"`
	Results     []search.SearchResult `json:"searchResults"`
	ResultCount int                   `json:"searchResultCount"`
	TopResultID string                `json:"searchTopResultId,omitempty"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["searchQuery"],
  "properties": {
    "searchQuery": {"type": "string"},
    "searchFilters": {"type": ["object", "null"]},
    "searchRoute": {"type": "string"}
  }
}`)
