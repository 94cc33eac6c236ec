// Package search implements the global AI search: cached AI-backed searches,
// route-aware contextual search, an optional entity index and a search history.
package search

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"crm-ai-orchestrator/internal/orchestrator"
)

var ErrEmptyQuery = errors.New("search query is empty")

// SearchResult is one entry returned to the search bar.
type SearchResult struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Relevance   float64           `json:"relevance"`
	URL         string            `json:"url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Entity kinds a search can be narrowed to.
const (
	TypeContact     = "contact"
	TypeDeal        = "deal"
	TypeQuotation   = "quotation"
	TypeContract    = "contract"
	TypeInvoice     = "invoice"
	TypeRequirement = "requirement"
)

// FilterTypes is the filters key holding the allowed entity kinds.
const FilterTypes = "types"

var routeTypes = map[string]string{
	"contacts":     TypeContact,
	"deals":        TypeDeal,
	"quotations":   TypeQuotation,
	"contracts":    TypeContract,
	"invoices":     TypeInvoice,
	"requirements": TypeRequirement,
}

// TypesForRoute returns the entity kinds relevant on a page route. Nil means
// all kinds, which is the answer for /dashboard and unknown routes.
func TypesForRoute(route string) []string {
	segment := strings.Trim(strings.ToLower(strings.TrimSpace(route)), "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	if t, ok := routeTypes[segment]; ok {
		return []string{t}
	}
	return nil
}

// typesFromFilters reads filters["types"] as either []string or a decoded
// JSON array.
func typesFromFilters(filters map[string]interface{}) []string {
	switch v := filters[FilterTypes].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func fromHits(hits []orchestrator.SearchHit) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{
			ID:          h.ID,
			Type:        h.Type,
			Title:       h.Title,
			Description: h.Description,
			Relevance:   h.Relevance,
			URL:         h.URL,
			Metadata:    h.Metadata,
		}
	}
	return out
}

func narrow(results []SearchResult, types []string) []SearchResult {
	if len(types) == 0 {
		return results
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	out := results[:0:0]
	for _, r := range results {
		if _, ok := allowed[r.Type]; ok {
			out = append(out, r)
		}
	}
	return out
}

// rank orders by relevance, keeps the best entry per id and applies limit.
func rank(results []SearchResult, limit int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })

	seen := make(map[string]struct{}, len(results))
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func fallbackResults(query string) []SearchResult {
	return []SearchResult{{
		ID:          "fallback",
		Type:        "search",
		Title:       fmt.Sprintf("Search for %q", query),
		Description: "AI search is unavailable right now. Open the full search page for keyword results.",
		Relevance:   0.5,
		URL:         "/search?q=" + url.QueryEscape(query),
		Metadata:    map[string]string{"source": "fallback"},
	}}
}
