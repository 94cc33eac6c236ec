package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "crm-ai-orchestrator/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// EntityIndex finds CRM records matching a query. types narrows the entity
// kinds; empty means all.
type EntityIndex interface {
	Search(ctx context.Context, query string, types []string, limit int) ([]SearchResult, error)
}

// ElasticIndex searches an Elasticsearch index whose documents carry type,
// title, description and url fields.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticIndex(client *elasticsearch.Client, index string) *ElasticIndex {
	return &ElasticIndex{client: client, index: index}
}

type entityDoc struct {
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	URL         string            `json:"url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type searchResponse struct {
	Hits struct {
		MaxScore float64 `json:"max_score"`
		Hits     []struct {
			ID     string    `json:"_id"`
			Score  float64   `json:"_score"`
			Source entityDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildEntityQuery(query string, types []string) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  query,
					"fields": []string{"title^3", "description", "id"},
					"type":   "best_fields",
				},
			},
		},
	}
	if len(types) > 0 {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"terms": map[string]interface{}{"type": types}},
		}
	}
	return map[string]interface{}{"query": map[string]interface{}{"bool": boolQuery}}
}

func (e *ElasticIndex) Search(ctx context.Context, query string, types []string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	body, err := json.Marshal(buildEntityQuery(query, types))
	if err != nil {
		return nil, apperrors.NewSearchIndexFailedError(e.index, err)
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  strings.NewReader(string(body)),
		Size:  &limit,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, apperrors.NewSearchIndexFailedError(e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchIndexFailedError(e.index, fmt.Errorf("search failed: %s", res.Status()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, apperrors.NewSearchIndexFailedError(e.index, err)
	}

	out := make([]SearchResult, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		relevance := 0.0
		if r.Hits.MaxScore > 0 {
			relevance = hit.Score / r.Hits.MaxScore
		}
		meta := map[string]string{"source": "index"}
		for k, v := range hit.Source.Metadata {
			meta[k] = v
		}
		out = append(out, SearchResult{
			ID:          hit.ID,
			Type:        hit.Source.Type,
			Title:       hit.Source.Title,
			Description: hit.Source.Description,
			Relevance:   relevance,
			URL:         hit.Source.URL,
			Metadata:    meta,
		})
	}
	return out, nil
}
