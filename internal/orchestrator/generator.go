package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"crm-ai-orchestrator/pkg/registry"
)

// ResultGenerator produces the result for a routed request. A real model
// backend plugs in here.
type ResultGenerator interface {
	Generate(ctx context.Context, req AIRequest, model registry.AIModel) (Result, error)
}

// GeneratorFunc adapts a function to ResultGenerator.
type GeneratorFunc func(ctx context.Context, req AIRequest, model registry.AIModel) (Result, error)

func (f GeneratorFunc) Generate(ctx context.Context, req AIRequest, model registry.AIModel) (Result, error) {
	return f(ctx, req, model)
}

// CannedGenerator returns illustrative data for each request type. Apart from
// the search query, the payload does not influence the result.
type CannedGenerator struct {
	now func() time.Time
}

func NewCannedGenerator() *CannedGenerator {
	return &CannedGenerator{now: time.Now}
}

func (g *CannedGenerator) Generate(_ context.Context, req AIRequest, _ registry.AIModel) (Result, error) {
	switch p := req.Data.(type) {
	case MarketAnalysisInput:
		return generateMarketAnalysis(p), nil
	case DealPredictionInput:
		return generateDealPredictions(p), nil
	case SearchInput:
		return generateSearchResults(p), nil
	case ReportInput:
		return generateReport(p, g.now()), nil
	default:
		return nil, fmt.Errorf("no generator for payload %T", req.Data)
	}
}

// between returns a value in [lo, hi) rounded to two decimals.
func between(lo, hi float64) float64 {
	v := lo + rand.Float64()*(hi-lo)
	v = float64(int(v*100)) / 100
	if v >= hi {
		v = lo
	}
	return v
}

func generateMarketAnalysis(p MarketAnalysisInput) MarketAnalysis {
	segment := p.Industry
	if segment == "" {
		segment = "Enterprise software"
	}
	return MarketAnalysis{
		Trends: []Trend{
			{Name: "Cloud migration services", Growth: between(8, 25), Confidence: between(0.7, 0.95)},
			{Name: "AI-assisted sales tooling", Growth: between(15, 40), Confidence: between(0.7, 0.95)},
			{Name: "Managed security", Growth: between(5, 18), Confidence: between(0.7, 0.95)},
		},
		Opportunities: []Opportunity{
			{Title: "Upsell analytics add-on to existing accounts", Segment: segment, Uplift: between(0.05, 0.2)},
			{Title: "Bundle onboarding with annual contracts", Segment: "Mid-market", Uplift: between(0.03, 0.12)},
		},
		Risks: []string{
			"Longer procurement cycles in the public sector",
			"Price pressure from regional competitors",
		},
		Summary: fmt.Sprintf("%s demand remains strong; AI tooling shows the fastest growth.", segment),
	}
}

var cannedDeals = []struct{ id, name string }{
	{"DEAL-1001", "Acme Corp ERP rollout"},
	{"DEAL-1002", "Globex support renewal"},
	{"DEAL-1003", "Initech data platform"},
}

func generateDealPredictions(p DealPredictionInput) DealPredictions {
	out := DealPredictions{Predictions: make([]DealPrediction, 0, len(cannedDeals))}
	for _, d := range cannedDeals {
		prob := between(0.2, 0.95)
		pred := DealPrediction{
			DealID:            d.id,
			DealName:          d.name,
			WinProbability:    prob,
			ExpectedCloseDays: 14 + rand.Intn(76),
			RiskFactors:       []string{"Budget not yet approved"},
			RecommendedActions: []string{
				"Schedule an executive sponsor call",
				"Send a revised quotation with volume pricing",
			},
		}
		if prob < 0.5 {
			pred.RiskFactors = append(pred.RiskFactors, "Competing vendor in final round")
		}
		out.Predictions = append(out.Predictions, pred)
	}
	return out
}

var cannedEntities = []struct{ kind, id, path, label string }{
	{"contact", "CNT-001", "/contacts", "Contact"},
	{"deal", "DEAL-1001", "/deals", "Deal"},
	{"quotation", "QUO-2024-017", "/quotations", "Quotation"},
	{"contract", "CTR-0042", "/contracts", "Contract"},
	{"invoice", "INV-8812", "/invoices", "Invoice"},
	{"requirement", "REQ-311", "/requirements", "Requirement"},
}

func generateSearchResults(p SearchInput) SearchResults {
	query := strings.TrimSpace(p.Query)
	hits := make([]SearchHit, 0, len(cannedEntities))
	for _, e := range cannedEntities {
		hits = append(hits, SearchHit{
			ID:          e.id,
			Type:        e.kind,
			Title:       fmt.Sprintf("%s matching %q", e.label, query),
			Description: fmt.Sprintf("%s %s mentions %q", e.label, e.id, query),
			Relevance:   between(0.6, 0.99),
			URL:         e.path + "/" + e.id,
			Metadata:    map[string]string{"source": "ai"},
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Relevance > hits[j].Relevance })

	return SearchResults{
		Query:   query,
		Results: hits,
		Suggestions: []string{
			query + " this quarter",
			query + " open deals",
		},
	}
}

func generateReport(p ReportInput, now time.Time) Report {
	title := "Quarterly Sales Performance"
	if p.ReportType != "" {
		title = capitalize(p.ReportType) + " report"
	}
	period := p.Period
	if period == "" {
		period = "the current quarter"
	}

	headings := p.Sections
	if len(headings) == 0 {
		headings = []string{"Pipeline", "Revenue", "Outlook"}
	}
	sections := make([]ReportSection, len(headings))
	for i, h := range headings {
		sections[i] = ReportSection{
			Heading: h,
			Body:    fmt.Sprintf("%s for %s improved by %.1f%% against the previous period.", h, period, between(1, 15)),
		}
	}

	return Report{
		Title:       title,
		Summary:     fmt.Sprintf("Performance summary for %s.", period),
		Sections:    sections,
		GeneratedAt: now.UTC(),
	}
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
