package chi

import (
	"fmt"
	"time"

	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
)

// searchRequest is the POST /v1/search body.
type searchRequest struct {
	TenantID      string             `json:"tenant_id"`
	ProjectID     string             `json:"project_id"`
	Query         string             `json:"query"`
	TopK          *int               `json:"top_k,omitempty"`
	Strategies    []string           `json:"strategies,omitempty"`
	GraphDepth    *int               `json:"graph_depth,omitempty"`
	WeightProfile string             `json:"weight_profile,omitempty"`
	Weights       map[string]float64 `json:"weights,omitempty"`
	Filters       *filterDTO         `json:"filters,omitempty"`
	BypassCache   bool               `json:"bypass_cache,omitempty"`
	History       []string           `json:"history,omitempty"`
}

type filterDTO struct {
	Tags          []string   `json:"tags,omitempty"`
	Since         *time.Time `json:"since,omitempty"`
	MinImportance float64    `json:"min_importance,omitempty"`
}

// toParams maps the wire request onto domain query parameters. Weight and
// strategy names are validated here so unknown values fail fast with a clear
// message instead of silently carrying zero weight.
func (r *searchRequest) toParams() (query.Params, error) {
	p := query.Params{
		TenantID:    r.TenantID,
		ProjectID:   r.ProjectID,
		Text:        r.Query,
		ProfileName: r.WeightProfile,
		BypassCache: r.BypassCache,
		History:     r.History,
	}
	if r.TopK != nil {
		p.TopK = *r.TopK
	}
	if r.GraphDepth != nil {
		p.GraphDepth = *r.GraphDepth
	}

	if len(r.Strategies) > 0 {
		enabled := make(strategy.Set, len(r.Strategies))
		for _, name := range r.Strategies {
			s := strategy.Strategy(name)
			if !s.IsValid() {
				return query.Params{}, fmt.Errorf("unknown strategy %q", name)
			}
			enabled[s] = true
		}
		p.Enabled = enabled
	}

	if len(r.Weights) > 0 {
		for name := range r.Weights {
			if !strategy.Strategy(name).IsValid() {
				return query.Params{}, fmt.Errorf("unknown strategy %q in weights", name)
			}
		}
		w, err := weights.New(
			r.Weights[strategy.Vector.String()],
			r.Weights[strategy.Sparse.String()],
			r.Weights[strategy.Graph.String()],
			r.Weights[strategy.Fulltext.String()],
		)
		if err != nil {
			return query.Params{}, err
		}
		p.Weights = &w
	}

	if r.Filters != nil {
		p.Filter = query.Filter{
			Tags:          r.Filters.Tags,
			Since:         r.Filters.Since,
			MinImportance: r.Filters.MinImportance,
		}
	}
	return p, nil
}

// analyzeRequest is the POST /v1/analyze body.
type analyzeRequest struct {
	Query   string   `json:"query"`
	History []string `json:"history,omitempty"`
}

type resultItem struct {
	DocumentID  string             `json:"document_id"`
	Content     string             `json:"content"`
	HybridScore float64            `json:"hybrid_score"`
	RerankScore *float64           `json:"rerank_score,omitempty"`
	FinalScore  float64            `json:"final_score"`
	Rank        int                `json:"rank"`
	Breakdown   map[string]float64 `json:"score_breakdown,omitempty"`
}

type analysisDTO struct {
	Intent           string             `json:"intent"`
	Confidence       float64            `json:"confidence"`
	KeyEntities      []string           `json:"key_entities,omitempty"`
	KeyConcepts      []string           `json:"key_concepts,omitempty"`
	SuggestedWeights map[string]float64 `json:"suggested_weights,omitempty"`
	RequiresGraph    bool               `json:"requires_graph"`
	SuggestedDepth   int                `json:"suggested_depth,omitempty"`
}

type searchResponse struct {
	Results            []resultItem       `json:"results"`
	SynthesizedContext string             `json:"synthesized_context"`
	Analysis           analysisDTO        `json:"analysis"`
	AppliedWeights     map[string]float64 `json:"applied_weights"`
	StrategyCounts     map[string]int     `json:"strategy_counts"`
	CacheHit           bool               `json:"cache_hit"`
	Reranked           bool               `json:"reranked"`
	Timings            result.Timings     `json:"timings_ms"`
}

type profilesResponse struct {
	Profiles map[string]map[string]float64 `json:"profiles"`
	Default  string                        `json:"default"`
}

func searchResponseFromResult(resp *result.Response) searchResponse {
	items := make([]resultItem, len(resp.Results))
	for i, f := range resp.Results {
		items[i] = resultItem{
			DocumentID:  f.DocumentID,
			Content:     f.Content,
			HybridScore: f.HybridScore,
			FinalScore:  f.FinalScore,
			Rank:        f.Rank,
			Breakdown:   breakdownToWire(f.Breakdown),
		}
		if resp.Reranked && f.RerankScore > 0 {
			score := f.RerankScore
			items[i].RerankScore = &score
		}
	}

	counts := make(map[string]int, len(resp.StrategyCounts))
	for s, n := range resp.StrategyCounts {
		counts[s.String()] = n
	}

	return searchResponse{
		Results:            items,
		SynthesizedContext: resp.SynthesizedContext,
		Analysis:           analysisToDTO(resp.Analysis),
		AppliedWeights:     resp.AppliedWeights,
		StrategyCounts:     counts,
		CacheHit:           resp.CacheHit,
		Reranked:           resp.Reranked,
		Timings:            resp.Timings,
	}
}

func analysisToDTO(an analysis.Analysis) analysisDTO {
	dto := analysisDTO{
		Intent:         string(an.Intent),
		Confidence:     an.Confidence,
		KeyEntities:    an.KeyEntities,
		KeyConcepts:    an.KeyConcepts,
		RequiresGraph:  an.RequiresGraph,
		SuggestedDepth: an.SuggestedDepth,
	}
	if an.SuggestedWeights != nil {
		dto.SuggestedWeights = an.SuggestedWeights.Map()
	}
	return dto
}

func breakdownToWire(b map[strategy.Strategy]float64) map[string]float64 {
	if len(b) == 0 {
		return nil
	}
	out := make(map[string]float64, len(b))
	for s, v := range b {
		out[s.String()] = v
	}
	return out
}
