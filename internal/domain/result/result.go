// Package result defines the candidate and fused result types that flow
// from strategy executors through fusion to the response.
package result

import (
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// Candidate is one hit from one strategy executor. Discarded after fusion.
type Candidate struct {
	Strategy   strategy.Strategy
	DocumentID string
	Content    string
	RawScore   float64
	NormScore  float64 // in [0,1] after the strategy's normalization policy
}

// Fused is one document after score fusion across strategies.
type Fused struct {
	DocumentID  string
	Content     string
	HybridScore float64
	RerankScore float64 // 0 unless the reranker scored this document
	FinalScore  float64 // hybrid, or rerank blend when reranked
	Rank        int     // 1-based, assigned after the final sort
	Breakdown   map[strategy.Strategy]float64
}

// Timings records per-stage latency in milliseconds.
type Timings struct {
	AnalysisMS int64 `json:"analysis"`
	SearchMS   int64 `json:"search"`
	FusionMS   int64 `json:"fusion"`
	RerankMS   int64 `json:"rerank"`
	TotalMS    int64 `json:"total"`
}

// Response is the complete outcome of one search request. It is the unit
// stored in the result cache, so every field must survive JSON round-trips.
type Response struct {
	Results            []Fused
	SynthesizedContext string
	Analysis           analysis.Analysis
	AppliedWeights     map[string]float64
	StrategyCounts     map[strategy.Strategy]int
	CacheHit           bool
	Reranked           bool
	Timings            Timings
}
