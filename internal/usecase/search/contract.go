package search

import (
	"context"

	"github.com/mnemo-dev/mnemo/internal/cache"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
	"github.com/mnemo-dev/mnemo/internal/retrieval"
)

// Analyzer classifies query intent. Implementations never fail on model
// errors; they degrade to a heuristic verdict instead.
type Analyzer interface {
	Analyze(ctx context.Context, text string, history []string) (analysis.Analysis, error)
}

// Runner fans the query out to the enabled strategies.
type Runner interface {
	Run(ctx context.Context, q *query.Query, an analysis.Analysis, profile weights.Profile) retrieval.Outcome
}

// ResponseCache wraps the pipeline with lookup, storage, and single-flight.
type ResponseCache interface {
	GetOrCompute(ctx context.Context, q *query.Query, compute cache.ComputeFunc) (*result.Response, bool, error)
}

// Reranker re-orders fused results, failing open on model errors.
type Reranker interface {
	Rerank(ctx context.Context, queryText string, fused []result.Fused) ([]result.Fused, bool)
}

// Synthesizer renders ranked results and graph context as bounded markdown.
type Synthesizer interface {
	Synthesize(queryText string, fused []result.Fused, nb *domain.Neighborhood) string
}
