package retrieval

import (
	"context"
	"fmt"

	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// FulltextExecutor queries the external text index and normalizes its
// native relevance scores by the set maximum.
type FulltextExecutor struct {
	index FullTextIndex
	norm  ScoreNormalizer
}

// NewFulltextExecutor creates the full-text strategy.
func NewFulltextExecutor(index FullTextIndex, opts ...FulltextOption) *FulltextExecutor {
	e := &FulltextExecutor{index: index, norm: MaxRatio}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FulltextOption configures the full-text executor.
type FulltextOption func(*FulltextExecutor)

// WithFulltextNormalizer overrides the score normalization policy.
func WithFulltextNormalizer(n ScoreNormalizer) FulltextOption {
	return func(e *FulltextExecutor) { e.norm = n }
}

// Name implements Executor.
func (e *FulltextExecutor) Name() strategy.Strategy { return strategy.Fulltext }

// Search implements Executor.
func (e *FulltextExecutor) Search(
	ctx context.Context, q *query.Query, _ analysis.Analysis, limit int,
) (Result, error) {
	docs, err := e.index.Query(ctx, scopeOf(q), q.Text(), limit, q.Filter())
	if err != nil {
		return Result{}, fmt.Errorf("fulltext query: %w", err)
	}

	candidates := make([]result.Candidate, 0, len(docs))
	for _, d := range docs {
		candidates = append(candidates, result.Candidate{
			Strategy:   strategy.Fulltext,
			DocumentID: d.DocumentID,
			Content:    d.Content,
			RawScore:   d.Score,
		})
	}
	e.norm(candidates)
	return Result{Candidates: candidates}, nil
}
