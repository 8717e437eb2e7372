package retrieval

import (
	"context"
	"fmt"

	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// VectorExecutor embeds the query and runs nearest-neighbor lookup.
type VectorExecutor struct {
	embedder Embedder
	store    VectorStore
	norm     ScoreNormalizer
}

// NewVectorExecutor creates the vector strategy. Cosine similarities are
// mapped to [0,1] with the fixed affine policy unless overridden.
func NewVectorExecutor(embedder Embedder, store VectorStore, opts ...VectorOption) *VectorExecutor {
	e := &VectorExecutor{embedder: embedder, store: store, norm: AffineCosine}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// VectorOption configures the vector executor.
type VectorOption func(*VectorExecutor)

// WithVectorNormalizer overrides the score normalization policy.
func WithVectorNormalizer(n ScoreNormalizer) VectorOption {
	return func(e *VectorExecutor) { e.norm = n }
}

// Name implements Executor.
func (e *VectorExecutor) Name() strategy.Strategy { return strategy.Vector }

// Search implements Executor.
func (e *VectorExecutor) Search(
	ctx context.Context, q *query.Query, _ analysis.Analysis, limit int,
) (Result, error) {
	vec, err := e.embedder.Embed(ctx, q.Text())
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	docs, err := e.store.NearestNeighbors(ctx, scopeOf(q), vec, limit, q.Filter())
	if err != nil {
		return Result{}, fmt.Errorf("nearest neighbors: %w", err)
	}

	candidates := make([]result.Candidate, 0, len(docs))
	for _, d := range docs {
		candidates = append(candidates, result.Candidate{
			Strategy:   strategy.Vector,
			DocumentID: d.DocumentID,
			Content:    d.Content,
			RawScore:   d.Score,
		})
	}
	e.norm(candidates)
	return Result{Candidates: candidates}, nil
}
