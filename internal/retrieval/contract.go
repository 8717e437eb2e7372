// Package retrieval implements the four strategy executors behind one
// uniform Search contract, plus the parallel runner that fans a query out to
// every enabled strategy under per-strategy timeouts.
package retrieval

import (
	"context"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// Scope identifies the tenant/project partition a backend call operates in.
type Scope struct {
	TenantID  string
	ProjectID string
}

// ScoredDocument is a backend hit before strategy normalization.
type ScoredDocument struct {
	DocumentID string
	Content    string
	Score      float64
}

// Document is a stored record without a score.
type Document struct {
	ID      string
	Content string
}

// Embedder vectorizes query text. Failure counts as vector-strategy failure.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore performs nearest-neighbor lookup. Scores are cosine
// similarities in [-1,1].
type VectorStore interface {
	NearestNeighbors(ctx context.Context, scope Scope, vector []float32, topK int, f query.Filter) ([]ScoredDocument, error)
}

// DocPostings holds one document's term statistics from the keyword index.
type DocPostings struct {
	DocumentID string
	Content    string
	Length     int            // document length in terms
	TermFreq   map[string]int // query-term frequencies in this document
}

// PostingList is the keyword index's answer for a set of query terms.
type PostingList struct {
	Docs      []DocPostings
	DocCount  int            // corpus size
	AvgDocLen float64        // average document length
	DocFreq   map[string]int // per-term document frequency
}

// KeywordIndex exposes term statistics; BM25 scoring happens in the sparse
// executor so the formula and constants stay in one place.
type KeywordIndex interface {
	Postings(ctx context.Context, scope Scope, terms []string, f query.Filter, limit int) (PostingList, error)
}

// NeighborEdge pairs an outgoing edge with the node it reaches.
type NeighborEdge struct {
	Edge domain.Edge
	Node domain.Node
}

// GraphRepository exposes the knowledge graph read surface.
type GraphRepository interface {
	SeedNodes(ctx context.Context, scope Scope, entities []string) ([]domain.Node, error)
	Neighbors(ctx context.Context, scope Scope, nodeID string) ([]NeighborEdge, error)
	LinkedDocuments(ctx context.Context, scope Scope, ids []string) ([]Document, error)
}

// FullTextIndex performs phrase/keyword matching with index-native scores.
type FullTextIndex interface {
	Query(ctx context.Context, scope Scope, text string, topK int, f query.Filter) ([]ScoredDocument, error)
}

// Result is one executor's contribution for a query.
type Result struct {
	Candidates []result.Candidate

	// Neighborhood is populated by the graph executor only and feeds
	// context synthesis.
	Neighborhood *domain.Neighborhood
}

// Executor is the uniform strategy contract. Search returns the strategy's
// candidates with normalized scores in [0,1]; a backend error or timeout
// surfaces as an error and excludes the strategy from fusion.
type Executor interface {
	Name() strategy.Strategy
	Search(ctx context.Context, q *query.Query, an analysis.Analysis, limit int) (Result, error)
}

func scopeOf(q *query.Query) Scope {
	return Scope{TenantID: q.TenantID(), ProjectID: q.ProjectID()}
}
