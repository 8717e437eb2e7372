package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// --- Shared mocks ---

type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	return m.vector, m.err
}

type mockVectorStore struct {
	docs []ScoredDocument
	err  error

	gotTopK int
}

func (m *mockVectorStore) NearestNeighbors(
	_ context.Context, _ Scope, _ []float32, topK int, _ query.Filter,
) ([]ScoredDocument, error) {
	m.gotTopK = topK
	return m.docs, m.err
}

type mockKeywordIndex struct {
	postings PostingList
	err      error

	gotTerms []string
}

func (m *mockKeywordIndex) Postings(
	_ context.Context, _ Scope, terms []string, _ query.Filter, _ int,
) (PostingList, error) {
	m.gotTerms = terms
	return m.postings, m.err
}

type mockGraphRepo struct {
	seeds     []domain.Node
	neighbors map[string][]NeighborEdge
	docs      []Document

	seedsErr     error
	neighborsErr error
	docsErr      error

	neighborCalls map[string]int
	gotDocIDs     []string
}

func (m *mockGraphRepo) SeedNodes(_ context.Context, _ Scope, _ []string) ([]domain.Node, error) {
	return m.seeds, m.seedsErr
}

func (m *mockGraphRepo) Neighbors(_ context.Context, _ Scope, nodeID string) ([]NeighborEdge, error) {
	if m.neighborCalls == nil {
		m.neighborCalls = make(map[string]int)
	}
	m.neighborCalls[nodeID]++
	if m.neighborsErr != nil {
		return nil, m.neighborsErr
	}
	return m.neighbors[nodeID], nil
}

func (m *mockGraphRepo) LinkedDocuments(_ context.Context, _ Scope, ids []string) ([]Document, error) {
	m.gotDocIDs = ids
	if m.docsErr != nil {
		return nil, m.docsErr
	}
	if m.docs != nil {
		return m.docs, nil
	}
	docs := make([]Document, len(ids))
	for i, id := range ids {
		docs[i] = Document{ID: id, Content: "content-" + id}
	}
	return docs, nil
}

type mockFullText struct {
	docs []ScoredDocument
	err  error
}

func (m *mockFullText) Query(
	_ context.Context, _ Scope, _ string, _ int, _ query.Filter,
) ([]ScoredDocument, error) {
	return m.docs, m.err
}

// stubExecutor is a canned strategy for runner tests.
type stubExecutor struct {
	name       strategy.Strategy
	candidates []result.Candidate
	nb         *domain.Neighborhood
	err        error
	delay      time.Duration
}

func (s *stubExecutor) Name() strategy.Strategy { return s.name }

func (s *stubExecutor) Search(
	ctx context.Context, _ *query.Query, _ analysis.Analysis, _ int,
) (Result, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Candidates: s.candidates, Neighborhood: s.nb}, nil
}

// --- Helpers ---

func makeQuery(t *testing.T, p query.Params) *query.Query {
	t.Helper()
	if p.TenantID == "" {
		p.TenantID = "t1"
	}
	if p.ProjectID == "" {
		p.ProjectID = "p1"
	}
	if p.Text == "" {
		p.Text = "how does auth relate to payments"
	}
	q, err := query.New(p)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}
