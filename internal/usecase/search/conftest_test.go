package search

import (
	"context"
	"testing"

	"github.com/mnemo-dev/mnemo/internal/cache"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
	"github.com/mnemo-dev/mnemo/internal/retrieval"
)

// --- Mocks ---

type mockAnalyzer struct {
	an    analysis.Analysis
	err   error
	calls int
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ string, _ []string) (analysis.Analysis, error) {
	m.calls++
	return m.an, m.err
}

type mockRunner struct {
	outcome    retrieval.Outcome
	gotProfile weights.Profile
	calls      int
}

func (m *mockRunner) Run(
	_ context.Context, _ *query.Query, _ analysis.Analysis, profile weights.Profile,
) retrieval.Outcome {
	m.calls++
	m.gotProfile = profile
	return m.outcome
}

// passthroughCache always misses and always computes.
type passthroughCache struct{}

func (passthroughCache) GetOrCompute(
	ctx context.Context, _ *query.Query, compute cache.ComputeFunc,
) (*result.Response, bool, error) {
	resp, err := compute(ctx)
	return resp, false, err
}

// hitCache returns a canned response without computing.
type hitCache struct {
	resp *result.Response
}

func (h *hitCache) GetOrCompute(
	_ context.Context, _ *query.Query, _ cache.ComputeFunc,
) (*result.Response, bool, error) {
	return h.resp, true, nil
}

type mockReranker struct {
	reranked bool
	calls    int
}

func (m *mockReranker) Rerank(_ context.Context, _ string, fused []result.Fused) ([]result.Fused, bool) {
	m.calls++
	return fused, m.reranked
}

type mockSynth struct {
	out   string
	gotNB *domain.Neighborhood
}

func (m *mockSynth) Synthesize(_ string, _ []result.Fused, nb *domain.Neighborhood) string {
	m.gotNB = nb
	return m.out
}

// --- Helpers ---

func searchQuery(t *testing.T, p query.Params) *query.Query {
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

func completedOutcome() retrieval.Outcome {
	return retrieval.Outcome{
		Candidates: map[strategy.Strategy][]result.Candidate{
			strategy.Vector: {{Strategy: strategy.Vector, DocumentID: "doc1", Content: "alpha", NormScore: 0.9}},
			strategy.Sparse: {{Strategy: strategy.Sparse, DocumentID: "doc2", Content: "beta", NormScore: 0.8}},
		},
		Completed: []strategy.Strategy{strategy.Vector, strategy.Sparse},
		Counts: map[strategy.Strategy]int{
			strategy.Vector: 1,
			strategy.Sparse: 1,
		},
	}
}
