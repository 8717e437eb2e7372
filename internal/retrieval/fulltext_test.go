package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
)

func TestFulltextSearch(t *testing.T) {
	index := &mockFullText{docs: []ScoredDocument{
		{DocumentID: "doc1", Content: "alpha", Score: 8.0},
		{DocumentID: "doc2", Content: "beta", Score: 4.0},
		{DocumentID: "doc3", Content: "gamma", Score: 2.0},
	}}
	e := NewFulltextExecutor(index)
	q := makeQuery(t, query.Params{})

	res, err := e.Search(context.Background(), q, analysis.Analysis{}, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(res.Candidates))
	}

	// Native relevance scores scaled by the set maximum.
	want := []float64{1.0, 0.5, 0.25}
	for i, c := range res.Candidates {
		if !almostEqual(c.NormScore, want[i]) {
			t.Errorf("candidate %d: norm score = %v, want %v", i, c.NormScore, want[i])
		}
	}
}

func TestFulltextSearch_IndexError(t *testing.T) {
	idxErr := errors.New("text index unavailable")
	e := NewFulltextExecutor(&mockFullText{err: idxErr})
	q := makeQuery(t, query.Params{})

	_, err := e.Search(context.Background(), q, analysis.Analysis{}, 10)
	if !errors.Is(err, idxErr) {
		t.Errorf("expected index error wrapped, got %v", err)
	}
}
