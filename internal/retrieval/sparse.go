package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// Standard BM25 constants.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// SparseExecutor scores keyword matches with BM25 over the index's term
// statistics, then min-max normalizes over the query's result set.
type SparseExecutor struct {
	index KeywordIndex
	norm  ScoreNormalizer
}

// NewSparseExecutor creates the sparse/keyword strategy.
func NewSparseExecutor(index KeywordIndex, opts ...SparseOption) *SparseExecutor {
	e := &SparseExecutor{index: index, norm: MinMax}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SparseOption configures the sparse executor.
type SparseOption func(*SparseExecutor)

// WithSparseNormalizer overrides the score normalization policy.
func WithSparseNormalizer(n ScoreNormalizer) SparseOption {
	return func(e *SparseExecutor) { e.norm = n }
}

// Name implements Executor.
func (e *SparseExecutor) Name() strategy.Strategy { return strategy.Sparse }

// Search implements Executor.
func (e *SparseExecutor) Search(
	ctx context.Context, q *query.Query, _ analysis.Analysis, limit int,
) (Result, error) {
	terms := Tokenize(q.Text())
	if len(terms) == 0 {
		return Result{}, nil
	}

	postings, err := e.index.Postings(ctx, scopeOf(q), terms, q.Filter(), limit)
	if err != nil {
		return Result{}, fmt.Errorf("keyword postings: %w", err)
	}
	if len(postings.Docs) == 0 {
		return Result{}, nil
	}

	candidates := make([]result.Candidate, 0, len(postings.Docs))
	for _, doc := range postings.Docs {
		candidates = append(candidates, result.Candidate{
			Strategy:   strategy.Sparse,
			DocumentID: doc.DocumentID,
			Content:    doc.Content,
			RawScore:   bm25Score(terms, doc, postings),
		})
	}

	// Ranked before truncation so the limit keeps the best raw scores.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RawScore != candidates[j].RawScore {
			return candidates[i].RawScore > candidates[j].RawScore
		}
		return candidates[i].DocumentID < candidates[j].DocumentID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	e.norm(candidates)
	return Result{Candidates: candidates}, nil
}

// bm25Score computes Okapi BM25 for one document:
//
//	score(q,d) = Σ_t IDF(t) · f(t,d)·(k1+1) / (f(t,d) + k1·(1-b+b·|d|/avgdl))
func bm25Score(terms []string, doc DocPostings, pl PostingList) float64 {
	avgdl := pl.AvgDocLen
	if avgdl <= 0 {
		avgdl = 1
	}
	lenNorm := bm25K1 * (1 - bm25B + bm25B*float64(doc.Length)/avgdl)

	var score float64
	for _, t := range terms {
		tf := float64(doc.TermFreq[t])
		if tf == 0 {
			continue
		}
		score += idf(pl.DocCount, pl.DocFreq[t]) * tf * (bm25K1 + 1) / (tf + lenNorm)
	}
	return score
}

// idf is the BM25+ inverse document frequency, always non-negative.
func idf(corpusSize, docFreq int) float64 {
	n := float64(corpusSize)
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// Tokenize lower-cases and splits text on non-alphanumeric runes, dropping
// single-character noise terms.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}
