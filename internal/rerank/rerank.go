// Package rerank re-orders fused results by LLM relevance. Re-ranking is an
// enhancement layer: every failure path returns the fused order unchanged.
package rerank

import (
	"context"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mnemo-dev/mnemo/internal/domain/result"
)

// Metric label values for the rerank outcome counter.
const (
	statusOK         = "ok"
	statusFailedOpen = "failed_open"
	statusSkipped    = "skipped"
)

// Scorer returns one relevance score in [0,1] per document, indexed like
// docs. A negative score means the model did not score that document.
type Scorer interface {
	Score(ctx context.Context, queryText string, docs []string) ([]float64, error)
}

// Blender applies scorer verdicts to the top fused results and blends them
// with the hybrid score.
type Blender struct {
	scorer Scorer
	topN   int
	blend  float64 // rerank share of the final score
	total  *prometheus.CounterVec
	logger *zap.Logger
}

// NewBlender creates the re-ranking stage. A nil scorer disables it.
func NewBlender(scorer Scorer, topN int, blend float64, total *prometheus.CounterVec, logger *zap.Logger) *Blender {
	return &Blender{scorer: scorer, topN: topN, blend: blend, total: total, logger: logger}
}

// Rerank scores the top-N fused results and re-sorts by the blended final
// score. Returns whether re-ranking was applied. On any scorer failure the
// input order is preserved and reranked is false.
func (b *Blender) Rerank(ctx context.Context, queryText string, fused []result.Fused) ([]result.Fused, bool) {
	if b.scorer == nil || len(fused) == 0 {
		b.record(statusSkipped)
		return fused, false
	}

	n := len(fused)
	if b.topN > 0 && b.topN < n {
		n = b.topN
	}

	docs := make([]string, n)
	for i := 0; i < n; i++ {
		docs[i] = fused[i].Content
	}

	scores, err := b.scorer.Score(ctx, queryText, docs)
	if err != nil {
		b.logger.Warn("Rerank failed, keeping fused order", zap.Error(err))
		b.record(statusFailedOpen)
		return fused, false
	}

	for i := 0; i < n; i++ {
		if scores[i] < 0 {
			continue
		}
		fused[i].RerankScore = scores[i]
		fused[i].FinalScore = b.blend*scores[i] + (1-b.blend)*fused[i].HybridScore
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].FinalScore != fused[j].FinalScore {
			return fused[i].FinalScore > fused[j].FinalScore
		}
		return fused[i].DocumentID < fused[j].DocumentID
	})
	for i := range fused {
		fused[i].Rank = i + 1
	}

	b.record(statusOK)
	return fused, true
}

func (b *Blender) record(status string) {
	if b.total != nil {
		b.total.WithLabelValues(status).Inc()
	}
}
