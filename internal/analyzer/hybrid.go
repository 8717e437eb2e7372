package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
)

// LLMAnalyzer is the model-backed classifier the hybrid analyzer tries
// first. Implementations must respect ctx deadlines.
type LLMAnalyzer interface {
	Analyze(ctx context.Context, text string, history []string) (analysis.Analysis, error)
}

// Metric label values for the analyzer source counter.
const (
	sourceLLM       = "llm"
	sourceHeuristic = "heuristic"
	sourceCache     = "cache"
)

// Hybrid chains an LLM classifier with the keyword heuristic and memoizes
// verdicts in an LRU keyed by normalized text. A failed or invalid LLM
// response degrades to the heuristic, never to an error.
type Hybrid struct {
	llm       LLMAnalyzer // nil disables the LLM tier
	heuristic *Heuristic
	cache     *lru.Cache[string, analysis.Analysis]
	total     *prometheus.CounterVec
	logger    *zap.Logger
}

// NewHybrid creates the analyzer chain. cacheSize <= 0 disables memoization.
func NewHybrid(
	llm LLMAnalyzer,
	cacheSize int,
	total *prometheus.CounterVec,
	logger *zap.Logger,
) (*Hybrid, error) {
	h := &Hybrid{
		llm:       llm,
		heuristic: NewHeuristic(),
		total:     total,
		logger:    logger,
	}
	if cacheSize > 0 {
		c, err := lru.New[string, analysis.Analysis](cacheSize)
		if err != nil {
			return nil, err
		}
		h.cache = c
	}
	return h, nil
}

// Analyze returns an intent verdict for text. History, when present, is
// trimmed to the trailing lines the prompt accepts. The returned analysis is
// always valid; errors are reserved for ctx cancellation.
func (h *Hybrid) Analyze(ctx context.Context, text string, history []string) (analysis.Analysis, error) {
	history = historyTail(history)
	key := cacheKey(text, history)

	if h.cache != nil {
		if an, ok := h.cache.Get(key); ok {
			h.record(sourceCache)
			return an, nil
		}
	}

	an, source := h.classify(ctx, text, history)
	if err := ctx.Err(); err != nil {
		return analysis.Fallback(), err
	}

	if h.cache != nil {
		h.cache.Add(key, an)
	}
	h.record(source)
	return an, nil
}

func (h *Hybrid) classify(ctx context.Context, text string, history []string) (analysis.Analysis, string) {
	if h.llm != nil {
		an, err := h.llm.Analyze(ctx, text, history)
		if err == nil && an.Intent.IsValid() && an.Intent != analysis.IntentUnknown {
			return an, sourceLLM
		}
		if err != nil {
			h.logger.Warn("LLM analysis failed, using heuristic",
				zap.Error(err),
			)
		}
	}

	an, _ := h.heuristic.Analyze(ctx, text, history)
	return an, sourceHeuristic
}

func (h *Hybrid) record(source string) {
	if h.total != nil {
		h.total.WithLabelValues(source).Inc()
	}
}

func cacheKey(text string, history []string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text)) + "\x00" + strings.Join(history, "\x00")))
	return hex.EncodeToString(sum[:])
}

func historyTail(history []string) []string {
	if len(history) > query.MaxHistoryLines {
		return history[len(history)-query.MaxHistoryLines:]
	}
	return history
}
