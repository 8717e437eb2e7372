// Package search orchestrates the full retrieval pipeline: analysis, weight
// resolution, parallel strategy execution, fusion, re-ranking, and context
// synthesis, all behind the result cache.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
	"github.com/mnemo-dev/mnemo/internal/fusion"
)

// Timeouts groups the per-stage deadlines.
type Timeouts struct {
	Overall  time.Duration
	Analyzer time.Duration
	Rerank   time.Duration
}

// Service is the search orchestrator.
type Service struct {
	analyzer Analyzer
	registry *weights.Registry
	runner   Runner
	cache    ResponseCache
	reranker Reranker // nil disables re-ranking
	synth    Synthesizer
	timeouts Timeouts
	requests *prometheus.CounterVec
	logger   *zap.Logger
}

// New creates the search service.
func New(
	analyzer Analyzer,
	registry *weights.Registry,
	runner Runner,
	respCache ResponseCache,
	reranker Reranker,
	synth Synthesizer,
	timeouts Timeouts,
	requests *prometheus.CounterVec,
	logger *zap.Logger,
) *Service {
	return &Service{
		analyzer: analyzer,
		registry: registry,
		runner:   runner,
		cache:    respCache,
		reranker: reranker,
		synth:    synth,
		timeouts: timeouts,
		requests: requests,
		logger:   logger,
	}
}

// Search runs the pipeline for a validated query, consulting the result
// cache first. Identical concurrent misses share one execution.
func (s *Service) Search(ctx context.Context, q *query.Query) (*result.Response, error) {
	if s.timeouts.Overall > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Overall)
		defer cancel()
	}

	start := time.Now()
	resp, hit, err := s.cache.GetOrCompute(ctx, q, func(cctx context.Context) (*result.Response, error) {
		return s.execute(cctx, q)
	})
	if err != nil {
		s.record("error")
		return nil, err
	}
	if hit {
		resp.Timings.TotalMS = time.Since(start).Milliseconds()
	}

	s.record("success")
	s.logger.Info("Search completed",
		zap.String("tenant_id", q.TenantID()),
		zap.String("intent", string(resp.Analysis.Intent)),
		zap.Int("results", len(resp.Results)),
		zap.Bool("cache_hit", resp.CacheHit),
		zap.Bool("reranked", resp.Reranked),
		zap.Int64("total_ms", resp.Timings.TotalMS),
	)
	return resp, nil
}

// Analyze exposes the query analyzer on its own, for the analyze endpoint.
func (s *Service) Analyze(ctx context.Context, text string, history []string) (analysis.Analysis, error) {
	actx, cancel := s.stageContext(ctx, s.timeouts.Analyzer)
	defer cancel()
	return s.analyzer.Analyze(actx, text, history)
}

// execute is the uncached pipeline: analyze, resolve weights, fan out,
// fuse, rerank, synthesize.
func (s *Service) execute(ctx context.Context, q *query.Query) (*result.Response, error) {
	total := time.Now()
	timings := result.Timings{}

	stage := time.Now()
	an := s.analyze(ctx, q)
	timings.AnalysisMS = time.Since(stage).Milliseconds()

	profile, err := s.resolveWeights(q, an)
	if err != nil {
		return nil, err
	}

	stage = time.Now()
	outcome := s.runner.Run(ctx, q, an, profile)
	timings.SearchMS = time.Since(stage).Milliseconds()

	if len(outcome.Completed) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search cancelled: %w", err)
		}
		return nil, fmt.Errorf("no strategy completed: %w", domain.ErrStrategyUnavailable)
	}

	stage = time.Now()
	fused, applied, err := fusion.Fuse(outcome.Candidates, outcome.Completed, profile, q.TopK())
	if err != nil {
		return nil, fmt.Errorf("fuse results: %w", err)
	}
	timings.FusionMS = time.Since(stage).Milliseconds()

	reranked := false
	if s.reranker != nil {
		stage = time.Now()
		rctx, cancel := s.stageContext(ctx, s.timeouts.Rerank)
		fused, reranked = s.reranker.Rerank(rctx, q.Text(), fused)
		cancel()
		timings.RerankMS = time.Since(stage).Milliseconds()
	}

	synthesized := s.synth.Synthesize(q.Text(), fused, outcome.Neighborhood)
	timings.TotalMS = time.Since(total).Milliseconds()

	return &result.Response{
		Results:            fused,
		SynthesizedContext: synthesized,
		Analysis:           an,
		AppliedWeights:     applied.Map(),
		StrategyCounts:     outcome.Counts,
		Reranked:           reranked,
		Timings:            timings,
	}, nil
}

// analyze never fails the pipeline: an analyzer error yields the fallback
// verdict and the balanced profile downstream.
func (s *Service) analyze(ctx context.Context, q *query.Query) analysis.Analysis {
	actx, cancel := s.stageContext(ctx, s.timeouts.Analyzer)
	defer cancel()

	an, err := s.analyzer.Analyze(actx, q.Text(), q.History())
	if err != nil {
		s.logger.Warn("Query analysis failed",
			zap.String("tenant_id", q.TenantID()),
			zap.Error(err),
		)
		return analysis.Fallback()
	}
	return an
}

// resolveWeights picks the profile for this query. Precedence: explicit
// weights on the request, then a named profile, then the analyzer's
// suggestion, then the preset mapped from the detected intent.
func (s *Service) resolveWeights(q *query.Query, an analysis.Analysis) (weights.Profile, error) {
	if w := q.Weights(); w != nil {
		return w.Normalize(), nil
	}
	if name := q.ProfileName(); name != "" {
		p, err := s.registry.Get(name)
		if err != nil {
			return weights.Profile{}, err
		}
		return p, nil
	}
	if w := an.SuggestedWeights; w != nil {
		return w.Normalize(), nil
	}
	p, err := s.registry.Get(an.Intent.ProfileName())
	if err != nil {
		return s.registry.Default(), nil
	}
	return p, nil
}

func (s *Service) stageContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *Service) record(status string) {
	if s.requests != nil {
		s.requests.WithLabelValues(status).Inc()
	}
}
