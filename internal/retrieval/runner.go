package retrieval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
)

// Candidate over-fetch factors: strategies return more hits than top_k so
// fusion has overlap to work with.
const (
	vectorFetchFactor  = 3
	defaultFetchFactor = 2
)

// Outcome aggregates the parallel fan-out for one query. Only strategies in
// Completed may contribute to fusion; their weights are renormalized over
// that set.
type Outcome struct {
	Candidates   map[strategy.Strategy][]result.Candidate
	Completed    []strategy.Strategy
	Counts       map[strategy.Strategy]int
	Neighborhood *domain.Neighborhood
}

// Runner executes enabled strategies in parallel under per-strategy
// timeouts. No strategy failure is fatal: a timeout or backend error excludes
// that strategy from the outcome and is recorded in logs and metrics.
type Runner struct {
	executors []Executor
	timeout   time.Duration
	duration  *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	logger    *zap.Logger
}

// NewRunner creates the strategy runner. duration and failures are the
// per-strategy metric vecs, passed explicitly.
func NewRunner(
	executors []Executor,
	timeout time.Duration,
	duration *prometheus.HistogramVec,
	failures *prometheus.CounterVec,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		executors: executors,
		timeout:   timeout,
		duration:  duration,
		failures:  failures,
		logger:    logger,
	}
}

// Run fans the query out to every enabled, positively-weighted strategy and
// joins under ctx's deadline. Partial results of a cancelled strategy are
// discarded wholesale.
func (r *Runner) Run(
	ctx context.Context, q *query.Query, an analysis.Analysis, profile weights.Profile,
) Outcome {
	out := Outcome{
		Candidates: make(map[strategy.Strategy][]result.Candidate, len(r.executors)),
		Counts:     make(map[strategy.Strategy]int, len(r.executors)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, exec := range r.executors {
		exec := exec
		name := exec.Name()
		if !q.Enabled().Enabled(name) || profile.Weight(name) <= 0 {
			continue
		}

		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, r.timeout)
			defer cancel()

			start := time.Now()
			res, err := exec.Search(sctx, q, an, fetchLimit(name, q.TopK()))
			elapsed := time.Since(start)

			if r.duration != nil {
				r.duration.WithLabelValues(name.String()).Observe(elapsed.Seconds())
			}

			if err != nil {
				r.recordFailure(name, q, err, elapsed)
				return nil // strategy failure never fails the query
			}

			mu.Lock()
			out.Candidates[name] = res.Candidates
			out.Completed = append(out.Completed, name)
			out.Counts[name] = len(res.Candidates)
			if res.Neighborhood != nil && !res.Neighborhood.Empty() {
				out.Neighborhood = res.Neighborhood
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // goroutines never return errors; Wait only joins them

	// Canonical order keeps weight renormalization deterministic.
	completed := make([]strategy.Strategy, 0, len(out.Completed))
	for _, s := range strategy.All() {
		if _, ok := out.Candidates[s]; ok {
			completed = append(completed, s)
		}
	}
	out.Completed = completed
	return out
}

func (r *Runner) recordFailure(name strategy.Strategy, q *query.Query, err error, elapsed time.Duration) {
	reason := "backend_error"
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		reason = "timeout"
	}
	if r.failures != nil {
		r.failures.WithLabelValues(name.String(), reason).Inc()
	}
	r.logger.Warn("Strategy excluded from fusion",
		zap.String("strategy", name.String()),
		zap.String("reason", reason),
		zap.String("tenant_id", q.TenantID()),
		zap.Duration("latency", elapsed),
		zap.Error(err),
	)
}

func fetchLimit(name strategy.Strategy, topK int) int {
	if name == strategy.Vector {
		return topK * vectorFetchFactor
	}
	return topK * defaultFetchFactor
}
