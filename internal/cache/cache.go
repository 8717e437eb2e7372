// Package cache implements the tenant-scoped result cache with TTL expiry
// and single-flight de-duplication of identical concurrent queries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mnemo-dev/mnemo/internal/db"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
)

// Store is the consumer interface for the backing store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ComputeFunc runs the full search pipeline on a cache miss.
type ComputeFunc func(ctx context.Context) (*result.Response, error)

// entry is the stored envelope. Tenant and project are re-checked on read so
// a key collision can never leak a response across tenants.
type entry struct {
	TenantID  string          `json:"tenant_id"`
	ProjectID string          `json:"project_id"`
	CreatedAt time.Time       `json:"created_at"`
	TTLSec    int             `json:"ttl_sec"`
	Payload   result.Response `json:"payload"`
}

// Cache wraps the search pipeline with lookup, storage, and single-flight.
// A nil backing store disables caching entirely (the pipeline always runs).
type Cache struct {
	store      Store
	ttl        time.Duration
	window     time.Duration
	prefix     string
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures the cache.
type Option func(*Cache)

// WithClock overrides the time source (test-only).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates the result cache. cacheTotal is a counter vec with label
// "result" ("hit"/"miss"/"bypass"/"shared"), passed explicitly.
func New(
	s Store,
	ttl, window time.Duration,
	prefix string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
	opts ...Option,
) *Cache {
	c := &Cache{
		store:      s,
		ttl:        ttl,
		window:     window,
		prefix:     prefix,
		cacheTotal: cacheTotal,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns a fresh cached response for q, or runs compute exactly
// once per key across concurrent identical requests and stores the outcome.
// The boolean reports a cache hit. Failure semantics:
//   - store read/write errors bypass caching for the request, never fail it;
//   - compute errors propagate and release the in-flight registration, so a
//     crashed computation never blocks later callers;
//   - a caller whose context ends while waiting gets its own context error
//     while the shared computation keeps running for the remaining callers.
func (c *Cache) GetOrCompute(ctx context.Context, q *query.Query, compute ComputeFunc) (*result.Response, bool, error) {
	if c.store == nil || q.BypassCache() {
		resp, err := compute(ctx)
		return resp, false, err
	}

	key := Key(c.prefix, q, c.window, c.now())

	if resp, ok := c.lookup(ctx, key, q); ok {
		c.inc("hit")
		return resp, true, nil
	}
	c.inc("miss")

	// The computation runs on a context detached from the leader's caller
	// so a disconnecting leader does not fail every waiter sharing the
	// flight. The leader's deadline still bounds the work.
	detached := context.WithoutCancel(ctx)
	deadline, hasDeadline := ctx.Deadline()

	ch := c.group.DoChan(key, func() (any, error) {
		cctx := detached
		if hasDeadline {
			var cancel context.CancelFunc
			cctx, cancel = context.WithDeadline(detached, deadline)
			defer cancel()
		}
		resp, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		c.put(cctx, key, q, resp)
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		if res.Shared {
			c.inc("shared")
		}
		resp, ok := res.Val.(*result.Response)
		if !ok {
			return nil, false, fmt.Errorf("unexpected cached value type %T", res.Val)
		}
		return resp, false, nil
	}
}

// lookup fetches and validates a stored entry. Any store failure is treated
// as a miss so an unavailable backing store degrades to direct execution.
func (c *Cache) lookup(ctx context.Context, key string, q *query.Query) (*result.Response, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.inc("bypass")
			c.logger.Warn("Cache lookup failed, bypassing",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Corrupt cache entry dropped", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	// Tenant/project scope re-check and freshness re-check. Redis expiry
	// already enforces the TTL; the checks keep us safe against clock skew
	// and key collisions.
	if e.TenantID != q.TenantID() || e.ProjectID != q.ProjectID() {
		c.logger.Warn("Cache entry tenant mismatch dropped", zap.String("key", key))
		return nil, false
	}
	if c.now().After(e.CreatedAt.Add(time.Duration(e.TTLSec) * time.Second)) {
		return nil, false
	}

	resp := e.Payload
	resp.CacheHit = true
	return &resp, true
}

func (c *Cache) put(ctx context.Context, key string, q *query.Query, resp *result.Response) {
	e := entry{
		TenantID:  q.TenantID(),
		ProjectID: q.ProjectID(),
		CreatedAt: c.now(),
		TTLSec:    int(c.ttl.Seconds()),
		Payload:   *resp,
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.inc("bypass")
		c.logger.Warn("Failed to store cache entry", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) inc(outcome string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(outcome).Inc()
	}
}
