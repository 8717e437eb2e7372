package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mnemo-dev/mnemo/internal/db"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
)

// --- Mocks ---

type mockStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error

	gets int
	sets int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

// --- Tests ---

func testResponse() *result.Response {
	return &result.Response{
		Results: []result.Fused{{Rank: 1, DocumentID: "doc1", FinalScore: 0.9}},
	}
}

func cacheQuery(t *testing.T, p query.Params) *query.Query {
	t.Helper()
	if p.TenantID == "" {
		p.TenantID = "t1"
	}
	if p.ProjectID == "" {
		p.ProjectID = "p1"
	}
	if p.Text == "" {
		p.Text = "how does auth work"
	}
	q, err := query.New(p)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}

func newTestCache(s Store, opts ...Option) *Cache {
	return New(s, 5*time.Minute, time.Minute, "test:", nil, zap.NewNop(), opts...)
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	store := newMockStore()
	c := newTestCache(store)
	q := cacheQuery(t, query.Params{})
	computes := 0
	compute := func(context.Context) (*result.Response, error) {
		computes++
		return testResponse(), nil
	}

	resp, hit, err := c.GetOrCompute(context.Background(), q, compute)
	if err != nil {
		t.Fatalf("miss path: %v", err)
	}
	if hit || resp.CacheHit {
		t.Error("first call must be a miss")
	}
	if store.sets != 1 {
		t.Errorf("expected 1 store write, got %d", store.sets)
	}

	resp, hit, err = c.GetOrCompute(context.Background(), q, compute)
	if err != nil {
		t.Fatalf("hit path: %v", err)
	}
	if !hit || !resp.CacheHit {
		t.Error("second call must be a hit")
	}
	if computes != 1 {
		t.Errorf("compute ran %d times, want 1", computes)
	}
	if resp.Results[0].DocumentID != "doc1" {
		t.Errorf("payload lost in round trip: %+v", resp.Results)
	}
}

func TestGetOrCompute_BypassFlag(t *testing.T) {
	store := newMockStore()
	c := newTestCache(store)
	q := cacheQuery(t, query.Params{BypassCache: true})

	_, hit, err := c.GetOrCompute(context.Background(), q, func(context.Context) (*result.Response, error) {
		return testResponse(), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("bypass must never report a hit")
	}
	if store.gets != 0 || store.sets != 0 {
		t.Error("bypass must not touch the store")
	}
}

func TestGetOrCompute_NilStore(t *testing.T) {
	c := newTestCache(nil)
	q := cacheQuery(t, query.Params{})

	resp, hit, err := c.GetOrCompute(context.Background(), q, func(context.Context) (*result.Response, error) {
		return testResponse(), nil
	})
	if err != nil || hit {
		t.Fatalf("nil store: resp=%v hit=%v err=%v", resp, hit, err)
	}
}

func TestGetOrCompute_StoreErrorBypasses(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("redis down")
	c := newTestCache(store)
	q := cacheQuery(t, query.Params{})

	resp, hit, err := c.GetOrCompute(context.Background(), q, func(context.Context) (*result.Response, error) {
		return testResponse(), nil
	})
	if err != nil {
		t.Fatalf("store outage must not fail the request: %v", err)
	}
	if hit || resp == nil {
		t.Error("expected computed response on store outage")
	}
}

func TestGetOrCompute_ComputeErrorPropagates(t *testing.T) {
	store := newMockStore()
	c := newTestCache(store)
	q := cacheQuery(t, query.Params{})
	boom := errors.New("pipeline failed")

	_, _, err := c.GetOrCompute(context.Background(), q, func(context.Context) (*result.Response, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if store.sets != 0 {
		t.Error("failed computation must not be cached")
	}

	// The in-flight registration is released; a later call recomputes.
	resp, _, err := c.GetOrCompute(context.Background(), q, func(context.Context) (*result.Response, error) {
		return testResponse(), nil
	})
	if err != nil || resp == nil {
		t.Fatalf("retry after failure: resp=%v err=%v", resp, err)
	}
}

func TestGetOrCompute_TTLExpiry(t *testing.T) {
	store := newMockStore()
	current := time.Unix(1_700_000_000, 0)
	c := New(store, time.Minute, 0, "test:", nil, zap.NewNop(),
		WithClock(func() time.Time { return current }))
	q := cacheQuery(t, query.Params{})
	computes := 0
	compute := func(context.Context) (*result.Response, error) {
		computes++
		return testResponse(), nil
	}

	if _, _, err := c.GetOrCompute(context.Background(), q, compute); err != nil {
		t.Fatal(err)
	}

	// Entry still fresh just inside the TTL.
	current = current.Add(59 * time.Second)
	if _, hit, _ := c.GetOrCompute(context.Background(), q, compute); !hit {
		t.Error("entry inside TTL must hit")
	}

	// Stale entry is recomputed even though the mock store kept it.
	current = current.Add(2 * time.Minute)
	if _, hit, _ := c.GetOrCompute(context.Background(), q, compute); hit {
		t.Error("entry past TTL must miss")
	}
	if computes != 2 {
		t.Errorf("compute ran %d times, want 2", computes)
	}
}

func TestGetOrCompute_TenantMismatchDropped(t *testing.T) {
	store := newMockStore()
	c := newTestCache(store)
	q := cacheQuery(t, query.Params{})

	if _, _, err := c.GetOrCompute(context.Background(), q, func(context.Context) (*result.Response, error) {
		return testResponse(), nil
	}); err != nil {
		t.Fatal(err)
	}

	// Corrupt the stored entry's tenant in place to simulate a collision.
	store.mu.Lock()
	for k := range store.data {
		store.data[k] = []byte(`{"tenant_id":"evil","project_id":"p1","created_at":"2099-01-01T00:00:00Z","ttl_sec":300,"payload":{}}`)
	}
	store.mu.Unlock()

	_, hit, err := c.GetOrCompute(context.Background(), q, func(context.Context) (*result.Response, error) {
		return testResponse(), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("entry with foreign tenant must be dropped")
	}
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("force miss") // lookups always miss, writes fail silently
	store.setErr = errors.New("no store")
	c := newTestCache(store)
	q := cacheQuery(t, query.Params{})

	var mu sync.Mutex
	computes := 0
	release := make(chan struct{})
	compute := func(context.Context) (*result.Response, error) {
		mu.Lock()
		computes++
		mu.Unlock()
		<-release
		return testResponse(), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = c.GetOrCompute(context.Background(), q, compute)
		}(i)
	}

	// Give every caller time to register against the in-flight key.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if computes != 1 {
		t.Errorf("compute ran %d times for identical concurrent queries, want 1", computes)
	}
}

func TestGetOrCompute_LeaderCancelDoesNotFailWaiters(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("force miss")
	store.setErr = errors.New("no store")
	c := newTestCache(store)
	q := cacheQuery(t, query.Params{})

	started := make(chan struct{})
	release := make(chan struct{})
	var computeCtxErr error
	compute := func(ctx context.Context) (*result.Response, error) {
		close(started)
		<-release
		computeCtxErr = ctx.Err()
		return testResponse(), nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, q, compute)
		leaderErr <- err
	}()
	<-started

	waiterDone := make(chan struct{})
	var waiterResp *result.Response
	var waiterErr error
	go func() {
		defer close(waiterDone)
		waiterResp, _, waiterErr = c.GetOrCompute(context.Background(), q, compute)
	}()

	// Let the waiter join the in-flight key, then drop the leader.
	time.Sleep(50 * time.Millisecond)
	cancelLeader()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader error = %v, want context.Canceled", err)
	}

	close(release)
	<-waiterDone

	if waiterErr != nil {
		t.Fatalf("waiter must survive leader cancellation, got %v", waiterErr)
	}
	if waiterResp == nil || waiterResp.Results[0].DocumentID != "doc1" {
		t.Fatalf("waiter response = %+v", waiterResp)
	}
	if computeCtxErr != nil {
		t.Errorf("compute context cancelled with the leader: %v", computeCtxErr)
	}
}
