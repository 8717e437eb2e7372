package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mnemo-dev/mnemo/internal/cache"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
	"github.com/mnemo-dev/mnemo/internal/retrieval"
	searchuc "github.com/mnemo-dev/mnemo/internal/usecase/search"
)

// --- Mocks ---

type stubAnalyzer struct {
	an  analysis.Analysis
	err error
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string, _ []string) (analysis.Analysis, error) {
	return s.an, s.err
}

type stubRunner struct {
	outcome retrieval.Outcome
}

func (s *stubRunner) Run(
	_ context.Context, _ *query.Query, _ analysis.Analysis, _ weights.Profile,
) retrieval.Outcome {
	return s.outcome
}

type noCache struct{}

func (noCache) GetOrCompute(
	ctx context.Context, _ *query.Query, compute cache.ComputeFunc,
) (*result.Response, bool, error) {
	resp, err := compute(ctx)
	return resp, false, err
}

type stubSynth struct{}

func (stubSynth) Synthesize(_ string, _ []result.Fused, _ *domain.Neighborhood) string {
	return "context"
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

// --- Helpers ---

func okOutcome() retrieval.Outcome {
	return retrieval.Outcome{
		Candidates: map[strategy.Strategy][]result.Candidate{
			strategy.Vector: {{Strategy: strategy.Vector, DocumentID: "doc1", Content: "alpha", NormScore: 0.9}},
		},
		Completed: []strategy.Strategy{strategy.Vector},
		Counts:    map[strategy.Strategy]int{strategy.Vector: 1},
	}
}

func newTestServer(t *testing.T, outcome retrieval.Outcome, pinger Pinger) http.Handler {
	t.Helper()
	registry := weights.NewRegistry()
	svc := searchuc.New(
		&stubAnalyzer{an: analysis.Analysis{Intent: analysis.IntentFactual, Confidence: 0.8}},
		registry,
		&stubRunner{outcome: outcome},
		noCache{},
		nil,
		stubSynth{},
		searchuc.Timeouts{Overall: 5 * time.Second},
		nil,
		zap.NewNop(),
	)
	srv := NewServer(svc, registry, pinger, zap.NewNop())
	r := chirouter.NewRouter()
	srv.Routes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestSearchEndpoint(t *testing.T) {
	h := newTestServer(t, okOutcome(), nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/search",
		`{"tenant_id":"t1","project_id":"p1","query":"what is auth"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocumentID != "doc1" {
		t.Errorf("results = %+v", resp.Results)
	}
	if resp.Results[0].Rank != 1 {
		t.Errorf("rank = %d, want 1", resp.Results[0].Rank)
	}
	if resp.SynthesizedContext != "context" {
		t.Errorf("synthesized context = %q", resp.SynthesizedContext)
	}
	if resp.Analysis.Intent != "factual" {
		t.Errorf("intent = %s", resp.Analysis.Intent)
	}
	if resp.StrategyCounts["vector"] != 1 {
		t.Errorf("strategy counts = %v", resp.StrategyCounts)
	}
}

func TestSearchEndpoint_ValidationError(t *testing.T) {
	h := newTestServer(t, okOutcome(), nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/search",
		`{"tenant_id":"","project_id":"p1","query":"q"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var e errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Code != codeValidationFailed {
		t.Errorf("code = %s, want %s", e.Code, codeValidationFailed)
	}
	if !strings.Contains(e.Message, "tenant_id") {
		t.Errorf("message = %q, want tenant_id detail", e.Message)
	}
}

func TestSearchEndpoint_MalformedBody(t *testing.T) {
	h := newTestServer(t, okOutcome(), nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/search", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpoint_UnknownStrategy(t *testing.T) {
	h := newTestServer(t, okOutcome(), nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/search",
		`{"tenant_id":"t1","project_id":"p1","query":"q","strategies":["psychic"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "psychic") {
		t.Errorf("body = %s, want offending strategy named", rec.Body.String())
	}
}

func TestSearchEndpoint_AllStrategiesDown(t *testing.T) {
	h := newTestServer(t, retrieval.Outcome{}, nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/search",
		`{"tenant_id":"t1","project_id":"p1","query":"q"}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var e errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Code != codeStrategyUnavailable {
		t.Errorf("code = %s, want %s", e.Code, codeStrategyUnavailable)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	h := newTestServer(t, okOutcome(), nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/analyze", `{"query":"what is auth"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var dto analysisDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Intent != "factual" || dto.Confidence != 0.8 {
		t.Errorf("analysis = %+v", dto)
	}
}

func TestAnalyzeEndpoint_EmptyQuery(t *testing.T) {
	h := newTestServer(t, okOutcome(), nil)
	rec := doJSON(t, h, http.MethodPost, "/v1/analyze", `{"query":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestProfilesEndpoint(t *testing.T) {
	h := newTestServer(t, okOutcome(), nil)
	rec := doJSON(t, h, http.MethodGet, "/v1/profiles", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp profilesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Default != weights.DefaultProfileName {
		t.Errorf("default = %s", resp.Default)
	}
	if _, ok := resp.Profiles["balanced"]; !ok {
		t.Errorf("profiles = %v, want balanced present", resp.Profiles)
	}
}

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name   string
		pinger Pinger
		status string
		cache  string
	}{
		{"store ok", &stubPinger{}, "ok", "ok"},
		{"store down", &stubPinger{err: errors.New("conn refused")}, "degraded", "unavailable"},
		{"store disabled", nil, "ok", "disabled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(t, okOutcome(), tc.pinger)
			rec := doJSON(t, h, http.MethodGet, "/healthz", "")

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, health must stay 200", rec.Code)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.status {
				t.Errorf("status = %s, want %s", body.Status, tc.status)
			}
			if body.Checks["cache"] != tc.cache {
				t.Errorf("cache check = %s, want %s", body.Checks["cache"], tc.cache)
			}
		})
	}
}

func TestSafeDomainMessage(t *testing.T) {
	validationErr := domain.ErrValidation
	wrapped := errors.Join(errors.New("pgvector: connection refused"), domain.ErrStrategyUnavailable)

	if msg := safeDomainMessage(validationErr); msg != validationErr.Error() {
		t.Errorf("validation message = %q", msg)
	}
	if msg := safeDomainMessage(wrapped); strings.Contains(msg, "pgvector") {
		t.Errorf("internal detail leaked: %q", msg)
	}
	if msg := safeDomainMessage(errors.New("some bug")); msg != "internal error" {
		t.Errorf("unknown error message = %q", msg)
	}
}
