// Package query defines the validated search request. A Query is immutable
// once constructed and lives for a single request.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
)

// Request parameter limits.
const (
	MaxQueryLength   = 1024
	DefaultTopK      = 10
	MaxTopK          = 100
	DefaultDepth     = 2
	MaxDepth         = 5
	MaxHistoryLines  = 3
	MinImportanceMax = 1.0
)

// Filter narrows strategy lookups. All fields are optional.
type Filter struct {
	Tags          []string
	Since         *time.Time
	MinImportance float64
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return len(f.Tags) == 0 && f.Since == nil && f.MinImportance == 0
}

// Params carries raw request parameters into New.
type Params struct {
	TenantID    string
	ProjectID   string
	Text        string
	TopK        int
	Enabled     strategy.Set
	GraphDepth  int
	ProfileName string
	Weights     *weights.Profile // explicit override, beats ProfileName
	Filter      Filter
	BypassCache bool
	History     []string
}

// Query is a validated, immutable search request.
type Query struct {
	tenantID      string
	projectID     string
	text          string
	topK          int
	enabled       strategy.Set
	graphDepth    int
	depthExplicit bool
	profileName   string
	weights       *weights.Profile
	filter        Filter
	bypassCache   bool
	history       []string
}

// New validates and normalizes request parameters.
// Defaults: topK=10, graph depth=2, all strategies enabled.
func New(p Params) (Query, error) {
	if p.TenantID == "" {
		return Query{}, fmt.Errorf("%w: tenant_id is required", domain.ErrValidation)
	}
	if p.ProjectID == "" {
		return Query{}, fmt.Errorf("%w: project_id is required", domain.ErrValidation)
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return Query{}, fmt.Errorf("%w: query text is required", domain.ErrValidation)
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrValidation, MaxQueryLength)
	}
	if p.TopK == 0 {
		p.TopK = DefaultTopK
	}
	if p.TopK < 1 || p.TopK > MaxTopK {
		return Query{}, fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrValidation, MaxTopK)
	}
	depthExplicit := p.GraphDepth != 0
	if p.GraphDepth == 0 {
		p.GraphDepth = DefaultDepth
	}
	if p.GraphDepth < 1 || p.GraphDepth > MaxDepth {
		return Query{}, fmt.Errorf("%w: graph_depth must be between 1 and %d", domain.ErrValidation, MaxDepth)
	}
	if p.Filter.MinImportance < 0 || p.Filter.MinImportance > MinImportanceMax {
		return Query{}, fmt.Errorf("%w: min_importance must be between 0 and 1", domain.ErrValidation)
	}
	if p.Enabled == nil {
		p.Enabled = strategy.AllEnabled()
	}
	if p.Enabled.Count() == 0 {
		return Query{}, fmt.Errorf("%w: at least one strategy must be enabled", domain.ErrValidation)
	}
	if p.Weights != nil {
		valid, err := weights.New(p.Weights.Vector, p.Weights.Sparse, p.Weights.Graph, p.Weights.Fulltext)
		if err != nil {
			return Query{}, err
		}
		*p.Weights = valid
	}
	if len(p.History) > MaxHistoryLines {
		p.History = p.History[len(p.History)-MaxHistoryLines:]
	}

	return Query{
		tenantID:      p.TenantID,
		projectID:     p.ProjectID,
		text:          text,
		topK:          p.TopK,
		enabled:       p.Enabled,
		graphDepth:    p.GraphDepth,
		depthExplicit: depthExplicit,
		profileName:   p.ProfileName,
		weights:       p.Weights,
		filter:        p.Filter,
		bypassCache:   p.BypassCache,
		history:       p.History,
	}, nil
}

// TenantID returns the tenant identifier.
func (q *Query) TenantID() string { return q.tenantID }

// ProjectID returns the project identifier.
func (q *Query) ProjectID() string { return q.projectID }

// Text returns the trimmed query text.
func (q *Query) Text() string { return q.text }

// NormalizedText returns the lower-cased text used for cache keying.
func (q *Query) NormalizedText() string { return strings.ToLower(q.text) }

// TopK returns the requested result count.
func (q *Query) TopK() int { return q.topK }

// Enabled returns the enabled-strategy set.
func (q *Query) Enabled() strategy.Set { return q.enabled }

// GraphDepth returns the bounded traversal depth.
func (q *Query) GraphDepth() int { return q.graphDepth }

// GraphDepthExplicit reports whether the request set graph_depth itself.
// When false the analyzer's suggested depth may override the default.
func (q *Query) GraphDepthExplicit() bool { return q.depthExplicit }

// ProfileName returns the requested weight profile name ("" if none).
func (q *Query) ProfileName() string { return q.profileName }

// Weights returns the explicit weight override (nil if none).
func (q *Query) Weights() *weights.Profile { return q.weights }

// Filter returns the lookup filter.
func (q *Query) Filter() Filter { return q.filter }

// BypassCache reports whether the cache must be skipped for this request.
func (q *Query) BypassCache() bool { return q.bypassCache }

// History returns up to the last three conversation lines for the analyzer.
func (q *Query) History() []string { return q.history }
