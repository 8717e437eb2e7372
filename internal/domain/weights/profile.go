// Package weights defines per-strategy weight profiles and their
// normalization rules. A profile used in fusion always sums to 1.0 over the
// strategies that actually completed.
package weights

import (
	"fmt"
	"math"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// Epsilon is the tolerance for weight-sum comparisons.
const Epsilon = 1e-9

// Profile holds one weight per retrieval strategy.
type Profile struct {
	Vector   float64
	Sparse   float64
	Graph    float64
	Fulltext float64
}

// New validates a weight set: every weight must be non-negative and at least
// one must be positive. The result is not yet normalized.
func New(vector, sparse, graph, fulltext float64) (Profile, error) {
	p := Profile{Vector: vector, Sparse: sparse, Graph: graph, Fulltext: fulltext}
	for _, s := range strategy.All() {
		if w := p.Weight(s); w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return Profile{}, fmt.Errorf("%w: %s weight %v", domain.ErrWeightsInvalid, s, w)
		}
	}
	if p.Sum() <= 0 {
		return Profile{}, fmt.Errorf("%w: all weights are zero", domain.ErrWeightsInvalid)
	}
	return p, nil
}

// Weight returns the weight assigned to s.
func (p Profile) Weight(s strategy.Strategy) float64 {
	switch s {
	case strategy.Vector:
		return p.Vector
	case strategy.Sparse:
		return p.Sparse
	case strategy.Graph:
		return p.Graph
	case strategy.Fulltext:
		return p.Fulltext
	}
	return 0
}

// Sum returns the total weight across all strategies.
func (p Profile) Sum() float64 {
	return p.Vector + p.Sparse + p.Graph + p.Fulltext
}

// Normalize scales the profile so its weights sum to 1.0.
func (p Profile) Normalize() Profile {
	total := p.Sum()
	if total <= 0 {
		return p
	}
	return Profile{
		Vector:   p.Vector / total,
		Sparse:   p.Sparse / total,
		Graph:    p.Graph / total,
		Fulltext: p.Fulltext / total,
	}
}

// Renormalize zeroes the weights of strategies absent from completed and
// redistributes their mass proportionally over the rest. Returns an error
// when no completed strategy carries positive weight.
func (p Profile) Renormalize(completed []strategy.Strategy) (Profile, error) {
	kept := Profile{}
	for _, s := range completed {
		switch s {
		case strategy.Vector:
			kept.Vector = p.Vector
		case strategy.Sparse:
			kept.Sparse = p.Sparse
		case strategy.Graph:
			kept.Graph = p.Graph
		case strategy.Fulltext:
			kept.Fulltext = p.Fulltext
		}
	}
	if kept.Sum() <= 0 {
		return Profile{}, fmt.Errorf("%w: no completed strategy has weight", domain.ErrWeightsInvalid)
	}
	return kept.Normalize(), nil
}

// IsNormalized reports whether the weights sum to 1.0 within Epsilon.
func (p Profile) IsNormalized() bool {
	return math.Abs(p.Sum()-1.0) < Epsilon
}

// Map returns the profile as a strategy-keyed map for serialization.
func (p Profile) Map() map[string]float64 {
	return map[string]float64{
		strategy.Vector.String():   p.Vector,
		strategy.Sparse.String():   p.Sparse,
		strategy.Graph.String():    p.Graph,
		strategy.Fulltext.String(): p.Fulltext,
	}
}
