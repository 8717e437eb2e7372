package retrieval

import "github.com/mnemo-dev/mnemo/internal/domain/result"

// ScoreNormalizer maps a candidate set's raw scores onto [0,1] in place.
// Normalization is a per-strategy policy: the styles below are not
// numerically comparable across queries, which is why fusion weights apply
// to normalized scores only.
type ScoreNormalizer func([]result.Candidate)

// AffineCosine maps cosine similarity from [-1,1] to [0,1] with the fixed
// map (s+1)/2. Out-of-range inputs are clamped.
func AffineCosine(candidates []result.Candidate) {
	for i := range candidates {
		candidates[i].NormScore = clamp01((candidates[i].RawScore + 1) / 2)
	}
}

// MinMax scales raw scores to [0,1] over this result set. A constant-score
// set maps to 1.0 (every hit is equally best).
func MinMax(candidates []result.Candidate) {
	if len(candidates) == 0 {
		return
	}
	lo, hi := candidates[0].RawScore, candidates[0].RawScore
	for _, c := range candidates[1:] {
		if c.RawScore < lo {
			lo = c.RawScore
		}
		if c.RawScore > hi {
			hi = c.RawScore
		}
	}
	if hi == lo {
		for i := range candidates {
			candidates[i].NormScore = 1
		}
		return
	}
	for i := range candidates {
		candidates[i].NormScore = (candidates[i].RawScore - lo) / (hi - lo)
	}
}

// MaxRatio divides every raw score by the set's maximum. Used for indexes
// whose scores are positive but unbounded.
func MaxRatio(candidates []result.Candidate) {
	var hi float64
	for _, c := range candidates {
		if c.RawScore > hi {
			hi = c.RawScore
		}
	}
	if hi <= 0 {
		for i := range candidates {
			candidates[i].NormScore = 0
		}
		return
	}
	for i := range candidates {
		candidates[i].NormScore = clamp01(candidates[i].RawScore / hi)
	}
}

// Identity copies raw scores that are already in [0,1], clamping strays.
func Identity(candidates []result.Candidate) {
	for i := range candidates {
		candidates[i].NormScore = clamp01(candidates[i].RawScore)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
