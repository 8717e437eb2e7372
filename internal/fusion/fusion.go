// Package fusion merges per-strategy candidate lists into one ranked result
// set by weighted score summation.
package fusion

import (
	"sort"

	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
)

// Fuse combines candidates from the completed strategies under the given
// profile. Weights are renormalized over the completed set so absent
// strategies do not dilute the surviving ones. The output is sorted by
// descending hybrid score with ties broken by ascending document ID, ranked
// from 1, and truncated to topK.
func Fuse(
	candidates map[strategy.Strategy][]result.Candidate,
	completed []strategy.Strategy,
	profile weights.Profile,
	topK int,
) ([]result.Fused, weights.Profile, error) {
	if len(completed) == 0 {
		return nil, weights.Profile{}, nil
	}

	applied, err := profile.Renormalize(completed)
	if err != nil {
		return nil, weights.Profile{}, err
	}

	byDoc := make(map[string]*result.Fused)
	for _, s := range completed {
		for _, c := range candidates[s] {
			f, ok := byDoc[c.DocumentID]
			if !ok {
				f = &result.Fused{
					DocumentID: c.DocumentID,
					Content:    c.Content,
					Breakdown:  make(map[strategy.Strategy]float64, len(completed)),
				}
				byDoc[c.DocumentID] = f
			}
			if f.Content == "" {
				f.Content = c.Content
			}
			// A backend may return the same document more than once.
			// Keep the best normalized score per strategy so each
			// strategy contributes at most one term.
			if prev, seen := f.Breakdown[s]; !seen || c.NormScore > prev {
				f.Breakdown[s] = c.NormScore
			}
		}
	}

	fused := make([]result.Fused, 0, len(byDoc))
	for _, f := range byDoc {
		for s, score := range f.Breakdown {
			f.HybridScore += applied.Weight(s) * score
		}
		f.FinalScore = f.HybridScore
		fused = append(fused, *f)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].HybridScore != fused[j].HybridScore {
			return fused[i].HybridScore > fused[j].HybridScore
		}
		return fused[i].DocumentID < fused[j].DocumentID
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	for i := range fused {
		fused[i].Rank = i + 1
	}
	return fused, applied, nil
}
