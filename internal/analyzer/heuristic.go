// Package analyzer classifies query intent and suggests retrieval weights.
// The hybrid analyzer asks an LLM first and falls back to deterministic
// keyword heuristics when the model is unavailable or returns garbage.
package analyzer

import (
	"context"
	"strings"

	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
)

const heuristicConfidence = 0.5

// Heuristic is the deterministic keyword classifier. It never fails and
// never consults the network, which makes it the terminal fallback of the
// analyzer chain.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

// Analyze classifies text by keyword cues. First matching rule wins;
// relational cues are checked before factual ones because "how does X relate
// to Y" contains both.
func (h *Heuristic) Analyze(_ context.Context, text string, _ []string) (analysis.Analysis, error) {
	lower := strings.ToLower(text)

	intent := analysis.IntentExploratory
	switch {
	case containsAny(lower, "how", "relate", "connection", "between"):
		intent = analysis.IntentRelational
	case containsAny(lower, "what", "when", "who", "specific"):
		intent = analysis.IntentFactual
	case containsAny(lower, "concept", "understand", "explain"):
		intent = analysis.IntentConceptual
	case containsAny(lower, "recent", "last", "yesterday", "ago"):
		intent = analysis.IntentTemporal
	}

	an := analysis.Analysis{
		Intent:      intent,
		Confidence:  heuristicConfidence,
		KeyEntities: quotedEntities(text),
	}
	if intent == analysis.IntentRelational {
		an.RequiresGraph = true
		an.SuggestedDepth = 3
	}
	return an, nil
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// quotedEntities pulls double-quoted phrases out of the raw query text. The
// odd-indexed segments of a split on '"' are the quoted ones.
func quotedEntities(text string) []string {
	if !strings.Contains(text, `"`) {
		return nil
	}
	var entities []string
	parts := strings.Split(text, `"`)
	for i := 1; i < len(parts); i += 2 {
		if e := strings.TrimSpace(parts[i]); e != "" {
			entities = append(entities, e)
		}
	}
	return entities
}
