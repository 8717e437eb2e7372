// Package analysis holds the query analyzer's output: intent classification,
// extracted entities/concepts, and a suggested weight profile. An Analysis is
// computed once per request and never persisted.
package analysis

import "github.com/mnemo-dev/mnemo/internal/domain/weights"

// Intent classifies what kind of answer a query is after.
type Intent string

const (
	IntentFactual     Intent = "factual"
	IntentConceptual  Intent = "conceptual"
	IntentExploratory Intent = "exploratory"
	IntentTemporal    Intent = "temporal"
	IntentRelational  Intent = "relational"
	IntentAggregative Intent = "aggregative"
	IntentUnknown     Intent = "unknown"
)

// IsValid reports whether i names a known intent.
func (i Intent) IsValid() bool {
	switch i {
	case IntentFactual, IntentConceptual, IntentExploratory,
		IntentTemporal, IntentRelational, IntentAggregative, IntentUnknown:
		return true
	}
	return false
}

// ProfileName maps an intent to a weight preset name.
func (i Intent) ProfileName() string {
	switch i {
	case IntentFactual, IntentTemporal:
		return "factual"
	case IntentConceptual:
		return "conceptual"
	case IntentRelational:
		return "relational"
	default:
		return weights.DefaultProfileName
	}
}

// Analysis is the analyzer's verdict for one query.
type Analysis struct {
	Intent           Intent
	Confidence       float64
	KeyEntities      []string
	KeyConcepts      []string
	SuggestedWeights *weights.Profile // nil when the analyzer has no opinion
	RequiresGraph    bool
	SuggestedDepth   int // 0 = no suggestion
}

// Fallback is the deterministic terminal state returned when analysis is
// unavailable: unknown intent, no entities, no weight suggestion.
func Fallback() Analysis {
	return Analysis{Intent: IntentUnknown, Confidence: 0}
}
