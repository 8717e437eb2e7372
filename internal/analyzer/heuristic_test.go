package analyzer

import (
	"context"
	"testing"

	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
)

func TestHeuristicIntentClassification(t *testing.T) {
	cases := []struct {
		text string
		want analysis.Intent
	}{
		{"how does auth relate to payments", analysis.IntentRelational},
		{"connection between services", analysis.IntentRelational},
		{"what happened in the deploy", analysis.IntentFactual},
		{"who owns the billing module", analysis.IntentFactual},
		{"explain the caching design", analysis.IntentConceptual},
		{"changes from yesterday", analysis.IntentTemporal},
		{"billing edge cases", analysis.IntentExploratory},
	}
	h := NewHeuristic()
	for _, tc := range cases {
		an, err := h.Analyze(context.Background(), tc.text, nil)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.text, err)
		}
		if an.Intent != tc.want {
			t.Errorf("%q: intent = %s, want %s", tc.text, an.Intent, tc.want)
		}
		if an.Confidence != heuristicConfidence {
			t.Errorf("%q: confidence = %v, want %v", tc.text, an.Confidence, heuristicConfidence)
		}
	}
}

func TestHeuristicRelationalBeatsFactual(t *testing.T) {
	// "what" and "relate" both match; relational cues take precedence.
	h := NewHeuristic()
	an, _ := h.Analyze(context.Background(), "what services relate to billing", nil)
	if an.Intent != analysis.IntentRelational {
		t.Errorf("intent = %s, want relational", an.Intent)
	}
	if !an.RequiresGraph {
		t.Error("relational intent must request graph traversal")
	}
	if an.SuggestedDepth != 3 {
		t.Errorf("suggested depth = %d, want 3", an.SuggestedDepth)
	}
}

func TestHeuristicQuotedEntities(t *testing.T) {
	h := NewHeuristic()
	an, _ := h.Analyze(context.Background(), `how does "auth service" relate to "payment gateway"`, nil)
	if len(an.KeyEntities) != 2 {
		t.Fatalf("entities = %v, want 2", an.KeyEntities)
	}
	if an.KeyEntities[0] != "auth service" || an.KeyEntities[1] != "payment gateway" {
		t.Errorf("entities = %v", an.KeyEntities)
	}
}

func TestHeuristicNoQuotes(t *testing.T) {
	h := NewHeuristic()
	an, _ := h.Analyze(context.Background(), "plain query without quotes", nil)
	if len(an.KeyEntities) != 0 {
		t.Errorf("entities = %v, want none", an.KeyEntities)
	}
}
