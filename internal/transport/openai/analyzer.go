package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
)

const analyzerSystemPrompt = "You are a query analysis expert specializing in search optimization."

const analyzerPromptTemplate = `Analyze the following search query and return structured classification.

Query: %q

Your task:
1. Classify the INTENT of the query
2. Extract KEY ENTITIES (named entities, specific things)
3. Extract KEY CONCEPTS (abstract ideas, topics)
4. Decide whether GRAPH TRAVERSAL over linked memories would help, and to what depth (1-5)
5. Suggest WEIGHTS for each retrieval strategy (must sum to 1.0)

Intent types: factual, conceptual, exploratory, temporal, relational, aggregative

Retrieval strategies:
- vector: semantic similarity using embeddings
- sparse: keyword relevance scoring
- graph: traversal of linked memories and relationships
- fulltext: exact text matching

Return ONLY valid JSON with this shape:
{
  "intent": "relational",
  "confidence": 0.95,
  "key_entities": ["payment system", "authentication layer"],
  "key_concepts": ["payment", "authentication"],
  "strategy_weights": {"vector": 0.2, "sparse": 0.3, "graph": 0.4, "fulltext": 0.1},
  "requires_graph_traversal": true,
  "suggested_depth": 3
}`

// llmVerdict is the wire shape of the model's classification.
type llmVerdict struct {
	Intent                 string             `json:"intent"`
	Confidence             float64            `json:"confidence"`
	KeyEntities            []string           `json:"key_entities"`
	KeyConcepts            []string           `json:"key_concepts"`
	StrategyWeights        map[string]float64 `json:"strategy_weights"`
	RequiresGraphTraversal bool               `json:"requires_graph_traversal"`
	SuggestedDepth         int                `json:"suggested_depth"`
}

// Analyzer classifies query intent through a chat completion.
type Analyzer struct {
	client *openai.Client
	model  string
}

// NewAnalyzer creates the LLM classifier adapter.
func NewAnalyzer(cfg Config, model string) *Analyzer {
	return &Analyzer{client: newClient(cfg), model: model}
}

// Analyze asks the model for an intent verdict. Errors are wrapped with
// domain.ErrAnalyzerUnavailable; the caller degrades to heuristics.
func (a *Analyzer) Analyze(ctx context.Context, text string, history []string) (analysis.Analysis, error) {
	prompt := fmt.Sprintf(analyzerPromptTemplate, text)
	if len(history) > 0 {
		var sb strings.Builder
		sb.WriteString(prompt)
		sb.WriteString("\n\nConversation context:\n")
		for _, line := range history {
			sb.WriteString("- ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		prompt = sb.String()
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return analysis.Analysis{}, parseAPIError(err, domain.ErrAnalyzerUnavailable)
	}
	if len(resp.Choices) == 0 {
		return analysis.Analysis{}, fmt.Errorf("empty completion response: %w", domain.ErrAnalyzerUnavailable)
	}

	return parseVerdict(resp.Choices[0].Message.Content)
}

func parseVerdict(raw string) (analysis.Analysis, error) {
	var v llmVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &v); err != nil {
		return analysis.Analysis{}, fmt.Errorf("parse analysis response: %v: %w", err, domain.ErrAnalyzerUnavailable)
	}

	intent := analysis.Intent(v.Intent)
	if !intent.IsValid() {
		return analysis.Analysis{}, fmt.Errorf("unknown intent %q: %w", v.Intent, domain.ErrAnalyzerUnavailable)
	}

	an := analysis.Analysis{
		Intent:         intent,
		Confidence:     clamp01(v.Confidence),
		KeyEntities:    v.KeyEntities,
		KeyConcepts:    v.KeyConcepts,
		RequiresGraph:  v.RequiresGraphTraversal,
		SuggestedDepth: v.SuggestedDepth,
	}

	// Weight suggestions outside a small tolerance around 1.0 are dropped,
	// not repaired. The intent profile still applies downstream.
	if p := suggestedProfile(v.StrategyWeights); p != nil {
		an.SuggestedWeights = p
	}
	return an, nil
}

func suggestedProfile(raw map[string]float64) *weights.Profile {
	if len(raw) == 0 {
		return nil
	}
	sum := 0.0
	for _, w := range raw {
		sum += w
	}
	if sum < 0.95 || sum > 1.05 {
		return nil
	}
	p, err := weights.New(raw["vector"], raw["sparse"], raw["graph"], raw["fulltext"])
	if err != nil {
		return nil
	}
	norm := p.Normalize()
	return &norm
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
