package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mnemo-dev/mnemo/internal/domain"
)

const rerankSystemPrompt = "You are a search result re-ranking expert."

const rerankPromptTemplate = `Re-rank the following search results based on relevance to the query.

Query: %q

Results:
%s

Your task:
1. Evaluate each result's relevance to the query
2. Assign a relevance score from 0.0 to 1.0 (higher = more relevant)

Return a JSON object: {"scores": [{"index": 0, "score": 0.95}, {"index": 1, "score": 0.75}]}`

const snippetLen = 200

// Reranker scores candidate snippets against the query via a chat
// completion.
type Reranker struct {
	client *openai.Client
	model  string
}

// NewReranker creates the LLM re-ranking adapter.
func NewReranker(cfg Config, model string) *Reranker {
	return &Reranker{client: newClient(cfg), model: model}
}

// Score returns one relevance score per document, indexed like docs. Missing
// indices stay negative so the caller can tell "unscored" from "scored 0".
// Errors are wrapped with domain.ErrRerankUnavailable.
func (r *Reranker) Score(ctx context.Context, queryText string, docs []string) ([]float64, error) {
	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i, snippet(doc))
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rerankSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(rerankPromptTemplate, queryText, sb.String())},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, parseAPIError(err, domain.ErrRerankUnavailable)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response: %w", domain.ErrRerankUnavailable)
	}

	return parseScores(resp.Choices[0].Message.Content, len(docs))
}

func parseScores(raw string, n int) ([]float64, error) {
	var parsed struct {
		Scores []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		} `json:"scores"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %v: %w", err, domain.ErrRerankUnavailable)
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = -1
	}
	for _, s := range parsed.Scores {
		if s.Index >= 0 && s.Index < n {
			scores[s.Index] = clamp01(s.Score)
		}
	}
	return scores, nil
}

func snippet(doc string) string {
	if len(doc) <= snippetLen {
		return doc
	}
	return doc[:snippetLen] + "..."
}
