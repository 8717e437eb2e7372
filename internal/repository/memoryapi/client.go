// Package memoryapi is the HTTP adapter to the memory platform's internal
// API. It implements every retrieval backend contract: vector store, keyword
// index, graph repository, and full-text index.
package memoryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/retrieval"
)

// Config holds the memory platform connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the memory platform. One client serves all four backends;
// per-call deadlines come from the caller's context.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates the platform client.
func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type filterDTO struct {
	Tags          []string   `json:"tags,omitempty"`
	Since         *time.Time `json:"since,omitempty"`
	MinImportance float64    `json:"min_importance,omitempty"`
}

func filterToWire(f query.Filter) *filterDTO {
	if f.IsZero() {
		return nil
	}
	return &filterDTO{Tags: f.Tags, Since: f.Since, MinImportance: f.MinImportance}
}

type scoredDocDTO struct {
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// NearestNeighbors implements retrieval.VectorStore.
func (c *Client) NearestNeighbors(
	ctx context.Context, scope retrieval.Scope, vector []float32, topK int, f query.Filter,
) ([]retrieval.ScoredDocument, error) {
	req := struct {
		TenantID  string     `json:"tenant_id"`
		ProjectID string     `json:"project_id"`
		Vector    []float32  `json:"vector"`
		TopK      int        `json:"top_k"`
		Filters   *filterDTO `json:"filters,omitempty"`
	}{scope.TenantID, scope.ProjectID, vector, topK, filterToWire(f)}

	var resp struct {
		Results []scoredDocDTO `json:"results"`
	}
	if err := c.post(ctx, "/internal/v1/vectors/search", req, &resp); err != nil {
		return nil, err
	}
	return scoredDocs(resp.Results), nil
}

// Postings implements retrieval.KeywordIndex.
func (c *Client) Postings(
	ctx context.Context, scope retrieval.Scope, terms []string, f query.Filter, limit int,
) (retrieval.PostingList, error) {
	req := struct {
		TenantID  string     `json:"tenant_id"`
		ProjectID string     `json:"project_id"`
		Terms     []string   `json:"terms"`
		Limit     int        `json:"limit"`
		Filters   *filterDTO `json:"filters,omitempty"`
	}{scope.TenantID, scope.ProjectID, terms, limit, filterToWire(f)}

	var resp struct {
		Docs []struct {
			DocumentID string         `json:"document_id"`
			Content    string         `json:"content"`
			Length     int            `json:"length"`
			TermFreq   map[string]int `json:"term_freq"`
		} `json:"docs"`
		DocCount  int            `json:"doc_count"`
		AvgDocLen float64        `json:"avg_doc_len"`
		DocFreq   map[string]int `json:"doc_freq"`
	}
	if err := c.post(ctx, "/internal/v1/keywords/postings", req, &resp); err != nil {
		return retrieval.PostingList{}, err
	}

	pl := retrieval.PostingList{
		Docs:      make([]retrieval.DocPostings, len(resp.Docs)),
		DocCount:  resp.DocCount,
		AvgDocLen: resp.AvgDocLen,
		DocFreq:   resp.DocFreq,
	}
	for i, d := range resp.Docs {
		pl.Docs[i] = retrieval.DocPostings{
			DocumentID: d.DocumentID,
			Content:    d.Content,
			Length:     d.Length,
			TermFreq:   d.TermFreq,
		}
	}
	return pl, nil
}

type nodeDTO struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (n nodeDTO) toDomain() domain.Node {
	return domain.Node{ID: n.ID, Label: n.Label, Properties: n.Properties}
}

// SeedNodes implements the entry-point lookup of retrieval.GraphRepository.
func (c *Client) SeedNodes(
	ctx context.Context, scope retrieval.Scope, entities []string,
) ([]domain.Node, error) {
	req := struct {
		TenantID  string   `json:"tenant_id"`
		ProjectID string   `json:"project_id"`
		Entities  []string `json:"entities"`
	}{scope.TenantID, scope.ProjectID, entities}

	var resp struct {
		Nodes []nodeDTO `json:"nodes"`
	}
	if err := c.post(ctx, "/internal/v1/graph/seeds", req, &resp); err != nil {
		return nil, err
	}

	nodes := make([]domain.Node, len(resp.Nodes))
	for i, n := range resp.Nodes {
		nodes[i] = n.toDomain()
	}
	return nodes, nil
}

// Neighbors implements the expansion step of retrieval.GraphRepository.
func (c *Client) Neighbors(
	ctx context.Context, scope retrieval.Scope, nodeID string,
) ([]retrieval.NeighborEdge, error) {
	req := struct {
		TenantID  string `json:"tenant_id"`
		ProjectID string `json:"project_id"`
		NodeID    string `json:"node_id"`
	}{scope.TenantID, scope.ProjectID, nodeID}

	var resp struct {
		Neighbors []struct {
			Relation string  `json:"relation"`
			Node     nodeDTO `json:"node"`
		} `json:"neighbors"`
	}
	if err := c.post(ctx, "/internal/v1/graph/neighbors", req, &resp); err != nil {
		return nil, err
	}

	edges := make([]retrieval.NeighborEdge, len(resp.Neighbors))
	for i, n := range resp.Neighbors {
		edges[i] = retrieval.NeighborEdge{
			Edge: domain.Edge{SourceID: nodeID, TargetID: n.Node.ID, Relation: n.Relation},
			Node: n.Node.toDomain(),
		}
	}
	return edges, nil
}

// LinkedDocuments implements the document lookup of retrieval.GraphRepository.
func (c *Client) LinkedDocuments(
	ctx context.Context, scope retrieval.Scope, ids []string,
) ([]retrieval.Document, error) {
	req := struct {
		TenantID  string   `json:"tenant_id"`
		ProjectID string   `json:"project_id"`
		IDs       []string `json:"ids"`
	}{scope.TenantID, scope.ProjectID, ids}

	var resp struct {
		Documents []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"documents"`
	}
	if err := c.post(ctx, "/internal/v1/documents/lookup", req, &resp); err != nil {
		return nil, err
	}

	docs := make([]retrieval.Document, len(resp.Documents))
	for i, d := range resp.Documents {
		docs[i] = retrieval.Document{ID: d.ID, Content: d.Content}
	}
	return docs, nil
}

// Query implements retrieval.FullTextIndex.
func (c *Client) Query(
	ctx context.Context, scope retrieval.Scope, text string, topK int, f query.Filter,
) ([]retrieval.ScoredDocument, error) {
	req := struct {
		TenantID  string     `json:"tenant_id"`
		ProjectID string     `json:"project_id"`
		Query     string     `json:"query"`
		TopK      int        `json:"top_k"`
		Filters   *filterDTO `json:"filters,omitempty"`
	}{scope.TenantID, scope.ProjectID, text, topK, filterToWire(f)}

	var resp struct {
		Results []scoredDocDTO `json:"results"`
	}
	if err := c.post(ctx, "/internal/v1/fulltext/search", req, &resp); err != nil {
		return nil, err
	}
	return scoredDocs(resp.Results), nil
}

func scoredDocs(dtos []scoredDocDTO) []retrieval.ScoredDocument {
	out := make([]retrieval.ScoredDocument, len(dtos))
	for i, d := range dtos {
		out[i] = retrieval.ScoredDocument{DocumentID: d.DocumentID, Content: d.Content, Score: d.Score}
	}
	return out
}

// post sends a JSON request and decodes the JSON response. Every failure is
// wrapped with domain.ErrStrategyUnavailable so a backend outage degrades
// the affected strategy instead of the whole query.
func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("join url: %w", err)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", path, err, domain.ErrStrategyUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s: %w",
			path, resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrStrategyUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("%s: decode response: %v: %w", path, err, domain.ErrStrategyUnavailable)
	}
	return nil
}
