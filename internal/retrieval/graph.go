package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/analysis"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
	"github.com/mnemo-dev/mnemo/internal/domain/strategy"
)

// Node property keys linking graph nodes to documents.
const (
	propSourceDocument = "source_memory_id"
	propDocumentList   = "memory_ids"
)

// GraphExecutor discovers documents through breadth-first traversal of the
// knowledge graph, seeded by the analyzer's entities. The visited set is
// local to one call; traversal terminates on cyclic graphs because a node is
// expanded at most once.
type GraphExecutor struct {
	repo GraphRepository
	norm ScoreNormalizer
}

// NewGraphExecutor creates the graph traversal strategy.
func NewGraphExecutor(repo GraphRepository, opts ...GraphOption) *GraphExecutor {
	e := &GraphExecutor{repo: repo, norm: Identity}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GraphOption configures the graph executor.
type GraphOption func(*GraphExecutor)

// WithGraphNormalizer overrides the score normalization policy.
func WithGraphNormalizer(n ScoreNormalizer) GraphOption {
	return func(e *GraphExecutor) { e.norm = n }
}

// Name implements Executor.
func (e *GraphExecutor) Name() strategy.Strategy { return strategy.Graph }

// Search implements Executor.
func (e *GraphExecutor) Search(
	ctx context.Context, q *query.Query, an analysis.Analysis, limit int,
) (Result, error) {
	entities := an.KeyEntities
	if len(entities) == 0 {
		// Nothing to seed from; a valid empty contribution, not a failure.
		return Result{}, nil
	}

	scope := scopeOf(q)
	seeds, err := e.repo.SeedNodes(ctx, scope, entities)
	if err != nil {
		return Result{}, fmt.Errorf("seed nodes: %w", err)
	}
	if len(seeds) == 0 {
		return Result{}, nil
	}

	// The request's explicit depth wins. Otherwise the analyzer may deepen
	// the traversal for queries it judged relational.
	maxDepth := q.GraphDepth()
	if !q.GraphDepthExplicit() && an.SuggestedDepth > 0 {
		maxDepth = an.SuggestedDepth
	}
	if maxDepth > query.MaxDepth {
		maxDepth = query.MaxDepth
	}

	neighborhood, docDepth, err := e.traverse(ctx, scope, seeds, maxDepth)
	if err != nil {
		return Result{}, err
	}
	if len(docDepth) == 0 {
		return Result{Neighborhood: neighborhood}, nil
	}

	candidates, err := e.collect(ctx, scope, docDepth, limit)
	if err != nil {
		return Result{}, err
	}

	e.norm(candidates)
	return Result{Candidates: candidates, Neighborhood: neighborhood}, nil
}

// traverse runs BFS from the seeds up to maxDepth edge-hops. Returns the
// discovered subgraph and, per linked document, the smallest depth of any
// node linking to it.
func (e *GraphExecutor) traverse(
	ctx context.Context, scope Scope, seeds []domain.Node, maxDepth int,
) (*domain.Neighborhood, map[string]int, error) {
	visited := make(map[string]bool, len(seeds))
	docDepth := make(map[string]int)
	nb := &domain.Neighborhood{}

	type frame struct {
		node  domain.Node
		depth int
	}
	queue := make([]frame, 0, len(seeds))
	for _, s := range seeds {
		if visited[s.ID] {
			continue
		}
		visited[s.ID] = true
		s.Depth = 0
		queue = append(queue, frame{node: s})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		nb.Nodes = append(nb.Nodes, cur.node)
		for _, id := range linkedDocumentIDs(cur.node) {
			if d, ok := docDepth[id]; !ok || cur.depth < d {
				docDepth[id] = cur.depth
			}
		}

		if cur.depth >= maxDepth {
			continue
		}

		neighbors, err := e.repo.Neighbors(ctx, scope, cur.node.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("neighbors of %s: %w", cur.node.ID, err)
		}
		for _, n := range neighbors {
			nb.Edges = append(nb.Edges, n.Edge)
			if visited[n.Node.ID] {
				continue
			}
			visited[n.Node.ID] = true
			next := n.Node
			next.Depth = cur.depth + 1
			queue = append(queue, frame{node: next, depth: cur.depth + 1})
		}
	}

	return nb, docDepth, nil
}

// collect fetches linked documents and scores them by traversal distance:
// score = 1/(1+depth), already in (0,1].
func (e *GraphExecutor) collect(
	ctx context.Context, scope Scope, docDepth map[string]int, limit int,
) ([]result.Candidate, error) {
	ids := make([]string, 0, len(docDepth))
	for id := range docDepth {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs, err := e.repo.LinkedDocuments(ctx, scope, ids)
	if err != nil {
		return nil, fmt.Errorf("linked documents: %w", err)
	}

	candidates := make([]result.Candidate, 0, len(docs))
	for _, d := range docs {
		depth, ok := docDepth[d.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, result.Candidate{
			Strategy:   strategy.Graph,
			DocumentID: d.ID,
			Content:    d.Content,
			RawScore:   1.0 / float64(1+depth),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RawScore != candidates[j].RawScore {
			return candidates[i].RawScore > candidates[j].RawScore
		}
		return candidates[i].DocumentID < candidates[j].DocumentID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// linkedDocumentIDs reads document links from node properties. Nodes may
// carry a single source document or a list.
func linkedDocumentIDs(n domain.Node) []string {
	var ids []string
	if v, ok := n.Properties[propSourceDocument].(string); ok && v != "" {
		ids = append(ids, v)
	}
	switch list := n.Properties[propDocumentList].(type) {
	case []string:
		ids = append(ids, list...)
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				ids = append(ids, s)
			}
		}
	}
	return ids
}
