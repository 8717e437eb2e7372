// Package synthesis renders ranked results and graph context into a single
// bounded markdown document for agent consumption.
package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/result"
)

const maxEdgesPerRelation = 10

// Synthesizer builds the context document. Output is deterministic for a
// given input: sections, groups, and edges are emitted in sorted order.
type Synthesizer struct {
	budget int // max output length in characters, 0 = unbounded
}

func New(budget int) *Synthesizer {
	return &Synthesizer{budget: budget}
}

// Synthesize renders the query, ranked memories, and graph neighborhood as
// sectioned markdown, truncated to the character budget at a word boundary.
func (s *Synthesizer) Synthesize(queryText string, fused []result.Fused, nb *domain.Neighborhood) string {
	var sb strings.Builder

	sb.WriteString("# Search Query\n")
	sb.WriteString(queryText)
	sb.WriteString("\n")

	if len(fused) > 0 {
		sb.WriteString("\n# Relevant Memories\n")
		for _, f := range fused {
			fmt.Fprintf(&sb, "%d. [Score: %.3f] %s\n", f.Rank, f.FinalScore, f.Content)
		}
	}

	if nb != nil && len(nb.Nodes) > 0 {
		writeEntities(&sb, nb)
	}
	if nb != nil && len(nb.Edges) > 0 {
		writeRelationships(&sb, nb)
	}

	return s.truncate(sb.String())
}

func writeEntities(sb *strings.Builder, nb *domain.Neighborhood) {
	byDepth := make(map[int][]string)
	for _, n := range nb.Nodes {
		byDepth[n.Depth] = append(byDepth[n.Depth], n.Label)
	}

	depths := make([]int, 0, len(byDepth))
	for d := range byDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	sb.WriteString("\n# Related Entities\n")
	for _, d := range depths {
		labels := byDepth[d]
		sort.Strings(labels)
		fmt.Fprintf(sb, "\nDepth %d:\n", d)
		for _, label := range labels {
			fmt.Fprintf(sb, "  - %s\n", label)
		}
	}
}

func writeRelationships(sb *strings.Builder, nb *domain.Neighborhood) {
	labels := make(map[string]string, len(nb.Nodes))
	for _, n := range nb.Nodes {
		labels[n.ID] = n.Label
	}

	byRelation := make(map[string][]domain.Edge)
	for _, e := range nb.Edges {
		byRelation[e.Relation] = append(byRelation[e.Relation], e)
	}

	relations := make([]string, 0, len(byRelation))
	for r := range byRelation {
		relations = append(relations, r)
	}
	sort.Strings(relations)

	sb.WriteString("\n# Relationships\n")
	for _, relation := range relations {
		edges := byRelation[relation]
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].SourceID != edges[j].SourceID {
				return edges[i].SourceID < edges[j].SourceID
			}
			return edges[i].TargetID < edges[j].TargetID
		})

		fmt.Fprintf(sb, "\n%s:\n", relation)
		written := 0
		for _, e := range edges {
			src, srcOK := labels[e.SourceID]
			dst, dstOK := labels[e.TargetID]
			if !srcOK || !dstOK {
				continue
			}
			fmt.Fprintf(sb, "  %s -> %s\n", src, dst)
			written++
			if written == maxEdgesPerRelation {
				break
			}
		}
	}
}

// truncate cuts text to the budget at the last word boundary before the
// limit so no word is split mid-rune.
func (s *Synthesizer) truncate(text string) string {
	if s.budget <= 0 || len(text) <= s.budget {
		return text
	}
	cut := text[:s.budget]
	if i := strings.LastIndexAny(cut, " \n\t"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n\t")
}
