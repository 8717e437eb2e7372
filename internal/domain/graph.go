package domain

// Node is a read-only view of a knowledge-graph node supplied by the graph
// repository. The engine never mutates graph data.
type Node struct {
	ID         string
	Label      string
	Properties map[string]any
	Depth      int // edge-hops from the traversal seed
}

// Edge is a read-only view of a knowledge-graph edge.
type Edge struct {
	SourceID string
	TargetID string
	Relation string
}

// Neighborhood holds the subgraph discovered by one traversal. It is passed
// to context synthesis when the graph strategy contributed results.
type Neighborhood struct {
	Nodes []Node
	Edges []Edge
}

// Empty reports whether the traversal discovered nothing.
func (n *Neighborhood) Empty() bool {
	return n == nil || len(n.Nodes) == 0
}
