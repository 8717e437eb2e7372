// Package strategy defines the closed set of retrieval strategies.
package strategy

// Strategy identifies one retrieval backend.
type Strategy string

const (
	Vector   Strategy = "vector"
	Sparse   Strategy = "sparse"
	Graph    Strategy = "graph"
	Fulltext Strategy = "fulltext"
)

// All returns every strategy in canonical order.
func All() []Strategy {
	return []Strategy{Vector, Sparse, Graph, Fulltext}
}

// IsValid reports whether s names a known strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case Vector, Sparse, Graph, Fulltext:
		return true
	}
	return false
}

func (s Strategy) String() string { return string(s) }

// Set is an enabled-strategy set.
type Set map[Strategy]bool

// AllEnabled returns a set with every strategy enabled.
func AllEnabled() Set {
	set := make(Set, 4)
	for _, s := range All() {
		set[s] = true
	}
	return set
}

// Enabled reports whether s is enabled in the set.
func (set Set) Enabled(s Strategy) bool { return set[s] }

// Count returns the number of enabled strategies.
func (set Set) Count() int {
	n := 0
	for _, s := range All() {
		if set[s] {
			n++
		}
	}
	return n
}
