package tips

import (
	"github.com/captionflow/captionflow/pkg/models"
)

// Graph is an adjacency list over version IDs. Edges point from a version to
// its parents, which may live in another language (translation lineage).
type Graph struct {
	parents map[string][]string
	byID    map[string]*models.SubtitleVersion
}

// NewGraph builds the ancestry graph for a set of versions. Versions from
// multiple languages may be combined so cross-language edges resolve.
func NewGraph(versions ...[]*models.SubtitleVersion) *Graph {
	g := &Graph{
		parents: make(map[string][]string),
		byID:    make(map[string]*models.SubtitleVersion),
	}
	for _, vs := range versions {
		for _, v := range vs {
			g.byID[v.ID] = v
			g.parents[v.ID] = v.ParentIDs
		}
	}
	return g
}

// Version returns the version with the given ID, if known to the graph.
func (g *Graph) Version(id string) (*models.SubtitleVersion, bool) {
	v, ok := g.byID[id]
	return v, ok
}

// IsAncestor reports whether ancestorID is reachable from descendantID by
// following parent edges. The traversal is bounded by the number of known
// versions, so a malformed cycle cannot hang it.
func (g *Graph) IsAncestor(ancestorID, descendantID string) bool {
	if ancestorID == descendantID {
		return true
	}

	seen := make(map[string]bool, len(g.parents))
	stack := append([]string(nil), g.parents[descendantID]...)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		if id == ancestorID {
			return true
		}
		stack = append(stack, g.parents[id]...)
	}
	return false
}

// Lineage returns every ancestor ID reachable from the given version,
// excluding the version itself.
func (g *Graph) Lineage(id string) []string {
	seen := make(map[string]bool, len(g.parents))
	stack := append([]string(nil), g.parents[id]...)
	var out []string

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		stack = append(stack, g.parents[next]...)
	}
	return out
}
