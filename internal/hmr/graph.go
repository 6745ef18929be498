package hmr

import "sync"

// Graph is the process-wide importer graph: importee request path to the
// set of request paths that import it. It is append-only and never pruned;
// a stale edge at worst lets an unused file's change through to the diff,
// which then finds nothing to notify. Long sessions grow the graph, so its
// size is exported as an observability signal instead of inventing an
// eviction policy.
type Graph struct {
	mu        sync.RWMutex
	importers map[string]map[string]struct{}
	edges     int
}

// NewGraph creates an empty importer graph.
func NewGraph() *Graph {
	return &Graph{importers: make(map[string]map[string]struct{})}
}

// Record adds the edge importee <- importer. Duplicate edges are no-ops.
func (g *Graph) Record(importee, importer string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.importers[importee]
	if !ok {
		set = make(map[string]struct{})
		g.importers[importee] = set
	}
	if _, ok := set[importer]; !ok {
		set[importer] = struct{}{}
		g.edges++
	}
}

// HasImporters reports whether any importer was ever recorded for a path.
func (g *Graph) HasImporters(importee string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.importers[importee]) > 0
}

// Importers returns the recorded importers of a path.
func (g *Graph) Importers(importee string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.importers[importee]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for importer := range set {
		out = append(out, importer)
	}
	return out
}

// Size returns the total number of recorded edges.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}
