package resolver

import (
	"path"
	"path/filepath"
	"sync"
)

// optimizedLookup answers whether a pre-bundled artifact exists for an
// identifier. The directory is fixed at construction and may not exist.
// Hits are memoized permanently; misses are never memoized, so an artifact
// written by a pre-bundling run while the server is up becomes visible on
// the next lookup.
type optimizedLookup struct {
	dir string

	mu   sync.RWMutex
	hits map[string]string
}

func newOptimizedLookup(dir string) *optimizedLookup {
	return &optimizedLookup{
		dir:  dir,
		hits: make(map[string]string),
	}
}

func (o *optimizedLookup) artifact(id string) (string, bool) {
	o.mu.RLock()
	file, ok := o.hits[id]
	o.mu.RUnlock()
	if ok {
		return file, true
	}

	candidates := []string{filepath.Join(o.dir, filepath.FromSlash(id))}
	if path.Ext(id) == "" {
		candidates = append(candidates, filepath.Join(o.dir, filepath.FromSlash(id)+".js"))
	}
	for _, candidate := range candidates {
		if isFile(candidate) {
			o.mu.Lock()
			o.hits[id] = candidate
			o.mu.Unlock()
			return candidate, true
		}
	}
	return "", false
}
