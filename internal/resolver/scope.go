package resolver

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// ScopeID derives the stable scope attribute value for a component file,
// used to namespace scoped-style selectors and the matching template
// attributes. It hashes the root-relative path so the id survives restarts
// and differs between files with equal content.
func (r *Resolver) ScopeID(filePath string) string {
	rel, err := filepath.Rel(r.root, filePath)
	if err != nil {
		rel = filePath
	}
	sum := xxhash.Sum64String(filepath.ToSlash(rel))
	return fmt.Sprintf("data-v-%08x", uint32(sum))
}
