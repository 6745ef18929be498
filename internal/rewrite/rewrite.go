// Package rewrite transforms the import specifiers of served module sources
// into public request paths: bare identifiers move under the module
// namespace, relative paths are rebased onto the importer, and asset imports
// gain the ?import marker.
//
// Rewriting is two-tier. A regex fast path finds specifiers in one pass over
// the common statement shapes. Its findings are then checked against a real
// lexical scan of the same source; when the two disagree, the regex has
// either missed an import or matched text inside a comment or string, and
// the lexer's positions are used instead. The gate is an explicit comparison
// of the two tiers' findings, never an assumption that the fast path got it
// right.
package rewrite

import (
	"bytes"
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/viaduct-dev/viaduct/internal/logging"
)

// SpecifierResolver maps one import specifier to the specifier emitted in
// rewritten output. *resolver.Resolver satisfies it.
type SpecifierResolver interface {
	RewriteSpecifier(id, importerRequestPath string) string
}

// Rewriter rewrites module sources for serving.
type Rewriter struct {
	resolver SpecifierResolver
	logger   logging.Logger

	// OnImport, when set, receives one call per rewritten specifier with
	// the emitted public path (query stripped) and the importer's request
	// path. The server wires this to the importer graph.
	OnImport func(importee, importer string)
}

// New constructs a Rewriter around a specifier resolver.
func New(res SpecifierResolver, logger logging.Logger) *Rewriter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Rewriter{
		resolver: res,
		logger:   logger.WithComponent("rewrite"),
	}
}

// fastImportRE matches the specifier of static imports, re-exports with a
// from clause, side-effect imports, and literal dynamic imports. Group 2 is
// the specifier text.
var fastImportRE = regexp.MustCompile(
	`(?:\b(?:import|export)\b[^'";()]*?\bfrom\s*|\bimport\s*\(\s*|\bimport\s+)(['"])([^'"\n]+)['"]`)

// Rewrite maps every import specifier in a module source served at
// importerRequestPath and returns the transformed source together with the
// emitted public paths, in order of appearance. Sources without imports come
// back unchanged.
func (rw *Rewriter) Rewrite(source []byte, importerRequestPath string) ([]byte, []string) {
	refs := fastScan(source)
	trueRefs := scanImports(source)

	if !refsMatch(refs, trueRefs) {
		rw.logger.Debug(context.Background(), "fast-path scan disagreed with the lexical scan, using lexer positions",
			"importer", importerRequestPath,
			"fast", len(refs),
			"lexed", len(trueRefs))
		refs = trueRefs
	}
	if len(refs) == 0 {
		return source, nil
	}

	out, emitted := rw.splice(source, refs, importerRequestPath)
	if rw.OnImport != nil {
		for _, importee := range emitted {
			rw.OnImport(importee, importerRequestPath)
		}
	}
	return out, emitted
}

// fastScan is the regex tier, producing refs in the lexer's shape.
func fastScan(source []byte) []importRef {
	matches := fastImportRE.FindAllSubmatchIndex(source, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]importRef, 0, len(matches))
	for _, m := range matches {
		specStart, specEnd := m[4], m[5]
		refs = append(refs, importRef{
			specStart: specStart,
			specEnd:   specEnd,
			specifier: string(source[specStart:specEnd]),
		})
	}
	return refs
}

// refsMatch reports whether both tiers found the same specifiers at the same
// positions. Any difference means the regex over- or under-matched.
func refsMatch(a, b []importRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// splice substitutes the resolved specifier at each ref position and
// collects the emitted public paths, query stripped.
func (rw *Rewriter) splice(source []byte, refs []importRef, importer string) ([]byte, []string) {
	var out bytes.Buffer
	out.Grow(len(source) + 64)
	emitted := make([]string, 0, len(refs))

	last := 0
	for _, ref := range refs {
		resolved := rw.resolver.RewriteSpecifier(ref.specifier, importer)
		out.Write(source[last:ref.specStart])
		out.WriteString(resolved)
		last = ref.specEnd

		if public := publicPathOf(resolved); strings.HasPrefix(public, "/") {
			emitted = append(emitted, public)
		}
	}
	out.Write(source[last:])
	return out.Bytes(), emitted
}

// publicPathOf strips the query from an emitted specifier so graph edges and
// callers key on the pathname alone.
func publicPathOf(emitted string) string {
	if i := strings.IndexByte(emitted, '?'); i >= 0 {
		emitted = emitted[:i]
	}
	return path.Clean(emitted)
}
