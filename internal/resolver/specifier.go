package resolver

import (
	"context"
	"path"
	"strings"
)

// ImportMarker is the query appended to asset imports so the router serves
// them as modules instead of raw files.
const ImportMarker = "import"

// RewriteSpecifier maps an import specifier found in the source served at
// importerRequestPath to the specifier emitted in rewritten output. Bare
// identifiers move under ModulePrefix, with an optimized artifact shadowing
// package resolution; relative identifiers are rebased onto the importer's
// request directory; asset imports gain the ?import marker. The result is
// always usable, degraded cases are logged and fall back to the raw
// identifier.
func (r *Resolver) RewriteSpecifier(id, importerRequestPath string) string {
	if isExternalURL(id) || strings.HasPrefix(id, ModulePrefix) {
		return id
	}

	if target, ok := r.ResolveAlias(id); ok && target != "" {
		id = target
	}

	if isBareSpecifier(id) {
		return r.rewriteBare(id, importerRequestPath)
	}
	return r.rewritePathImport(id, importerRequestPath)
}

func (r *Resolver) rewriteBare(id, importer string) string {
	ctx := context.Background()

	if _, ok := r.optimized.artifact(id); ok {
		return ModulePrefix + id
	}

	pkgID, rest := splitPackageID(id)
	if rest == "" {
		entry, ok := r.Package(id)
		switch {
		case ok && entry.EntryRequestPath != "":
			return ModulePrefix + entry.EntryRequestPath
		case ok:
			r.logger.Warn(ctx, nil, "package manifest declares no usable entry, serving raw identifier",
				"package", id, "importer", importer)
		}
		return ModulePrefix + id
	}

	if _, ok := r.optimized.artifact(pkgID); ok {
		r.logger.Info(ctx, "deep import bypasses the pre-bundled artifact and may load duplicated module state",
			"import", id, "package", pkgID, "importer", importer)
	}
	return ModulePrefix + id
}

func (r *Resolver) rewritePathImport(id, importer string) string {
	pathname, query := splitQuery(id)

	resolved := pathname
	if !strings.HasPrefix(pathname, "/") {
		resolved = path.Join(requestDir(importer), pathname)
	}

	if ext := path.Ext(resolved); ext != "" && !hasSourceExt(resolved) && !queryHas(query, ImportMarker) {
		query = appendQuery(query, ImportMarker)
	}
	if query != "" {
		return resolved + "?" + query
	}
	return resolved
}

func queryHas(query, param string) bool {
	for _, part := range strings.Split(query, "&") {
		if part == param {
			return true
		}
	}
	return false
}

func isBareSpecifier(id string) bool {
	return id != "" && !strings.HasPrefix(id, "/") && !strings.HasPrefix(id, "./") &&
		!strings.HasPrefix(id, "../") && id != "." && id != ".."
}

func isExternalURL(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") ||
		strings.HasPrefix(id, "data:") || strings.HasPrefix(id, "//")
}

func splitQuery(id string) (pathname, query string) {
	if i := strings.IndexByte(id, '?'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, ""
}

func appendQuery(query, param string) string {
	if query == "" {
		return param
	}
	return query + "&" + param
}
