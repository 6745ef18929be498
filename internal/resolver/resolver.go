// Package resolver maps browser request paths onto file-system paths and
// back. It owns the alias table, the extension probing rules, bare-specifier
// handling for the /@modules/ namespace, package entry resolution, and the
// optimized-artifact shortcut. One Resolver is constructed per server
// lifetime and shared by every handler; all of its memoization lives behind
// its own locks.
package resolver

import (
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viaduct-dev/viaduct/internal/config"
	"github.com/viaduct-dev/viaduct/internal/logging"
)

// ModulePrefix is the reserved namespace for bare module imports. A request
// below this prefix is resolved against installed packages and optimized
// artifacts instead of the project tree.
const ModulePrefix = "/@modules/"

// Options configures a Resolver. Zero values fall back to the defaults used
// throughout viaduct.
type Options struct {
	// Root is the project root directory; relative values are made absolute.
	Root string
	// PublicDir is the static-assets directory, relative to Root.
	PublicDir string
	// Aliases maps exact request paths or bare identifiers to replacements.
	Aliases map[string]string
	// Extensions is the ordered probe list for extensionless paths.
	Extensions []string
	// ModuleDir is the package installation directory name, usually
	// node_modules.
	ModuleDir string
	// OptimizedDir is the pre-bundled artifact directory, relative to Root.
	OptimizedDir string
	// Custom holds externally registered resolvers, consulted in order
	// before the built-in rules.
	Custom []Custom
	// Logger receives resolution diagnostics.
	Logger logging.Logger
}

// Resolver is the bidirectional mapping between public request paths and
// file-system paths. Both directions memoize by raw input for the process
// lifetime; entries are never evicted, which bounds growth by the number of
// distinct paths ever seen.
type Resolver struct {
	root       string
	publicDir  string
	moduleDir  string
	aliases    map[string]string
	extensions []string
	custom     []Custom
	logger     logging.Logger

	optimized *optimizedLookup

	mu sync.RWMutex
	// toFileMemo and toRequestMemo cache completed resolutions keyed by raw
	// input.
	toFileMemo    map[string]string
	toRequestMemo map[string]string
	// deepImports maps a composed module path (id/relative/entry.js) to its
	// file, registered when a package entry resolves so a later exact deep
	// import is O(1).
	deepImports map[string]string
	// reverseModule maps resolved module files back to their public request
	// paths, consulted by ResolveToRequest before the root-relative default.
	reverseModule map[string]string
	// packages memoizes package resolution per identifier. Misses are not
	// stored so a package installed mid-session resolves without a restart.
	packages map[string]*PackageEntry
}

// New constructs a Resolver rooted at opts.Root, normalized to an absolute
// path so file paths from the watcher and request resolution compare equal.
func New(opts Options) *Resolver {
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = config.DefaultExtensions
	}
	if opts.ModuleDir == "" {
		opts.ModuleDir = "node_modules"
	}
	if opts.PublicDir == "" {
		opts.PublicDir = "public"
	}
	if opts.OptimizedDir == "" {
		opts.OptimizedDir = filepath.Join("node_modules", ".viaduct")
	}

	return &Resolver{
		root:          opts.Root,
		publicDir:     opts.PublicDir,
		moduleDir:     opts.ModuleDir,
		aliases:       opts.Aliases,
		extensions:    opts.Extensions,
		custom:        opts.Custom,
		logger:        opts.Logger.WithComponent("resolver"),
		optimized:     newOptimizedLookup(filepath.Join(opts.Root, opts.OptimizedDir)),
		toFileMemo:    make(map[string]string),
		toRequestMemo: make(map[string]string),
		deepImports:   make(map[string]string),
		reverseModule: make(map[string]string),
		packages:      make(map[string]*PackageEntry),
	}
}

// Root returns the absolute project root the resolver was built with.
func (r *Resolver) Root() string { return r.root }

// Extensions returns the configured probe order.
func (r *Resolver) Extensions() []string { return r.extensions }

// ResolveToFile maps a public request path to a file-system path. Precedence:
// custom resolvers, exact alias match, then the built-in default (module
// namespace, public directory, project root) followed by extension probing.
// It never fails; an unresolved path degrades to a best-effort join under the
// root and the eventual file read reports the miss.
func (r *Resolver) ResolveToFile(requestPath string) string {
	r.mu.RLock()
	if cached, ok := r.toFileMemo[requestPath]; ok {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	resolved := r.resolveToFileUncached(requestPath)

	r.mu.Lock()
	r.toFileMemo[requestPath] = resolved
	r.mu.Unlock()
	return resolved
}

func (r *Resolver) resolveToFileUncached(requestPath string) string {
	for _, c := range r.custom {
		if rf, ok := c.(RequestToFile); ok {
			if file, handled := rf.RequestToFile(requestPath); handled {
				return file
			}
		}
	}

	if target, ok := r.aliases[requestPath]; ok {
		return r.aliasTargetToFile(target)
	}

	if id, ok := strings.CutPrefix(requestPath, ModulePrefix); ok {
		return r.moduleToFile(id)
	}

	trimmed := strings.TrimPrefix(requestPath, "/")
	if public := filepath.Join(r.root, r.publicDir, filepath.FromSlash(trimmed)); isFile(public) {
		return public
	}

	base := filepath.Join(r.root, filepath.FromSlash(trimmed))
	if probed, ok := probePath(base, r.extensions); ok {
		return probed
	}
	return base
}

// aliasTargetToFile interprets an alias value: absolute values are file
// paths, everything else is joined under the root.
func (r *Resolver) aliasTargetToFile(target string) string {
	if filepath.IsAbs(target) {
		if probed, ok := probePath(target, r.extensions); ok {
			return probed
		}
		return target
	}
	base := filepath.Join(r.root, filepath.FromSlash(strings.TrimPrefix(target, "/")))
	if probed, ok := probePath(base, r.extensions); ok {
		return probed
	}
	return base
}

// ResolveToRequest maps a file-system path back to a public request path.
// Precedence: custom resolvers, the reverse table populated by prior package
// resolutions, then the root-relative default with URL separators.
func (r *Resolver) ResolveToRequest(filePath string) string {
	r.mu.RLock()
	if cached, ok := r.toRequestMemo[filePath]; ok {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	resolved := r.resolveToRequestUncached(filePath)

	r.mu.Lock()
	r.toRequestMemo[filePath] = resolved
	r.mu.Unlock()
	return resolved
}

func (r *Resolver) resolveToRequestUncached(filePath string) string {
	for _, c := range r.custom {
		if fr, ok := c.(FileToRequest); ok {
			if request, handled := fr.FileToRequest(filePath); handled {
				return request
			}
		}
	}

	r.mu.RLock()
	registered, ok := r.reverseModule[filePath]
	r.mu.RUnlock()
	if ok {
		return registered
	}

	rel, err := filepath.Rel(r.root, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filePath)
	}
	return "/" + filepath.ToSlash(rel)
}

// ResolveAlias looks up an identifier in the alias table, then asks custom
// resolvers. The bool reports whether anything matched; a matched empty
// string is still a match.
func (r *Resolver) ResolveAlias(id string) (string, bool) {
	if target, ok := r.aliases[id]; ok {
		return target, true
	}
	for _, c := range r.custom {
		if a, ok := c.(Aliaser); ok {
			if target, handled := a.Alias(id); handled {
				return target, true
			}
		}
	}
	return "", false
}

// moduleToFile resolves the part of a request path after ModulePrefix.
// Optimized artifacts shadow everything else, then exact registered deep
// imports, then package entry resolution, then a probing walk into the
// module directory, and finally a best-effort join so the caller's read
// produces the not-found.
func (r *Resolver) moduleToFile(id string) string {
	if artifact, ok := r.optimized.artifact(id); ok {
		return artifact
	}

	r.mu.RLock()
	file, ok := r.deepImports[id]
	r.mu.RUnlock()
	if ok {
		return file
	}

	pkgID, rest := splitPackageID(id)
	if rest == "" {
		if entry, ok := r.Package(pkgID); ok && entry.EntryFilePath != "" {
			return entry.EntryFilePath
		}
	} else if pkgDir, ok := r.findPackageDir(pkgID); ok {
		base := filepath.Join(pkgDir, filepath.FromSlash(rest))
		if probed, ok := probePath(base, r.extensions); ok {
			return probed
		}
		return base
	}

	base := filepath.Join(r.root, r.moduleDir, filepath.FromSlash(id))
	if probed, ok := probePath(base, r.extensions); ok {
		return probed
	}
	return base
}

// OptimizedArtifact reports the pre-bundled file for an identifier, if one
// exists. Hits are memoized for the process lifetime; misses are re-checked
// every time so artifacts produced mid-session become visible.
func (r *Resolver) OptimizedArtifact(id string) (string, bool) {
	return r.optimized.artifact(id)
}

// splitPackageID separates a module identifier into its package id and the
// deep path beyond it. Scoped packages keep their two leading segments.
func splitPackageID(id string) (pkgID, rest string) {
	segments := strings.Split(id, "/")
	keep := 1
	if strings.HasPrefix(id, "@") && len(segments) > 1 {
		keep = 2
	}
	if len(segments) <= keep {
		return id, ""
	}
	return strings.Join(segments[:keep], "/"), strings.Join(segments[keep:], "/")
}

// requestDir returns the request-space directory of a public path, for
// resolving relative imports against their importer.
func requestDir(requestPath string) string {
	dir := path.Dir(requestPath)
	if dir == "." {
		return "/"
	}
	return dir
}
