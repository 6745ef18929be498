// Package internal contains the core implementation packages for viaduct.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the viaduct development server.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - resolver: bidirectional mapping between request paths and files,
//     package manifest entry resolution, and optimized-artifact lookup
//   - rewrite: ES module import scanning and specifier rewriting
//   - compiler: the external compiler subprocess protocol for parsing and
//     compiling single-file components
//   - cache: per-file multi-slot compilation cache with LRU eviction and
//     duplicate-work suppression
//   - hmr: change classification, invalidation diffing, and the importer
//     graph behind hot updates
//   - websocket: the notification hub pushing updates and compile errors
//     to connected pages
//   - watcher: debounced file system monitoring bound to the project root
//   - server: the HTTP surface tying resolution, compilation, and
//     notification together
//   - config: configuration loading, defaults, and validation
//   - errors: diagnostic types shared between the compiler protocol, the
//     error sink, and the browser overlay
//   - logging: the structured logging facade used by every component
//   - types: the parsed single-file component descriptor shared across
//     package boundaries
//
// # Inter-Package Communication
//
// The server owns assembly: it builds the resolver, rewriter, cache,
// compiler service, hub, and engine, and connects them through small
// interfaces defined by the consuming package. The hmr engine consumes
// watcher events and publishes through its Notifier interface, implemented
// by the websocket hub. The cache is the single holder of compiled
// artifacts; both the request path and the invalidation path go through it.
//
// For detailed documentation, see the individual package documentation.
package internal
