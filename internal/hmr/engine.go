package hmr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/viaduct-dev/viaduct/internal/cache"
	"github.com/viaduct-dev/viaduct/internal/compiler"
	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/logging"
	"github.com/viaduct-dev/viaduct/internal/types"
)

// RequestMapper maps absolute file paths onto public request paths.
// *resolver.Resolver satisfies it.
type RequestMapper interface {
	ResolveToRequest(filePath string) string
}

// Notifier delivers decided updates to connected clients.
type Notifier interface {
	SendReload(ev types.ReloadEvent)
	SendCompileError(path string, diagnostics []errors.Diagnostic)
	ClearCompileError(path string)
}

// Engine turns debounced file-change events into client notifications. It
// owns the invalidation sequence: map the path, check the file is in use,
// drop the cache entry, diff old against new, and emit the minimal updates.
type Engine struct {
	mapper   RequestMapper
	cache    *cache.Cache
	graph    *Graph
	service  compiler.Service
	sink     *errors.DiagnosticSink
	notifier Notifier
	logger   logging.Logger
}

// NewEngine wires the invalidation engine.
func NewEngine(mapper RequestMapper, c *cache.Cache, g *Graph, service compiler.Service, sink *errors.DiagnosticSink, notifier Notifier, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		mapper:   mapper,
		cache:    c,
		graph:    g,
		service:  service,
		sink:     sink,
		notifier: notifier,
		logger:   logger.WithComponent("hmr"),
	}
}

// Graph exposes the importer graph for edge recording and stats.
func (e *Engine) Graph() *Graph { return e.graph }

// HandleChange processes one change event for an absolute file path and
// returns the notifications it sent.
func (e *Engine) HandleChange(ctx context.Context, filePath string) []types.ReloadEvent {
	requestPath := e.mapper.ResolveToRequest(filePath)
	ext := strings.ToLower(filepath.Ext(filePath))

	// Entry documents are not modules; the graph cannot see them, so they
	// skip the in-use check and always reload.
	if ext == ".html" {
		e.cache.Invalidate(filePath)
		return e.send(ctx, requestPath, []Update{{Action: types.ActionFullReload, Index: -1}})
	}

	_, cached := e.cache.Peek(filePath)
	if !cached && !e.graph.HasImporters(requestPath) {
		e.logger.Debug(ctx, "change for file that was never served, skipping",
			"path", requestPath)
		return nil
	}

	prior := e.cache.Invalidate(filePath)

	switch {
	case ext == ".vue":
		return e.handleComponentChange(ctx, filePath, requestPath, prior)
	case isStyleExt(ext):
		return e.send(ctx, requestPath, []Update{{Action: types.ActionStyleUpdate, Index: -1}})
	default:
		// A script's side effects already ran in the client; there is no
		// safe in-place replacement.
		return e.send(ctx, requestPath, []Update{{Action: types.ActionFullReload, Index: -1}})
	}
}

func (e *Engine) handleComponentChange(ctx context.Context, filePath, requestPath string, prior *cache.Artifact) []types.ReloadEvent {
	var prev *types.Descriptor
	if prior != nil {
		prev = prior.Descriptor
	}
	if prev == nil {
		e.logger.Debug(ctx, "component changed before it was ever parsed, skipping",
			"path", requestPath)
		return nil
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		e.logger.Warn(ctx, err, "changed component is unreadable, forcing reload",
			"path", requestPath)
		return e.send(ctx, requestPath, []Update{{Action: types.ActionFullReload, Index: -1}})
	}

	result, err := e.service.Parse(ctx, source, filePath)
	if err != nil {
		// No notification is emitted for unparsable content; the next
		// request retries, and the overlay tells the developer why.
		diagnostics := errors.DiagnosticsFrom(filePath, err)
		e.sink.Record(filePath, diagnostics)
		e.logger.Warn(ctx, err, "changed component failed to parse",
			"path", requestPath)
		if e.notifier != nil {
			e.notifier.SendCompileError(requestPath, diagnostics)
		}
		return nil
	}

	if e.sink.Resolve(filePath) && e.notifier != nil {
		e.notifier.ClearCompileError(requestPath)
	}

	updates := DiffDescriptors(prev, result.Descriptor)
	if len(updates) == 0 {
		e.logger.Debug(ctx, "component content is equivalent, nothing to notify",
			"path", requestPath)
		return nil
	}
	return e.send(ctx, requestPath, updates)
}

func (e *Engine) send(ctx context.Context, requestPath string, updates []Update) []types.ReloadEvent {
	now := time.Now()
	events := make([]types.ReloadEvent, 0, len(updates))
	for _, u := range updates {
		ev := types.ReloadEvent{
			Action:    u.Action,
			Path:      requestPath,
			Index:     u.Index,
			Timestamp: now,
		}
		events = append(events, ev)
		if e.notifier != nil {
			e.notifier.SendReload(ev)
		}
		e.logger.Info(ctx, "hmr update",
			"action", string(u.Action),
			"path", requestPath,
			"index", u.Index)
	}
	return events
}

func isStyleExt(ext string) bool {
	switch ext {
	case ".css", ".scss", ".sass", ".less", ".styl":
		return true
	}
	return false
}
