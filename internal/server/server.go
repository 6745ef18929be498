// Package server wires the development server: HTTP routes for on-demand
// compilation, the notification hub, the file watcher, and the invalidation
// engine that connects them.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/viaduct-dev/viaduct/internal/cache"
	"github.com/viaduct-dev/viaduct/internal/compiler"
	"github.com/viaduct-dev/viaduct/internal/config"
	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/hmr"
	"github.com/viaduct-dev/viaduct/internal/logging"
	"github.com/viaduct-dev/viaduct/internal/resolver"
	"github.com/viaduct-dev/viaduct/internal/rewrite"
	"github.com/viaduct-dev/viaduct/internal/validation"
	"github.com/viaduct-dev/viaduct/internal/watcher"
	"github.com/viaduct-dev/viaduct/internal/websocket"
)

// trackedExtensions are the file kinds whose changes can affect a running
// page; everything else the watcher sees is noise.
var trackedExtensions = []string{
	".vue", ".js", ".mjs", ".ts", ".jsx", ".tsx",
	".css", ".scss", ".sass", ".less", ".styl",
	".html", ".json",
}

// DevServer serves project files as native ES modules with hot reload.
type DevServer struct {
	config *config.Config
	logger logging.Logger

	resolver *resolver.Resolver
	cache    *cache.Cache
	service  compiler.Service
	rewriter *rewrite.Rewriter
	sink     *errors.DiagnosticSink
	engine   *hmr.Engine
	hub      *websocket.Hub
	watcher  *watcher.FileWatcher

	httpServer  *http.Server
	serverMutex sync.RWMutex

	started      time.Time
	shutdownOnce sync.Once
}

// Option customizes server assembly.
type Option func(*options)

type options struct {
	service compiler.Service
}

// WithCompilerService substitutes the compiler service, bypassing the
// configured external command.
func WithCompilerService(service compiler.Service) Option {
	return func(o *options) { o.service = service }
}

// New assembles a development server from configuration.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*DevServer, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	log := logger.WithComponent("server")

	var assembled options
	for _, opt := range opts {
		opt(&assembled)
	}

	res := resolver.New(resolver.Options{
		Root:         cfg.Root,
		PublicDir:    cfg.PublicDir,
		Aliases:      cfg.Resolve.Alias,
		Extensions:   cfg.Resolve.Extensions,
		ModuleDir:    cfg.Resolve.ModuleDir,
		OptimizedDir: cfg.Resolve.OptimizedDir,
		Logger:       logger,
	})

	service := assembled.service
	if service == nil {
		execService, err := compiler.NewExecService(
			cfg.Compiler.Command,
			cfg.Compiler.Args,
			logger,
			compiler.WithOptions(cfg.Compiler.Options),
		)
		if err != nil {
			return nil, fmt.Errorf("configuring compiler service: %w", err)
		}
		service = execService
	}

	artifactCache := cache.New(cfg.Cache.MaxEntries)
	sink := errors.NewDiagnosticSink()
	graph := hmr.NewGraph()
	hub := websocket.NewHub(newOriginValidator(cfg), logger)
	engine := hmr.NewEngine(res, artifactCache, graph, service, sink, hub, logger)

	rewriter := rewrite.New(res, logger)
	rewriter.OnImport = func(importee, importer string) {
		graph.Record(importee, importer)
	}

	fileWatcher, err := watcher.NewFileWatcher(res.Root(), cfg.Watch.Debounce(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &DevServer{
		config:   cfg,
		logger:   log,
		resolver: res,
		cache:    artifactCache,
		service:  service,
		rewriter: rewriter,
		sink:     sink,
		engine:   engine,
		hub:      hub,
		watcher:  fileWatcher,
		started:  time.Now(),
	}, nil
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *DevServer) Start(ctx context.Context) error {
	if s.config.HMR.Enabled {
		s.setupFileWatcher(ctx)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.buildHandler(),
	}
	httpServer := s.httpServer
	s.serverMutex.Unlock()

	if s.config.Server.Open {
		go s.openBrowser(ctx, fmt.Sprintf("http://%s", addr))
	}

	s.logger.Info(ctx, "dev server listening",
		"addr", addr,
		"root", s.resolver.Root(),
		"hmr", s.config.HMR.Enabled)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Handler returns the fully wired HTTP handler, exposed for tests.
func (s *DevServer) Handler() http.Handler {
	return s.buildHandler()
}

func (s *DevServer) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.HandleWebSocket)
	mux.HandleFunc(clientScriptPath, s.handleClientScript)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/", s.handleRequest)

	handler := s.corsMiddleware(mux)
	return s.loggingMiddleware(handler)
}

func (s *DevServer) setupFileWatcher(ctx context.Context) {
	s.watcher.AddDirFilter(watcher.IgnoreDirFilter(s.config.Watch.Ignore...))
	s.watcher.AddDirFilter(watcher.NoHiddenFilter)
	s.watcher.AddFilter(watcher.IgnoreDirFilter(s.config.Watch.Ignore...))
	s.watcher.AddFilter(watcher.NoHiddenFilter)
	s.watcher.AddFilter(watcher.ExtensionFilter(trackedExtensions...))
	s.watcher.AddHandler(func(events []watcher.ChangeEvent) error {
		return s.handleFileChanges(ctx, events)
	})

	if err := s.watcher.AddRecursive(s.resolver.Root()); err != nil {
		s.logger.Warn(ctx, err, "cannot watch project root")
	}
	if err := s.watcher.Start(ctx); err != nil {
		s.logger.Warn(ctx, err, "cannot start file watcher")
	}
}

func (s *DevServer) handleFileChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		s.logger.Debug(ctx, "file changed",
			"path", event.Path,
			"kind", event.Type.String())
		s.engine.HandleChange(ctx, event.Path)
	}
	return nil
}

func (s *DevServer) openBrowser(ctx context.Context, url string) {
	// Give the listener a moment to come up.
	time.Sleep(100 * time.Millisecond)

	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "not opening browser, url failed validation")
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		s.logger.Warn(ctx, err, "cannot open browser", "url", url)
	}
}

// Shutdown stops the watcher, then the hub, then the HTTP server. Safe to
// call more than once.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down")

		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn(ctx, err, "watcher stop failed")
		}

		if err := s.hub.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "hub shutdown failed")
		}

		s.serverMutex.RLock()
		httpServer := s.httpServer
		s.serverMutex.RUnlock()

		if httpServer != nil {
			shutdownErr = httpServer.Shutdown(ctx)
		}
	})

	return shutdownErr
}
