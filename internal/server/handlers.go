package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/viaduct-dev/viaduct/internal/cache"
	"github.com/viaduct-dev/viaduct/internal/compiler"
	"github.com/viaduct-dev/viaduct/internal/errors"
)

const (
	contentTypeJS   = "application/javascript; charset=utf-8"
	contentTypeCSS  = "text/css; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"
)

func isSourceExt(ext string) bool {
	switch ext {
	case ".js", ".mjs", ".ts", ".jsx", ".tsx":
		return true
	}
	return false
}

func isStyleExt(ext string) bool {
	switch ext {
	case ".css", ".scss", ".sass", ".less", ".styl":
		return true
	}
	return false
}

func wantsImport(r *http.Request) bool {
	return r.URL.Query().Has("import")
}

// handleRequest dispatches on the resolved file's extension. The request
// path decides nothing by itself; an extensionless request is served as
// whatever the resolver probed it to.
func (s *DevServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestPath := r.URL.Path
	if requestPath == "/" || strings.HasSuffix(requestPath, ".html") {
		s.handleHTML(w, r)
		return
	}

	filePath := s.resolver.ResolveToFile(requestPath)
	ext := strings.ToLower(filepath.Ext(filePath))

	switch {
	case ext == ".vue":
		s.handleComponent(w, r, filePath, requestPath)
	case isSourceExt(ext):
		s.handleModule(w, r, filePath, requestPath)
	case isStyleExt(ext):
		s.handleStyle(w, r, filePath, requestPath, ext)
	case ext == ".json" && wantsImport(r):
		s.handleJSONModule(w, r, filePath, requestPath)
	case wantsImport(r):
		s.handleAssetModule(w, r, requestPath)
	default:
		s.handleStatic(w, r, filePath, requestPath)
	}
}

// handleModule serves a source file as an ES module with its import
// specifiers rewritten. The rewritten form is cached; the rewriter's import
// callback records graph edges on the first compilation.
func (s *DevServer) handleModule(w http.ResponseWriter, r *http.Request, filePath, requestPath string) {
	slot, err := s.cache.MainModule(r.Context(), filePath, func(context.Context) (*cache.Slot, error) {
		source, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, errors.NewNotFound(requestPath, filePath)
		}
		code, _ := s.rewriter.Rewrite(source, requestPath)
		return &cache.Slot{Code: code}, nil
	})
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}
	writeConditional(w, r, contentTypeJS, slot.Code)
}

// handleStyle serves a stylesheet. Preprocessor sources are compiled through
// the compiler service; the cached slot always holds finished CSS. The
// ?import marker selects the JS wrapper that installs the stylesheet and
// participates in hot updates.
func (s *DevServer) handleStyle(w http.ResponseWriter, r *http.Request, filePath, requestPath, ext string) {
	slot, err := s.cache.MainModule(r.Context(), filePath, func(ctx context.Context) (*cache.Slot, error) {
		source, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, errors.NewNotFound(requestPath, filePath)
		}
		if ext == ".css" {
			return &cache.Slot{Code: source}, nil
		}
		return s.compileStandaloneStyle(ctx, source, filePath, ext)
	})
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}

	if wantsImport(r) {
		writeConditional(w, r, contentTypeJS, styleModuleJS(requestPath, slot.Code, nil))
		return
	}
	writeConditional(w, r, contentTypeCSS, slot.Code)
}

func (s *DevServer) compileStandaloneStyle(ctx context.Context, source []byte, filePath, ext string) (*cache.Slot, error) {
	opts := make(map[string]interface{}, len(s.config.Compiler.Options)+1)
	for k, v := range s.config.Compiler.Options {
		opts[k] = v
	}
	opts["lang"] = strings.TrimPrefix(ext, ".")

	result, err := s.service.CompileStyle(ctx, compiler.StyleRequest{
		Source:   string(source),
		Filename: filePath,
		Index:    -1,
		Options:  opts,
	})
	if err != nil {
		return nil, err
	}
	s.recordDiagnostics(filePath, result.Diagnostics)
	return &cache.Slot{Code: []byte(result.Code)}, nil
}

// handleJSONModule serves a JSON file as an ES module default export. The
// slot caches the raw document; the wrapper is rebuilt per response because
// the same file is also served statically without the marker.
func (s *DevServer) handleJSONModule(w http.ResponseWriter, r *http.Request, filePath, requestPath string) {
	slot, err := s.cache.MainModule(r.Context(), filePath, func(context.Context) (*cache.Slot, error) {
		source, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, errors.NewNotFound(requestPath, filePath)
		}
		return &cache.Slot{Code: source}, nil
	})
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}

	var module []byte
	module = append(module, "export default "...)
	module = append(module, slot.Code...)
	module = append(module, '\n')
	writeConditional(w, r, contentTypeJS, module)
}

// handleAssetModule serves the ?import form of a non-code asset: a module
// whose default export is the asset's public URL.
func (s *DevServer) handleAssetModule(w http.ResponseWriter, r *http.Request, requestPath string) {
	url, err := json.Marshal(requestPath)
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}
	module := append([]byte("export default "), url...)
	module = append(module, '\n')
	writeConditional(w, r, contentTypeJS, module)
}

func (s *DevServer) handleStatic(w http.ResponseWriter, r *http.Request, filePath, requestPath string) {
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		s.writeError(w, r, requestPath, errors.NewNotFound(requestPath, filePath))
		return
	}
	http.ServeFile(w, r, filePath)
}

// styleModuleJS builds the JS module that installs a stylesheet through the
// client runtime. The style id stays stable across cache-busting queries so
// hot updates replace the same tag.
func styleModuleJS(styleID string, css []byte, moduleMap map[string]string) []byte {
	id, _ := json.Marshal(styleID)
	content, _ := json.Marshal(string(css))

	var b strings.Builder
	b.WriteString("import { updateStyle } from \"" + clientScriptPath + "\"\n")
	b.WriteString("updateStyle(")
	b.Write(id)
	b.WriteString(", ")
	b.Write(content)
	b.WriteString(")\n")
	if moduleMap != nil {
		mapping, _ := json.Marshal(moduleMap)
		b.WriteString("export default ")
		b.Write(mapping)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func (s *DevServer) recordDiagnostics(filePath string, diagnostics []errors.Diagnostic) {
	if len(diagnostics) == 0 {
		return
	}
	s.sink.Record(filePath, diagnostics)
}

// writeError maps the error taxonomy onto HTTP responses. Parse failures are
// sent as JSON so the client overlay can render the diagnostics.
func (s *DevServer) writeError(w http.ResponseWriter, r *http.Request, requestPath string, err error) {
	var parseErr *errors.ParseError
	switch {
	case errors.IsNotFound(err):
		s.logger.Debug(r.Context(), "not found", "path", requestPath)
		http.Error(w, err.Error(), http.StatusNotFound)
	case stderrors.As(err, &parseErr):
		s.logger.Warn(r.Context(), err, "compile failed", "path", requestPath)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":       "compile-error",
			"path":        requestPath,
			"diagnostics": parseErr.Diagnostics,
		})
	default:
		s.logger.Error(r.Context(), err, "request failed", "path", requestPath)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
