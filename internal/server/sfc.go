package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/viaduct-dev/viaduct/internal/cache"
	"github.com/viaduct-dev/viaduct/internal/compiler"
	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/types"
)

// handleComponent routes a single-file component request to the slot the
// query names. A bare request serves the composed main module; ?type=template
// and ?type=style&index=N serve the individually compiled blocks the main
// module imports.
func (s *DevServer) handleComponent(w http.ResponseWriter, r *http.Request, filePath, requestPath string) {
	query := r.URL.Query()
	switch query.Get("type") {
	case "template":
		s.handleTemplateSlot(w, r, filePath, requestPath)
	case "style":
		index, err := strconv.Atoi(query.Get("index"))
		if err != nil || index < 0 {
			http.Error(w, "invalid style index", http.StatusBadRequest)
			return
		}
		s.handleStyleSlot(w, r, filePath, requestPath, index)
	default:
		s.handleComponentModule(w, r, filePath, requestPath)
	}
}

// componentDescriptor parses the component through the cache. Parse failures
// feed the diagnostic sink and the overlay; a successful parse clears any
// prior failure for the same file.
func (s *DevServer) componentDescriptor(ctx context.Context, filePath, requestPath string) (*types.Descriptor, error) {
	return s.cache.Descriptor(ctx, filePath, func(ctx context.Context) (*types.Descriptor, error) {
		source, err := os.ReadFile(filePath)
		if err != nil {
			return nil, errors.NewNotFound(requestPath, filePath)
		}
		result, err := s.service.Parse(ctx, source, filePath)
		if err != nil {
			diagnostics := errors.DiagnosticsFrom(filePath, err)
			s.sink.Record(filePath, diagnostics)
			s.hub.SendCompileError(requestPath, diagnostics)
			return nil, err
		}
		if s.sink.Resolve(filePath) {
			s.hub.ClearCompileError(requestPath)
		}
		return result.Descriptor, nil
	})
}

func (s *DevServer) handleComponentModule(w http.ResponseWriter, r *http.Request, filePath, requestPath string) {
	descriptor, err := s.componentDescriptor(r.Context(), filePath, requestPath)
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}

	slot, err := s.cache.MainModule(r.Context(), filePath, func(context.Context) (*cache.Slot, error) {
		return s.composeComponentModule(descriptor, filePath, requestPath)
	})
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}
	writeConditional(w, r, contentTypeJS, slot.Code)
}

// composeComponentModule assembles the glue module that re-exports the script
// block with the compiled template and styles attached. ES imports hoist, so
// slot imports may interleave with assignment statements.
func (s *DevServer) composeComponentModule(descriptor *types.Descriptor, filePath, requestPath string) (*cache.Slot, error) {
	var b strings.Builder

	if descriptor.HasScript() {
		rewritten, _ := s.rewriter.Rewrite([]byte(descriptor.Script.Content), requestPath)
		script := string(rewritten)
		exported := strings.Contains(script, "export default")
		if exported {
			script = strings.Replace(script, "export default", "const __script =", 1)
		}
		b.WriteString(script)
		if !strings.HasSuffix(script, "\n") {
			b.WriteString("\n")
		}
		if !exported {
			b.WriteString("const __script = {}\n")
		}
	} else {
		b.WriteString("const __script = {}\n")
	}

	type moduleBinding struct {
		name  string
		index int
	}
	var bindings []moduleBinding
	for i, style := range descriptor.Styles {
		slotPath := fmt.Sprintf("%s?type=style&index=%d", requestPath, i)
		if style.Module {
			fmt.Fprintf(&b, "import __style%d from %q\n", i, slotPath)
			bindings = append(bindings, moduleBinding{name: cssModuleBinding(style), index: i})
		} else {
			fmt.Fprintf(&b, "import %q\n", slotPath)
		}
	}
	if len(bindings) > 0 {
		b.WriteString("__script.__cssModules = {\n")
		for _, binding := range bindings {
			fmt.Fprintf(&b, "  %s: __style%d,\n", strconv.Quote(binding.name), binding.index)
		}
		b.WriteString("}\n")
	}

	if descriptor.HasTemplate() {
		fmt.Fprintf(&b, "import { render as __render } from %q\n", requestPath+"?type=template")
		b.WriteString("__script.render = __render\n")
	}

	if descriptor.HasScopedStyles() {
		fmt.Fprintf(&b, "__script.__scopeId = %q\n", s.resolver.ScopeID(filePath))
	}
	fmt.Fprintf(&b, "__script.__hmrId = %q\n", requestPath)
	b.WriteString("export default __script\n")

	return &cache.Slot{Code: []byte(b.String())}, nil
}

// cssModuleBinding returns the script-side name a CSS-module mapping binds
// to: the module attribute's value, or $style when the attribute is bare.
func cssModuleBinding(style types.StyleBlock) string {
	name := style.Attrs["module"]
	if name == "" || name == "true" {
		return "$style"
	}
	return name
}

func (s *DevServer) handleTemplateSlot(w http.ResponseWriter, r *http.Request, filePath, requestPath string) {
	descriptor, err := s.componentDescriptor(r.Context(), filePath, requestPath)
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}
	if !descriptor.HasTemplate() {
		http.Error(w, "component has no template", http.StatusNotFound)
		return
	}

	slot, err := s.cache.Template(r.Context(), filePath, func(ctx context.Context) (*cache.Slot, error) {
		scopeID := ""
		if descriptor.HasScopedStyles() {
			scopeID = s.resolver.ScopeID(filePath)
		}
		result, err := s.service.CompileTemplate(ctx, compiler.TemplateRequest{
			Source:   descriptor.Template.Content,
			Filename: filePath,
			ScopeID:  scopeID,
		})
		if err != nil {
			return nil, err
		}
		s.recordDiagnostics(filePath, result.Diagnostics)
		code, _ := s.rewriter.Rewrite([]byte(result.Code), requestPath)
		return &cache.Slot{Code: code}, nil
	})
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}
	writeConditional(w, r, contentTypeJS, slot.Code)
}

func (s *DevServer) handleStyleSlot(w http.ResponseWriter, r *http.Request, filePath, requestPath string, index int) {
	descriptor, err := s.componentDescriptor(r.Context(), filePath, requestPath)
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}
	if index >= len(descriptor.Styles) {
		http.Error(w, "style index out of range", http.StatusNotFound)
		return
	}
	style := descriptor.Styles[index]

	slot, err := s.cache.Style(r.Context(), filePath, index, func(ctx context.Context) (*cache.Slot, error) {
		scopeID := ""
		if style.Scoped {
			scopeID = s.resolver.ScopeID(filePath)
		}
		result, err := s.service.CompileStyle(ctx, compiler.StyleRequest{
			Source:   style.Content,
			Filename: filePath,
			Index:    index,
			ScopeID:  scopeID,
			Scoped:   style.Scoped,
			Module:   style.Module,
		})
		if err != nil {
			return nil, err
		}
		s.recordDiagnostics(filePath, result.Diagnostics)
		return &cache.Slot{Code: []byte(result.Code), CSSModuleMap: result.CSSModuleMap}, nil
	})
	if err != nil {
		s.writeError(w, r, requestPath, err)
		return
	}

	// Module styles must always have a default export, even when the
	// compiler produced no mapping.
	mapping := slot.CSSModuleMap
	if style.Module && mapping == nil {
		mapping = map[string]string{}
	}
	styleID := fmt.Sprintf("%s?index=%d", requestPath, index)
	writeConditional(w, r, contentTypeJS, styleModuleJS(styleID, slot.Code, mapping))
}
