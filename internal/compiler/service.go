// Package compiler defines the boundary to the external compiler service
// that parses single-file components and compiles their template and style
// blocks. viaduct never compiles source itself; it orchestrates, caches, and
// serves what the service returns.
//
// Diagnostics from CompileTemplate and CompileStyle are non-fatal: best-effort
// output is still returned and cached. A Parse failure is fatal for the
// triggering request only and nothing is cached for the file.
package compiler

import (
	"context"
	"encoding/json"

	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/types"
)

// Service is the external compiler boundary.
type Service interface {
	// Parse splits source into a descriptor. The returned diagnostics are
	// fatal: a non-empty error means no descriptor is available.
	Parse(ctx context.Context, source []byte, filename string) (*ParseResult, error)

	// CompileTemplate compiles a template block to render-function code.
	CompileTemplate(ctx context.Context, req TemplateRequest) (*CompileResult, error)

	// CompileStyle compiles one style block, applying scoping or CSS-module
	// transforms as requested.
	CompileStyle(ctx context.Context, req StyleRequest) (*CompileResult, error)
}

// ParseResult is the outcome of a successful parse.
type ParseResult struct {
	Descriptor  *types.Descriptor   `json:"descriptor"`
	Diagnostics []errors.Diagnostic `json:"diagnostics,omitempty"`
}

// TemplateRequest asks for compilation of a template block.
type TemplateRequest struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
	// ScopeID is attached to generated elements when the component has
	// scoped styles; empty otherwise.
	ScopeID string `json:"scope_id,omitempty"`
	// Options is the pass-through template option map from configuration.
	Options map[string]interface{} `json:"options,omitempty"`
}

// StyleRequest asks for compilation of one style block.
type StyleRequest struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
	// Index is the block's position in the component's style list.
	Index int `json:"index"`
	// ScopeID namespaces selectors when Scoped is set.
	ScopeID string `json:"scope_id,omitempty"`
	Scoped  bool   `json:"scoped,omitempty"`
	Module  bool   `json:"module,omitempty"`
	// Options is the pass-through style option map from configuration.
	Options map[string]interface{} `json:"options,omitempty"`
}

// CompileResult is the outcome of a template or style compile. Diagnostics
// here are advisory; Code is usable even when they are present.
type CompileResult struct {
	Code string `json:"code"`
	// Map is the source map, passed through untouched when present.
	Map json.RawMessage `json:"map,omitempty"`
	// CSSModuleMap maps original class names to rewritten ones for
	// CSS-module style blocks.
	CSSModuleMap map[string]string   `json:"css_module_map,omitempty"`
	Diagnostics  []errors.Diagnostic `json:"diagnostics,omitempty"`
}
