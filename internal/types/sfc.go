// Package types provides common type definitions used throughout viaduct.
// This package contains shared types to avoid circular dependencies between packages.
package types

import "time"

// Descriptor is the parsed shape of a single-file component: one optional
// script block, one optional template block, and zero or more style blocks
// in source order. It is produced by the compiler service's Parse call and
// retained by the compilation cache so that a change event can be diffed
// against the previously served version of the same file.
type Descriptor struct {
	// Filename is the absolute path of the source file the descriptor was parsed from
	Filename string `json:"filename"`
	// Script is the component's script block, nil when the file has none
	Script *Block `json:"script,omitempty"`
	// Template is the component's template block, nil when the file has none
	Template *Block `json:"template,omitempty"`
	// Styles holds the style blocks in the order they appear in the file
	Styles []StyleBlock `json:"styles,omitempty"`
}

// Block is one region of a single-file component along with the attributes
// declared on its opening tag.
type Block struct {
	// Content is the raw source text inside the block
	Content string `json:"content"`
	// Attrs holds the block tag's attributes (lang, src, scoped, module, ...)
	Attrs map[string]string `json:"attrs,omitempty"`
	// Lang is the declared content language, empty for the default
	Lang string `json:"lang,omitempty"`
	// Src is the external source reference when the block content lives in
	// a separate file, empty otherwise
	Src string `json:"src,omitempty"`
}

// StyleBlock is a style region with its compilation-relevant flags broken out.
type StyleBlock struct {
	Block
	// Scoped marks a block whose selectors are rewritten to apply only
	// within the owning component's output
	Scoped bool `json:"scoped,omitempty"`
	// Module marks a CSS-module block whose class names are renamed and
	// exposed to the script as a mapping
	Module bool `json:"module,omitempty"`
}

// HasScript reports whether the descriptor carries a script block.
func (d *Descriptor) HasScript() bool { return d != nil && d.Script != nil }

// HasTemplate reports whether the descriptor carries a template block.
func (d *Descriptor) HasTemplate() bool { return d != nil && d.Template != nil }

// HasCSSModules reports whether any style block is CSS-module flagged.
// Presence on either side of a diff forces a full reload: module class
// mappings may be bound into script state and cannot be patched in place.
func (d *Descriptor) HasCSSModules() bool {
	if d == nil {
		return false
	}
	for _, s := range d.Styles {
		if s.Module {
			return true
		}
	}
	return false
}

// HasScopedStyles reports whether any style block is scoped.
func (d *Descriptor) HasScopedStyles() bool {
	if d == nil {
		return false
	}
	for _, s := range d.Styles {
		if s.Scoped {
			return true
		}
	}
	return false
}

// ReloadAction is the kind of client notification the invalidation policy emits.
type ReloadAction string

const (
	// ActionFullReload tells the client to reload the page outright
	ActionFullReload ReloadAction = "full-reload"
	// ActionRerender tells the client to re-render a component whose
	// template output changed while its script state is preserved
	ActionRerender ReloadAction = "template-rerender"
	// ActionStyleUpdate tells the client to swap one style block in place
	ActionStyleUpdate ReloadAction = "style-update"
	// ActionStyleRemove tells the client to drop a style block that no
	// longer exists in the source
	ActionStyleRemove ReloadAction = "style-remove"
)

// ReloadEvent is one notification produced by the invalidation policy for a
// changed file, later serialized onto the notification channel.
type ReloadEvent struct {
	// Action is the kind of update the client should perform
	Action ReloadAction
	// Path is the public request path of the affected module
	Path string
	// Index identifies the style block for style actions, -1 otherwise
	Index int
	// Timestamp records when the change was processed
	Timestamp time.Time
}
