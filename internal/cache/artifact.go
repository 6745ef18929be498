package cache

import (
	"github.com/viaduct-dev/viaduct/internal/types"
)

// Slot is one compiled output of a file: the composed main module, the
// template render code, or a single style block. CSSModuleMap is populated
// for module-flagged style slots only.
type Slot struct {
	Code         []byte
	CSSModuleMap map[string]string
}

// Artifact is an immutable snapshot of a file's compiled state. Slots are
// nil until first accessed; filling a slot produces a new snapshot that
// shares the untouched slots, so readers holding an older snapshot never
// observe a partial write.
type Artifact struct {
	// Path is the absolute source file path the artifact was compiled from.
	Path string
	// Descriptor is the parsed shape the slots were compiled against.
	Descriptor *types.Descriptor
	// MainModule is the composed script module for the bare request path.
	MainModule *Slot
	// Template is the compiled render-function module.
	Template *Slot
	// Styles holds per-index compiled style blocks, aligned with
	// Descriptor.Styles. Unfilled indexes are nil.
	Styles []*Slot
}

// withMain returns a snapshot with the main-module slot set.
func (a *Artifact) withMain(s *Slot) *Artifact {
	next := *a
	next.MainModule = s
	return &next
}

// withTemplate returns a snapshot with the template slot set.
func (a *Artifact) withTemplate(s *Slot) *Artifact {
	next := *a
	next.Template = s
	return &next
}

// withStyle returns a snapshot with style slot index set, growing the slice
// when the descriptor has more blocks than have been compiled so far.
func (a *Artifact) withStyle(index int, s *Slot) *Artifact {
	next := *a
	next.Styles = make([]*Slot, len(a.Styles))
	copy(next.Styles, a.Styles)
	for len(next.Styles) <= index {
		next.Styles = append(next.Styles, nil)
	}
	next.Styles[index] = s
	return &next
}

// Style returns the filled style slot at index, nil when out of range or
// not yet compiled.
func (a *Artifact) Style(index int) *Slot {
	if a == nil || index < 0 || index >= len(a.Styles) {
		return nil
	}
	return a.Styles[index]
}
