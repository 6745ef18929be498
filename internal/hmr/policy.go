// Package hmr decides, for every file-system change, the minimal client
// notification that keeps a running application consistent: a full reload, a
// template re-render, or per-index style patches. The decision rules are
// deliberately conservative; whenever a change could have leaked into script
// state, the policy falls back to a full reload rather than under-notify.
package hmr

import (
	"github.com/viaduct-dev/viaduct/internal/types"
)

// Update is one decided notification. Index is the style block position for
// style actions and -1 otherwise.
type Update struct {
	Action types.ReloadAction
	Index  int
}

// DiffDescriptors compares the previously served descriptor with the
// freshly parsed one and returns the minimal updates, in emission order.
//
// The decision sequence:
//   - no prior descriptor: the file was never served, nothing to notify
//   - script changed: full reload only, its side effects already ran
//   - template changed: re-render, evaluated together with the style rules
//   - CSS modules present on either side: full reload only, class-name
//     identity may be bound into script state
//   - scoped-style presence flipped: re-render, the scope attribute's
//     meaning changed
//   - per-index style updates for new or changed blocks, removals for
//     blocks past the new list's end, then the re-render if one is due
func DiffDescriptors(prev, next *types.Descriptor) []Update {
	if prev == nil {
		return nil
	}

	if !blocksEqual(prev.Script, next.Script) {
		return []Update{{Action: types.ActionFullReload, Index: -1}}
	}

	needsRerender := !blocksEqual(prev.Template, next.Template)

	if prev.HasCSSModules() || next.HasCSSModules() {
		return []Update{{Action: types.ActionFullReload, Index: -1}}
	}

	if prev.HasScopedStyles() != next.HasScopedStyles() {
		needsRerender = true
	}

	var updates []Update
	for i := range next.Styles {
		if i >= len(prev.Styles) || !styleBlocksEqual(&prev.Styles[i], &next.Styles[i]) {
			updates = append(updates, Update{Action: types.ActionStyleUpdate, Index: i})
		}
	}
	for i := len(next.Styles); i < len(prev.Styles); i++ {
		updates = append(updates, Update{Action: types.ActionStyleRemove, Index: i})
	}

	if needsRerender {
		updates = append(updates, Update{Action: types.ActionRerender, Index: -1})
	}
	return updates
}

// blocksEqual implements the block equality rule: both absent is equal,
// exactly one absent is unequal, otherwise the contents must match exactly
// and the attribute maps must agree on both key set and values.
func blocksEqual(a, b *types.Block) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Content != b.Content {
		return false
	}
	return attrsEqual(a.Attrs, b.Attrs)
}

func styleBlocksEqual(a, b *types.StyleBlock) bool {
	return blocksEqual(&a.Block, &b.Block)
}

func attrsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		other, ok := b[key]
		if !ok || other != value {
			return false
		}
	}
	return true
}
