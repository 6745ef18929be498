//go:build property

package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/viaduct-dev/viaduct/internal/logging"
)

// TestResolverProperties validates invariants of the bidirectional mapping
// over generated project layouts.
func TestResolverProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	segment := gen.RegexMatch(`[a-z][a-z0-9]{0,7}`)

	// Property: resolveToFile(resolveToRequest(f)) preserves content for any
	// file under the root.
	properties.Property("round-trip preserves content", prop.ForAll(
		func(dirName, fileName, content string) bool {
			root := t.TempDir()
			rel := filepath.Join(dirName, fileName+".js")
			full := filepath.Join(root, rel)
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return true
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return true
			}

			r := New(Options{Root: root, Logger: logging.Nop()})
			roundTripped := r.ResolveToFile(r.ResolveToRequest(full))
			got, err := os.ReadFile(roundTripped)
			return err == nil && string(got) == content
		},
		segment, segment, gen.AlphaString(),
	))

	// Property: resolution is total; no request path produces an empty file
	// path.
	properties.Property("resolution never fails", prop.ForAll(
		func(a, b string) bool {
			root := t.TempDir()
			r := New(Options{Root: root, Logger: logging.Nop()})
			return r.ResolveToFile("/"+a+"/"+b) != ""
		},
		segment, segment,
	))

	// Property: rewriting is idempotent; feeding a rewritten specifier back
	// through the rewriter changes nothing, the ?import marker included.
	properties.Property("rewrite is idempotent", prop.ForAll(
		func(name, ext string, relative bool) bool {
			root := t.TempDir()
			r := New(Options{Root: root, Logger: logging.Nop()})

			id := name + ext
			if relative {
				id = "./" + id
			}
			once := r.RewriteSpecifier(id, "/src/main.js")
			twice := r.RewriteSpecifier(once, "/src/main.js")
			return once == twice
		},
		segment, gen.OneConstOf("", ".js", ".css", ".png", ".vue"), gen.Bool(),
	))

	properties.TestingRun(t)
}
