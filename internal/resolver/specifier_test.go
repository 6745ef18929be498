package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteSpecifier(t *testing.T) {
	root := t.TempDir()
	installPackage(t, root, "vue", `{"module":"dist/vue.esm.js"}`, "dist/vue.esm.js")
	installPackage(t, root, "entryless", `{"name":"entryless"}`)
	writeArtifact(t, root, "preact.js")

	r := newTestResolver(t, root, func(o *Options) {
		o.Aliases = map[string]string{"app-state": "vue"}
	})

	tests := []struct {
		name        string
		id          string
		importer    string
		want        string
		description string
	}{
		{
			name:        "bare specifier substitutes the package entry",
			id:          "vue",
			importer:    "/src/main.js",
			want:        "/@modules/vue/dist/vue.esm.js",
			description: "successful package resolution rewrites to the composed entry path",
		},
		{
			name:        "optimized artifact left unchanged",
			id:          "preact",
			importer:    "/src/main.js",
			want:        "/@modules/preact",
			description: "a pre-bundled artifact shadows package resolution",
		},
		{
			name:        "manifest with no usable entry degrades to the raw identifier",
			id:          "entryless",
			importer:    "/src/main.js",
			want:        "/@modules/entryless",
			description: "the pipeline must not halt on a configuration gap",
		},
		{
			name:        "unknown bare specifier passes through under the namespace",
			id:          "not-installed",
			importer:    "/src/main.js",
			want:        "/@modules/not-installed",
			description: "resolution misses defer not-found to the eventual read",
		},
		{
			name:        "deep import of an optimized package keeps the deep path",
			id:          "preact/hooks",
			importer:    "/src/main.js",
			want:        "/@modules/preact/hooks",
			description: "the discouragement diagnostic is informational, not blocking",
		},
		{
			name:        "alias applies before bare resolution",
			id:          "app-state",
			importer:    "/src/main.js",
			want:        "/@modules/vue/dist/vue.esm.js",
			description: "the alias table maps the identifier first, then normal rules run",
		},
		{
			name:        "relative sibling",
			id:          "./Widget.vue",
			importer:    "/src/components/App.vue",
			want:        "/src/components/Widget.vue",
			description: "relative specifiers rebase onto the importer's directory",
		},
		{
			name:        "relative parent",
			id:          "../lib/util",
			importer:    "/src/components/App.vue",
			want:        "/src/lib/util",
			description: "parent traversal resolves in request space",
		},
		{
			name:        "extensionless relative import left unmarked",
			id:          "./helpers",
			importer:    "/src/main.js",
			want:        "/src/helpers",
			description: "probing happens when the request arrives, not at rewrite time",
		},
		{
			name:        "source extension left unmarked",
			id:          "./other.ts",
			importer:    "/src/main.js",
			want:        "/src/other.ts",
			description: "module sources need no disambiguation",
		},
		{
			name:        "stylesheet import gains the marker",
			id:          "./theme.css",
			importer:    "/src/main.js",
			want:        "/src/theme.css?import",
			description: "a css fetch from a script must be served as a module",
		},
		{
			name:        "binary asset import gains the marker",
			id:          "./logo.png",
			importer:    "/src/main.js",
			want:        "/src/logo.png?import",
			description: "asset imports resolve to their public URL module",
		},
		{
			name:        "existing query is preserved before the marker",
			id:          "./theme.css?inline",
			importer:    "/src/main.js",
			want:        "/src/theme.css?inline&import",
			description: "caller queries survive the rewrite",
		},
		{
			name:        "absolute path import",
			id:          "/src/global.css",
			importer:    "/index.html",
			want:        "/src/global.css?import",
			description: "absolute specifiers skip rebasing but still get the marker",
		},
		{
			name:        "external url untouched",
			id:          "https://cdn.example.com/lib.js",
			importer:    "/src/main.js",
			want:        "https://cdn.example.com/lib.js",
			description: "remote modules are the browser's business",
		},
		{
			name:        "already namespaced specifier untouched",
			id:          "/@modules/vue/dist/vue.esm.js",
			importer:    "/src/main.js",
			want:        "/@modules/vue/dist/vue.esm.js",
			description: "rewritten output fed back through the rewriter is stable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RewriteSpecifier(tt.id, tt.importer)
			assert.Equal(t, tt.want, got, tt.description)
		})
	}
}
