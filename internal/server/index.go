package server

import (
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const indexPageHead = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>viaduct</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; margin: 0; background: #f8fafc; color: #1e293b; }
        header { background: #0f172a; color: #f8fafc; padding: 1.5rem 2rem; }
        header h1 { margin: 0; font-size: 1.25rem; font-weight: 600; }
        header p { margin: 0.25rem 0 0; font-size: 0.8rem; color: #94a3b8; }
        main { max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
        .card { background: #fff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 1rem 1.25rem; margin-bottom: 0.75rem; }
        .card a { font-size: 1rem; font-weight: 600; color: #0f172a; text-decoration: none; }
        .card a:hover { text-decoration: underline; }
        .card .path { font-size: 0.75rem; color: #64748b; margin-top: 0.25rem; font-family: ui-monospace, monospace; }
        .empty { border: 1px dashed #cbd5e1; border-radius: 8px; padding: 2rem; text-align: center; color: #64748b; }
    </style>
</head>
<body>
    <header>
        <h1>viaduct</h1>
        <p>No index.html in the project root; this page lists the components found instead.</p>
    </header>
    <main>
`

const indexPageFoot = `    </main>
</body>
</html>
`

type componentEntry struct {
	DisplayName string
	RequestPath string
}

// handleComponentIndex renders the generated landing page used when the
// project root has no index.html of its own.
func (s *DevServer) handleComponentIndex(w http.ResponseWriter, r *http.Request) {
	entries := s.scanComponents()

	var b strings.Builder
	b.WriteString(indexPageHead)
	if len(entries) == 0 {
		b.WriteString(`        <div class="empty">No .vue components found. Create one to get started.</div>` + "\n")
	}
	for _, entry := range entries {
		fmt.Fprintf(&b,
			"        <div class=\"card\"><a href=\"%s\">%s</a><div class=\"path\">%s</div></div>\n",
			html.EscapeString(entry.RequestPath),
			html.EscapeString(entry.DisplayName),
			html.EscapeString(entry.RequestPath))
	}
	b.WriteString(indexPageFoot)

	writeConditional(w, r, contentTypeHTML, []byte(b.String()))
}

// scanComponents walks the project root for component files, skipping
// dependency and hidden directories.
func (s *DevServer) scanComponents() []componentEntry {
	root := s.resolver.Root()
	var entries []componentEntry

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".vue" {
			return nil
		}
		entries = append(entries, componentEntry{
			DisplayName: componentDisplayName(d.Name()),
			RequestPath: s.resolver.ResolveToRequest(path),
		})
		return nil
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RequestPath < entries[j].RequestPath
	})
	return entries
}

// componentDisplayName turns a filename like user-profile.vue into "User
// Profile". Camel-case names keep their own capitalization.
func componentDisplayName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return cases.Title(language.English, cases.NoLower).String(base)
}
