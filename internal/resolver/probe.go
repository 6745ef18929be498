package resolver

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// isFile reports whether p exists and is a regular file.
func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// probePath finds the file a possibly extensionless base path refers to.
// The base itself wins when it is a regular file. Otherwise each extension
// is tried against base+ext in list order, then against base/index+ext,
// stopping at the first hit.
func probePath(base string, extensions []string) (string, bool) {
	if isFile(base) {
		return base, true
	}
	if path.Ext(base) == "" {
		for _, ext := range extensions {
			if candidate := base + ext; isFile(candidate) {
				return candidate, true
			}
		}
	}
	for _, ext := range extensions {
		if candidate := filepath.Join(base, "index"+ext); isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// hasSourceExt reports whether a path names a module source kind that the
// rewriter leaves unmarked. Anything else imported from a script needs the
// ?import marker so the router serves it as a module instead of a raw asset.
func hasSourceExt(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs", ".ts", ".jsx", ".tsx", ".vue":
		return true
	}
	return false
}
