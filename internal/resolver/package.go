package resolver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Manifest is the subset of a package manifest that entry resolution reads.
type Manifest struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Main    string          `json:"main"`
	Module  string          `json:"module"`
	Exports json.RawMessage `json:"exports"`
}

// PackageEntry is the resolved entry point of an installed package. Once
// resolved it is immutable for the process lifetime; manifests are assumed
// not to change while the server runs.
type PackageEntry struct {
	// ID is the bare package identifier.
	ID string
	// EntryRequestPath is the composed public path, id/relative/entry.ext,
	// empty when the manifest declares no usable entry.
	EntryRequestPath string
	// EntryFilePath is the entry's file, empty when no usable entry exists.
	EntryFilePath string
	// Dir is the package's installation directory.
	Dir string
	// Manifest is the parsed manifest the entry came from.
	Manifest *Manifest
}

// Package resolves a bare identifier to its package entry by locating the
// nearest manifest and applying the entry-field precedence. The bool is
// false when no manifest is found; a located manifest with no usable entry
// still returns true, with empty entry paths, so callers can degrade with a
// diagnostic instead of treating it as absence. A present but unparsable
// manifest is a silent miss.
//
// Successful resolutions are memoized per identifier and their composed
// entry path is registered so a later exact deep import of it, and a watcher
// event for its file, both map in one lookup. Misses are not memoized so a
// package installed mid-session resolves without a restart.
func (r *Resolver) Package(id string) (*PackageEntry, bool) {
	r.mu.RLock()
	entry, ok := r.packages[id]
	r.mu.RUnlock()
	if ok {
		return entry, true
	}

	pkgDir, ok := r.findPackageDir(id)
	if !ok {
		return nil, false
	}

	manifestPath := filepath.Join(pkgDir, "package.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, false
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		r.logger.Debug(context.Background(), "unreadable package manifest treated as a miss",
			"package", id, "manifest", manifestPath)
		return nil, false
	}

	entry = &PackageEntry{ID: id, Dir: pkgDir, Manifest: &manifest}
	if rel, ok := entryFromManifest(&manifest); ok {
		file := filepath.Join(pkgDir, filepath.FromSlash(rel))
		if probed, found := probePath(file, r.extensions); found {
			file = probed
		}
		entryRel, err := filepath.Rel(pkgDir, file)
		if err == nil {
			entry.EntryFilePath = file
			entry.EntryRequestPath = id + "/" + filepath.ToSlash(entryRel)
		}
	}

	r.mu.Lock()
	r.packages[id] = entry
	if entry.EntryRequestPath != "" {
		r.deepImports[entry.EntryRequestPath] = entry.EntryFilePath
		r.reverseModule[entry.EntryFilePath] = ModulePrefix + entry.EntryRequestPath
	}
	r.mu.Unlock()

	if entry.EntryRequestPath != "" {
		r.logger.Debug(context.Background(), "package entry resolved",
			"package", id, "entry", entry.EntryRequestPath)
	}
	return entry, true
}

// findPackageDir walks the module directories upward from the root until one
// contains the package.
func (r *Resolver) findPackageDir(id string) (string, bool) {
	dir := r.root
	for {
		candidate := filepath.Join(dir, r.moduleDir, filepath.FromSlash(id))
		if isFile(filepath.Join(candidate, "package.json")) {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// entryFromManifest applies the entry-field precedence: a string exports
// field, then exports["."] as a string, then exports["."].import, then
// module, then main. The bool is false when none yields a value.
func entryFromManifest(m *Manifest) (string, bool) {
	if len(m.Exports) > 0 {
		if rel, ok := entryFromExports(m.Exports); ok {
			return cleanEntryRel(rel), true
		}
	}
	if m.Module != "" {
		return cleanEntryRel(m.Module), true
	}
	if m.Main != "" {
		return cleanEntryRel(m.Main), true
	}
	return "", false
}

func entryFromExports(raw json.RawMessage) (string, bool) {
	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, direct != ""
	}

	var byPath map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byPath); err != nil {
		return "", false
	}
	dot, ok := byPath["."]
	if !ok {
		return "", false
	}

	var dotString string
	if err := json.Unmarshal(dot, &dotString); err == nil {
		return dotString, dotString != ""
	}

	var conditions struct {
		Import string `json:"import"`
	}
	if err := json.Unmarshal(dot, &conditions); err == nil && conditions.Import != "" {
		return conditions.Import, true
	}
	return "", false
}

func cleanEntryRel(rel string) string {
	return strings.TrimPrefix(rel, "./")
}
