// Package resolve is the Import Resolver: it turns an import reference
// (module, name, relative level) plus the file that imported it into a
// set of candidate source files on disk, per spec.md §4.3.
package resolve

import (
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DepEntry is one entry of the external dependency map produced by the
// Dependency-extractor collaborator (internal/depextract): for a single
// dotted importable name, where it lives and what it in turn imports.
type DepEntry struct {
	Path    string   // absolute path, or "" if unresolved
	Imports []string // dotted names this file imports
}

// sourceExt is the extension MIME-sniffed candidates must end in to be
// consumed downstream. Python only, for now.
const sourceExt = ".py"

// Resolver implements the five-step (plus filesystem-fallback) lookup of
// spec.md §4.3. It owns the external dependency map for the life of one
// analysis and a bounded filesystem-walk fallback.
type Resolver struct {
	deps      map[string]DepEntry
	backtrack int // module-backtrack depth for the filesystem fallback
}

// New constructs a Resolver over an already-extracted dependency map
// (spec.md §4.3 step 1: "the Resolver shells out to an external
// dependency-extraction collaborator" — that collaborator is
// internal/depextract; this constructor takes its already-materialized
// result so the Resolver itself stays a pure lookup+fallback).
func New(deps map[string]DepEntry, backtrack int) *Resolver {
	if backtrack <= 0 {
		backtrack = 2
	}
	return &Resolver{deps: deps, backtrack: backtrack}
}

// Resolve implements resolve(import-name, current-file, module, level).
// It returns zero or more candidate paths; only paths whose MIME type is
// the source-language text type survive.
func (r *Resolver) Resolve(name, currentFile, module string, level int) []string {
	if level == 1 {
		if path, ok := r.relativeLevel1(currentFile, module); ok {
			return r.filterSourcePaths([]string{path})
		}
	}
	if module != "" {
		if e, ok := r.deps[module+"."+name]; ok && e.Path != "" {
			return r.filterSourcePaths([]string{e.Path})
		}
	}
	if module == "" {
		if e, ok := r.deps[name]; ok && e.Path != "" {
			return r.filterSourcePaths([]string{e.Path})
		}
	}
	if module != "" {
		if e, ok := r.deps[module]; ok && e.Path != "" {
			return r.filterSourcePaths([]string{e.Path})
		}
	}
	if module != "" {
		if path, ok := r.filesystemWalk(currentFile, module, name); ok {
			return r.filterSourcePaths([]string{path})
		}
	}
	return nil
}

// relativeLevel1 implements step 2: find the dependency-map entry whose
// path equals current-file, then among its imports find one ending in
// module, and return that import's resolved path if present.
func (r *Resolver) relativeLevel1(currentFile, module string) (string, bool) {
	if module == "" {
		return "", false
	}
	var self DepEntry
	found := false
	for _, e := range r.deps {
		if e.Path == currentFile {
			self = e
			found = true
			break
		}
	}
	if !found {
		return "", false
	}
	for _, imported := range self.Imports {
		if strings.HasSuffix(imported, module) {
			if e, ok := r.deps[imported]; ok && e.Path != "" {
				return e.Path, true
			}
		}
	}
	return "", false
}

// filesystemWalk implements step 6: walk up from current-file's ancestors
// up to r.backtrack levels; for each directory whose basename equals
// module, look (one level deep) for a file stem-matching name, else fall
// back to that directory's package-init file.
func (r *Resolver) filesystemWalk(currentFile, module, name string) (string, bool) {
	dir := filepath.Dir(currentFile)
	for i := 0; i < r.backtrack; i++ {
		dir = filepath.Dir(dir)
		if dir == "." || dir == string(filepath.Separator) {
			break
		}
		candidate := filepath.Join(dir, module)
		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}
		entries, err := os.ReadDir(candidate)
		if err != nil {
			continue
		}
		var initFile string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			if stem == name {
				return filepath.Join(candidate, e.Name()), true
			}
			if e.Name() == "__init__.py" {
				initFile = filepath.Join(candidate, e.Name())
			}
		}
		if initFile != "" {
			return initFile, true
		}
	}
	return "", false
}

// filterSourcePaths drops candidates whose MIME type isn't the
// source-language text type, de-duplicates what remains, and returns it
// sorted for determinism.
func (r *Resolver) filterSourcePaths(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if !isSourceFile(c) {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// isSourceFile mirrors cfg.py's mimetypes.guess_type gate: only paths
// whose guessed MIME type is text/x-python (or, failing a MIME lookup,
// whose extension is .py) are treated as followable source.
func isSourceFile(path string) bool {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t != "" {
		return strings.HasPrefix(t, "text/x-python")
	}
	return strings.EqualFold(filepath.Ext(path), sourceExt)
}
