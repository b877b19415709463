// Package depindex is the Func-Import Index: a memo of, per source file,
// the definitions it declares and the files it directly imports, with a
// cycle-safe traversal over the transitive closure (spec.md §4.4).
package depindex

import (
	"sync"

	"github.com/duo-labs/narrow/internal/pyast"
)

// fileEntry mirrors func_import_graph.py's per-file dict: its own
// definitions plus the set of files it directly imports.
type fileEntry struct {
	defs    []pyast.Def
	next    map[string]struct{}
}

// Index is the Func-Import Index. Safe for concurrent use: population may
// run with bounded parallelism across an entry's immediate import fan-out
// (spec.md §5), guarded by a single mutex.
type Index struct {
	mu    sync.Mutex
	files map[string]*fileEntry
	ready bool
}

// New returns an empty, not-yet-ready Index.
func New() *Index {
	return &Index{files: make(map[string]*fileEntry)}
}

// Has reports whether file has been registered in the Index.
func (idx *Index) Has(file string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.files[file]
	return ok
}

func (idx *Index) entry(file string) *fileEntry {
	e, ok := idx.files[file]
	if !ok {
		e = &fileEntry{next: make(map[string]struct{})}
		idx.files[file] = e
	}
	return e
}

// AddDef records def as a declaration found in file.
func (idx *Index) AddDef(file string, def pyast.Def) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e := idx.entry(file)
	e.defs = append(e.defs, def)
}

// AddEdge records that fileA directly imports fileB.
func (idx *Index) AddEdge(fileA, fileB string) {
	if fileA == "" || fileB == "" || fileA == fileB {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	a := idx.entry(fileA)
	idx.entry(fileB)
	a.next[fileB] = struct{}{}
}

// MarkReady flips the one-shot ready flag: once set, the Builder serves
// definition lookups for already-known files from the Index without
// reparsing.
func (idx *Index) MarkReady() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ready = true
}

// IsReady reports whether MarkReady has been called.
func (idx *Index) IsReady() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.ready
}

// AllReachable performs a cycle-safe depth-first traversal starting at
// file: it collects every definition along the way (paired with the
// declaring name and that file's path), guarded by a visited set so
// self-loops and mutual imports terminate.
func (idx *Index) AllReachable(file string) (defs []pyast.Def, names []string, paths []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	visited := make(map[string]bool)
	var walk func(f string)
	walk = func(f string) {
		if visited[f] {
			return
		}
		visited[f] = true
		e, ok := idx.files[f]
		if !ok {
			return
		}
		for _, d := range e.defs {
			defs = append(defs, d)
			names = append(names, d.Name)
			paths = append(paths, f)
		}
		for succ := range e.next {
			if !visited[succ] {
				walk(succ)
			}
		}
	}
	walk(file)
	return defs, names, paths
}

// DefsNamed filters AllReachable's result down to definitions whose
// display name matches. Convenience for the Call-Graph Builder's call
// resolution (spec.md §4.5.2 step 2).
func (idx *Index) DefsNamed(file, name string) []struct {
	Def  pyast.Def
	File string
} {
	defs, names, paths := idx.AllReachable(file)
	var out []struct {
		Def  pyast.Def
		File string
	}
	for i, n := range names {
		if n == name {
			out = append(out, struct {
				Def  pyast.Def
				File string
			}{Def: defs[i], File: paths[i]})
		}
	}
	return out
}
