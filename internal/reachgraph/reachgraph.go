// Package reachgraph is the Reachability graph: an append-only record of
// which resolved call targets were reached from the entry file, rooted at
// a sentinel node, plus a de-duplicated index from surface names (the
// names a call site actually spells) to the resolved keys they settled on.
package reachgraph

import (
	"encoding/json"
	"sort"

	"github.com/duo-labs/narrow/internal/graph"
)

// RootSentinel is the synthetic node every directly-reachable-from-entry
// target hangs off of, mirroring the original's "__narrow_entry__" root.
const RootSentinel = "__entry__"

// Graph wraps the teacher's plain adjacency graph.Graph, adding the root
// sentinel and the alternate-name index the Call-Graph Builder needs on
// top of it (spec.md §4.5.4 / §9).
type Graph struct {
	g    *graph.Graph
	alt  map[string]map[string]struct{} // altName -> set of resolved keys
	file map[string]string              // resolved key -> originating file path
}

// New returns an empty graph with the root sentinel already registered.
func New() *Graph {
	rg := &Graph{g: graph.New(), alt: make(map[string]map[string]struct{}), file: make(map[string]string)}
	rg.g.Touch(RootSentinel)
	return rg
}

// SetFile records the file a resolved key originated from. First write
// wins: a node's originating file does not change once set.
func (rg *Graph) SetFile(key, path string) {
	if key == "" || path == "" {
		return
	}
	if _, ok := rg.file[key]; ok {
		return
	}
	rg.file[key] = path
}

// FileOf returns the file a resolved key originated from, if recorded.
func (rg *Graph) FileOf(key string) (string, bool) {
	f, ok := rg.file[key]
	return f, ok
}

// AddEdge records that caller resolves a call to callee. Both are resolved
// keys (kind.name.arity). Idempotent: re-adding an existing edge is a
// no-op, matching graph.Graph's set-backed adjacency.
func (rg *Graph) AddEdge(caller, callee string) {
	rg.g.Touch(caller)
	rg.g.Touch(callee)
	rg.g.AddEdge(caller, callee)
}

// AddRootEdge records callee as directly reachable from the entry file.
func (rg *Graph) AddRootEdge(callee string) {
	rg.AddEdge(RootSentinel, callee)
}

// Touch registers a resolved key with no edges yet, so it shows up in
// Nodes()/Has() even if it turns out to be a leaf.
func (rg *Graph) Touch(key string) {
	if key == "" {
		return
	}
	rg.g.Touch(key)
}

// Has reports whether a resolved key has been registered in the graph.
func (rg *Graph) Has(key string) bool {
	return rg.g.Has(key)
}

// AddAlternateName indexes altName (a bare name, "kind.name", or
// "name.arity" spelling seen at a call site) against the resolved key it
// settled on. Returns false if this (altName, resolvedKey) pair was
// already recorded — per spec.md §9's decision, the index is
// de-duplicated rather than permitting repeats.
func (rg *Graph) AddAlternateName(altName, resolvedKey string) bool {
	if altName == "" || resolvedKey == "" {
		return false
	}
	set, ok := rg.alt[altName]
	if !ok {
		set = make(map[string]struct{})
		rg.alt[altName] = set
	}
	if _, exists := set[resolvedKey]; exists {
		return false
	}
	set[resolvedKey] = struct{}{}
	return true
}

// ResolvedKeysFor returns every resolved key altName has ever been
// recorded against, sorted for determinism.
func (rg *Graph) ResolvedKeysFor(altName string) []string {
	set, ok := rg.alt[altName]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Nodes returns every resolved key registered in the graph, sorted.
func (rg *Graph) Nodes() []string {
	return rg.g.Nodes()
}

// Files returns every distinct source file recorded as the origin of some
// resolved key, sorted. Used by `narrow watch` to determine the entry
// file's discovered import closure.
func (rg *Graph) Files() []string {
	seen := make(map[string]struct{}, len(rg.file))
	out := make([]string, 0, len(rg.file))
	for _, f := range rg.file {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// forwardAdjacency builds a caller->callees map from the underlying
// graph's edge set, for path enumeration.
func (rg *Graph) forwardAdjacency() map[string][]string {
	adj := make(map[string][]string)
	rg.g.ForEachEdge(func(from, to string) {
		adj[from] = append(adj[from], to)
	})
	for k := range adj {
		sort.Strings(adj[k])
	}
	return adj
}

// Paths enumerates every simple path from the root sentinel to target, up
// to maxDepth edges (0 means unbounded). Used by `narrow run
// --print-all-paths` to show the caller how a detected target was reached.
func (rg *Graph) Paths(target string, maxDepth int) [][]string {
	adj := rg.forwardAdjacency()
	var out [][]string
	var walk func(node string, path []string, visited map[string]bool)
	walk = func(node string, path []string, visited map[string]bool) {
		if node == target {
			out = append(out, append([]string(nil), path...))
			return
		}
		if maxDepth > 0 && len(path)-1 >= maxDepth {
			return
		}
		for _, next := range adj[node] {
			if visited[next] {
				continue
			}
			visited[next] = true
			walk(next, append(path, next), visited)
			delete(visited, next)
		}
	}
	walk(RootSentinel, []string{RootSentinel}, map[string]bool{RootSentinel: true})
	return out
}

// Impacted returns every resolved key that (transitively) calls start.
func (rg *Graph) Impacted(start string) []string {
	return rg.g.Impacted(start)
}

// Reachable reports whether target is reachable from the root sentinel,
// i.e. whether the entry file's transitive call closure includes it.
func (rg *Graph) Reachable(target string) bool {
	if target == RootSentinel {
		return true
	}
	for _, n := range rg.Impacted(target) {
		if n == RootSentinel {
			return true
		}
	}
	return false
}

// MarshalJSON emits the underlying node/edge graph alongside the
// alternate-name index, keyed the way cmd/isolated.go's inline decode
// struct expects ("nodes", "edges") plus an additional "alternate_names"
// map for debugging and for `narrow run --print-cfg`.
func (rg *Graph) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(rg.g)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Nodes []string `json:"nodes"`
		Edges []struct {
			From string `json:"From"`
			To   string `json:"To"`
		} `json:"edges"`
	}
	if err := json.Unmarshal(base, &decoded); err != nil {
		return nil, err
	}
	altOut := make(map[string][]string, len(rg.alt))
	for name := range rg.alt {
		altOut[name] = rg.ResolvedKeysFor(name)
	}
	return json.Marshal(struct {
		Nodes          []string `json:"nodes"`
		Edges          []struct {
			From string `json:"From"`
			To   string `json:"To"`
		} `json:"edges"`
		AlternateNames map[string][]string `json:"alternate_names"`
	}{
		Nodes:          decoded.Nodes,
		Edges:          decoded.Edges,
		AlternateNames: altOut,
	})
}
