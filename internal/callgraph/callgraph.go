// Package callgraph is the Call-Graph Builder: the ~45% core that walks
// an entry file's syntax tree, follows imports across the filesystem,
// resolves call sites to candidate callee definitions, and records a
// directed reachability graph — halting as soon as any target name is
// proven reachable (spec.md §4.5).
package callgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/duo-labs/narrow/internal/depextract"
	"github.com/duo-labs/narrow/internal/depindex"
	"github.com/duo-labs/narrow/internal/narrorerr"
	"github.com/duo-labs/narrow/internal/pyast"
	"github.com/duo-labs/narrow/internal/reachgraph"
	"github.com/duo-labs/narrow/internal/resolve"
	"github.com/duo-labs/narrow/internal/syntax"
)

// sourceExt is the extension the Builder expects the entry file to carry.
// Python only, for now.
const sourceExt = ".py"

// ResolveTask is a unit of worklist work: a syntax node paired with its
// ancestor context (an ordered list of resolved keys) and the file it
// lives in (spec.md §3, "Resolve task").
type ResolveTask struct {
	Node    syntax.Node
	Context []string
	File    string
}

func (t ResolveTask) currentKey() string {
	if len(t.Context) == 0 {
		return reachgraph.RootSentinel
	}
	return t.Context[len(t.Context)-1]
}

// Builder is the Call-Graph Builder. Each BuildFromEntry call starts from
// fresh per-analysis state (graph, index, import cache, worklist), so
// nothing is carried over from an earlier call (spec.md §5).
type Builder struct {
	targets   map[string]struct{}
	backtrack int
	extractor depextract.Extractor

	graph       *reachgraph.Graph
	index       *depindex.Index
	importCache map[string]struct{}
	trees       map[string]*syntax.Tree

	detected     bool
	detectedName string
	queue        []ResolveTask
}

// New constructs an empty Builder over the given target name set. backtrack
// is the module-backtrack depth the Import Resolver's filesystem-walk
// fallback uses; <= 0 defaults to 2.
func New(targets []string, backtrack int) *Builder {
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}
	return &Builder{
		targets:   set,
		backtrack: backtrack,
		extractor: depextract.SubprocessExtractor{},
	}
}

// WithExtractor overrides the default subprocess dependency-extractor —
// tests use this to inject depextract.StaticExtractor.
func (b *Builder) WithExtractor(e depextract.Extractor) *Builder {
	b.extractor = e
	return b
}

// Detected reports whether any target name was proven reachable.
func (b *Builder) Detected() bool { return b.detected }

// DetectedName returns the target name that triggered detection, if any.
func (b *Builder) DetectedName() string { return b.detectedName }

// Graph returns the reachability graph built so far.
func (b *Builder) Graph() *reachgraph.Graph { return b.graph }

// Has reports whether the graph contains a resolved node for name at the
// given arity.
func (b *Builder) Has(name string, arity int) bool {
	if b.graph == nil {
		return false
	}
	return b.graph.Has(fmt.Sprintf("unknown.%s.%d", name, arity))
}

// HasAny reports whether name was ever recorded in the alternate-name
// index at any arity, regardless of resolved key.
func (b *Builder) HasAny(name string) bool {
	if b.graph == nil {
		return false
	}
	return len(b.graph.ResolvedKeysFor(name)) > 0
}

// BuildFromEntry parses entryPath, seeds the worklist with its root, and
// drains the worklist until empty or a target is detected.
func (b *Builder) BuildFromEntry(ctx context.Context, entryPath string) error {
	b.graph = reachgraph.New()
	b.index = depindex.New()
	b.importCache = map[string]struct{}{entryPath: {}}
	b.trees = map[string]*syntax.Tree{}
	b.queue = nil
	b.detected = false
	b.detectedName = ""

	if _, err := os.Stat(entryPath); err != nil {
		return fmt.Errorf("%w: %s: %v", narrorerr.ErrEntryNotFound, entryPath, err)
	}

	// mitigate_extensionless_file: symlink a recognized extension onto the
	// entry file so the dependency-extraction subprocess and our own MIME
	// gate both recognize it; removed on every exit path below.
	analyzePath := entryPath
	if filepath.Ext(entryPath) != sourceExt {
		symlinkPath := entryPath + sourceExt
		if err := os.Symlink(entryPath, symlinkPath); err == nil {
			analyzePath = symlinkPath
			defer os.Remove(symlinkPath)
		}
	}

	deps, err := b.extractor.Extract(ctx, analyzePath)
	if err != nil {
		return err
	}
	resolver := resolve.New(deps, b.backtrack)

	src, err := os.ReadFile(entryPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", narrorerr.ErrEntryNotFound, entryPath, err)
	}
	tree := syntax.Parse(src)
	b.trees[entryPath] = tree
	root := tree.Root()
	b.registerDefs(entryPath, root)

	if root.Valid() {
		b.queue = append(b.queue, ResolveTask{
			Node:    root,
			Context: []string{reachgraph.RootSentinel},
			File:    entryPath,
		})
	}

	b.drain(resolver)
	return nil
}

// registerDefs feeds a freshly parsed file's function and class-init
// definitions into the Func-Import Index.
func (b *Builder) registerDefs(file string, root syntax.Node) {
	if !root.Valid() {
		return
	}
	for _, d := range pyast.FunctionDefs(root) {
		b.index.AddDef(file, d)
	}
	for _, d := range pyast.ClassInits(root) {
		b.index.AddDef(file, d)
	}
}

func (b *Builder) enqueue(tasks ...ResolveTask) {
	b.queue = append(b.queue, tasks...)
}

func extendContext(ctx []string, key string) []string {
	out := make([]string, len(ctx), len(ctx)+1)
	copy(out, ctx)
	return append(out, key)
}

// drain is the Builder's main loop: pop a task, dispatch on kind, repeat
// until the worklist is empty or a target is proven reachable.
func (b *Builder) drain(resolver *resolve.Resolver) {
	for len(b.queue) > 0 && !b.detected {
		task := b.queue[0]
		b.queue = b.queue[1:]
		b.dispatch(task, resolver)
	}
}

func (b *Builder) dispatch(task ResolveTask, resolver *resolve.Resolver) {
	n := task.Node
	if !n.Valid() {
		return
	}
	switch n.Kind() {
	case syntax.KindModule, syntax.KindBlock, syntax.KindExpressionStatement,
		syntax.KindParenthesizedExpr, syntax.KindConditionalExpr,
		syntax.KindRaise, syntax.KindReturn, syntax.KindWith, syntax.KindWithClause:
		for _, c := range n.NamedChildren() {
			b.enqueue(ResolveTask{Node: c, Context: task.Context, File: task.File})
		}

	case syntax.KindTry:
		if body, ok := n.Field("body"); ok {
			b.enqueue(ResolveTask{Node: body, Context: task.Context, File: task.File})
		}

	case syntax.KindDictionary:
		for _, pair := range n.NamedChildren() {
			if pair.Kind() != syntax.KindPair {
				continue
			}
			if v, ok := pair.Field("value"); ok {
				b.enqueue(ResolveTask{Node: v, Context: task.Context, File: task.File})
			}
		}

	case syntax.KindIf, syntax.KindElif:
		if cond, ok := n.Field("condition"); ok {
			b.enqueue(ResolveTask{Node: cond, Context: task.Context, File: task.File})
		}
		if cons, ok := n.Field("consequence"); ok {
			b.enqueue(ResolveTask{Node: cons, Context: task.Context, File: task.File})
		}
		if alt, ok := n.Field("alternative"); ok {
			b.enqueue(ResolveTask{Node: alt, Context: task.Context, File: task.File})
		}

	case syntax.KindElse:
		if body, ok := n.Field("body"); ok {
			b.enqueue(ResolveTask{Node: body, Context: task.Context, File: task.File})
		}

	case syntax.KindWhile:
		if cond, ok := n.Field("condition"); ok {
			b.enqueue(ResolveTask{Node: cond, Context: task.Context, File: task.File})
		}
		if body, ok := n.Field("body"); ok {
			b.enqueue(ResolveTask{Node: body, Context: task.Context, File: task.File})
		}

	case syntax.KindFor:
		if left, ok := n.Field("left"); ok {
			b.enqueue(ResolveTask{Node: left, Context: task.Context, File: task.File})
		}
		if right, ok := n.Field("right"); ok {
			b.enqueue(ResolveTask{Node: right, Context: task.Context, File: task.File})
		}
		if body, ok := n.Field("body"); ok {
			b.enqueue(ResolveTask{Node: body, Context: task.Context, File: task.File})
		}

	case syntax.KindAssignment, syntax.KindAugmentedAssignment:
		if right, ok := n.Field("right"); ok {
			b.enqueue(ResolveTask{Node: right, Context: task.Context, File: task.File})
		}

	case syntax.KindBinaryOperator, syntax.KindBooleanOperator:
		if left, ok := n.Field("left"); ok {
			b.enqueue(ResolveTask{Node: left, Context: task.Context, File: task.File})
		}
		if right, ok := n.Field("right"); ok {
			b.enqueue(ResolveTask{Node: right, Context: task.Context, File: task.File})
		}

	case syntax.KindNotOperator:
		if arg, ok := n.Field("argument"); ok {
			b.enqueue(ResolveTask{Node: arg, Context: task.Context, File: task.File})
		}

	case syntax.KindImportStatement, syntax.KindImportFromStatement:
		b.resolveImport(task, resolver)

	case syntax.KindCall:
		b.resolveCall(task)

	default:
		// literals, identifiers, class_definition, function_definition,
		// list, tuple, subscript, list_splat, keyword_argument, comment,
		// and any unrecognized kind: no-op.
	}
}

// resolveImport implements spec.md §4.5.1.
func (b *Builder) resolveImport(task ResolveTask, resolver *resolve.Resolver) {
	currentKey := task.currentKey()
	for _, im := range pyast.Imports(task.Node) {
		candidates := resolver.Resolve(im.Name, task.File, im.Module, im.Level)
		key := fmt.Sprintf("unknown.%s.0", im.Name)
		for _, path := range candidates {
			if _, cached := b.importCache[path]; cached {
				b.graph.AddEdge(currentKey, key)
				continue
			}
			b.importCache[path] = struct{}{}
			alreadyExpanded := b.graph.Has(key)

			b.graph.AddEdge(currentKey, key)
			b.graph.SetFile(key, path)
			b.graph.AddAlternateName(im.Name, key)
			b.graph.AddAlternateName("unknown."+im.Name, key)
			b.index.AddEdge(task.File, path)

			src, err := os.ReadFile(path)
			if err != nil {
				continue // ParseFailure-equivalent: file contributes nothing
			}
			tree := syntax.Parse(src)
			b.trees[path] = tree
			root := tree.Root()
			b.registerDefs(path, root)

			if !alreadyExpanded && root.Valid() {
				b.enqueue(ResolveTask{Node: root, Context: extendContext(task.Context, key), File: path})
			}
		}
		// Import-resolution yields no candidates: silently continue; the
		// edge to the import-name node is still recorded so the graph
		// stays informative (spec.md §4.5.4).
		if len(candidates) == 0 {
			b.graph.AddEdge(currentKey, key)
			b.graph.AddAlternateName(im.Name, key)
		}
	}
}

// resolveCall implements spec.md §4.5.2.
func (b *Builder) resolveCall(task ResolveTask) {
	currentKey := task.currentKey()
	n := task.Node

	name := calleeName(n)
	arity := 0
	argsNode, hasArgs := n.Field("arguments")
	if hasArgs {
		arity = len(argsNode.NamedChildren())
	}

	if name != "" {
		key := fmt.Sprintf("unknown.%s.%d", name, arity)
		if b.graph.Has(key) {
			// memoized: do not re-expand, but the edge is still useful.
			b.graph.AddEdge(currentKey, key)
		} else {
			b.graph.Touch(key)
			b.graph.SetFile(key, task.File)
			b.graph.AddEdge(currentKey, key)
			b.graph.AddAlternateName(name, key)
			b.graph.AddAlternateName("unknown."+name, key)
			b.graph.AddAlternateName(fmt.Sprintf("%s.%d", name, arity), key)

			for _, m := range b.index.DefsNamed(task.File, name) {
				if !eligible(m.Def.Positional, m.Def.Defaulted, arity) {
					continue
				}
				body, ok := m.Def.Node.Field("body")
				if !ok {
					continue
				}
				b.enqueue(ResolveTask{Node: body, Context: extendContext(task.Context, key), File: m.File})
				if _, isTarget := b.targets[m.Def.Name]; isTarget {
					b.detected = true
					b.detectedName = m.Def.Name
					return
				}
			}
		}
		if _, isTarget := b.targets[name]; isTarget {
			b.detected = true
			b.detectedName = name
			return
		}
	}

	if hasArgs {
		for _, c := range argsNode.NamedChildren() {
			b.enqueue(ResolveTask{Node: argValue(c), Context: task.Context, File: task.File})
		}
	}

	// Descend into the callee expression (the object of an attribute
	// callee) so a call inside a receiver chain, like the a() of a().b(),
	// is dispatched as its own call node.
	if fn, ok := n.Field("function"); ok {
		if fn.Kind() == syntax.KindAttribute {
			fn, ok = fn.Field("object")
		}
		if ok {
			b.enqueue(ResolveTask{Node: fn, Context: task.Context, File: task.File})
		}
	}
}

// eligible implements spec.md §4.5.2's definition-matching rule.
func eligible(positional, defaulted, arity int) bool {
	if positional == arity {
		return true
	}
	return positional < arity && arity-positional <= defaulted
}

// calleeName extracts the called function's name per spec.md §4.5.2.
func calleeName(call syntax.Node) string {
	fn, ok := call.Field("function")
	if !ok {
		return ""
	}
	switch fn.Kind() {
	case syntax.KindIdentifier:
		return fn.Text()
	case syntax.KindAttribute:
		if attr, ok := fn.Field("attribute"); ok {
			return attr.Text()
		}
		return ""
	default:
		return ""
	}
}

// argValue unwraps a keyword_argument to its value so nested calls inside
// `f(x=g())` are still discovered, even though keyword_argument is itself
// a no-op dispatch kind.
func argValue(c syntax.Node) syntax.Node {
	if c.Kind() == syntax.KindKeywordArgument {
		if v, ok := c.Field("value"); ok {
			return v
		}
	}
	return c
}
