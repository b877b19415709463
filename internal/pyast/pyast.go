// Package pyast implements the Definition/Import Visitor: three shallow
// tree walks over a parsed Python file that extract function definitions,
// class-constructor definitions, and import declarations (spec.md §4.2).
package pyast

import (
	"strings"

	"github.com/duo-labs/narrow/internal/syntax"
)

// constructorName is the language's constructor dunder. Python only, for
// now; kept as a named constant rather than a hardcoded literal at every
// call site.
const constructorName = "__init__"

// DefKind distinguishes a plain function definition from a class
// initializer recorded under its class's display name.
type DefKind string

const (
	DefFunction  DefKind = "function"
	DefClassInit DefKind = "class-init"
)

// Def is a Definition record (spec.md §3).
type Def struct {
	Kind       DefKind
	Name       string // declared identifier, or class name for class-init
	Positional int    // positional parameter count, receiver excluded
	Defaulted  int    // count of defaulted/variadic/keyword-splat parameters
	Node       syntax.Node
}

// Import is an Import record (spec.md §3).
type Import struct {
	Name     string // imported name
	Module   string // module path, possibly empty
	Level    int    // 0 (absolute) or 1 (same-package relative)
	SiteNode syntax.Node
}

// Key renders the dotted lookup key used by the Import Resolver:
// module+"."+name when module is non-empty, else just name.
func (im Import) Key() string {
	if im.Module == "" {
		return im.Name
	}
	return im.Module + "." + im.Name
}

// FunctionDefs collects every function_definition reachable from root
// without crossing into another function_definition's body, in source
// order. Definitions that share a display name (redefinitions, overloads
// by arity) are each kept. Class bodies are walked through as well: a
// method found inside a class_definition is included, with its first
// parameter (the implicit receiver) excluded from Positional.
func FunctionDefs(root syntax.Node) []Def {
	var out []Def
	var walk func(n syntax.Node, inClass bool)
	walk = func(n syntax.Node, inClass bool) {
		if !n.Valid() || !n.IsNamed() {
			return
		}
		if n.Kind() == syntax.KindFunctionDefinition {
			name, ok := n.Field("name")
			if !ok {
				return
			}
			pos, def := parameterCounts(n)
			if inClass && pos > 0 {
				pos-- // implicit receiver (self/cls)
			}
			out = append(out, Def{
				Kind:       DefFunction,
				Name:       name.Text(),
				Positional: pos,
				Defaulted:  def,
				Node:       n,
			})
			return // do not descend into this function's own body
		}
		inClass = inClass || n.Kind() == syntax.KindClassDefinition
		for _, c := range n.NamedChildren() {
			walk(c, inClass)
		}
	}
	walk(root, false)
	return out
}

// ClassInits visits every class_definition reachable from root (without
// descending further once a class_definition is found) and, for each,
// collects every init-like method declared directly in its body. Multiple
// init nodes per class are preserved, per spec.md §4.2.
func ClassInits(root syntax.Node) []Def {
	var out []Def
	var walk func(n syntax.Node)
	walk = func(n syntax.Node) {
		if !n.Valid() || !n.IsNamed() {
			return
		}
		if n.Kind() == syntax.KindClassDefinition {
			name, ok := n.Field("name")
			if !ok {
				return
			}
			className := name.Text()
			body, ok := n.Field("body")
			if !ok {
				return
			}
			for _, fn := range FunctionDefs(body) {
				if fn.Name != constructorName {
					continue
				}
				// exclude the implicit receiver (self/cls): __init__ is
				// always called as a bound method, so its first declared
				// parameter never corresponds to a caller-supplied argument.
				positional := fn.Positional
				if positional > 0 {
					positional--
				}
				out = append(out, Def{
					Kind:       DefClassInit,
					Name:       className,
					Positional: positional,
					Defaulted:  fn.Defaulted,
					Node:       fn.Node,
				})
			}
			return // don't look for nested classes inside this one
		}
		for _, c := range n.NamedChildren() {
			walk(c)
		}
	}
	walk(root)
	return out
}

// Imports emits one record per distinct import declaration anywhere in the
// tree (imports nested in functions/classes are still discovered).
func Imports(root syntax.Node) []Import {
	var out []Import
	seen := map[string]bool{}
	var walk func(n syntax.Node)
	walk = func(n syntax.Node) {
		if !n.Valid() || !n.IsNamed() {
			return
		}
		switch n.Kind() {
		case syntax.KindImportFromStatement:
			im, ok := fromImport(n)
			if ok && !seen[im.Key()] {
				seen[im.Key()] = true
				out = append(out, im)
			}
			return
		case syntax.KindImportStatement:
			im, ok := plainImport(n)
			if ok && !seen[im.Key()] {
				seen[im.Key()] = true
				out = append(out, im)
			}
			return
		}
		for _, c := range n.NamedChildren() {
			walk(c)
		}
	}
	walk(root)
	return out
}

// fromImport handles `from [.]module import name`.
func fromImport(n syntax.Node) (Import, bool) {
	moduleField, ok := n.Field("module_name")
	if !ok {
		return Import{}, false
	}
	module := moduleField.Text()
	level := 0
	if strings.HasPrefix(module, ".") {
		level = 1
		module = strings.TrimPrefix(module, ".")
	}
	nameField, ok := n.Field("name")
	if !ok {
		// tree-sitter-python exposes multiple "name" fields for
		// multi-import statements; fall back to the first named child
		// that is a bare identifier (dotted names are not matched here).
		for _, c := range n.NamedChildren() {
			if c.Kind() == syntax.KindIdentifier {
				nameField = c
				ok = true
				break
			}
		}
		if !ok {
			return Import{}, false
		}
	}
	return Import{Name: nameField.Text(), Module: module, Level: level, SiteNode: n}, true
}

// plainImport handles `import name`.
func plainImport(n syntax.Node) (Import, bool) {
	nameField, ok := n.Field("name")
	if !ok {
		for _, c := range n.NamedChildren() {
			if c.Kind() == syntax.KindIdentifier {
				nameField = c
				ok = true
				break
			}
		}
		if !ok {
			return Import{}, false
		}
	}
	return Import{Name: nameField.Text(), Module: "", Level: 0, SiteNode: n}, true
}

// parameterCounts returns (positional, defaulted) for a function
// definition's parameter list, counting every declared parameter. Callers
// that know the definition is a method (and so its first parameter is an
// implicit receiver) are responsible for excluding it themselves; a plain
// function has no receiver to strip.
func parameterCounts(fn syntax.Node) (positional, defaulted int) {
	params, ok := fn.Field("parameters")
	if !ok {
		return 0, 0
	}
	for _, p := range params.NamedChildren() {
		switch p.Kind() {
		case syntax.KindDefaultParameter, syntax.KindTypedDefaultParameter,
			syntax.KindListSplatPattern, syntax.KindDictionarySplatPattern:
			defaulted++
		default:
			// plain identifier, typed plain parameter, tuple pattern,
			// etc: a required positional slot.
			positional++
		}
	}
	return positional, defaulted
}
