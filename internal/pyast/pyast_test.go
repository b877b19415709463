package pyast

import (
	"testing"

	"github.com/duo-labs/narrow/internal/syntax"
)

func parse(t *testing.T, src string) syntax.Node {
	t.Helper()
	tree := syntax.Parse([]byte(src))
	root := tree.Root()
	if !root.Valid() {
		t.Fatalf("failed to parse source:\n%s", src)
	}
	return root
}

func TestFunctionDefs_StopsAtNestedFunctionBodies(t *testing.T) {
	root := parse(t, `
def outer():
    def inner():
        pass
    return inner

def sibling():
    pass
`)
	defs := FunctionDefs(root)
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
	}
	if !names["outer"] || !names["sibling"] {
		t.Fatalf("expected outer and sibling, got %+v", defs)
	}
	if names["inner"] {
		t.Fatalf("did not expect inner to surface at module scope: %+v", defs)
	}
}

func TestClassInits_PreservesMultipleInits(t *testing.T) {
	root := parse(t, `
class Widget:
    def __init__(self):
        pass

    def __init__(self, size):
        pass

class Empty:
    def helper(self):
        pass
`)
	inits := ClassInits(root)
	var widgetCount, emptyCount int
	for _, i := range inits {
		switch i.Name {
		case "Widget":
			widgetCount++
		case "Empty":
			emptyCount++
		}
	}
	if widgetCount != 2 {
		t.Fatalf("expected both Widget inits to be preserved, got %d", widgetCount)
	}
	if emptyCount != 0 {
		t.Fatalf("Empty has no __init__, expected 0 entries, got %d", emptyCount)
	}
}

func TestImports_AbsoluteAndRelative(t *testing.T) {
	root := parse(t, `
import os
from .sibling import helper
from pkg.mod import Thing
`)
	imports := Imports(root)
	byKey := map[string]Import{}
	for _, im := range imports {
		byKey[im.Key()] = im
	}
	os, ok := byKey["os"]
	if !ok || os.Level != 0 || os.Module != "" {
		t.Fatalf("expected absolute import os, got %+v (ok=%v)", os, ok)
	}
	sib, ok := byKey["sibling.helper"]
	if !ok || sib.Level != 1 {
		t.Fatalf("expected relative import sibling.helper at level 1, got %+v (ok=%v)", sib, ok)
	}
	thing, ok := byKey["pkg.mod.Thing"]
	if !ok || thing.Level != 0 {
		t.Fatalf("expected absolute import pkg.mod.Thing, got %+v (ok=%v)", thing, ok)
	}
}

func TestFunctionDefs_TopLevelArityIncludesFirstParameter(t *testing.T) {
	root := parse(t, `
def f(a):
    pass
`)
	defs := FunctionDefs(root)
	if len(defs) != 1 {
		t.Fatalf("expected one def, got %d", len(defs))
	}
	if defs[0].Positional != 1 {
		t.Fatalf("expected positional=1 (a is not an implicit receiver for a free function), got %d", defs[0].Positional)
	}
}

func TestClassInits_ArityExcludesSelf(t *testing.T) {
	root := parse(t, `
class C:
    def __init__(self, a, b=1):
        pass
`)
	inits := ClassInits(root)
	if len(inits) != 1 {
		t.Fatalf("expected one init, got %d", len(inits))
	}
	if inits[0].Positional != 1 {
		t.Fatalf("expected positional=1 (a), got %d", inits[0].Positional)
	}
	if inits[0].Defaulted != 1 {
		t.Fatalf("expected defaulted=1 (b=1), got %d", inits[0].Defaulted)
	}
}
