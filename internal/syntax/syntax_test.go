package syntax

import "testing"

func TestParse_RootAndKind(t *testing.T) {
	tree := Parse([]byte("def f():\n    pass\n"))
	root := tree.Root()
	if !root.Valid() {
		t.Fatal("expected a valid root node")
	}
	if root.Kind() != KindModule {
		t.Fatalf("expected module root, got %q", root.Kind())
	}
	children := root.NamedChildren()
	if len(children) != 1 || children[0].Kind() != KindFunctionDefinition {
		t.Fatalf("expected a single function_definition child, got %+v", children)
	}
}

func TestParse_EmptySourceYieldsNoOpTree(t *testing.T) {
	tree := Parse([]byte(""))
	root := tree.Root()
	if !root.Valid() {
		t.Fatal("an empty file still has a (empty) module root")
	}
	if len(root.NamedChildren()) != 0 {
		t.Fatalf("expected no children for empty source, got %v", root.NamedChildren())
	}
}

func TestNode_FieldAndText(t *testing.T) {
	tree := Parse([]byte("def greet(name):\n    pass\n"))
	fn := tree.Root().NamedChildren()[0]
	name, ok := fn.Field("name")
	if !ok || name.Text() != "greet" {
		t.Fatalf("expected function name 'greet', got %q (ok=%v)", name.Text(), ok)
	}
}

func TestNode_ZeroValueIsInert(t *testing.T) {
	var n Node
	if n.Valid() {
		t.Fatal("zero-value Node should not be valid")
	}
	if n.Kind() != "" {
		t.Fatalf("expected empty kind, got %q", n.Kind())
	}
	if n.NamedChildren() != nil {
		t.Fatal("expected nil children for zero-value Node")
	}
	if _, ok := n.Field("anything"); ok {
		t.Fatal("zero-value Node should have no fields")
	}
}
