// Package syntax is the Syntax Adapter: a uniform tree representation over
// tree-sitter's Python grammar, exposing only the operations the rest of
// the resolver needs (kind, named children, field lookup, text).
package syntax

import (
	"bytes"
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Kind is a tagged node kind. Unknown kinds pass through as their raw
// tree-sitter type string, so callers can exhaustively switch over the
// constants below and fall through to a default "ignore" branch for
// anything else (see internal/callgraph).
type Kind string

const (
	KindModule                 Kind = "module"
	KindImportStatement        Kind = "import_statement"
	KindImportFromStatement    Kind = "import_from_statement"
	KindExpressionStatement    Kind = "expression_statement"
	KindIf                     Kind = "if_statement"
	KindElif                   Kind = "elif_clause"
	KindElse                   Kind = "else_clause"
	KindFor                    Kind = "for_statement"
	KindWhile                  Kind = "while_statement"
	KindWith                   Kind = "with_statement"
	KindWithClause             Kind = "with_clause"
	KindTry                    Kind = "try_statement"
	KindBlock                  Kind = "block"
	KindAssignment             Kind = "assignment"
	KindAugmentedAssignment    Kind = "augmented_assignment"
	KindCall                   Kind = "call"
	KindParenthesizedExpr      Kind = "parenthesized_expression"
	KindNotOperator            Kind = "not_operator"
	KindConditionalExpr        Kind = "conditional_expression"
	KindRaise                  Kind = "raise_statement"
	KindReturn                 Kind = "return_statement"
	KindBinaryOperator         Kind = "binary_operator"
	KindBooleanOperator        Kind = "boolean_operator"
	KindDictionary             Kind = "dictionary"
	KindFunctionDefinition     Kind = "function_definition"
	KindClassDefinition        Kind = "class_definition"
	KindIdentifier             Kind = "identifier"
	KindAttribute              Kind = "attribute"
	KindSubscript              Kind = "subscript"
	KindArgumentList           Kind = "argument_list"
	KindParameters             Kind = "parameters"
	KindDefaultParameter       Kind = "default_parameter"
	KindTypedDefaultParameter  Kind = "typed_default_parameter"
	KindListSplatPattern       Kind = "list_splat_pattern"
	KindDictionarySplatPattern Kind = "dictionary_splat_pattern"
	KindKeywordArgument        Kind = "keyword_argument"
	KindListSplat              Kind = "list_splat"
	KindDictionarySplat        Kind = "dictionary_splat"
	KindComment                Kind = "comment"
	KindList                   Kind = "list"
	KindTuple                  Kind = "tuple"
	KindPair                   Kind = "pair"
)

// Tree is a parsed source file. It owns the parser's tree and the original
// source bytes; nodes are only valid for the lifetime of the Tree.
type Tree struct {
	src  []byte
	tree *sitter.Tree
}

// Parse parses Python source bytes into a Tree. Parser failures (per
// spec.md §4.1) are not surfaced as Go errors: a nil/empty parse yields a
// Tree whose Root() is the zero Node, which callers treat as an empty,
// no-op file.
func Parse(src []byte) *Tree {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	t, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || t == nil {
		return &Tree{src: src}
	}
	return &Tree{src: src, tree: t}
}

// Root returns the tree's root node, or the zero Node if parsing failed.
func (t *Tree) Root() Node {
	if t.tree == nil {
		return Node{}
	}
	return Node{n: t.tree.RootNode(), src: t.src}
}

// Node is an opaque handle into a parsed tree.
type Node struct {
	n   *sitter.Node
	src []byte
}

// Valid reports whether the node refers to an actual tree-sitter node.
func (n Node) Valid() bool { return n.n != nil }

// Kind returns the node's tagged kind.
func (n Node) Kind() Kind {
	if n.n == nil {
		return ""
	}
	return Kind(n.n.Type())
}

// IsNamed reports whether this is a named (non-anonymous) node.
func (n Node) IsNamed() bool {
	return n.n != nil && n.n.IsNamed()
}

// NamedChildren returns the node's named children in source order.
func (n Node) NamedChildren() []Node {
	if n.n == nil {
		return nil
	}
	count := int(n.n.NamedChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Node{n: n.n.NamedChild(i), src: n.src})
	}
	return out
}

// Field returns the named-field child, if present.
func (n Node) Field(name string) (Node, bool) {
	if n.n == nil {
		return Node{}, false
	}
	c := n.n.ChildByFieldName(name)
	if c == nil {
		return Node{}, false
	}
	return Node{n: c, src: n.src}, true
}

// Text returns the node's original source text, trimmed of surrounding
// whitespace.
func (n Node) Text() string {
	if n.n == nil {
		return ""
	}
	return string(bytes.TrimSpace(n.src[n.n.StartByte():n.n.EndByte()]))
}

// StartByte and EndByte return the node's byte span in the source.
func (n Node) StartByte() uint32 {
	if n.n == nil {
		return 0
	}
	return n.n.StartByte()
}

func (n Node) EndByte() uint32 {
	if n.n == nil {
		return 0
	}
	return n.n.EndByte()
}
