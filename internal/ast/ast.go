// Package ast defines Upp's abstract syntax tree: a discriminated node
// hierarchy where every node records its source range, a pointer to
// its parent, and a monotonic allocation index, so a generic walk is
// possible without switching on the concrete variant.
package ast

import "upp/internal/lexer"

// Node is implemented by every AST variant.
type Node interface {
	base() *Base
	// Children enumerates this node's direct children in source order,
	// so a walker can traverse the tree without knowing the variant.
	Children() []Node
	// NodeRange exposes the node's source span generically, without
	// needing to know the concrete variant.
	NodeRange() Range
}

// Base is embedded in every concrete node and carries the fields
// every node shares: bounding range, parent, and allocation index.
type Base struct {
	Range  Range
	parent Node
	index  int
}

// Range is a source span expressed as two lexer positions; bounding
// ranges are monotone: a parent's Range always contains every child's.
type Range struct {
	Start lexer.Position
	End   lexer.Position
}

func (b *Base) base() *Base { return b }

// NodeRange returns the node's source span.
func (b *Base) NodeRange() Range { return b.Range }

// Parent returns the enclosing node, or nil for the module root.
func (b *Base) Parent() Node { return b.parent }

// Index is this node's monotonic allocation index: for two nodes
// allocated during the same parse, the smaller index was allocated
// first, giving a stable "which came first" comparison independent of
// tree position.
func (b *Base) Index() int { return b.index }

// Arena allocates nodes and assigns them increasing indices. One arena
// per compilation unit; freeing the arena frees every node it owns,
// in Go this is simply letting the arena and everything it references
// become garbage.
type Arena struct {
	next int
}

// NewArena creates an empty node arena.
func NewArena() *Arena { return &Arena{} }

// Alloc assigns the next allocation index and range to a Base,
// wiring up parent; call this once per node at construction time.
// Parents are set once and never rewritten (set once, never rewritten).
func (a *Arena) Alloc(parent Node, r Range) Base {
	b := Base{Range: r, parent: parent, index: a.next}
	a.next++
	return b
}

// SetParent wires a child's parent pointer once its enclosing node
// exists. Parser construction order is: build every child, build the
// parent node from them (via Arena.Alloc), then call SetParent on each
// child. Parents are set once here and never rewritten afterward.
func (b *Base) SetParent(parent Node) { b.parent = parent }

// Walk visits n and every descendant in pre-order.
func Walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children() {
		Walk(c, visit)
	}
}
