package ast

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// BinaryOp enumerates the binary operators the parser recognises.
// Which of these resolve to a builtin instruction vs. an operator
// overload is decided by the semantic analyser, not here; the
// parser only records which operator text was seen.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpAnd
	OpOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
)

type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
	OpBitNot
	OpAddressOf
	OpDeref
)

// LiteralKind discriminates Literal.Value's dynamic type.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitChar
	LitBool
	LitNull
)

type Literal struct {
	Base
	Kind   LiteralKind
	Int    int64
	Float  float64
	String string
	Bool   bool
	Suffix string // integer/float width suffix, "" if unspecified
}

func (*Literal) exprNode()        {}
func (l *Literal) Children() []Node { return nil }

// PathExpr names a symbol by a dotted path: a bare identifier, or a
// module-qualified reference ("mod.Name"). Resolution against a symbol
// table happens in the dependency analyser / semantic analyser.
type PathExpr struct {
	Base
	Segments []string
}

func (*PathExpr) exprNode()          {}
func (p *PathExpr) Children() []Node { return nil }

type BinaryExpr struct {
	Base
	Op          BinaryOp
	Left, Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) Children() []Node {
	return []Node{b.Left, b.Right}
}

type UnaryExpr struct {
	Base
	Op      UnaryOp
	Operand Expr
}

func (*UnaryExpr) exprNode() {}
func (u *UnaryExpr) Children() []Node {
	return []Node{u.Operand}
}

// Arg is one call argument, positionally or by name.
type Arg struct {
	Name  string // "" for positional
	Value Expr
}

// CallExpr is a call node. Callee is resolved by the
// semantic analyser into a Callable_Call (function, polymorphic
// function, struct initialiser, hardcoded intrinsic, ...).
type CallExpr struct {
	Base
	Callee Expr
	Args   []Arg
}

func (*CallExpr) exprNode() {}
func (c *CallExpr) Children() []Node {
	ch := make([]Node, 0, len(c.Args)+1)
	ch = append(ch, c.Callee)
	for _, a := range c.Args {
		ch = append(ch, a.Value)
	}
	return ch
}

// MemberExpr is `object.name`, a struct member access, resolved by
// the analyser into a member-in-memory or member-reference dependency
// depending on position.
type MemberExpr struct {
	Base
	Object Expr
	Name   string
}

func (*MemberExpr) exprNode() {}
func (m *MemberExpr) Children() []Node {
	return []Node{m.Object}
}

// IndexExpr is `object[index]`, array/slice element access.
type IndexExpr struct {
	Base
	Object, Index Expr
}

func (*IndexExpr) exprNode() {}
func (i *IndexExpr) Children() []Node {
	return []Node{i.Object, i.Index}
}

// CastExpr is an explicit `cast(T) expr` or `expr as T`.
type CastExpr struct {
	Base
	Target TypeExpr
	Value  Expr
}

func (*CastExpr) exprNode() {}
func (c *CastExpr) Children() []Node {
	return []Node{c.Target, c.Value}
}

// ArrayLiteral is `.[e1, e2, ...]`.
type ArrayLiteral struct {
	Base
	Elements []Expr
}

func (*ArrayLiteral) exprNode() {}
func (a *ArrayLiteral) Children() []Node {
	ch := make([]Node, len(a.Elements))
	for i, e := range a.Elements {
		ch[i] = e
	}
	return ch
}

// StructLiteral is `.{ field: value, ... }`, optionally typed.
type StructLiteralField struct {
	Name  string
	Value Expr
}

type StructLiteral struct {
	Base
	Type   TypeExpr // nil when the type is inferred from context
	Fields []StructLiteralField
}

func (*StructLiteral) exprNode() {}
func (s *StructLiteral) Children() []Node {
	ch := []Node{}
	if s.Type != nil {
		ch = append(ch, s.Type)
	}
	for _, f := range s.Fields {
		ch = append(ch, f.Value)
	}
	return ch
}

// NewExpr is `new T` / `new [n]T`.
type NewExpr struct {
	Base
	Type  TypeExpr
	Count Expr // nil unless an array form
}

func (*NewExpr) exprNode() {}
func (n *NewExpr) Children() []Node {
	ch := []Node{n.Type}
	if n.Count != nil {
		ch = append(ch, n.Count)
	}
	return ch
}

// IfExpr is `if cond { a } else { b }` used in expression position
// (e.g. on the right of a top-level `::`). Statement-position if is
// ast.IfStmt; the IR generator lowers both through the same path,
// treating IfExpr's blocks as yielding their last expression.
type IfExpr struct {
	Base
	Cond Expr
	Then *CodeBlock
	Else *CodeBlock // nil if absent
}

func (*IfExpr) exprNode() {}
func (e *IfExpr) Children() []Node {
	ch := []Node{e.Cond, e.Then}
	if e.Else != nil {
		ch = append(ch, e.Else)
	}
	return ch
}

// ErrorExpr is the recovery placeholder produced when an expression is
// malformed; downstream phases treat it as type Unknown without
// reporting further errors for the same cause.
type ErrorExpr struct {
	Base
	Message string
}

func (*ErrorExpr) exprNode()          {}
func (e *ErrorExpr) Children() []Node { return nil }
