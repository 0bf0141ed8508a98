package sema

import (
	"upp/internal/ast"
	"upp/internal/types"
)

// ContextOption is one discrete per-module configuration switch. Each
// implicit cast family and extension mechanism toggles independently,
// so a module can opt into a stricter dialect than the default.
type ContextOption int

const (
	OptImplicitIntWiden ContextOption = iota
	OptImplicitEnumToInt
	OptImplicitArrayToSlice
	OptImplicitValueToOptional
	OptImplicitValueToAny
	OptImplicitPointerByteAlias
	OptImplicitSubtypeUpcast
	OptImplicitFloatWiden
	OptOperatorOverloads
	OptCustomIterators

	numContextOptions
)

// Context is an enumerable option set chained to an optional parent.
// An option not overridden locally inherits the parent's state; the
// root default for every option is enabled.
type Context struct {
	parent *Context
	set    [numContextOptions]bool
	value  [numContextOptions]bool
}

// NewContext creates a context inheriting from parent (nil for the
// all-defaults root).
func NewContext(parent *Context) *Context { return &Context{parent: parent} }

// Set overrides opt at this level, shadowing any ancestor's setting.
func (c *Context) Set(opt ContextOption, on bool) {
	c.set[opt] = true
	c.value[opt] = on
}

// Enabled walks the parent chain for the nearest override.
func (c *Context) Enabled(opt ContextOption) bool {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if ctx.set[opt] {
			return ctx.value[opt]
		}
	}
	return true
}

// castOption maps an implicit cast onto the option gating it; the
// identity cast and every explicit-only cast are never gated.
func castOption(kind CastKind) (ContextOption, bool) {
	switch kind {
	case CastIntWiden:
		return OptImplicitIntWiden, true
	case CastEnumToInt:
		return OptImplicitEnumToInt, true
	case CastArrayToSlice:
		return OptImplicitArrayToSlice, true
	case CastValueToOptional:
		return OptImplicitValueToOptional, true
	case CastValueToAny:
		return OptImplicitValueToAny, true
	case CastPointerToPointer:
		return OptImplicitPointerByteAlias, true
	case CastSubtypeUpcast:
		return OptImplicitSubtypeUpcast, true
	case CastFloatWidth:
		return OptImplicitFloatWiden, true
	}
	return 0, false
}

// implicitCast applies the cast matrix under the current module
// context: a rule the matrix marks implicit is still rejected when the
// option gating it is switched off.
func (c *checker) implicitCast(from, to *types.Type) (CastKind, bool) {
	kind, ok := tryImplicitCast(c.data.Types, from, to)
	if !ok {
		return CastNone, false
	}
	if opt, gated := castOption(kind); gated && !c.data.Ctx.Enabled(opt) {
		return CastNone, false
	}
	return kind, true
}

// binaryOpKey identifies one registered operator overload. Types key
// by their canonical spelling, matching how sameType compares them.
type binaryOpKey struct {
	op       ast.BinaryOp
	lhs, rhs string
}

// RegisterBinaryOperator installs fn as the meaning of `lhs op rhs`
// for operand type pairs the builtin operator table has no entry for.
// Consulted only when the module context leaves OptOperatorOverloads
// enabled.
func (d *Data) RegisterBinaryOperator(op ast.BinaryOp, lhs, rhs *types.Type, fn *Callable) {
	d.mu.Lock()
	if d.binOverloads == nil {
		d.binOverloads = map[binaryOpKey]*Callable{}
	}
	d.binOverloads[binaryOpKey{op: op, lhs: lhs.String(), rhs: rhs.String()}] = fn
	d.mu.Unlock()
}

func (d *Data) binaryOperator(op ast.BinaryOp, lhs, rhs *types.Type) (*Callable, bool) {
	d.mu.Lock()
	fn, ok := d.binOverloads[binaryOpKey{op: op, lhs: lhs.String(), rhs: rhs.String()}]
	d.mu.Unlock()
	return fn, ok
}
