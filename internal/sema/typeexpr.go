package sema

import (
	"upp/internal/ast"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/types"
)

// resolveType turns a parsed TypeExpr into a registered, canonical
// *types.Type. Named references are looked up through table; the
// caller is responsible for having already awaited the corresponding
// Dependency (dependency analysis recorded one MemberReference or
// MemberInMemory dependency per NamedTypeExpr it found).
func (c *checker) resolveType(te ast.TypeExpr, table *depanalysis.SymbolTable) *types.Type {
	if te == nil {
		return c.data.Types.Prim(types.Void)
	}
	switch t := te.(type) {
	case *ast.NamedTypeExpr:
		return c.resolveNamedType(t, table)
	case *ast.PointerTypeExpr:
		return c.data.Types.Pointer(c.resolveType(t.Elem, table))
	case *ast.OptionalTypeExpr:
		return c.data.Types.Optional(c.resolveType(t.Elem, table))
	case *ast.ArrayTypeExpr:
		elem := c.resolveType(t.Elem, table)
		if t.Count == nil {
			return c.data.Types.Slice(elem)
		}
		count := c.constIntOrUnknown(t.Count, table)
		return c.data.Types.Array(elem, count)
	case *ast.FunctionTypeExpr:
		params := make([]*types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = c.resolveType(p, table)
		}
		ret := c.resolveType(t.Return, table)
		return c.data.Types.FunctionPointer(params, ret)
	default:
		c.data.Diags.Add(diag.TypeMismatch, te.NodeRange(), "unrecognised type expression")
		return c.data.Types.Prim(types.Unknown)
	}
}

func (c *checker) resolveNamedType(t *ast.NamedTypeExpr, table *depanalysis.SymbolTable) *types.Type {
	if len(t.Path) == 1 {
		if prim, ok := builtinPrims[t.Path[0]]; ok {
			return c.data.Types.Prim(prim)
		}
		if t.Path[0] == "Any" {
			return c.data.Types.Any()
		}
		if t.Path[0] == "Type" {
			return c.data.Types.Prim(types.TypeHandleKind)
		}
	}
	sym, ok := table.Lookup(t.Path[0], c.item)
	if !ok {
		c.data.Diags.Add(diag.UnresolvedSymbol, t.NodeRange(), "undefined type: %s", t.Path[0])
		return c.data.Types.Prim(types.Unknown)
	}
	for !depanalysis.Satisfied(sym, depanalysis.RequireExists) {
		c.yield.Await(sym, depanalysis.RequireExists)
	}
	if sym.Kind != depanalysis.TypeSym || sym.ResolvedType == nil {
		c.data.Diags.Add(diag.TypeMismatch, t.NodeRange(), "%s is not a type", t.Path[0])
		return c.data.Types.Prim(types.Unknown)
	}
	return sym.ResolvedType
}

var builtinPrims = map[string]types.Kind{
	"void": types.Void,
	"i8":   types.Int8, "i16": types.Int16, "i32": types.Int32, "i64": types.Int64,
	"u8": types.Uint8, "u16": types.Uint16, "u32": types.Uint32, "u64": types.Uint64,
	"f32": types.Float32, "f64": types.Float64,
	"bool":    types.Bool,
	"address": types.Address,
}

// constIntOrUnknown evaluates a simple compile-time integer expression
// used as an array length: a bare integer literal, or any expression
// the checker folds to a constant (e.g. an enum value), gives its
// value; anything else folds to UnknownCount rather than failing the
// whole type resolution. A polymorphic array-length pattern variable is a
// supported but separate mechanism (Param.PatternVar), not handled
// here.
func (c *checker) constIntOrUnknown(e ast.Expr, table *depanalysis.SymbolTable) int {
	if lit, ok := e.(*ast.Literal); ok && lit.Kind == ast.LitInt {
		return int(lit.Int)
	}
	info := c.checkExpr(e, table, nil)
	if info != nil && info.Const != nil && info.Const.Type.Kind != types.Unknown {
		return int(decodeIntConst(info.Const))
	}
	return types.UnknownCount
}

func decodeIntConst(cv *ConstValue) int64 {
	var v int64
	for i := len(cv.Bytes) - 1; i >= 0; i-- {
		v = v<<8 | int64(cv.Bytes[i])
	}
	return v
}

func typeError(c *checker, r ast.Range, format string, args ...interface{}) *types.Type {
	c.data.Diags.Add(diag.TypeMismatch, r, format, args...)
	return c.data.Types.Prim(types.Unknown)
}
