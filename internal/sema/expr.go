package sema

import (
	"upp/internal/ast"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/types"
)

// checkExpr type-checks e and records its ExprInfo in the pass's
// PassInfo, returning it for the caller's own use (e.g. to cast into
// an expected type). It takes no expected-type context: a literal's
// width comes from its suffix, and a struct literal's fields are
// checked only against its written type.
func (c *checker) checkExpr(e ast.Expr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	info := c.checkExprKind(e, table, scope)
	if info.Type == nil {
		info.Type = c.data.Types.Prim(types.Unknown)
	}
	if info.InitialType == nil {
		info.InitialType = info.Type
	}
	c.info.Exprs[e] = info
	return info
}

func (c *checker) checkExprKind(e ast.Expr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	switch ex := e.(type) {
	case *ast.Literal:
		return c.checkLiteral(ex)
	case *ast.PathExpr:
		return c.checkPath(ex, table, scope)
	case *ast.NamedTypeExpr:
		// a bare type name used as a value, e.g. size_of(MyStruct)
		t := c.resolveType(ex, table)
		handleType := c.data.Types.Prim(types.TypeHandleKind)
		return &ExprInfo{Type: handleType, Const: &ConstValue{Type: handleType, Bytes: encodeHandle(t.Handle)}}
	case *ast.BinaryExpr:
		return c.checkBinary(ex, table, scope)
	case *ast.UnaryExpr:
		return c.checkUnary(ex, table, scope)
	case *ast.CallExpr:
		return c.checkCall(ex, table, scope)
	case *ast.MemberExpr:
		return c.checkMember(ex, table, scope)
	case *ast.IndexExpr:
		return c.checkIndex(ex, table, scope)
	case *ast.CastExpr:
		return c.checkCast(ex, table, scope)
	case *ast.ArrayLiteral:
		return c.checkArrayLiteral(ex, table, scope)
	case *ast.StructLiteral:
		return c.checkStructLiteral(ex, table, scope)
	case *ast.NewExpr:
		return c.checkNew(ex, table, scope)
	case *ast.IfExpr:
		return c.checkIfExpr(ex, table, scope)
	case *ast.ErrorExpr:
		return &ExprInfo{Type: c.data.Types.Prim(types.Unknown)}
	default:
		return &ExprInfo{Type: typeError(c, e.NodeRange(), "unrecognised expression")}
	}
}

func (c *checker) checkLiteral(l *ast.Literal) *ExprInfo {
	reg := c.data.Types
	switch l.Kind {
	case ast.LitInt:
		k := types.Int32
		if w, ok := intSuffixKind[l.Suffix]; ok {
			k = w
		}
		return &ExprInfo{Type: reg.Prim(k), Const: &ConstValue{Type: reg.Prim(k), Bytes: encodeInt(l.Int, k)}}
	case ast.LitFloat:
		k := types.Float64
		if l.Suffix == "f32" {
			k = types.Float32
		}
		return &ExprInfo{Type: reg.Prim(k)}
	case ast.LitString:
		return &ExprInfo{Type: reg.Slice(reg.Prim(types.Uint8))}
	case ast.LitChar:
		return &ExprInfo{Type: reg.Prim(types.Uint8)}
	case ast.LitBool:
		b := byte(0)
		if l.Bool {
			b = 1
		}
		return &ExprInfo{Type: reg.Prim(types.Bool), Const: &ConstValue{Type: reg.Prim(types.Bool), Bytes: []byte{b}}}
	case ast.LitNull:
		return &ExprInfo{Type: reg.Prim(types.Unknown)} // resolved against context by tryImplicitCast's optional rule
	default:
		return &ExprInfo{Type: reg.Prim(types.Unknown)}
	}
}

var intSuffixKind = map[string]types.Kind{
	"i8": types.Int8, "i16": types.Int16, "i32": types.Int32, "i64": types.Int64,
	"u8": types.Uint8, "u16": types.Uint16, "u32": types.Uint32, "u64": types.Uint64,
}

func encodeHandle(h uint64) []byte {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = byte(h >> (8 * i))
	}
	return buf
}

func encodeInt(v int64, k types.Kind) []byte {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	switch k {
	case types.Int8, types.Uint8:
		return buf[:1]
	case types.Int16, types.Uint16:
		return buf[:2]
	case types.Int32, types.Uint32:
		return buf[:4]
	default:
		return buf[:8]
	}
}

func (c *checker) checkPath(p *ast.PathExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	if len(p.Segments) == 1 {
		if lv, ok := scope.lookup(p.Segments[0]); ok {
			return &ExprInfo{Type: lv.Type}
		}
		// a builtin type name used as a value, e.g. id(i32, 5) or
		// size_of(u8): folds to a type-handle constant.
		if prim, ok := builtinPrims[p.Segments[0]]; ok {
			t := c.data.Types.Prim(prim)
			handleType := c.data.Types.Prim(types.TypeHandleKind)
			return &ExprInfo{Type: handleType, Const: &ConstValue{Type: handleType, Bytes: encodeHandle(t.Handle)}}
		}
	}
	sym, ok := table.Lookup(p.Segments[0], c.item)
	if !ok {
		c.data.Diags.Add(diag.UnresolvedSymbol, p.NodeRange(), "undefined: %s", p.Segments[0])
		return &ExprInfo{Type: c.data.Types.Prim(types.Unknown)}
	}
	for !depanalysis.Satisfied(sym, depanalysis.RequireFullyResolved) {
		c.yield.Await(sym, depanalysis.RequireFullyResolved)
	}
	if sym.Kind == depanalysis.TypeSym && sym.ResolvedType != nil {
		// a user type name used as a value folds to its handle, the
		// same way a builtin name does above.
		handleType := c.data.Types.Prim(types.TypeHandleKind)
		return &ExprInfo{Type: handleType, Symbol: sym, Const: &ConstValue{Type: handleType, Bytes: encodeHandle(sym.ResolvedType.Handle)}}
	}
	t := c.data.SymbolType(sym)
	if t == nil {
		t = c.data.Types.Prim(types.Unknown)
	}
	return &ExprInfo{Type: t, Symbol: sym}
}

func (c *checker) checkUnary(u *ast.UnaryExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	operand := c.checkExpr(u.Operand, table, scope)
	switch u.Op {
	case ast.OpNeg:
		return &ExprInfo{Type: operand.Type}
	case ast.OpNot:
		return &ExprInfo{Type: c.data.Types.Prim(types.Bool)}
	case ast.OpBitNot:
		return &ExprInfo{Type: operand.Type}
	case ast.OpAddressOf:
		return &ExprInfo{Type: c.data.Types.Pointer(operand.Type)}
	case ast.OpDeref:
		if operand.Type.Kind == types.Pointer {
			return &ExprInfo{Type: operand.Type.Elem}
		}
		return &ExprInfo{Type: typeError(c, u.NodeRange(), "cannot dereference %s", operand.Type)}
	default:
		return &ExprInfo{Type: c.data.Types.Prim(types.Unknown)}
	}
}

func (c *checker) checkBinary(b *ast.BinaryExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	left := c.checkExpr(b.Left, table, scope)
	right := c.checkExpr(b.Right, table, scope)

	switch b.Op {
	case ast.OpAnd, ast.OpOr:
		return &ExprInfo{Type: c.data.Types.Prim(types.Bool)}
	case ast.OpShl, ast.OpShr:
		return &ExprInfo{Type: left.Type}
	}

	if common, ok := c.unifyOperands(left, right); ok {
		switch b.Op {
		case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe:
			return &ExprInfo{Type: c.data.Types.Prim(types.Bool)}
		default: // Add/Sub/Mul/Div/Mod/BitAnd/BitOr/BitXor
			return &ExprInfo{Type: common}
		}
	}

	// Builtin table miss: consult registered operator overloads before
	// reporting no-such-operator.
	if c.data.Ctx.Enabled(OptOperatorOverloads) {
		if fn, ok := c.data.binaryOperator(b.Op, left.Type, right.Type); ok {
			return &ExprInfo{Type: fn.Return, Call: &CallableCall{Callee: fn, ArgToParam: []int{0, 1}}}
		}
	}
	c.data.Diags.Add(diag.NoSuchOperator, b.NodeRange(), "no operator for %s and %s", left.Type, right.Type)
	return &ExprInfo{Type: c.data.Types.Prim(types.Unknown)}
}

// unifyOperands widens whichever of left/right is narrower to the
// other's type. Unknown absorbs: an operand that already failed keeps
// failing silently instead of cascading a second diagnostic.
func (c *checker) unifyOperands(left, right *ExprInfo) (*types.Type, bool) {
	if left.Type.Kind == types.Unknown || right.Type.Kind == types.Unknown {
		return c.data.Types.Prim(types.Unknown), true
	}
	if sameType(left.Type, right.Type) {
		return left.Type, true
	}
	if kind, ok := c.implicitCast(right.Type, left.Type); ok {
		right.Cast = kind
		return left.Type, true
	}
	if kind, ok := c.implicitCast(left.Type, right.Type); ok {
		left.Cast = kind
		return right.Type, true
	}
	return nil, false
}

func (c *checker) checkCast(ce *ast.CastExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	value := c.checkExpr(ce.Value, table, scope)
	target := c.resolveType(ce.Target, table)
	kind, ok := tryExplicitCast(c.data.Types, value.Type, target)
	if !ok {
		return &ExprInfo{Type: typeError(c, ce.NodeRange(), "no cast from %s to %s", value.Type, target)}
	}
	return &ExprInfo{Type: target, Cast: kind}
}

func (c *checker) checkIndex(ix *ast.IndexExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	obj := c.checkExpr(ix.Object, table, scope)
	c.checkExpr(ix.Index, table, scope)
	switch obj.Type.Kind {
	case types.Array, types.Slice:
		return &ExprInfo{Type: obj.Type.Elem}
	case types.Pointer:
		return &ExprInfo{Type: obj.Type.Elem}
	default:
		return &ExprInfo{Type: typeError(c, ix.NodeRange(), "%s is not indexable", obj.Type)}
	}
}

func (c *checker) checkMember(m *ast.MemberExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	obj := c.checkExpr(m.Object, table, scope)

	// Enum value access: Color.Red folds to the variant's ordinal.
	if den := c.denotedType(obj); den != nil && den.Kind == types.Enum {
		for i, v := range den.EnumValues {
			if v == m.Name {
				return &ExprInfo{Type: den, Const: &ConstValue{Type: den, Bytes: encodeInt(int64(i), types.Int32)}}
			}
		}
		return &ExprInfo{Type: typeError(c, m.NodeRange(), "%s has no value %s", den, m.Name)}
	}

	st := obj.Type
	if st.Kind == types.Pointer {
		st = st.Elem
	}
	if st.Kind != types.Struct {
		return &ExprInfo{Type: typeError(c, m.NodeRange(), "%s has no member %s", obj.Type, m.Name)}
	}
	if st.Struct != nil {
		for _, mem := range st.Struct.Members {
			if mem.Name != nil && *mem.Name == m.Name {
				return &ExprInfo{Type: mem.Type}
			}
		}
	}
	for _, mem := range c.data.VariantFields(st) {
		if mem.Name != nil && *mem.Name == m.Name {
			return &ExprInfo{Type: mem.Type}
		}
	}
	return &ExprInfo{Type: typeError(c, m.NodeRange(), "%s has no member %s", obj.Type, m.Name)}
}

func (c *checker) checkArrayLiteral(a *ast.ArrayLiteral, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	var elem *types.Type
	for _, el := range a.Elements {
		info := c.checkExpr(el, table, scope)
		if elem == nil {
			elem = info.Type
		} else if !sameType(elem, info.Type) {
			if kind, ok := c.implicitCast(info.Type, elem); ok {
				info.Cast = kind
			}
		}
	}
	if elem == nil {
		elem = c.data.Types.Prim(types.Unknown)
	}
	return &ExprInfo{Type: c.data.Types.Array(elem, len(a.Elements))}
}

func (c *checker) checkStructLiteral(s *ast.StructLiteral, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	var want *types.Type
	if s.Type != nil {
		want = c.resolveType(s.Type, table)
	}
	for _, f := range s.Fields {
		info := c.checkExpr(f.Value, table, scope)
		if want != nil && want.Struct != nil {
			for _, mem := range want.Struct.Members {
				if mem.Name != nil && *mem.Name == f.Name {
					if kind, ok := c.implicitCast(info.Type, mem.Type); ok {
						info.Cast = kind
					}
				}
			}
		}
	}
	if want == nil {
		want = c.data.Types.Prim(types.Unknown)
	}
	return &ExprInfo{Type: want}
}

func (c *checker) checkNew(n *ast.NewExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	elem := c.resolveType(n.Type, table)
	if n.Count != nil {
		c.checkExpr(n.Count, table, scope)
		return &ExprInfo{Type: c.data.Types.Slice(elem)}
	}
	return &ExprInfo{Type: c.data.Types.Pointer(elem)}
}

func (c *checker) checkIfExpr(e *ast.IfExpr, table *depanalysis.SymbolTable, scope *localScope) *ExprInfo {
	c.checkExpr(e.Cond, table, scope)
	thenType := c.lastBlockExprType(e.Then, table, scope)
	if e.Else != nil {
		c.lastBlockExprType(e.Else, table, scope)
	}
	return &ExprInfo{Type: thenType}
}

// lastBlockExprType checks every statement in b and, when the last one
// is an expression statement, returns its type (an IfExpr yields its
// last expression's value).
func (c *checker) lastBlockExprType(b *ast.CodeBlock, table *depanalysis.SymbolTable, scope *localScope) *types.Type {
	inner := newLocalScope(scope, table)
	var last *types.Type
	for i, s := range b.Stmts {
		if i == len(b.Stmts)-1 {
			if es, ok := s.(*ast.ExprStmt); ok {
				last = c.checkExpr(es.Expr, table, inner).Type
				continue
			}
		}
		c.checkStmt(s, inner)
	}
	if last == nil {
		last = c.data.Types.Prim(types.Void)
	}
	return last
}
