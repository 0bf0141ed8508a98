package irgen

import (
	"upp/internal/ast"
	"upp/internal/constpool"
	"upp/internal/depanalysis"
	"upp/internal/ir"
	"upp/internal/sema"
	"upp/internal/types"
)

// lowerExpr lowers e to an Access naming its value, applying whatever
// implicit cast the analyser recorded for it. Because an Access is
// itself just a term naming a storage location (not a copied value),
// the same function also serves as an assignment target's lvalue;
// AssignStmt's Target is lowered exactly the same way.
func (g *generator) lowerExpr(e ast.Expr) *ir.Access {
	info := g.info.Exprs[e]
	raw := g.lowerExprRaw(e, info)
	return g.applyCast(raw, info)
}

func (g *generator) lowerExprRaw(e ast.Expr, info *sema.ExprInfo) *ir.Access {
	if info != nil && info.Const != nil {
		return g.foldedConstAccess(info.Const)
	}
	switch ex := e.(type) {
	case *ast.Literal:
		return g.lowerLiteral(ex)
	case *ast.PathExpr:
		return g.lowerPath(ex, info)
	case *ast.NamedTypeExpr:
		// checkExprKind always folds this to info.Const; reached only
		// if that invariant ever slips.
		return g.intConst(types.TypeHandleKind, 0)
	case *ast.BinaryExpr:
		return g.lowerBinary(ex)
	case *ast.UnaryExpr:
		return g.lowerUnary(ex, info)
	case *ast.CallExpr:
		return g.lowerCall(ex, info)
	case *ast.MemberExpr:
		return g.lowerMember(ex)
	case *ast.IndexExpr:
		return g.lowerIndex(ex, info)
	case *ast.CastExpr:
		// The analyser already recorded the conversion as info.Cast;
		// the value itself lowers like any other cast position.
		return g.lowerExpr(ex.Value)
	case *ast.ArrayLiteral:
		return g.lowerArrayLiteral(ex, info)
	case *ast.StructLiteral:
		return g.lowerStructLiteral(ex, info)
	case *ast.NewExpr:
		return g.lowerNew(ex, info)
	case *ast.IfExpr:
		return g.lowerIfExpr(ex, info)
	case *ast.ErrorExpr:
		return g.intConst(types.Int32, 0)
	default:
		panic("irgen: unhandled expression node")
	}
}

func (g *generator) foldedConstAccess(cv *sema.ConstValue) *ir.Access {
	h := g.data.Consts.Insert(cv.Type, cv.Bytes)
	return ir.ConstantAccess(h, cv.Type)
}

func (g *generator) lowerLiteral(l *ast.Literal) *ir.Access {
	reg := g.reg
	switch l.Kind {
	case ast.LitFloat:
		k := types.Float64
		if l.Suffix == "f32" {
			k = types.Float32
		}
		t := reg.Prim(k)
		var bytes []byte
		if k == types.Float32 {
			bytes = constpool.EncodeFloat32(float32(l.Float))
		} else {
			bytes = constpool.EncodeFloat64(l.Float)
		}
		h := g.data.Consts.Insert(t, bytes)
		return ir.ConstantAccess(h, t)
	case ast.LitString:
		t := reg.Slice(reg.Prim(types.Uint8))
		h := g.data.Consts.Insert(t, constpool.EncodeString(l.String))
		return ir.ConstantAccess(h, t)
	case ast.LitChar:
		t := reg.Prim(types.Uint8)
		s := []byte(l.String)
		var b byte
		if len(s) > 0 {
			b = s[0]
		}
		h := g.data.Consts.Insert(t, []byte{b})
		return ir.ConstantAccess(h, t)
	case ast.LitNull:
		t := reg.Prim(types.Unknown)
		h := g.data.Consts.Insert(t, constpool.EncodeInt64(0))
		return ir.ConstantAccess(h, t)
	default: // LitInt, LitBool already folded via info.Const
		return g.intConst(types.Int32, l.Int)
	}
}

// lowerPath resolves a name read: a local variable/parameter first
// (shadowing), then a global symbol, a function (taken by value,
// yielding its address), or a top-level constant (inlined from its own
// definition's checked expression).
func (g *generator) lowerPath(p *ast.PathExpr, info *sema.ExprInfo) *ir.Access {
	if len(p.Segments) == 1 {
		if a, ok := g.scope.lookup(p.Segments[0]); ok {
			return a
		}
	}
	if info == nil || info.Symbol == nil {
		return g.intConst(types.Int32, 0)
	}
	sym := info.Symbol
	switch sym.Kind {
	case depanalysis.FunctionSym, depanalysis.PolymorphicFunctionSym:
		fn := g.resolveFunction(sym.Name)
		if fn == nil {
			return g.intConst(types.Int32, 0)
		}
		t := info.Type
		dst := g.block.NewRegister("", t)
		g.block.Emit(ir.FunctionAddress(dst, fn))
		return dst
	case depanalysis.ConstantSym:
		return g.lowerGlobalConstant(sym)
	default:
		return g.intConst(types.Int32, 0)
	}
}

// lowerGlobalConstant inlines a top-level `name :: value` binding's
// checked expression at the read site, memoized within the current
// function. The analyser never persists a folded value for anything
// beyond a literal, so re-lowering the definition's own expression
// tree (under its own resolved pass info) is how any other constant's
// value reaches a reader.
func (g *generator) lowerGlobalConstant(sym *depanalysis.Symbol) *ir.Access {
	if sym.Item == nil {
		return g.intConst(types.Int32, 0)
	}
	def, ok := sym.Item.Node.(*ast.Definition)
	if !ok {
		return g.intConst(types.Int32, 0)
	}
	if a, ok := g.constCache[def]; ok {
		return a
	}
	if len(sym.Item.Passes) == 0 {
		return g.intConst(types.Int32, 0)
	}
	savedInfo := g.info
	g.info = g.data.Info(sym.Item.Passes[0])
	val := g.lowerExpr(def.ConstValue)
	g.info = savedInfo
	g.constCache[def] = val
	return val
}

func (g *generator) lowerBinary(b *ast.BinaryExpr) *ir.Access {
	info := g.info.Exprs[b]
	if b.Op == ast.OpAnd || b.Op == ast.OpOr {
		return g.lowerShortCircuit(b)
	}
	lhs := g.lowerExpr(b.Left)
	rhs := g.lowerExpr(b.Right)
	dst := g.block.NewRegister("", info.Type)
	g.block.Emit(ir.Binary(dst, lhs, rhs, binOpToIR(b.Op)))
	return dst
}

// lowerShortCircuit desugars && / || to an explicit branch so the
// right-hand side is only evaluated when it can affect the result,
// writing into a shared result register from both paths.
func (g *generator) lowerShortCircuit(b *ast.BinaryExpr) *ir.Access {
	boolT := g.reg.Prim(types.Bool)
	result := g.block.NewRegister("", boolT)
	left := g.lowerExpr(b.Left)
	g.block.Emit(ir.Move(result, left))

	thenBlock := ir.NewBlock(g.block)
	savedBlock := g.block
	g.block = thenBlock
	right := g.lowerExpr(b.Right)
	g.block.Emit(ir.Move(result, right))
	g.block = savedBlock

	if b.Op == ast.OpAnd {
		g.block.Emit(ir.If(result, thenBlock, nil))
	} else {
		g.block.Emit(ir.If(result, nil, thenBlock))
	}
	return result
}

func (g *generator) lowerUnary(u *ast.UnaryExpr, info *sema.ExprInfo) *ir.Access {
	switch u.Op {
	case ast.OpAddressOf:
		operand := g.lowerExpr(u.Operand)
		return ir.AddressOf(operand, info.Type)
	case ast.OpDeref:
		operand := g.lowerExpr(u.Operand)
		return ir.Dereference(operand)
	default:
		operand := g.lowerExpr(u.Operand)
		dst := g.block.NewRegister("", info.Type)
		g.block.Emit(ir.Unary(dst, operand, unOpToIR(u.Op)))
		return dst
	}
}

func (g *generator) lowerMember(m *ast.MemberExpr) *ir.Access {
	obj := g.lowerExpr(m.Object)
	objType := g.info.Exprs[m.Object].Type
	st := objType
	if st.Kind == types.Pointer {
		st = st.Elem
		obj = ir.Dereference(obj)
	}
	idx, memberType := g.memberIndex(st, m.Name)
	return ir.Member(obj, idx, memberType)
}

// memberIndex mirrors internal/sema's checkMember lookup order: a
// struct's own members first, then, for a tagged-union subtype, its
// variant-only refinement fields, indexed starting right after the
// base member count (the same numbering internal/types.FinishSubtype
// assigned their offsets under).
func (g *generator) memberIndex(st *types.Type, name string) (int, *types.Type) {
	if st.Struct != nil {
		for i, mem := range st.Struct.Members {
			if mem.Name != nil && *mem.Name == name {
				return i, mem.Type
			}
		}
		for j, mem := range g.data.VariantFields(st) {
			if mem.Name != nil && *mem.Name == name {
				return len(st.Struct.Members) + j, mem.Type
			}
		}
	}
	return 0, g.reg.Prim(types.Unknown)
}

func (g *generator) lowerIndex(ix *ast.IndexExpr, info *sema.ExprInfo) *ir.Access {
	obj := g.lowerExpr(ix.Object)
	idx := g.lowerExpr(ix.Index)
	objType := g.info.Exprs[ix.Object].Type
	if objType.Kind == types.Pointer {
		obj = ir.Dereference(obj)
	}
	return ir.ArrayElement(obj, idx, info.InitialType)
}

func (g *generator) lowerArrayLiteral(a *ast.ArrayLiteral, info *sema.ExprInfo) *ir.Access {
	t := info.InitialType
	dst := g.block.NewRegister("", t)
	for i, el := range a.Elements {
		v := g.lowerExpr(el)
		idx := g.intConst(types.Int64, int64(i))
		g.block.Emit(ir.Move(ir.ArrayElement(dst, idx, t.Elem), v))
	}
	return dst
}

func (g *generator) lowerStructLiteral(s *ast.StructLiteral, info *sema.ExprInfo) *ir.Access {
	t := info.InitialType
	dst := g.block.NewRegister("", t)
	for _, f := range s.Fields {
		v := g.lowerExpr(f.Value)
		idx, memberType := g.memberIndex(t, f.Name)
		g.block.Emit(ir.Move(ir.Member(dst, idx, memberType), v))
	}
	return dst
}

// lowerNew lowers `new T` / `new [n]T` to a system_alloc hardcoded
// call sized from the target's layout, cast to the right pointer type
// (or packed into a fresh slice value for the array form).
func (g *generator) lowerNew(n *ast.NewExpr, info *sema.ExprInfo) *ir.Access {
	elem := info.InitialType.Elem
	if info.InitialType.Kind == types.Slice {
		count := g.lowerExpr(n.Count)
		elemSize := g.intConst(types.Int64, int64(elem.Size()))
		total := g.block.NewRegister("", g.reg.Prim(types.Int64))
		g.block.Emit(ir.Binary(total, count, elemSize, ir.BinMul))
		addr := g.allocCall(total, elem)
		slice := g.block.NewRegister("", info.InitialType)
		g.block.Emit(ir.Move(ir.Member(slice, 0, addr.Type), addr))
		countI64 := g.castToInt64(count)
		g.block.Emit(ir.Move(ir.Member(slice, 1, g.reg.Prim(types.Int64)), countI64))
		return slice
	}
	size := g.intConst(types.Int64, int64(elem.Size()))
	return g.allocCall(size, elem)
}

func (g *generator) castToInt64(a *ir.Access) *ir.Access {
	if a.Type != nil && a.Type.Kind == types.Int64 {
		return a
	}
	dst := g.block.NewRegister("", g.reg.Prim(types.Int64))
	g.block.Emit(ir.Cast(dst, a, ir.CastIntWiden, g.reg.Prim(types.Int64)))
	return dst
}

func (g *generator) allocCall(size *ir.Access, elem *types.Type) *ir.Access {
	ptrT := g.reg.Pointer(elem)
	raw := g.block.NewRegister("", g.reg.Pointer(g.reg.Prim(types.Uint8)))
	g.block.Emit(ir.CallHardcodedInstr("system_alloc", []*ir.Access{size}, raw))
	dst := g.block.NewRegister("", ptrT)
	g.block.Emit(ir.Cast(dst, raw, ir.CastPointerToPointer, ptrT))
	return dst
}

// lowerIfExpr computes both branches' last expression into a shared
// result register, mirroring lowerShortCircuit's join pattern;
// lowerIfStmt emits the same ir.If without a result register.
func (g *generator) lowerIfExpr(e *ast.IfExpr, info *sema.ExprInfo) *ir.Access {
	result := g.block.NewRegister("", info.Type)
	cond := g.lowerExpr(e.Cond)

	thenBlock := ir.NewBlock(g.block)
	savedBlock := g.block
	g.block = thenBlock
	g.lowerBlockInto(e.Then, result)
	g.block = savedBlock

	var elseBlock *ir.Block
	if e.Else != nil {
		elseBlock = ir.NewBlock(g.block)
		g.block = elseBlock
		g.lowerBlockInto(e.Else, result)
		g.block = savedBlock
	}
	g.block.Emit(ir.If(cond, thenBlock, elseBlock))
	return result
}

// lowerBlockInto lowers b's statements, moving its trailing expression
// statement's value (if any) into dst, the IfExpr value-yielding
// convention internal/sema's lastBlockExprType mirrors at the
// type level.
func (g *generator) lowerBlockInto(b *ast.CodeBlock, dst *ir.Access) {
	for i, s := range b.Stmts {
		if i == len(b.Stmts)-1 {
			if es, ok := s.(*ast.ExprStmt); ok {
				v := g.lowerExpr(es.Expr)
				g.block.Emit(ir.Move(dst, v))
				continue
			}
		}
		_ = g.lowerStmt(s)
	}
}

// lowerCall lowers a resolved call: a direct function, a polymorphic
// instanciation, a hardcoded intrinsic, a struct/slice initialiser, or
// an indirect call through a function-pointer value.
func (g *generator) lowerCall(ce *ast.CallExpr, info *sema.ExprInfo) *ir.Access {
	call := info.Call
	if call == nil || call.Callee == nil {
		return g.intConst(types.Int32, 0)
	}
	callee := call.Callee

	switch callee.Kind {
	case sema.CallableHardcoded:
		args := make([]*ir.Access, len(ce.Args))
		for i, a := range ce.Args {
			args[i] = g.lowerExpr(a.Value)
		}
		var dst *ir.Access
		if callee.Return == nil || callee.Return.Kind == types.Void {
			g.block.Emit(ir.CallHardcodedInstr(callee.Hardcoded, args, nil))
			return nil
		}
		dst = g.block.NewRegister("", callee.Return)
		g.block.Emit(ir.CallHardcodedInstr(callee.Hardcoded, args, dst))
		return dst

	case sema.CallableFunctionPointer:
		addr := g.lowerExpr(ce.Callee)
		args := make([]*ir.Access, len(ce.Args))
		for i, a := range ce.Args {
			args[i] = g.lowerExpr(a.Value)
		}
		if callee.Return == nil || callee.Return.Kind == types.Void {
			g.block.Emit(ir.CallIndirectInstr(addr, args, nil))
			return nil
		}
		dst := g.block.NewRegister("", callee.Return)
		g.block.Emit(ir.CallIndirectInstr(addr, args, dst))
		return dst

	case sema.CallableStructInit, sema.CallableSliceInit:
		result := callee.Return
		dst := g.block.NewRegister("", result)
		args := g.orderedArgs(ce, call, callee)
		for i, v := range args {
			if v == nil {
				continue
			}
			memberType := v.Type
			if i < len(callee.Params) && callee.Params[i].Type != nil {
				memberType = callee.Params[i].Type
			}
			g.block.Emit(ir.Move(ir.Member(dst, i, memberType), v))
		}
		return dst

	default: // CallableFunction, CallablePolymorphicFunction
		name := callee.Name
		if callee.Polymorphic() {
			name = call.PolyKey
		}
		fn := g.resolveFunction(name)
		args := g.orderedArgs(ce, call, callee)
		if fn == nil {
			if len(args) == 0 {
				return g.intConst(types.Int32, 0)
			}
			return args[0]
		}
		if fn.Return == nil || fn.Return.Kind == types.Void {
			g.block.Emit(ir.CallNormalInstr(fn, args, nil))
			return nil
		}
		dst := g.block.NewRegister("", fn.Return)
		g.block.Emit(ir.CallNormalInstr(fn, args, dst))
		return dst
	}
}

// orderedArgs lowers ce's arguments into callee's parameter-index
// order using call.ArgToParam, filling any parameter no argument
// bound with its default expression (lowered against the current
// function's own pass info, since defaults are never separately
// type-checked) or a zero constant when neither is available.
func (g *generator) orderedArgs(ce *ast.CallExpr, call *sema.CallableCall, callee *sema.Callable) []*ir.Access {
	n := len(callee.Params)
	if n == 0 {
		n = len(ce.Args)
	}
	args := make([]*ir.Access, n)
	provided := make([]bool, n)
	for i, a := range ce.Args {
		pi := i
		if call.ArgToParam != nil && i < len(call.ArgToParam) {
			pi = call.ArgToParam[i]
		}
		if pi < 0 || pi >= n {
			continue
		}
		args[pi] = g.lowerExpr(a.Value)
		provided[pi] = true
	}
	for i := range args {
		if provided[i] {
			continue
		}
		if i < len(callee.Params) && callee.Params[i].Default != nil {
			args[i] = g.lowerExpr(callee.Params[i].Default)
			continue
		}
		var t *types.Type
		if i < len(callee.Params) {
			t = callee.Params[i].Type
		}
		if t == nil {
			t = g.reg.Prim(types.Unknown)
		}
		args[i] = g.intConst(types.Int32, 0)
		_ = t
	}
	return args
}
