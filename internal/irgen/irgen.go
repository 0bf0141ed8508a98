// Package irgen lowers a fully-checked module into internal/ir's
// typed, three-address representation: one ir.Function per resolved
// function header (plus one per distinct polymorphic instanciation),
// its parameters and locals as registers, and every statement and
// expression the semantic analyser annotated as Instructions operating
// over the Access term algebra.
package irgen

import (
	"fmt"

	"upp/internal/ast"
	"upp/internal/constpool"
	"upp/internal/depanalysis"
	"upp/internal/ir"
	"upp/internal/sema"
	"upp/internal/types"
)

// Generate walks every FunctionHeaderItem reachable from items and
// lowers its body, then does the same for every polymorphic
// instanciation d recorded during semantic analysis. d must come from
// a completed analysis pass (scheduler.Run already returned); bodies
// an item never ran (e.g. one that errored out of the scheduler) are
// skipped rather than lowered partially.
func Generate(items []*depanalysis.Item, d *sema.Data) (*ir.Program, error) {
	prog := &ir.Program{Consts: d.Consts}
	g := &generator{data: d, reg: d.Types, prog: prog, funcsByName: map[string]*ir.Function{}}

	type unit struct {
		name string
		fn   *ir.Function
		sig  *sema.Callable
		info *sema.PassInfo
		body *depanalysis.Item
	}
	var units []unit

	// Pass 1: build every function shell (plain headers, then every
	// recorded polymorphic instanciation) before lowering any body, so
	// a call site reached before its callee in iteration order still
	// resolves to a real *ir.Function; forward and mutually recursive
	// calls both depend on this.
	for _, h := range collectHeaders(items) {
		def, ok := h.Node.(*ast.Definition)
		if !ok {
			continue
		}
		sig := d.Signature(def)
		if sig == nil || sig.Polymorphic() {
			continue
		}
		if len(h.Children) == 0 {
			continue
		}
		body := h.Children[0]
		if len(body.Passes) == 0 {
			continue
		}
		info := d.Info(body.Passes[0])
		fn := g.buildFunction(sig.Name, sig, nil, nil)
		g.funcsByName[fn.Name] = fn
		units = append(units, unit{name: sig.Name, fn: fn, sig: sig, info: info, body: body})
	}

	for _, inst := range d.Instances() {
		fn := g.buildFunction(inst.Key, inst.Callable, inst.Params, inst.Return)
		g.funcsByName[fn.Name] = fn
		info := d.InstantiateBody(inst)
		var body *depanalysis.Item
		if inst.Callable.Item != nil && len(inst.Callable.Item.Children) > 0 {
			body = inst.Callable.Item.Children[0]
		}
		units = append(units, unit{name: inst.Key, fn: fn, sig: inst.Callable, info: info, body: body})
	}

	// Pass 2: lower every body now that funcsByName is complete.
	for _, u := range units {
		if err := g.lowerBody(u.fn, u.sig, u.info, u.body); err != nil {
			return nil, fmt.Errorf("irgen: function %s: %w", u.name, err)
		}
		prog.AddFunction(u.fn)
	}

	return prog, nil
}

// resolveFunction looks up a previously shelled function by its IR
// name (a plain function's own name, or a polymorphic instanciation's
// key); every direct call site's callee has already been built by
// Generate's first pass by the time any body is lowered.
func (g *generator) resolveFunction(name string) *ir.Function {
	return g.funcsByName[name]
}

func collectHeaders(items []*depanalysis.Item) []*depanalysis.Item {
	var headers []*depanalysis.Item
	var walk func(*depanalysis.Item)
	walk = func(it *depanalysis.Item) {
		if it.Kind == depanalysis.FunctionHeaderItem {
			headers = append(headers, it)
		}
		for _, c := range it.Children {
			walk(c)
		}
	}
	for _, it := range items {
		walk(it)
	}
	return headers
}

// generator holds whole-compilation state; the per-function fields
// (fn, block, scope, loops, defers) are reset by lowerBody for each
// function it generates.
type generator struct {
	data *sema.Data
	reg  *types.Registry
	prog *ir.Program

	// funcsByName maps every shelled function's IR name (a plain
	// function's own name, or a polymorphic instanciation's key) to its
	// *ir.Function, populated in full before any body is lowered.
	funcsByName map[string]*ir.Function

	info *sema.PassInfo

	fn    *ir.Function
	block *ir.Block
	scope *varScope

	loops    []loopLabels
	defers   []deferredAction
	labelSeq int

	// constCache memoizes a top-level constant definition's inlined
	// value within the function currently being lowered; an Access is
	// a term over the current function's own blocks/registers, so it
	// cannot be shared across functions.
	constCache map[*ast.Definition]*ir.Access
}

type loopLabels struct {
	userLabel string
	cont      string
	brk       string
}

// varScope is a chained name->Access table for locals and parameters,
// mirroring internal/sema's localScope one layer down (after types are
// already resolved, only the storage location matters here).
type varScope struct {
	parent *varScope
	vars   map[string]*ir.Access
}

func newVarScope(parent *varScope) *varScope {
	return &varScope{parent: parent, vars: map[string]*ir.Access{}}
}

func (s *varScope) define(name string, a *ir.Access) { s.vars[name] = a }

func (s *varScope) lookup(name string) (*ir.Access, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if a, ok := sc.vars[name]; ok {
			return a, true
		}
	}
	return nil, false
}

// buildFunction resolves sig's parameter/return types into an
// ir.Function shell. instParams/instReturn substitute a polymorphic
// instanciation's concrete bindings for pattern-variable positions;
// both nil means a non-polymorphic signature, where every position is
// already concrete.
func (g *generator) buildFunction(name string, sig *sema.Callable, instParams []*types.Type, instReturn *types.Type) *ir.Function {
	params := make([]*types.Type, len(sig.Params))
	names := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		names[i] = p.Name
		switch {
		case p.PatternVar:
			params[i] = g.reg.Prim(types.TypeHandleKind)
		case p.PatternVarName != "":
			if instParams != nil {
				params[i] = instParams[i]
			} else {
				params[i] = g.reg.Prim(types.Unknown)
			}
		default:
			params[i] = p.Type
		}
	}
	ret := sig.Return
	if sig.ReturnPatternVar != "" {
		if instReturn != nil {
			ret = instReturn
		} else {
			ret = g.reg.Prim(types.Unknown)
		}
	}
	fn := ir.NewFunction(name, params, names, ret)
	if instParams != nil {
		fn.IsPolymorphicInstance = true
		fn.InstanceKey = name
	}
	return fn
}

// lowerBody lowers one function's statement list into fn's entry
// block. body is nil for an external/forward-declared function, which
// gets an empty body (bcgen emits the trailing return on its own).
func (g *generator) lowerBody(fn *ir.Function, sig *sema.Callable, info *sema.PassInfo, body *depanalysis.Item) error {
	g.fn = fn
	g.block = fn.Entry
	g.info = info
	g.loops = nil
	g.defers = nil
	g.scope = newVarScope(nil)
	g.constCache = map[*ast.Definition]*ir.Access{}

	for i, p := range sig.Params {
		g.scope.define(p.Name, ir.ParameterAccess(fn, i, fn.Params[i]))
	}

	if body == nil {
		return nil
	}
	cb, ok := body.Node.(*ast.CodeBlock)
	if !ok || cb == nil {
		return nil
	}
	for _, s := range cb.Stmts {
		if err := g.lowerStmt(s); err != nil {
			return err
		}
	}
	g.fireDefers()
	return nil
}

func (g *generator) newLabel(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf("%s_%s_%d", g.fn.Name, prefix, g.labelSeq)
}

func (g *generator) pushLoop(userLabel, cont, brk string) {
	g.loops = append(g.loops, loopLabels{userLabel: userLabel, cont: cont, brk: brk})
}

func (g *generator) popLoop() { g.loops = g.loops[:len(g.loops)-1] }

func (g *generator) findLoop(label string) (loopLabels, bool) {
	if label == "" {
		if len(g.loops) == 0 {
			return loopLabels{}, false
		}
		return g.loops[len(g.loops)-1], true
	}
	for i := len(g.loops) - 1; i >= 0; i-- {
		if g.loops[i].userLabel == label {
			return g.loops[i], true
		}
	}
	return loopLabels{}, false
}

// gotoBlock wraps an unconditional jump in a one-instruction Block, so
// it can be handed to ir.If as a Then/Else branch; this is the
// mechanism break/continue and the hand-desugared C-style for loop
// use to reach
// an arbitrary label instead of the structurally-nested target
// InstrIf/InstrWhile otherwise require.
func gotoBlock(label string) *ir.Block {
	b := ir.NewBlock(nil)
	b.Emit(ir.Goto(label))
	return b
}

// emitGotoIf emits "if cond { goto label }", falling through
// otherwise.
func (g *generator) emitGotoIf(cond *ir.Access, label string) {
	g.block.Emit(ir.If(cond, gotoBlock(label), nil))
}

// emitGotoIfNot emits "if !cond { goto label }" by swapping the
// roles: the (empty) Then always falls through, the Else, taken only
// when cond is false, jumps away.
func (g *generator) emitGotoIfNot(cond *ir.Access, label string) {
	g.block.Emit(ir.If(cond, ir.NewBlock(nil), gotoBlock(label)))
}

func (g *generator) intConst(k types.Kind, v int64) *ir.Access {
	t := g.reg.Prim(k)
	h := g.data.Consts.Insert(t, encodeIntConst(v, k))
	return ir.ConstantAccess(h, t)
}

func encodeIntConst(v int64, k types.Kind) []byte {
	switch k {
	case types.Int8, types.Uint8:
		return []byte{byte(v)}
	case types.Int16, types.Uint16:
		return constpool.EncodeInt32(int32(v))[:2]
	case types.Int32, types.Uint32:
		return constpool.EncodeInt32(int32(v))
	default:
		return constpool.EncodeInt64(v)
	}
}

func (g *generator) boolConst(v bool) *ir.Access {
	t := g.reg.Prim(types.Bool)
	h := g.data.Consts.Insert(t, constpool.EncodeBool(v))
	return ir.ConstantAccess(h, t)
}

// containerLength reads an array/slice container's element count: a
// compile-time constant for a fixed array, a runtime read of the
// length field for a slice (addressed positionally, see
// internal/bcgen's memberOffset, since types.Registry exposes no
// named member for a slice's implicit fields).
func (g *generator) containerLength(container *ir.Access, t *types.Type) *ir.Access {
	if t.Kind == types.Array {
		return g.intConst(types.Int64, int64(t.ArrayCount))
	}
	return ir.Member(container, 1, g.reg.Prim(types.Int64))
}

func castKindToIR(k sema.CastKind) ir.CastKind {
	switch k {
	case sema.CastIntWiden:
		return ir.CastIntWiden
	case sema.CastIntNarrow:
		return ir.CastIntNarrow
	case sema.CastIntSignedUnsigned:
		return ir.CastIntSignedUnsigned
	case sema.CastEnumToInt:
		return ir.CastEnumToInt
	case sema.CastIntToEnum:
		return ir.CastIntToEnum
	case sema.CastArrayToSlice:
		return ir.CastArrayToSlice
	case sema.CastValueToOptional:
		return ir.CastValueToOptional
	case sema.CastAnyToConcrete:
		return ir.CastAnyToConcrete
	case sema.CastValueToAny:
		return ir.CastValueToAny
	case sema.CastPointerToPointer:
		return ir.CastPointerToPointer
	case sema.CastPointerAddress:
		return ir.CastPointerAddress
	case sema.CastSubtypeUpcast:
		return ir.CastSubtypeUpcast
	case sema.CastSubtypeDowncast:
		return ir.CastSubtypeDowncast
	case sema.CastFloatWidth:
		return ir.CastFloatWidth
	case sema.CastFloatToInt:
		return ir.CastFloatToInt
	case sema.CastIntToFloat:
		return ir.CastIntToFloat
	default:
		return ir.CastIntWiden
	}
}

func binOpToIR(op ast.BinaryOp) ir.BinaryOp {
	switch op {
	case ast.OpAdd:
		return ir.BinAdd
	case ast.OpSub:
		return ir.BinSub
	case ast.OpMul:
		return ir.BinMul
	case ast.OpDiv:
		return ir.BinDiv
	case ast.OpMod:
		return ir.BinMod
	case ast.OpEq:
		return ir.BinEq
	case ast.OpNe:
		return ir.BinNe
	case ast.OpLt:
		return ir.BinLt
	case ast.OpGt:
		return ir.BinGt
	case ast.OpLe:
		return ir.BinLe
	case ast.OpGe:
		return ir.BinGe
	case ast.OpAnd:
		return ir.BinAnd
	case ast.OpOr:
		return ir.BinOr
	case ast.OpBitAnd:
		return ir.BinBitAnd
	case ast.OpBitOr:
		return ir.BinBitOr
	case ast.OpBitXor:
		return ir.BinBitXor
	case ast.OpShl:
		return ir.BinShl
	default:
		return ir.BinShr
	}
}

func unOpToIR(op ast.UnaryOp) ir.UnaryOp {
	switch op {
	case ast.OpNot:
		return ir.UnNot
	case ast.OpBitNot:
		return ir.UnBitNot
	default:
		return ir.UnNeg
	}
}

// applyCast wraps src in a Cast instruction into a fresh register when
// info.Cast requires one, otherwise returns src unchanged. Used at
// every position the analyser may have inserted an implicit
// conversion (call arguments, assignments, returns, initialisers).
func (g *generator) applyCast(src *ir.Access, info *sema.ExprInfo) *ir.Access {
	if info == nil || info.Cast == sema.CastNone {
		return src
	}
	dst := g.block.NewRegister("", info.Type)
	g.block.Emit(ir.Cast(dst, src, castKindToIR(info.Cast), info.Type))
	return dst
}
