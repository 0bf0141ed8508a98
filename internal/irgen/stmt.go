package irgen

import (
	"fmt"

	"upp/internal/ast"
	"upp/internal/ir"
	"upp/internal/sema"
	"upp/internal/types"
)

// deferredAction is one pending exit-time action registered by a
// defer or defer_restore statement, fired in reverse registration
// order by fireDefers. A deferred call's arguments (and a
// defer_restore's snapshot) are captured at registration time, not at
// fire time, so firing never re-evaluates a source expression that may
// have side effects or may no longer be in scope.
//
// Firing is lexical, not runtime-tracked: a defer registered inside a
// conditional branch that wasn't taken is never appended to g.defers
// in the first place, but one registered inside a branch that *was*
// taken fires at every exit path reachable after it, including ones
// that don't share that branch. Real defer semantics would guard each
// action with its own runtime-armed flag; this generator accepts the
// simpler lexical approximation.
type deferredAction struct {
	restore bool
	target  *ir.Access
	snapshot *ir.Access

	callee     *sema.Callable
	polyKey    string
	calleeAddr *ir.Access
	args       []*ir.Access
}

func (g *generator) lowerStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.CodeBlock:
		outer := g.scope
		g.scope = newVarScope(outer)
		for _, inner := range st.Stmts {
			if err := g.lowerStmt(inner); err != nil {
				g.scope = outer
				return err
			}
		}
		g.scope = outer
		return nil
	case *ast.VarDeclStmt:
		g.lowerVarDecl(st)
	case *ast.AssignStmt:
		g.lowerAssign(st)
	case *ast.ExprStmt:
		g.lowerExpr(st.Expr)
	case *ast.IfStmt:
		return g.lowerIfStmt(st)
	case *ast.WhileStmt:
		return g.lowerWhileStmt(st)
	case *ast.ForStmt:
		return g.lowerForStmt(st)
	case *ast.ForeachStmt:
		return g.lowerForeachStmt(st)
	case *ast.SwitchStmt:
		return g.lowerSwitchStmt(st)
	case *ast.BreakStmt:
		return g.lowerBreak(st)
	case *ast.ContinueStmt:
		return g.lowerContinue(st)
	case *ast.ReturnStmt:
		g.lowerReturn(st)
	case *ast.DeferStmt:
		g.lowerDefer(st)
	case *ast.DeferRestoreStmt:
		g.lowerDeferRestore(st)
	case *ast.DeleteStmt:
		g.lowerDelete(st)
	case *ast.ErrorStmt:
		// recovery placeholder from a malformed parse; nothing to lower.
	default:
		return fmt.Errorf("irgen: unhandled statement %T", s)
	}
	return nil
}

func (g *generator) lowerVarDecl(v *ast.VarDeclStmt) {
	t := g.info.VarTypes[v]
	if t == nil {
		t = g.reg.Prim(types.Unknown)
	}
	dst := g.block.NewRegister(v.Name, t)
	if v.Value != nil {
		g.block.Emit(ir.Move(dst, g.lowerExpr(v.Value)))
	}
	g.scope.define(v.Name, dst)
}

func (g *generator) lowerAssign(a *ast.AssignStmt) {
	target := g.lowerExpr(a.Target)
	value := g.lowerExpr(a.Value)
	g.block.Emit(ir.Move(target, value))
}

func (g *generator) lowerIfStmt(st *ast.IfStmt) error {
	cond := g.lowerExpr(st.Cond)
	savedBlock := g.block

	thenBlock := ir.NewBlock(savedBlock)
	g.block = thenBlock
	err := g.lowerStmt(st.Then)
	g.block = savedBlock
	if err != nil {
		return err
	}

	var elseBlock *ir.Block
	if st.Else != nil {
		elseBlock = ir.NewBlock(savedBlock)
		g.block = elseBlock
		err = g.lowerStmt(st.Else)
		g.block = savedBlock
		if err != nil {
			return err
		}
	}
	g.block.Emit(ir.If(cond, thenBlock, elseBlock))
	return nil
}

// lowerWhileStmt lowers the condition into its own block so bcgen
// re-evaluates it on every iteration, labelling that block and the
// body with the loop's continue/break targets; internal/bcgen's
// InstrWhile case reads CondBlock.Label/Body.Label directly as those
// goto targets.
func (g *generator) lowerWhileStmt(st *ast.WhileStmt) error {
	cont := g.newLabel("while_cond")
	brk := g.newLabel("while_end")
	g.pushLoop(st.Label, cont, brk)

	savedBlock := g.block
	condBlock := ir.NewBlock(savedBlock)
	condBlock.Label = cont
	g.block = condBlock
	cond := g.lowerExpr(st.Cond)
	g.block = savedBlock

	body := ir.NewBlock(savedBlock)
	body.Label = brk
	g.block = body
	outerScope := g.scope
	g.scope = newVarScope(outerScope)

	var err error
	for _, s := range st.Body.Stmts {
		if err = g.lowerStmt(s); err != nil {
			break
		}
	}
	g.block, g.scope = savedBlock, outerScope
	g.popLoop()
	if err != nil {
		return err
	}
	g.block.Emit(ir.While(condBlock, cond, body))
	return nil
}

// lowerForStmt desugars the C-style for into an explicit init, a while
// over Cond (defaulting to true), and the increment appended to the
// end of the body, the desugaring ForStmt's own doc comment already
// states.
func (g *generator) lowerForStmt(st *ast.ForStmt) error {
	outerScope := g.scope
	g.scope = newVarScope(outerScope)

	if st.Init != nil {
		if err := g.lowerStmt(st.Init); err != nil {
			g.scope = outerScope
			return err
		}
	}

	cont := g.newLabel("for_cond")
	brk := g.newLabel("for_end")
	g.pushLoop(st.Label, cont, brk)

	savedBlock := g.block
	condBlock := ir.NewBlock(savedBlock)
	condBlock.Label = cont
	g.block = condBlock
	var cond *ir.Access
	if st.Cond != nil {
		cond = g.lowerExpr(st.Cond)
	} else {
		cond = g.boolConst(true)
	}
	g.block = savedBlock

	body := ir.NewBlock(savedBlock)
	body.Label = brk
	g.block = body
	g.scope = newVarScope(g.scope)

	var err error
	for _, s := range st.Body.Stmts {
		if err = g.lowerStmt(s); err != nil {
			break
		}
	}
	if err == nil && st.Incr != nil {
		err = g.lowerStmt(st.Incr)
	}
	g.block, g.scope = savedBlock, outerScope
	g.popLoop()
	if err != nil {
		return err
	}
	g.block.Emit(ir.While(condBlock, cond, body))
	return nil
}

// lowerForeachStmt handles the array/slice iterable shape only; a
// custom create/has_next/next/get_value iterator protocol is a
// pre-existing gap in internal/sema's checkForeach (it never resolves
// such an iterable's element type), so there is no type information
// here to generate against either.
func (g *generator) lowerForeachStmt(f *ast.ForeachStmt) error {
	iterInfo := g.info.Exprs[f.Iterable]
	if iterInfo == nil || iterInfo.Type == nil {
		return fmt.Errorf("irgen: foreach over an unresolved iterable")
	}
	t := iterInfo.Type
	if t.Kind != types.Array && t.Kind != types.Slice {
		return fmt.Errorf("irgen: foreach over a %v iterable requires the custom iterator protocol, not supported", t.Kind)
	}
	container := g.lowerExpr(f.Iterable)

	i64 := g.reg.Prim(types.Int64)
	idx := g.block.NewRegister("", i64)
	g.block.Emit(ir.Move(idx, g.intConst(types.Int64, 0)))
	length := g.containerLength(container, t)

	cont := g.newLabel("foreach_cond")
	brk := g.newLabel("foreach_end")
	g.pushLoop(f.Label, cont, brk)

	savedBlock := g.block
	condBlock := ir.NewBlock(savedBlock)
	condBlock.Label = cont
	g.block = condBlock
	cond := g.block.NewRegister("", g.reg.Prim(types.Bool))
	g.block.Emit(ir.Binary(cond, idx, length, ir.BinLt))
	g.block = savedBlock

	body := ir.NewBlock(savedBlock)
	body.Label = brk
	g.block = body
	outerScope := g.scope
	g.scope = newVarScope(outerScope)
	elemReg := g.block.NewRegister(f.VarName, t.Elem)
	g.block.Emit(ir.Move(elemReg, ir.ArrayElement(container, idx, t.Elem)))
	g.scope.define(f.VarName, elemReg)
	if f.IndexVar != "" {
		g.scope.define(f.IndexVar, idx)
	}

	var err error
	for _, s := range f.Body.Stmts {
		if err = g.lowerStmt(s); err != nil {
			break
		}
	}
	if err == nil {
		one := g.intConst(types.Int64, 1)
		next := g.block.NewRegister("", i64)
		g.block.Emit(ir.Binary(next, idx, one, ir.BinAdd))
		g.block.Emit(ir.Move(idx, next))
	}
	g.block, g.scope = savedBlock, outerScope
	g.popLoop()
	if err != nil {
		return err
	}
	g.block.Emit(ir.While(condBlock, cond, body))
	return nil
}

// lowerSwitchStmt lowers every non-default case's values and body, and
// the (at most one) default case, into their own blocks; bcgen's
// lowerSwitch already appends an unconditional jump past the whole
// chain at the end of each case body, so no case here falls through
// into the next. break/continue inside a case body still target the
// nearest enclosing loop (switch never pushes its own loopLabels)
// since a case never needs an explicit break to avoid falling through.
func (g *generator) lowerSwitchStmt(st *ast.SwitchStmt) error {
	subject := g.lowerExpr(st.Subject)
	savedBlock := g.block

	var cases []ir.SwitchCase
	var defaultBlock *ir.Block
	for _, cs := range st.Cases {
		values := make([]*ir.Access, len(cs.Values))
		for i, v := range cs.Values {
			values[i] = g.lowerExpr(v)
		}

		b := ir.NewBlock(savedBlock)
		g.block = b
		outerScope := g.scope
		g.scope = newVarScope(outerScope)
		var err error
		for _, s := range cs.Body.Stmts {
			if err = g.lowerStmt(s); err != nil {
				break
			}
		}
		g.block, g.scope = savedBlock, outerScope
		if err != nil {
			return err
		}

		if cs.Default || len(cs.Values) == 0 {
			defaultBlock = b
			continue
		}
		cases = append(cases, ir.SwitchCase{Values: values, Body: b})
	}
	g.block.Emit(ir.Switch(subject, cases, defaultBlock))
	return nil
}

func (g *generator) lowerBreak(st *ast.BreakStmt) error {
	l, ok := g.findLoop(st.Label)
	if !ok {
		return fmt.Errorf("irgen: break outside a loop")
	}
	g.block.Emit(ir.Goto(l.brk))
	return nil
}

func (g *generator) lowerContinue(st *ast.ContinueStmt) error {
	l, ok := g.findLoop(st.Label)
	if !ok {
		return fmt.Errorf("irgen: continue outside a loop")
	}
	g.block.Emit(ir.Goto(l.cont))
	return nil
}

// lowerReturn applies whatever active defers are pending before
// emitting the actual return. A `return <expr>` lexically inside the
// program's entry point lowers to an exit-with-code return instead of
// an ordinary one, matching the runner's convention that main's return
// value is the process exit code.
func (g *generator) lowerReturn(r *ast.ReturnStmt) {
	var val *ir.Access
	if r.Value != nil {
		val = g.lowerExpr(r.Value)
	}
	g.fireDefers()
	switch {
	case g.fn.Name == "main" && val != nil:
		g.block.Emit(ir.ExitWithCode(val))
	case val != nil:
		g.block.Emit(ir.Return(val))
	default:
		g.block.Emit(ir.ReturnEmpty())
	}
}

// lowerDefer captures a deferred call's callee and arguments now,
// matching its usual evaluate-now, run-later contract; firing later
// just re-emits the same resolved call, never re-running the source
// argument expressions.
func (g *generator) lowerDefer(d *ast.DeferStmt) {
	ce, ok := d.Call.(*ast.CallExpr)
	if !ok {
		return
	}
	info := g.info.Exprs[ce]
	if info == nil || info.Call == nil || info.Call.Callee == nil {
		return
	}
	call := info.Call
	callee := call.Callee

	switch callee.Kind {
	case sema.CallableStructInit, sema.CallableSliceInit:
		// no side effect worth deferring; still evaluate the arguments
		// for whatever effect their own sub-expressions have.
		for _, a := range ce.Args {
			g.lowerExpr(a.Value)
		}
		return
	case sema.CallableFunctionPointer:
		addr := g.lowerExpr(ce.Callee)
		args := make([]*ir.Access, len(ce.Args))
		for i, a := range ce.Args {
			args[i] = g.lowerExpr(a.Value)
		}
		g.defers = append(g.defers, deferredAction{callee: callee, calleeAddr: addr, args: args})
	case sema.CallableHardcoded:
		args := make([]*ir.Access, len(ce.Args))
		for i, a := range ce.Args {
			args[i] = g.lowerExpr(a.Value)
		}
		g.defers = append(g.defers, deferredAction{callee: callee, args: args})
	default:
		args := g.orderedArgs(ce, call, callee)
		g.defers = append(g.defers, deferredAction{callee: callee, polyKey: call.PolyKey, args: args})
	}
}

// lowerDeferRestore snapshots Target's current value, assigns Value
// into it immediately, and registers the restore for scope exit.
func (g *generator) lowerDeferRestore(d *ast.DeferRestoreStmt) {
	target := g.lowerExpr(d.Target)
	snapshot := g.block.NewRegister("", target.Type)
	g.block.Emit(ir.Move(snapshot, target))
	value := g.lowerExpr(d.Value)
	g.block.Emit(ir.Move(target, value))
	g.defers = append(g.defers, deferredAction{restore: true, target: target, snapshot: snapshot})
}

func (g *generator) lowerDelete(d *ast.DeleteStmt) {
	info := g.info.Exprs[d.Value]
	v := g.lowerExpr(d.Value)
	ptr := v
	if info != nil && info.Type != nil && info.Type.Kind == types.Slice {
		ptr = ir.Member(v, 0, g.reg.Pointer(g.reg.Prim(types.Uint8)))
	}
	rawT := g.reg.Pointer(g.reg.Prim(types.Uint8))
	raw := g.block.NewRegister("", rawT)
	g.block.Emit(ir.Cast(raw, ptr, ir.CastPointerToPointer, rawT))
	g.block.Emit(ir.CallHardcodedInstr("system_free", []*ir.Access{raw}, nil))
}

// fireDefers emits every pending deferred action in reverse
// registration order, without removing them from g.defers; each
// return statement (and the function's own fall-through end) fires
// independently against whatever was registered along the path that
// reached it.
func (g *generator) fireDefers() {
	for i := len(g.defers) - 1; i >= 0; i-- {
		d := g.defers[i]
		if d.restore {
			g.block.Emit(ir.Move(d.target, d.snapshot))
			continue
		}
		g.emitDeferredCall(d)
	}
}

func (g *generator) emitDeferredCall(d deferredAction) {
	switch d.callee.Kind {
	case sema.CallableHardcoded:
		g.block.Emit(ir.CallHardcodedInstr(d.callee.Hardcoded, d.args, nil))
	case sema.CallableFunctionPointer:
		g.block.Emit(ir.CallIndirectInstr(d.calleeAddr, d.args, nil))
	default:
		name := d.callee.Name
		if d.callee.Polymorphic() {
			name = d.polyKey
		}
		fn := g.resolveFunction(name)
		if fn == nil {
			return
		}
		g.block.Emit(ir.CallNormalInstr(fn, d.args, nil))
	}
}
