package sema

import (
	"upp/internal/ast"
	"upp/internal/types"
)

// analyseFunctionBody type-checks a function body against the
// signature its header item (the parent item) already resolved.
func (c *checker) analyseFunctionBody() error {
	body, ok := c.item.Node.(*ast.CodeBlock)
	if !ok || body == nil {
		return nil // external/forward-declared function, no body to check
	}
	c.resolveDeps()

	header := c.item.Parent
	var sig *Callable
	if header != nil {
		if def, ok := header.Node.(*ast.Definition); ok {
			sig = c.data.Signature(def)
		}
	}

	scope := newLocalScope(nil, c.item.Table)
	if sig != nil {
		for _, p := range sig.Params {
			switch {
			case p.PatternVar:
				// Bound to a Type value, not an ordinary local.
			case p.PatternVarName != "":
				// Concrete type depends on the call site; check the
				// body structurally against Unknown here and refine
				// per instanciation in internal/irgen.
				scope.define(p.Name, c.data.Types.Prim(types.Unknown), false)
			default:
				scope.define(p.Name, p.Type, false)
			}
		}
		if sig.ReturnPatternVar != "" {
			c.retType = c.data.Types.Prim(types.Unknown)
		} else {
			c.retType = sig.Return
		}
	}
	c.checkBlock(body, scope)
	return nil
}

func (c *checker) checkBlock(b *ast.CodeBlock, parent *localScope) {
	scope := newLocalScope(parent, parent.depTable())
	for _, s := range b.Stmts {
		c.checkStmt(s, scope)
	}
}

func (c *checker) checkStmt(s ast.Stmt, scope *localScope) {
	switch st := s.(type) {
	case *ast.VarDeclStmt:
		c.checkVarDecl(st, scope)
	case *ast.AssignStmt:
		c.checkAssign(st, scope)
	case *ast.ExprStmt:
		c.checkExpr(st.Expr, scope.depTable(), scope)
	case *ast.IfStmt:
		c.checkExpr(st.Cond, scope.depTable(), scope)
		c.checkBlock(st.Then, scope)
		if st.Else != nil {
			c.checkStmt(st.Else, scope)
		}
	case *ast.WhileStmt:
		c.checkExpr(st.Cond, scope.depTable(), scope)
		c.checkBlock(st.Body, scope)
	case *ast.ForStmt:
		inner := newLocalScope(scope, scope.depTable())
		if st.Init != nil {
			c.checkStmt(st.Init, inner)
		}
		if st.Cond != nil {
			c.checkExpr(st.Cond, inner.depTable(), inner)
		}
		if st.Incr != nil {
			c.checkStmt(st.Incr, inner)
		}
		c.checkBlock(st.Body, inner)
	case *ast.ForeachStmt:
		c.checkForeach(st, scope)
	case *ast.SwitchStmt:
		c.checkSwitch(st, scope)
	case *ast.ReturnStmt:
		c.checkReturn(st, scope)
	case *ast.DeferStmt:
		c.checkExpr(st.Call, scope.depTable(), scope)
	case *ast.DeferRestoreStmt:
		c.checkExpr(st.Target, scope.depTable(), scope)
		c.checkExpr(st.Value, scope.depTable(), scope)
	case *ast.DeleteStmt:
		c.checkExpr(st.Value, scope.depTable(), scope)
	case *ast.CodeBlock:
		c.checkBlock(st, scope)
	case *ast.BreakStmt, *ast.ContinueStmt, *ast.ErrorStmt:
		// nothing to check
	}
}

func (c *checker) checkVarDecl(v *ast.VarDeclStmt, scope *localScope) {
	var declared *types.Type
	if v.Type != nil {
		declared = c.resolveType(v.Type, scope.depTable())
	}
	var valType *types.Type
	if v.Value != nil {
		info := c.checkExpr(v.Value, scope.depTable(), scope)
		valType = info.Type
		if declared != nil {
			if kind, ok := c.implicitCast(valType, declared); ok {
				info.Cast = kind
			} else {
				typeError(c, v.Value.NodeRange(), "cannot initialise %s from %s", declared, valType)
			}
		}
	}
	final := declared
	if final == nil {
		final = valType
	}
	if final == nil {
		final = c.data.Types.Prim(types.Unknown)
	}
	c.info.VarTypes[v] = final
	scope.define(v.Name, final, v.Const)
}

func (c *checker) checkAssign(a *ast.AssignStmt, scope *localScope) {
	target := c.checkExpr(a.Target, scope.depTable(), scope)
	value := c.checkExpr(a.Value, scope.depTable(), scope)
	if kind, ok := c.implicitCast(value.Type, target.Type); ok {
		value.Cast = kind
	} else {
		typeError(c, a.Value.NodeRange(), "cannot assign %s to %s", value.Type, target.Type)
	}
}

func (c *checker) checkForeach(f *ast.ForeachStmt, scope *localScope) {
	iterInfo := c.checkExpr(f.Iterable, scope.depTable(), scope)
	inner := newLocalScope(scope, scope.depTable())
	elem := c.data.Types.Prim(types.Unknown)
	switch iterInfo.Type.Kind {
	case types.Array, types.Slice:
		elem = iterInfo.Type.Elem
	default:
		// custom create/has_next/next/get_value iterator protocol,
		// registered per-module via a context change; resolving the
		// protocol's element type is deferred to that mechanism.
	}
	inner.define(f.VarName, elem, false)
	if f.IndexVar != "" {
		inner.define(f.IndexVar, c.data.Types.Prim(types.Int64), false)
	}
	c.checkBlock(f.Body, inner)
}

func (c *checker) checkSwitch(s *ast.SwitchStmt, scope *localScope) {
	c.checkExpr(s.Subject, scope.depTable(), scope)
	for _, cs := range s.Cases {
		for _, v := range cs.Values {
			c.checkExpr(v, scope.depTable(), scope)
		}
		c.checkBlock(cs.Body, scope)
	}
}

func (c *checker) checkReturn(r *ast.ReturnStmt, scope *localScope) {
	if r.Value == nil {
		return
	}
	info := c.checkExpr(r.Value, scope.depTable(), scope)
	if c.retType == nil {
		return
	}
	if kind, ok := c.implicitCast(info.Type, c.retType); ok {
		info.Cast = kind
	} else {
		typeError(c, r.Value.NodeRange(), "cannot return %s as %s", info.Type, c.retType)
	}
}
