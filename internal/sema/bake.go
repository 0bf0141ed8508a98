package sema

import (
	"upp/internal/ast"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/types"
)

// BakeRunner compiles and executes one bake block's body to produce
// its compile-time result. It is implemented by internal/bake, which
// owns the irgen/bcgen/interp pipeline needed to actually run
// generated bytecode; sema only resolves the body's types and hands
// the runner the PassInfo carrying them, keeping internal/sema from
// importing those packages and creating a cycle (irgen needs sema's
// resolved types and casts as input).
type BakeRunner interface {
	RunBake(def *ast.Definition, sig *Callable, info *PassInfo) (*ConstValue, error)
}

// analyseBake type-checks a bake block's body like an ordinary
// zero-argument function, infers its result type from the first
// `return` it finds (a bare `bake { ... }` with no `return` produces
// void), then, if a BakeRunner is wired, executes it and interns the
// result as the block's constant value.
func (c *checker) analyseBake() error {
	def := c.item.Node.(*ast.Definition)
	table := c.item.Table
	c.resolveDeps()

	scope := newLocalScope(nil, table)
	savedRet := c.retType
	c.retType = nil
	if def.BakeBody != nil {
		c.checkBlock(def.BakeBody, scope)
	}
	c.retType = savedRet

	retType := c.data.Types.Prim(types.Void)
	if def.BakeBody != nil {
		if rt := c.bakeReturnType(def.BakeBody); rt != nil {
			retType = rt
		}
	}

	sig := &Callable{Kind: CallableFunction, Name: def.Name, Return: retType, Def: def}
	c.info.Signature = sig
	c.data.SetSignature(def, sig)

	if c.item.Symbol == nil {
		return nil
	}
	if c.data.bake == nil {
		c.item.Symbol.Kind = depanalysis.ErrorSym
		return nil
	}
	result, err := c.data.bake.RunBake(def, sig, c.info)
	if err != nil {
		c.data.Diags.Add(diag.TypeMismatch, def.BakeBody.NodeRange(), "bake failed: %v", err)
		c.item.Symbol.Kind = depanalysis.ErrorSym
		return nil
	}
	c.item.Symbol.Kind = depanalysis.ConstantSym
	c.data.setSymbolType(c.item.Symbol, result.Type)
	c.data.setBakeResult(def, result)
	return nil
}

// bakeReturnType finds the first `return <value>` in body (not
// descending into a nested function literal; Upp has none, so a
// plain pre-order walk is exact) and reports the type checkReturn
// already resolved for it via c.info.Exprs.
func (c *checker) bakeReturnType(body *ast.CodeBlock) *types.Type {
	var found *types.Type
	ast.Walk(body, func(n ast.Node) {
		if found != nil {
			return
		}
		r, ok := n.(*ast.ReturnStmt)
		if !ok || r.Value == nil {
			return
		}
		if info := c.info.Exprs[r.Value]; info != nil {
			found = info.Type
		}
	})
	return found
}
