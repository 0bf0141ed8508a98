package sema

import (
	"upp/internal/ast"
	"upp/internal/depanalysis"
	"upp/internal/types"
)

// analyseFunctionHeader resolves a function definition's call signature:
// parameter and return types, which parameters are pattern variables
// or comptime, and whether the function is polymorphic at all. The
// resulting Callable is cached by def (Data.SetSignature) and also
// installed on the defining Symbol so name lookups at call sites see
// a FunctionSym/PolymorphicFunctionSym rather than Unresolved.
func (c *checker) analyseFunctionHeader() error {
	def := c.item.Node.(*ast.Definition)
	c.resolveDeps()

	c.patternVars = map[string]bool{}
	for _, pv := range def.PolyVars {
		c.patternVars[pv] = true
	}
	for _, p := range def.Params {
		if p.PatternVar {
			c.patternVars[p.Name] = true
		}
	}

	table := c.item.Table
	params := make([]Param, len(def.Params))
	polymorphic := len(c.patternVars) > 0
	for _, p := range def.Params {
		// a comptime parameter makes the function polymorphic even
		// without any $T pattern variable: each distinct constant
		// argument is its own instanciation.
		if p.Comptime && !p.PatternVar {
			polymorphic = true
		}
	}
	for i, p := range def.Params {
		param := Param{
			Name: p.Name, Required: p.Required, NamedOnly: p.NamedOnly,
			MustNotBeSet: p.MustNotBeSet, Comptime: p.Comptime,
			PatternVar: p.PatternVar, Default: p.Default,
		}
		if p.PatternVar {
			// The `$T` declarator itself, caller binds a Type value.
		} else if name, ok := c.asPatternVar(p.Type); ok {
			param.PatternVarName = name
		} else {
			param.Type = c.resolveType(p.Type, table)
		}
		params[i] = param
	}

	var ret *types.Type
	var retPatternVar string
	if name, ok := c.asPatternVar(def.RetType); ok {
		retPatternVar = name
	} else {
		ret = c.resolveType(def.RetType, table)
	}

	kind := CallableFunction
	if polymorphic {
		kind = CallablePolymorphicFunction
	}
	callable := &Callable{
		Kind: kind, Name: def.Name, Params: params, Return: ret,
		ReturnPatternVar: retPatternVar, Item: c.item, Def: def,
	}

	c.info.Signature = callable
	c.data.SetSignature(def, callable)
	c.data.registerCallable(def.Name, callable)

	if c.item.Symbol != nil {
		c.item.Symbol.Kind = depanalysis.FunctionSym
		if polymorphic {
			c.item.Symbol.Kind = depanalysis.PolymorphicFunctionSym
		} else {
			c.data.setSymbolType(c.item.Symbol, callableFunctionPointerType(c.data, callable))
		}
	}

	// Parameter symbols live in the body item's own table (a child of
	// ours); give each its resolved type now that the header is done.
	if len(c.item.Children) > 0 {
		bodyTable := c.item.Children[0].Table
		for _, p := range params {
			if p.PatternVar {
				continue
			}
			psym, ok := bodyTable.Lookup(p.Name, c.item.Children[0])
			if !ok {
				continue
			}
			if p.PatternVarName != "" {
				// Concrete type depends on the call site; the body is
				// checked structurally once against Unknown and refined
				// per instanciation in internal/irgen.
				c.data.setSymbolType(psym, c.data.Types.Prim(types.Unknown))
				continue
			}
			c.data.setSymbolType(psym, p.Type)
		}
	}
	return nil
}

// callableFunctionPointerType builds the monomorphic function-pointer
// type a non-polymorphic Callable denotes as a value (e.g. when taken
// by name and stored in a variable of function-pointer type).
func callableFunctionPointerType(d *Data, c *Callable) *types.Type {
	params := make([]*types.Type, len(c.Params))
	for i, p := range c.Params {
		params[i] = p.Type
	}
	return d.Types.FunctionPointer(params, c.Return)
}
