package sema

import (
	"upp/internal/ast"
	"upp/internal/depanalysis"
)

// analyseConstDefinition resolves a top-level `name :: value` binding
// that isn't a function, struct, or bake block: a comptime constant,
// possibly with an explicit type the initialiser must cast into.
func (c *checker) analyseConstDefinition() error {
	def := c.item.Node.(*ast.Definition)
	table := c.item.Table
	c.resolveDeps()

	if def.Kind == ast.DefEnum {
		t := c.data.Types.Enum(def.Name, def.EnumValues)
		if c.item.Symbol != nil {
			c.item.Symbol.Kind = depanalysis.TypeSym
			c.item.Symbol.ResolvedType = t
		}
		return nil
	}

	scope := newLocalScope(nil, table)
	info := c.checkExpr(def.ConstValue, table, scope)

	resultType := info.Type
	if def.ConstType != nil {
		declared := c.resolveType(def.ConstType, table)
		if kind, ok := c.implicitCast(info.Type, declared); ok {
			info.Cast = kind
			resultType = declared
		} else {
			resultType = typeError(c, def.ConstValue.NodeRange(), "cannot initialise %s from %s", declared, info.Type)
		}
	}

	if c.item.Symbol != nil {
		c.item.Symbol.Kind = depanalysis.ConstantSym
		c.data.setSymbolType(c.item.Symbol, resultType)
	}
	return nil
}
