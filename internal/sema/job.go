package sema

import (
	"fmt"

	"upp/internal/ast"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/scheduler"
	"upp/internal/types"
)

// NewJob builds the scheduler.Job the semantic analyser runs under,
// one call per (item, pass), dispatching on item.Kind the way
// internal/depanalysis.analyseDefinition dispatches on ast.DefKind
// when it built the item tree in the first place.
func NewJob(d *Data) scheduler.Job {
	return func(y *scheduler.Yield, item *depanalysis.Item, pass *depanalysis.Pass) error {
		c := &checker{data: d, yield: y, item: item, pass: pass, info: d.Info(pass)}
		return c.runItem()
	}
}

// checker carries the state needed to analyse a single item/pass: the
// whole-compilation Data, the scheduler handle for Await, and the
// PassInfo this item/pass writes its results into.
type checker struct {
	data  *Data
	yield *scheduler.Yield
	item  *depanalysis.Item
	pass  *depanalysis.Pass
	info  *PassInfo

	// retType is the enclosing function's return type, set while
	// checking a function body so ReturnStmt can validate/cast its
	// value; nil outside a function body.
	retType *types.Type

	// patternVars holds the pattern-variable names ($T) declared by
	// the function definition currently being analysed, set while
	// resolving its header so resolveType can recognise a bare
	// reference to one instead of failing a symbol lookup.
	patternVars map[string]bool
}

// asPatternVar reports the bare name te denotes, if te is a single-
// segment named type reference to one of c's current pattern
// variables (e.g. `x: T` where T was declared by a sibling `$T`
// parameter).
func (c *checker) asPatternVar(te ast.TypeExpr) (string, bool) {
	if len(c.patternVars) == 0 {
		return "", false
	}
	nt, ok := te.(*ast.NamedTypeExpr)
	if !ok || len(nt.Path) != 1 {
		return "", false
	}
	if c.patternVars[nt.Path[0]] {
		return nt.Path[0], true
	}
	return "", false
}

func (c *checker) runItem() error {
	switch c.item.Kind {
	case depanalysis.RootItem, depanalysis.ImportItemKind:
		return nil
	case depanalysis.DefinitionItem:
		return c.analyseConstDefinition()
	case depanalysis.StructureItem:
		return c.analyseStruct()
	case depanalysis.FunctionHeaderItem:
		return c.analyseFunctionHeader()
	case depanalysis.FunctionBodyItem:
		return c.analyseFunctionBody()
	case depanalysis.BakeItem:
		return c.analyseBake()
	default:
		return fmt.Errorf("sema: unhandled item kind %v", c.item.Kind)
	}
}

// awaitDep suspends the current fiber on dep until it resolves to the
// state dep.Kind requires, then returns the resolved Symbol. Dep.Table
// is looked up first under the reader's own scope so a deeper path
// segment (A.B.C) resolves B and C relative to A's own symbol table
// once A exists.
func (c *checker) awaitDep(dep depanalysis.Dependency) *depanalysis.Symbol {
	name := dep.Path[0]
	sym, ok := dep.Table.Lookup(name, c.item)
	if !ok {
		if isBuiltinName(name) {
			// primitive type names and hardcoded intrinsics resolve
			// without a symbol table entry; nothing to wait on.
			return nil
		}
		c.data.Diags.Add(diag.UnresolvedSymbol, dep.Node.NodeRange(), "undefined: %s", name)
		return nil
	}
	required := dep.Required()
	for !depanalysis.Satisfied(sym, required) {
		c.yield.Await(sym, required)
	}
	return sym
}

// resolveDeps waits on every dependency this item recorded during
// dependency analysis, in order, so later lookups of those names (now
// resolved) can proceed without risking a mid-pass block.
func (c *checker) resolveDeps() {
	for _, dep := range c.item.Deps {
		c.awaitDep(dep)
	}
}
