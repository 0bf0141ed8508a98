package sema

import (
	"upp/internal/depanalysis"
	"upp/internal/types"
)

// localScope tracks runtime-variable types inside one function body.
// Unlike depanalysis.SymbolTable (which only ever holds module- and
// parameter-level symbols with scheduler-visible items), locals never
// get a dependency-analyser item of their own (VarDeclStmt is
// analysed inline as the enclosing function body item runs), so sema
// keeps its own lightweight chain alongside the SymbolTable chain.
type localScope struct {
	parent *localScope
	table  *depanalysis.SymbolTable // the depanalysis table for param/global lookups
	vars   map[string]*localVar
}

type localVar struct {
	Type  *types.Type
	Const bool
}

func newLocalScope(parent *localScope, table *depanalysis.SymbolTable) *localScope {
	return &localScope{parent: parent, table: table, vars: map[string]*localVar{}}
}

func (s *localScope) define(name string, t *types.Type, isConst bool) {
	s.vars[name] = &localVar{Type: t, Const: isConst}
}

func (s *localScope) lookup(name string) (*localVar, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// depTable returns the scope's depanalysis table (every localScope
// carries one; the helper keeps call sites uniform with the
// pre-body-analysis code paths that only have a table).
func (s *localScope) depTable() *depanalysis.SymbolTable { return s.table }
