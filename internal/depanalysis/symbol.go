// Package depanalysis implements the dependency analyser: it walks a
// parsed module and builds analysis items, symbol tables, and
// per-item symbol dependency lists. It performs no type checking and
// has no effect on the type system: purely structural, deterministic,
// side-effect-free preparation for the scheduler and the semantic
// analyser.
package depanalysis

import (
	"upp/internal/ast"
	"upp/internal/types"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SymbolKind discriminates what a Symbol currently denotes. Symbols
// start life Unresolved and gain their final kind when the item that
// defines them completes.
type SymbolKind int

const (
	Unresolved SymbolKind = iota
	UndefinedVariable
	Variable
	ParameterSym
	GlobalSym
	FunctionSym
	PolymorphicFunctionSym
	HardcodedSym
	TypeSym
	ConstantSym
	ModuleSym
	AliasSym
	ErrorSym
)

// Use records one read of a Symbol, kept so the editor can implement
// rename / find-all-uses.
type Use struct {
	Node ast.Node
}

// Symbol is one name bound in a SymbolTable. Symbols are identified
// by Name plus Table (their lexical position) with no separate
// synthetic identifier; cycle diagnostics and rename/find-all-uses
// both key off that pair.
type Symbol struct {
	Name    string
	Table   *SymbolTable
	Def     ast.Node // the AST node that defines this symbol
	Kind    SymbolKind
	Uses    []Use

	// Item is set once this symbol's defining analysis item exists,
	// letting a dependent look up "is my provider done yet".
	Item *Item

	// ResolvedType is set once Kind == TypeSym and the struct/enum/
	// alias type has been registered, possibly still unfinished, so
	// a member-reference dependent can proceed while a member-in-memory
	// one must keep waiting.
	ResolvedType *types.Type
}

// RecordUse appends a back-reference from a symbol read.
func (s *Symbol) RecordUse(n ast.Node) {
	s.Uses = append(s.Uses, Use{Node: n})
}

// SymbolTable maps identifiers to symbols, chained to an optional
// parent for lexical lookup.
type SymbolTable struct {
	Parent *SymbolTable
	byName map[string]*Symbol

	// FuncBodyOwner, when set, restricts parameter/local visibility:
	// reads of those symbols are only visible from within this table's
	// own function-body item (item-scoped visibility); a sibling
	// function cannot see another function's locals even though both
	// tables share a module-level parent.
	FuncBodyOwner *Item
}

// NewSymbolTable creates a table chained to parent (nil for a root
// module table).
func NewSymbolTable(parent *SymbolTable) *SymbolTable {
	return &SymbolTable{Parent: parent, byName: make(map[string]*Symbol)}
}

// Define installs a new symbol. If name is already defined in this
// table, the existing symbol is kept and the duplicate is installed
// under a synthetic mangled name instead, so later lookups by the
// original name keep working, and dependents of the duplicate can
// still resolve by using the mangled name returned here.
func (t *SymbolTable) Define(name string, def ast.Node, kind SymbolKind) (*Symbol, bool) {
	sym := &Symbol{Name: name, Table: t, Def: def, Kind: kind}
	if _, exists := t.byName[name]; exists {
		mangled := t.mangle(name)
		sym.Name = mangled
		t.byName[mangled] = sym
		return sym, false
	}
	t.byName[name] = sym
	return sym, true
}

func (t *SymbolTable) mangle(name string) string {
	n := 1
	for {
		candidate := name + "#dup" + itoa(n)
		if _, exists := t.byName[candidate]; !exists {
			return candidate
		}
		n++
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Lookup walks up the parent chain for name. fromItem decides whether
// this call may see FuncBodyOwner-scoped (parameter/local) symbols: a
// table with a FuncBodyOwner is skipped unless fromItem is that same
// function body item.
func (t *SymbolTable) Lookup(name string, fromItem *Item) (*Symbol, bool) {
	for tbl := t; tbl != nil; tbl = tbl.Parent {
		if sym, ok := tbl.byName[name]; ok {
			if tbl.FuncBodyOwner != nil && tbl.FuncBodyOwner != fromItem {
				// parameters/locals are invisible outside their owning
				// function-body item.
				continue
			}
			return sym, true
		}
	}
	return nil, false
}

// Names returns every name directly defined in this table (not
// ancestors), in insertion-independent sorted order. Used only for
// deterministic diagnostic output.
func (t *SymbolTable) Names() []string {
	names := maps.Keys(t.byName)
	slices.Sort(names)
	return names
}
