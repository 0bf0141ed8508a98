package depanalysis

import (
	"upp/internal/ast"
)

// Kind discriminates the analysis-item variants.
type Kind int

const (
	RootItem Kind = iota
	ImportItemKind
	DefinitionItem
	StructureItem
	FunctionHeaderItem
	FunctionBodyItem
	BakeItem
)

func (k Kind) String() string {
	switch k {
	case RootItem:
		return "root"
	case ImportItemKind:
		return "import"
	case DefinitionItem:
		return "definition"
	case StructureItem:
		return "structure"
	case FunctionHeaderItem:
		return "function-header"
	case FunctionBodyItem:
		return "function-body"
	case BakeItem:
		return "bake"
	default:
		return "unknown-item"
	}
}

// DependencyKind records why one item needs another: normal needs the
// dependency fully resolved, member-reference only needs to know the
// referenced type exists (it's used behind a
// pointer/slice/function signature), member-in-memory needs the
// dependency's memory layout finished (it appears in a struct member's
// value position).
type DependencyKind int

const (
	Normal DependencyKind = iota
	MemberInMemory
	MemberReference
)

func (k DependencyKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case MemberInMemory:
		return "member-in-memory"
	case MemberReference:
		return "member-reference"
	default:
		return "unknown-dependency-kind"
	}
}

// Dependency is one symbol-read record attached to an Item, carrying
// the identifier path that was read, the table it was read from (so
// lookup honours the reader's lexical scope, not the definer's), and
// the kind that determines what "resolved enough" means to the
// scheduler.
type Dependency struct {
	Path  []string
	Table *SymbolTable
	Kind  DependencyKind
	// Node is the AST node the read occurred at, kept so diagnostics
	// (unresolved-symbol, dependency-cycle) can point at real source.
	Node ast.Node
}

// State is the scheduler's view of an Item's progress. Item state
// transitions are owned by internal/scheduler; depanalysis only
// defines the vocabulary so Symbol.Item back-pointers can be queried
// without an import cycle.
type State int

const (
	NotStarted State = iota
	RunningState
	SuspendedState
	DoneState
	ErrorDone
)

// Pass is one instanciation of an Item.
// Non-polymorphic items have exactly one; polymorphic function items
// gain one per distinct (comptime-values, pattern-bindings) call site.
// The rich per-node semantic info a pass carries (resolved types,
// casts, Callable_Call) is owned by internal/sema and keyed by
// *Pass to avoid depanalysis importing sema.
type Pass struct {
	Index int
	// PolyKey identifies which instanciation this is for a polymorphic
	// item; empty for the single pass of a non-polymorphic item.
	PolyKey string
}

// Item is the unit of scheduling. Items are identified by their Node
// and position in the tree (Parent/Children), the same way the
// analyser's cycle diagnostics name them (by symbol name and source
// range) rather than by a synthetic identifier; nothing in the
// scheduler or the analyser ever needs to look an item up by id.
type Item struct {
	Kind Kind
	Node ast.Node

	Deps   []Dependency
	Passes []*Pass

	// Symbol is set when this item defines a name (all kinds except
	// RootItem, ImportItemKind, FunctionBodyItem and a bare `bake { }`
	// block with no binding).
	Symbol *Symbol

	// Table is the symbol table this item's own node's children
	// resolve names against (a function body item's Table is its
	// parameter scope, not the module scope its header sees).
	Table *SymbolTable

	// Children are items nested inside this one (a function header
	// encloses its body item; a structure item's members may enclose
	// nothing further). The scheduler runs each child as an item of its
	// own; no Dependency links the containing item to its children.
	Children []*Item

	// Parent is the enclosing item, set alongside Children so a child
	// (e.g. a function body item) can look back at the item that
	// scoped it (its function header) without a separate index.
	Parent *Item

	State State
}

// AddChild appends child to it.Children and wires child.Parent back.
func (it *Item) AddChild(child *Item) {
	it.Children = append(it.Children, child)
	child.Parent = it
}

// NewPass allocates and appends a fresh pass, returning it.
func (it *Item) NewPass(polyKey string) *Pass {
	p := &Pass{Index: len(it.Passes), PolyKey: polyKey}
	it.Passes = append(it.Passes, p)
	return p
}

// RequiredState classifies what "resolved enough" means for a
// Dependency.Kind, used by the scheduler's satisfiability check.
type RequiredState int

const (
	RequireExists RequiredState = iota
	RequireLayoutFinished
	RequireFullyResolved
)

func (d Dependency) Required() RequiredState {
	switch d.Kind {
	case MemberReference:
		return RequireExists
	case MemberInMemory:
		return RequireLayoutFinished
	default:
		return RequireFullyResolved
	}
}

// Satisfied reports whether sym currently meets the required state
// (see Dependency.Required).
func Satisfied(sym *Symbol, required RequiredState) bool {
	if sym == nil {
		return false
	}
	switch required {
	case RequireExists:
		return sym.Kind != Unresolved && sym.Kind != ErrorSym
	case RequireLayoutFinished:
		return sym.Kind != Unresolved && sym.Kind != ErrorSym &&
			(sym.ResolvedType == nil || sym.ResolvedType.Finished())
	default: // RequireFullyResolved
		return sym.Kind != Unresolved && sym.Kind != ErrorSym
	}
}
