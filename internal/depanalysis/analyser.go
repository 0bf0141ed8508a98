package depanalysis

import (
	"github.com/google/uuid"

	"upp/internal/ast"
)

// Unit records one compilation unit analysed into a Data. The ID tags
// the unit in the driver's status logs; file paths repeat across test
// fixtures, unit IDs do not.
type Unit struct {
	ID     uuid.UUID
	Module *ast.Module
	Root   *Item
}

// Data is the output of dependency analysis over one or more
// compilation units: a shared root symbol table (so units resolve
// each other's top-level names), the units in load order, and every
// item discovered, in discovery order (stable for deterministic
// scheduling logs).
type Data struct {
	Root  *SymbolTable
	Units []*Unit
	Items []*Item
}

// NewData creates an empty Data whose root symbol table chains to
// parent (nil for a standalone compilation).
func NewData(parent *SymbolTable) *Data {
	return &Data{Root: NewSymbolTable(parent)}
}

// Analyse is the single-unit convenience: one module, one Data.
func Analyse(mod *ast.Module, parent *SymbolTable) *Data {
	d := NewData(parent)
	d.AddUnit(mod)
	return d
}

// AddUnit walks mod and builds its analysis items, defining the
// unit's top-level symbols in d.Root so other units can resolve them.
// It never type-checks and never touches the type registry; it only
// discovers structure. Adding the same module twice returns the
// existing unit without re-analysing.
func (d *Data) AddUnit(mod *ast.Module) *Unit {
	for _, u := range d.Units {
		if u.Module == mod {
			return u
		}
	}

	rootItem := &Item{Kind: RootItem, Node: mod}
	d.Items = append(d.Items, rootItem)
	unit := &Unit{ID: uuid.New(), Module: mod, Root: rootItem}
	d.Units = append(d.Units, unit)

	for _, imp := range mod.Imports {
		item := &Item{Kind: ImportItemKind, Node: imp}
		d.Items = append(d.Items, item)
		rootItem.AddChild(item)
	}

	for _, def := range mod.Defs {
		item := analyseDefinition(def, d.Root, d)
		if item != nil {
			rootItem.AddChild(item)
		}
	}
	return unit
}

// analyseDefinition creates the item (or pair of items, for a
// function) a top-level Definition produces:
//   - a function-valued const becomes a function item plus a sibling
//     function-body item;
//   - a struct-valued const becomes a structure item;
//   - a bake node becomes a bake item;
//   - anything else becomes a plain definition item.
func analyseDefinition(def *ast.Definition, table *SymbolTable, d *Data) *Item {
	switch def.Kind {
	case ast.DefFunction:
		sym, _ := table.Define(def.Name, def, Unresolved)
		headerItem := &Item{Kind: FunctionHeaderItem, Node: def, Symbol: sym, Table: table}
		sym.Item = headerItem
		d.Items = append(d.Items, headerItem)

		bodyTable := NewSymbolTable(table)
		bodyItem := &Item{Kind: FunctionBodyItem, Node: def.Body, Table: bodyTable}
		bodyTable.FuncBodyOwner = bodyItem
		for _, p := range def.Params {
			if p.PatternVar {
				continue
			}
			psym, _ := bodyTable.Define(p.Name, p, ParameterSym)
			psym.Item = headerItem
		}
		headerDeps := collectDeps(paramAndReturnNodes(def), table, MemberReference)
		headerItem.Deps = append(headerItem.Deps, filterPolyVars(headerDeps, def.PolyVars)...)
		if def.Body != nil {
			bodyDeps := collectDeps([]ast.Node{def.Body}, bodyTable, Normal)
			bodyItem.Deps = append(bodyItem.Deps, filterPolyVars(bodyDeps, def.PolyVars)...)
		}
		d.Items = append(d.Items, bodyItem)
		headerItem.AddChild(bodyItem)
		return headerItem

	case ast.DefStruct:
		sym, _ := table.Define(def.Name, def, Unresolved)
		item := &Item{Kind: StructureItem, Node: def, Symbol: sym, Table: table}
		sym.Item = item
		// Value-position members need full layout; members behind a
		// pointer only need the name.
		for _, f := range def.Fields {
			kind := MemberInMemory
			if isIndirectTypeExpr(f.Type) {
				kind = MemberReference
			}
			item.Deps = append(item.Deps, collectDeps([]ast.Node{f.Type}, table, kind)...)
		}
		for _, v := range def.Subtypes {
			for _, f := range v.Fields {
				kind := MemberInMemory
				if isIndirectTypeExpr(f.Type) {
					kind = MemberReference
				}
				item.Deps = append(item.Deps, collectDeps([]ast.Node{f.Type}, table, kind)...)
			}
		}
		d.Items = append(d.Items, item)
		return item

	case ast.DefEnum:
		// Enum values are plain identifiers; the definition reads no
		// other symbols, so the item carries no dependencies.
		sym, _ := table.Define(def.Name, def, Unresolved)
		item := &Item{Kind: DefinitionItem, Node: def, Symbol: sym, Table: table}
		sym.Item = item
		d.Items = append(d.Items, item)
		return item

	case ast.DefBake:
		item := &Item{Kind: BakeItem, Node: def, Table: table}
		if def.Name != "" {
			sym, _ := table.Define(def.Name, def, Unresolved)
			item.Symbol = sym
			sym.Item = item
		}
		item.Deps = append(item.Deps, collectDeps([]ast.Node{def.BakeBody}, table, Normal)...)
		d.Items = append(d.Items, item)
		return item

	default: // DefConst
		sym, _ := table.Define(def.Name, def, Unresolved)
		item := &Item{Kind: DefinitionItem, Node: def, Symbol: sym, Table: table}
		sym.Item = item
		nodes := []ast.Node{def.ConstValue}
		if def.ConstType != nil {
			nodes = append(nodes, def.ConstType)
		}
		item.Deps = append(item.Deps, collectDeps(nodes, table, Normal)...)
		d.Items = append(d.Items, item)
		return item
	}
}

func paramAndReturnNodes(def *ast.Definition) []ast.Node {
	nodes := make([]ast.Node, 0, len(def.Params)+1)
	for _, p := range def.Params {
		if p.Type != nil {
			nodes = append(nodes, p.Type)
		}
		if p.Default != nil {
			nodes = append(nodes, p.Default)
		}
	}
	if def.RetType != nil {
		nodes = append(nodes, def.RetType)
	}
	return nodes
}

// isIndirectTypeExpr reports whether a member type position only needs
// the referenced type's name, not its layout: pointer, optional-of-
// pointer, slice, and function-pointer types all carry a fixed-size
// representation regardless of what they point to.
func isIndirectTypeExpr(te ast.TypeExpr) bool {
	switch t := te.(type) {
	case *ast.PointerTypeExpr:
		return true
	case *ast.FunctionTypeExpr:
		return true
	case *ast.ArrayTypeExpr:
		return t.Count == nil // slice form
	case *ast.OptionalTypeExpr:
		return isIndirectTypeExpr(t.Elem)
	default:
		return false
	}
}

// filterPolyVars drops dependencies on a function's own pattern
// variables; those names are bound per call site, not defined in any
// symbol table, so awaiting them would misreport them as undefined.
func filterPolyVars(deps []Dependency, polyVars []string) []Dependency {
	if len(polyVars) == 0 {
		return deps
	}
	names := make(map[string]bool, len(polyVars))
	for _, v := range polyVars {
		names[v] = true
	}
	out := deps[:0]
	for _, d := range deps {
		if len(d.Path) > 0 && names[d.Path[0]] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// collectDeps walks every node in roots and records one Dependency per
// identifier path read (PathExpr or NamedTypeExpr), all sharing kind;
// a path read twice yields two Dependencies.
func collectDeps(roots []ast.Node, table *SymbolTable, kind DependencyKind) []Dependency {
	var deps []Dependency
	for _, root := range roots {
		if root == nil {
			continue
		}
		ast.Walk(root, func(n ast.Node) {
			switch e := n.(type) {
			case *ast.PathExpr:
				deps = append(deps, Dependency{Path: e.Segments, Table: table, Kind: kind, Node: n})
			case *ast.NamedTypeExpr:
				deps = append(deps, Dependency{Path: e.Path, Table: table, Kind: kind, Node: n})
			}
		})
	}
	return deps
}
