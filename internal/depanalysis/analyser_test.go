package depanalysis

import (
	"testing"

	"upp/internal/ast"
	"upp/internal/ident"
	"upp/internal/lexer"
	"upp/internal/parser"
)

func parseSrc(t *testing.T, src string) *ast.Module {
	t.Helper()
	toks := lexer.New("t.upp", src, ident.New()).ScanAll()
	p := parser.New("t.upp", toks, ast.NewArena())
	m := p.ParseModule("t.upp")
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	return m
}

func TestAnalyseCreatesFunctionHeaderAndBodyItems(t *testing.T) {
	m := parseSrc(t, `main :: fn() { assert(1 + 1 == 2); }`)
	d := Analyse(m, nil)

	var header, body *Item
	for _, it := range d.Items {
		if it.Kind == FunctionHeaderItem {
			header = it
		}
		if it.Kind == FunctionBodyItem {
			body = it
		}
	}
	if header == nil || body == nil {
		t.Fatalf("expected both a function-header and function-body item")
	}
	if header.Symbol == nil || header.Symbol.Name != "main" {
		t.Fatalf("expected the header item to define symbol \"main\", got %+v", header.Symbol)
	}
	if len(header.Children) != 1 || header.Children[0] != body {
		t.Fatalf("expected header item to enclose the body item as a child")
	}
}

func TestAnalyseStructMemberDependencyKinds(t *testing.T) {
	m := parseSrc(t, `
		A :: struct { b: *B }
		B :: struct { x: i32 }
	`)
	d := Analyse(m, nil)

	var aItem *Item
	for _, it := range d.Items {
		if it.Kind == StructureItem && it.Symbol.Name == "A" {
			aItem = it
		}
	}
	if aItem == nil {
		t.Fatalf("expected a structure item for A")
	}
	found := false
	for _, dep := range aItem.Deps {
		if len(dep.Path) == 1 && dep.Path[0] == "B" {
			found = true
			if dep.Kind != MemberReference {
				t.Fatalf("pointer member should be a member-reference dependency, got %v", dep.Kind)
			}
		}
	}
	if !found {
		t.Fatalf("expected a dependency on B")
	}
}

func TestAnalyseStructByValueMemberIsMemberInMemory(t *testing.T) {
	m := parseSrc(t, `
		A :: struct { b: B }
		B :: struct { x: i32 }
	`)
	d := Analyse(m, nil)
	for _, it := range d.Items {
		if it.Kind == StructureItem && it.Symbol.Name == "A" {
			for _, dep := range it.Deps {
				if len(dep.Path) == 1 && dep.Path[0] == "B" && dep.Kind != MemberInMemory {
					t.Fatalf("by-value member should be member-in-memory, got %v", dep.Kind)
				}
			}
		}
	}
}

func TestDuplicateDefinitionIsMangledNotLost(t *testing.T) {
	table := NewSymbolTable(nil)
	first, ok := table.Define("x", nil, ConstantSym)
	if !ok || first.Name != "x" {
		t.Fatalf("first definition should keep the plain name")
	}
	second, ok := table.Define("x", nil, ConstantSym)
	if ok {
		t.Fatalf("second definition of the same name should report a duplicate")
	}
	if second.Name == "x" {
		t.Fatalf("duplicate should be installed under a mangled name, not \"x\"")
	}
	if _, found := table.Lookup(second.Name, nil); !found {
		t.Fatalf("mangled name must still resolve for dependents")
	}
}

func TestFuncBodyLocalsInvisibleOutsideOwningItem(t *testing.T) {
	outer := NewSymbolTable(nil)
	bodyA := &Item{Kind: FunctionBodyItem}
	tableA := NewSymbolTable(outer)
	tableA.FuncBodyOwner = bodyA
	tableA.Define("local", nil, Variable)

	bodyB := &Item{Kind: FunctionBodyItem}
	if _, found := tableA.Lookup("local", bodyB); found {
		t.Fatalf("a different function body must not see another's locals")
	}
	if _, found := tableA.Lookup("local", bodyA); !found {
		t.Fatalf("the owning function body must see its own locals")
	}
}

// Units added to one Data define their top-level symbols in the shared
// root table, so one unit's definitions resolve from another.
func TestAddUnitSharesRootTable(t *testing.T) {
	d := NewData(nil)
	a := d.AddUnit(parseSrc(t, `Node :: struct { x: i32 }`))
	b := d.AddUnit(parseSrc(t, `main :: fn() { }`))

	if a.ID == b.ID {
		t.Fatalf("distinct units must carry distinct IDs")
	}
	if _, ok := d.Root.Lookup("Node", nil); !ok {
		t.Fatalf("first unit's Node not visible in the shared root table")
	}
	if _, ok := d.Root.Lookup("main", nil); !ok {
		t.Fatalf("second unit's main not visible in the shared root table")
	}
}

func TestAddUnitIsIdempotentPerModule(t *testing.T) {
	d := NewData(nil)
	m := parseSrc(t, `main :: fn() { }`)
	first := d.AddUnit(m)
	second := d.AddUnit(m)
	if first != second {
		t.Fatalf("re-adding the same module must return the existing unit")
	}
	if len(d.Units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(d.Units))
	}
}
