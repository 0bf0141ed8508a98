package parser

import (
	"testing"

	"upp/internal/ast"
	"upp/internal/ident"
	"upp/internal/lexer"
)

func parseSrc(t *testing.T, src string) (*ast.Module, *Parser) {
	t.Helper()
	toks := lexer.New("t.upp", src, ident.New()).ScanAll()
	p := New("t.upp", toks, ast.NewArena())
	m := p.ParseModule("t.upp")
	return m, p
}

func TestParseConstDefinition(t *testing.T) {
	m, p := parseSrc(t, `answer :: 42`)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors)
	}
	if len(m.Defs) != 1 || m.Defs[0].Kind != ast.DefConst {
		t.Fatalf("expected one const definition, got %+v", m.Defs)
	}
}

func TestParseFunctionDefinition(t *testing.T) {
	src := `main :: fn() { assert(1 + 1 == 2); }`
	m, p := parseSrc(t, src)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors)
	}
	if len(m.Defs) != 1 || m.Defs[0].Kind != ast.DefFunction {
		t.Fatalf("expected one function definition, got %+v", m.Defs)
	}
	fn := m.Defs[0]
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected one statement in main's body, got %d", len(fn.Body.Stmts))
	}
}

func TestParseStructDefinition(t *testing.T) {
	src := `Point :: struct { x: i32, y: i32 }`
	m, _ := parseSrc(t, src)
	d := m.Defs[0]
	if d.Kind != ast.DefStruct || len(d.Fields) != 2 {
		t.Fatalf("expected a 2-field struct, got %+v", d)
	}
}

func TestParentPointersAreWired(t *testing.T) {
	m, _ := parseSrc(t, `x :: 1 + 2`)
	def := m.Defs[0]
	bin, ok := def.ConstValue.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected a binary expression, got %T", def.ConstValue)
	}
	if bin.Parent() != ast.Node(def) {
		t.Fatalf("binary expression's parent should be the definition")
	}
	if bin.Left.(interface{ Parent() ast.Node }).Parent() != ast.Node(bin) {
		t.Fatalf("left operand's parent should be the binary expression")
	}
}

func TestErrorRecoveryProducesCompleteTree(t *testing.T) {
	src := `broken :: fn() { let x = ; return x; }`
	m, p := parseSrc(t, src)
	if len(p.Errors) == 0 {
		t.Fatalf("expected a parse error for the malformed let statement")
	}
	if len(m.Defs) != 1 {
		t.Fatalf("parser must still produce a complete tree after an error")
	}
	fn := m.Defs[0]
	if fn.Body == nil || len(fn.Body.Stmts) == 0 {
		t.Fatalf("expected the function body to still contain statements after recovery")
	}
}

func TestMonotoneAllocationIndex(t *testing.T) {
	m, _ := parseSrc(t, `x :: 1 + 2`)
	def := m.Defs[0]
	bin := def.ConstValue.(*ast.BinaryExpr)
	if def.Index() <= bin.Index() {
		t.Fatalf("a node's index should exceed its children's: def=%d bin=%d", def.Index(), bin.Index())
	}
}

func TestIfWhileForParse(t *testing.T) {
	src := `f :: fn() {
		if true { } else { }
		while true { break; }
		for let i: i32 = 0; i < 3; i = i + 1 { continue; }
	}`
	_, p := parseSrc(t, src)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors)
	}
}

func TestParseImports(t *testing.T) {
	m, p := parseSrc(t, `
import "util.upp"
import project core
import project graphics@v2

main :: fn() { }
`)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors)
	}
	if len(m.Imports) != 3 {
		t.Fatalf("expected 3 imports, got %d", len(m.Imports))
	}
	if m.Imports[0].Kind != ast.ImportFile || m.Imports[0].Path != "util.upp" {
		t.Fatalf("file import not captured: %+v", m.Imports[0])
	}
	if m.Imports[1].Kind != ast.ImportProject || m.Imports[1].Path != "core" || m.Imports[1].Version != "" {
		t.Fatalf("project import not captured: %+v", m.Imports[1])
	}
	if m.Imports[2].Version != "v2" {
		t.Fatalf("version constraint not captured: %+v", m.Imports[2])
	}
}

func TestParseEnumDefinition(t *testing.T) {
	m, p := parseSrc(t, `Color :: enum { Red, Green, Blue }`)
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors)
	}
	if len(m.Defs) != 1 || m.Defs[0].Kind != ast.DefEnum {
		t.Fatalf("expected one enum definition, got %+v", m.Defs)
	}
	want := []string{"Red", "Green", "Blue"}
	got := m.Defs[0].EnumValues
	if len(got) != len(want) {
		t.Fatalf("expected values %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected values %v, got %v", want, got)
		}
	}
}
