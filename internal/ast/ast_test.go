package ast_test

import (
	"testing"

	"upp/internal/ast"
	"upp/internal/ident"
	"upp/internal/lexer"
	"upp/internal/parser"
)

func parseModule(t *testing.T, src string) *ast.Module {
	t.Helper()
	toks := lexer.New("t.upp", src, ident.New()).ScanAll()
	p := parser.New("t.upp", toks, ast.NewArena())
	m := p.ParseModule("t.upp")
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}
	return m
}

func TestWalkVisitsEveryDescendant(t *testing.T) {
	m := parseModule(t, `main :: fn() { let x = 1 + 2; assert(x == 3); }`)

	count := 0
	ast.Walk(m, func(ast.Node) { count++ })
	if count < 5 {
		t.Fatalf("expected Walk to visit the module plus several descendants, only saw %d nodes", count)
	}
}

func TestWalkPreOrderParentPrecedesChild(t *testing.T) {
	m := parseModule(t, `main :: fn() { let x = 1; }`)

	seen := map[ast.Node]bool{}
	ast.Walk(m, func(n ast.Node) {
		if withParent, ok := n.(interface{ Parent() ast.Node }); ok {
			if p := withParent.Parent(); p != nil && !seen[p] {
				t.Fatalf("child visited before its own parent")
			}
		}
		seen[n] = true
	})
}

func TestNodeIndicesAreUniqueAndNonNegative(t *testing.T) {
	m := parseModule(t, `main :: fn() { let x = 1; let y = 2; }`)

	var indices []int
	ast.Walk(m, func(n ast.Node) { indices = append(indices, n.(interface{ Index() int }).Index()) })

	seen := map[int]bool{}
	for _, idx := range indices {
		if idx < 0 {
			t.Fatalf("node index must never be negative, got %d", idx)
		}
		if seen[idx] {
			t.Fatalf("node index %d was allocated twice", idx)
		}
		seen[idx] = true
	}
}
