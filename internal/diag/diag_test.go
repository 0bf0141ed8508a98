package diag

import (
	"testing"

	"upp/internal/ast"
	"upp/internal/lexer"
)

func rangeAt(file string, line, col int) ast.Range {
	pos := lexer.Position{File: file, Line: line, Column: col}
	return ast.Range{Start: pos, End: pos}
}

func TestListAllSortsByPosition(t *testing.T) {
	var l List
	l.Add(TypeMismatch, rangeAt("b.upp", 1, 1), "second file")
	l.Add(UnresolvedSymbol, rangeAt("a.upp", 3, 1), "later line")
	l.Add(DuplicateDefinition, rangeAt("a.upp", 1, 5), "later column")
	l.Add(IllegalCharacter, rangeAt("a.upp", 1, 1), "first")

	sorted := l.All()
	if len(sorted) != 4 {
		t.Fatalf("expected 4 diagnostics, got %d", len(sorted))
	}
	want := []string{"first", "later column", "later line", "second file"}
	for i, w := range want {
		if sorted[i].Message != w {
			t.Fatalf("position %d: expected %q, got %q", i, w, sorted[i].Message)
		}
	}
}

func TestListEmptyAndLen(t *testing.T) {
	var l List
	if !l.Empty() {
		t.Fatalf("freshly constructed list should be empty")
	}
	l.Add(IllegalCharacter, rangeAt("a.upp", 1, 1), "boom")
	if l.Empty() {
		t.Fatalf("list should no longer be empty after Add")
	}
	if l.Len() != 1 {
		t.Fatalf("expected length 1, got %d", l.Len())
	}
}

func TestDiagnosticStringIncludesPositionAndKind(t *testing.T) {
	var l List
	l.Add(UnresolvedSymbol, rangeAt("main.upp", 4, 7), "undefined: %s", "foo")
	got := l.All()[0].String()
	want := "main.upp:4:7: unresolved-symbol: undefined: foo"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestKindStringOutOfRangeIsUnknown(t *testing.T) {
	if got := Kind(-1).String(); got != "unknown-diagnostic" {
		t.Fatalf("expected unknown-diagnostic for negative kind, got %q", got)
	}
	if got := Kind(1000).String(); got != "unknown-diagnostic" {
		t.Fatalf("expected unknown-diagnostic for out-of-range kind, got %q", got)
	}
}
