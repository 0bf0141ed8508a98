package lexer

import (
	"testing"

	"upp/internal/ident"
)

func scan(src string) []Token {
	return New("t.upp", src, ident.New()).ScanAll()
}

func TestBasicTokens(t *testing.T) {
	toks := scan("x :: 1 + 2")
	kinds := []Kind{Ident, DoubleColon, Int, Plus, Int, EOF}
	if len(toks) != len(kinds) {
		t.Fatalf("expected %d tokens, got %d (%v)", len(kinds), len(toks), toks)
	}
	for i, k := range kinds {
		if toks[i].Kind != k {
			t.Fatalf("token %d: expected kind %v, got %v", i, k, toks[i].Kind)
		}
	}
}

func TestNestedBlockComment(t *testing.T) {
	toks := scan("/* outer /* inner */ still-comment */ 42")
	if len(toks) != 2 || toks[0].Kind != Int || toks[0].IntValue != 42 {
		t.Fatalf("nested block comment not skipped correctly: %v", toks)
	}
}

func TestStringEscapes(t *testing.T) {
	toks := scan(`"a\nb"`)
	if toks[0].Kind != String || toks[0].StringValue != "a\nb" {
		t.Fatalf("escape decoding failed: %+v", toks[0])
	}
}

func TestNumberSuffixSelectsWidth(t *testing.T) {
	toks := scan("5i64 1.5f32")
	if toks[0].Kind != Int || toks[0].IntSuffix != "i64" {
		t.Fatalf("integer suffix not captured: %+v", toks[0])
	}
	if toks[1].Kind != Float || toks[1].IntSuffix != "f32" {
		t.Fatalf("float suffix not captured: %+v", toks[1])
	}
}

func TestErrorTokenNeverPanics(t *testing.T) {
	toks := scan("``` 1")
	found := false
	for _, tok := range toks {
		if tok.Kind == Error {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an Error token for illegal characters, got %v", toks)
	}
	// scanning must still reach EOF after the illegal run
	if toks[len(toks)-1].Kind != EOF {
		t.Fatalf("scanning did not terminate at EOF: %v", toks)
	}
}

func TestSpanCoversSource(t *testing.T) {
	src := "foo"
	toks := scan(src)
	if toks[0].Span.Start.Offset != 0 || toks[0].Span.Length != 3 {
		t.Fatalf("span does not cover the identifier: %+v", toks[0].Span)
	}
}
