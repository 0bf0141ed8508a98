package irgen

import (
	"testing"

	"upp/internal/ast"
	"upp/internal/constpool"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/ident"
	"upp/internal/ir"
	"upp/internal/lexer"
	"upp/internal/parser"
	"upp/internal/scheduler"
	"upp/internal/sema"
	"upp/internal/types"
)

func lowerToIR(t *testing.T, src string) (*ir.Program, *diag.List) {
	t.Helper()
	toks := lexer.New("t.upp", src, ident.New()).ScanAll()
	p := parser.New("t.upp", toks, ast.NewArena())
	mod := p.ParseModule("t.upp")
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}

	depData := depanalysis.Analyse(mod, nil)
	diags := &diag.List{}
	d := sema.NewData(types.NewRegistry(), constpool.New(), diags)
	scheduler.New(sema.NewJob(d), diags).Run(depData.Items)
	if !diags.Empty() {
		return nil, diags
	}

	prog, err := Generate(depData.Items, d)
	if err != nil {
		t.Fatalf("irgen.Generate failed: %v", err)
	}
	return prog, diags
}

func findFunction(prog *ir.Program, name string) *ir.Function {
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func TestGenerateProducesOneFunctionPerHeader(t *testing.T) {
	prog, _ := lowerToIR(t, `
		add :: fn(a: i32, b: i32) -> i32 { return a + b; }
		main :: fn() { assert(add(1, 2) == 3); }
	`)
	if findFunction(prog, "add") == nil {
		t.Fatalf("expected a lowered function named add")
	}
	if findFunction(prog, "main") == nil {
		t.Fatalf("expected a lowered function named main")
	}
}

func TestGenerateLowersFunctionBodyIntoInstructions(t *testing.T) {
	prog, _ := lowerToIR(t, `add :: fn(a: i32, b: i32) -> i32 { return a + b; }`)
	fn := findFunction(prog, "add")
	if fn == nil {
		t.Fatalf("expected a lowered function named add")
	}
	if len(fn.Entry.Instructions) == 0 {
		t.Fatalf("expected add's entry block to carry at least one instruction")
	}
	if len(fn.Params) != 2 {
		t.Fatalf("expected two lowered parameters, got %d", len(fn.Params))
	}
	if fn.Return == nil || fn.Return.Kind != types.Int32 {
		t.Fatalf("expected a lowered i32 return type, got %v", fn.Return)
	}
}

func TestGenerateSkipsModuleWithDiagnostics(t *testing.T) {
	_, diags := lowerToIR(t, `main :: fn() { let x: i32 = missing_name; }`)
	if diags.Empty() {
		t.Fatalf("expected diagnostics from the unresolved reference")
	}
}
