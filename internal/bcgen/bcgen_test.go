package bcgen

import (
	"testing"

	"upp/internal/ast"
	"upp/internal/constpool"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/ident"
	"upp/internal/interp"
	"upp/internal/irgen"
	"upp/internal/lexer"
	"upp/internal/parser"
	"upp/internal/scheduler"
	"upp/internal/sema"
	"upp/internal/types"
)

// compileAndRun drives the whole pipeline from source to a finished
// interp.Exit, the same sequence internal/driver.Run uses, so bcgen's
// own tests exercise it against a real (if small) program rather than
// a hand-built ir.Program.
func compileAndRun(t *testing.T, src string) interp.Exit {
	t.Helper()
	toks := lexer.New("t.upp", src, ident.New()).ScanAll()
	p := parser.New("t.upp", toks, ast.NewArena())
	mod := p.ParseModule("t.upp")
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}

	depData := depanalysis.Analyse(mod, nil)
	diags := &diag.List{}
	reg := types.NewRegistry()
	d := sema.NewData(reg, constpool.New(), diags)
	scheduler.New(sema.NewJob(d), diags).Run(depData.Items)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}

	irProg, err := irgen.Generate(depData.Items, d)
	if err != nil {
		t.Fatalf("irgen.Generate failed: %v", err)
	}

	bcProg, err := Generate(irProg, reg)
	if err != nil {
		t.Fatalf("bcgen.Generate failed: %v", err)
	}

	m := interp.NewMachine(bcProg, nil, nil)
	exit, err := m.RunFunction("main")
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	return exit
}

func TestGenerateRunsArithmeticAssertion(t *testing.T) {
	exit := compileAndRun(t, `main :: fn() { assert(1 + 2 == 3); }`)
	if exit.Kind != interp.ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v", exit)
	}
}

func TestGenerateRunsFunctionCall(t *testing.T) {
	exit := compileAndRun(t, `
		add :: fn(a: i32, b: i32) -> i32 { return a + b; }
		main :: fn() { assert(add(2, 3) == 5); }
	`)
	if exit.Kind != interp.ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v", exit)
	}
}

func TestGenerateFailingAssertionIsExecutionError(t *testing.T) {
	exit := compileAndRun(t, `main :: fn() { assert(1 == 2); }`)
	if exit.Kind != interp.ExitExecutionError {
		t.Fatalf("expected EXECUTION_ERROR, got %v", exit)
	}
}
