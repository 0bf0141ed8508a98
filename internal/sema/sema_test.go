package sema

import (
	"testing"

	"upp/internal/ast"
	"upp/internal/constpool"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/ident"
	"upp/internal/lexer"
	"upp/internal/parser"
	"upp/internal/scheduler"
	"upp/internal/types"
)

func check(t *testing.T, src string) (*depanalysis.Data, *Data, *diag.List) {
	t.Helper()
	toks := lexer.New("t.upp", src, ident.New()).ScanAll()
	p := parser.New("t.upp", toks, ast.NewArena())
	mod := p.ParseModule("t.upp")
	if len(p.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors)
	}

	depData := depanalysis.Analyse(mod, nil)
	diags := &diag.List{}
	d := NewData(types.NewRegistry(), constpool.New(), diags)

	sched := scheduler.New(NewJob(d), diags)
	sched.Run(depData.Items)
	return depData, d, diags
}

func bodyItem(depData *depanalysis.Data) *depanalysis.Item {
	for _, it := range depData.Items {
		if it.Kind == depanalysis.FunctionBodyItem {
			return it
		}
	}
	return nil
}

func TestArithmeticExpressionInfersI32(t *testing.T) {
	depData, d, diags := check(t, `main :: fn() { let x: i32 = 1 + 2; }`)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}

	body := bodyItem(depData)
	if body == nil || len(body.Passes) == 0 {
		t.Fatalf("expected the function body to have run at least one pass")
	}
	info := d.Info(body.Passes[0])

	block := body.Node.(*ast.CodeBlock)
	decl := block.Stmts[0].(*ast.VarDeclStmt)
	bin, ok := decl.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected the initializer to be a binary expression, got %T", decl.Value)
	}

	exprInfo := info.Exprs[bin]
	if exprInfo == nil {
		t.Fatalf("expected the binary expression to have resolved type info")
	}
	if exprInfo.Type == nil || exprInfo.Type.Kind != types.Int32 {
		t.Fatalf("expected 1 + 2 to infer as i32, got %v", exprInfo.Type)
	}
}

func TestUnresolvedSymbolReportsDiagnostic(t *testing.T) {
	_, _, diags := check(t, `main :: fn() { let x: i32 = missing_name; }`)
	if diags.Empty() {
		t.Fatalf("expected an unresolved-symbol diagnostic")
	}
	found := false
	for _, dg := range diags.All() {
		if dg.Kind == diag.UnresolvedSymbol {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an UnresolvedSymbol diagnostic, got %v", diags.All())
	}
}

func TestFunctionHeaderSignatureHasReturnType(t *testing.T) {
	depData, d, diags := check(t, `add :: fn(a: i32, b: i32) -> i32 { return a + b; }`)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}

	var header *depanalysis.Item
	for _, it := range depData.Items {
		if it.Kind == depanalysis.FunctionHeaderItem {
			header = it
		}
	}
	if header == nil {
		t.Fatalf("expected a function-header item")
	}
	sig := d.signatures[header.Node.(*ast.Definition)]
	if sig == nil {
		t.Fatalf("expected a cached Callable signature for add")
	}
	if sig.Return == nil || sig.Return.Kind != types.Int32 {
		t.Fatalf("expected add's return type to be i32, got %v", sig.Return)
	}
	if len(sig.Params) != 2 {
		t.Fatalf("expected two parameters, got %d", len(sig.Params))
	}
}

// One polymorphic definition called with two distinct type bindings
// yields exactly two memoized instanciations; a repeated binding
// reuses the existing one.
func TestPolymorphicCallMemoizesPerTypeBinding(t *testing.T) {
	_, d, diags := check(t, `
id :: fn($T: Type, x: T) -> T { return x; }
main :: fn() {
	id(i32, 5);
	id(f32, 5.0);
	id(i32, 7);
}
`)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	insts := d.Instances()
	if len(insts) != 2 {
		keys := make([]string, len(insts))
		for i, inst := range insts {
			keys[i] = inst.Key
		}
		t.Fatalf("expected 2 instanciations, got %d: %v", len(insts), keys)
	}
	for _, inst := range insts {
		if inst.Callable.Name != "id" {
			t.Fatalf("instanciation of the wrong callable: %q", inst.Callable.Name)
		}
	}
}

// An enum definition resolves to a type symbol; accessing a variant
// through the type name folds to a constant of the enum type with the
// variant's ordinal.
func TestEnumValueFoldsToOrdinalConstant(t *testing.T) {
	depData, d, diags := check(t, `
Color :: enum { Red, Green, Blue }
main :: fn() { let c: Color = Color.Green; }
`)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}

	body := bodyItem(depData)
	info := d.Info(body.Passes[0])
	block := body.Node.(*ast.CodeBlock)
	decl := block.Stmts[0].(*ast.VarDeclStmt)
	valInfo := info.Exprs[decl.Value]
	if valInfo == nil || valInfo.Const == nil {
		t.Fatalf("expected Color.Green to fold to a constant, got %+v", valInfo)
	}
	if valInfo.Type.Kind != types.Enum {
		t.Fatalf("expected an enum-typed constant, got %v", valInfo.Type)
	}
	if got := decodeIntConst(valInfo.Const); got != 1 {
		t.Fatalf("expected Green's ordinal 1, got %d", got)
	}
}

// An option switched off in the module context disables the matching
// implicit cast even though the cast matrix allows it.
func TestContextDisablesImplicitCast(t *testing.T) {
	src := `main :: fn() { let wide: i64 = 5; }`
	if _, _, diags := check(t, src); !diags.Empty() {
		t.Fatalf("int widen should be implicit by default: %v", diags.All())
	}

	toks := lexer.New("t.upp", src, ident.New()).ScanAll()
	p := parser.New("t.upp", toks, ast.NewArena())
	mod := p.ParseModule("t.upp")
	depData := depanalysis.Analyse(mod, nil)
	diags := &diag.List{}
	d := NewData(types.NewRegistry(), constpool.New(), diags)
	d.Ctx.Set(OptImplicitIntWiden, false)
	scheduler.New(NewJob(d), diags).Run(depData.Items)
	if diags.Empty() {
		t.Fatalf("expected a diagnostic with implicit int widening disabled")
	}
}

// A comptime parameter makes its function polymorphic: each distinct
// constant argument produces one memoized instanciation, and a
// repeated constant reuses it.
func TestComptimeParameterInstanciatesPerConstant(t *testing.T) {
	_, d, diags := check(t, `
square :: fn(comptime n: i32) -> i32 { return n * n; }
main :: fn() {
	square(3);
	square(4);
	square(3);
}
`)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.All())
	}
	insts := d.Instances()
	if len(insts) != 2 {
		keys := make([]string, len(insts))
		for i, inst := range insts {
			keys[i] = inst.Key
		}
		t.Fatalf("expected 2 instanciations (one per distinct constant), got %d: %v", len(insts), keys)
	}
	for _, inst := range insts {
		if len(inst.Comptime) != 1 {
			t.Fatalf("expected the comptime value recorded on the instanciation, got %+v", inst.Comptime)
		}
	}
}

// A comptime parameter's argument must fold to a compile-time
// constant; a runtime value is rejected.
func TestComptimeParameterRejectsRuntimeArgument(t *testing.T) {
	_, _, diags := check(t, `
square :: fn(comptime n: i32) -> i32 { return n * n; }
main :: fn() {
	let x: i32 = 3;
	square(x);
}
`)
	if diags.Empty() {
		t.Fatalf("expected a diagnostic for a runtime argument to a comptime parameter")
	}
}

// When a monomorphic and a polymorphic candidate tie on implicit-cast
// cost, specificity breaks the tie toward the monomorphic one instead
// of reporting the call ambiguous.
func TestOverloadTieBreaksOnSpecificity(t *testing.T) {
	reg := types.NewRegistry()
	diags := &diag.List{}
	d := NewData(reg, constpool.New(), diags)
	i32 := reg.Prim(types.Int32)
	mono := &Callable{Kind: CallableFunction, Name: "f",
		Params: []Param{{Name: "x", Type: i32, Required: true}}, Return: i32}
	poly := &Callable{Kind: CallablePolymorphicFunction, Name: "f",
		Params: []Param{{Name: "x", Type: i32, Required: true, Comptime: true}}, Return: i32}

	lit := &ast.Literal{Kind: ast.LitInt, Int: 5}
	ce := &ast.CallExpr{Callee: &ast.PathExpr{Segments: []string{"f"}}, Args: []ast.Arg{{Value: lit}}}

	item := &depanalysis.Item{Kind: depanalysis.FunctionBodyItem, Table: depanalysis.NewSymbolTable(nil)}
	pass := item.NewPass("")
	c := &checker{data: d, item: item, pass: pass, info: d.Info(pass)}
	scope := newLocalScope(nil, item.Table)

	for _, candidates := range [][]*Callable{{mono, poly}, {poly, mono}} {
		info := c.resolveOverloadedCall(ce, "f", candidates, item.Table, scope)
		if info.Call == nil || info.Call.Callee != mono {
			t.Fatalf("expected the monomorphic candidate to win the tie, got %+v", info.Call)
		}
	}
	for _, dg := range diags.All() {
		if dg.Kind == diag.AmbiguousOverload {
			t.Fatalf("tie should resolve by specificity, not report ambiguity: %v", diags.All())
		}
	}
}
