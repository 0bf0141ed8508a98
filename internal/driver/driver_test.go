package driver

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"golang.org/x/tools/txtar"

	"upp/internal/diag"
	"upp/internal/interp"
)

// fixture is one txtar-encoded end-to-end scenario: a "main.upp" file
// plus a "want" file naming the expected interp.ExitKind by its
// String() spelling (SUCCESS, EXECUTION_ERROR, ...). Bundling source
// and expectation in one archive keeps each scenario self-contained
// and diffable, the same shape golang.org/x/tools itself uses txtar
// for in its own script-test fixtures.
func runFixture(t *testing.T, archive string) (Result, error) {
	t.Helper()
	ar := txtar.Parse([]byte(archive))

	dir := t.TempDir()
	var sourcePath, want string
	for _, f := range ar.Files {
		if f.Name == "want" {
			want = string(bytes.TrimSpace(f.Data))
			continue
		}
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatalf("writing fixture file %s: %v", f.Name, err)
		}
		if f.Name == "main.upp" {
			sourcePath = path
		}
	}
	if sourcePath == "" {
		t.Fatalf("fixture is missing main.upp")
	}

	result, err := Run(Options{SourcePath: sourcePath})
	if err != nil {
		return result, err
	}
	if got := result.Exit.Kind.String(); want != "" && got != want {
		t.Errorf("fixture %q: expected exit %s, got %s\ndiagnostics: %#v",
			sourcePath, want, got, pretty.Formatter(result.Diags.All()))
	}
	return result, nil
}

func TestAssertSuccessEndToEnd(t *testing.T) {
	runFixture(t, `
-- main.upp --
main :: fn() {
	assert(1 + 1 == 2);
}
-- want --
SUCCESS
`)
}

func TestArrayOutOfBoundsEndToEnd(t *testing.T) {
	runFixture(t, `
-- main.upp --
main :: fn() {
	arr: [3]i32;
	arr[3] = 1;
}
-- want --
EXECUTION_ERROR
`)
}

func TestCompilationFailureEndToEnd(t *testing.T) {
	result, err := runFixture(t, `
-- main.upp --
main :: fn() {
	let x: i32 = missing_name;
}
-- want --
COMPILATION_FAILED
`)
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	if result.Diags.Empty() {
		t.Fatalf("expected at least one diagnostic for the unresolved reference")
	}
}

func TestExitWithUserCodeEndToEnd(t *testing.T) {
	result, err := runFixture(t, `
-- main.upp --
main :: fn() -> i32 {
	return 7;
}
-- want --
CODE_ERROR
`)
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	if result.Exit.Kind == interp.ExitCodeError && result.Exit.Code != 7 {
		t.Fatalf("expected user exit code 7, got %d", result.Exit.Code)
	}
}

// Two files importing each other is fine as long as the cross-file
// uses only need the other type's name (pointer members), not its
// layout.
func TestMutualImportByReference(t *testing.T) {
	result, err := runFixture(t, `
-- main.upp --
import "other.upp"

Node :: struct {
	next: *Leaf
}

main :: fn() {
}
-- other.upp --
import "main.upp"

Leaf :: struct {
	owner: *Node
}
-- want --
SUCCESS
`)
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	if !result.Diags.Empty() {
		t.Fatalf("expected no diagnostics, got %v", result.Diags.All())
	}
}

// Replacing the pointers with by-value members makes each struct's
// layout depend on the other's, which must be reported as a
// dependency cycle.
func TestMutualImportByValueCycle(t *testing.T) {
	result, err := runFixture(t, `
-- main.upp --
import "other.upp"

Node :: struct {
	next: Leaf
}

main :: fn() {
}
-- other.upp --
import "main.upp"

Leaf :: struct {
	owner: Node
}
-- want --
COMPILATION_FAILED
`)
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	found := false
	for _, d := range result.Diags.All() {
		if d.Kind == diag.DependencyCycle {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a dependency-cycle diagnostic, got %v", result.Diags.All())
	}
}

func TestMissingImportIsDiagnosed(t *testing.T) {
	result, err := runFixture(t, `
-- main.upp --
import "nowhere.upp"

main :: fn() {
}
-- want --
COMPILATION_FAILED
`)
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	if result.Diags.Empty() {
		t.Fatalf("expected a diagnostic for the missing import")
	}
}

// A project import resolves through Options.Projects; its optional
// @version constraint is a semver floor on the project's declared
// version.
func TestProjectImportVersioning(t *testing.T) {
	dir := t.TempDir()
	util := filepath.Join(dir, "util.upp")
	if err := os.WriteFile(util, []byte("answer :: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mainPath := filepath.Join(dir, "main.upp")
	src := "import project util@v2\n\nmain :: fn() {\n\tassert(answer == 42);\n}\n"
	if err := os.WriteFile(mainPath, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	run := func(version string) Result {
		t.Helper()
		result, err := Run(Options{
			SourcePath: mainPath,
			Projects:   map[string]Project{"util": {Path: util, Version: version}},
		})
		if err != nil {
			t.Fatalf("unexpected driver error: %v", err)
		}
		return result
	}

	if result := run("v1"); result.Exit.Kind != interp.ExitCompilationFailed {
		t.Fatalf("v1 project should not satisfy @v2, got %v", result.Exit.Kind)
	}
	if result := run("v3"); result.Exit.Kind != interp.ExitSuccess {
		t.Fatalf("v3 project should satisfy @v2, got %v (diags %v)",
			result.Exit.Kind, result.Diags.All())
	}
}

func TestCheckOnlySkipsExecution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.upp")
	src := "main :: fn() {\n\tassert(false);\n}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	result, err := Run(Options{SourcePath: path, CheckOnly: true})
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	if result.Exit.Kind != interp.ExitSuccess {
		t.Fatalf("check-only run should not execute the failing assert, got %v", result.Exit.Kind)
	}
}

func TestPolymorphicIdentityEndToEnd(t *testing.T) {
	runFixture(t, `
-- main.upp --
id :: fn($T: Type, x: T) -> T { return x; }

main :: fn() {
	assert(id(i32, 5) == 5);
}
-- want --
SUCCESS
`)
}

// Two defers fire in reverse registration order after the body's own
// output.
func TestDeferRunsLIFO(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.upp")
	src := "main :: fn() {\n\tdefer print_i32(1);\n\tdefer print_i32(2);\n\tprint_i32(3);\n}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	result, err := Run(Options{SourcePath: path, Stdout: &out})
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	if result.Exit.Kind != interp.ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v (diags %v)", result.Exit.Kind, result.Diags.All())
	}
	if got := out.String(); got != "321" {
		t.Fatalf("expected defers to fire LIFO producing %q, got %q", "321", got)
	}
}

// A bake block's value is computed at compile time; a persistent cache
// path makes a second compile of the same source reuse the stored
// bytes instead of re-executing the block.
func TestBakeValueReusedAcrossCompiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.upp")
	src := "answer :: bake { return 6 * 7; }\n\nmain :: fn() {\n\tassert(answer == 42);\n}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cachePath := filepath.Join(dir, "bake.db")
	for i := 0; i < 2; i++ {
		result, err := Run(Options{SourcePath: path, BakeCachePath: cachePath})
		if err != nil {
			t.Fatalf("compile %d: unexpected driver error: %v", i, err)
		}
		if result.Exit.Kind != interp.ExitSuccess {
			t.Fatalf("compile %d: expected SUCCESS, got %v (diags %v)",
				i, result.Exit.Kind, result.Diags.All())
		}
	}
}

func TestEnumSwitchEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.upp")
	src := `Color :: enum { Red, Green, Blue }

main :: fn() {
	c: Color = Color.Green;
	switch c {
	case Color.Red => { print_i32(0); }
	case Color.Green => { print_i32(1); }
	default => { print_i32(9); }
	}
}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	result, err := Run(Options{SourcePath: path, Stdout: &out})
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	if result.Exit.Kind != interp.ExitSuccess {
		t.Fatalf("expected SUCCESS, got %v (diags %v)", result.Exit.Kind, result.Diags.All())
	}
	if got := out.String(); got != "1" {
		t.Fatalf("expected the Green case to print 1, got %q", got)
	}
}

// A switch with no default and no case covering the subject's value
// traps instead of falling through.
func TestEnumSwitchMissingCaseTraps(t *testing.T) {
	runFixture(t, `
-- main.upp --
Color :: enum { Red, Green, Blue }

main :: fn() {
	c: Color = Color.Blue;
	switch c {
	case Color.Red => { print_i32(0); }
	}
}
-- want --
EXECUTION_ERROR
`)
}
