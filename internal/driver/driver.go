// Package driver wires the whole compiler pipeline together: lexer ->
// parser -> dependency analyser -> scheduler -> semantic analyser ->
// IR generator -> bytecode generator -> interpreter. cmd/uppc is the
// only caller; everything here is exported so end-to-end tests can
// also drive it directly.
package driver

import (
	"database/sql"
	"io"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"upp/internal/ast"
	"upp/internal/bake"
	"upp/internal/bcgen"
	"upp/internal/bytecode"
	"upp/internal/constpool"
	"upp/internal/depanalysis"
	"upp/internal/diag"
	"upp/internal/interp"
	"upp/internal/irgen"
	"upp/internal/lexer"
	"upp/internal/scheduler"
	"upp/internal/sema"
	"upp/internal/types"
)

// Options configures one compile-and-run.
type Options struct {
	// SourcePath is the root .upp file to compile; every file it
	// transitively imports becomes another compilation unit of the
	// same analysis data.
	SourcePath string
	// EntryFunction is the compiled function Run executes; defaults
	// to "main".
	EntryFunction string
	// BakeCachePath, if non-empty, backs bake-block memoization with a
	// persistent sqlite database at this path instead of re-executing
	// every bake block on every compile.
	BakeCachePath string
	// Projects names the compilation roots `import project <name>`
	// may refer to.
	Projects map[string]Project
	// CheckOnly stops after code generation without executing.
	CheckOnly bool
	// Verbose emits phase-transition status lines through the standard
	// log package. User diagnostics never go through this path.
	Verbose bool

	Stdout StdoutWriter
	Stdin  io.Reader
}

// StdoutWriter is the subset of *bufio.Writer the interpreter's
// print_* intrinsics need; Run wraps an io.Writer in one if the
// caller didn't already supply one.
type StdoutWriter interface {
	WriteString(string) (int, error)
}

// Result is the outcome of one compile-and-run: the diagnostics
// accumulated during compilation (populated even on success, e.g.
// warnings; empty in the current diagnostic taxonomy, but the field
// stays meaningful once any are added), and the interpreter's Exit if
// execution actually happened.
type Result struct {
	Diags *diag.List
	Exit  interp.Exit
}

// Run compiles opts.SourcePath and, if compilation produced no
// diagnostics, executes opts.EntryFunction. It returns a Result whose
// Exit.Kind is ExitCompilationFailed (with Diags non-empty) rather
// than an error when the source itself is invalid; only a driver-
// internal failure (file I/O, an irgen/bcgen bug surfacing as an
// error return) is reported as err.
func Run(opts Options) (Result, error) {
	diags := &diag.List{}
	l := newLoader(diags, opts.Projects)
	if err := l.load(opts.SourcePath, nil); err != nil {
		return Result{}, err
	}
	if !diags.Empty() {
		return Result{Diags: diags, Exit: interp.Exit{Kind: interp.ExitCompilationFailed}}, nil
	}

	depData := depanalysis.NewData(nil)
	for _, mod := range l.order {
		unit := depData.AddUnit(mod)
		if opts.Verbose {
			log.Printf("unit %s: %s", unit.ID, mod.Path)
		}
	}
	if opts.Verbose {
		log.Printf("parsed %d units, %d analysis items", len(depData.Units), len(depData.Items))
	}

	reg := types.NewRegistry()
	consts := constpool.New()
	semaData := sema.NewData(reg, consts, diags)

	var cacheDB *sql.DB
	if opts.BakeCachePath != "" {
		db, err := sql.Open("sqlite", opts.BakeCachePath)
		if err != nil {
			return Result{}, errors.Wrap(err, "driver: opening bake cache")
		}
		cacheDB = db
		defer cacheDB.Close()
	}
	bakeRunner, err := bake.NewRunner(semaData, cacheDB)
	if err != nil {
		return Result{}, errors.Wrap(err, "driver: bake cache")
	}
	semaData.SetBakeRunner(bakeRunner)

	sched := scheduler.New(sema.NewJob(semaData), diags)
	sched.Run(depData.Items)
	if opts.Verbose {
		log.Printf("analysis done, %d diagnostics", diags.Len())
	}

	if !diags.Empty() {
		return Result{Diags: diags, Exit: interp.Exit{Kind: interp.ExitCompilationFailed}}, nil
	}

	irProg, err := irgen.Generate(depData.Items, semaData)
	if err != nil {
		return Result{}, errors.Wrap(err, "driver: ir generation")
	}

	bcProg, err := bcgen.Generate(irProg, reg)
	if err != nil {
		return Result{}, errors.Wrap(err, "driver: bytecode generation")
	}
	if opts.CheckOnly {
		return Result{Diags: diags, Exit: interp.Exit{Kind: interp.ExitSuccess}}, nil
	}

	entry := opts.EntryFunction
	if entry == "" {
		entry = "main"
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = stdoutWriter{os.Stdout}
	}
	var stdin interp.LineReader
	if opts.Stdin != nil {
		stdin = newBufioReader(opts.Stdin)
	}

	exit, err := runProgram(bcProg, stdout, stdin, entry)
	if err != nil {
		return Result{}, errors.Wrap(err, "driver: execution")
	}
	return Result{Diags: diags, Exit: exit}, nil
}

func runProgram(bc *bytecode.Program, stdout interp.StringWriter, stdin interp.LineReader, entry string) (interp.Exit, error) {
	m := interp.NewMachine(bc, stdout, stdin)
	return m.RunFunction(entry)
}

func tokenRange(t lexer.Token) ast.Range {
	end := t.Span.Start
	end.Offset += t.Span.Length
	end.Column += t.Span.Length
	return ast.Range{Start: t.Span.Start, End: end}
}

// lexErrorKind classifies a lexer error message into the matching
// diag.Kind. The lexer itself only ever carries a human message, so
// this is a thin, string-matched reverse mapping back onto the
// taxonomy's lex-error variants.
func lexErrorKind(msg string) diag.Kind {
	switch {
	case strings.Contains(msg, "unterminated string"):
		return diag.UnterminatedString
	case strings.Contains(msg, "unterminated character"):
		return diag.UnterminatedChar
	case strings.Contains(msg, "unterminated block comment"):
		return diag.UnterminatedComment
	case strings.Contains(msg, "malformed number"):
		return diag.MalformedNumber
	default:
		return diag.IllegalCharacter
	}
}
