package driver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/mod/semver"

	"upp/internal/ast"
	"upp/internal/diag"
	"upp/internal/ident"
	"upp/internal/lexer"
	"upp/internal/parser"
)

// Project describes one named compilation root available to
// `import project <name>`.
type Project struct {
	// Path is the project's root .upp file.
	Path string
	// Version is the project's declared version ("v1", "v1.2.0", with
	// or without the leading v); empty if the project declares none.
	Version string
}

// loader parses a root source file and every file it transitively
// imports, producing one ast.Module per distinct file. File import
// paths resolve relative to the importing file; a file already loaded
// is not parsed again, so two files importing each other is legal at
// this level; whether the uses between them are legal is the
// scheduler's dependency-cycle check, not the loader's.
type loader struct {
	pool     *ident.Pool
	diags    *diag.List
	projects map[string]Project

	loaded map[string]*ast.Module // keyed by cleaned absolute path
	order  []*ast.Module          // load order, root first
}

func newLoader(diags *diag.List, projects map[string]Project) *loader {
	return &loader{
		pool:     ident.New(),
		diags:    diags,
		projects: projects,
		loaded:   map[string]*ast.Module{},
	}
}

// load parses the file at path (if not already loaded) and recurses
// into its imports. Only a root-file read failure is returned as an
// error; a missing imported file is a user diagnostic pointing at the
// import statement.
func (l *loader) load(path string, importedAt *ast.Import) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "driver: resolving %s", path)
	}
	if _, ok := l.loaded[abs]; ok {
		return nil
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		if importedAt == nil {
			return errors.Wrapf(err, "driver: reading %s", path)
		}
		l.diags.Add(diag.UnresolvedSymbol, importedAt.NodeRange(),
			"cannot import %q: %v", importedAt.Path, err)
		return nil
	}

	mod := parseUnit(abs, string(src), l.pool, l.diags)
	l.loaded[abs] = mod
	l.order = append(l.order, mod)

	for _, imp := range mod.Imports {
		switch imp.Kind {
		case ast.ImportFile:
			target := filepath.Join(filepath.Dir(abs), imp.Path)
			if err := l.load(target, imp); err != nil {
				return err
			}
		case ast.ImportProject:
			if err := l.loadProject(imp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loader) loadProject(imp *ast.Import) error {
	proj, ok := l.projects[imp.Path]
	if !ok {
		l.diags.Add(diag.UnresolvedSymbol, imp.NodeRange(),
			"unknown project %q", imp.Path)
		return nil
	}
	if imp.Version != "" {
		want, have := canonVersion(imp.Version), canonVersion(proj.Version)
		switch {
		case !semver.IsValid(want):
			l.diags.Add(diag.UnresolvedSymbol, imp.NodeRange(),
				"invalid version constraint @%s on project %s", imp.Version, imp.Path)
			return nil
		case !semver.IsValid(have) || semver.Compare(have, want) < 0:
			l.diags.Add(diag.UnresolvedSymbol, imp.NodeRange(),
				"project %s is version %q, which does not satisfy @%s",
				imp.Path, proj.Version, imp.Version)
			return nil
		}
	}
	return l.load(proj.Path, imp)
}

// canonVersion accepts both "1.2.0" and "v1.2.0" spellings, since
// x/mod/semver only recognises the v-prefixed form.
func canonVersion(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// parseUnit lexes and parses one compilation unit, accumulating lex
// and parse errors into diags. The returned tree is always complete;
// the parser recovers and attaches error nodes rather than stopping.
func parseUnit(path, src string, pool *ident.Pool, diags *diag.List) *ast.Module {
	lx := lexer.New(path, src, pool)
	toks := lx.ScanAll()
	for _, t := range toks {
		if t.Kind == lexer.Error {
			diags.Add(lexErrorKind(t.ErrorMessage), tokenRange(t), "%s", t.ErrorMessage)
		}
	}

	arena := ast.NewArena()
	p := parser.New(path, toks, arena)
	mod := p.ParseModule(path)
	for _, e := range p.Errors {
		diags.Add(diag.UnexpectedToken, e.Range, "%s", e.Message)
	}
	return mod
}
