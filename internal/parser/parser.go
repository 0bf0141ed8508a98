// Package parser implements Upp's recursive-descent parser with
// Pratt-style expression precedence. It never panics:
// on a malformed construct it skips to a resynchronisation point and
// emits an error-expression/error-statement node so later phases can
// still walk a complete tree.
package parser

import (
	"fmt"

	"upp/internal/ast"
	"upp/internal/lexer"
)

// Error is one parser diagnostic: a human message plus the token range
// it applies to.
type Error struct {
	Message string
	Range   ast.Range
}

// Parser consumes a token stream and produces an AST plus a list of
// parser errors. One Parser per compilation unit.
type Parser struct {
	file   string
	toks   []lexer.Token
	pos    int
	arena  *ast.Arena
	Errors []Error
}

// New creates a parser over a fully-scanned token stream.
func New(file string, toks []lexer.Token, arena *ast.Arena) *Parser {
	return &Parser{file: file, toks: toks, arena: arena}
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) atEnd() bool       { return p.cur().Kind == lexer.EOF }
func (p *Parser) peekKind() lexer.Kind { return p.cur().Kind }

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) check(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) match(k lexer.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

// expect consumes a token of kind k or records an error and returns
// the current token anyway (error recovery: never panics).
func (p *Parser) expect(k lexer.Kind, what string) lexer.Token {
	if p.check(k) {
		return p.advance()
	}
	p.errorf("expected %s, found %q", what, p.cur().Text)
	return p.cur()
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.Errors = append(p.Errors, Error{
		Message: fmt.Sprintf(format, args...),
		Range:   p.rangeAt(p.cur()),
	})
}

func (p *Parser) rangeAt(t lexer.Token) ast.Range {
	end := t.Span.Start
	end.Offset += t.Span.Length
	end.Column += t.Span.Length
	return ast.Range{Start: t.Span.Start, End: end}
}

func (p *Parser) rangeFrom(start lexer.Token) ast.Range {
	end := p.toks[p.pos-1]
	r := p.rangeAt(end)
	r.Start = start.Span.Start
	return r
}

// synchronize skips tokens until the next statement-starting keyword
// or a closing brace, so parsing can resume after a malformed
// construct.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		switch p.peekKind() {
		case lexer.Semicolon:
			p.advance()
			return
		case lexer.RBrace, lexer.KwFn, lexer.KwLet, lexer.KwVar, lexer.KwConst,
			lexer.KwIf, lexer.KwWhile, lexer.KwFor, lexer.KwForeach, lexer.KwReturn,
			lexer.KwSwitch, lexer.KwBreak, lexer.KwContinue, lexer.KwImport,
			lexer.KwStruct, lexer.KwDefer, lexer.KwDelete:
			return
		}
		p.advance()
	}
}

// ParseModule parses an entire compilation unit.
func (p *Parser) ParseModule(path string) *ast.Module {
	start := p.cur()
	m := &ast.Module{Path: path}
	for !p.atEnd() {
		if p.check(lexer.KwImport) {
			m.Imports = append(m.Imports, p.parseImport())
			continue
		}
		d := p.parseTopLevelDef()
		if d != nil {
			m.Defs = append(m.Defs, d)
		}
	}
	m.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	for _, c := range m.Children() {
		adopt(c, m)
	}
	return m
}

func (p *Parser) parseImport() *ast.Import {
	start := p.advance() // 'import'
	imp := &ast.Import{}
	if p.match(lexer.KwProject) {
		imp.Kind = ast.ImportProject
		imp.Path = p.expect(lexer.Ident, "project name").Text
		// optional "@version" constraint
		if p.match(lexer.At) {
			imp.Version = p.expect(lexer.Ident, "version").Text
		}
	} else {
		imp.Kind = ast.ImportFile
		tok := p.expect(lexer.String, "import path")
		imp.Path = tok.StringValue
	}
	imp.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	return imp
}

func (p *Parser) parseTopLevelDef() *ast.Definition {
	if !p.check(lexer.Ident) {
		p.errorf("expected a definition, found %q", p.cur().Text)
		p.synchronize()
		return nil
	}
	start := p.cur()
	name := p.advance().Text
	p.expect(lexer.DoubleColon, "'::'")

	d := &ast.Definition{Name: name}
	switch {
	case p.check(lexer.KwFn):
		p.parseFunctionDef(d)
	case p.check(lexer.KwStruct):
		p.parseStructDef(d)
	case p.check(lexer.KwEnum):
		p.parseEnumDef(d)
	case p.check(lexer.KwBake):
		p.parseBakeDef(d)
	default:
		d.Kind = ast.DefConst
		d.ConstValue = p.parseExpr(0)
	}
	d.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	for _, c := range d.Children() {
		adopt(c, d)
	}
	return d
}

func adopt(n ast.Node, parent ast.Node) {
	if setter, ok := n.(interface{ SetParent(ast.Node) }); ok {
		setter.SetParent(parent)
	}
}

func (p *Parser) parseFunctionDef(d *ast.Definition) {
	d.Kind = ast.DefFunction
	p.advance() // 'fn'
	p.expect(lexer.LParen, "'('")
	for !p.check(lexer.RParen) && !p.atEnd() {
		param := p.parseParam()
		d.Params = append(d.Params, param)
		if param.PatternVar {
			d.PolyVars = append(d.PolyVars, param.Name)
		}
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RParen, "')'")
	if p.match(lexer.Arrow) {
		d.RetType = p.parseTypeExpr()
	}
	d.Body = p.parseCodeBlock()
}

func (p *Parser) parseParam() *ast.Param {
	start := p.cur()
	param := &ast.Param{Required: true}
	if p.match(lexer.Dollar) {
		param.PatternVar = true
		param.Comptime = true
		param.Name = p.expect(lexer.Ident, "pattern variable name").Text
		param.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return param
	}
	comptimeMarker := false
	if p.check(lexer.Ident) && p.cur().Text == "comptime" {
		p.advance()
		comptimeMarker = true
	}
	param.Name = p.expect(lexer.Ident, "parameter name").Text
	p.expect(lexer.Colon, "':'")
	param.Type = p.parseTypeExpr()
	param.Comptime = comptimeMarker
	if p.match(lexer.Assign) {
		param.Default = p.parseExpr(0)
		param.Required = false
	}
	param.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(param.Type, param)
	if param.Default != nil {
		adopt(param.Default, param)
	}
	return param
}

func (p *Parser) parseStructDef(d *ast.Definition) {
	d.Kind = ast.DefStruct
	p.advance() // 'struct'
	p.expect(lexer.LBrace, "'{'")
	for !p.check(lexer.RBrace) && !p.atEnd() {
		if p.check(lexer.Ident) && p.cur().Text == "union" {
			p.advance()
			p.parseUnionBody(d)
			continue
		}
		f := p.parseStructField()
		d.Fields = append(d.Fields, f)
		p.match(lexer.Comma)
	}
	p.expect(lexer.RBrace, "'}'")
}

func (p *Parser) parseStructField() *ast.StructField {
	start := p.cur()
	name := p.expect(lexer.Ident, "field name").Text
	p.expect(lexer.Colon, "':'")
	ty := p.parseTypeExpr()
	f := &ast.StructField{Name: name, Type: ty}
	f.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(ty, f)
	return f
}

func (p *Parser) parseUnionBody(d *ast.Definition) {
	p.expect(lexer.LBrace, "'{'")
	for !p.check(lexer.RBrace) && !p.atEnd() {
		start := p.cur()
		tag := p.expect(lexer.Ident, "variant tag").Text
		v := &ast.StructVariant{Tag: tag}
		p.expect(lexer.LBrace, "'{'")
		for !p.check(lexer.RBrace) && !p.atEnd() {
			v.Fields = append(v.Fields, p.parseStructField())
			p.match(lexer.Comma)
		}
		p.expect(lexer.RBrace, "'}'")
		v.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		for _, f := range v.Fields {
			adopt(f, v)
		}
		d.Subtypes = append(d.Subtypes, v)
		p.match(lexer.Comma)
	}
	p.expect(lexer.RBrace, "'}'")
}

func (p *Parser) parseEnumDef(d *ast.Definition) {
	d.Kind = ast.DefEnum
	p.advance() // 'enum'
	p.expect(lexer.LBrace, "'{'")
	for !p.check(lexer.RBrace) && !p.atEnd() {
		d.EnumValues = append(d.EnumValues, p.expect(lexer.Ident, "enum value name").Text)
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RBrace, "'}'")
}

func (p *Parser) parseBakeDef(d *ast.Definition) {
	d.Kind = ast.DefBake
	p.advance() // 'bake'
	d.BakeBody = p.parseCodeBlock()
}

// ParseBakeStatement parses a standalone `bake { ... }` statement form
// (one that defines no symbol, just runs at compile time for effect).
func (p *Parser) ParseBakeStatement() *ast.Definition {
	start := p.cur()
	d := &ast.Definition{Kind: ast.DefBake}
	p.parseBakeDef(d)
	d.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(d.BakeBody, d)
	return d
}

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	start := p.cur()
	switch {
	case p.match(lexer.Star):
		elem := p.parseTypeExpr()
		t := &ast.PointerTypeExpr{Elem: elem}
		t.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(elem, t)
		return t
	case p.match(lexer.Question):
		elem := p.parseTypeExpr()
		t := &ast.OptionalTypeExpr{Elem: elem}
		t.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(elem, t)
		return t
	case p.match(lexer.LBracket):
		var count ast.Expr
		if !p.check(lexer.RBracket) {
			count = p.parseExpr(0)
		}
		p.expect(lexer.RBracket, "']'")
		elem := p.parseTypeExpr()
		t := &ast.ArrayTypeExpr{Count: count, Elem: elem}
		t.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		if count != nil {
			adopt(count, t)
		}
		adopt(elem, t)
		return t
	case p.match(lexer.KwFn):
		p.expect(lexer.LParen, "'('")
		var params []ast.TypeExpr
		for !p.check(lexer.RParen) && !p.atEnd() {
			params = append(params, p.parseTypeExpr())
			if !p.match(lexer.Comma) {
				break
			}
		}
		p.expect(lexer.RParen, "')'")
		var ret ast.TypeExpr
		if p.match(lexer.Arrow) {
			ret = p.parseTypeExpr()
		}
		t := &ast.FunctionTypeExpr{Params: params, Return: ret}
		t.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		for _, pr := range params {
			adopt(pr, t)
		}
		if ret != nil {
			adopt(ret, t)
		}
		return t
	default:
		var segs []string
		segs = append(segs, p.expect(lexer.Ident, "type name").Text)
		for p.match(lexer.Dot) {
			segs = append(segs, p.expect(lexer.Ident, "type name").Text)
		}
		t := &ast.NamedTypeExpr{Path: segs}
		t.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return t
	}
}
