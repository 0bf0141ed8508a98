package parser

import (
	"upp/internal/ast"
	"upp/internal/lexer"
)

func (p *Parser) parseCodeBlock() *ast.CodeBlock {
	start := p.expect(lexer.LBrace, "'{'")
	b := &ast.CodeBlock{}
	for !p.check(lexer.RBrace) && !p.atEnd() {
		s := p.parseStmt()
		if s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	p.expect(lexer.RBrace, "'}'")
	b.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	for _, s := range b.Stmts {
		adopt(s, b)
	}
	return b
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.peekKind() {
	case lexer.KwLet, lexer.KwVar, lexer.KwConst:
		return p.parseVarDecl()
	case lexer.LBrace:
		return p.parseCodeBlock()
	case lexer.KwIf:
		return p.parseIfStmt()
	case lexer.KwWhile:
		return p.parseWhileStmt("")
	case lexer.KwFor:
		return p.parseForStmt("")
	case lexer.KwForeach:
		return p.parseForeachStmt("")
	case lexer.KwSwitch:
		return p.parseSwitchStmt()
	case lexer.KwBreak:
		return p.parseBreakStmt()
	case lexer.KwContinue:
		return p.parseContinueStmt()
	case lexer.KwReturn:
		return p.parseReturnStmt()
	case lexer.KwDefer:
		return p.parseDeferStmt()
	case lexer.KwDeferRestore:
		return p.parseDeferRestoreStmt()
	case lexer.KwDelete:
		return p.parseDeleteStmt()
	case lexer.KwBake:
		return p.ParseBakeStatement()
	case lexer.Ident:
		if p.toks[p.pos+1].Kind == lexer.Colon {
			// `name:` starts either a labeled loop (`outer: while`) or
			// a bare typed declaration (`arr: [3]i32`).
			switch p.toks[p.pos+2].Kind {
			case lexer.KwWhile, lexer.KwFor, lexer.KwForeach:
				return p.parseLabeledLoop()
			}
			return p.parseTypedDecl()
		}
		return p.parseExprOrAssignStmt()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseLabeledLoop() ast.Stmt {
	label := p.advance().Text
	p.advance() // ':'
	switch p.peekKind() {
	case lexer.KwWhile:
		return p.parseWhileStmt(label)
	case lexer.KwFor:
		return p.parseForStmt(label)
	case lexer.KwForeach:
		return p.parseForeachStmt(label)
	default:
		p.errorf("expected a loop after label %q", label)
		return p.errorStmt()
	}
}

// parseTypedDecl parses the `name: Type [= expr];` declaration form,
// a runtime variable declared without let/var.
func (p *Parser) parseTypedDecl() ast.Stmt {
	start := p.advance() // name
	p.advance()          // ':'
	v := &ast.VarDeclStmt{Name: start.Text}
	v.Type = p.parseTypeExpr()
	if p.match(lexer.Assign) {
		v.Value = p.parseExpr(0)
	}
	p.match(lexer.Semicolon)
	v.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(v.Type, v)
	if v.Value != nil {
		adopt(v.Value, v)
	}
	return v
}

func (p *Parser) errorStmt() ast.Stmt {
	tok := p.cur()
	e := &ast.ErrorStmt{Message: "malformed statement"}
	e.Base = p.arena.Alloc(nil, p.rangeAt(tok))
	p.synchronize()
	return e
}

func (p *Parser) parseVarDecl() ast.Stmt {
	start := p.advance() // let/var/const
	isConst := start.Kind == lexer.KwConst
	name := p.expect(lexer.Ident, "variable name").Text
	v := &ast.VarDeclStmt{Name: name, Const: isConst}
	if p.match(lexer.Colon) {
		v.Type = p.parseTypeExpr()
	}
	if p.match(lexer.Assign) {
		v.Value = p.parseExpr(0)
	}
	p.match(lexer.Semicolon)
	v.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	if v.Type != nil {
		adopt(v.Type, v)
	}
	if v.Value != nil {
		adopt(v.Value, v)
	}
	return v
}

func (p *Parser) parseExprOrAssignStmt() ast.Stmt {
	start := p.cur()
	expr := p.parseExpr(0)
	if p.match(lexer.Assign) {
		value := p.parseExpr(0)
		p.match(lexer.Semicolon)
		a := &ast.AssignStmt{Target: expr, Value: value}
		a.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(expr, a)
		adopt(value, a)
		return a
	}
	p.match(lexer.Semicolon)
	s := &ast.ExprStmt{Expr: expr}
	s.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(expr, s)
	return s
}

func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.advance() // 'if'
	cond := p.parseExpr(0)
	then := p.parseCodeBlock()
	s := &ast.IfStmt{Cond: cond, Then: then}
	if p.match(lexer.KwElse) {
		if p.check(lexer.KwIf) {
			s.Else = p.parseIfStmt()
		} else {
			s.Else = p.parseCodeBlock()
		}
	}
	s.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(cond, s)
	adopt(then, s)
	if s.Else != nil {
		adopt(s.Else, s)
	}
	return s
}

func (p *Parser) parseWhileStmt(label string) ast.Stmt {
	start := p.advance() // 'while'
	cond := p.parseExpr(0)
	body := p.parseCodeBlock()
	s := &ast.WhileStmt{Cond: cond, Body: body, Label: label}
	s.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(cond, s)
	adopt(body, s)
	return s
}

func (p *Parser) parseForStmt(label string) ast.Stmt {
	start := p.advance() // 'for'
	f := &ast.ForStmt{Label: label}
	if !p.check(lexer.Semicolon) {
		f.Init = p.parseSimpleStmtNoSemi()
	}
	p.expect(lexer.Semicolon, "';'")
	if !p.check(lexer.Semicolon) {
		f.Cond = p.parseExpr(0)
	}
	p.expect(lexer.Semicolon, "';'")
	if !p.check(lexer.LBrace) {
		f.Incr = p.parseSimpleStmtNoSemi()
	}
	f.Body = p.parseCodeBlock()
	f.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	if f.Init != nil {
		adopt(f.Init, f)
	}
	if f.Cond != nil {
		adopt(f.Cond, f)
	}
	if f.Incr != nil {
		adopt(f.Incr, f)
	}
	adopt(f.Body, f)
	return f
}

// parseSimpleStmtNoSemi parses a var-decl or assignment without
// consuming a trailing semicolon, for use inside a `for (...)` header.
func (p *Parser) parseSimpleStmtNoSemi() ast.Stmt {
	if p.check(lexer.KwLet) || p.check(lexer.KwVar) {
		start := p.advance()
		name := p.expect(lexer.Ident, "variable name").Text
		v := &ast.VarDeclStmt{Name: name, Const: false}
		if p.match(lexer.Colon) {
			v.Type = p.parseTypeExpr()
		}
		if p.match(lexer.Assign) {
			v.Value = p.parseExpr(0)
		}
		v.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		if v.Type != nil {
			adopt(v.Type, v)
		}
		if v.Value != nil {
			adopt(v.Value, v)
		}
		return v
	}
	start := p.cur()
	expr := p.parseExpr(0)
	if p.match(lexer.Assign) {
		value := p.parseExpr(0)
		a := &ast.AssignStmt{Target: expr, Value: value}
		a.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(expr, a)
		adopt(value, a)
		return a
	}
	s := &ast.ExprStmt{Expr: expr}
	s.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(expr, s)
	return s
}

func (p *Parser) parseForeachStmt(label string) ast.Stmt {
	start := p.advance() // 'foreach'
	varName := p.expect(lexer.Ident, "loop variable").Text
	indexVar := ""
	if p.match(lexer.Comma) {
		indexVar = varName
		varName = p.expect(lexer.Ident, "index variable").Text
	}
	p.expect(lexer.KwIn, "'in'")
	iterable := p.parseExpr(0)
	body := p.parseCodeBlock()
	f := &ast.ForeachStmt{VarName: varName, IndexVar: indexVar, Iterable: iterable, Body: body, Label: label}
	f.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(iterable, f)
	adopt(body, f)
	return f
}

func (p *Parser) parseSwitchStmt() ast.Stmt {
	start := p.advance() // 'switch'
	subject := p.parseExpr(0)
	p.expect(lexer.LBrace, "'{'")
	s := &ast.SwitchStmt{Subject: subject}
	for !p.check(lexer.RBrace) && !p.atEnd() {
		cstart := p.cur()
		c := &ast.SwitchCase{}
		if p.match(lexer.KwDefault) {
			c.Default = true
		} else {
			p.expect(lexer.KwCase, "'case'")
			for {
				c.Values = append(c.Values, p.parseExpr(0))
				if !p.match(lexer.Comma) {
					break
				}
			}
		}
		p.expect(lexer.FatArrow, "'=>'")
		c.Body = p.parseCodeBlock()
		c.Base = p.arena.Alloc(nil, p.rangeFrom(cstart))
		for _, v := range c.Values {
			adopt(v, c)
		}
		adopt(c.Body, c)
		s.Cases = append(s.Cases, c)
	}
	p.expect(lexer.RBrace, "'}'")
	s.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(subject, s)
	for _, c := range s.Cases {
		adopt(c, s)
	}
	return s
}

func (p *Parser) parseBreakStmt() ast.Stmt {
	start := p.advance()
	label := ""
	if p.check(lexer.Ident) {
		label = p.advance().Text
	}
	p.match(lexer.Semicolon)
	s := &ast.BreakStmt{Label: label}
	s.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	return s
}

func (p *Parser) parseContinueStmt() ast.Stmt {
	start := p.advance()
	label := ""
	if p.check(lexer.Ident) {
		label = p.advance().Text
	}
	p.match(lexer.Semicolon)
	s := &ast.ContinueStmt{Label: label}
	s.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	return s
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	start := p.advance()
	r := &ast.ReturnStmt{}
	if !p.check(lexer.Semicolon) && !p.check(lexer.RBrace) {
		r.Value = p.parseExpr(0)
	}
	p.match(lexer.Semicolon)
	r.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	if r.Value != nil {
		adopt(r.Value, r)
	}
	return r
}

func (p *Parser) parseDeferStmt() ast.Stmt {
	start := p.advance()
	call := p.parseExpr(0)
	p.match(lexer.Semicolon)
	d := &ast.DeferStmt{Call: call}
	d.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(call, d)
	return d
}

func (p *Parser) parseDeferRestoreStmt() ast.Stmt {
	start := p.advance()
	target := p.parseExpr(precUnary)
	p.expect(lexer.Assign, "'='")
	value := p.parseExpr(0)
	p.match(lexer.Semicolon)
	d := &ast.DeferRestoreStmt{Target: target, Value: value}
	d.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(target, d)
	adopt(value, d)
	return d
}

func (p *Parser) parseDeleteStmt() ast.Stmt {
	start := p.advance()
	val := p.parseExpr(0)
	p.match(lexer.Semicolon)
	d := &ast.DeleteStmt{Value: val}
	d.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(val, d)
	return d
}
