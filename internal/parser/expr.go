package parser

import (
	"upp/internal/ast"
	"upp/internal/lexer"
)

// precedence table for the Pratt parser.
type prec int

const (
	precNone prec = iota
	precAssign
	precOr
	precAnd
	precEquality
	precComparison
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdd
	precMul
	precUnary
	precCall
)

var binPrec = map[lexer.Kind]prec{
	lexer.OrOr:     precOr,
	lexer.AndAnd:   precAnd,
	lexer.Eq:       precEquality,
	lexer.Ne:       precEquality,
	lexer.Lt:       precComparison,
	lexer.Gt:       precComparison,
	lexer.Le:       precComparison,
	lexer.Ge:       precComparison,
	lexer.Pipe:     precBitOr,
	lexer.Caret:    precBitXor,
	lexer.Ampersand: precBitAnd,
	lexer.Plus:     precAdd,
	lexer.Minus:    precAdd,
	lexer.Star:     precMul,
	lexer.Slash:    precMul,
	lexer.Percent:  precMul,
}

var binOpOf = map[lexer.Kind]ast.BinaryOp{
	lexer.Plus: ast.OpAdd, lexer.Minus: ast.OpSub, lexer.Star: ast.OpMul,
	lexer.Slash: ast.OpDiv, lexer.Percent: ast.OpMod,
	lexer.Eq: ast.OpEq, lexer.Ne: ast.OpNe, lexer.Lt: ast.OpLt, lexer.Gt: ast.OpGt,
	lexer.Le: ast.OpLe, lexer.Ge: ast.OpGe,
	lexer.AndAnd: ast.OpAnd, lexer.OrOr: ast.OpOr,
	lexer.Ampersand: ast.OpBitAnd, lexer.Pipe: ast.OpBitOr, lexer.Caret: ast.OpBitXor,
}

// parseExpr parses an expression with precedence >= min, recovering
// from malformed input by returning an *ast.ErrorExpr rather than
// panicking.
func (p *Parser) parseExpr(min prec) ast.Expr {
	left := p.parseUnary()
	for {
		opKind := p.peekKind()
		pr, ok := binPrec[opKind]
		if !ok || pr < min {
			break
		}
		p.advance()
		next := pr + 1 // left-associative
		right := p.parseExpr(next)
		bin := &ast.BinaryExpr{Op: binOpOf[opKind], Left: left, Right: right}
		bin.Base = p.arena.Alloc(nil, p.spanFromNode(left, right))
		adopt(left, bin)
		adopt(right, bin)
		left = bin
	}
	return left
}

func (p *Parser) spanFromNode(first, last ast.Node) ast.Range {
	return ast.Range{Start: nodeStart(first), End: nodeEnd(last)}
}

func nodeStart(n ast.Node) lexer.Position { return n.NodeRange().Start }

func nodeEnd(n ast.Node) lexer.Position { return n.NodeRange().End }

func (p *Parser) parseUnary() ast.Expr {
	start := p.cur()
	switch p.peekKind() {
	case lexer.Bang:
		p.advance()
		operand := p.parseExpr(precUnary)
		u := &ast.UnaryExpr{Op: ast.OpNot, Operand: operand}
		u.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(operand, u)
		return u
	case lexer.Minus:
		p.advance()
		operand := p.parseExpr(precUnary)
		u := &ast.UnaryExpr{Op: ast.OpNeg, Operand: operand}
		u.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(operand, u)
		return u
	case lexer.Tilde:
		p.advance()
		operand := p.parseExpr(precUnary)
		u := &ast.UnaryExpr{Op: ast.OpBitNot, Operand: operand}
		u.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(operand, u)
		return u
	case lexer.Ampersand:
		p.advance()
		operand := p.parseExpr(precUnary)
		u := &ast.UnaryExpr{Op: ast.OpAddressOf, Operand: operand}
		u.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(operand, u)
		return u
	case lexer.Star:
		p.advance()
		operand := p.parseExpr(precUnary)
		u := &ast.UnaryExpr{Op: ast.OpDeref, Operand: operand}
		u.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		adopt(operand, u)
		return u
	case lexer.KwNew:
		return p.parseNew()
	case lexer.KwCast:
		return p.parseCast()
	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

func (p *Parser) parseNew() ast.Expr {
	start := p.advance() // 'new'
	ty := p.parseTypeExpr()
	n := &ast.NewExpr{Type: ty}
	if arr, ok := ty.(*ast.ArrayTypeExpr); ok && arr.Count != nil {
		n.Count = arr.Count
		n.Type = arr.Elem
	}
	n.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(n.Type, n)
	if n.Count != nil {
		adopt(n.Count, n)
	}
	return n
}

func (p *Parser) parseCast() ast.Expr {
	start := p.advance() // 'cast'
	p.expect(lexer.LParen, "'('")
	ty := p.parseTypeExpr()
	p.expect(lexer.RParen, "')'")
	val := p.parseExpr(precUnary)
	c := &ast.CastExpr{Target: ty, Value: val}
	c.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(ty, c)
	adopt(val, c)
	return c
}

func (p *Parser) parsePostfix(expr ast.Expr) ast.Expr {
	for {
		start := p.cur()
		switch p.peekKind() {
		case lexer.LParen:
			expr = p.finishCall(expr, start)
		case lexer.Dot:
			p.advance()
			name := p.expect(lexer.Ident, "member name").Text
			m := &ast.MemberExpr{Object: expr, Name: name}
			m.Base = p.arena.Alloc(nil, p.rangeFrom(start))
			adopt(expr, m)
			expr = m
		case lexer.LBracket:
			p.advance()
			idx := p.parseExpr(0)
			p.expect(lexer.RBracket, "']'")
			ix := &ast.IndexExpr{Object: expr, Index: idx}
			ix.Base = p.arena.Alloc(nil, p.rangeFrom(start))
			adopt(expr, ix)
			adopt(idx, ix)
			expr = ix
		case lexer.KwAs:
			p.advance()
			ty := p.parseTypeExpr()
			c := &ast.CastExpr{Target: ty, Value: expr}
			c.Base = p.arena.Alloc(nil, p.rangeFrom(start))
			adopt(expr, c)
			adopt(ty, c)
			expr = c
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr, start lexer.Token) ast.Expr {
	p.advance() // '('
	var args []ast.Arg
	for !p.check(lexer.RParen) && !p.atEnd() {
		if p.check(lexer.Ident) && p.toks[p.pos+1].Kind == lexer.Colon {
			name := p.advance().Text
			p.advance() // ':'
			args = append(args, ast.Arg{Name: name, Value: p.parseExpr(0)})
		} else {
			args = append(args, ast.Arg{Value: p.parseExpr(0)})
		}
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RParen, "')'")
	c := &ast.CallExpr{Callee: callee, Args: args}
	c.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(callee, c)
	for _, a := range args {
		adopt(a.Value, c)
	}
	return c
}

func (p *Parser) parsePrimary() ast.Expr {
	start := p.cur()
	switch p.peekKind() {
	case lexer.Int:
		p.advance()
		l := &ast.Literal{Kind: ast.LitInt, Int: start.IntValue, Suffix: start.IntSuffix}
		l.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return l
	case lexer.Float:
		p.advance()
		l := &ast.Literal{Kind: ast.LitFloat, Float: start.FloatValue, Suffix: start.IntSuffix}
		l.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return l
	case lexer.String:
		p.advance()
		l := &ast.Literal{Kind: ast.LitString, String: start.StringValue}
		l.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return l
	case lexer.Char:
		p.advance()
		l := &ast.Literal{Kind: ast.LitChar, Int: start.IntValue}
		l.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return l
	case lexer.KwTrue, lexer.KwFalse:
		p.advance()
		l := &ast.Literal{Kind: ast.LitBool, Bool: start.Kind == lexer.KwTrue}
		l.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return l
	case lexer.KwNull:
		p.advance()
		l := &ast.Literal{Kind: ast.LitNull}
		l.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return l
	case lexer.Ident:
		p.advance()
		segs := []string{start.Text}
		for p.check(lexer.Dot) && p.toks[p.pos+1].Kind == lexer.Ident {
			p.advance()
			segs = append(segs, p.advance().Text)
		}
		path := &ast.PathExpr{Segments: segs}
		path.Base = p.arena.Alloc(nil, p.rangeFrom(start))
		return path
	case lexer.LParen:
		p.advance()
		inner := p.parseExpr(0)
		p.expect(lexer.RParen, "')'")
		return inner
	case lexer.DotBracket:
		return p.parseArrayLiteral(start)
	case lexer.Dot:
		return p.parseStructLiteral(start, nil)
	case lexer.KwIf:
		return p.parseIfExpr()
	default:
		p.errorf("expected an expression, found %q", p.cur().Text)
		e := &ast.ErrorExpr{Message: "expected an expression"}
		e.Base = p.arena.Alloc(nil, p.rangeAt(p.cur()))
		if !p.atEnd() {
			p.advance()
		}
		return e
	}
}

func (p *Parser) parseArrayLiteral(start lexer.Token) ast.Expr {
	p.advance() // '.['
	a := &ast.ArrayLiteral{}
	for !p.check(lexer.RBracket) && !p.atEnd() {
		elem := p.parseExpr(0)
		a.Elements = append(a.Elements, elem)
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RBracket, "']'")
	a.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	for _, e := range a.Elements {
		adopt(e, a)
	}
	return a
}

func (p *Parser) parseStructLiteral(start lexer.Token, ty ast.TypeExpr) ast.Expr {
	p.advance() // '.'
	p.expect(lexer.LBrace, "'{'")
	s := &ast.StructLiteral{Type: ty}
	for !p.check(lexer.RBrace) && !p.atEnd() {
		name := p.expect(lexer.Ident, "field name").Text
		p.expect(lexer.Colon, "':'")
		val := p.parseExpr(0)
		s.Fields = append(s.Fields, ast.StructLiteralField{Name: name, Value: val})
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RBrace, "'}'")
	s.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	if ty != nil {
		adopt(ty, s)
	}
	for _, f := range s.Fields {
		adopt(f.Value, s)
	}
	return s
}

// parseIfExpr supports `if cond { a } else { b }` used as an
// expression (e.g. on the right of `::`); statement-position if is
// parsed by parseIfStmt in stmt.go and shares the condition/branch
// grammar.
func (p *Parser) parseIfExpr() ast.Expr {
	start := p.advance() // 'if'
	cond := p.parseExpr(0)
	then := p.parseCodeBlock()
	var elseBlock *ast.CodeBlock
	if p.match(lexer.KwElse) {
		elseBlock = p.parseCodeBlock()
	}
	e := &ast.IfExpr{Cond: cond, Then: then, Else: elseBlock}
	e.Base = p.arena.Alloc(nil, p.rangeFrom(start))
	adopt(cond, e)
	adopt(then, e)
	if elseBlock != nil {
		adopt(elseBlock, e)
	}
	return e
}
