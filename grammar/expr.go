package grammar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/xcerr"
)

// Expression precedence, loosest to tightest, mirrors parser.py's
// expr/term/exp/fact chain plus the shift/bitwise levels asm/expr.go adds:
// bitwise or/xor, bitwise and, shift, add/sub, mul/div/mod, unary, atom.

var (
	reBase2  = regexp.MustCompile(`^%[01]{1,16}`)
	reBase16 = regexp.MustCompile(`^(?:\$|0x)[0-9a-fA-F]{1,4}`)
	reBase10 = regexp.MustCompile(`^[0-9]+`)
	// reIdent also matches dotted qualified names (e.g. "point.x"), since
	// names bound within a namespace scope are stored under the dotted
	// concatenation of the namespace path and the local name.
	reIdent = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*(?:\.[_a-zA-Z][_a-zA-Z0-9]*)*`)
)

func (p *Parser) skipSpace(c *cursor) {
	for !c.eof() {
		b := c.peek()
		if b == ' ' || b == '\t' {
			c.pos++
			continue
		}
		break
	}
}

func (p *Parser) parseExpr(c *cursor) (ast.Expr, bool) {
	return p.parseBitOr(c)
}

func (p *Parser) parseBitOr(c *cursor) (ast.Expr, bool) {
	left, ok := p.parseBitAnd(c)
	if !ok {
		return nil, false
	}
	for {
		start := c.pos
		p.skipSpace(c)
		var op ast.BinaryOp
		switch {
		case c.peek() == '|':
			op, c.pos = ast.OpOr, c.pos+1
		case c.peek() == '^' && c.pos+1 < len(c.text) && c.text[c.pos+1] != '^':
			op, c.pos = ast.OpXor, c.pos+1
		default:
			c.pos = start
			return left, true
		}
		p.skipSpace(c)
		right, ok := p.parseBitAnd(c)
		if !ok {
			c.pos = start
			return left, true
		}
		left = ast.Binary{Meta: ast.New(c.posAtWrap(start)), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseBitAnd(c *cursor) (ast.Expr, bool) {
	left, ok := p.parseShift(c)
	if !ok {
		return nil, false
	}
	for {
		start := c.pos
		p.skipSpace(c)
		if c.peek() != '&' {
			c.pos = start
			return left, true
		}
		c.pos++
		p.skipSpace(c)
		right, ok := p.parseShift(c)
		if !ok {
			c.pos = start
			return left, true
		}
		left = ast.Binary{Meta: ast.New(c.posAtWrap(start)), Op: ast.OpAnd, Left: left, Right: right}
	}
}

func (p *Parser) parseShift(c *cursor) (ast.Expr, bool) {
	left, ok := p.parseAddSub(c)
	if !ok {
		return nil, false
	}
	for {
		start := c.pos
		p.skipSpace(c)
		var op ast.BinaryOp
		switch {
		case strings.HasPrefix(c.text[c.pos:], "<<"):
			op, c.pos = ast.OpShl, c.pos+2
		case strings.HasPrefix(c.text[c.pos:], ">>"):
			op, c.pos = ast.OpShr, c.pos+2
		default:
			c.pos = start
			return left, true
		}
		p.skipSpace(c)
		right, ok := p.parseAddSub(c)
		if !ok {
			c.pos = start
			return left, true
		}
		left = ast.Binary{Meta: ast.New(c.posAtWrap(start)), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAddSub(c *cursor) (ast.Expr, bool) {
	left, ok := p.parseMulDiv(c)
	if !ok {
		return nil, false
	}
	for {
		start := c.pos
		p.skipSpace(c)
		var op ast.BinaryOp
		switch c.peek() {
		case '+':
			op, c.pos = ast.OpAdd, c.pos+1
		case '-':
			op, c.pos = ast.OpSub, c.pos+1
		default:
			c.pos = start
			return left, true
		}
		p.skipSpace(c)
		right, ok := p.parseMulDiv(c)
		if !ok {
			c.pos = start
			return left, true
		}
		left = ast.Binary{Meta: ast.New(c.posAtWrap(start)), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMulDiv(c *cursor) (ast.Expr, bool) {
	left, ok := p.parseUnary(c)
	if !ok {
		return nil, false
	}
	for {
		start := c.pos
		p.skipSpace(c)
		var op ast.BinaryOp
		switch c.peek() {
		case '*':
			op, c.pos = ast.OpMul, c.pos+1
		case '/':
			op, c.pos = ast.OpDiv, c.pos+1
		case '%':
			if c.pos+1 < len(c.text) && (c.text[c.pos+1] == '0' || c.text[c.pos+1] == '1') {
				// looks like a binary literal, not a modulo operator
				c.pos = start
				return left, true
			}
			op, c.pos = ast.OpMod, c.pos+1
		default:
			c.pos = start
			return left, true
		}
		p.skipSpace(c)
		right, ok := p.parseUnary(c)
		if !ok {
			c.pos = start
			return left, true
		}
		left = ast.Binary{Meta: ast.New(c.posAtWrap(start)), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary(c *cursor) (ast.Expr, bool) {
	start := c.pos
	switch c.peek() {
	case '-':
		c.pos++
		arg, ok := p.parseUnary(c)
		if !ok {
			c.pos = start
			return nil, false
		}
		return ast.Unary{Meta: ast.New(c.posAtWrap(start)), Op: ast.OpNeg, Arg: arg}, true
	case '~':
		c.pos++
		arg, ok := p.parseUnary(c)
		if !ok {
			c.pos = start
			return nil, false
		}
		return ast.Unary{Meta: ast.New(c.posAtWrap(start)), Op: ast.OpBitNot, Arg: arg}, true
	case '<':
		c.pos++
		arg, ok := p.parseUnary(c)
		if !ok {
			c.pos = start
			return nil, false
		}
		return ast.Unary{Meta: ast.New(c.posAtWrap(start)), Op: ast.OpLobyte, Arg: arg}, true
	case '>':
		c.pos++
		arg, ok := p.parseUnary(c)
		if !ok {
			c.pos = start
			return nil, false
		}
		return ast.Unary{Meta: ast.New(c.posAtWrap(start)), Op: ast.OpHibyte, Arg: arg}, true
	case '!':
		c.pos++
		arg, ok := p.parseUnary(c)
		if !ok {
			c.pos = start
			return nil, false
		}
		return ast.Unary{Meta: ast.New(c.posAtWrap(start)), Op: ast.OpAs16, Arg: arg}, true
	}
	return p.parseAtom(c)
}

func (p *Parser) parseAtom(c *cursor) (ast.Expr, bool) {
	p.skipSpace(c)
	start := c.pos
	if c.peek() == '(' {
		c.pos++
		p.skipSpace(c)
		inner, ok := p.parseExpr(c)
		if !ok {
			c.pos = start
			return nil, false
		}
		p.skipSpace(c)
		if c.peek() != ')' {
			c.pos = start
			return nil, false
		}
		c.pos++
		return inner, true
	}
	if lit, ok := p.parseNumber(c); ok {
		return lit, true
	}
	if str, ok := p.parseStringLit(c); ok {
		return str, true
	}
	if loc := reIdent.FindStringIndex(c.text[c.pos:]); loc != nil && loc[0] == 0 {
		c.pos += loc[1]
		name := c.text[start:c.pos]
		return ast.Name{Meta: ast.New(c.posAt(start)), Ident: name}, true
	}
	c.pos = start
	return nil, false
}

func (c *cursor) posAtWrap(start int) xcerr.Pos { return c.posAt(start) }

func (p *Parser) parseNumber(c *cursor) (ast.Expr, bool) {
	start := c.pos
	if loc := reBase16.FindStringIndex(c.text[c.pos:]); loc != nil && loc[0] == 0 {
		text := c.text[c.pos : c.pos+loc[1]]
		c.pos += loc[1]
		digits := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "$")
		v, _ := strconv.ParseInt(digits, 16, 32)
		return ast.IntLit{Meta: ast.New(c.posAtWrap(start)), Value: int(v), Radix: 16, Width8: len(digits) <= 2}, true
	}
	if loc := reBase2.FindStringIndex(c.text[c.pos:]); loc != nil && loc[0] == 0 {
		text := c.text[c.pos : c.pos+loc[1]]
		c.pos += loc[1]
		digits := strings.TrimPrefix(text, "%")
		v, _ := strconv.ParseInt(digits, 2, 32)
		return ast.IntLit{Meta: ast.New(c.posAtWrap(start)), Value: int(v), Radix: 2, Width8: len(digits) <= 8}, true
	}
	if loc := reBase10.FindStringIndex(c.text[c.pos:]); loc != nil && loc[0] == 0 {
		text := c.text[c.pos : c.pos+loc[1]]
		c.pos += loc[1]
		v, _ := strconv.Atoi(text)
		return ast.IntLit{Meta: ast.New(c.posAtWrap(start)), Value: v, Radix: 10, Width8: v < 256}, true
	}
	return nil, false
}

func (p *Parser) parseStringLit(c *cursor) (ast.Expr, bool) {
	if c.peek() != '"' {
		return nil, false
	}
	start := c.pos
	c.pos++
	var sb strings.Builder
	for {
		if c.eof() {
			c.errs.err = xcerr.New(xcerr.KindUnterminatedString, c.posAtWrap(start), "unterminated string literal")
			return nil, false
		}
		b := c.peek()
		if b == '"' {
			c.pos++
			break
		}
		if b == '\\' {
			c.pos++
			if c.eof() {
				c.errs.err = xcerr.New(xcerr.KindUnterminatedString, c.posAtWrap(start), "unterminated string literal")
				return nil, false
			}
			e := c.peek()
			c.pos++
			switch e {
			case 'r':
				sb.WriteByte('\r')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'v':
				sb.WriteByte('\v')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				c.errs.err = xcerr.New(xcerr.KindInvalidEscape, c.posAtWrap(c.pos-2), "invalid escape sequence '\\%c'", e)
				return nil, false
			}
			continue
		}
		sb.WriteByte(b)
		c.pos++
	}
	return ast.StringLit{Meta: ast.New(c.posAtWrap(start)), Value: sb.String()}, true
}
