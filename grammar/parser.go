package grammar

import (
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/cpu6502"
	"github.com/eanderton/xcomp/xcerr"
)

// Parser reduces xcomp assembly source text into a flat ast.Stmt stream.
// It is safe to reuse across calls to Parse; no state survives between
// invocations.
type Parser struct {
	opcodeRules map[string]bool
}

// NewParser builds a Parser whose operand grammar recognizes exactly the
// mnemonics in cpu6502's NMOS instruction table, generated at construction
// time the way parser.py amends its grammar from cpu6502.opcode_table at
// import time.
func NewParser() *Parser {
	p := &Parser{opcodeRules: make(map[string]bool, len(cpu6502.Mnemonics))}
	for _, m := range cpu6502.Mnemonics {
		p.opcodeRules[m] = true
	}
	return p
}

// Parse reduces text (identified by context, used in reported positions)
// into a flat statement stream.
func (p *Parser) Parse(text, context string) ([]ast.Stmt, error) {
	c := newCursor(text, context)
	var out []ast.Stmt
	for {
		p.skipTrivia(c)
		if c.eof() {
			break
		}
		stmt, ok := p.parseStmt(c)
		if !ok {
			if c.errs.err != nil {
				return nil, c.errs.err
			}
			line, col := xcerr.LineCol(text, c.posAt(c.pos))
			return nil, xcerr.New(xcerr.KindParseError, c.posAt(c.pos),
				"%s (%d, %d): unrecognized statement", context, line, col)
		}
		if c.errs.err != nil {
			return nil, c.errs.err
		}
		out = append(out, stmt)
		log.Debugf("grammar: reduced %T at %s", stmt, stmt.Position())
	}
	return out, nil
}

// skipTrivia consumes whitespace. Comments are handled by parseStmt so
// they can be retained in the output stream for the printer.
func (p *Parser) skipTrivia(c *cursor) {
	for !c.eof() && isSpace(c.peek()) {
		c.pos++
	}
}

var reRestOfLine = regexp.MustCompile(`[^\n]*`)

func (p *Parser) parseStmt(c *cursor) (ast.Stmt, bool) {
	start := c.pos
	if c.peek() == ';' {
		c.pos++
		loc := reRestOfLine.FindStringIndex(c.text[c.pos:])
		text := ""
		if loc != nil {
			text = c.text[c.pos : c.pos+loc[1]]
			c.pos += loc[1]
		}
		trailing := start > 0 && !precededByNewline(c.text, start)
		return ast.Comment{Meta: ast.New(c.posAt(start)), Text: strings.TrimSpace(text), Trailing: trailing}, true
	}
	if c.peek() == '.' {
		return p.parseDirective(c)
	}
	if label, ok := p.tryLabel(c); ok {
		return label, true
	}
	if op, ok := p.tryOp(c); ok {
		return op, true
	}
	if call, ok := p.tryMacroCall(c); ok {
		return call, true
	}
	c.pos = start
	return nil, false
}

func precededByNewline(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		if text[i] == '\n' {
			return false
		}
		if text[i] != ' ' && text[i] != '\t' {
			return true
		}
	}
	return false
}

var reIdentOnly = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*`)

func (p *Parser) tryLabel(c *cursor) (ast.Stmt, bool) {
	start := c.pos
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		return nil, false
	}
	name := c.text[c.pos : c.pos+loc[1]]
	next := c.pos + loc[1]
	if next >= len(c.text) || c.text[next] != ':' {
		return nil, false
	}
	if p.opcodeRules[strings.ToLower(name)] {
		return nil, false
	}
	c.pos = next + 1
	return ast.Label{Meta: ast.New(c.posAt(start)), Name: name}, true
}

func (p *Parser) tryMacroCall(c *cursor) (ast.Stmt, bool) {
	start := c.pos
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		return nil, false
	}
	name := c.text[c.pos : c.pos+loc[1]]
	if p.opcodeRules[strings.ToLower(name)] {
		return nil, false
	}
	c.pos += loc[1]
	var args []ast.Expr
	p.skipSpace(c)
	if !c.eof() && c.peek() != '\n' && c.peek() != ';' {
		for {
			arg, ok := p.parseExpr(c)
			if !ok {
				break
			}
			args = append(args, arg)
			p.skipSpace(c)
			if c.peek() != ',' {
				break
			}
			c.pos++
			p.skipSpace(c)
		}
	}
	return ast.MacroCall{Meta: ast.New(c.posAt(start)), Name: name, Args: args}, true
}

// parseDirective dispatches on the '.'-prefixed keyword.
func (p *Parser) parseDirective(c *cursor) (ast.Stmt, bool) {
	start := c.pos
	kw, ok := p.readKeyword(c)
	if !ok {
		c.pos = start
		return nil, false
	}
	switch kw {
	case ".encoding":
		return p.parseEncoding(c, start)
	case ".zero", ".bss", ".data", ".text":
		return p.parseSegment(c, start, kw)
	case ".include":
		return p.parseInclude(c, start)
	case ".bin":
		return p.parseBinInclude(c, start)
	case ".scope":
		return p.parseScopeBegin(c, start)
	case ".endscope":
		return p.parseScopeEnd(c, start)
	case ".def", ".eq", ".equ":
		return p.parseDef(c, start)
	case ".byte", ".db":
		return p.parseStorage(c, start, 1)
	case ".word", ".dw":
		return p.parseStorage(c, start, 2)
	case ".dword", ".dd":
		return p.parseStorage(c, start, 4)
	case ".dim":
		return p.parseDim(c, start)
	case ".var":
		return p.parseVar(c, start)
	case ".struct":
		return p.parseStruct(c, start)
	case ".pragma":
		return p.parsePragma(c, start)
	case ".macro":
		return p.parseMacroDef(c, start)
	}
	c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "unknown directive %q", kw)
	return nil, false
}

var reKeyword = regexp.MustCompile(`^\.[a-zA-Z]+`)

func (p *Parser) readKeyword(c *cursor) (string, bool) {
	loc := reKeyword.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		return "", false
	}
	kw := strings.ToLower(c.text[c.pos : c.pos+loc[1]])
	c.pos += loc[1]
	return kw, true
}

func (p *Parser) parseEncoding(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	var name string
	if c.peek() == '"' {
		lit, ok := p.parseStringLit(c)
		if !ok {
			return nil, false
		}
		name = lit.(ast.StringLit).Value
	} else {
		loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
		if loc == nil || loc[0] != 0 {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected encoding name")
			return nil, false
		}
		name = c.text[c.pos : c.pos+loc[1]]
		c.pos += loc[1]
	}
	return ast.Encoding{Meta: ast.New(c.posAt(start)), Name: name}, true
}

func (p *Parser) parseSegment(c *cursor, start int, kw string) (ast.Stmt, bool) {
	var id ast.SegmentID
	switch kw {
	case ".zero":
		id = ast.SegZero
	case ".bss":
		id = ast.SegBss
	case ".data":
		id = ast.SegData
	case ".text":
		id = ast.SegText
	}
	p.skipSpace(c)
	var offset ast.Expr
	if e, ok := p.parseExpr(c); ok {
		offset = e
	}
	return ast.Segment{Meta: ast.New(c.posAt(start)), Name: id, Offset: offset}, true
}

func (p *Parser) parseQuotedFilename(c *cursor, start int) (string, bool) {
	p.skipSpace(c)
	lit, ok := p.parseStringLit(c)
	if !ok {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected quoted filename")
		return "", false
	}
	return lit.(ast.StringLit).Value, true
}

func (p *Parser) parseInclude(c *cursor, start int) (ast.Stmt, bool) {
	name, ok := p.parseQuotedFilename(c, start)
	if !ok {
		return nil, false
	}
	return ast.Include{Meta: ast.New(c.posAt(start)), Filename: name}, true
}

func (p *Parser) parseBinInclude(c *cursor, start int) (ast.Stmt, bool) {
	name, ok := p.parseQuotedFilename(c, start)
	if !ok {
		return nil, false
	}
	return ast.BinInclude{Meta: ast.New(c.posAt(start)), Filename: name}, true
}

func (p *Parser) parseScopeBegin(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	var ns string
	if loc := reIdentOnly.FindStringIndex(c.text[c.pos:]); loc != nil && loc[0] == 0 {
		ns = c.text[c.pos : c.pos+loc[1]]
		c.pos += loc[1]
	}
	return ast.ScopeBegin{Meta: ast.New(c.posAt(start)), Namespace: ns}, true
}

// parseScopeEnd recognizes the optional trailing "merge" keyword that folds
// the closing namespace scope's qualified names into the enclosing scope,
// per the end_scope(merge=true) behavior.
func (p *Parser) parseScopeEnd(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	merge := false
	if loc := reIdentOnly.FindStringIndex(c.text[c.pos:]); loc != nil && loc[0] == 0 {
		if strings.EqualFold(c.text[c.pos:c.pos+loc[1]], "merge") {
			merge = true
			c.pos += loc[1]
		}
	}
	return ast.ScopeEnd{Meta: ast.New(c.posAt(start)), Merge: merge}, true
}

func (p *Parser) parseDef(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected identifier after .def")
		return nil, false
	}
	name := c.text[c.pos : c.pos+loc[1]]
	c.pos += loc[1]
	p.skipSpace(c)
	expr, ok := p.parseExpr(c)
	if !ok {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected expression after .def %s", name)
		return nil, false
	}
	return ast.Define{Meta: ast.New(c.posAt(start)), Name: name, Expr: expr}, true
}

func (p *Parser) parseStorage(c *cursor, start int, width int) (ast.Stmt, bool) {
	var items []ast.Expr
	for {
		p.skipSpace(c)
		e, ok := p.parseExpr(c)
		if !ok {
			break
		}
		items = append(items, e)
		p.skipSpace(c)
		if c.peek() != ',' {
			break
		}
		c.pos++
	}
	if len(items) == 0 {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected one or more storage items")
		return nil, false
	}
	return ast.Storage{Meta: ast.New(c.posAt(start)), Width: width, Items: items}, true
}

func (p *Parser) parseDim(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected identifier after .dim")
		return nil, false
	}
	name := c.text[c.pos : c.pos+loc[1]]
	c.pos += loc[1]
	p.skipSpace(c)
	count, ok := p.parseExpr(c)
	if !ok {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected count expression in .dim %s", name)
		return nil, false
	}
	p.skipSpace(c)
	if c.peek() != ',' {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected ',' in .dim %s", name)
		return nil, false
	}
	c.pos++
	p.skipSpace(c)
	fill, ok := p.parseExpr(c)
	if !ok {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected fill expression in .dim %s", name)
		return nil, false
	}
	return ast.Dim{Meta: ast.New(c.posAt(start)), Name: name, Count: count, Fill: fill}, true
}

func (p *Parser) parseVar(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected identifier after .var")
		return nil, false
	}
	name := c.text[c.pos : c.pos+loc[1]]
	c.pos += loc[1]
	p.skipSpace(c)
	size, ok := p.parseExpr(c)
	if !ok {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected size expression in .var %s", name)
		return nil, false
	}
	var fill ast.Expr
	p.skipSpace(c)
	if c.peek() == ',' {
		c.pos++
		p.skipSpace(c)
		fill, ok = p.parseExpr(c)
		if !ok {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected fill expression in .var %s", name)
			return nil, false
		}
	}
	return ast.Var{Meta: ast.New(c.posAt(start)), Name: name, Size: size, Fill: fill}, true
}

func (p *Parser) parseStruct(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected identifier after .struct")
		return nil, false
	}
	name := c.text[c.pos : c.pos+loc[1]]
	c.pos += loc[1]
	var fields []ast.StructField
	for {
		p.skipTrivia(c)
		if strings.HasPrefix(strings.ToLower(c.text[c.pos:]), ".endstruct") {
			c.pos += len(".endstruct")
			break
		}
		if c.eof() {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "unterminated .struct %s", name)
			return nil, false
		}
		loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
		if loc == nil || loc[0] != 0 {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected field name in .struct %s", name)
			return nil, false
		}
		fieldName := c.text[c.pos : c.pos+loc[1]]
		c.pos += loc[1]
		p.skipSpace(c)
		widthExpr, ok := p.parseExpr(c)
		if !ok {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected width in .struct %s field %s", name, fieldName)
			return nil, false
		}
		width, ok := widthExpr.(ast.IntLit)
		if !ok {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "struct field width must be a literal")
			return nil, false
		}
		fields = append(fields, ast.StructField{Name: fieldName, Width: width.Value})
	}
	return ast.Struct{Meta: ast.New(c.posAt(start)), Name: name, Fields: fields}, true
}

func (p *Parser) parsePragma(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected identifier after .pragma")
		return nil, false
	}
	name := c.text[c.pos : c.pos+loc[1]]
	c.pos += loc[1]
	p.skipSpace(c)
	value, ok := p.parseExpr(c)
	if !ok {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected value expression in .pragma %s", name)
		return nil, false
	}
	return ast.Pragma{Meta: ast.New(c.posAt(start)), Name: name, Value: value}, true
}

func (p *Parser) parseMacroDef(c *cursor, start int) (ast.Stmt, bool) {
	p.skipSpace(c)
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected macro name after .macro")
		return nil, false
	}
	name := c.text[c.pos : c.pos+loc[1]]
	c.pos += loc[1]
	var params []string
	p.skipSpace(c)
	paren := c.peek() == '('
	if paren || c.peek() == ',' {
		c.pos++
	}
	for {
		p.skipSpace(c)
		loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
		if loc == nil || loc[0] != 0 {
			break
		}
		params = append(params, c.text[c.pos:c.pos+loc[1]])
		c.pos += loc[1]
		p.skipSpace(c)
		if c.peek() == ',' {
			c.pos++
			continue
		}
		break
	}
	if paren {
		p.skipSpace(c)
		if c.peek() != ')' {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected closing ')' in macro %s parameter list", name)
			return nil, false
		}
		c.pos++
	}
	var body []ast.Stmt
	for {
		p.skipTrivia(c)
		if strings.HasPrefix(strings.ToLower(c.text[c.pos:]), ".endmacro") {
			c.pos += len(".endmacro")
			break
		}
		if c.eof() {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "unterminated macro %q: expected .endmacro", name)
			return nil, false
		}
		stmt, ok := p.parseStmt(c)
		if !ok {
			if c.errs.err != nil {
				return nil, false
			}
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "unrecognized statement in macro %q body", name)
			return nil, false
		}
		body = append(body, stmt)
	}
	return ast.MacroDef{Meta: ast.New(c.posAt(start)), Name: name, Params: params, Body: body}, true
}

// tryOp recognizes one CPU instruction in any of the syntactic operand
// forms the addressing modes require. The exact addressing mode (and
// whether the operand fits zeropage) is selected later by codegen, which
// mirrors asm/asm.go's findMatchingInstruction: the grammar only records
// surface syntax (indirection, indexing register), not the resolved Mode.
func (p *Parser) tryOp(c *cursor) (ast.Stmt, bool) {
	start := c.pos
	loc := reIdentOnly.FindStringIndex(c.text[c.pos:])
	if loc == nil || loc[0] != 0 {
		return nil, false
	}
	name := strings.ToLower(c.text[c.pos : c.pos+loc[1]])
	if !p.opcodeRules[name] {
		return nil, false
	}
	c.pos += loc[1]
	op := ast.Op{Meta: ast.New(c.posAt(start)), Mnemonic: name}

	save := c.pos
	p.skipSpace(c)

	// Accumulator form: "asl a" / bare mnemonic are both legal for the
	// accumulator-capable ops; codegen disambiguates using the mnemonic's
	// variant set, so we only need to special-case the literal "A".
	if c.pos+1 <= len(c.text) && (c.peek() == 'A' || c.peek() == 'a') {
		next := c.pos + 1
		if next >= len(c.text) || !isIdentChar(c.text[next]) {
			c.pos = next
			return op, true
		}
	}

	if c.eof() || c.peek() == '\n' || c.peek() == ';' {
		c.pos = save
		return op, true
	}

	if c.peek() == '#' {
		c.pos++
		arg, ok := p.parseExpr(c)
		if !ok {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected immediate operand for %s", name)
			return nil, false
		}
		op.Arg = arg
		op.Immediate = true
		return op, true
	}

	if c.peek() == '(' {
		c.pos++
		arg, ok := p.parseExpr(c)
		if !ok {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected operand for %s", name)
			return nil, false
		}
		p.skipSpace(c)
		op.Arg = arg
		op.Indirect = true
		if c.peek() == ',' {
			c.pos++
			p.skipSpace(c)
			reg, ok := p.readIndexReg(c)
			if !ok || reg != "x" {
				c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected ',X' in indirect operand for %s", name)
				return nil, false
			}
			op.Indexed = "x"
			p.skipSpace(c)
			if c.peek() != ')' {
				c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected closing ')' for %s", name)
				return nil, false
			}
			c.pos++
			return op, true
		}
		if c.peek() != ')' {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected closing ')' for %s", name)
			return nil, false
		}
		c.pos++
		p.skipSpace(c)
		if c.peek() == ',' {
			c.pos++
			p.skipSpace(c)
			reg, ok := p.readIndexReg(c)
			if !ok || reg != "y" {
				c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected ',Y' after indirect operand for %s", name)
				return nil, false
			}
			op.Indexed = "y"
		}
		return op, true
	}

	arg, ok := p.parseExpr(c)
	if !ok {
		c.pos = save
		return op, true
	}
	op.Arg = arg
	p.skipSpace(c)
	if c.peek() == ',' {
		c.pos++
		p.skipSpace(c)
		reg, ok := p.readIndexReg(c)
		if !ok {
			c.errs.err = xcerr.New(xcerr.KindParseError, c.posAt(start), "expected ',X' or ',Y' after operand for %s", name)
			return nil, false
		}
		op.Indexed = reg
	}
	return op, true
}

func (p *Parser) readIndexReg(c *cursor) (string, bool) {
	if c.eof() {
		return "", false
	}
	b := c.peek()
	if b != 'x' && b != 'X' && b != 'y' && b != 'Y' {
		return "", false
	}
	next := c.pos + 1
	if next < len(c.text) && isIdentChar(c.text[next]) {
		return "", false
	}
	c.pos = next
	return strings.ToLower(string(b)), true
}

// errorFor formats a parse failure the way reduce_parser.py's error_generic
// does: "expected <rule> expression" with underscores replaced by spaces.
func errorFor(rule string) string {
	return fmt.Sprintf("expected %s expression", strings.ReplaceAll(rule, "_", " "))
}
