// Package printer renders a statement stream back to canonical assembly
// text. It is a direct restatement of xcomp/decompiler.py's ModelPrinter —
// the later and more complete of the two Python drafts (it round-trips
// Struct, Dim, and Var; printer.py does not) — without the ANSI styling
// layer: the output is plain text.
package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/eanderton/xcomp/ast"
)

// Print renders stmts to w, one statement per line, in a form that
// re-parses to a semantically equal statement stream (the printer
// round-trip property).
func Print(w io.Writer, stmts []ast.Stmt) error {
	p := &printer{w: w}
	for _, stmt := range stmts {
		if err := p.stmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

type printer struct {
	w       io.Writer
	err     error
	context string
}

func (p *printer) writef(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// markContext emits a source-context comment whenever the statement being
// printed originates from a different named source than the last one
// printed, matching decompiler.py's _print_pos tracking of pos.context.
func (p *printer) markContext(pos ast.Meta) {
	ctx := pos.Pos.Context
	if ctx == "" || ctx == p.context {
		return
	}
	p.context = ctx
	p.writef("; <%s>\n", ctx)
}

func (p *printer) stmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case ast.Comment:
		p.writef(";%s\n", s.Text)
	case ast.Encoding:
		p.markContext(s.Meta)
		p.writef(".encoding %q\n", s.Name)
	case ast.Segment:
		p.markContext(s.Meta)
		p.writef(".%s", s.Name)
		if s.Offset != nil {
			p.writef(" %s", p.expr(s.Offset))
		}
		p.writef("\n")
	case ast.Include:
		p.markContext(s.Meta)
		p.writef(".include %q\n", s.Filename)
	case ast.BinInclude:
		p.markContext(s.Meta)
		p.writef(".bin %q\n", s.Filename)
	case ast.ScopeBegin:
		p.markContext(s.Meta)
		if s.Namespace != "" {
			p.writef(".scope %s\n", s.Namespace)
		} else {
			p.writef(".scope\n")
		}
	case ast.ScopeEnd:
		p.markContext(s.Meta)
		if s.Merge {
			p.writef(".endscope merge\n")
		} else {
			p.writef(".endscope\n")
		}
	case ast.Define:
		p.markContext(s.Meta)
		p.writef(".def %s %s\n", s.Name, p.expr(s.Expr))
	case ast.Label:
		p.markContext(s.Meta)
		p.writef("%s:\n", s.Name)
	case ast.Storage:
		p.markContext(s.Meta)
		p.writef("%s %s\n", storageDirective(s.Width), p.exprList(s.Items))
	case ast.Dim:
		p.markContext(s.Meta)
		p.writef(".dim %s %s, %s\n", s.Name, p.expr(s.Count), p.expr(s.Fill))
	case ast.Var:
		p.markContext(s.Meta)
		p.writef(".var %s %s", s.Name, p.expr(s.Size))
		if s.Fill != nil {
			p.writef(", %s", p.expr(s.Fill))
		}
		p.writef("\n")
	case ast.Struct:
		p.markContext(s.Meta)
		p.writef(".struct %s\n", s.Name)
		for _, field := range s.Fields {
			p.writef("    %s %d\n", field.Name, field.Width)
		}
		p.writef(".endstruct\n")
	case ast.Pragma:
		p.markContext(s.Meta)
		p.writef(".pragma %s %s\n", s.Name, p.expr(s.Value))
	case ast.MacroDef:
		p.markContext(s.Meta)
		p.writef(".macro %s %s\n", s.Name, strings.Join(s.Params, ", "))
		for _, body := range s.Body {
			if err := p.stmt(body); err != nil {
				return err
			}
		}
		p.writef(".endmacro\n")
	case ast.MacroCall:
		p.markContext(s.Meta)
		p.writef("%s %s\n", s.Name, p.exprList(s.Args))
	case ast.Op:
		p.markContext(s.Meta)
		p.writef("    %s", p.opText(s))
	default:
		p.writef("; unknown statement %T\n", stmt)
	}
	return p.err
}

func storageDirective(width int) string {
	switch width {
	case 1:
		return ".byte"
	case 2:
		return ".word"
	case 4:
		return ".dword"
	default:
		return ".byte"
	}
}

func (p *printer) opText(s ast.Op) string {
	if s.Arg == nil {
		return s.Mnemonic + "\n"
	}
	arg := p.expr(s.Arg)
	switch {
	case s.Immediate:
		return fmt.Sprintf("%s #%s\n", s.Mnemonic, arg)
	case s.Indirect && s.Indexed == "x":
		return fmt.Sprintf("%s (%s, x)\n", s.Mnemonic, arg)
	case s.Indirect && s.Indexed == "y":
		return fmt.Sprintf("%s (%s), y\n", s.Mnemonic, arg)
	case s.Indirect:
		return fmt.Sprintf("%s (%s)\n", s.Mnemonic, arg)
	case s.Indexed == "x":
		return fmt.Sprintf("%s %s, x\n", s.Mnemonic, arg)
	case s.Indexed == "y":
		return fmt.Sprintf("%s %s, y\n", s.Mnemonic, arg)
	default:
		return fmt.Sprintf("%s %s\n", s.Mnemonic, arg)
	}
}

func (p *printer) exprList(items []ast.Expr) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = p.expr(item)
	}
	return strings.Join(parts, ", ")
}

// expr renders an expression tree with the minimum parenthesization needed
// to re-parse to the same tree, matching the operator-precedence levels
// grammar/expr.go's precedence-climbing parser uses.
func (p *printer) expr(e ast.Expr) string {
	return p.exprPrec(e, 0)
}

func precedence(op ast.BinaryOp) int {
	switch op {
	case ast.OpMul, ast.OpDiv, ast.OpMod:
		return 4
	case ast.OpAdd, ast.OpSub:
		return 3
	case ast.OpShl, ast.OpShr:
		return 2
	case ast.OpAnd:
		return 1
	case ast.OpOr, ast.OpXor:
		return 0
	}
	return 0
}

func (p *printer) exprPrec(e ast.Expr, minPrec int) string {
	switch x := e.(type) {
	case ast.IntLit:
		return formatIntLit(x)
	case ast.StringLit:
		return fmt.Sprintf("%q", x.Value)
	case ast.Name:
		return x.Ident
	case ast.Unary:
		return unaryOpText(x.Op) + p.exprPrec(x.Arg, 5)
	case ast.Binary:
		prec := precedence(x.Op)
		text := fmt.Sprintf("%s %s %s", p.exprPrec(x.Left, prec), binaryOpText(x.Op), p.exprPrec(x.Right, prec+1))
		if prec < minPrec {
			return "(" + text + ")"
		}
		return text
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

func formatIntLit(x ast.IntLit) string {
	switch x.Radix {
	case 16:
		if x.Width8 {
			return fmt.Sprintf("$%02x", x.Value)
		}
		return fmt.Sprintf("$%04x", x.Value)
	case 2:
		if x.Width8 {
			return fmt.Sprintf("%%%08b", x.Value)
		}
		return fmt.Sprintf("%%%016b", x.Value)
	default:
		return fmt.Sprintf("%d", x.Value)
	}
}

func unaryOpText(op ast.UnaryOp) string {
	switch op {
	case ast.OpNeg:
		return "-"
	case ast.OpBitNot:
		return "~"
	case ast.OpLobyte:
		return "<"
	case ast.OpHibyte:
		return ">"
	case ast.OpAs16:
		return "!"
	default:
		return ""
	}
}

func binaryOpText(op ast.BinaryOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpMod:
		return "%"
	case ast.OpShl:
		return "<<"
	case ast.OpShr:
		return ">>"
	case ast.OpAnd:
		return "&"
	case ast.OpOr:
		return "|"
	case ast.OpXor:
		return "^"
	default:
		return "?"
	}
}
