// Package preprocessor expands .include directives and macro invocations
// into a single flat ast.Stmt stream, the way xcomp/preprocessor.py's
// PreProcessor does for the Python original: it is a second full pass over
// the reduced statement stream, not a textual substitution step.
package preprocessor

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/source"
	"github.com/eanderton/xcomp/xcerr"
)

// ParseFunc reduces the named source text into a flat statement stream.
// Expand calls back into it for every .include it encounters, the same
// recursive-parse-and-splice shape as preprocessor.py's _process(Include).
type ParseFunc func(src *source.Manager, name string) ([]ast.Stmt, error)

type expander struct {
	src    *source.Manager
	parse  ParseFunc
	macros map[string]ast.MacroDef
}

// Expand reduces entry (and everything it transitively .includes) into a
// single flat statement stream with every macro invocation inlined.
// Re-including the same file is not deduplicated — harmless unless it
// redefines a macro or name, matching preprocessor.py's own behavior.
func Expand(src *source.Manager, parse ParseFunc, entry string) ([]ast.Stmt, error) {
	e := &expander{src: src, parse: parse, macros: make(map[string]ast.MacroDef)}
	stmts, err := e.parseNamed(entry)
	if err != nil {
		return nil, err
	}
	var out []ast.Stmt
	if err := e.process(stmts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *expander) parseNamed(name string) ([]ast.Stmt, error) {
	stmts, err := e.parse(e.src, name)
	if err != nil {
		return nil, err
	}
	return stmts, nil
}

// process appends the expansion of each statement in stmts to out,
// dispatching by type the way _process's singledispatchmethod does in the
// Python original.
func (e *expander) process(stmts []ast.Stmt, out *[]ast.Stmt) error {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case ast.Include:
			log.Debugf("preprocessor: expanding include %q", s.Filename)
			included, err := e.parseNamed(s.Filename)
			if err != nil {
				return err
			}
			if err := e.process(included, out); err != nil {
				return err
			}
		case ast.MacroDef:
			if existing, dup := e.macros[s.Name]; dup {
				return xcerr.New(xcerr.KindDuplicateMacro, s.Position(),
					"macro %q already defined at %s", s.Name, existing.Position())
			}
			e.macros[s.Name] = s
		case ast.MacroCall:
			if err := e.processMacroCall(s, out); err != nil {
				return err
			}
		default:
			*out = append(*out, stmt)
		}
	}
	return nil
}

// processMacroCall inlines a macro invocation as an isolating scope
// wrapping one Define per parameter followed by the macro body, matching
// preprocessor.py's _process(MacroCall): Scope(), Define(param, arg)...,
// body..., EndScope(). The scope keeps macro-local names from leaking into
// the call site, the macro hygiene property spec.md's testable properties
// require.
func (e *expander) processMacroCall(call ast.MacroCall, out *[]ast.Stmt) error {
	macro, ok := e.macros[call.Name]
	if !ok {
		return xcerr.New(xcerr.KindUndefinedName, call.Position(),
			"call to undefined macro %q", call.Name)
	}
	if len(call.Args) != len(macro.Params) {
		return xcerr.New(xcerr.KindArityMismatch, call.Position(),
			"macro %q expects %d argument(s), got %d", call.Name, len(macro.Params), len(call.Args))
	}
	log.Debugf("preprocessor: expanding macro %q (%d args)", call.Name, len(call.Args))

	*out = append(*out, ast.ScopeBegin{Meta: ast.New(xcerr.NullPos)})
	for i, param := range macro.Params {
		*out = append(*out, ast.Define{
			Meta: ast.New(xcerr.NullPos),
			Name: param,
			Expr: call.Args[i],
		})
	}
	if err := e.process(macro.Body, out); err != nil {
		return fmt.Errorf("expanding macro %q: %w", call.Name, err)
	}
	*out = append(*out, ast.ScopeEnd{Meta: ast.New(xcerr.NullPos)})
	return nil
}
