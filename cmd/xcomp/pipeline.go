package main

import (
	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/grammar"
	"github.com/eanderton/xcomp/preprocessor"
	"github.com/eanderton/xcomp/source"
)

// reduce runs the source-loading, grammar-reduction, and macro/include
// expansion stages, common to every subcommand. It returns the
// source.Manager alongside the flattened statement stream so callers (build)
// can reuse it to resolve .bin includes during code generation.
func reduce(includePaths []string, entry string) (*source.Manager, []ast.Stmt, error) {
	src := source.New(includePaths...)
	parser := grammar.NewParser()
	parse := func(src *source.Manager, name string) ([]ast.Stmt, error) {
		text, err := src.GetText(name)
		if err != nil {
			return nil, err
		}
		return parser.Parse(text, name)
	}
	stmts, err := preprocessor.Expand(src, parse, entry)
	return src, stmts, err
}
