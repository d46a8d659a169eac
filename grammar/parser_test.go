package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/xcerr"
)

func TestParseSegmentAndLabelAndOp(t *testing.T) {
	p := NewParser()
	stmts, err := p.Parse(".text $0800\nstart:\n    lda #$20\n", "t")
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	seg, ok := stmts[0].(ast.Segment)
	require.True(t, ok)
	assert.Equal(t, ast.SegText, seg.Name)

	lbl, ok := stmts[1].(ast.Label)
	require.True(t, ok)
	assert.Equal(t, "start", lbl.Name)

	op, ok := stmts[2].(ast.Op)
	require.True(t, ok)
	assert.Equal(t, "lda", op.Mnemonic)
	assert.True(t, op.Immediate)
}

func TestParseMacroDefWithoutParens(t *testing.T) {
	p := NewParser()
	stmts, err := p.Parse(".macro foo, v\n    adc #v\n.endmacro\n", "t")
	require.NoError(t, err)
	require.Len(t, stmts, 1)

	def, ok := stmts[0].(ast.MacroDef)
	require.True(t, ok)
	assert.Equal(t, "foo", def.Name)
	assert.Equal(t, []string{"v"}, def.Params)
}

func TestParseMacroDefWithParens(t *testing.T) {
	p := NewParser()
	stmts, err := p.Parse(".macro foo(a, b)\n    nop\n.endmacro\n", "t")
	require.NoError(t, err)
	def, ok := stmts[0].(ast.MacroDef)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, def.Params)
}

func TestForcedWidthPrefixParses(t *testing.T) {
	p := NewParser()
	stmts, err := p.Parse("adc !$05\n", "t")
	require.NoError(t, err)
	op := stmts[0].(ast.Op)
	u, ok := op.Arg.(ast.Unary)
	require.True(t, ok)
	assert.Equal(t, ast.OpAs16, u.Op)
}

func TestUnterminatedMacroErrors(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(".macro foo\n    nop\n", "t")
	require.Error(t, err)
	xerr, ok := err.(*xcerr.Error)
	require.True(t, ok)
	assert.Equal(t, xcerr.KindParseError, xerr.Kind)
}
