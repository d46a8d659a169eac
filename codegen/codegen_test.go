package codegen

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/grammar"
	"github.com/eanderton/xcomp/preprocessor"
	"github.com/eanderton/xcomp/source"
	"github.com/eanderton/xcomp/xcerr"
)

func reduceAndExpand(mgr *source.Manager, name string) ([]ast.Stmt, error) {
	parser := grammar.NewParser()
	return preprocessor.Expand(mgr, func(m *source.Manager, name string) ([]ast.Stmt, error) {
		text, err := m.GetText(name)
		if err != nil {
			return nil, err
		}
		return parser.Parse(text, name)
	}, name)
}

// assemble reduces and generates code for src, returning the populated
// byte range of the image. Grounded on asm_test.go's assemble helper, but
// routed through the full reduce/preprocess/codegen pipeline instead of a
// single-pass assembler.
func assemble(t *testing.T, src string) ([]byte, *Generator) {
	t.Helper()
	mgr := source.New()
	mgr.Inject("test.asm", src)
	stmts, err := reduceAndExpand(mgr, "test.asm")
	require.NoError(t, err)

	gen := New(mgr)
	err = gen.Run(stmts)
	require.NoError(t, err)

	start, end := gen.Bounds()
	return gen.Image[start:end], gen
}

func hexBytes(b []byte) string {
	s := ""
	for _, v := range b {
		s += fmt.Sprintf("%02X", v)
	}
	return s
}

func TestRelativeBranchToSelf(t *testing.T) {
	src := ".text $0100\nfoo:\n    beq foo\n"
	body, _ := assemble(t, src)
	assert.Equal(t, "F0FE", hexBytes(body))
}

func TestForwardReferenceResolvedAtEnd(t *testing.T) {
	src := ".text $0800\nnop\nbcc loop\nloop: nop\n"
	body, _ := assemble(t, src)
	assert.Equal(t, "EA9000EA", hexBytes(body))
}

func TestZeropageVsAbsoluteAutoSelection(t *testing.T) {
	src := ".text $0800\n.def x $66\nadc x\n.def y $1234\nadc y\n"
	body, _ := assemble(t, src)
	assert.Equal(t, "65666D3412", hexBytes(body))
}

func TestStringStorageUnderPETSCII(t *testing.T) {
	src := ".encoding \"petscii-c64en-uc\"\n.data $0200\n.byte \"£\", \"π\", \"←\", \"↑\"\n"
	body, _ := assemble(t, src)
	assert.Equal(t, "5CFF5F5E", hexBytes(body))
}

func TestMacroHygiene(t *testing.T) {
	src := ".macro foo, v\n    adc #v\n.endmacro\n.text $0800\nfoo 123\nfoo 45\n"
	body, _ := assemble(t, src)
	assert.Equal(t, "697B692D", hexBytes(body))
}

func TestScopeShadowing(t *testing.T) {
	src := ".data $0200\n.def foo $5678\n.scope\n.def foo $1234\n.word foo\n.endscope\n.word foo\n"
	body, _ := assemble(t, src)
	assert.Equal(t, "34127856", hexBytes(body))
}

func TestBranchOutOfRange(t *testing.T) {
	src := ".text $0800\nbcc target\n"
	for i := 0; i < 200; i++ {
		src += "nop\n"
	}
	src += "target: nop\n"
	_, err := assembleErr(t, src)
	require.Error(t, err)
	xerr, ok := err.(*xcerr.Error)
	require.True(t, ok)
	assert.Equal(t, xcerr.KindBranchOutOfRange, xerr.Kind)
}

func assembleErr(t *testing.T, src string) ([]byte, error) {
	t.Helper()
	mgr := source.New()
	mgr.Inject("test.asm", src)
	stmts, err := reduceAndExpand(mgr, "test.asm")
	if err != nil {
		return nil, err
	}
	gen := New(mgr)
	if err := gen.Run(stmts); err != nil {
		return nil, err
	}
	start, end := gen.Bounds()
	return gen.Image[start:end], nil
}

func TestSegmentBoundsInvariant(t *testing.T) {
	src := ".text $0800\nnop\nnop\n.data $0200\nnop\n"
	_, gen := assemble(t, src)
	start, end := gen.Bounds()
	assert.LessOrEqual(t, start, end)
	assert.Equal(t, 0x0200, start)
	assert.Equal(t, 0x0802, end)
}

func TestSymbolPublishedOnLabel(t *testing.T) {
	src := ".text $0800\nstart:\n    nop\n"
	_, gen := assemble(t, src)
	addr, ok := gen.Symbols.Get("start")
	require.True(t, ok)
	assert.Equal(t, 0x0800, addr)
}

func TestStructFieldsPublishToParent(t *testing.T) {
	src := ".data $0200\n.struct point\n    x 1\n    y 1\n.endstruct\n"
	_, gen := assemble(t, src)
	_, ok := gen.Symbols.Get("point.x")
	assert.True(t, ok)
	_, ok = gen.Symbols.Get("point.y")
	assert.True(t, ok)
}

func TestScopeEndMergeExposesQualifiedName(t *testing.T) {
	src := ".data $0200\n.scope point\n.def x $05\n.endscope merge\n.byte point.x\n"
	body, _ := assemble(t, src)
	assert.Equal(t, "05", hexBytes(body))
}

func TestForcedSixteenBitWidth(t *testing.T) {
	src := ".text $0800\n.def x $05\nadc !x\n"
	body, _ := assemble(t, src)
	assert.Equal(t, "6D0500", hexBytes(body))
}
