package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/xcerr"
)

func name(ident string) ast.Name {
	return ast.Name{Meta: ast.New(xcerr.NullPos), Ident: ident}
}

func TestScopeShadowingAndUnwind(t *testing.T) {
	s := NewScopes()
	require.NoError(t, s.AddName(xcerr.NullPos, "foo", 1))

	s.StartScope("")
	require.NoError(t, s.AddName(xcerr.NullPos, "foo", 2))
	v, err := s.Eval(name("foo"))
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	s.EndScope(false)

	v, err = s.Eval(name("foo"))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestNamespaceMergeExposesQualifiedNames(t *testing.T) {
	s := NewScopes()
	s.StartScope("point")
	require.NoError(t, s.AddName(xcerr.NullPos, "x", 10))
	s.EndScope(true)

	v, err := s.Eval(name("point.x"))
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

func TestDuplicateNameInSameScopeErrors(t *testing.T) {
	s := NewScopes()
	require.NoError(t, s.AddName(xcerr.NullPos, "foo", 1))
	err := s.AddName(xcerr.NullPos, "foo", 2)
	require.Error(t, err)
	xerr, ok := err.(*xcerr.Error)
	require.True(t, ok)
	assert.Equal(t, xcerr.KindDuplicateName, xerr.Kind)
}

func TestCyclicReferenceDetected(t *testing.T) {
	s := NewScopes()
	require.NoError(t, s.AddName(xcerr.NullPos, "a", name("b")))
	require.NoError(t, s.AddName(xcerr.NullPos, "b", name("a")))

	_, err := s.Eval(name("a"))
	require.Error(t, err)
	xerr, ok := err.(*xcerr.Error)
	require.True(t, ok)
	assert.Equal(t, xcerr.KindCyclicReference, xerr.Kind)
}

func TestFixupReevaluatesAgainstSnapshot(t *testing.T) {
	s := NewScopes()
	require.NoError(t, s.AddName(xcerr.NullPos, "x", 41))
	fx := s.GetFixup(name("x"))

	s.StartScope("")
	require.NoError(t, s.AddName(xcerr.NullPos, "x", 99))

	v, err := s.Eval(fx)
	require.NoError(t, err)
	assert.Equal(t, 41, v, "fixup must resolve against the scope stack captured at GetFixup time")
}

func TestExprBytesWidthSelection(t *testing.T) {
	s := NewScopes()
	_, b, err := s.ExprBytes(ast.IntLit{Meta: ast.New(xcerr.NullPos), Value: 0xFF})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, b)

	_, b, err = s.ExprBytes(ast.IntLit{Meta: ast.New(xcerr.NullPos), Value: 0x1234})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12}, b)
}
