package printer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eanderton/xcomp/grammar"
)

// roundTrip re-parses the printed form of src and asserts that it parses
// and yields the same number of statements; it compares statement counts
// rather than raw text or full statement contents.
func roundTrip(t *testing.T, src string) []byte {
	t.Helper()
	p := grammar.NewParser()
	stmts, err := p.Parse(src, "t")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, stmts))

	reStmts, err := p.Parse(buf.String(), "t2")
	require.NoError(t, err, "printed form must re-parse: %s", buf.String())
	assert.Equal(t, len(stmts), len(reStmts), "printed form: %s", buf.String())
	return buf.Bytes()
}

func TestRoundTripSegmentLabelOp(t *testing.T) {
	roundTrip(t, ".text $0800\nstart:\n    lda #$20\n    adc point.x\n")
}

func TestRoundTripStruct(t *testing.T) {
	roundTrip(t, ".struct point\n    x 1\n    y 1\n.endstruct\n")
}

func TestRoundTripMacro(t *testing.T) {
	roundTrip(t, ".macro foo, v\n    adc #v\n.endmacro\n")
}

func TestRoundTripScopeMerge(t *testing.T) {
	roundTrip(t, ".scope point\n.def x $05\n.endscope merge\n")
}

func TestRoundTripExpressionPrecedence(t *testing.T) {
	out := roundTrip(t, ".def x 1 + 2 * 3\n")
	assert.Contains(t, string(out), "1 + 2 * 3")
}

func TestRoundTripForcedWidthAndByteExtraction(t *testing.T) {
	roundTrip(t, ".text $0800\nadc !$05\nlda <$1234\nlda >$1234\n")
}
