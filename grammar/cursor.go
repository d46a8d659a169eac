package grammar

import "github.com/eanderton/xcomp/xcerr"

// errBox carries the first hard parse error encountered while scanning,
// shared by reference across every recursive-descent call so that a
// malformed-but-recognized construct (an unterminated string, a bad
// escape) can abort parsing immediately instead of silently backtracking
// into "unrecognized statement" noise.
type errBox struct {
	err *xcerr.Error
}

// cursor is a scan position over a source text paired with the shared
// error box, modeled on asm/fstring.go's fstring cursor from the teacher
// assembler.
type cursor struct {
	text    string
	pos     int
	context string
	errs    *errBox
}

func newCursor(text, context string) *cursor {
	return &cursor{text: text, pos: 0, context: context, errs: &errBox{}}
}

func (c cursor) eof() bool {
	return c.pos >= len(c.text)
}

func (c cursor) peek() byte {
	if c.eof() {
		return 0
	}
	return c.text[c.pos]
}

func (c cursor) posAt(start int) xcerr.Pos {
	return xcerr.Pos{Start: start, End: c.pos, Context: c.context}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentChar(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}
