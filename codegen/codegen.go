// Package codegen implements the code generator: it walks the expanded
// statement stream, maintains the four fixed memory segments backed by a
// single flat 64KiB image, resolves names and deferred (forward-reference)
// expressions through eval.Scopes, and selects the narrowest legal
// addressing mode for each instruction. Structurally grounded on
// asm/asm.go's assembler/segment pipeline; semantics (segment origins,
// fixup promotion-on-forward-reference) grounded on
// xcomp/compiler.py's Compiler.
package codegen

import (
	log "github.com/sirupsen/logrus"

	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/cpu6502"
	"github.com/eanderton/xcomp/eval"
	"github.com/eanderton/xcomp/source"
	"github.com/eanderton/xcomp/xcerr"
)

// segmentOrigins fixes the starting address of each of the four segments
// within the shared 64KiB image, per spec.
var segmentOrigins = map[ast.SegmentID]int{
	ast.SegZero: 0x0000,
	ast.SegBss:  0x0100,
	ast.SegData: 0x0200,
	ast.SegText: 0x0800,
}

type fixupKind int

const (
	fixValue fixupKind = iota
	fixRelative
)

type fixup struct {
	pos      xcerr.Pos
	val      *eval.Fixup
	addr     int
	width    int // exact byte count to emit once resolved
	kind     fixupKind
	instrEnd int    // for fixRelative: address immediately following the operand byte
	mnemonic string // for diagnostics
}

// Generator accumulates a compiled memory image plus the symbol table
// published from Label and Struct field declarations.
type Generator struct {
	Image    [0x10000]byte
	Symbols  *SymbolMap
	Pragmas  map[string]eval.Value
	Source   *source.Manager // used only to resolve .bin includes

	scope   *eval.Scopes
	cur     ast.SegmentID
	offsets map[ast.SegmentID]int
	fixups  []fixup
	lo, hi  int // lowest address and one past the highest address reached by advance
}

// New creates a Generator ready to Run a statement stream. src is used to
// resolve .bin includes; it may be nil if the program contains none.
func New(src *source.Manager) *Generator {
	offsets := make(map[ast.SegmentID]int, len(segmentOrigins))
	for id, origin := range segmentOrigins {
		offsets[id] = origin
	}
	return &Generator{
		Symbols: NewSymbolMap(),
		Pragmas: make(map[string]eval.Value),
		Source:  src,
		scope:   eval.NewScopes(),
		cur:     ast.SegText,
		offsets: offsets,
	}
}

func (g *Generator) pc() int { return g.offsets[g.cur] }

// Bounds reports the lowest address written and one past the highest
// address written across all four segments, for front ends that need to
// frame the image (e.g. slicing out just the populated range for a raw or
// PRG dump). Both are 0 when nothing has been emitted.
func (g *Generator) Bounds() (start, end int) {
	return g.lo, g.hi
}

func (g *Generator) advance(n int) (addr int) {
	addr = g.offsets[g.cur]
	g.offsets[g.cur] += n
	if n > 0 && (g.hi == 0 || addr < g.lo) {
		g.lo = addr
	}
	if n > 0 && addr+n > g.hi {
		g.hi = addr + n
	}
	return addr
}

// Run compiles the entire statement stream, then performs the final,
// must-resolve fixup pass (the spec's "End" step folded into Run for a
// single-shot batch compiler front end).
func (g *Generator) Run(stmts []ast.Stmt) error {
	g.scope.StartScope("")
	for _, stmt := range stmts {
		if err := g.compile(stmt); err != nil {
			return err
		}
	}
	if err := g.resolveFixups(false); err != nil {
		return err
	}
	g.scope.EndScope(false)
	return g.End()
}

// End performs the must-resolve fixup pass: any expression still deferred
// at this point is a genuinely unresolved reference.
func (g *Generator) End() error {
	return g.resolveFixups(true)
}

func (g *Generator) compile(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case ast.Comment:
		return nil
	case ast.Encoding:
		return g.compileEncoding(s)
	case ast.Segment:
		return g.compileSegment(s)
	case ast.Include:
		return xcerr.New(xcerr.KindParseError, s.Position(),
			"internal error: unexpanded .include reached code generation")
	case ast.BinInclude:
		return g.compileBinInclude(s)
	case ast.ScopeBegin:
		g.scope.StartScope(s.Namespace)
		return nil
	case ast.ScopeEnd:
		if err := g.resolveFixups(false); err != nil {
			return err
		}
		g.scope.EndScope(s.Merge)
		return nil
	case ast.Define:
		return g.scope.AddName(s.Position(), s.Name, s.Expr)
	case ast.Label:
		return g.compileLabel(s)
	case ast.Storage:
		return g.compileStorage(s)
	case ast.Dim:
		return g.compileDim(s)
	case ast.Var:
		return g.compileVar(s)
	case ast.Struct:
		return g.compileStruct(s)
	case ast.Pragma:
		return g.compilePragma(s)
	case ast.MacroDef, ast.MacroCall:
		return xcerr.New(xcerr.KindParseError, stmt.Position(),
			"internal error: unexpanded macro construct reached code generation")
	case ast.Op:
		return g.compileOp(s)
	default:
		return xcerr.New(xcerr.KindParseError, stmt.Position(), "unhandled statement type %T", stmt)
	}
}

var knownEncodings = map[string]bool{
	"utf-8": true, "utf8": true, "ascii": true,
	"petscii-c64en-uc": true, "petscii-c64en-lc": true,
}

func (g *Generator) compileEncoding(s ast.Encoding) error {
	if !knownEncodings[s.Name] {
		return xcerr.New(xcerr.KindInvalidEncoding, s.Position(), "invalid string codec %q", s.Name)
	}
	g.scope.Encoding = s.Name
	return nil
}

func (g *Generator) compileSegment(s ast.Segment) error {
	g.cur = s.Name
	if s.Offset != nil {
		v, err := g.scope.Eval(s.Offset)
		if err != nil {
			return err
		}
		addr, ok := v.(int)
		if !ok {
			return xcerr.New(xcerr.KindAddressRangeError, s.Position(), "segment offset must be an integer")
		}
		g.offsets[g.cur] = addr
	}
	log.Debugf("codegen: segment %s @ $%04X", s.Name, g.offsets[g.cur])
	return nil
}

func (g *Generator) compileBinInclude(s ast.BinInclude) error {
	if g.Source == nil {
		return xcerr.New(xcerr.KindFileNotFound, s.Position(), "no source manager configured for .bin %q", s.Filename)
	}
	data, err := g.Source.GetBytes(s.Filename)
	if err != nil {
		return err
	}
	addr := g.advance(len(data))
	copy(g.Image[addr:], data)
	log.Debugf("codegen: .bin %q -> $%04X (%d bytes)", s.Filename, addr, len(data))
	return nil
}

func (g *Generator) compileLabel(s ast.Label) error {
	addr := g.pc()
	if err := g.scope.AddName(s.Position(), s.Name, addr); err != nil {
		return err
	}
	g.Symbols.Set(g.scope.Qualify(s.Name), addr)
	return nil
}

// serializeInt encodes v as width little-endian bytes, masking to the
// requested width the way asm/util.go's toBytes does.
func serializeInt(v, width int) []byte {
	out := make([]byte, width)
	for i := 0; i < width; i++ {
		out[i] = byte(v >> uint(8*i))
	}
	return out
}

func fitsWidth(v, width int) bool {
	if width >= 4 {
		return true
	}
	max := 1 << uint(8*width)
	return v >= -(max/2) && v < max
}

func (g *Generator) compileStorage(s ast.Storage) error {
	for _, item := range s.Items {
		if err := g.compileStorageItem(s.Width, item); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) compileStorageItem(width int, item ast.Expr) error {
	value, err := g.scope.Eval(item)
	if err != nil {
		// Forward reference: reserve exactly `width` bytes and defer.
		addr := g.advance(width)
		g.fixups = append(g.fixups, fixup{
			pos:   item.Position(),
			val:   g.scope.GetFixup(item),
			addr:  addr,
			width: width,
			kind:  fixValue,
		})
		return nil
	}
	switch v := value.(type) {
	case int:
		if !fitsWidth(v, width) {
			return xcerr.New(xcerr.KindOperandTooLarge, item.Position(),
				"value %d does not fit in %d byte(s)", v, width)
		}
		addr := g.advance(width)
		copy(g.Image[addr:], serializeInt(v, width))
		return nil
	case string:
		if width != 1 {
			return xcerr.New(xcerr.KindEncodingError, item.Position(),
				"string literal not permitted in a %d-byte storage directive", width)
		}
		encoded, err := eval.EncodeString(g.scope.Encoding, v)
		if err != nil {
			return xcerr.New(xcerr.KindEncodingError, item.Position(), "%v", err)
		}
		addr := g.advance(len(encoded))
		copy(g.Image[addr:], encoded)
		return nil
	default:
		return xcerr.New(xcerr.KindEncodingError, item.Position(), "value of type %T not supported as storage", value)
	}
}

func (g *Generator) compileDim(s ast.Dim) error {
	countVal, err := g.scope.Eval(s.Count)
	if err != nil {
		return err
	}
	count, ok := countVal.(int)
	if !ok {
		return xcerr.New(xcerr.KindOperandTooLarge, s.Position(), ".dim count must be an integer")
	}
	_, fillBytes, err := g.scope.ExprBytes(s.Fill)
	if err != nil {
		return err
	}
	addr := g.pc()
	if err := g.scope.AddName(s.Position(), s.Name, addr); err != nil {
		return err
	}
	g.Symbols.Set(g.scope.Qualify(s.Name), addr)
	total := count * len(fillBytes)
	base := g.advance(total)
	for i := 0; i < count; i++ {
		copy(g.Image[base+i*len(fillBytes):], fillBytes)
	}
	return nil
}

func (g *Generator) compileVar(s ast.Var) error {
	sizeVal, err := g.scope.Eval(s.Size)
	if err != nil {
		return err
	}
	size, ok := sizeVal.(int)
	if !ok {
		return xcerr.New(xcerr.KindOperandTooLarge, s.Position(), ".var size must be an integer")
	}
	addr := g.pc()
	if err := g.scope.AddName(s.Position(), s.Name, addr); err != nil {
		return err
	}
	if err := g.scope.AddName(s.Position(), s.Name+".size", size); err != nil {
		return err
	}
	g.Symbols.Set(g.scope.Qualify(s.Name), addr)

	base := g.advance(size)
	if s.Fill == nil {
		return nil
	}
	_, fillBytes, err := g.scope.ExprBytes(s.Fill)
	if err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		g.Image[base+i] = fillBytes[i%len(fillBytes)]
	}
	return nil
}

// compileStruct lays the fields out in a transient segment starting at
// zero: each field's symbol is its offset within the struct, and the
// current segment is neither written nor advanced.
func (g *Generator) compileStruct(s ast.Struct) error {
	base := 0
	if err := g.scope.AddName(s.Position(), s.Name, base); err != nil {
		return err
	}
	g.Symbols.Set(g.scope.Qualify(s.Name), base)

	offset := 0
	for _, field := range s.Fields {
		fieldAddr := base + offset
		fullName := s.Name + "." + field.Name
		if err := g.scope.AddName(s.Position(), fullName, fieldAddr); err != nil {
			return err
		}
		g.Symbols.Set(g.scope.Qualify(fullName), fieldAddr)
		offset += field.Width
	}
	if err := g.scope.AddName(s.Position(), s.Name+".size", offset); err != nil {
		return err
	}
	return nil
}

func (g *Generator) compilePragma(s ast.Pragma) error {
	value, err := g.scope.Eval(s.Value)
	if err != nil {
		return err
	}
	g.Pragmas[s.Name] = value
	return nil
}

// branchRange reports whether offset fits in a signed 8-bit displacement.
func branchRange(offset int) bool {
	return offset >= -128 && offset <= 127
}

func (g *Generator) compileOp(s ast.Op) error {
	if s.Arg == nil {
		return g.compileImpliedOp(s)
	}
	mode := g.candidateMode(s)
	if mode == cpu6502.Relative {
		return g.compileBranch(s)
	}

	value, err := g.scope.Eval(s.Arg)
	if err != nil {
		return g.deferOp(s, promoteOrSame(mode), err)
	}
	v, ok := value.(int)
	if !ok {
		return xcerr.New(xcerr.KindOperandTooLarge, s.Arg.Position(),
			"operand for %s must evaluate to an integer", s.Mnemonic)
	}

	finalMode := mode
	if !forced16(s.Arg) && fitsWidth(v, 1) && mode != cpu6502.Immediate {
		if narrow, ok := narrowestFit(mode); ok {
			finalMode = narrow
		}
	}
	if _, ok := cpu6502.Lookup(s.Mnemonic, finalMode); !ok {
		if wide, ok := cpu6502.Promote16(finalMode); ok {
			finalMode = wide
		}
	}
	instr, ok := cpu6502.Lookup(s.Mnemonic, finalMode)
	if !ok {
		return xcerr.New(xcerr.KindAddressRangeError, s.Position(),
			"no addressing mode of %s matches this operand", s.Mnemonic)
	}
	width := cpu6502.ArgWidth(instr.Mode)
	if !fitsWidth(v, width) {
		return xcerr.New(xcerr.KindOperandTooLarge, s.Arg.Position(),
			"operand %d does not fit %s's %d-byte argument", v, s.Mnemonic, width)
	}
	addr := g.advance(1 + width)
	g.Image[addr] = instr.Opcode
	copy(g.Image[addr+1:], serializeInt(v, width))
	return nil
}

// forced16 reports whether expr's surface syntax explicitly widens the
// operand, overriding the default narrowest-fit addressing mode selection
// regardless of the resolved value. This holds for the `!` prefix
// (ast.OpAs16) and for a numeric literal written with 16-bit surface form
// (more than two hex digits, e.g. $0012, as opposed to $12).
func forced16(expr ast.Expr) bool {
	switch e := expr.(type) {
	case ast.Unary:
		return e.Op == ast.OpAs16
	case ast.IntLit:
		return !e.Width8
	}
	return false
}

func promoteOrSame(mode cpu6502.Mode) cpu6502.Mode {
	if wide, ok := cpu6502.Promote16(mode); ok {
		return wide
	}
	return mode
}

// narrowestFit maps an absolute-family mode back to its zeropage-family
// counterpart, the inverse of cpu6502.Promote16, used once an eagerly
// evaluated operand is known to fit in one byte.
func narrowestFit(mode cpu6502.Mode) (cpu6502.Mode, bool) {
	switch mode {
	case cpu6502.Absolute:
		return cpu6502.Zeropage, true
	case cpu6502.AbsoluteX:
		return cpu6502.ZeropageX, true
	case cpu6502.AbsoluteY:
		return cpu6502.ZeropageY, true
	}
	return mode, false
}

// candidateMode picks the addressing-mode family implied by an operand's
// surface syntax (indirection and indexing register), before the operand
// value itself is known. For non-indirect, non-immediate operands it
// returns the 16-bit (absolute-family) form: once the operand is evaluated
// the mode is narrowed to its zeropage counterpart if the value fits in a
// byte, and an operand that can't yet be resolved keeps the wide form.
func (g *Generator) candidateMode(s ast.Op) cpu6502.Mode {
	if s.Indirect {
		switch s.Indexed {
		case "x":
			return cpu6502.IndirectX
		case "y":
			return cpu6502.IndirectY
		default:
			return cpu6502.Indirect
		}
	}
	if s.Immediate {
		return cpu6502.Immediate
	}
	if _, ok := cpu6502.Lookup(s.Mnemonic, cpu6502.Relative); ok {
		return cpu6502.Relative
	}
	switch s.Indexed {
	case "x":
		return cpu6502.AbsoluteX
	case "y":
		return cpu6502.AbsoluteY
	default:
		return cpu6502.Absolute
	}
}

func (g *Generator) deferOp(s ast.Op, mode cpu6502.Mode, cause error) error {
	instr, ok := cpu6502.Lookup(s.Mnemonic, mode)
	if !ok {
		return cause
	}
	width := cpu6502.ArgWidth(instr.Mode)
	addr := g.advance(1 + width)
	g.Image[addr] = instr.Opcode
	g.fixups = append(g.fixups, fixup{
		pos:      s.Arg.Position(),
		val:      g.scope.GetFixup(s.Arg),
		addr:     addr + 1,
		width:    width,
		kind:     fixValue,
		mnemonic: s.Mnemonic,
	})
	log.Debugf("codegen: deferred operand for %s at $%04X (mode %s)", s.Mnemonic, addr, instr.Mode)
	return nil
}

func (g *Generator) compileImpliedOp(s ast.Op) error {
	instr, ok := cpu6502.Lookup(s.Mnemonic, cpu6502.Implied)
	if !ok {
		instr, ok = cpu6502.Lookup(s.Mnemonic, cpu6502.Accumulator)
	}
	if !ok {
		return xcerr.New(xcerr.KindAddressRangeError, s.Position(),
			"%s requires an operand", s.Mnemonic)
	}
	addr := g.advance(1)
	g.Image[addr] = instr.Opcode
	return nil
}

func (g *Generator) compileBranch(s ast.Op) error {
	instr, ok := cpu6502.Lookup(s.Mnemonic, cpu6502.Relative)
	if !ok {
		return xcerr.New(xcerr.KindAddressRangeError, s.Position(), "%s has no relative addressing form", s.Mnemonic)
	}
	addr := g.advance(2)
	g.Image[addr] = instr.Opcode
	instrEnd := addr + 2

	value, err := g.scope.Eval(s.Arg)
	if err != nil {
		g.fixups = append(g.fixups, fixup{
			pos:      s.Arg.Position(),
			val:      g.scope.GetFixup(s.Arg),
			addr:     addr + 1,
			width:    1,
			kind:     fixRelative,
			instrEnd: instrEnd,
			mnemonic: s.Mnemonic,
		})
		return nil
	}
	target, ok := value.(int)
	if !ok {
		return xcerr.New(xcerr.KindOperandTooLarge, s.Arg.Position(), "branch target must be an integer")
	}
	offset := target - instrEnd
	if !branchRange(offset) {
		return xcerr.New(xcerr.KindBranchOutOfRange, s.Position(),
			"branch offset %d for %s is out of range", offset, s.Mnemonic)
	}
	g.Image[addr+1] = byte(int8(offset))
	return nil
}

func (g *Generator) resolveFixups(mustPass bool) error {
	var remaining []fixup
	for _, fx := range g.fixups {
		value, err := g.scope.Eval(fx.val)
		if err != nil {
			if mustPass {
				return xcerr.New(xcerr.KindUnresolvedFixup, fx.pos, "unresolved reference: %v", err)
			}
			remaining = append(remaining, fx)
			continue
		}
		v, ok := value.(int)
		if !ok {
			if mustPass {
				return xcerr.New(xcerr.KindUnresolvedFixup, fx.pos, "fixup did not resolve to an integer")
			}
			remaining = append(remaining, fx)
			continue
		}
		switch fx.kind {
		case fixRelative:
			offset := v - fx.instrEnd
			if !branchRange(offset) {
				return xcerr.New(xcerr.KindBranchOutOfRange, fx.pos,
					"branch offset %d for %s is out of range", offset, fx.mnemonic)
			}
			g.Image[fx.addr] = byte(int8(offset))
		default:
			if !fitsWidth(v, fx.width) {
				return xcerr.New(xcerr.KindOperandTooLarge, fx.pos,
					"resolved value %d does not fit in %d byte(s)", v, fx.width)
			}
			copy(g.Image[fx.addr:], serializeInt(v, fx.width))
		}
	}
	g.fixups = remaining
	if mustPass && len(remaining) > 0 {
		return xcerr.New(xcerr.KindUnresolvedFixup, remaining[0].pos, "unresolved reference")
	}
	return nil
}
