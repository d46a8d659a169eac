// Package cpu6502 describes the NMOS 6502 instruction set: addressing
// modes, operand widths, and the mnemonic/mode to opcode mapping used by
// the code generator and the grammar's per-opcode rule set. It carries no
// execution behavior — only the static instruction table.
package cpu6502

// Mode identifies one of the NMOS 6502 addressing modes.
type Mode byte

const (
	Accumulator Mode = iota
	Absolute
	AbsoluteX
	AbsoluteY
	Immediate
	Implied
	Indirect
	IndirectX
	IndirectY
	Relative
	Zeropage
	ZeropageX
	ZeropageY
)

var modeNames = map[Mode]string{
	Accumulator: "accumulator",
	Absolute:    "absolute",
	AbsoluteX:   "absolute_x",
	AbsoluteY:   "absolute_y",
	Immediate:   "immediate",
	Implied:     "implied",
	Indirect:    "indirect",
	IndirectX:   "indirect_x",
	IndirectY:   "indirect_y",
	Relative:    "relative",
	Zeropage:    "zeropage",
	ZeropageX:   "zeropage_x",
	ZeropageY:   "zeropage_y",
}

func (m Mode) String() string { return modeNames[m] }

// argWidth gives the number of operand bytes following the opcode byte for
// each addressing mode.
var argWidth = map[Mode]int{
	Accumulator: 0,
	Absolute:    2,
	AbsoluteX:   2,
	AbsoluteY:   2,
	Immediate:   1,
	Implied:     0,
	Indirect:    2,
	IndirectX:   1,
	IndirectY:   1,
	Relative:    1,
	Zeropage:    1,
	ZeropageX:   1,
	ZeropageY:   1,
}

// ArgWidth returns the operand width, in bytes, for mode.
func ArgWidth(mode Mode) int {
	return argWidth[mode]
}

// promote16 maps an 8-bit-operand addressing mode to its 16-bit
// counterpart, used when a zeropage-width operand turns out to need a full
// 16-bit address. Relative has no promotion: a branch target is always a
// signed 8-bit displacement regardless of operand magnitude.
var promote16 = map[Mode]Mode{
	Zeropage:  Absolute,
	ZeropageX: AbsoluteX,
	ZeropageY: AbsoluteY,
}

// Promote16 returns the 16-bit-operand addressing mode corresponding to
// mode, if one exists.
func Promote16(mode Mode) (Mode, bool) {
	m, ok := promote16[mode]
	return m, ok
}

// Instruction describes one legal (mnemonic, addressing mode) combination.
type Instruction struct {
	Mnemonic string
	Mode     Mode
	Opcode   byte
	Length   byte // 1 + operand width
}

// opcodeTable is the NMOS-only mnemonic/mode -> opcode map. CMOS-only
// mnemonics (BRA, PHX, PLX, PHY, PLY, STZ, TRB, TSB) and the CMOS-added
// (zp) indirect addressing mode are intentionally absent.
var opcodeTable = map[string]map[Mode]byte{
	"adc": {Immediate: 0x69, Zeropage: 0x65, ZeropageX: 0x75, Absolute: 0x6D, AbsoluteX: 0x7D, AbsoluteY: 0x79, IndirectX: 0x61, IndirectY: 0x71},
	"and": {Immediate: 0x29, Zeropage: 0x25, ZeropageX: 0x35, Absolute: 0x2D, AbsoluteX: 0x3D, AbsoluteY: 0x39, IndirectX: 0x21, IndirectY: 0x31},
	"asl": {Accumulator: 0x0A, Zeropage: 0x06, ZeropageX: 0x16, Absolute: 0x0E, AbsoluteX: 0x1E},
	"bcc": {Relative: 0x90},
	"bcs": {Relative: 0xB0},
	"beq": {Relative: 0xF0},
	"bit": {Zeropage: 0x24, Absolute: 0x2C},
	"bmi": {Relative: 0x30},
	"bne": {Relative: 0xD0},
	"bpl": {Relative: 0x10},
	"brk": {Implied: 0x00},
	"bvc": {Relative: 0x50},
	"bvs": {Relative: 0x70},
	"clc": {Implied: 0x18},
	"cld": {Implied: 0xD8},
	"cli": {Implied: 0x58},
	"clv": {Implied: 0xB8},
	"cmp": {Immediate: 0xC9, Zeropage: 0xC5, ZeropageX: 0xD5, Absolute: 0xCD, AbsoluteX: 0xDD, AbsoluteY: 0xD9, IndirectX: 0xC1, IndirectY: 0xD1},
	"cpx": {Immediate: 0xE0, Zeropage: 0xE4, Absolute: 0xEC},
	"cpy": {Immediate: 0xC0, Zeropage: 0xC4, Absolute: 0xCC},
	"dec": {Zeropage: 0xC6, ZeropageX: 0xD6, Absolute: 0xCE, AbsoluteX: 0xDE},
	"dex": {Implied: 0xCA},
	"dey": {Implied: 0x88},
	"eor": {Immediate: 0x49, Zeropage: 0x45, ZeropageX: 0x55, Absolute: 0x4D, AbsoluteX: 0x5D, AbsoluteY: 0x59, IndirectX: 0x41, IndirectY: 0x51},
	"inc": {Zeropage: 0xE6, ZeropageX: 0xF6, Absolute: 0xEE, AbsoluteX: 0xFE},
	"inx": {Implied: 0xE8},
	"iny": {Implied: 0xC8},
	"jmp": {Absolute: 0x4C, Indirect: 0x6C},
	"jsr": {Absolute: 0x20},
	"lda": {Immediate: 0xA9, Zeropage: 0xA5, ZeropageX: 0xB5, Absolute: 0xAD, AbsoluteX: 0xBD, AbsoluteY: 0xB9, IndirectX: 0xA1, IndirectY: 0xB1},
	"ldx": {Immediate: 0xA2, Zeropage: 0xA6, ZeropageY: 0xB6, Absolute: 0xAE, AbsoluteY: 0xBE},
	"ldy": {Immediate: 0xA0, Zeropage: 0xA4, ZeropageX: 0xB4, Absolute: 0xAC, AbsoluteX: 0xBC},
	"lsr": {Accumulator: 0x4A, Zeropage: 0x46, ZeropageX: 0x56, Absolute: 0x4E, AbsoluteX: 0x5E},
	"nop": {Implied: 0xEA},
	"ora": {Immediate: 0x09, Zeropage: 0x05, ZeropageX: 0x15, Absolute: 0x0D, AbsoluteX: 0x1D, AbsoluteY: 0x19, IndirectX: 0x01, IndirectY: 0x11},
	"pha": {Implied: 0x48},
	"php": {Implied: 0x08},
	"pla": {Implied: 0x68},
	"plp": {Implied: 0x28},
	"rol": {Accumulator: 0x2A, Zeropage: 0x26, ZeropageX: 0x36, Absolute: 0x2E, AbsoluteX: 0x3E},
	"ror": {Accumulator: 0x6A, Zeropage: 0x66, ZeropageX: 0x76, Absolute: 0x6E, AbsoluteX: 0x7E},
	"rti": {Implied: 0x40},
	"rts": {Implied: 0x60},
	"sbc": {Immediate: 0xE9, Zeropage: 0xE5, ZeropageX: 0xF5, Absolute: 0xED, AbsoluteX: 0xFD, AbsoluteY: 0xF9, IndirectX: 0xE1, IndirectY: 0xF1},
	"sec": {Implied: 0x38},
	"sed": {Implied: 0xF8},
	"sei": {Implied: 0x78},
	"sta": {Zeropage: 0x85, ZeropageX: 0x95, Absolute: 0x8D, AbsoluteX: 0x9D, AbsoluteY: 0x99, IndirectX: 0x81, IndirectY: 0x91},
	"stx": {Zeropage: 0x86, ZeropageY: 0x96, Absolute: 0x8E},
	"sty": {Zeropage: 0x84, ZeropageX: 0x94, Absolute: 0x8C},
	"tax": {Implied: 0xAA},
	"tay": {Implied: 0xA8},
	"tsx": {Implied: 0xBA},
	"txa": {Implied: 0x8A},
	"txs": {Implied: 0x9A},
	"tya": {Implied: 0x98},
}

// Mnemonics lists every supported mnemonic, lowercase, in no particular
// order. Used by the grammar package to build its set of recognized
// instruction names.
var Mnemonics []string

func init() {
	Mnemonics = make([]string, 0, len(opcodeTable))
	for name := range opcodeTable {
		Mnemonics = append(Mnemonics, name)
	}
}

// Lookup returns the Instruction for mnemonic in the given addressing
// mode, if that combination is legal.
func Lookup(mnemonic string, mode Mode) (Instruction, bool) {
	modes, ok := opcodeTable[mnemonic]
	if !ok {
		return Instruction{}, false
	}
	opcode, ok := modes[mode]
	if !ok {
		return Instruction{}, false
	}
	return Instruction{
		Mnemonic: mnemonic,
		Mode:     mode,
		Opcode:   opcode,
		Length:   byte(1 + ArgWidth(mode)),
	}, true
}

// Variants returns every legal addressing-mode variant of mnemonic.
func Variants(mnemonic string) []Instruction {
	modes, ok := opcodeTable[mnemonic]
	if !ok {
		return nil
	}
	out := make([]Instruction, 0, len(modes))
	for mode, opcode := range modes {
		out = append(out, Instruction{
			Mnemonic: mnemonic,
			Mode:     mode,
			Opcode:   opcode,
			Length:   byte(1 + ArgWidth(mode)),
		})
	}
	return out
}

// IsMnemonic reports whether name is a known instruction mnemonic.
func IsMnemonic(name string) bool {
	_, ok := opcodeTable[name]
	return ok
}
