// Package ast defines the flat statement and expression stream produced by
// the grammar reducer and consumed by the preprocessor and code generator.
// Statement and expression nodes are tagged variants dispatched with type
// switches, rather than virtual methods, so that each phase keeps its own
// behavior local instead of spreading it across every node type.
package ast

import "github.com/eanderton/xcomp/xcerr"

// Stmt is implemented by every statement-level node in the flattened
// program stream.
type Stmt interface {
	Position() xcerr.Pos
	stmt()
}

// Expr is implemented by every expression-tree node.
type Expr interface {
	Position() xcerr.Pos
	expr()
}

type Meta struct {
	Pos xcerr.Pos
}

func (b Meta) Position() xcerr.Pos { return b.Pos }

// --- Statements ---

// Comment is retained in the stream so the printer can round-trip it.
// Trailing is true when the comment shared a line with a preceding
// statement.
type Comment struct {
	Meta
	Text     string
	Trailing bool
}

func (Comment) stmt() {}

// Encoding sets the string-literal encoding used by subsequent Storage
// items, via the `.encoding` directive.
type Encoding struct {
	Meta
	Name string
}

func (Encoding) stmt() {}

// SegmentID names one of the four fixed memory segments.
type SegmentID byte

const (
	SegZero SegmentID = iota
	SegBss
	SegData
	SegText
)

func (s SegmentID) String() string {
	switch s {
	case SegZero:
		return "zero"
	case SegBss:
		return "bss"
	case SegData:
		return "data"
	case SegText:
		return "text"
	default:
		return "unknown"
	}
}

// Segment switches the active output segment, optionally seeking to an
// explicit offset within it.
type Segment struct {
	Meta
	Name   SegmentID
	Offset Expr // nil if unspecified
}

func (Segment) stmt() {}

// Include splices the reduced statements of another source file into the
// stream at this point.
type Include struct {
	Meta
	Filename string
}

func (Include) stmt() {}

// BinInclude blits the raw bytes of a file directly into the current
// segment.
type BinInclude struct {
	Meta
	Filename string
}

func (BinInclude) stmt() {}

// ScopeBegin opens a new name scope, optionally namespaced (`.scope NAME`
// uses the namespace form; bare `.scope` and macro-call expansion open an
// anonymous scope).
type ScopeBegin struct {
	Meta
	Namespace string // "" if anonymous
}

func (ScopeBegin) stmt() {}

// ScopeEnd closes the most recently opened scope.
type ScopeEnd struct {
	Meta
	Merge bool // true if the closing scope's names fold into the parent
}

func (ScopeEnd) stmt() {}

// Define binds name to expr in the current scope.
type Define struct {
	Meta
	Name string
	Expr Expr
}

func (Define) stmt() {}

// Label binds name to the current output offset in the current scope.
type Label struct {
	Meta
	Name string
}

func (Label) stmt() {}

// Storage emits a sequence of items. Integer items are each Width bytes
// wide (1, 2, or 4); string items are accepted only when Width is 1 and
// take as many bytes as their encoding under the current `.encoding`.
type Storage struct {
	Meta
	Width int
	Items []Expr
}

func (Storage) stmt() {}

// Dim reserves Count copies of Fill's serialized bytes.
type Dim struct {
	Meta
	Name  string
	Count Expr
	Fill  Expr
}

func (Dim) stmt() {}

// Var binds Name and Name+".size" and reserves Size bytes initialized from
// Fill (or zero-filled if Fill is nil).
type Var struct {
	Meta
	Name string
	Size Expr
	Fill Expr
}

func (Var) stmt() {}

// StructField is one field of a Struct declaration.
type StructField struct {
	Name  string
	Width int
}

// Struct declares a named aggregate; codegen republishes each field as
// Name+"."+field in the parent scope.
type Struct struct {
	Meta
	Name   string
	Fields []StructField
}

func (Struct) stmt() {}

// Pragma records a compiler directive/value pair, queryable later by name
// (e.g. a "c64_prg_start" pragma consulted by the PRG output formatter).
type Pragma struct {
	Meta
	Name  string
	Value Expr
}

func (Pragma) stmt() {}

// MacroDef declares a reusable statement template.
type MacroDef struct {
	Meta
	Name   string
	Params []string
	Body   []Stmt
}

func (MacroDef) stmt() {}

// MacroCall requests the expansion of a previously defined macro.
type MacroCall struct {
	Meta
	Name string
	Args []Expr
}

func (MacroCall) stmt() {}

// Op emits one CPU instruction. It carries no addressing mode: the code
// generator selects the narrowest mode the operand and mnemonic support,
// starting from the surface syntax recorded here (e.g. parenthesized forms
// set Indirect).
type Op struct {
	Meta
	Mnemonic  string
	Arg       Expr // nil for implied/accumulator instructions
	Immediate bool // true if the operand was written with a leading '#'
	Indirect  bool
	Indexed   string // "", "x", or "y"
}

func (Op) stmt() {}

// --- Expressions ---

// IntLit is an integer literal. Width8 records whether the literal's
// surface form (decimal < 256, one or two hex digits, etc.) implies an
// 8-bit width hint for operand-size selection.
type IntLit struct {
	Meta
	Value  int
	Radix  int
	Width8 bool
}

func (IntLit) expr() {}

// StringLit is a quoted string literal.
type StringLit struct {
	Meta
	Value string
}

func (StringLit) expr() {}

// Name references a previously defined identifier.
type Name struct {
	Meta
	Ident string
}

func (Name) expr() {}

// UnaryOp identifies a unary expression operator.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpBitNot
	OpLobyte
	OpHibyte
	OpAs8
	OpAs16
)

// Unary is a unary expression node.
type Unary struct {
	Meta
	Op  UnaryOp
	Arg Expr
}

func (Unary) expr() {}

// BinaryOp identifies a binary expression operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
)

// Binary is a binary expression node.
type Binary struct {
	Meta
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (Binary) expr() {}

// New constructs a Meta carrying pos, embedded into each concrete node
// literal at construction time by the grammar's visit handlers.
func New(pos xcerr.Pos) Meta { return Meta{Pos: pos} }
