// Package eval implements the scope-stack expression evaluator: name
// binding, forward-reference-tolerant deferred evaluation via Fixup
// snapshots, and encoded-string byte expansion. It is a direct, idiomatic
// restatement of xcomp/eval.py's Evaluator, translated from Python's
// singledispatchmethod into a Go type switch.
package eval

import (
	log "github.com/sirupsen/logrus"

	"github.com/eanderton/xcomp/ast"
	"github.com/eanderton/xcomp/xcerr"
)

// Scope is one level of the name-binding stack. Keys are fully qualified
// with their enclosing namespace path, joined with ".", matching
// eval.py's add_name dotted-key mangling.
type Scope map[string]Value

// Value is anything a name can be bound to: an int, a string, an
// ast.Expr awaiting evaluation, or a *Fixup capturing a deferred
// evaluation context.
type Value any

// Fixup snapshots the scope stack at the point an expression couldn't yet
// be evaluated (typically a forward reference to a label whose address
// isn't known until after code generation assigns addresses), so it can
// be retried later with the correct names in scope. Grounded on eval.py's
// FixupExpr.
type Fixup struct {
	Pos    xcerr.Pos
	Scopes []Scope
	Expr   ast.Expr
}

// Scopes holds the live scope stack and namespace stack used while
// evaluating one compilation unit.
type Scopes struct {
	stack     []Scope
	namespace []string
	Encoding  string
}

// NewScopes creates an evaluator with a single open root scope and the
// default "utf-8" string encoding.
func NewScopes() *Scopes {
	s := &Scopes{Encoding: "utf-8"}
	s.StartScope("")
	return s
}

// StartScope pushes a new, empty scope. namespace, if non-empty, prefixes
// every name subsequently added in this scope (and any nested scope)
// until the matching EndScope.
func (s *Scopes) StartScope(namespace string) {
	s.stack = append(s.stack, Scope{})
	s.namespace = append(s.namespace, namespace)
	log.Debugf("eval: scope push (namespace=%q, depth=%d)", namespace, len(s.stack))
}

// EndScope pops the top scope. If merge is true, its bindings are folded
// into the new top scope (used when a transient scope's names should
// remain visible after it closes, e.g. struct field declarations).
func (s *Scopes) EndScope(merge bool) Scope {
	head := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.namespace = s.namespace[:len(s.namespace)-1]
	if merge && len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		for k, v := range head {
			top[k] = v
		}
	}
	log.Debugf("eval: scope pop (merge=%v, depth=%d)", merge, len(s.stack))
	return head
}

// Depth reports the current scope stack depth.
func (s *Scopes) Depth() int { return len(s.stack) }

func (s *Scopes) qualifiedNamespace() []string {
	var parts []string
	for _, ns := range s.namespace {
		if ns != "" {
			parts = append(parts, ns)
		}
	}
	return parts
}

// AddName binds name, within the current namespace path, to value in the
// top scope. Re-defining the same qualified name within the same scope is
// an error, matching eval.py's add_name duplicate check.
func (s *Scopes) AddName(pos xcerr.Pos, name string, value Value) error {
	realname := qualify(s.qualifiedNamespace(), name)
	top := s.stack[len(s.stack)-1]
	if _, dup := top[realname]; dup {
		return xcerr.New(xcerr.KindDuplicateName, pos,
			"identifier %q is already defined in scope", realname)
	}
	top[realname] = value
	return nil
}

// Qualify returns the fully qualified form of name under the current
// namespace path, the same mangling AddName applies, for callers (codegen's
// symbol table) that need to publish under the same key names are stored
// under.
func (s *Scopes) Qualify(name string) string {
	return qualify(s.qualifiedNamespace(), name)
}

func qualify(namespace []string, name string) string {
	if len(namespace) == 0 {
		return name
	}
	out := namespace[0]
	for _, ns := range namespace[1:] {
		out += "." + ns
	}
	return out + "." + name
}

// GetFixup snapshots the current scope stack against expr, to be
// re-evaluated later once forward references can resolve.
func (s *Scopes) GetFixup(expr ast.Expr) *Fixup {
	snapshot := make([]Scope, len(s.stack))
	copy(snapshot, s.stack)
	return &Fixup{Pos: expr.Position(), Scopes: snapshot, Expr: expr}
}

// Eval resolves v to a concrete int or string, recursively evaluating
// Fixups, expression trees, and name lookups. Cyclic name references are
// detected with an explicit in-progress set, since unlike Python's
// catchable RecursionError, Go cannot recover from a genuine stack
// overflow.
func (s *Scopes) Eval(v Value) (Value, error) {
	return s.eval(v, map[string]bool{})
}

func (s *Scopes) eval(v Value, inProgress map[string]bool) (Value, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case string:
		return x, nil
	case *Fixup:
		saved := s.stack
		s.stack = x.Scopes
		defer func() { s.stack = saved }()
		return s.eval(x.Expr, inProgress)
	case ast.Name:
		return s.evalName(x, inProgress)
	case ast.IntLit:
		return x.Value, nil
	case ast.StringLit:
		return x.Value, nil
	case ast.Unary:
		arg, err := s.eval(x.Arg, inProgress)
		if err != nil {
			return nil, err
		}
		return evalUnary(x.Op, arg)
	case ast.Binary:
		left, err := s.eval(x.Left, inProgress)
		if err != nil {
			return nil, err
		}
		right, err := s.eval(x.Right, inProgress)
		if err != nil {
			return nil, err
		}
		return evalBinary(x.Op, left, right)
	default:
		return nil, xcerr.New(xcerr.KindUndefinedName, xcerr.NullPos,
			"cannot evaluate expression of type %T", v)
	}
}

func (s *Scopes) evalName(n ast.Name, inProgress map[string]bool) (Value, error) {
	realname := qualify(s.qualifiedNamespace(), n.Ident)
	var found Value
	ok := false
	// Search innermost scope outward, then fall back to the unqualified
	// name so that names bound before a namespace was pushed (globals,
	// macro parameters) remain visible.
	for i := len(s.stack) - 1; i >= 0; i-- {
		if val, exists := s.stack[i][realname]; exists {
			found, ok = val, true
			break
		}
		if val, exists := s.stack[i][n.Ident]; exists {
			found, ok = val, true
			break
		}
	}
	if !ok {
		return nil, xcerr.New(xcerr.KindUndefinedName, n.Position(),
			"identifier %q is undefined", n.Ident)
	}
	if inProgress[n.Ident] {
		return nil, xcerr.New(xcerr.KindCyclicReference, n.Position(),
			"cyclic reference while evaluating %q", n.Ident)
	}
	inProgress[n.Ident] = true
	defer delete(inProgress, n.Ident)
	return s.eval(found, inProgress)
}

func evalUnary(op ast.UnaryOp, arg Value) (Value, error) {
	v, ok := arg.(int)
	if !ok {
		return nil, xcerr.New(xcerr.KindUndefinedName, xcerr.NullPos,
			"unary operator applied to non-integer value %v", arg)
	}
	switch op {
	case ast.OpNeg:
		return -v, nil
	case ast.OpBitNot:
		if is8bit(v) {
			return ^v & 0xFF, nil
		}
		return ^v & 0xFFFF, nil
	case ast.OpLobyte:
		return lobyte(v), nil
	case ast.OpHibyte:
		return hibyte(v), nil
	case ast.OpAs8:
		return lobyte(v), nil
	case ast.OpAs16:
		return v & 0xFFFF, nil
	}
	return nil, xcerr.New(xcerr.KindUndefinedName, xcerr.NullPos, "unknown unary operator")
}

func evalBinary(op ast.BinaryOp, left, right Value) (Value, error) {
	a, aok := left.(int)
	b, bok := right.(int)
	if !aok || !bok {
		return nil, xcerr.New(xcerr.KindUndefinedName, xcerr.NullPos,
			"binary operator applied to non-integer values %v, %v", left, right)
	}
	switch op {
	case ast.OpAdd:
		return a + b, nil
	case ast.OpSub:
		return a - b, nil
	case ast.OpMul:
		return a * b, nil
	case ast.OpDiv:
		if b == 0 {
			return nil, xcerr.New(xcerr.KindUndefinedName, xcerr.NullPos, "division by zero")
		}
		return a / b, nil
	case ast.OpMod:
		if b == 0 {
			return nil, xcerr.New(xcerr.KindUndefinedName, xcerr.NullPos, "division by zero")
		}
		return a % b, nil
	case ast.OpShl:
		return a << uint(b), nil
	case ast.OpShr:
		return a >> uint(b), nil
	case ast.OpAnd:
		return a & b, nil
	case ast.OpOr:
		return a | b, nil
	case ast.OpXor:
		return a ^ b, nil
	}
	return nil, xcerr.New(xcerr.KindUndefinedName, xcerr.NullPos, "unknown binary operator")
}

func lobyte(v int) int { return v & 0xFF }
func hibyte(v int) int { return (v >> 8) & 0xFF }
func is8bit(v int) bool { return lobyte(v) == v }

// ExprBytes evaluates expr and serializes it into its byte representation:
// a single byte for an 8-bit integer, little-endian lo/hi bytes for a
// wider one, or the encoded bytes of a string literal. Mirrors eval.py's
// get_expr_bytes.
func (s *Scopes) ExprBytes(expr ast.Expr) (Value, []byte, error) {
	value, err := s.Eval(expr)
	if err != nil {
		return nil, nil, err
	}
	switch v := value.(type) {
	case int:
		if is8bit(v) {
			return v, []byte{byte(v)}, nil
		}
		return v, []byte{byte(lobyte(v)), byte(hibyte(v))}, nil
	case string:
		encoded, err := EncodeString(s.Encoding, v)
		if err != nil {
			return nil, nil, xcerr.New(xcerr.KindEncodingError, expr.Position(), "%v", err)
		}
		return v, encoded, nil
	default:
		return nil, nil, xcerr.New(xcerr.KindEncodingError, expr.Position(),
			"value of type %T not supported as storage", value)
	}
}
