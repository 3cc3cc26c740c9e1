// Package eval evaluates expression AST nodes against a PDV, implementing
// spec.md §4.3's coercion rules and built-in function table.
package eval

import (
	"fmt"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/token"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// ErrorKind enumerates the evaluator's own error kinds (spec.md §7).
type ErrorKind int

const (
	DivideByZero ErrorKind = iota
	UnknownFunction
	DomainError
	ArrayOutOfRange
	UndefinedVariable
)

// EvalError is a runtime evaluation error, positioned in the source.
type EvalError struct {
	Kind ErrorKind
	Msg  string
	Pos  token.Position
}

func (e *EvalError) Error() string { return e.Msg }

// ArrayBinding maps an ARRAY name to its ordered, 1-based list of bound PDV
// slot indices (spec.md §4.4: "array bindings (name → (size, ordered
// variable names))").
type ArrayBinding struct {
	Slots []int
}

// Context is everything Eval needs to resolve identifiers: the PDV, the
// step's array bindings, and a sink for non-fatal warnings (spec.md §4.3:
// "non-parseable strings produce a missing-number and a recorded warning").
type Context struct {
	PDV      *pdv.PDV
	Arrays   map[string]ArrayBinding
	Warnings *[]string
}

func (c *Context) warnf(format string, args ...any) {
	if c.Warnings != nil {
		*c.Warnings = append(*c.Warnings, fmt.Sprintf(format, args...))
	}
}

// Warnf records a warning, exported for internal/exec to use when it
// downgrades a non-structural runtime error (spec.md §4.6: bad array
// index, undefined variable, type conflict on re-assignment) to a
// warning-plus-missing-value instead of propagating it.
func (c *Context) Warnf(format string, args ...any) { c.warnf(format, args...) }

// Eval evaluates expr against ctx, returning the resulting Value or an
// EvalError for the structural failures spec.md §7 calls out as
// non-recoverable within expression evaluation itself (unknown function,
// array out of range, undefined variable). Divide-by-zero and bad
// string-to-number conversions are NOT returned as errors here: per
// spec.md §4.4/§7 they mark the affected value missing and continue, which
// Eval implements by returning the missing sentinel with no error.
func Eval(expr ast.Expr, ctx *Context) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.NumLit:
		return value.Num64(e.Value), nil
	case *ast.StrLit:
		return value.NewString(e.Value, max(len(e.Value), 8)), nil
	case *ast.VarRef:
		idx, ok := ctx.PDV.Lookup(e.Name)
		if !ok {
			return value.Missing(), &EvalError{Kind: UndefinedVariable, Msg: "undefined variable '" + e.Name + "'", Pos: e.Position}
		}
		return ctx.PDV.Get(idx), nil
	case *ast.ArrayRef:
		return evalArrayRef(e, ctx)
	case *ast.Unary:
		return evalUnary(e, ctx)
	case *ast.Binary:
		return evalBinary(e, ctx)
	case *ast.Call:
		return evalCall(e, ctx)
	}
	return value.Missing(), fmt.Errorf("eval: unhandled expression type %T", expr)
}

func evalArrayRef(e *ast.ArrayRef, ctx *Context) (value.Value, error) {
	binding, ok := ctx.Arrays[foldKey(e.Name)]
	if !ok {
		return value.Missing(), &EvalError{Kind: UndefinedVariable, Msg: "undefined array '" + e.Name + "'", Pos: e.Position}
	}
	idxVal, err := Eval(e.Index, ctx)
	if err != nil {
		return value.Missing(), err
	}
	i, _ := value.AsNumber(idxVal)
	pos := int(i)
	if pos < 1 || pos > len(binding.Slots) {
		return value.Missing(), &EvalError{Kind: ArrayOutOfRange, Msg: fmt.Sprintf("array index %d out of range for %s{%d}", pos, e.Name, len(binding.Slots)), Pos: e.Position}
	}
	return ctx.PDV.Get(binding.Slots[pos-1]), nil
}

// SetArrayRef assigns v to the array element named by e, used by the
// executor's assignment statement handler.
func SetArrayRef(e *ast.ArrayRef, v value.Value, ctx *Context) error {
	binding, ok := ctx.Arrays[foldKey(e.Name)]
	if !ok {
		return &EvalError{Kind: UndefinedVariable, Msg: "undefined array '" + e.Name + "'", Pos: e.Position}
	}
	idxVal, err := Eval(e.Index, ctx)
	if err != nil {
		return err
	}
	i, _ := value.AsNumber(idxVal)
	pos := int(i)
	if pos < 1 || pos > len(binding.Slots) {
		return &EvalError{Kind: ArrayOutOfRange, Msg: fmt.Sprintf("array index %d out of range for %s{%d}", pos, e.Name, len(binding.Slots)), Pos: e.Position}
	}
	return ctx.PDV.Set(binding.Slots[pos-1], v)
}

func evalUnary(e *ast.Unary, ctx *Context) (value.Value, error) {
	v, err := Eval(e.Operand, ctx)
	if err != nil {
		return value.Missing(), err
	}
	switch e.Op {
	case ast.UnaryNeg:
		f, ok := coerceNumber(v, ctx)
		if !ok {
			return value.Missing(), nil
		}
		return value.Num64(-f), nil
	case ast.UnaryNot:
		return boolValue(!value.IsTruthy(v)), nil
	}
	return value.Missing(), nil
}

func coerceNumber(v value.Value, ctx *Context) (float64, bool) {
	f, ok := value.AsNumber(v)
	if !ok {
		ctx.warnf("could not convert string %q to a number", v.Str)
	}
	return f, ok
}

func boolValue(b bool) value.Value {
	if b {
		return value.Num64(1)
	}
	return value.Num64(0)
}

func evalBinary(e *ast.Binary, ctx *Context) (value.Value, error) {
	switch e.Op {
	case ast.BinAnd:
		l, err := Eval(e.Left, ctx)
		if err != nil {
			return value.Missing(), err
		}
		if !value.IsTruthy(l) {
			return boolValue(false), nil
		}
		r, err := Eval(e.Right, ctx)
		if err != nil {
			return value.Missing(), err
		}
		return boolValue(value.IsTruthy(r)), nil
	case ast.BinOr:
		l, err := Eval(e.Left, ctx)
		if err != nil {
			return value.Missing(), err
		}
		if value.IsTruthy(l) {
			return boolValue(true), nil
		}
		r, err := Eval(e.Right, ctx)
		if err != nil {
			return value.Missing(), err
		}
		return boolValue(value.IsTruthy(r)), nil
	}

	l, err := Eval(e.Left, ctx)
	if err != nil {
		return value.Missing(), err
	}
	r, err := Eval(e.Right, ctx)
	if err != nil {
		return value.Missing(), err
	}

	switch e.Op {
	case ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe, ast.BinEq, ast.BinNe:
		return evalComparison(e.Op, l, r, ctx), nil
	}

	lf, lok := coerceNumber(l, ctx)
	rf, rok := coerceNumber(r, ctx)
	if !lok || !rok {
		return value.Missing(), nil
	}
	switch e.Op {
	case ast.BinAdd:
		return value.Num64(lf + rf), nil
	case ast.BinSub:
		return value.Num64(lf - rf), nil
	case ast.BinMul:
		return value.Num64(lf * rf), nil
	case ast.BinDiv:
		if rf == 0 {
			ctx.warnf("division by zero")
			return value.Missing(), nil
		}
		return value.Num64(lf / rf), nil
	case ast.BinPow:
		return value.Num64(powf(lf, rf)), nil
	}
	return value.Missing(), fmt.Errorf("eval: unhandled binary operator %v", e.Op)
}

// evalComparison implements spec.md §4.3: string-vs-string compares after
// right-trim to the shorter declared length; anything else is numeric with
// epsilon.
func evalComparison(op ast.BinaryOp, l, r value.Value, ctx *Context) value.Value {
	var cmp int
	if l.Kind == value.String && r.Kind == value.String {
		ls, rs := value.TrimRight(l), value.TrimRight(r)
		n := l.StrLen
		if r.StrLen < n {
			n = r.StrLen
		}
		if len(ls) > n {
			ls = ls[:n]
		}
		if len(rs) > n {
			rs = rs[:n]
		}
		switch {
		case ls < rs:
			cmp = -1
		case ls > rs:
			cmp = 1
		default:
			cmp = 0
		}
	} else {
		lf, _ := coerceNumber(l, ctx)
		rf, _ := coerceNumber(r, ctx)
		switch {
		case value.NumericEqual(lf, rf):
			cmp = 0
		case lf < rf:
			cmp = -1
		default:
			cmp = 1
		}
	}
	switch op {
	case ast.BinLt:
		return boolValue(cmp < 0)
	case ast.BinLe:
		return boolValue(cmp <= 0)
	case ast.BinGt:
		return boolValue(cmp > 0)
	case ast.BinGe:
		return boolValue(cmp >= 0)
	case ast.BinEq:
		return boolValue(cmp == 0)
	case ast.BinNe:
		return boolValue(cmp != 0)
	}
	return value.Missing()
}

func foldKey(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
