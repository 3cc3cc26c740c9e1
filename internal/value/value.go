// Package value implements SDPL's runtime scalar: a tagged union of Number
// and String, following spec.md §9's "tagged value, not inheritance" design
// note — two cases, no polymorphism beyond the tag.
package value

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags a Value as either a Number or a String.
type Kind int

const (
	Number Kind = iota
	String
)

// missingBits is a quiet-NaN payload distinguishing a missing numeric from
// an ordinary NaN produced by e.g. sqrt(-1); both compare as "missing" for
// evaluation purposes but the distinct payload helps debugging.
const missingBits uint64 = 0x7FF8000000000001

// Value is SDPL's runtime scalar. The zero Value is a missing Number.
type Value struct {
	Kind   Kind
	Num    float64
	Str    string
	StrLen int // declared max length for String values; 0 for Number
}

// Num64 constructs a Number value.
func Num64(f float64) Value { return Value{Kind: Number, Num: f} }

// Missing returns the distinguished missing-numeric sentinel.
func Missing() Value { return Value{Kind: Number, Num: math.Float64frombits(missingBits)} }

// IsMissingNumber reports whether v is a missing-numeric value (any NaN, not
// only the exact sentinel bit pattern, since arithmetic on missing values
// propagates ordinary NaN).
func IsMissingNumber(v Value) bool {
	return v.Kind == Number && math.IsNaN(v.Num)
}

// Str8 constructs a String value with the default declared length of 8
// (spec.md §3), right-padded or truncated to that length.
func Str8(s string) Value { return NewString(s, 8) }

// NewString constructs a String value with an explicit declared length,
// right-padding or truncating the source text to fit (spec.md §3's LENGTH
// $N rule). A caller that needs to preserve exactly what was written — e.g.
// a literal inside the program text — should pass a length at least as
// long as the text.
func NewString(s string, length int) Value {
	if length <= 0 {
		length = 8
	}
	return Value{Kind: String, Str: Pad(s, length), StrLen: length}
}

// Pad right-pads s with spaces to length, or truncates it to length,
// matching fixed-width SAS character semantics.
func Pad(s string, length int) string {
	if len(s) >= length {
		return s[:length]
	}
	return s + strings.Repeat(" ", length-len(s))
}

// IsTruthy implements spec.md §4.3's logical coercion: a non-zero number or
// a non-empty right-trimmed string is truthy.
func IsTruthy(v Value) bool {
	switch v.Kind {
	case Number:
		return !IsMissingNumber(v) && v.Num != 0
	case String:
		return strings.TrimRight(v.Str, " ") != ""
	}
	return false
}

// AsNumber coerces v to a float64, attempting to parse String values.
// ok is false when a String failed to parse, in which case the result is
// the missing sentinel.
func AsNumber(v Value) (f float64, ok bool) {
	switch v.Kind {
	case Number:
		return v.Num, true
	case String:
		trimmed := strings.TrimSpace(v.Str)
		if trimmed == "" {
			return Missing().Num, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return Missing().Num, false
		}
		return f, true
	}
	return Missing().Num, false
}

// TrimRight returns v's text right-trimmed to its declared length (used for
// both row equality, per spec.md §3, and comparisons).
func TrimRight(v Value) string {
	return strings.TrimRight(v.Str, " ")
}

const epsilon = 1e-9

// NumericEqual compares two numbers with the epsilon required by spec.md §3
// for Row equality and by §4.3 for numeric comparisons.
func NumericEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= epsilon
}

// Equal implements Row/cell equality (spec.md §3): numbers compare with
// epsilon, strings compare after right-trimming to their declared length.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == Number {
		return NumericEqual(a.Num, b.Num)
	}
	return TrimRight(a) == TrimRight(b)
}

// Compare orders two values for PROC SORT (spec.md §4.5): numeric total
// order with missing first, string comparison by padded byte order using
// the shorter of the two declared lengths.
func Compare(a, b Value) int {
	if a.Kind == Number && b.Kind == Number {
		switch {
		case IsMissingNumber(a) && IsMissingNumber(b):
			return 0
		case IsMissingNumber(a):
			return -1
		case IsMissingNumber(b):
			return 1
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.Str, b.Str
	n := a.StrLen
	if b.StrLen < n {
		n = b.StrLen
	}
	if n > 0 {
		as, bs = Pad(as, n), Pad(bs, n)
	}
	return strings.Compare(as, bs)
}

// TypeName returns the declared-type name used in SemanticError messages
// about re-typing ("array out-of-range, drop/keep of unknown variable, type
// conflict on re-assignment", spec.md §7).
func (k Kind) TypeName() string {
	if k == String {
		return "character"
	}
	return "numeric"
}
