package value_test

import (
	"testing"

	"github.com/cwbudde/go-sdpl/internal/value"
)

func TestNewString_PadsAndTruncates(t *testing.T) {
	if got := value.NewString("hi", 5).Str; got != "hi   " {
		t.Errorf("got %q, want right-padded to length 5", got)
	}
	if got := value.NewString("toolong", 3).Str; got != "too" {
		t.Errorf("got %q, want truncated to length 3", got)
	}
}

func TestIsTruthy(t *testing.T) {
	cases := []struct {
		v    value.Value
		want bool
	}{
		{value.Num64(0), false},
		{value.Num64(1), true},
		{value.Missing(), false},
		{value.Str8(""), false},
		{value.Str8("x"), true},
	}
	for _, c := range cases {
		if got := value.IsTruthy(c.v); got != c.want {
			t.Errorf("IsTruthy(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestAsNumber_ParsesStrings(t *testing.T) {
	if f, ok := value.AsNumber(value.Str8("42")); !ok || f != 42 {
		t.Errorf("got %v, %v, want 42, true", f, ok)
	}
	if _, ok := value.AsNumber(value.Str8("nope")); ok {
		t.Error("unparseable string should report ok=false")
	}
}

func TestEqual_NumericEpsilon(t *testing.T) {
	a := value.Num64(1.0000000001)
	b := value.Num64(1.0000000002)
	if !value.Equal(a, b) {
		t.Error("values within epsilon should be equal")
	}
}

func TestEqual_StringTrimsTrailingPadding(t *testing.T) {
	a := value.NewString("x", 10)
	b := value.NewString("x", 4)
	if !value.Equal(a, b) {
		t.Error("strings equal after right-trim regardless of declared length")
	}
}

func TestCompare_MissingSortsFirst(t *testing.T) {
	if value.Compare(value.Missing(), value.Num64(0)) >= 0 {
		t.Error("missing should sort before any ordinary number")
	}
}

func TestCompare_Strings(t *testing.T) {
	if value.Compare(value.Str8("abc"), value.Str8("abd")) >= 0 {
		t.Error("\"abc\" should sort before \"abd\"")
	}
}
