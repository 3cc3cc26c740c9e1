package pdv_test

import (
	"testing"

	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

func TestSlot_DeclaresOnFirstUse(t *testing.T) {
	p := pdv.New()
	a := p.Slot("x")
	b := p.Slot("X")
	if a != b {
		t.Errorf("slot lookup must be case-insensitive: got %d and %d", a, b)
	}
	if len(p.Slots()) != 1 {
		t.Fatalf("got %d slots, want 1", len(p.Slots()))
	}
}

func TestSet_FixesTypeOnFirstAssignment(t *testing.T) {
	p := pdv.New()
	idx := p.Slot("n")
	if err := p.Set(idx, value.Num64(5)); err != nil {
		t.Fatalf("first assignment: %v", err)
	}
	if err := p.Set(idx, value.Str8("oops")); err == nil {
		t.Error("re-typing a numeric slot as a string must be a type conflict error")
	}
}

func TestSet_TruncatesAndPadsDeclaredStringLength(t *testing.T) {
	p := pdv.New()
	if err := p.DeclareLength("name", value.String, 5); err != nil {
		t.Fatalf("DeclareLength: %v", err)
	}
	idx, _ := p.Lookup("name")
	if err := p.Set(idx, value.Str8("abcdefgh")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := p.Get(idx).Str; got != "abcde" {
		t.Errorf("got %q, want truncated to declared length 5", got)
	}
}

func TestResetForIteration_PreservesRetainedVars(t *testing.T) {
	p := pdv.New()
	idx := p.MarkRetained("total", value.Num64(100))
	other := p.Slot("x")
	_ = p.Set(other, value.Num64(1))

	p.ResetForIteration()

	if f := p.Get(idx).Num; f != 100 {
		t.Errorf("retained var reset to %v, want 100 preserved", f)
	}
	if !value.IsMissingNumber(p.Get(other)) {
		t.Errorf("non-retained var should reset to missing, got %v", p.Get(other))
	}
}

func TestOutputColumns_KeepWinsOverDrop(t *testing.T) {
	p := pdv.New()
	p.Slot("a")
	p.Slot("b")
	p.MarkDropped("a")
	p.MarkKept("a")
	p.MarkKept("b")

	cols := p.OutputColumns()
	if len(cols) != 2 {
		t.Fatalf("got %d output columns, want 2 (KEEP wins over DROP)", len(cols))
	}
}

func TestOutputColumns_DropExcludesWithoutExplicitKeep(t *testing.T) {
	p := pdv.New()
	p.Slot("a")
	p.Slot("b")
	p.MarkDropped("a")

	cols := p.OutputColumns()
	if len(cols) != 1 || cols[0].Name != "b" {
		t.Fatalf("got %+v, want only 'b'", cols)
	}
}
