package pdv_test

import (
	"testing"

	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

func TestDataset_ColumnIndexCaseInsensitive(t *testing.T) {
	ds := pdv.New("t", []pdv.Column{{Name: "Name", Kind: value.String}})
	if _, ok := ds.ColumnIndex("name"); !ok {
		t.Error("ColumnIndex should match case-insensitively")
	}
}

func TestRow_Equal(t *testing.T) {
	a := pdv.Row{value.Num64(1), value.Str8("x")}
	b := pdv.Row{value.Num64(1), value.Str8("x")}
	c := pdv.Row{value.Num64(2), value.Str8("x")}
	if !a.Equal(b) {
		t.Error("identical rows should be equal")
	}
	if a.Equal(c) {
		t.Error("rows differing in a column should not be equal")
	}
}

func TestFromPDV_SnapshotsOutputColumnsOnly(t *testing.T) {
	p := pdv.New()
	idx := p.Slot("a")
	_ = p.Set(idx, value.Num64(7))
	p.MarkDropped("a")

	cols, row := pdv.FromPDV(p)
	if len(cols) != 0 || len(row) != 0 {
		t.Fatalf("dropped column should not appear in snapshot, got cols=%+v row=%+v", cols, row)
	}
}
