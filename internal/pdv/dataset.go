package pdv

import "github.com/cwbudde/go-sdpl/internal/value"

// Column describes one Dataset column: name, type, declared length.
type Column struct {
	Name   string
	Kind   value.Kind
	Length int
}

// Row is an ordered list of cell values aligned to a Dataset's Columns.
type Row []value.Value

// Equal implements spec.md §3's Row equality: same column set (by
// position, since both rows come from the same Dataset) and per-column
// value equality.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if !value.Equal(r[i], other[i]) {
			return false
		}
	}
	return true
}

// Dataset is the in-memory table: a name, an ordered column list, and a
// sequence of rows (spec.md §3).
type Dataset struct {
	Name    string
	Columns []Column
	Rows    []Row
}

// New creates an empty Dataset with the given columns.
func New(name string, columns []Column) *Dataset {
	return &Dataset{Name: name, Columns: columns}
}

// ColumnIndex returns the index of a column by case-insensitive name.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	key := fold(name)
	for i, c := range d.Columns {
		if fold(c.Name) == key {
			return i, true
		}
	}
	return 0, false
}

// Append adds a row to the dataset.
func (d *Dataset) Append(r Row) { d.Rows = append(d.Rows, r) }

// FromPDV builds a Row snapshot from the PDV's currently kept output
// columns, in the order OutputColumns returns (spec.md §3, §4.4 step 3).
func FromPDV(p *PDV) ([]Column, Row) {
	slots := p.OutputColumns()
	cols := make([]Column, len(slots))
	row := make(Row, len(slots))
	for i, s := range slots {
		cols[i] = Column{Name: s.Name, Kind: s.Kind, Length: s.Length}
		idx, _ := p.Lookup(s.Name)
		row[i] = p.Get(idx)
	}
	return cols, row
}
