package proc_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/cwbudde/go-sdpl/internal/driver"
	"github.com/cwbudde/go-sdpl/internal/env"
	"github.com/cwbudde/go-sdpl/internal/lexer"
	"github.com/cwbudde/go-sdpl/internal/parser"
)

// run parses and drives source end to end (DATA steps + PROC steps),
// returning the Environment, the PROC PRINT listing, and the Driver.
func run(t *testing.T, source string) (*env.Environment, string, *driver.Driver) {
	t.Helper()
	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	e := env.New(t.TempDir())
	var listing bytes.Buffer
	drv := driver.New(e, nil, &listing)
	if err := drv.Run(context.Background(), program, "test.sdpl"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if drv.Failed {
		t.Fatalf("step failed")
	}
	return e, listing.String(), drv
}

// S5: PROC SORT with NODUPKEY drops later rows sharing an already-seen BY
// key, and the sort itself is stable among ties.
func TestSort_NoDupKey(t *testing.T) {
	e, _, _ := run(t, `
data people; input name $ dept $ score; datalines;
amy sales 10
bob sales 20
cam it 30
deb sales 40
;
run;
proc sort data=people out=sorted nodupkey; by dept; run;
`)
	ds, ok := e.Dataset("", "sorted")
	if !ok {
		t.Fatal("WORK.sorted not published")
	}
	ni, _ := ds.ColumnIndex("name")
	di, _ := ds.ColumnIndex("dept")
	if len(ds.Rows) != 2 {
		t.Fatalf("got %d rows, want 2 (one per dept)", len(ds.Rows))
	}
	want := map[string]string{"it": "cam", "sales": "amy"}
	for _, row := range ds.Rows {
		dept := strings.TrimRight(row[di].Str, " ")
		name := strings.TrimRight(row[ni].Str, " ")
		if want[dept] != name {
			t.Errorf("dept %q kept %q, want %q (first row of the BY-key run)", dept, name, want[dept])
		}
	}
}

// Property 6: PROC SORT is a stable sort — rows with equal BY-key values
// retain their relative input order.
func TestSort_Stable(t *testing.T) {
	e, _, _ := run(t, `
data people; input name $ dept $; datalines;
amy sales
bob it
cam sales
;
run;
proc sort data=people out=sorted; by dept; run;
`)
	ds, _ := e.Dataset("", "sorted")
	ni, _ := ds.ColumnIndex("name")
	var names []string
	for _, row := range ds.Rows {
		names = append(names, strings.TrimRight(row[ni].Str, " "))
	}
	want := []string{"bob", "amy", "cam"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i, w := range want {
		if names[i] != w {
			t.Errorf("position %d = %q, want %q (stability within the sales tie)", i, names[i], w)
		}
	}
}

// Property 7: PROC SORT DUPLICATES drops only exact full-row duplicates,
// keeping distinct rows that merely share a BY key.
func TestSort_Duplicates(t *testing.T) {
	e, _, _ := run(t, `
data people; input name $ dept $; datalines;
amy sales
amy sales
bob sales
;
run;
proc sort data=people out=sorted duplicates; by dept; run;
`)
	ds, _ := e.Dataset("", "sorted")
	if len(ds.Rows) != 2 {
		t.Fatalf("got %d rows, want 2 (one amy/sales duplicate dropped)", len(ds.Rows))
	}
}

// S6: PROC PRINT renders a header and one formatted line per row, with
// numerics right-aligned, strings left-aligned, and OBS= truncating the
// listing.
func TestPrint_HeaderAndObs(t *testing.T) {
	_, listing, _ := run(t, `
data nums; input name $ score; datalines;
amy 9
bob 100
;
run;
proc print data=nums obs=1; run;
`)
	lines := strings.Split(strings.TrimRight(listing, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (header + 1 row for obs=1): %q", len(lines), listing)
	}
	if !strings.Contains(lines[0], "name") || !strings.Contains(lines[0], "score") {
		t.Errorf("header = %q, want both column names", lines[0])
	}
	if !strings.Contains(lines[1], "amy") {
		t.Errorf("row = %q, want the first input row only", lines[1])
	}
}

// The full rendered listing, including column alignment, is checked
// against a golden snapshot rather than asserted field by field.
func TestPrint_ListingSnapshot(t *testing.T) {
	_, listing, _ := run(t, `
data scores; input name $ dept $ score; datalines;
amy sales 91
bob it 78
cam sales 105
;
run;
proc print data=scores; run;
`)
	snaps.MatchSnapshot(t, listing)
}

// PROC PRINT's VAR list restricts the listing to the named columns, in
// the order given.
func TestPrint_VarSelection(t *testing.T) {
	_, listing, _ := run(t, `
data nums; input name $ score extra; datalines;
amy 9 1
;
run;
proc print data=nums; var score name; run;
`)
	header := strings.Split(strings.TrimRight(listing, "\n"), "\n")[0]
	scoreAt := strings.Index(header, "score")
	nameAt := strings.Index(header, "name")
	if scoreAt < 0 || nameAt < 0 || scoreAt > nameAt {
		t.Errorf("header = %q, want score before name and no extra", header)
	}
	if strings.Contains(header, "extra") {
		t.Errorf("header = %q, want extra excluded by VAR list", header)
	}
}
