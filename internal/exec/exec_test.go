package exec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/env"
	"github.com/cwbudde/go-sdpl/internal/exec"
	"github.com/cwbudde/go-sdpl/internal/lexer"
	"github.com/cwbudde/go-sdpl/internal/parser"
	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// runStep parses source, compiles and runs every DATA step in order against
// a shared Environment, publishing each step's outputs so later steps can
// SET/MERGE against them — mirroring what internal/driver does without
// pulling in the TDF persistence layer.
func runStep(t *testing.T, source string) *env.Environment {
	t.Helper()
	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	e := env.New(t.TempDir())
	for _, stmt := range program.Statements {
		ds, ok := stmt.(*ast.DataStep)
		if !ok {
			continue
		}
		plan, err := exec.Compile(ds, e)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		var warnings []string
		results, err := exec.Run(context.Background(), plan, &warnings)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		for _, ref := range ds.Outputs {
			key := ref.Member
			if ref.Library != "" {
				key = ref.Library + "." + ref.Member
			}
			res := results[key]
			out := pdv.New(ref.Member, res.Columns)
			out.Rows = res.Rows
			e.PublishDataset(ref.Library, ref.Member, out)
		}
	}
	return e
}

func col(ds *pdv.Dataset, name string) int {
	idx, _ := ds.ColumnIndex(name)
	return idx
}

// S1: string assignment preserves declared length, verbatim up to padding.
func TestDataStep_StringLengthPreserved(t *testing.T) {
	e := runStep(t, `
data out; length name $40;
  name="Alice"; output; name="  Bob  "; output;
  name="Charlie  "; output; name="Dana"; output;
run;
`)
	ds, ok := e.Dataset("", "out")
	if !ok {
		t.Fatal("WORK.out not published")
	}
	if len(ds.Columns) != 1 || ds.Columns[0].Name != "name" {
		t.Fatalf("unexpected columns: %+v", ds.Columns)
	}
	want := []string{"Alice", "  Bob  ", "Charlie  ", "Dana"}
	if len(ds.Rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(ds.Rows), len(want))
	}
	for i, w := range want {
		got := value.TrimRight(ds.Rows[i][0])
		if got != w {
			t.Errorf("row %d: got %q, want %q", i, got, w)
		}
	}
}

// S2: column order follows first-assignment order; an unset column on an
// earlier OUTPUT reconciles to blank.
func TestDataStep_ColumnOrderAndReconciliation(t *testing.T) {
	e := runStep(t, `data a; a = 10; output; b = "This is a string variable!"; output; run;`)
	ds, ok := e.Dataset("", "a")
	if !ok {
		t.Fatal("WORK.a not published")
	}
	if len(ds.Columns) != 2 || ds.Columns[0].Name != "a" || ds.Columns[1].Name != "b" {
		t.Fatalf("unexpected column order: %+v", ds.Columns)
	}
	if len(ds.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(ds.Rows))
	}
	if f, _ := value.AsNumber(ds.Rows[0][0]); f != 10 {
		t.Errorf("row0 a = %v, want 10", f)
	}
	if got := value.TrimRight(ds.Rows[0][1]); got != "" {
		t.Errorf("row0 b = %q, want blank (not yet assigned at first OUTPUT)", got)
	}
	if got := value.TrimRight(ds.Rows[1][1]); got != "This is a string variable!" {
		t.Errorf("row1 b = %q", got)
	}
}

// S3: INPUT/DATALINES ingestion.
func TestDataStep_InputDatalines(t *testing.T) {
	e := runStep(t, `
data employees; input name $ age; datalines;
john 23
mary 30
;
run;
`)
	ds, ok := e.Dataset("", "employees")
	if !ok {
		t.Fatal("WORK.employees not published")
	}
	if len(ds.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(ds.Rows))
	}
	ni, ai := col(ds, "name"), col(ds, "age")
	if value.TrimRight(ds.Rows[0][ni]) != "john" {
		t.Errorf("row0 name = %q", ds.Rows[0][ni].Str)
	}
	if f, _ := value.AsNumber(ds.Rows[1][ai]); f != 30 {
		t.Errorf("row1 age = %v", f)
	}
}

// S4: SET + ARRAY + RETAIN + DO-loop + DROP/KEEP (KEEP wins) + conditional
// OUTPUT, chained across two DATA steps.
func TestDataStep_ArrayRetainDropKeepConditionalOutput(t *testing.T) {
	e := runStep(t, `
data in; input x num1 num2 num3; datalines;
1 5 10 15
2 10 15 20
3 15 20 25
;
run;
data out; set in; retain sum 0; array nums {3} num1 num2 num3;
  do i = 1 to 3; nums{i} = nums{i} + 10; sum = sum + nums{i}; end;
  drop i; keep x sum num1 num2 num3;
  if sum > 25 then output;
run;
`)
	ds, ok := e.Dataset("", "out")
	if !ok {
		t.Fatal("WORK.out not published")
	}
	wantCols := []string{"x", "num1", "num2", "num3", "sum"}
	if len(ds.Columns) != len(wantCols) {
		t.Fatalf("got columns %+v", ds.Columns)
	}
	for i, name := range wantCols {
		if ds.Columns[i].Name != name {
			t.Errorf("column %d = %q, want %q", i, ds.Columns[i].Name, name)
		}
	}
	type row struct{ x, num1, num2, num3, sum float64 }
	want := []row{{1, 15, 20, 25, 60}, {2, 20, 25, 30, 135}, {3, 25, 30, 35, 225}}
	if len(ds.Rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(ds.Rows), len(want))
	}
	for i, w := range want {
		r := ds.Rows[i]
		get := func(name string) float64 { f, _ := value.AsNumber(r[col(ds, name)]); return f }
		if get("x") != w.x || get("num1") != w.num1 || get("num2") != w.num2 ||
			get("num3") != w.num3 || get("sum") != w.sum {
			t.Errorf("row %d = %+v, want %+v", i, r, w)
		}
	}
}

// Property 5: DROP/KEEP exclusivity, KEEP wins, independent of statement
// order.
func TestDataStep_KeepWinsOverDropRegardlessOfOrder(t *testing.T) {
	e := runStep(t, `data out; a = 1; b = 2; drop a; keep a b; run;`)
	ds, _ := e.Dataset("", "out")
	if _, ok := ds.ColumnIndex("a"); !ok {
		t.Error("KEEP should win over DROP for 'a'")
	}
}

// Property 8: DO-loop exit invariant, pdv[i] == hi+1 after a step=1 loop.
func TestDataStep_DoLoopExitInvariant(t *testing.T) {
	e := runStep(t, `data out; do i = 1 to 5; end; output; run;`)
	ds, _ := e.Dataset("", "out")
	idx, ok := ds.ColumnIndex("i")
	if !ok {
		t.Fatal("column i missing")
	}
	if f, _ := value.AsNumber(ds.Rows[0][idx]); f != 6 {
		t.Errorf("i = %v, want 6", f)
	}
}

// spec.md §5: a cancelled context aborts the run cleanly, returning a
// *CancelError before any iteration runs, with no output produced.
func TestDataStep_CancelledContextAbortsRun(t *testing.T) {
	l := lexer.New(`data out; set in; x = 2; output; run;`)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	e := env.New(t.TempDir())
	src := pdv.New("in", []pdv.Column{{Name: "X", Kind: value.Number}})
	src.Rows = append(src.Rows, pdv.Row{value.Num64(1)})
	e.PublishDataset("", "in", src)

	var ds *ast.DataStep
	for _, stmt := range program.Statements {
		if s, ok := stmt.(*ast.DataStep); ok {
			ds = s
			break
		}
	}
	if ds == nil {
		t.Fatal("no data step parsed")
	}
	plan, err := exec.Compile(ds, e)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var warnings []string
	results, err := exec.Run(ctx, plan, &warnings)
	if results != nil {
		t.Errorf("results = %v, want nil on cancellation", results)
	}
	var cancelErr *exec.CancelError
	if err == nil {
		t.Fatal("expected a *exec.CancelError, got nil")
	}
	if ce, ok := err.(*exec.CancelError); !ok {
		t.Fatalf("err = %T, want *exec.CancelError", err)
	} else {
		cancelErr = ce
	}
	if !errors.Is(cancelErr.Unwrap(), context.Canceled) {
		t.Errorf("unwrapped error = %v, want context.Canceled", cancelErr.Unwrap())
	}
}

// spec.md §4.6: an undefined variable reference is a non-structural error.
// It marks the affected variable missing but must not abort the step —
// later rows, and later statements in the same row, still run.
func TestDataStep_UndefinedVariableDoesNotAbortStep(t *testing.T) {
	e := runStep(t, `data out; a = nosuchvar; b = 2; output; run;`)
	ds, ok := e.Dataset("", "out")
	if !ok {
		t.Fatal("WORK.out not published despite a recoverable error")
	}
	if len(ds.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(ds.Rows))
	}
	if !value.IsMissingNumber(ds.Rows[0][col(ds, "a")]) {
		t.Errorf("a = %v, want missing", ds.Rows[0][col(ds, "a")])
	}
	if f, _ := value.AsNumber(ds.Rows[0][col(ds, "b")]); f != 2 {
		t.Errorf("b = %v, want 2 (statement after the error must still run)", f)
	}
}

// spec.md §4.6: an out-of-range array index marks the target missing and
// continues, rather than aborting the whole step.
func TestDataStep_ArrayOutOfRangeDoesNotAbortStep(t *testing.T) {
	e := runStep(t, `
data out; array nums{2} n1 n2;
  n1 = 1; n2 = 2;
  nums{5} = 99;
  c = 3;
  output;
run;
`)
	ds, ok := e.Dataset("", "out")
	if !ok {
		t.Fatal("WORK.out not published despite a recoverable error")
	}
	if len(ds.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(ds.Rows))
	}
	if f, _ := value.AsNumber(ds.Rows[0][col(ds, "n1")]); f != 1 {
		t.Errorf("n1 = %v, want 1 (untouched by the out-of-range write)", f)
	}
	if f, _ := value.AsNumber(ds.Rows[0][col(ds, "c")]); f != 3 {
		t.Errorf("c = %v, want 3 (statement after the error must still run)", f)
	}
}

// spec.md §4.6: re-assigning a variable with a conflicting type marks it
// missing (its originally-declared type is kept) rather than aborting.
func TestDataStep_TypeConflictDoesNotAbortStep(t *testing.T) {
	e := runStep(t, `data out; a = 1; a = "oops"; b = 2; output; run;`)
	ds, ok := e.Dataset("", "out")
	if !ok {
		t.Fatal("WORK.out not published despite a recoverable error")
	}
	if len(ds.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(ds.Rows))
	}
	if ds.Columns[col(ds, "a")].Kind != value.Number {
		t.Errorf("a's declared kind = %v, want Number (first assignment fixes the type)", ds.Columns[col(ds, "a")].Kind)
	}
	if !value.IsMissingNumber(ds.Rows[0][col(ds, "a")]) {
		t.Errorf("a = %v, want missing after the conflicting re-assignment", ds.Rows[0][col(ds, "a")])
	}
	if f, _ := value.AsNumber(ds.Rows[0][col(ds, "b")]); f != 2 {
		t.Errorf("b = %v, want 2 (statement after the error must still run)", f)
	}
}
