package parser_test

import (
	"testing"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/lexer"
	"github.com/cwbudde/go-sdpl/internal/parser"
)

func parse(t *testing.T, source string) *ast.Program {
	t.Helper()
	l := lexer.New(source)
	p := parser.New(l)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return prog
}

func TestParseDataStep_OutputsAndBody(t *testing.T) {
	prog := parse(t, `data out; a = 1 + 2; output; run;`)
	if len(prog.Statements) != 1 {
		t.Fatalf("got %d top-level statements, want 1", len(prog.Statements))
	}
	ds, ok := prog.Statements[0].(*ast.DataStep)
	if !ok {
		t.Fatalf("got %T, want *ast.DataStep", prog.Statements[0])
	}
	if len(ds.Outputs) != 1 || ds.Outputs[0].Member != "out" {
		t.Fatalf("got outputs %+v, want [out]", ds.Outputs)
	}
	if len(ds.Body) != 2 {
		t.Fatalf("got %d body statements, want 2 (assign, output)", len(ds.Body))
	}
	assign, ok := ds.Body[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("got %T, want *ast.AssignStmt", ds.Body[0])
	}
	if _, ok := assign.Value.(*ast.Binary); !ok {
		t.Errorf("got %T, want *ast.Binary for 1 + 2", assign.Value)
	}
}

func TestParseDataStep_LibrariedOutput(t *testing.T) {
	prog := parse(t, `data mylib.out; run;`)
	ds := prog.Statements[0].(*ast.DataStep)
	if ds.Outputs[0].Library != "mylib" || ds.Outputs[0].Member != "out" {
		t.Errorf("got %+v, want library mylib member out", ds.Outputs[0])
	}
}

func TestParseProcSort_ByAndOptions(t *testing.T) {
	prog := parse(t, `proc sort data=a out=b nodupkey; by x descending y; run;`)
	step := prog.Statements[0].(*ast.ProcStep)
	if step.Kind != ast.ProcSort {
		t.Fatalf("got kind %v, want ProcSort", step.Kind)
	}
	if !step.HasData || step.Data.Member != "a" {
		t.Errorf("got Data=%+v, want a", step.Data)
	}
	if !step.HasOut || step.Out.Member != "b" {
		t.Errorf("got Out=%+v, want b", step.Out)
	}
	if !step.NoDupKey {
		t.Error("want NoDupKey true")
	}
	if len(step.By) != 2 || step.By[0].Var != "x" || step.By[0].Descending {
		t.Errorf("got By[0]=%+v, want ascending x", step.By[0])
	}
	if step.By[1].Var != "y" || !step.By[1].Descending {
		t.Errorf("got By[1]=%+v, want descending y", step.By[1])
	}
}

func TestParseDo_ToWithByStep(t *testing.T) {
	prog := parse(t, `data out; do i = 1 to 10 by 2; output; end; run;`)
	ds := prog.Statements[0].(*ast.DataStep)
	do, ok := ds.Body[0].(*ast.DoStmt)
	if !ok {
		t.Fatalf("got %T, want *ast.DoStmt", ds.Body[0])
	}
	if do.Kind != ast.DoTo {
		t.Fatalf("got Kind=%v, want DoTo", do.Kind)
	}
	if do.Var != "i" {
		t.Errorf("got Var=%q, want i", do.Var)
	}
	step, ok := do.Step.(*ast.NumLit)
	if !ok {
		t.Fatalf("got Step=%T, want *ast.NumLit (BY clause should parse, not be dropped)", do.Step)
	}
	if step.Value != 2 {
		t.Errorf("got Step=%v, want 2", step.Value)
	}
	if len(do.Body) != 1 {
		t.Fatalf("got %d body statements, want 1 (output) - a misparsed BY would swallow OUTPUT", len(do.Body))
	}
}

func TestParseErrors_RecoverAtNextStatement(t *testing.T) {
	l := lexer.New(`data out; @@@ = 1; b = 2; run;`)
	p := parser.New(l)
	prog := p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatal("want at least one parse error for the invalid token")
	}
	ds, ok := prog.Statements[0].(*ast.DataStep)
	if !ok {
		t.Fatalf("got %T, want *ast.DataStep to still be recovered", prog.Statements[0])
	}
	found := false
	for _, stmt := range ds.Body {
		if a, ok := stmt.(*ast.AssignStmt); ok && a.Name == "b" {
			found = true
		}
	}
	if !found {
		t.Error("parser should recover and still parse 'b = 2;' after the bad token")
	}
}
