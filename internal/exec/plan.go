// Package exec implements the DATA-step executor (spec.md §4.4): a
// compile pass that resolves variable slots and array bindings, an
// iteration pass that streams rows from SET/MERGE/INPUT/DATALINES or runs
// the body once in "create from scratch" mode, and a finalize pass that
// materializes the output dataset(s); internal/driver persists them.
package exec

import (
	"fmt"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/env"
	"github.com/cwbudde/go-sdpl/internal/eval"
	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// sourceKind enumerates spec.md §4.4's four row-iteration sources.
type sourceKind int

const (
	sourceNone sourceKind = iota
	sourceSet
	sourceMerge
	sourceInput
)

// Plan is the result of compiling a DataStep: resolved PDV, array
// bindings, the row source, and the executable (non-declarative) body.
type Plan struct {
	PDV    *pdv.PDV
	Arrays map[string]eval.ArrayBinding

	outputs []ast.Ref

	source     sourceKind
	setDs      []*pdv.Dataset // sourceSet / sourceMerge inputs, in order
	setSlots   [][]int        // column slot per dataset, aligned to dataset.Columns
	byVars     []string       // not populated; MERGE and FIRST_/LAST_ flags read byFirstLastVars
	inputVars  []ast.InputVar
	inputSlots []int
	lines      []string // DATALINES raw lines

	body            []ast.Stmt // executable statements, declarative ones stripped
	hasOutputStmt   bool
	byFirstLastVars []string // BY vars named by a DATA-step BY statement (supplemented feature)
}

// Compile performs spec.md §4.4 step 1: walk the DataStep body once,
// declaring PDV slots for RETAIN/SET/MERGE/INPUT/LENGTH/ARRAY/DROP/KEEP in
// program order, and resolving the row source. Variables that only appear
// as assignment targets get their slot at their first executed assignment,
// so they follow the compiled columns in the order they are first assigned.
func Compile(ds *ast.DataStep, e *env.Environment) (*Plan, error) {
	p := &Plan{PDV: pdv.New(), Arrays: map[string]eval.ArrayBinding{}, outputs: ds.Outputs}

	if err := declarePass(ds.Body, p, e); err != nil {
		return nil, err
	}
	p.body = stripDeclarations(ds.Body)
	p.hasOutputStmt = containsOutput(ds.Body)
	return p, nil
}

// declarePass recurses into IF/DO bodies so that RETAIN/LENGTH/ARRAY/
// DROP/KEEP statements are honored regardless of nesting, matching real
// SAS's treatment of these as compile-time declarations.
func declarePass(stmts []ast.Stmt, p *Plan, e *env.Environment) error {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.SetStmt:
			if p.source != sourceNone {
				return fmt.Errorf("a DATA step may declare only one row source")
			}
			if err := bindSet(s, p, e); err != nil {
				return err
			}
		case *ast.MergeStmt:
			if p.source != sourceNone {
				return fmt.Errorf("a DATA step may declare only one row source")
			}
			if err := bindMerge(s, p, e); err != nil {
				return err
			}
		case *ast.InputStmt:
			if p.source != sourceNone {
				return fmt.Errorf("a DATA step may declare only one row source")
			}
			bindInput(s, p)
		case *ast.DatalinesStmt:
			p.lines = s.Lines
		case *ast.RetainStmt:
			initial := value.Missing()
			if s.Initial != nil {
				v, err := eval.Eval(s.Initial, &eval.Context{PDV: p.PDV, Arrays: p.Arrays})
				if err != nil {
					return err
				}
				initial = v
			}
			p.PDV.MarkRetained(s.Name, initial)
		case *ast.LengthStmt:
			kind := value.Number
			if s.IsString {
				kind = value.String
			}
			if err := p.PDV.DeclareLength(s.Name, kind, s.Length); err != nil {
				return err
			}
		case *ast.ArrayStmt:
			slots := make([]int, len(s.Vars))
			for i, v := range s.Vars {
				slots[i] = p.PDV.Slot(v)
			}
			p.Arrays[foldKey(s.Name)] = eval.ArrayBinding{Slots: slots}
		case *ast.DropStmt:
			for _, n := range s.Names {
				p.PDV.MarkDropped(n)
			}
		case *ast.KeepStmt:
			for _, n := range s.Names {
				p.PDV.MarkKept(n)
			}
		case *ast.ByStmt:
			for _, b := range s.Vars {
				p.byFirstLastVars = append(p.byFirstLastVars, b.Var)
				p.PDV.Slot("FIRST_" + b.Var)
				p.PDV.Slot("LAST_" + b.Var)
				p.PDV.MarkDropped("FIRST_" + b.Var)
				p.PDV.MarkDropped("LAST_" + b.Var)
			}
		case *ast.IfStmt:
			if err := declarePass([]ast.Stmt{s.Then}, p, e); err != nil {
				return err
			}
			if s.Else != nil {
				if err := declarePass([]ast.Stmt{s.Else}, p, e); err != nil {
					return err
				}
			}
		case *ast.DoStmt:
			if s.Kind == ast.DoTo {
				p.PDV.Slot(s.Var)
			}
			if err := declarePass(s.Body, p, e); err != nil {
				return err
			}
		case *ast.BlockStmt:
			if err := declarePass(s.Body, p, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func bindSet(s *ast.SetStmt, p *Plan, e *env.Environment) error {
	p.source = sourceSet
	for _, ref := range s.Inputs {
		ds, ok := e.Dataset(ref.Library, ref.Member)
		if !ok {
			return fmt.Errorf("missing input dataset %s", refName(ref))
		}
		p.setDs = append(p.setDs, ds)
		slots := make([]int, len(ds.Columns))
		for i, c := range ds.Columns {
			slots[i] = p.PDV.Slot(c.Name)
			_ = p.PDV.DeclareLength(c.Name, c.Kind, c.Length)
		}
		p.setSlots = append(p.setSlots, slots)
	}
	return nil
}

func bindMerge(s *ast.MergeStmt, p *Plan, e *env.Environment) error {
	p.source = sourceMerge
	for _, ref := range s.Inputs {
		ds, ok := e.Dataset(ref.Library, ref.Member)
		if !ok {
			return fmt.Errorf("missing input dataset %s", refName(ref))
		}
		p.setDs = append(p.setDs, ds)
		slots := make([]int, len(ds.Columns))
		for i, c := range ds.Columns {
			slots[i] = p.PDV.Slot(c.Name)
			_ = p.PDV.DeclareLength(c.Name, c.Kind, c.Length)
		}
		p.setSlots = append(p.setSlots, slots)
	}
	return nil
}

func bindInput(s *ast.InputStmt, p *Plan) {
	p.source = sourceInput
	p.inputVars = s.Vars
	p.inputSlots = make([]int, len(s.Vars))
	for i, v := range s.Vars {
		length := 8
		kind := value.Number
		if v.IsString {
			kind = value.String
		}
		idx := p.PDV.Slot(v.Name)
		_ = p.PDV.DeclareLength(v.Name, kind, length)
		p.inputSlots[i] = idx
	}
}

func refName(r ast.Ref) string {
	if r.Library != "" {
		return r.Library + "." + r.Member
	}
	return r.Member
}

func foldKey(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}

// stripDeclarations returns a copy of stmts with the compile-time-only
// statement kinds removed, recursing into IF/DO bodies (their control flow
// is still executed at runtime even though the declarations inside them
// were already applied).
func stripDeclarations(stmts []ast.Stmt) []ast.Stmt {
	var out []ast.Stmt
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.SetStmt, *ast.MergeStmt, *ast.InputStmt, *ast.DatalinesStmt,
			*ast.RetainStmt, *ast.LengthStmt, *ast.ArrayStmt, *ast.DropStmt, *ast.KeepStmt, *ast.ByStmt:
			continue
		case *ast.IfStmt:
			ns := *s
			ns.Then = wrapBlock(stripDeclarations([]ast.Stmt{s.Then}))
			if s.Else != nil {
				ns.Else = wrapBlock(stripDeclarations([]ast.Stmt{s.Else}))
			}
			out = append(out, &ns)
		case *ast.DoStmt:
			ns := *s
			ns.Body = stripDeclarations(s.Body)
			out = append(out, &ns)
		case *ast.BlockStmt:
			ns := *s
			ns.Body = stripDeclarations(s.Body)
			out = append(out, &ns)
		default:
			out = append(out, stmt)
		}
	}
	return out
}

// wrapBlock unwraps a single-statement slice back to its original node, or
// wraps multiple into a BlockStmt; used after stripping declarations from a
// THEN/ELSE arm that was originally a single statement.
func wrapBlock(stmts []ast.Stmt) ast.Stmt {
	if len(stmts) == 1 {
		return stmts[0]
	}
	if len(stmts) == 0 {
		return &ast.BlockStmt{}
	}
	return &ast.BlockStmt{Body: stmts}
}

func containsOutput(stmts []ast.Stmt) bool {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.OutputStmt:
			return true
		case *ast.IfStmt:
			if containsOutput([]ast.Stmt{s.Then}) {
				return true
			}
			if s.Else != nil && containsOutput([]ast.Stmt{s.Else}) {
				return true
			}
		case *ast.DoStmt:
			if containsOutput(s.Body) {
				return true
			}
		case *ast.BlockStmt:
			if containsOutput(s.Body) {
				return true
			}
		}
	}
	return false
}
