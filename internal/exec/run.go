package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/eval"
	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// CancelError marks a DATA step aborted by cooperative cancellation
// (spec.md §5): the step's partial output must not be committed.
type CancelError struct{ Err error }

func (e *CancelError) Error() string { return "cancelled: " + e.Err.Error() }
func (e *CancelError) Unwrap() error { return e.Err }

// Result is one output dataset produced by a DATA step, keyed by its Ref's
// textual form so the driver can match it back to ast.DataStep.Outputs.
type Result struct {
	Columns []pdv.Column
	Rows    []pdv.Row
}

// rowSnapshot is what gets recorded on every OUTPUT event: a live call into
// FromPDV, taken at whatever point in the run the slot set had reached.
// Rows are reconciled to the step's final column set at Finalize time
// (spec.md §4.4 step 3), since a variable first assigned on, say, the third
// iteration would otherwise be missing from earlier snapshots.
type rowSnapshot struct {
	cols []pdv.Column
	row  pdv.Row
}

// Run drives spec.md §4.4's iterate and finalize phases: it streams rows
// from the plan's source (or runs the body once, for "create from
// scratch"), executing the non-declarative body statements each iteration,
// then builds and returns one Result per declared output. The cancellation
// hook is polled at the top of each iteration (spec.md §5); if ctx is
// cancelled, Run returns a *CancelError and the caller must discard any
// OUT= dataset rather than commit partial output.
func Run(ctx context.Context, plan *Plan, warnings *[]string) (map[string]*Result, error) {
	binder := plan.newBinder()
	flatKeys := computeByKeys(plan)

	snapshots := map[string][]rowSnapshot{}
	for _, ref := range plan.outputs {
		snapshots[refName(ref)] = nil
	}

	ectx := &eval.Context{PDV: plan.PDV, Arrays: plan.Arrays, Warnings: warnings}

	i := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, &CancelError{Err: err}
		}
		plan.PDV.ResetForIteration()
		ok, err := binder.next(plan.PDV)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		setByFlags(plan, flatKeys, i)

		rc := &runCtx{plan: plan, ctx: ectx, snapshots: snapshots}
		if err := execStmts(plan.body, rc); err != nil {
			return nil, err
		}

		if !plan.hasOutputStmt {
			emit(plan, snapshots, nil)
		}
		i++
	}

	return finalize(plan, snapshots), nil
}

// runCtx carries per-step mutable state through statement execution: the
// expression Context and the accumulating per-output row snapshots.
type runCtx struct {
	plan      *Plan
	ctx       *eval.Context
	snapshots map[string][]rowSnapshot
}

func execStmts(stmts []ast.Stmt, rc *runCtx) error {
	for _, s := range stmts {
		if err := execStmt(s, rc); err != nil {
			return err
		}
	}
	return nil
}

// recoverable reports whether err is one of spec.md §4.6's non-structural
// runtime error classes: bad array index, undefined variable, or a PDV
// type conflict on re-assignment. These must mark the offending variable
// missing and let the step continue rather than abort it; step-abort stays
// reserved for structural failures (missing input dataset, malformed ARRAY
// declaration) that propagate as plain errors here.
func recoverable(err error) bool {
	var evalErr *eval.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Kind == eval.UndefinedVariable || evalErr.Kind == eval.ArrayOutOfRange
	}
	var typeErr *pdv.TypeConflictError
	return errors.As(err, &typeErr)
}

// evalOrMissing evaluates expr, downgrading a recoverable error (see
// recoverable) to a recorded warning and the missing value.
func evalOrMissing(expr ast.Expr, rc *runCtx) (value.Value, error) {
	v, err := eval.Eval(expr, rc.ctx)
	if err == nil {
		return v, nil
	}
	if !recoverable(err) {
		return value.Value{}, err
	}
	rc.ctx.Warnf("%s", err.Error())
	return value.Missing(), nil
}

// setOrMissing assigns v to slot idx, downgrading a type-conflict error to
// a recorded warning and leaving the slot at its missing at-rest value.
func setOrMissing(rc *runCtx, idx int, v value.Value) error {
	if err := rc.plan.PDV.Set(idx, v); err != nil {
		if !recoverable(err) {
			return err
		}
		rc.ctx.Warnf("%s", err.Error())
		rc.plan.PDV.SetMissing(idx)
	}
	return nil
}

func execStmt(stmt ast.Stmt, rc *runCtx) error {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		v, err := evalOrMissing(s.Value, rc)
		if err != nil {
			return err
		}
		if s.Index != nil {
			ref := &ast.ArrayRef{Name: s.Name, Index: s.Index, Position: s.Position}
			if err := eval.SetArrayRef(ref, v, rc.ctx); err != nil {
				if !recoverable(err) {
					return err
				}
				rc.ctx.Warnf("%s", err.Error())
			}
			return nil
		}
		idx := rc.plan.PDV.Slot(s.Name)
		return setOrMissing(rc, idx, v)

	case *ast.IfStmt:
		cond, err := evalOrMissing(s.Cond, rc)
		if err != nil {
			return err
		}
		if value.IsTruthy(cond) {
			return execStmt(s.Then, rc)
		}
		if s.Else != nil {
			return execStmt(s.Else, rc)
		}
		return nil

	case *ast.DoStmt:
		return execDo(s, rc)

	case *ast.BlockStmt:
		return execStmts(s.Body, rc)

	case *ast.OutputStmt:
		emit(rc.plan, rc.snapshots, s.Target)
		return nil
	}
	return nil
}

func execDo(s *ast.DoStmt, rc *runCtx) error {
	switch s.Kind {
	case ast.DoBlock:
		return execStmts(s.Body, rc)

	case ast.DoTo:
		low, err := evalOrMissing(s.Low, rc)
		if err != nil {
			return err
		}
		high, err := evalOrMissing(s.High, rc)
		if err != nil {
			return err
		}
		step := 1.0
		if s.Step != nil {
			sv, err := evalOrMissing(s.Step, rc)
			if err != nil {
				return err
			}
			step, _ = value.AsNumber(sv)
		}
		lo, _ := value.AsNumber(low)
		hi, _ := value.AsNumber(high)
		idx := rc.plan.PDV.Slot(s.Var)
		if step == 0 {
			return fmt.Errorf("DO loop step cannot be zero")
		}
		v := lo
		for (step > 0 && v <= hi) || (step < 0 && v >= hi) {
			if err := setOrMissing(rc, idx, value.Num64(v)); err != nil {
				return err
			}
			if err := execStmts(s.Body, rc); err != nil {
				return err
			}
			v += step
		}
		// spec.md §4.4: var holds hi+step once the loop exits, not the last
		// in-range value — commit the final out-of-range iterator value too.
		if err := setOrMissing(rc, idx, value.Num64(v)); err != nil {
			return err
		}
		return nil

	case ast.DoWhile:
		for {
			cond, err := evalOrMissing(s.Cond, rc)
			if err != nil {
				return err
			}
			if !value.IsTruthy(cond) {
				return nil
			}
			if err := execStmts(s.Body, rc); err != nil {
				return err
			}
		}

	case ast.DoUntil:
		for {
			if err := execStmts(s.Body, rc); err != nil {
				return err
			}
			cond, err := evalOrMissing(s.Cond, rc)
			if err != nil {
				return err
			}
			if value.IsTruthy(cond) {
				return nil
			}
		}
	}
	return nil
}

// emit records an OUTPUT event's current PDV snapshot against target (or
// every declared output, when target is nil).
func emit(plan *Plan, snapshots map[string][]rowSnapshot, target *ast.Ref) {
	cols, row := pdv.FromPDV(plan.PDV)
	snap := rowSnapshot{cols: cols, row: row}
	if target != nil {
		key := refName(*target)
		snapshots[key] = append(snapshots[key], snap)
		return
	}
	for _, ref := range plan.outputs {
		key := refName(ref)
		snapshots[key] = append(snapshots[key], snap)
	}
}

// finalize reconciles every recorded snapshot against the step's final
// column set (spec.md §4.4 step 3): a variable not yet first-assigned at
// the time a given row was emitted is backfilled with its missing/blank
// at-rest value.
func finalize(plan *Plan, snapshots map[string][]rowSnapshot) map[string]*Result {
	finalCols := toColumns(plan.PDV.OutputColumns())
	out := map[string]*Result{}
	for _, ref := range plan.outputs {
		key := refName(ref)
		res := &Result{Columns: finalCols}
		for _, snap := range snapshots[key] {
			res.Rows = append(res.Rows, reconcile(finalCols, snap.cols, snap.row))
		}
		out[key] = res
	}
	return out
}

func toColumns(slots []pdv.Slot) []pdv.Column {
	cols := make([]pdv.Column, len(slots))
	for i, s := range slots {
		cols[i] = pdv.Column{Name: s.Name, Kind: s.Kind, Length: s.Length}
	}
	return cols
}

func reconcile(finalCols, origCols []pdv.Column, origRow pdv.Row) pdv.Row {
	row := make(pdv.Row, len(finalCols))
	for i, fc := range finalCols {
		found := false
		for j, oc := range origCols {
			if foldKey(oc.Name) == foldKey(fc.Name) {
				row[i] = origRow[j]
				found = true
				break
			}
		}
		if !found {
			if fc.Kind == value.String {
				row[i] = value.NewString("", fc.Length)
			} else {
				row[i] = value.Missing()
			}
		}
	}
	return row
}

// computeByKeys precomputes the BY-group key for every logical SET
// iteration, used to drive the FIRST./LAST. supplemented feature. MERGE
// sources don't get FIRST./LAST. tracking (see DESIGN.md).
func computeByKeys(plan *Plan) []string {
	if len(plan.byFirstLastVars) == 0 || plan.source != sourceSet {
		return nil
	}
	var keys []string
	for _, ds := range plan.setDs {
		for _, row := range ds.Rows {
			keys = append(keys, mergeKey(ds, row, plan.byFirstLastVars))
		}
	}
	return keys
}

func setByFlags(plan *Plan, keys []string, i int) {
	for _, v := range plan.byFirstLastVars {
		firstIdx, ok1 := plan.PDV.Lookup("FIRST_" + v)
		lastIdx, ok2 := plan.PDV.Lookup("LAST_" + v)
		if !ok1 || !ok2 {
			continue
		}
		first, last := 0.0, 0.0
		if i < len(keys) {
			if i == 0 || keys[i-1] != keys[i] {
				first = 1
			}
			if i == len(keys)-1 || keys[i+1] != keys[i] {
				last = 1
			}
		}
		plan.PDV.Set(firstIdx, value.Num64(first))
		plan.PDV.Set(lastIdx, value.Num64(last))
	}
}
