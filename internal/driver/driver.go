// Package driver implements the program driver (spec.md §4.6 design/§9):
// it walks a parsed Program's top-level statements, routes LIBNAME/
// OPTIONS/TITLE to Environment mutation, dispatches DATA steps to
// internal/exec and PROC steps to internal/proc, persists outputs via
// internal/tdf, and implements spec.md §7's per-step error recovery.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/env"
	serrors "github.com/cwbudde/go-sdpl/internal/errors"
	"github.com/cwbudde/go-sdpl/internal/exec"
	"github.com/cwbudde/go-sdpl/internal/library"
	"github.com/cwbudde/go-sdpl/internal/logging"
	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/proc"
	"github.com/cwbudde/go-sdpl/internal/tdf"
)

// Driver executes a parsed Program against an Environment, one top-level
// statement at a time.
type Driver struct {
	Env     *env.Environment
	Log     *logging.Logger
	Listing io.Writer // PROC PRINT sink; nil suppresses listings (--no-listing)

	// Failed is true once any non-cancel error has occurred, driving the
	// CLI's exit code 1 (spec.md §7).
	Failed bool

	// Trace enables `sdpl run --trace`: the final PDV state of every DATA
	// step is dumped at Debug level once the step completes.
	Trace bool
}

// New creates a Driver bound to e, logging to log and printing PROC PRINT
// listings to listing (which may be nil).
func New(e *env.Environment, log *logging.Logger, listing io.Writer) *Driver {
	return &Driver{Env: e, Log: log, Listing: listing}
}

// Run executes every top-level statement in prog in order. It returns a
// CancelError immediately if ctx is already cancelled, and propagates one
// the moment cancellation is observed between steps (spec.md §5); every
// other step-level error is recorded (Failed=true) and execution continues
// with the next top-level statement, matching spec.md §7's "Lex/Parse
// errors are recovered at the next statement boundary" for steps that
// failed during their own compile phase.
func (d *Driver) Run(ctx context.Context, prog *ast.Program, file string) error {
	for _, stmt := range prog.Statements {
		if err := ctx.Err(); err != nil {
			return serrors.NewStepError(serrors.CancelErrorKind, "cancelled", file, stmt.Pos())
		}

		var cancelled bool
		switch s := stmt.(type) {
		case *ast.LibnameStmt:
			d.Env.CreateLibrary(s.Libref, s.Path)
		case *ast.OptionsStmt:
			for k, v := range s.Options {
				d.Env.SetOption(k, v)
			}
		case *ast.TitleStmt:
			d.Env.Title = s.Text
			d.restampTitles(s.Text)
		case *ast.DataStep:
			cancelled = d.runDataStep(ctx, s, file)
		case *ast.ProcStep:
			cancelled = d.runProcStep(ctx, s, file)
		}
		if cancelled {
			return serrors.NewStepError(serrors.CancelErrorKind, "cancelled", file, stmt.Pos())
		}
	}
	return nil
}

func (d *Driver) fail(kind serrors.Kind, msg, file string, pos ast.Node) {
	d.Failed = true
	se := serrors.NewStepError(kind, msg, file, pos.Pos())
	if d.Log != nil {
		d.Log.Error("%s", se.Error())
	}
}

// runDataStep compiles and runs a DATA step, publishing its declared
// outputs. It returns true if cancellation was observed mid-run: per
// spec.md §5/§7 the step's partial output is discarded (no publish call
// is made) and the whole program aborts.
func (d *Driver) runDataStep(ctx context.Context, s *ast.DataStep, file string) bool {
	plan, err := exec.Compile(s, d.Env)
	if err != nil {
		d.fail(serrors.SemanticErrorKind, err.Error(), file, s)
		return false
	}

	var warnings []string
	results, err := exec.Run(ctx, plan, &warnings)
	if err != nil {
		if _, ok := err.(*exec.CancelError); ok {
			return true
		}
		d.fail(serrors.EvalErrorKind, err.Error(), file, s)
		return false
	}
	for _, w := range warnings {
		if d.Log != nil {
			d.Log.Warn("%s", w)
		}
	}
	if d.Trace && d.Log != nil {
		d.Log.Debug("final PDV state for data step:\n%s", serrors.DumpPDV(plan.PDV))
	}

	for _, ref := range s.Outputs {
		res, ok := results[refKey(ref)]
		if !ok {
			continue
		}
		if err := d.publish(ref.Library, ref.Member, res.Columns, res.Rows); err != nil {
			d.fail(serrors.IoErrorKind, err.Error(), file, s)
			return false
		}
	}
	return false
}

// runProcStep dispatches a PROC step, returning true if cancellation was
// observed between row emissions (spec.md §5): the OUT= dataset, if any,
// is not committed.
func (d *Driver) runProcStep(ctx context.Context, s *ast.ProcStep, file string) bool {
	switch s.Kind {
	case ast.ProcPrint:
		if d.Listing == nil {
			return false
		}
		if err := proc.Print(ctx, s, d.Env, d.Listing); err != nil {
			if isCancelled(err) {
				return true
			}
			d.fail(serrors.EvalErrorKind, err.Error(), file, s)
		}
	case ast.ProcSort:
		result, err := proc.Sort(ctx, s, d.Env)
		if err != nil {
			if isCancelled(err) {
				return true
			}
			d.fail(serrors.SemanticErrorKind, err.Error(), file, s)
			return false
		}
		if err := d.publish(result.Libref, result.Member, result.Dataset.Columns, result.Dataset.Rows); err != nil {
			d.fail(serrors.IoErrorKind, err.Error(), file, s)
		}
	}
	return false
}

// isCancelled reports whether err is context.Canceled/DeadlineExceeded,
// surfaced by internal/proc's row-emission polling (spec.md §5).
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// restampTitles re-stamps the meta.title field of every already-published
// dataset's on-disk TDF file after a TITLE statement changes the
// environment's title mid-program, so datasets published before the TITLE
// statement do not retain a stale title in storage.
// Failures are logged, not fatal: a TITLE statement carries no RUN boundary
// of its own to abort.
func (d *Driver) restampTitles(title string) {
	for _, ref := range d.Env.PublishedRefs() {
		dir, ok := d.Env.ResolveLibrary(ref.Libref)
		if !ok {
			continue
		}
		path := library.MemberPath(dir, ref.Member)
		if err := tdf.SetTitleMeta(path, title); err != nil && d.Log != nil {
			d.Log.Warn("%s", err.Error())
		}
	}
}

func (d *Driver) publish(libref, member string, columns []pdv.Column, rows []pdv.Row) error {
	dir, ok := d.Env.ResolveLibrary(libref)
	if !ok {
		return fmt.Errorf("unresolved library %q", libref)
	}
	path := library.MemberPath(dir, member)
	if err := tdf.Save(path, d.Env.Title, columns, rows); err != nil {
		return err
	}
	ds := pdv.New(member, columns)
	ds.Rows = rows
	d.Env.PublishDataset(libref, member, ds)
	return nil
}

func refKey(r ast.Ref) string {
	if r.Library != "" {
		return r.Library + "." + r.Member
	}
	return r.Member
}
