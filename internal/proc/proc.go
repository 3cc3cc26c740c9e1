// Package proc implements the PROC executor (spec.md §4.5): PRINT and
// SORT(+NODUPKEY/DUPLICATES), the two PROC steps the core interprets.
package proc

import (
	"fmt"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/env"
	"github.com/cwbudde/go-sdpl/internal/eval"
	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// resolveData finds a ProcStep's DATA= input, defaulting to the most
// recently created dataset when omitted (spec.md §4.5).
func resolveData(step *ast.ProcStep, e *env.Environment) (*pdv.Dataset, error) {
	if step.HasData {
		ds, ok := e.Dataset(step.Data.Library, step.Data.Member)
		if !ok {
			return nil, fmt.Errorf("missing input dataset %s", refName(step.Data))
		}
		return ds, nil
	}
	ds, ok := e.LastDataset()
	if !ok {
		return nil, fmt.Errorf("no DATA= given and no dataset has been created yet")
	}
	return ds, nil
}

func refName(r ast.Ref) string {
	if r.Library != "" {
		return r.Library + "." + r.Member
	}
	return r.Member
}

// whereFilter returns ds's rows that satisfy step.Where (or all rows, if
// no WHERE clause is present), evaluating the predicate against a
// throwaway PDV seeded with each row's columns.
func whereFilter(ds *pdv.Dataset, where ast.Expr) ([]pdv.Row, error) {
	if where == nil {
		return ds.Rows, nil
	}
	var out []pdv.Row
	for _, row := range ds.Rows {
		p := pdv.New()
		for i, c := range ds.Columns {
			idx := p.Slot(c.Name)
			if err := p.Set(idx, row[i]); err != nil {
				return nil, err
			}
		}
		v, err := eval.Eval(where, &eval.Context{PDV: p})
		if err != nil {
			return nil, err
		}
		if value.IsTruthy(v) {
			out = append(out, row)
		}
	}
	return out, nil
}
