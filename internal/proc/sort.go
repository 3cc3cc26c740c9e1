package proc

import (
	"context"
	"fmt"
	"sort"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/env"
	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// SortResult is the sorted dataset plus the (libref, member) it should be
// published under: OUT= if given, otherwise the input's own identity
// (spec.md §4.5: "writes to OUT=out if present, otherwise replaces in").
type SortResult struct {
	Dataset       *pdv.Dataset
	Libref        string
	Member        string
}

// Sort implements PROC SORT (spec.md §4.5): WHERE-filters, then a stable
// sort by the BY variable list (ascending, or descending per-variable),
// then NODUPKEY and/or DUPLICATES(NODUP) deduplication. The cancellation
// hook (spec.md §5) is polled once per sorted row during deduplication, the
// closest analogue PROC SORT has to PRINT's row emissions; a cancelled
// ctx returns ctx.Err() and the caller must not commit OUT=.
func Sort(ctx context.Context, step *ast.ProcStep, e *env.Environment) (*SortResult, error) {
	ds, err := resolveData(step, e)
	if err != nil {
		return nil, err
	}
	if len(step.By) == 0 {
		return nil, fmt.Errorf("PROC SORT requires a BY statement")
	}

	byIdx := make([]int, len(step.By))
	for i, b := range step.By {
		idx, ok := ds.ColumnIndex(b.Var)
		if !ok {
			return nil, fmt.Errorf("PROC SORT: unknown BY variable %q", b.Var)
		}
		byIdx[i] = idx
	}

	rows, err := whereFilter(ds, step.Where)
	if err != nil {
		return nil, err
	}
	sorted := make([]pdv.Row, len(rows))
	copy(sorted, rows)

	sort.SliceStable(sorted, func(i, j int) bool {
		for k, idx := range byIdx {
			c := value.Compare(sorted[i][idx], sorted[j][idx])
			if c == 0 {
				continue
			}
			if step.By[k].Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	var kept []pdv.Row
	var prev pdv.Row
	for _, row := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keep := true
		if prev != nil {
			if step.NoDupKey && sameByKey(prev, row, byIdx) {
				keep = false
			}
			if keep && step.Duplicates && row.Equal(prev) {
				keep = false
			}
		}
		if keep {
			kept = append(kept, row)
			prev = row
		}
	}

	out := pdv.New(ds.Name, ds.Columns)
	out.Rows = kept

	libref, member := "", ds.Name
	if step.HasOut {
		libref, member = step.Out.Library, step.Out.Member
	} else if step.HasData {
		libref, member = step.Data.Library, step.Data.Member
	} else if l, m, ok := e.LastRef(); ok {
		libref, member = l, m
	}
	return &SortResult{Dataset: out, Libref: libref, Member: member}, nil
}

func sameByKey(a, b pdv.Row, byIdx []int) bool {
	for _, idx := range byIdx {
		if !value.Equal(a[idx], b[idx]) {
			return false
		}
	}
	return true
}
