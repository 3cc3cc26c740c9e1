package proc

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/env"
	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// Print renders a PROC PRINT listing to w (spec.md §4.5, S6): a header
// line of column names followed by one formatted line per row, honoring
// VAR column selection and an OBS=N row limit. Numeric cells are
// right-aligned, string cells left-aligned, matching how SAS's own PROC
// PRINT lays out a listing. The cancellation hook (spec.md §5) is polled
// between row emissions; a cancelled ctx aborts mid-listing and returns
// ctx.Err() rather than writing the remaining rows.
func Print(ctx context.Context, step *ast.ProcStep, e *env.Environment, w io.Writer) error {
	ds, err := resolveData(step, e)
	if err != nil {
		return err
	}

	cols := ds.Columns
	if len(step.Var) > 0 {
		cols = nil
		for _, name := range step.Var {
			idx, ok := ds.ColumnIndex(name)
			if !ok {
				return fmt.Errorf("PROC PRINT: unknown column %q", name)
			}
			cols = append(cols, ds.Columns[idx])
		}
	}

	rows, err := whereFilter(ds, step.Where)
	if err != nil {
		return err
	}
	if step.HasObs && step.Obs >= 0 && step.Obs < len(rows) {
		rows = rows[:step.Obs]
	}

	selIdx := make([]int, len(cols))
	for i, c := range cols {
		idx, _ := ds.ColumnIndex(c.Name)
		selIdx[i] = idx
	}

	cells := make([][]string, len(rows))
	for ri, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := make([]string, len(cols))
		for ci, srcIdx := range selIdx {
			line[ci] = formatCell(row[srcIdx])
		}
		cells[ri] = line
	}

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c.Name)
	}
	for _, line := range cells {
		for i, text := range line {
			if len(text) > widths[i] {
				widths[i] = len(text)
			}
		}
	}

	var sb strings.Builder
	for i, c := range cols {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(padHeader(c, widths[i]))
	}
	sb.WriteString("\n")

	for _, line := range cells {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, c := range cols {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(padCell(line[i], c.Kind, widths[i]))
		}
		sb.WriteString("\n")
	}

	_, err = io.WriteString(w, sb.String())
	return err
}

func padHeader(c pdv.Column, width int) string {
	if c.Kind == value.String {
		return c.Name + strings.Repeat(" ", width-len(c.Name))
	}
	return strings.Repeat(" ", width-len(c.Name)) + c.Name
}

func padCell(text string, kind value.Kind, width int) string {
	if kind == value.String {
		return text + strings.Repeat(" ", width-len(text))
	}
	return strings.Repeat(" ", width-len(text)) + text
}

func formatCell(v value.Value) string {
	if v.Kind == value.String {
		return value.TrimRight(v)
	}
	if value.IsMissingNumber(v) {
		return "."
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}
