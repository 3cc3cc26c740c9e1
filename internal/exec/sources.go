package exec

import (
	"strconv"
	"strings"

	"github.com/cwbudde/go-sdpl/internal/pdv"
	"github.com/cwbudde/go-sdpl/internal/value"
)

// rowBinder binds one source row's values into the plan's PDV ahead of a
// body execution; it returns false once the source is exhausted.
type rowBinder interface {
	next(p *pdv.PDV) (bool, error)
}

func (p *Plan) newBinder() rowBinder {
	switch p.source {
	case sourceSet:
		return &setBinder{plan: p}
	case sourceMerge:
		return newMergeBinder(p)
	case sourceInput:
		return &inputBinder{plan: p}
	default:
		return &onceBinder{}
	}
}

// onceBinder drives the "create from scratch" mode: the body runs exactly
// once with no bound input row (spec.md §4.4).
type onceBinder struct{ done bool }

func (b *onceBinder) next(_ *pdv.PDV) (bool, error) {
	if b.done {
		return false, nil
	}
	b.done = true
	return true, nil
}

// setBinder concatenates SET's input datasets in listed order.
type setBinder struct {
	plan   *Plan
	ds     int
	row    int
}

func (b *setBinder) next(p *pdv.PDV) (bool, error) {
	for b.ds < len(b.plan.setDs) {
		ds := b.plan.setDs[b.ds]
		if b.row >= len(ds.Rows) {
			b.ds++
			b.row = 0
			continue
		}
		row := ds.Rows[b.row]
		slots := b.plan.setSlots[b.ds]
		for i, slot := range slots {
			if err := p.Set(slot, row[i]); err != nil {
				return false, err
			}
		}
		b.row++
		return true, nil
	}
	return false, nil
}

// inputBinder tokenizes DATALINES text, one line per iteration, binding
// whitespace-delimited fields to INPUT's variables by position.
type inputBinder struct {
	plan *Plan
	line int
}

func (b *inputBinder) next(p *pdv.PDV) (bool, error) {
	for b.line < len(b.plan.lines) {
		line := b.plan.lines[b.line]
		b.line++
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		for i, v := range b.plan.inputVars {
			slot := b.plan.inputSlots[i]
			if i >= len(fields) {
				p.SetMissing(slot)
				continue
			}
			text := fields[i]
			if v.IsString {
				if err := p.Set(slot, value.Str8(text)); err != nil {
					return false, err
				}
				continue
			}
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				if serr := p.Set(slot, value.Missing()); serr != nil {
					return false, serr
				}
				continue
			}
			if err := p.Set(slot, value.Num64(f)); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

// mergeBinder implements a simplified match-merge over BY-sorted inputs:
// rows sharing a BY-key value are grouped per input, and the shorter side's
// last row repeats to pair with a longer matching group (spec.md's MERGE,
// one-to-many join).
type mergeBinder struct {
	plan    *Plan
	keys    []string
	groups  [][]pdv.Row // groups[i] aligned to keys[i], per input dataset in order
	inputN  int
	keyIdx  int
	rowIdx  int
}

func newMergeBinder(p *Plan) *mergeBinder {
	byVars := p.byFirstLastVars
	groupsByDs := make([]map[string][]pdv.Row, len(p.setDs))
	order := []string{}
	seen := map[string]bool{}
	for di, ds := range p.setDs {
		groupsByDs[di] = map[string][]pdv.Row{}
		for _, row := range ds.Rows {
			key := mergeKey(ds, row, byVars)
			groupsByDs[di][key] = append(groupsByDs[di][key], row)
			if !seen[key] {
				seen[key] = true
				order = append(order, key)
			}
		}
	}
	mb := &mergeBinder{plan: p, keys: order, inputN: len(p.setDs)}
	mb.groups = make([][]pdv.Row, len(order)*len(p.setDs))
	for ki, key := range order {
		for di := range p.setDs {
			mb.groups[ki*len(p.setDs)+di] = groupsByDs[di][key]
		}
	}
	return mb
}

func mergeKey(ds *pdv.Dataset, row pdv.Row, byVars []string) string {
	if len(byVars) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, v := range byVars {
		idx, ok := ds.ColumnIndex(v)
		if !ok {
			continue
		}
		sb.WriteString(value.TrimRight(row[idx]))
		sb.WriteByte('\x00')
	}
	return sb.String()
}

func (b *mergeBinder) next(p *pdv.PDV) (bool, error) {
	for b.keyIdx < len(b.keys) {
		maxLen := 0
		for di := 0; di < b.inputN; di++ {
			g := b.groups[b.keyIdx*b.inputN+di]
			if len(g) > maxLen {
				maxLen = len(g)
			}
		}
		if maxLen == 0 {
			b.keyIdx++
			b.rowIdx = 0
			continue
		}
		if b.rowIdx >= maxLen {
			b.keyIdx++
			b.rowIdx = 0
			continue
		}
		for di := 0; di < b.inputN; di++ {
			g := b.groups[b.keyIdx*b.inputN+di]
			if len(g) == 0 {
				continue
			}
			ri := b.rowIdx
			if ri >= len(g) {
				ri = len(g) - 1
			}
			row := g[ri]
			slots := b.plan.setSlots[di]
			for i, slot := range slots {
				if err := p.Set(slot, row[i]); err != nil {
					return false, err
				}
			}
		}
		b.rowIdx++
		return true, nil
	}
	return false, nil
}
