// Package pdv implements the Program Data Vector: the ordered,
// vector-indexed symbol table that holds a DATA step's variable bindings
// across one row iteration (spec.md §3, design note in §9: "PDV as an
// ordered symbol table").
//
// Slots are stored in a vector with a case-insensitive name→index map.
// Variable references are not pre-resolved: the evaluator and executor look
// each name up through that map every time a row is processed.
package pdv

import (
	"fmt"
	"strings"

	"github.com/cwbudde/go-sdpl/internal/value"
)

// Slot describes one PDV variable: its declared type/length and its
// drop/keep/retain bookkeeping (spec.md §3's PDV invariants).
type Slot struct {
	Name     string // first-declared spelling; comparisons are case-insensitive
	Kind     value.Kind
	Length   int // declared string length; 0 for Number
	Retained bool
	Dropped  bool
	Kept     bool
	typed    bool // true once the first assignment has fixed Kind
}

// PDV is the per-step Program Data Vector: an ordered list of Slots plus a
// case-insensitive name index, and the current value bound to each slot.
type PDV struct {
	slots        []Slot
	index        map[string]int
	values       []value.Value
	initial      []value.Value // retained variables' initial value, reapplied only once
	explicitKeep bool          // true once a KEEP statement has named any variable
}

// New creates an empty PDV.
func New() *PDV {
	return &PDV{index: make(map[string]int)}
}

func fold(name string) string { return strings.ToUpper(name) }

// Slot returns the slot index for name, declaring it as an untyped
// (as-yet-unassigned) variable if it doesn't already exist. The returned
// index is stable for the lifetime of the PDV.
func (p *PDV) Slot(name string) int {
	key := fold(name)
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := len(p.slots)
	p.slots = append(p.slots, Slot{Name: name, Kind: value.Number})
	p.values = append(p.values, value.Missing())
	p.initial = append(p.initial, value.Missing())
	p.index[key] = idx
	return idx
}

// Lookup returns the slot index for name without creating it.
func (p *PDV) Lookup(name string) (int, bool) {
	idx, ok := p.index[fold(name)]
	return idx, ok
}

// Slots returns the PDV's slots in declaration order. The returned slice
// must not be mutated directly; use the Declare*/Drop/Keep/Retain helpers.
func (p *PDV) Slots() []Slot { return p.slots }

// SlotAt returns a copy of the slot at idx.
func (p *PDV) SlotAt(idx int) Slot { return p.slots[idx] }

// DeclareLength fixes a slot's declared type/length from a LENGTH
// statement, erroring if the slot was already typed differently
// (spec.md §7 SemanticError: "type conflict on re-assignment").
func (p *PDV) DeclareLength(name string, kind value.Kind, length int) error {
	idx := p.Slot(name)
	s := &p.slots[idx]
	if s.typed && s.Kind != kind {
		return fmt.Errorf("type conflict: %s already declared as %s", name, s.Kind.TypeName())
	}
	s.Kind = kind
	s.Length = length
	s.typed = true
	if kind == value.String {
		p.values[idx] = value.NewString("", length)
	}
	return nil
}

// MarkRetained marks a slot retained and records its initial value,
// applying it immediately (spec.md §9(c): RETAIN both declares and sets
// the initial value).
func (p *PDV) MarkRetained(name string, initial value.Value) int {
	idx := p.Slot(name)
	s := &p.slots[idx]
	s.Retained = true
	if !s.typed {
		s.Kind = initial.Kind
		s.Length = initial.StrLen
		s.typed = true
	}
	p.initial[idx] = initial
	p.values[idx] = initial
	return idx
}

// MarkDropped marks a slot dropped from the output.
func (p *PDV) MarkDropped(name string) { p.slots[p.Slot(name)].Dropped = true }

// MarkKept marks a slot kept in the output; KEEP wins over DROP when both
// mention the same variable (spec.md §8 property 5).
func (p *PDV) MarkKept(name string) {
	idx := p.Slot(name)
	p.slots[idx].Kept = true
	p.explicitKeep = true
}

// Get returns the current value bound to slot idx.
func (p *PDV) Get(idx int) value.Value { return p.values[idx] }

// TypeConflictError reports a re-assignment that would change a slot's
// already-fixed type. spec.md §4.6 lists this among the non-structural
// runtime errors: it marks the offending variable missing rather than
// aborting the step.
type TypeConflictError struct {
	Name     string
	Declared value.Kind
	Assigned value.Kind
}

func (e *TypeConflictError) Error() string {
	return fmt.Sprintf("type conflict: %s is %s, cannot assign %s", e.Name, e.Declared.TypeName(), e.Assigned.TypeName())
}

// Set binds slot idx to v, fixing its declared type on first assignment and
// returning a *TypeConflictError if a later assignment changes the type
// (spec.md §3 PDV invariant: "first assignment fixes its type; re-typing is
// an error").
func (p *PDV) Set(idx int, v value.Value) error {
	s := &p.slots[idx]
	if !s.typed {
		s.Kind = v.Kind
		if v.Kind == value.String {
			s.Length = v.StrLen
		}
		s.typed = true
	} else if s.Kind != v.Kind {
		return &TypeConflictError{Name: s.Name, Declared: s.Kind, Assigned: v.Kind}
	}
	if s.Kind == value.String && s.Length > 0 {
		v = value.NewString(v.Str, s.Length)
	}
	p.values[idx] = v
	return nil
}

// SetMissing resets slot idx to its type's at-rest value without touching
// its declared type (used at the top of each iteration for non-retained
// variables).
func (p *PDV) SetMissing(idx int) {
	s := p.slots[idx]
	if s.Kind == value.String {
		p.values[idx] = value.NewString("", max(s.Length, 8))
	} else {
		p.values[idx] = value.Missing()
	}
}

// ResetForIteration resets every non-retained variable to its missing/blank
// at-rest value, leaving retained variables untouched across the row
// boundary (spec.md §4.4 step 2).
func (p *PDV) ResetForIteration() {
	for i, s := range p.slots {
		if !s.Retained {
			p.SetMissing(i)
		}
	}
}

// OutputColumns returns the slots that belong in the materialized output
// row, in PDV insertion (first-assignment) order, honoring DROP/KEEP
// exclusivity (spec.md §8 property 4 and 5).
func (p *PDV) OutputColumns() []Slot {
	var out []Slot
	for _, s := range p.slots {
		var keep bool
		if p.explicitKeep {
			keep = s.Kept // KEEP wins over DROP regardless of statement order
		} else {
			keep = !s.Dropped
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
