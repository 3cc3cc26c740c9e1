package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/go-sdpl/internal/ast"
	"github.com/cwbudde/go-sdpl/internal/value"
)

func powf(base, exp float64) float64 { return math.Pow(base, exp) }

// epochDays is the Julian day number of SDPL's date epoch: serial day 0 is
// 1960-01-01, matching SAS and spec.md §4.3.
var epochDays = toJulian(1960, 1, 1)

// evalCall dispatches a built-in function call (spec.md §4.3's required
// list); any other name is an UnknownFunction EvalError.
func evalCall(e *ast.Call, ctx *Context) (value.Value, error) {
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return value.Missing(), err
		}
		args[i] = v
	}

	name := strings.ToUpper(e.Name)
	switch name {
	case "SQRT":
		return unaryMath(args, ctx, e, func(x float64) (float64, bool) {
			if x < 0 {
				return 0, false
			}
			return math.Sqrt(x), true
		})
	case "ABS":
		return unaryMath(args, ctx, e, func(x float64) (float64, bool) { return math.Abs(x), true })
	case "LOG":
		return unaryMath(args, ctx, e, func(x float64) (float64, bool) {
			if x <= 0 {
				return 0, false
			}
			return math.Log(x), true
		})
	case "LOG10":
		return unaryMath(args, ctx, e, func(x float64) (float64, bool) {
			if x <= 0 {
				return 0, false
			}
			return math.Log10(x), true
		})
	case "EXP":
		return unaryMath(args, ctx, e, func(x float64) (float64, bool) { return math.Exp(x), true })
	case "CEIL":
		return unaryMath(args, ctx, e, func(x float64) (float64, bool) { return math.Ceil(x), true })
	case "FLOOR":
		return unaryMath(args, ctx, e, func(x float64) (float64, bool) { return math.Floor(x), true })
	case "ROUND":
		return evalRound(args, ctx, e)
	case "SUBSTR":
		return evalSubstr(args, ctx, e)
	case "TRIM":
		return evalTrim(args, ctx, e)
	case "UPCASE":
		return evalCase(args, ctx, e, strings.ToUpper)
	case "LOWCASE":
		return evalCase(args, ctx, e, strings.ToLower)
	case "TODAY":
		return value.Num64(0), nil // deterministic: the executing host supplies no wall clock (spec.md §5)
	case "INTCK":
		return evalIntck(args, ctx, e)
	case "INTNX":
		return evalIntnx(args, ctx, e)
	}
	return value.Missing(), &EvalError{Kind: UnknownFunction, Msg: "unknown function '" + e.Name + "'", Pos: e.Position}
}

func unaryMath(args []value.Value, ctx *Context, e *ast.Call, f func(float64) (float64, bool)) (value.Value, error) {
	if len(args) != 1 {
		return value.Missing(), fmt.Errorf("%s: expected 1 argument, got %d", e.Name, len(args))
	}
	x, ok := coerceNumber(args[0], ctx)
	if !ok {
		return value.Missing(), nil
	}
	r, ok := f(x)
	if !ok {
		return value.Missing(), &EvalError{Kind: DomainError, Msg: fmt.Sprintf("%s(%v): domain error", e.Name, x), Pos: e.Position}
	}
	return value.Num64(r), nil
}

func evalRound(args []value.Value, ctx *Context, e *ast.Call) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Missing(), fmt.Errorf("round: expected 1 or 2 arguments, got %d", len(args))
	}
	x, ok := coerceNumber(args[0], ctx)
	if !ok {
		return value.Missing(), nil
	}
	if len(args) == 1 {
		return value.Num64(math.Round(x)), nil
	}
	unit, ok := coerceNumber(args[1], ctx)
	if !ok || unit == 0 {
		return value.Missing(), nil
	}
	return value.Num64(math.Round(x/unit) * unit), nil
}

func evalSubstr(args []value.Value, ctx *Context, e *ast.Call) (value.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return value.Missing(), fmt.Errorf("substr: expected 2 or 3 arguments, got %d", len(args))
	}
	s := value.TrimRight(args[0])
	start, ok := coerceNumber(args[1], ctx)
	if !ok {
		return value.Missing(), nil
	}
	i := int(start) - 1
	if i < 0 {
		i = 0
	}
	if i > len(s) {
		i = len(s)
	}
	end := len(s)
	if len(args) == 3 {
		l, ok := coerceNumber(args[2], ctx)
		if !ok {
			return value.Missing(), nil
		}
		if i+int(l) < end {
			end = i + int(l)
		}
	}
	if end < i {
		end = i
	}
	return value.Str8(s[i:end]), nil
}

func evalTrim(args []value.Value, ctx *Context, e *ast.Call) (value.Value, error) {
	if len(args) != 1 {
		return value.Missing(), fmt.Errorf("trim: expected 1 argument, got %d", len(args))
	}
	return value.Str8(value.TrimRight(args[0])), nil
}

func evalCase(args []value.Value, ctx *Context, e *ast.Call, f func(string) string) (value.Value, error) {
	if len(args) != 1 {
		return value.Missing(), fmt.Errorf("%s: expected 1 argument, got %d", e.Name, len(args))
	}
	return value.NewString(f(value.TrimRight(args[0])), max(args[0].StrLen, 8)), nil
}

// Interval is the unit INTCK/INTNX operate on; only DAY/MONTH/YEAR are
// required by spec.md §4.3's required function list.
type interval int

const (
	intervalDay interval = iota
	intervalMonth
	intervalYear
)

func parseInterval(s string) (interval, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DAY", "DAYS":
		return intervalDay, true
	case "MONTH", "MONTHS":
		return intervalMonth, true
	case "YEAR", "YEARS":
		return intervalYear, true
	}
	return 0, false
}

func evalIntck(args []value.Value, ctx *Context, e *ast.Call) (value.Value, error) {
	if len(args) != 3 {
		return value.Missing(), fmt.Errorf("intck: expected 3 arguments, got %d", len(args))
	}
	iv, ok := parseInterval(value.TrimRight(args[0]))
	if !ok {
		return value.Missing(), &EvalError{Kind: DomainError, Msg: "intck: unknown interval '" + value.TrimRight(args[0]) + "'", Pos: e.Position}
	}
	a, aok := coerceNumber(args[1], ctx)
	b, bok := coerceNumber(args[2], ctx)
	if !aok || !bok {
		return value.Missing(), nil
	}
	ya, ma, da := fromJulian(int(a) + epochDays)
	yb, mb, db := fromJulian(int(b) + epochDays)
	switch iv {
	case intervalDay:
		return value.Num64(b - a), nil
	case intervalMonth:
		_ = da
		_ = db
		return value.Num64(float64((yb-ya)*12 + (mb - ma))), nil
	case intervalYear:
		return value.Num64(float64(yb - ya)), nil
	}
	return value.Missing(), nil
}

func evalIntnx(args []value.Value, ctx *Context, e *ast.Call) (value.Value, error) {
	if len(args) < 3 || len(args) > 4 {
		return value.Missing(), fmt.Errorf("intnx: expected 3 or 4 arguments, got %d", len(args))
	}
	iv, ok := parseInterval(value.TrimRight(args[0]))
	if !ok {
		return value.Missing(), &EvalError{Kind: DomainError, Msg: "intnx: unknown interval '" + value.TrimRight(args[0]) + "'", Pos: e.Position}
	}
	a, aok := coerceNumber(args[1], ctx)
	n, nok := coerceNumber(args[2], ctx)
	if !aok || !nok {
		return value.Missing(), nil
	}
	y, m, d := fromJulian(int(a) + epochDays)
	switch iv {
	case intervalDay:
		return value.Num64(a + n), nil
	case intervalMonth:
		total := (y*12 + (m - 1)) + int(n)
		y, m = total/12, total%12+1
		align := "BEGINNING"
		if len(args) == 4 {
			align = strings.ToUpper(strings.TrimSpace(value.TrimRight(args[3])))
		}
		day := d
		if align == "BEGINNING" || align == "B" {
			day = 1
		} else if align == "END" || align == "E" {
			day = daysInMonth(y, m)
		}
		return value.Num64(float64(toJulian(y, m, day) - epochDays)), nil
	case intervalYear:
		y += int(n)
		return value.Num64(float64(toJulian(y, m, d) - epochDays)), nil
	}
	return value.Missing(), nil
}

func daysInMonth(y, m int) int {
	switch m {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if (y%4 == 0 && y%100 != 0) || y%400 == 0 {
			return 29
		}
		return 28
	}
	return 30
}

// toJulian/fromJulian implement the standard Julian day-number conversion
// (Fliegel & Van Flandern), used to give INTCK/INTNX a concrete calendar
// without importing time.Time and its timezone machinery for a pure
// calendar calculation.
func toJulian(y, m, d int) int {
	a := (14 - m) / 12
	y2 := y + 4800 - a
	m2 := m + 12*a - 3
	return d + (153*m2+2)/5 + 365*y2 + y2/4 - y2/100 + y2/400 - 32045
}

func fromJulian(jdn int) (y, m, d int) {
	a := jdn + 32044
	b := (4*a + 3) / 146097
	c := a - (146097*b)/4
	dd := (4*c + 3) / 1461
	e := c - (1461*dd)/4
	mm := (5*e + 2) / 153
	d = e - (153*mm+2)/5 + 1
	m = mm + 3 - 12*(mm/10)
	y = 100*b + dd - 4800 + mm/10
	return y, m, d
}
