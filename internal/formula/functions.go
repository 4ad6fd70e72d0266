package formula

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// function is one entry of the formula function library.
type function struct {
	name    string
	minArgs int
	// maxArgs < 0 means variadic.
	maxArgs int
	eval    func(args []float64) float64
	stats   func(args []bounds) bounds
	// domain rejects arguments whose result would not be a finite number.
	domain  func(args []float64) error
}

var functions = map[string]function{
	"MAX": {name: "MAX", minArgs: 1, maxArgs: -1, eval: maxOf, stats: extremumStats(true)},
	"MIN": {name: "MIN", minArgs: 1, maxArgs: -1, eval: minOf, stats: extremumStats(false)},

	"FLOOR": {name: "FLOOR", minArgs: 1, maxArgs: 1, eval: unary(math.Floor), stats: monotoneStats(math.Floor)},
	"CEIL":  {name: "CEIL", minArgs: 1, maxArgs: 1, eval: unary(math.Ceil), stats: monotoneStats(math.Ceil)},
	"ROUND": {name: "ROUND", minArgs: 1, maxArgs: 1, eval: unary(math.Round), stats: monotoneStats(math.Round)},
	"ABS":   {name: "ABS", minArgs: 1, maxArgs: 1, eval: unary(math.Abs), stats: absStats},

	"AVG": {name: "AVG", minArgs: 1, maxArgs: -1, eval: avgOf, stats: linearStats(true)},
	"SUM": {name: "SUM", minArgs: 1, maxArgs: -1, eval: sumOf, stats: linearStats(false)},
	"POW": {name: "POW", minArgs: 2, maxArgs: 2, eval: func(a []float64) float64 { return math.Pow(a[0], a[1]) }, stats: powStats, domain: powDomain},
}

// FunctionNames returns the names of the function library in sorted order.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupFunction resolves name case-insensitively and checks arity.
func lookupFunction(name string, argc int) (function, error) {
	fn, ok := functions[strings.ToUpper(name)]
	if !ok {
		return function{}, &UnknownFunctionError{Name: name}
	}
	if argc < fn.minArgs {
		return function{}, arityError(fn.name, argc, arityText(fn))
	}
	if fn.maxArgs >= 0 && argc > fn.maxArgs {
		return function{}, arityError(fn.name, argc, arityText(fn))
	}
	return fn, nil
}

func arityText(fn function) string {
	switch {
	case fn.maxArgs < 0:
		return "at least " + strconv.Itoa(fn.minArgs)
	case fn.minArgs == fn.maxArgs:
		return strconv.Itoa(fn.minArgs)
	}
	return strconv.Itoa(fn.minArgs) + "-" + strconv.Itoa(fn.maxArgs)
}

func unary(f func(float64) float64) func([]float64) float64 {
	return func(a []float64) float64 { return f(a[0]) }
}

func maxOf(a []float64) float64 {
	m := a[0]
	for _, v := range a[1:] {
		m = math.Max(m, v)
	}
	return m
}

func minOf(a []float64) float64 {
	m := a[0]
	for _, v := range a[1:] {
		m = math.Min(m, v)
	}
	return m
}

func sumOf(a []float64) float64 {
	var s float64
	for _, v := range a {
		s += v
	}
	return s
}

func avgOf(a []float64) float64 { return sumOf(a) / float64(len(a)) }

func allFixed(args []bounds) bool {
	for _, a := range args {
		if !a.fixed() {
			return false
		}
	}
	return true
}

func boundsUnknown(args []bounds) Field {
	var u Field
	for _, a := range args {
		u |= a.unknown
	}
	return u
}

// extremumStats handles MAX (wantMax) and MIN. The average is exact only when
// every argument is fixed or one argument dominates all others.
func extremumStats(wantMax bool) func([]bounds) bounds {
	pick, evalFn := math.Min, minOf
	if wantMax {
		pick, evalFn = math.Max, maxOf
	}
	return func(args []bounds) bounds {
		u := boundsUnknown(args)
		out := bounds{lo: args[0].lo, hi: args[0].hi, unknown: u & (FieldMinimum | FieldMaximum)}
		for _, a := range args[1:] {
			out.lo = pick(out.lo, a.lo)
			out.hi = pick(out.hi, a.hi)
		}
		if u&(FieldMinimum|FieldMaximum) != 0 {
			out.unknown |= FieldAverage
			return out
		}
		if allFixed(args) {
			vals := make([]float64, len(args))
			for i, a := range args {
				vals[i] = a.lo
			}
			out.mean = evalFn(vals)
			return out
		}
		if d, ok := dominant(args, wantMax); ok && d.unknown&FieldAverage == 0 {
			out.mean = d.mean
			return out
		}
		out.unknown |= FieldAverage
		return out
	}
}

// dominant finds an argument that is always the extremum.
func dominant(args []bounds, wantMax bool) (bounds, bool) {
	for i, a := range args {
		wins := true
		for j, b := range args {
			if i == j {
				continue
			}
			if (wantMax && a.lo < b.hi) || (!wantMax && a.hi > b.lo) {
				wins = false
				break
			}
		}
		if wins {
			return a, true
		}
	}
	return bounds{}, false
}

// monotoneStats maps bounds through a non-decreasing function. The average of
// a rounded random value is not the rounded average, so it is only kept for a
// fixed argument.
func monotoneStats(f func(float64) float64) func([]bounds) bounds {
	return func(args []bounds) bounds {
		a := args[0]
		out := bounds{lo: f(a.lo), hi: f(a.hi), unknown: a.unknown & (FieldMinimum | FieldMaximum)}
		if a.fixed() && a.unknown&FieldAverage == 0 {
			out.mean = f(a.mean)
		} else {
			out.unknown |= FieldAverage
		}
		return out
	}
}

func absStats(args []bounds) bounds {
	a := args[0]
	if a.unknown&(FieldMinimum|FieldMaximum) != 0 {
		return indeterminate()
	}
	switch {
	case a.lo >= 0:
		return a
	case a.hi <= 0:
		return negate(a)
	}
	return bounds{lo: 0, hi: math.Max(-a.lo, a.hi), unknown: FieldAverage}
}

// linearStats handles SUM and AVG, which commute with expectation.
func linearStats(average bool) func([]bounds) bounds {
	return func(args []bounds) bounds {
		out := args[0]
		for _, a := range args[1:] {
			out = sum(out, a)
		}
		if average {
			n := float64(len(args))
			out.lo, out.hi, out.mean = out.lo/n, out.hi/n, out.mean/n
		}
		return out
	}
}

func powDomain(a []float64) error {
	base, exp := a[0], a[1]
	switch {
	case base == 0 && exp < 0:
		return fmt.Errorf("%w: POW(0, %s)", ErrDivisionByZero, formatNumber(exp))
	case base < 0 && exp != math.Trunc(exp):
		return fmt.Errorf("%w: POW(%s, %s) has no real result", ErrInvalidArguments, formatNumber(base), formatNumber(exp))
	case math.IsInf(math.Pow(base, exp), 0):
		return fmt.Errorf("%w: POW(%s, %s) overflows", ErrInvalidArguments, formatNumber(base), formatNumber(exp))
	}
	return nil
}

// checkDomain applies fn's domain check, if any.
func checkDomain(fn function, args []float64) error {
	if fn.domain == nil {
		return nil
	}
	return fn.domain(args)
}

func powStats(args []bounds) bounds {
	base, exp := args[0], args[1]
	if allFixed(args) {
		return exact(math.Pow(base.lo, exp.lo))
	}
	if !exp.fixed() || base.unknown&(FieldMinimum|FieldMaximum) != 0 || base.lo < 0 || exp.lo < 0 {
		return indeterminate()
	}
	switch exp.lo {
	case 0:
		return exact(1)
	case 1:
		return base
	}
	return bounds{lo: math.Pow(base.lo, exp.lo), hi: math.Pow(base.hi, exp.lo), unknown: FieldAverage}
}
