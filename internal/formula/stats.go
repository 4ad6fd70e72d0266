package formula

import (
	"fmt"
	"math"
	"strings"
)

// Field identifies one of the three Statistics fields.
type Field uint8

// Statistics fields, usable as a bit mask.
const (
	FieldMinimum Field = 1 << iota
	FieldMaximum
	FieldAverage

	allFields = FieldMinimum | FieldMaximum | FieldAverage
)

// Statistics holds the closed-form minimum, maximum and average of a formula.
//
// A field whose bit is set in Indeterminate depends on something that has no
// bounds at statistics time (a Variable, or a non-linear reduction of dice);
// its numeric value is meaningless and must not be displayed.
type Statistics struct {
	Minimum       float64
	Maximum       float64
	Average       float64
	Indeterminate Field
}

// Known reports whether field f is determinate.
func (s Statistics) Known(f Field) bool { return s.Indeterminate&f == 0 }

// Determinate reports whether all three fields are determinate.
func (s Statistics) Determinate() bool { return s.Indeterminate == 0 }

// RoundedAverage returns Average rounded to one decimal place, the display
// convention for previews.
func (s Statistics) RoundedAverage() float64 {
	return math.Round(s.Average*10) / 10
}

// String renders "min 6, max 20, avg 13.0", with "?" for indeterminate fields.
func (s Statistics) String() string {
	field := func(f Field, text string) string {
		if !s.Known(f) {
			return "?"
		}
		return text
	}
	return fmt.Sprintf("min %s, max %s, avg %s",
		field(FieldMinimum, formatNumber(s.Minimum)),
		field(FieldMaximum, formatNumber(s.Maximum)),
		field(FieldAverage, fmt.Sprintf("%.1f", s.RoundedAverage())),
	)
}

// Add returns the pointwise sum of s and o. Indeterminate fields stay
// indeterminate.
func (s Statistics) Add(o Statistics) Statistics {
	return Statistics{
		Minimum:       s.Minimum + o.Minimum,
		Maximum:       s.Maximum + o.Maximum,
		Average:       s.Average + o.Average,
		Indeterminate: s.Indeterminate | o.Indeterminate,
	}
}

// bounds is the working form of Statistics during the tree walk.
type bounds struct {
	lo, hi, mean float64
	unknown      Field
}

func (b bounds) fixed() bool {
	return b.unknown&(FieldMinimum|FieldMaximum) == 0 && b.lo == b.hi
}

func (b bounds) statistics() Statistics {
	s := Statistics{Minimum: b.lo, Maximum: b.hi, Average: b.mean, Indeterminate: b.unknown}
	if !s.Known(FieldMinimum) {
		s.Minimum = 0
	}
	if !s.Known(FieldMaximum) {
		s.Maximum = 0
	}
	if !s.Known(FieldAverage) {
		s.Average = 0
	}
	return s
}

func exact(v float64) bounds { return bounds{lo: v, hi: v, mean: v} }

func indeterminate() bounds { return bounds{unknown: allFields} }

// Stats computes the statistics of expr without enumeration or sampling.
//
// Postcondition: for a determinate result, Minimum <= Average <= Maximum.
// Returns ErrDivisionByZero when a divisor is the constant zero, and
// ErrUnknownFunction or ErrInvalidArguments for bad function calls.
func Stats(expr Expression) (Statistics, error) {
	b, err := statsOf(expr)
	if err != nil {
		return Statistics{}, err
	}
	return b.statistics(), nil
}

func statsOf(expr Expression) (bounds, error) {
	switch e := expr.(type) {
	case DiceTerm:
		k, m := float64(e.Kept()), float64(e.Sides)
		b := bounds{lo: k, hi: k * m}
		if avg, ok := e.average(); ok {
			b.mean = avg
		} else {
			b.unknown = FieldAverage
		}
		return b, nil
	case Constant:
		return exact(e.Value), nil
	case Variable:
		return indeterminate(), nil
	case Unary:
		a, err := statsOf(e.Operand)
		if err != nil {
			return bounds{}, err
		}
		if e.Op == OpNot {
			return notBounds(a), nil
		}
		return negate(a), nil
	case BinaryOp:
		return binaryStats(e)
	case Comparison:
		a, err := statsOf(e.Left)
		if err != nil {
			return bounds{}, err
		}
		b, err := statsOf(e.Right)
		if err != nil {
			return bounds{}, err
		}
		if v, ok := decide(e.Op, a, b); ok {
			return exact(v), nil
		}
		return bounds{lo: 0, hi: 1, unknown: FieldAverage}, nil
	case Conditional:
		return conditionalStats(e)
	case FunctionCall:
		fn, err := lookupFunction(e.Name, len(e.Args))
		if err != nil {
			return bounds{}, err
		}
		args := make([]bounds, len(e.Args))
		for i, a := range e.Args {
			if args[i], err = statsOf(a); err != nil {
				return bounds{}, err
			}
		}
		if allFixed(args) {
			fixed := make([]float64, len(args))
			for i, a := range args {
				fixed[i] = a.lo
			}
			if err := checkDomain(fn, fixed); err != nil {
				return bounds{}, err
			}
		}
		return fn.stats(args), nil
	}
	return bounds{}, fmt.Errorf("formula: unsupported expression node %T", expr)
}

func binaryStats(e BinaryOp) (bounds, error) {
	a, err := statsOf(e.Left)
	if err != nil {
		return bounds{}, err
	}
	b, err := statsOf(e.Right)
	if err != nil {
		return bounds{}, err
	}

	switch e.Op {
	case OpAdd:
		return sum(a, b), nil
	case OpSub:
		return sum(a, negate(b)), nil
	case OpMul:
		return product(a, b), nil
	case OpDiv:
		return quotient(a, b)
	}
	return bounds{}, fmt.Errorf("formula: unsupported operator %q", e.Op)
}

func sum(a, b bounds) bounds {
	return bounds{lo: a.lo + b.lo, hi: a.hi + b.hi, mean: a.mean + b.mean, unknown: a.unknown | b.unknown}
}

func negate(a bounds) bounds {
	var unknown Field
	if a.unknown&FieldMinimum != 0 {
		unknown |= FieldMaximum
	}
	if a.unknown&FieldMaximum != 0 {
		unknown |= FieldMinimum
	}
	unknown |= a.unknown & FieldAverage
	return bounds{lo: -a.hi, hi: -a.lo, mean: -a.mean, unknown: unknown}
}

// product multiplies two independent intervals. The mean of a product of
// independent terms is the product of their means.
func product(a, b bounds) bounds {
	out := bounds{mean: a.mean * b.mean, unknown: (a.unknown | b.unknown) & FieldAverage}
	if (a.unknown|b.unknown)&(FieldMinimum|FieldMaximum) != 0 {
		out.unknown |= FieldMinimum | FieldMaximum
		return out
	}
	out.lo, out.hi = corners(a.lo*b.lo, a.lo*b.hi, a.hi*b.lo, a.hi*b.hi)
	return out
}

// quotient divides a by b. A divisor that is exactly zero is an error; a
// divisor interval that merely spans zero leaves the bounds indeterminate.
func quotient(a, b bounds) (bounds, error) {
	if b.fixed() && b.lo == 0 {
		return bounds{}, ErrDivisionByZero
	}
	// E[X/Y] is E[X]/Y only for a fixed divisor.
	out := bounds{unknown: (a.unknown | b.unknown) & FieldAverage}
	if out.unknown == 0 && b.fixed() {
		out.mean = a.mean / b.lo
	} else {
		out.unknown |= FieldAverage
	}
	if (a.unknown|b.unknown)&(FieldMinimum|FieldMaximum) != 0 || (b.lo <= 0 && b.hi >= 0) {
		out.unknown |= FieldMinimum | FieldMaximum
		return out, nil
	}
	out.lo, out.hi = corners(a.lo/b.lo, a.lo/b.hi, a.hi/b.lo, a.hi/b.hi)
	return out, nil
}

func corners(vs ...float64) (lo, hi float64) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func notBounds(a bounds) bounds {
	if a.unknown&(FieldMinimum|FieldMaximum) == 0 {
		if a.fixed() {
			return exact(boolValue(a.lo == 0))
		}
		if a.lo > 0 || a.hi < 0 {
			return exact(0)
		}
	}
	return bounds{lo: 0, hi: 1, unknown: FieldAverage}
}

// decide reports the comparison result when it holds (or fails) over the
// whole of both intervals.
func decide(op Op, a, b bounds) (float64, bool) {
	if (a.unknown|b.unknown)&(FieldMinimum|FieldMaximum) != 0 {
		return 0, false
	}
	switch op {
	case OpGt:
		return decideOrder(a.lo > b.hi, a.hi <= b.lo)
	case OpGe:
		return decideOrder(a.lo >= b.hi, a.hi < b.lo)
	case OpLt:
		return decideOrder(a.hi < b.lo, a.lo >= b.hi)
	case OpLe:
		return decideOrder(a.hi <= b.lo, a.lo > b.hi)
	case OpEq, OpNe:
		equal := a.fixed() && b.fixed() && a.lo == b.lo
		disjoint := a.hi < b.lo || b.hi < a.lo
		if op == OpNe {
			equal, disjoint = disjoint, equal
		}
		return decideOrder(equal, disjoint)
	}
	return 0, false
}

func decideOrder(always, never bool) (float64, bool) {
	switch {
	case always:
		return 1, true
	case never:
		return 0, true
	}
	return 0, false
}

func conditionalStats(e Conditional) (bounds, error) {
	test, err := statsOf(e.Test)
	if err != nil {
		return bounds{}, err
	}
	if test.unknown&(FieldMinimum|FieldMaximum) == 0 {
		switch {
		case test.fixed() && test.lo == 0:
			return statsOf(e.IfFalse)
		case test.lo > 0 || test.hi < 0:
			return statsOf(e.IfTrue)
		}
	}

	t, err := statsOf(e.IfTrue)
	if err != nil {
		return bounds{}, err
	}
	f, err := statsOf(e.IfFalse)
	if err != nil {
		return bounds{}, err
	}
	return bounds{
		lo:      math.Min(t.lo, f.lo),
		hi:      math.Max(t.hi, f.hi),
		unknown: (t.unknown|f.unknown)&(FieldMinimum|FieldMaximum) | FieldAverage,
	}, nil
}

// Term is one signed addend of a formula's top-level sum.
type Term struct {
	// Sign is +1 or -1.
	Sign  int
	Expr  Expression
	Stats Statistics
}

// String renders the term with its sign, e.g. "+2d8" or "-SPI".
func (t Term) String() string {
	sign := "+"
	if t.Sign < 0 {
		sign = "-"
	}
	return sign + render(t.Expr, precMultiplicative)
}

// Terms splits expr into the signed addends of its top-level sum and reports
// statistics for each. Dice-only addends keep defined bounds even when a
// sibling addend is a variable.
func Terms(expr Expression) ([]Term, error) {
	var terms []Term
	var walk func(e Expression, sign int) error
	walk = func(e Expression, sign int) error {
		switch n := e.(type) {
		case BinaryOp:
			if n.Op == OpAdd || n.Op == OpSub {
				if err := walk(n.Left, sign); err != nil {
					return err
				}
				if n.Op == OpSub {
					return walk(n.Right, -sign)
				}
				return walk(n.Right, sign)
			}
		case Unary:
			if n.Op == OpNeg {
				return walk(n.Operand, -sign)
			}
		}
		s, err := Stats(e)
		if err != nil {
			return err
		}
		terms = append(terms, Term{Sign: sign, Expr: e, Stats: s})
		return nil
	}
	if err := walk(expr, 1); err != nil {
		return nil, err
	}
	return terms, nil
}

// DescribeTerms renders Terms as "+2d8 [min 2, max 16, avg 9.0] +SPI [...]".
func DescribeTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String() + " [" + t.Stats.String() + "]"
	}
	return strings.Join(parts, " ")
}
