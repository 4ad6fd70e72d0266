// Package analysis offers authoring aids built on formula statistics: exact
// outcome distributions, dice suggestions for a target average, difficulty
// bands and side-by-side comparisons.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

// Limits on the work Distribute will take on.
const (
	// MaxOutcomes bounds the number of distinct outcomes tracked.
	MaxOutcomes = 1 << 16
	// MaxDice bounds the dice in a single term.
	MaxDice = 1000
	// MaxKeepDice bounds the dice in a keep-highest term.
	MaxKeepDice = 20
)

var (
	// ErrNotLinear is returned for formulas other than sums and differences of
	// dice and constants, optionally scaled by constants.
	ErrNotLinear = errors.New("analysis: formula is not a linear combination of dice")
	// ErrTooLarge is returned when the outcome space exceeds MaxOutcomes.
	ErrTooLarge = errors.New("analysis: too many distinct outcomes")
	// ErrIndeterminate is returned when statistics have indeterminate fields.
	ErrIndeterminate = errors.New("analysis: statistics are indeterminate")
)

// Outcome is one possible result and its probability.
type Outcome struct {
	Value       float64
	Probability float64
}

// Distribution is a probability mass function sorted by Value.
type Distribution struct {
	Outcomes []Outcome
}

// Distribute computes the exact distribution of expr by convolution.
//
// Postcondition: probabilities sum to 1 and Outcomes are sorted ascending.
func Distribute(expr formula.Expression) (Distribution, error) {
	pmf, err := distributionOf(expr)
	if err != nil {
		return Distribution{}, err
	}
	out := make([]Outcome, 0, len(pmf))
	for v, p := range pmf {
		out = append(out, Outcome{Value: v, Probability: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return Distribution{Outcomes: out}, nil
}

type pmf map[float64]float64

func distributionOf(expr formula.Expression) (pmf, error) {
	switch e := expr.(type) {
	case formula.Constant:
		return pmf{e.Value: 1}, nil
	case formula.DiceTerm:
		return diceDistribution(e)
	case formula.Unary:
		if e.Op != formula.OpNeg {
			return nil, fmt.Errorf("%w: %s", ErrNotLinear, e)
		}
		d, err := distributionOf(e.Operand)
		if err != nil {
			return nil, err
		}
		return d.scale(-1), nil
	case formula.BinaryOp:
		l, err := distributionOf(e.Left)
		if err != nil {
			return nil, err
		}
		r, err := distributionOf(e.Right)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case formula.OpAdd:
			return convolve(l, r)
		case formula.OpSub:
			return convolve(l, r.scale(-1))
		case formula.OpMul:
			if c, ok := r.constant(); ok {
				return l.scale(c), nil
			}
			if c, ok := l.constant(); ok {
				return r.scale(c), nil
			}
		case formula.OpDiv:
			if c, ok := r.constant(); ok {
				if c == 0 {
					return nil, formula.ErrDivisionByZero
				}
				return l.scale(1 / c), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotLinear, expr)
}

func diceDistribution(d formula.DiceTerm) (pmf, error) {
	if d.Sides < 2 || d.Count < 0 {
		return nil, fmt.Errorf("analysis: invalid dice term %s", d)
	}
	if d.Count > MaxDice || d.Count > MaxOutcomes/d.Sides {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, d)
	}
	if d.Kept() < d.Count {
		return keepHighestDistribution(d)
	}

	// probs[s] is P(sum == s) for the dice rolled so far. Only sums in
	// [i, i*Sides] are written, so impossible totals stay exactly zero.
	m := d.Sides
	inv := 1 / float64(m)
	probs := []float64{1}
	prefix := make([]float64, 0, d.Count*m+2)
	for i := 1; i <= d.Count; i++ {
		prefix = append(prefix[:0], 0)
		for _, p := range probs {
			prefix = append(prefix, prefix[len(prefix)-1]+p)
		}
		next := make([]float64, i*m+1)
		for s := i; s <= i*m; s++ {
			lo := max(s-m, i-1)
			hi := min(s-1, (i-1)*m)
			next[s] = (prefix[hi+1] - prefix[lo]) * inv
		}
		probs = next
	}

	out := make(pmf, len(probs))
	for s := d.Count; s < len(probs); s++ {
		out[float64(s)] = probs[s]
	}
	return out, nil
}

// keepHighestDistribution walks the faces from highest to lowest, deciding how
// many of the still unplaced dice show each face. Once Keep dice are kept the
// rest may show any lower face, which closes the state.
func keepHighestDistribution(d formula.DiceTerm) (pmf, error) {
	if d.Count > MaxKeepDice {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, d)
	}
	type state struct{ left, kept, sum int }

	n, m, k := d.Count, d.Sides, d.Kept()
	ways := make(map[float64]float64)
	states := map[state]float64{{left: n}: 1}
	for face := m; face >= 1 && len(states) > 0; face-- {
		next := make(map[state]float64, len(states))
		for st, w := range states {
			for c := 0; c <= st.left; c++ {
				take := min(c, k-st.kept)
				ns := state{left: st.left - c, kept: st.kept + take, sum: st.sum + take*face}
				count := w * binomial(st.left, c)
				if ns.kept == k {
					ways[float64(ns.sum)] += count * math.Pow(float64(face-1), float64(ns.left))
					continue
				}
				next[ns] += count
			}
		}
		states = next
	}

	total := math.Pow(float64(m), float64(n))
	out := make(pmf, len(ways))
	for v, w := range ways {
		if w > 0 {
			out[v] = w / total
		}
	}
	return out, nil
}

func binomial(n, k int) float64 {
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return r
}

func convolve(a, b pmf) (pmf, error) {
	out := make(pmf, len(a)+len(b))
	for va, pa := range a {
		for vb, pb := range b {
			out[va+vb] += pa * pb
		}
		if len(out) > MaxOutcomes {
			return nil, ErrTooLarge
		}
	}
	return out, nil
}

func (d pmf) scale(c float64) pmf {
	out := make(pmf, len(d))
	for v, p := range d {
		out[v*c] += p
	}
	return out
}

func (d pmf) constant() (float64, bool) {
	if len(d) != 1 {
		return 0, false
	}
	for v := range d {
		return v, true
	}
	return 0, false
}

// Min returns the smallest outcome.
func (d Distribution) Min() float64 { return d.Outcomes[0].Value }

// Max returns the largest outcome.
func (d Distribution) Max() float64 { return d.Outcomes[len(d.Outcomes)-1].Value }

// Mean returns the expected value.
func (d Distribution) Mean() float64 {
	var m float64
	for _, o := range d.Outcomes {
		m += o.Value * o.Probability
	}
	return m
}

// StdDev returns the standard deviation.
func (d Distribution) StdDev() float64 {
	mean := d.Mean()
	var v float64
	for _, o := range d.Outcomes {
		v += (o.Value - mean) * (o.Value - mean) * o.Probability
	}
	return math.Sqrt(v)
}

// AtLeast returns P(X >= x).
func (d Distribution) AtLeast(x float64) float64 {
	var p float64
	for _, o := range d.Outcomes {
		if o.Value >= x {
			p += o.Probability
		}
	}
	return p
}

// AtMost returns P(X <= x).
func (d Distribution) AtMost(x float64) float64 {
	var p float64
	for _, o := range d.Outcomes {
		if o.Value <= x {
			p += o.Probability
		}
	}
	return p
}

// Percentile returns the smallest outcome whose cumulative probability
// reaches q, for q in [0, 1].
func (d Distribution) Percentile(q float64) float64 {
	var cum float64
	for _, o := range d.Outcomes {
		cum += o.Probability
		if cum >= q-1e-12 {
			return o.Value
		}
	}
	return d.Max()
}

// Statistics returns the closed-form view of the distribution.
func (d Distribution) Statistics() formula.Statistics {
	return formula.Statistics{Minimum: d.Min(), Maximum: d.Max(), Average: d.Mean()}
}
