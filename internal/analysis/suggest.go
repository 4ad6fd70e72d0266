package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

// Variance selects how swingy a suggested formula should be.
type Variance string

const (
	VarianceLow    Variance = "low"
	VarianceMedium Variance = "medium"
	VarianceHigh   Variance = "high"
)

// ParseVariance resolves s case-insensitively; empty means VarianceMedium.
func ParseVariance(s string) (Variance, error) {
	switch Variance(strings.ToLower(strings.TrimSpace(s))) {
	case "", VarianceMedium:
		return VarianceMedium, nil
	case VarianceLow:
		return VarianceLow, nil
	case VarianceHigh:
		return VarianceHigh, nil
	}
	return "", fmt.Errorf("analysis: unknown variance %q (want low, medium or high)", s)
}

type varianceProfile struct {
	sides  []int
	counts []int
}

var profiles = map[Variance]varianceProfile{
	VarianceLow:    {sides: []int{4, 6, 8}, counts: []int{3, 4, 5, 6}},
	VarianceMedium: {sides: []int{6, 8, 10}, counts: []int{2, 3, 4}},
	VarianceHigh:   {sides: []int{10, 12, 20}, counts: []int{1, 2, 3}},
}

var standardSides = []int{4, 6, 8, 10, 12, 20}

// SuggestOptions tunes Suggest. The zero value is usable.
type SuggestOptions struct {
	Variance Variance
	// MaxDice caps the die count; 0 means 10.
	MaxDice int
	// NoModifier forbids a flat modifier.
	NoModifier bool
	// AnyStandardDie searches every standard die instead of the variance profile's.
	AnyStandardDie bool
}

// Suggestion is a proposed NdM+K formula.
type Suggestion struct {
	Count    int
	Sides    int
	Modifier int
	Average  float64
}

// Notation renders the suggestion, omitting a zero modifier.
func (s Suggestion) Notation() string {
	n := strconv.Itoa(s.Count) + "d" + strconv.Itoa(s.Sides)
	switch {
	case s.Modifier > 0:
		n += "+" + strconv.Itoa(s.Modifier)
	case s.Modifier < 0:
		n += strconv.Itoa(s.Modifier)
	}
	return n
}

// Expression returns the suggestion as a parsed formula.
func (s Suggestion) Expression() formula.Expression {
	return formula.MustParse(s.Notation())
}

// Suggest proposes the NdM+K whose average is closest to target. Ties go to a
// die count in the variance profile, then to the smaller modifier, then to
// the first candidate in ascending sides and count order.
//
// Precondition: target must be finite.
func Suggest(target float64, opts SuggestOptions) (Suggestion, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return Suggestion{}, fmt.Errorf("analysis: target average must be finite, got %g", target)
	}
	v, err := ParseVariance(string(opts.Variance))
	if err != nil {
		return Suggestion{}, err
	}
	profile := profiles[v]
	sides := profile.sides
	if opts.AnyStandardDie {
		sides = standardSides
	}
	maxDice := opts.MaxDice
	if maxDice <= 0 {
		maxDice = 10
	}

	type scored struct {
		s         Suggestion
		diff      float64
		offCount  bool
		modMagnit int
	}
	var best *scored
	for _, m := range sides {
		for n := 1; n <= maxDice; n++ {
			base := float64(n) * float64(m+1) / 2
			mod := 0
			if !opts.NoModifier {
				mod = int(math.Floor(target - base + 0.5))
			}
			avg := base + float64(mod)
			c := scored{
				s:         Suggestion{Count: n, Sides: m, Modifier: mod, Average: avg},
				diff:      math.Abs(target - avg),
				offCount:  !contains(profile.counts, n),
				modMagnit: abs(mod),
			}
			if best == nil || better(c.diff, c.offCount, c.modMagnit, best.diff, best.offCount, best.modMagnit) {
				best = &c
			}
		}
	}
	return best.s, nil
}

func better(diff float64, off bool, mod int, bestDiff float64, bestOff bool, bestMod int) bool {
	const eps = 1e-9
	switch {
	case diff < bestDiff-eps:
		return true
	case diff > bestDiff+eps:
		return false
	case off != bestOff:
		return !off
	}
	return mod < bestMod
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
