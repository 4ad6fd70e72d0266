package analysis

import (
	"github.com/cory-johannsen/spellforge/internal/formula"
)

// Comparison describes how b differs from a. Differences are b - a.
type Comparison struct {
	AverageDifference float64
	MinimumDifference float64
	MaximumDifference float64
	RangeDifference   float64
	// AverageRatio and RangeRatio are b/a, or 0 when a's value is 0.
	AverageRatio float64
	RangeRatio   float64

	StrictlyBetter bool
	StrictlyWorse  bool
	BetterAverage  bool
	HigherMaximum  bool
	HigherMinimum  bool
	GreaterRange   bool
}

// Compare contrasts two determinate statistics.
//
// b is strictly better when its minimum is no lower and both its average and
// maximum are higher; strictly worse is the mirror image.
func Compare(a, b formula.Statistics) (Comparison, error) {
	if !a.Determinate() || !b.Determinate() {
		return Comparison{}, ErrIndeterminate
	}
	rangeA, rangeB := a.Maximum-a.Minimum, b.Maximum-b.Minimum
	return Comparison{
		AverageDifference: b.Average - a.Average,
		MinimumDifference: b.Minimum - a.Minimum,
		MaximumDifference: b.Maximum - a.Maximum,
		RangeDifference:   rangeB - rangeA,
		AverageRatio:      ratio(b.Average, a.Average),
		RangeRatio:        ratio(rangeB, rangeA),
		StrictlyBetter:    b.Minimum >= a.Minimum && b.Average > a.Average && b.Maximum > a.Maximum,
		StrictlyWorse:     b.Minimum <= a.Minimum && b.Average < a.Average && b.Maximum < a.Maximum,
		BetterAverage:     b.Average > a.Average,
		HigherMaximum:     b.Maximum > a.Maximum,
		HigherMinimum:     b.Minimum > a.Minimum,
		GreaterRange:      rangeB > rangeA,
	}, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
