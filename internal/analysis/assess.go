package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Scale is a difficulty scale.
type Scale string

const (
	ScaleStandard Scale = "standard"
	ScaleCombat   Scale = "combat"
)

// ParseScale resolves s case-insensitively; empty means ScaleStandard.
func ParseScale(s string) (Scale, error) {
	switch Scale(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScaleStandard:
		return ScaleStandard, nil
	case ScaleCombat:
		return ScaleCombat, nil
	}
	return "", fmt.Errorf("analysis: unknown scale %q (want standard or combat)", s)
}

// Band is one difficulty band. An average falls in the first band whose
// Threshold exceeds it.
type Band struct {
	Threshold   float64
	Label       string
	Description string
}

var scales = map[Scale][]Band{
	ScaleStandard: {
		{5, "Very Easy", "Almost guaranteed success"},
		{10, "Easy", "Most characters should succeed"},
		{15, "Medium", "Moderately skilled characters will usually succeed"},
		{20, "Hard", "Challenging even for skilled characters"},
		{25, "Very Hard", "Only the most skilled have a chance"},
		{30, "Nearly Impossible", "Success requires exceptional rolls and bonuses"},
	},
	ScaleCombat: {
		{10, "Minor", "Scratch damage"},
		{20, "Moderate", "Significant but not threatening"},
		{30, "Heavy", "Considerable damage that threatens weaker enemies"},
		{40, "Severe", "Potentially deadly to normal characters"},
		{60, "Extreme", "Deadly even to resilient characters"},
		{80, "Catastrophic", "Few creatures can survive this"},
	},
}

var legendary = Band{Threshold: math.Inf(1), Label: "Legendary", Description: "Beyond normal limits"}

// Assess returns the band of scale that average falls in. Unknown scales use
// ScaleStandard.
func Assess(average float64, scale Scale) Band {
	bands, ok := scales[scale]
	if !ok {
		bands = scales[ScaleStandard]
	}
	for _, b := range bands {
		if average < b.Threshold {
			return b
		}
	}
	return legendary
}
