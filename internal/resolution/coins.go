package resolution

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

var coinVocabulary = []string{
	"HEADS_COUNT", "TAILS_COUNT", "ALL_HEADS", "ALL_TAILS", "COIN_COUNT", "TOTAL_FLIPS",
	"HEADS_RATIO", "LONGEST_STREAK", "CONSECUTIVE_HEADS", "CONSECUTIVE_TAILS",
	"ALTERNATING_PATTERN",
}

// Flip is one coin result.
type Flip bool

const (
	Heads Flip = true
	Tails Flip = false
)

func (f Flip) String() string {
	if f == Heads {
		return "H"
	}
	return "T"
}

// ParseFlips parses a sequence such as "HHT", "h t h" or "heads,tails".
func ParseFlips(s string) ([]Flip, error) {
	fields := strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	var flips []Flip
	for _, f := range fields {
		switch f {
		case "HEADS", "HEAD":
			flips = append(flips, Heads)
			continue
		case "TAILS", "TAIL":
			flips = append(flips, Tails)
			continue
		}
		for _, r := range f {
			switch r {
			case 'H':
				flips = append(flips, Heads)
			case 'T':
				flips = append(flips, Tails)
			default:
				return nil, fmt.Errorf("resolution: invalid coin flip %q in %q", r, s)
			}
		}
	}
	return flips, nil
}

// CoinContext derives the coin vocabulary from a flip sequence.
//
// HEADS_RATIO is 0 for an empty sequence. ALL_HEADS and ALL_TAILS are 0 for
// an empty sequence.
func CoinContext(flips []Flip) formula.Context {
	var heads, headRun, tailRun, longestHeads, longestTails int
	alternating := len(flips) > 1
	for i, f := range flips {
		if f == Heads {
			heads++
			headRun++
			tailRun = 0
		} else {
			tailRun++
			headRun = 0
		}
		longestHeads = max(longestHeads, headRun)
		longestTails = max(longestTails, tailRun)
		if i > 0 && flips[i-1] == f {
			alternating = false
		}
	}

	n := len(flips)
	tails := n - heads
	var ratio float64
	if n > 0 {
		ratio = float64(heads) / float64(n)
	}
	return formula.NewContext(
		formula.Binding{Name: "HEADS_COUNT", Value: float64(heads)},
		formula.Binding{Name: "TAILS_COUNT", Value: float64(tails)},
		formula.Binding{Name: "ALL_HEADS", Value: flag(n > 0 && heads == n)},
		formula.Binding{Name: "ALL_TAILS", Value: flag(n > 0 && tails == n)},
		formula.Binding{Name: "COIN_COUNT", Value: float64(n)},
		formula.Binding{Name: "TOTAL_FLIPS", Value: float64(n)},
		formula.Binding{Name: "HEADS_RATIO", Value: ratio},
		formula.Binding{Name: "LONGEST_STREAK", Value: float64(max(longestHeads, longestTails))},
		formula.Binding{Name: "CONSECUTIVE_HEADS", Value: float64(longestHeads)},
		formula.Binding{Name: "CONSECUTIVE_TAILS", Value: float64(longestTails)},
		formula.Binding{Name: "ALTERNATING_PATTERN", Value: flag(alternating)},
	)
}
