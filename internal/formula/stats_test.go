package formula_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustStats(t *testing.T, src string) formula.Statistics {
	t.Helper()
	s, err := formula.Stats(formula.MustParse(src))
	require.NoError(t, err, "stats of %q", src)
	return s
}

func TestStats_KnownValues(t *testing.T) {
	cases := []struct {
		src           string
		min, max, avg float64
	}{
		{"1d4+2", 3, 6, 4.5},
		{"2d8+4", 6, 20, 13},
		{"d20", 1, 20, 10.5},
		{"7", 7, 7, 7},
		{"2d6-1d4", -2, 11, 4.5},
		{"2d6*2", 4, 24, 14},
		{"2d6*-1", -12, -2, -7},
		{"4d6/2", 2, 12, 7},
		{"0d6+3", 3, 3, 3},
		{"5 > 3 ? 2d6 : 1", 2, 12, 7},
		{"MAX(1d6+10, 1d4)", 11, 16, 13.5},
		{"FLOOR(7/2)", 3, 3, 3},
		{"SUM(1d4, 1d6)", 2, 10, 6},
		{"4d6k3", 3, 18, 15869.0 / 1296},
		{"2d6k1+1", 2, 7, 161.0/36 + 1},
		{"2d6/2", 1, 6, 3.5},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			s := mustStats(t, c.src)
			require.True(t, s.Determinate(), "%q must be determinate, got %s", c.src, s)
			assert.Equal(t, c.min, s.Minimum)
			assert.Equal(t, c.max, s.Maximum)
			assert.InDelta(t, c.avg, s.Average, 1e-9)
		})
	}
}

func TestStats_String(t *testing.T) {
	assert.Equal(t, "min 6, max 20, avg 13.0", mustStats(t, "2d8+4").String())
	assert.Equal(t, "min 3, max 6, avg 4.5", mustStats(t, "1d4+2").String())
	assert.Equal(t, "min ?, max ?, avg ?", mustStats(t, "SPI+2d8").String())
}

func TestStats_VariableIsIndeterminate(t *testing.T) {
	s := mustStats(t, "SPI+2d8")
	assert.False(t, s.Known(formula.FieldMinimum))
	assert.False(t, s.Known(formula.FieldMaximum))
	assert.False(t, s.Known(formula.FieldAverage))
	assert.Zero(t, s.Minimum, "indeterminate fields must not carry a value")
}

func TestStats_UndecidedConditionalHasBoundsButNoAverage(t *testing.T) {
	s := mustStats(t, "1d20 >= 10 ? 2d6 : 1")
	assert.True(t, s.Known(formula.FieldMinimum))
	assert.True(t, s.Known(formula.FieldMaximum))
	assert.False(t, s.Known(formula.FieldAverage))
	assert.Equal(t, 1.0, s.Minimum)
	assert.Equal(t, 12.0, s.Maximum)
}

func TestStats_MaxWithoutDominantArgument(t *testing.T) {
	s := mustStats(t, "MAX(1d6, 3)")
	assert.Equal(t, 3.0, s.Minimum)
	assert.Equal(t, 6.0, s.Maximum)
	assert.False(t, s.Known(formula.FieldAverage))
}

func TestStats_DivisionByZero(t *testing.T) {
	_, err := formula.Stats(formula.MustParse("2d6/0"))
	assert.True(t, errors.Is(err, formula.ErrDivisionByZero))
	_, err = formula.Stats(formula.MustParse("2d6/(3-3)"))
	assert.True(t, errors.Is(err, formula.ErrDivisionByZero))
}

func TestStats_DivisorSpanningZeroLeavesBoundsUnknown(t *testing.T) {
	s := mustStats(t, "1d6/(1d4-1)")
	assert.False(t, s.Known(formula.FieldMinimum))
	assert.False(t, s.Known(formula.FieldMaximum))
}

// E[X/Y] differs from E[X]/E[Y] when Y varies, so no average is reported.
func TestStats_DiceDivisorHasNoAverage(t *testing.T) {
	s := mustStats(t, "2d6/1d2")
	assert.True(t, s.Known(formula.FieldMinimum))
	assert.True(t, s.Known(formula.FieldMaximum))
	assert.False(t, s.Known(formula.FieldAverage))
	assert.Equal(t, 1.0, s.Minimum)
	assert.Equal(t, 12.0, s.Maximum)
	assert.Equal(t, "min 1, max 12, avg ?", s.String())
}

func TestStats_HugeKeepHighestHasBoundsButNoAverage(t *testing.T) {
	s := mustStats(t, "100000d100000k50000")
	assert.Equal(t, 50000.0, s.Minimum)
	assert.Equal(t, 50000.0*100000, s.Maximum)
	assert.False(t, s.Known(formula.FieldAverage))
}

func TestStats_PowRejectsNonFiniteResults(t *testing.T) {
	_, err := formula.Stats(formula.MustParse("POW(0, -1)"))
	assert.ErrorIs(t, err, formula.ErrDivisionByZero)
	_, err = formula.Stats(formula.MustParse("POW(-8, 0.5)"))
	assert.ErrorIs(t, err, formula.ErrInvalidArguments)
	assert.Equal(t, "min 8, max 8, avg 8.0", mustStats(t, "POW(2, 3)").String())
}

func TestStats_UnknownFunction(t *testing.T) {
	_, err := formula.Stats(formula.MustParse("EXPLODE(1d6)"))
	assert.True(t, errors.Is(err, formula.ErrUnknownFunction))
}

func TestTerms_SplitsTopLevelSum(t *testing.T) {
	terms, err := formula.Terms(formula.MustParse("2d8+SPI-1d4"))
	require.NoError(t, err)
	require.Len(t, terms, 3)

	assert.Equal(t, 1, terms[0].Sign)
	assert.Equal(t, formula.Statistics{Minimum: 2, Maximum: 16, Average: 9}, terms[0].Stats)
	assert.False(t, terms[1].Stats.Determinate())
	assert.Equal(t, -1, terms[2].Sign)
	assert.Equal(t, formula.Statistics{Minimum: 1, Maximum: 4, Average: 2.5}, terms[2].Stats)

	assert.Equal(t,
		"+2d8 [min 2, max 16, avg 9.0] +SPI [min ?, max ?, avg ?] -1d4 [min 1, max 4, avg 2.5]",
		formula.DescribeTerms(terms))
}

func TestTerms_KeepsProductsWhole(t *testing.T) {
	terms, err := formula.Terms(formula.MustParse("2*SPI+1d6"))
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "+2*SPI", terms[0].String())
}

// diceOnly draws a source string made of dice terms and constants joined by + and -.
func diceOnly(t *rapid.T, label string) string {
	n := rapid.IntRange(1, 4).Draw(t, label+"_terms")
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(rapid.SampledFrom([]string{"+", "-"}).Draw(t, label+"_op"))
		}
		if rapid.Bool().Draw(t, label+"_isDice") {
			fmt.Fprintf(&b, "%dd%d", rapid.IntRange(0, 10).Draw(t, label+"_count"), rapid.IntRange(2, 100).Draw(t, label+"_sides"))
		} else {
			fmt.Fprintf(&b, "%d", rapid.IntRange(0, 50).Draw(t, label+"_const"))
		}
	}
	return b.String()
}

// TestStats_OrderingProperty verifies Minimum <= Average <= Maximum for dice-only formulas.
func TestStats_OrderingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		src := diceOnly(rt, "e")
		if rapid.Bool().Draw(rt, "scaled") {
			src = "(" + src + ")*" + fmt.Sprint(rapid.IntRange(-5, 5).Draw(rt, "factor"))
		}
		s, err := formula.Stats(formula.MustParse(src))
		require.NoError(rt, err)
		require.True(rt, s.Determinate())
		assert.LessOrEqual(rt, s.Minimum, s.Average, src)
		assert.LessOrEqual(rt, s.Average, s.Maximum, src)
	})
}

// TestStats_AdditivityProperty verifies stats(A+B) is the pointwise sum of stats(A) and stats(B).
func TestStats_AdditivityProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := diceOnly(rt, "a")
		b := diceOnly(rt, "b")

		sa, err := formula.Stats(formula.MustParse(a))
		require.NoError(rt, err)
		sb, err := formula.Stats(formula.MustParse(b))
		require.NoError(rt, err)
		sum, err := formula.Stats(formula.MustParse("(" + a + ")+(" + b + ")"))
		require.NoError(rt, err)

		want := sa.Add(sb)
		assert.InDelta(rt, want.Minimum, sum.Minimum, 1e-9)
		assert.InDelta(rt, want.Maximum, sum.Maximum, 1e-9)
		assert.InDelta(rt, want.Average, sum.Average, 1e-9)
		assert.Equal(rt, want.Indeterminate, sum.Indeterminate)
	})
}

// TestStats_SubtractionProperty verifies stats(A-B).Minimum == stats(A).Minimum - stats(B).Maximum.
func TestStats_SubtractionProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := diceOnly(rt, "a")
		b := diceOnly(rt, "b")
		sa := mustStatsT(rt, a)
		sb := mustStatsT(rt, b)
		diff := mustStatsT(rt, "("+a+")-("+b+")")
		assert.InDelta(rt, sa.Minimum-sb.Maximum, diff.Minimum, 1e-9)
		assert.InDelta(rt, sa.Maximum-sb.Minimum, diff.Maximum, 1e-9)
		assert.InDelta(rt, sa.Average-sb.Average, diff.Average, 1e-9)
	})
}

// TestStats_AverageMatchesEvaluate verifies that for dice-only formulas the
// statistical average equals the evaluated value.
func TestStats_AverageMatchesEvaluate(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		expr := formula.MustParse(diceOnly(rt, "e"))
		s, err := formula.Stats(expr)
		require.NoError(rt, err)
		v, err := formula.Evaluate(expr, formula.Context{})
		require.NoError(rt, err)
		assert.InDelta(rt, s.Average, v, 1e-9)
	})
}

func mustStatsT(t *rapid.T, src string) formula.Statistics {
	s, err := formula.Stats(formula.MustParse(src))
	require.NoError(t, err, src)
	return s
}
