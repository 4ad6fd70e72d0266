package formula

import "math"

// keepAverageBudget bounds the work, in binomial terms, of an exact
// keep-highest average.
const keepAverageBudget = 1 << 20

// average returns the expected total of d.
//
// A keep-highest term sums min(B_x, Keep) over every face x, where B_x is the
// number of dice showing x or more. ok is false when that sum would cost more
// than keepAverageBudget terms.
func (d DiceTerm) average() (avg float64, ok bool) {
	n, m, k := d.Count, d.Sides, d.Kept()
	if k == n {
		return float64(n) * float64(m+1) / 2, true
	}
	if m > keepAverageBudget/k {
		return 0, false
	}
	for x := 1; x <= m; x++ {
		p := float64(m-x+1) / float64(m)
		avg += expectedMinBinomial(n, p, k)
	}
	return avg, true
}

// expectedMinBinomial returns E[min(B, k)] for B ~ Binomial(n, p), k <= n.
func expectedMinBinomial(n int, p float64, k int) float64 {
	if p >= 1 {
		return float64(k)
	}
	lp, lq := math.Log(p), math.Log1p(-p)
	ln, _ := math.Lgamma(float64(n + 1))
	e := float64(k)
	for i := 0; i < k; i++ {
		li, _ := math.Lgamma(float64(i + 1))
		lr, _ := math.Lgamma(float64(n - i + 1))
		e -= float64(k-i) * math.Exp(ln-li-lr+float64(i)*lp+float64(n-i)*lq)
	}
	return e
}
