package formula

import (
	"strconv"
	"strings"
)

// Precedence levels, lowest binding first. They match the grammar so that
// Parse(e.String()) rebuilds an equivalent tree.
const (
	precTernary = iota + 1
	precComparison
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

func (d DiceTerm) String() string {
	s := strconv.Itoa(d.Count) + "d" + strconv.Itoa(d.Sides)
	if d.Kept() != d.Count {
		s += "k" + strconv.Itoa(d.Keep)
	}
	return s
}

func (c Constant) String() string {
	return formatNumber(c.Value)
}

func (v Variable) String() string { return v.Name }

func (b BinaryOp) String() string { return render(b, 0) }

func (u Unary) String() string { return render(u, 0) }

func (c Comparison) String() string { return render(c, 0) }

func (c Conditional) String() string { return render(c, 0) }

func (f FunctionCall) String() string { return render(f, 0) }

func precedence(e Expression) int {
	switch n := e.(type) {
	case Conditional:
		return precTernary
	case Comparison:
		return precComparison
	case BinaryOp:
		if n.Op == OpMul || n.Op == OpDiv {
			return precMultiplicative
		}
		return precAdditive
	case Unary:
		return precUnary
	case Constant:
		if n.Value < 0 {
			return precUnary
		}
	}
	return precPrimary
}

// render writes e, parenthesized when it binds looser than minPrec.
func render(e Expression, minPrec int) string {
	var s string
	switch n := e.(type) {
	case Conditional:
		s = render(n.Test, precComparison) + " ? " + render(n.IfTrue, precTernary) + " : " + render(n.IfFalse, precTernary)
	case Comparison:
		s = render(n.Left, precAdditive) + " " + string(n.Op) + " " + render(n.Right, precAdditive)
	case BinaryOp:
		p := precedence(n)
		s = render(n.Left, p) + string(n.Op) + render(n.Right, p+1)
	case Unary:
		s = string(n.Op) + render(n.Operand, precUnary)
	case FunctionCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = render(a, precTernary)
		}
		s = n.Name + "(" + strings.Join(args, ", ") + ")"
	default:
		s = e.String()
	}
	if precedence(e) < minPrec {
		return "(" + s + ")"
	}
	return s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
