package formula

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
)

// Parse parses a formula string into an Expression.
//
// Supported forms include "2d8+4", "d20", "1d6+2d4-1", "damage/2",
// "HEADS_COUNT*10+SPI", "ALL_HEADS ? 12 : 3" and "MAX(1d6, 3)".
//
// Precondition: none; any string is accepted.
// Postcondition: Returns a non-nil Expression or a *SyntaxError.
func Parse(source string) (Expression, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &SyntaxError{Source: source, Offset: -1, empty: true}
	}

	tree, err := notationParser.ParseString("", source)
	if err != nil {
		return nil, convertParseError(source, err)
	}

	expr, err := lowerTernary(source, tree)
	if err != nil {
		return nil, err
	}
	return expr, nil
}

// MustParse parses source and panics on error. Useful for package-level values.
//
// Precondition: source must be a valid formula.
func MustParse(source string) Expression {
	e, err := Parse(source)
	if err != nil {
		panic("formula: MustParse failed for " + strconv.Quote(source) + ": " + err.Error())
	}
	return e
}

// IsValidDiceNotation reports whether source parses. Formulas with unresolved
// variables are valid; empty or whitespace-only input is not.
func IsValidDiceNotation(source string) bool {
	_, err := Parse(source)
	return err == nil
}

func convertParseError(source string, err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		return &SyntaxError{
			Source: source,
			Offset: perr.Position().Offset,
			Reason: perr.Message(),
		}
	}
	return &SyntaxError{Source: source, Offset: -1, Reason: err.Error()}
}

func lowerTernary(src string, n *ternaryNode) (Expression, error) {
	test, err := lowerComparison(src, n.Test)
	if err != nil {
		return nil, err
	}
	if n.IfTrue == nil {
		return test, nil
	}
	ifTrue, err := lowerTernary(src, n.IfTrue)
	if err != nil {
		return nil, err
	}
	ifFalse, err := lowerTernary(src, n.IfFalse)
	if err != nil {
		return nil, err
	}
	return Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}, nil
}

func lowerComparison(src string, n *comparisonNode) (Expression, error) {
	left, err := lowerAdditive(src, n.Left)
	if err != nil {
		return nil, err
	}
	if n.Op == "" {
		return left, nil
	}
	right, err := lowerAdditive(src, n.Right)
	if err != nil {
		return nil, err
	}
	return Comparison{Op: Op(n.Op), Left: left, Right: right}, nil
}

func lowerAdditive(src string, n *additiveNode) (Expression, error) {
	acc, err := lowerTerm(src, n.Head)
	if err != nil {
		return nil, err
	}
	for _, t := range n.Tail {
		right, err := lowerTerm(src, t.Term)
		if err != nil {
			return nil, err
		}
		acc = BinaryOp{Op: Op(t.Op), Left: acc, Right: right}
	}
	return acc, nil
}

func lowerTerm(src string, n *termNode) (Expression, error) {
	acc, err := lowerUnary(src, n.Head)
	if err != nil {
		return nil, err
	}
	for _, t := range n.Tail {
		right, err := lowerUnary(src, t.Operand)
		if err != nil {
			return nil, err
		}
		acc = BinaryOp{Op: Op(t.Op), Left: acc, Right: right}
	}
	return acc, nil
}

func lowerUnary(src string, n *unaryNode) (Expression, error) {
	if n.Value != nil {
		return lowerPrimary(src, n.Value)
	}
	operand, err := lowerUnary(src, n.Operand)
	if err != nil {
		return nil, err
	}
	return Unary{Op: Op(n.Op), Operand: operand}, nil
}

func lowerPrimary(src string, n *primaryNode) (Expression, error) {
	switch {
	case n.Dice != nil:
		return lowerDice(src, n.Pos.Offset, *n.Dice)
	case n.Number != nil:
		v, err := strconv.ParseFloat(*n.Number, 64)
		if err != nil {
			return nil, &SyntaxError{Source: src, Offset: n.Pos.Offset, Reason: fmt.Sprintf("invalid number %q", *n.Number)}
		}
		return Constant{Value: v}, nil
	case n.Call != nil:
		args := make([]Expression, 0, len(n.Call.Args))
		for _, a := range n.Call.Args {
			arg, err := lowerTernary(src, a)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return FunctionCall{Name: n.Call.Name, Args: args}, nil
	case n.Variable != nil:
		return Variable{Name: *n.Variable}, nil
	case n.Group != nil:
		return lowerTernary(src, n.Group)
	}
	return nil, &SyntaxError{Source: src, Offset: n.Pos.Offset, Reason: "empty operand"}
}

// lowerDice converts an "NdM", "dM" or "NdMkK" token into a DiceTerm.
func lowerDice(src string, offset int, tok string) (Expression, error) {
	countStr, rest, _ := strings.Cut(strings.ToLower(tok), "d")
	sidesStr, keepStr, hasKeep := strings.Cut(rest, "k")

	count := 1
	if countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, &SyntaxError{Source: src, Offset: offset, Reason: fmt.Sprintf("invalid die count in %q", tok)}
		}
		count = n
	}

	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return nil, &SyntaxError{Source: src, Offset: offset, Reason: fmt.Sprintf("invalid die sides in %q", tok)}
	}
	if sides < 2 {
		return nil, &SyntaxError{Source: src, Offset: offset, Reason: fmt.Sprintf("die in %q must have at least 2 sides", tok)}
	}


	keep := 0
	if hasKeep {
		k, err := strconv.Atoi(keepStr)
		if err != nil {
			return nil, &SyntaxError{Source: src, Offset: offset, Reason: fmt.Sprintf("invalid keep count in %q", tok)}
		}
		if k < 1 || k > count {
			return nil, &SyntaxError{Source: src, Offset: offset, Reason: fmt.Sprintf("keep count in %q must be between 1 and %d", tok, count)}
		}
		if k < count {
			keep = k
		}
	}

	return DiceTerm{Count: count, Sides: sides, Keep: keep}, nil
}
