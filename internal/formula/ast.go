// Package formula parses, analyzes and evaluates spell-effect formulas such as
// "2d8+4", "damage/2" or "HEADS_COUNT*10+SPI".
//
// A formula is parsed once into an immutable Expression tree. The tree can then
// be queried for closed-form statistics (Stats) or reduced to a single number
// against a variable binding context (Evaluate). Neither operation mutates the
// tree, so one Expression may be shared freely between goroutines.
package formula

// Op identifies an operator in a BinaryOp, Comparison or Unary node.
type Op string

// Arithmetic operators.
const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
)

// Comparison operators.
const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpLt Op = "<"
	OpGe Op = ">="
	OpLe Op = "<="
)

// Unary operators.
const (
	OpNeg Op = "-"
	OpNot Op = "!"
)

// Expression is a node of a parsed formula.
//
// The set of implementations is closed: DiceTerm, Constant, Variable, BinaryOp,
// Unary, Comparison, Conditional and FunctionCall.
type Expression interface {
	// String renders the node back to formula notation.
	String() string
	node()
}

// DiceTerm is NdM: Count dice with Sides faces each. NdMkK keeps only the
// highest Keep dice.
//
// Invariant: Sides >= 2, Count >= 0 and 0 <= Keep < Count for every DiceTerm
// produced by Parse. Keep is 0 when every die is kept; Parse folds "4d6k4"
// into "4d6".
type DiceTerm struct {
	Count int
	Sides int
	Keep  int
}

// Kept returns the number of dice that contribute to the total.
func (d DiceTerm) Kept() int {
	if d.Keep > 0 && d.Keep < d.Count {
		return d.Keep
	}
	return d.Count
}

// Constant is a literal number.
type Constant struct {
	Value float64
}

// Variable is a named value supplied by the evaluation Context.
type Variable struct {
	Name string
}

// BinaryOp is an arithmetic operation: one of OpAdd, OpSub, OpMul, OpDiv.
type BinaryOp struct {
	Op    Op
	Left  Expression
	Right Expression
}

// Unary is a prefix operation: OpNeg or OpNot.
type Unary struct {
	Op      Op
	Operand Expression
}

// Comparison yields 1 when the relation holds and 0 otherwise.
type Comparison struct {
	Op    Op
	Left  Expression
	Right Expression
}

// Conditional is "Test ? IfTrue : IfFalse". Test is true when non-zero.
type Conditional struct {
	Test    Expression
	IfTrue  Expression
	IfFalse Expression
}

// FunctionCall applies a named reducer from the function library to Args.
type FunctionCall struct {
	Name string
	Args []Expression
}

func (DiceTerm) node()     {}
func (Constant) node()     {}
func (Variable) node()     {}
func (BinaryOp) node()     {}
func (Unary) node()        {}
func (Comparison) node()   {}
func (Conditional) node()  {}
func (FunctionCall) node() {}

// Variables returns the distinct variable names referenced by expr in
// first-occurrence order.
//
// Postcondition: each name appears once.
func Variables(expr Expression) []string {
	seen := make(map[string]bool)
	var names []string
	Walk(expr, func(e Expression) {
		if v, ok := e.(Variable); ok && !seen[v.Name] {
			seen[v.Name] = true
			names = append(names, v.Name)
		}
	})
	return names
}

// HasDice reports whether expr contains at least one DiceTerm.
func HasDice(expr Expression) bool {
	found := false
	Walk(expr, func(e Expression) {
		if _, ok := e.(DiceTerm); ok {
			found = true
		}
	})
	return found
}

// Walk calls fn for expr and every descendant in depth-first pre-order.
func Walk(expr Expression, fn func(Expression)) {
	if expr == nil {
		return
	}
	fn(expr)
	switch e := expr.(type) {
	case BinaryOp:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case Unary:
		Walk(e.Operand, fn)
	case Comparison:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case Conditional:
		Walk(e.Test, fn)
		Walk(e.IfTrue, fn)
		Walk(e.IfFalse, fn)
	case FunctionCall:
		for _, a := range e.Args {
			Walk(a, fn)
		}
	}
}
