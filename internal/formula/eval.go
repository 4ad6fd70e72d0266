package formula

import (
	"fmt"
	"sort"
)

// Binding is one named value in a Context.
type Binding struct {
	Name  string
	Value float64
}

// Context is an ordered, immutable mapping from variable name to value.
//
// The zero value is an empty Context. With returns a new Context and never
// modifies the receiver, so a Context can be shared between evaluations.
type Context struct {
	bindings []Binding
	index    map[string]int
}

// NewContext returns a Context holding bindings in order. A later binding of
// the same name replaces the earlier value but keeps its position.
func NewContext(bindings ...Binding) Context {
	var c Context
	for _, b := range bindings {
		c = c.With(b.Name, b.Value)
	}
	return c
}

// ContextFromMap builds a Context from m with names in sorted order.
func ContextFromMap(m map[string]float64) Context {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	bindings := make([]Binding, len(names))
	for i, name := range names {
		bindings[i] = Binding{Name: name, Value: m[name]}
	}
	return NewContext(bindings...)
}

// With returns a copy of c with name bound to value.
func (c Context) With(name string, value float64) Context {
	bindings := make([]Binding, len(c.bindings), len(c.bindings)+1)
	copy(bindings, c.bindings)
	index := make(map[string]int, len(c.index)+1)
	for k, v := range c.index {
		index[k] = v
	}
	if i, ok := index[name]; ok {
		bindings[i].Value = value
	} else {
		index[name] = len(bindings)
		bindings = append(bindings, Binding{Name: name, Value: value})
	}
	return Context{bindings: bindings, index: index}
}

// Without returns a copy of c with name removed.
func (c Context) Without(name string) Context {
	if _, ok := c.index[name]; !ok {
		return c
	}
	out := Context{}
	for _, b := range c.bindings {
		if b.Name != name {
			out = out.With(b.Name, b.Value)
		}
	}
	return out
}

// Merge returns c with every binding of o applied on top.
func (c Context) Merge(o Context) Context {
	out := c
	for _, b := range o.bindings {
		out = out.With(b.Name, b.Value)
	}
	return out
}

// Lookup returns the value bound to name.
func (c Context) Lookup(name string) (float64, bool) {
	i, ok := c.index[name]
	if !ok {
		return 0, false
	}
	return c.bindings[i].Value, true
}

// Has reports whether name is bound.
func (c Context) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Len returns the number of bindings.
func (c Context) Len() int { return len(c.bindings) }

// Bindings returns a copy of the bindings in insertion order.
func (c Context) Bindings() []Binding {
	out := make([]Binding, len(c.bindings))
	copy(out, c.bindings)
	return out
}

// Evaluate reduces expr to a single number against ctx.
//
// Dice terms contribute their average, comparisons yield 1 or 0, and only the
// selected branch of a Conditional is evaluated.
//
// Postcondition: the result depends only on expr and ctx.
func Evaluate(expr Expression, ctx Context) (float64, error) {
	switch e := expr.(type) {
	case DiceTerm:
		avg, ok := e.average()
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrDiceTooLarge, e)
		}
		return avg, nil
	case Constant:
		return e.Value, nil
	case Variable:
		v, ok := ctx.Lookup(e.Name)
		if !ok {
			return 0, &UnknownVariableError{Name: e.Name}
		}
		return v, nil
	case Unary:
		v, err := Evaluate(e.Operand, ctx)
		if err != nil {
			return 0, err
		}
		if e.Op == OpNot {
			return boolValue(v == 0), nil
		}
		return -v, nil
	case BinaryOp:
		return evalBinary(e, ctx)
	case Comparison:
		l, err := Evaluate(e.Left, ctx)
		if err != nil {
			return 0, err
		}
		r, err := Evaluate(e.Right, ctx)
		if err != nil {
			return 0, err
		}
		return boolValue(compare(e.Op, l, r)), nil
	case Conditional:
		t, err := Evaluate(e.Test, ctx)
		if err != nil {
			return 0, err
		}
		if t != 0 {
			return Evaluate(e.IfTrue, ctx)
		}
		return Evaluate(e.IfFalse, ctx)
	case FunctionCall:
		fn, err := lookupFunction(e.Name, len(e.Args))
		if err != nil {
			return 0, err
		}
		args := make([]float64, len(e.Args))
		for i, a := range e.Args {
			if args[i], err = Evaluate(a, ctx); err != nil {
				return 0, err
			}
		}
		if err := checkDomain(fn, args); err != nil {
			return 0, err
		}
		return fn.eval(args), nil
	}
	return 0, fmt.Errorf("formula: unsupported expression node %T", expr)
}

func evalBinary(e BinaryOp, ctx Context) (float64, error) {
	l, err := Evaluate(e.Left, ctx)
	if err != nil {
		return 0, err
	}
	r, err := Evaluate(e.Right, ctx)
	if err != nil {
		return 0, err
	}
	switch e.Op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("formula: unsupported operator %q", e.Op)
}

func compare(op Op, l, r float64) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpGt:
		return l > r
	case OpLt:
		return l < r
	case OpGe:
		return l >= r
	case OpLe:
		return l <= r
	}
	return false
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
