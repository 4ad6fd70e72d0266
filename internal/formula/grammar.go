package formula

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// notationLexer tokenizes formula source. Rule order matters: a dice term must
// win over a bare integer, and a trailing word boundary keeps "2d8x" from being
// read as a die. The die marker and the keep suffix are case-insensitive.
var notationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Dice", Pattern: `[0-9]*[dD][0-9]+(?:[kK][0-9]+)?\b`},
	{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Operator", Pattern: `==|!=|>=|<=|[-+*/()?:,<>!]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// The grammar tree below mirrors operator precedence, lowest first:
// ternary, comparison, additive, multiplicative, unary, primary.
// lower() converts it into the public Expression tree.

type ternaryNode struct {
	Test    *comparisonNode `parser:"@@"`
	IfTrue  *ternaryNode    `parser:"( \"?\" @@"`
	IfFalse *ternaryNode    `parser:"  \":\" @@ )?"`
}

type comparisonNode struct {
	Left  *additiveNode `parser:"@@"`
	Op    string        `parser:"( @( \"==\" | \"!=\" | \">=\" | \"<=\" | \">\" | \"<\" )"`
	Right *additiveNode `parser:"  @@ )?"`
}

type additiveNode struct {
	Head *termNode `parser:"@@"`
	Tail []*addOp  `parser:"@@*"`
}

type addOp struct {
	Op   string    `parser:"@( \"+\" | \"-\" )"`
	Term *termNode `parser:"@@"`
}

type termNode struct {
	Head *unaryNode `parser:"@@"`
	Tail []*mulOp   `parser:"@@*"`
}

type mulOp struct {
	Op      string     `parser:"@( \"*\" | \"/\" )"`
	Operand *unaryNode `parser:"@@"`
}

type unaryNode struct {
	Op      string       `parser:"( @( \"-\" | \"!\" )"`
	Operand *unaryNode   `parser:"  @@"`
	Value   *primaryNode `parser:"| @@ )"`
}

type primaryNode struct {
	Pos lexer.Position

	Dice     *string      `parser:"  @Dice"`
	Number   *string      `parser:"| @Number"`
	Call     *callNode    `parser:"| @@"`
	Variable *string      `parser:"| @Ident"`
	Group    *ternaryNode `parser:"| \"(\" @@ \")\""`
}

type callNode struct {
	Name string         `parser:"@Ident \"(\""`
	Args []*ternaryNode `parser:"( @@ ( \",\" @@ )* )? \")\""`
}

var notationParser = participle.MustBuild[ternaryNode](
	participle.Lexer(notationLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)
