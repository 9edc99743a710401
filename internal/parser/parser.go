package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// The rpower command accepts driver parameter overrides as a small
// "set key=value ..." expression, e.g.
//
//	set power_user=admin power_pass="s3cret pass" power_address=10.0.0.1
//
// The leading "set" keyword is optional. Values with whitespace need
// quotes; anything else may be written bare, BMC addresses included.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Reserved", Pattern: `\bset\b`},
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "Bare", Pattern: `[^\s="]+`},
	{Name: "Operator", Pattern: `=`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type ContextExpr struct {
	Assignments []*Assignment `parser:"'set'? @@*"`
}

type Assignment struct {
	Key   string `parser:"@Bare '='"`
	Value Value  `parser:"@@"`
}

type Value interface{ v() string }

type StringVal struct {
	Value string `parser:"@String"`
}

func (val StringVal) v() string { return val.Value }

type BareVal struct {
	Value string `parser:"@Bare"`
}

func (val BareVal) v() string { return val.Value }

var exprParser = participle.MustBuild[ContextExpr](
	participle.Lexer(exprLexer),
	participle.Unquote("String"),
	participle.Union[Value](StringVal{}, BareVal{}),
	participle.Elide("Whitespace"),
)

// ParseContext parses a set expression into driver context overrides.
// An empty expression yields an empty map.
func ParseContext(s string) (map[string]string, error) {
	overrides := make(map[string]string)
	if s == "" {
		return overrides, nil
	}
	expr, err := exprParser.ParseString("", s)
	if err != nil {
		return nil, err
	}
	for _, a := range expr.Assignments {
		overrides[a.Key] = a.Value.v()
	}
	return overrides, nil
}
