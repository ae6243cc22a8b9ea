// Package json defines the JSON grammar used by the engine's test suites
// and by the workspace demo: the token alphabet, the scanner patterns,
// and the LL(1) rule set with brace/bracket recovery groups.
package json

import (
	"unicode"

	"github.com/orizon-lang/lattice/internal/grammar"
	"github.com/orizon-lang/lattice/internal/lexis"
	"github.com/orizon-lang/lattice/internal/syntax"
)

// Token kinds.
const (
	BraceOpen lexis.TokenKind = lexis.FirstKind + iota
	BraceClose
	BracketOpen
	BracketClose
	Colon
	Comma
	String
	Number
	True
	False
	Null
	Whitespace
)

// Rule identifiers. Document is the root rule.
const (
	RuleDocument syntax.RuleID = iota
	RuleObject
	RuleEntry
	RuleArray
	RuleValue
)

var digits = grammar.Range('0', '9')

var tokens = []grammar.TokenSpec{
	{Kind: BraceOpen, Name: "{", Pattern: grammar.Text("{"), Priority: 1},
	{Kind: BraceClose, Name: "}", Pattern: grammar.Text("}"), Priority: 1},
	{Kind: BracketOpen, Name: "[", Pattern: grammar.Text("["), Priority: 1},
	{Kind: BracketClose, Name: "]", Pattern: grammar.Text("]"), Priority: 1},
	{Kind: Colon, Name: ":", Pattern: grammar.Text(":"), Priority: 1},
	{Kind: Comma, Name: ",", Pattern: grammar.Text(","), Priority: 1},
	{Kind: String, Name: "string", Priority: 1, Pattern: grammar.Cat(
		grammar.Text(`"`),
		grammar.Star(grammar.Alt(
			grammar.Cat(grammar.Text(`\`), grammar.Range(0, unicode.MaxRune)),
			grammar.NotChars(`"\`),
		)),
		grammar.Text(`"`),
	)},
	{Kind: Number, Name: "number", Priority: 1, Pattern: grammar.Cat(
		grammar.Opt(grammar.Chars("-")),
		grammar.Plus(digits),
		grammar.Opt(grammar.Cat(grammar.Chars("."), grammar.Plus(digits))),
		grammar.Opt(grammar.Cat(grammar.Chars("eE"), grammar.Opt(grammar.Chars("+-")), grammar.Plus(digits))),
	)},
	{Kind: True, Name: "true", Pattern: grammar.Text("true"), Priority: 2},
	{Kind: False, Name: "false", Pattern: grammar.Text("false"), Priority: 2},
	{Kind: Null, Name: "null", Pattern: grammar.Text("null"), Priority: 2},
	{Kind: Whitespace, Name: "whitespace", Pattern: grammar.Plus(grammar.Chars(" \t\r\n")), Priority: 1},
}

var (
	trivia = lexis.NewTokenSet(Whitespace)

	groups = []syntax.GroupPair{
		{Open: BraceOpen, Close: BraceClose},
		{Open: BracketOpen, Close: BracketClose},
	}
)

var rules = []grammar.RuleSpec{
	{
		ID:   RuleDocument,
		Name: "Document",
		Expr: grammar.CapR(RuleValue),
		Trivia: trivia,
		Recovery: syntax.Recovery{Groups: groups},
	},
	{
		ID:   RuleObject,
		Name: "Object",
		Expr: grammar.Seq(
			grammar.T(BraceOpen),
			grammar.SepBy(grammar.CapR(RuleEntry), grammar.T(Comma)),
			grammar.T(BraceClose),
		),
		Trivia:   trivia,
		Recovery: syntax.Recovery{Groups: groups},
		Primary:  true,
	},
	{
		ID:   RuleEntry,
		Name: "Entry",
		Expr: grammar.Seq(
			grammar.CapT(String),
			grammar.T(Colon),
			grammar.CapR(RuleValue),
		),
		Trivia:   trivia,
		Recovery: syntax.Recovery{Groups: groups},
		Primary:  true,
	},
	{
		ID:   RuleArray,
		Name: "Array",
		Expr: grammar.Seq(
			grammar.T(BracketOpen),
			grammar.SepBy(grammar.CapR(RuleValue), grammar.T(Comma)),
			grammar.T(BracketClose),
		),
		Trivia:   trivia,
		Recovery: syntax.Recovery{Groups: groups},
		Primary:  true,
	},
	{
		ID:   RuleValue,
		Name: "Value",
		Expr: grammar.Choice(
			grammar.CapT(String),
			grammar.CapT(Number),
			grammar.CapT(True),
			grammar.CapT(False),
			grammar.CapT(Null),
			grammar.CapR(RuleObject),
			grammar.CapR(RuleArray),
		),
		Trivia:   trivia,
		Recovery: syntax.Recovery{Groups: groups},
		Primary:  true,
	},
}

var built = grammar.MustBuild("json", 1, tokens, rules)

// Grammar returns the compiled JSON grammar.
func Grammar() *grammar.Grammar {
	return built
}
