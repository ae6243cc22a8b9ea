package json

import (
	"testing"

	"github.com/orizon-lang/lattice/internal/lexis"
)

func TestScanJSONTokens(t *testing.T) {
	tokens := lexis.ScanString(Grammar().Automaton, `{"k": [-1.5e+2, true, null]}`)

	expected := []struct {
		kind lexis.TokenKind
		text string
	}{
		{BraceOpen, "{"},
		{String, `"k"`},
		{Colon, ":"},
		{Whitespace, " "},
		{BracketOpen, "["},
		{Number, "-1.5e+2"},
		{Comma, ","},
		{Whitespace, " "},
		{True, "true"},
		{Comma, ","},
		{Whitespace, " "},
		{Null, "null"},
		{BracketClose, "]"},
		{BraceClose, "}"},
	}
	if len(tokens) != len(expected) {
		t.Fatalf("token count wrong. expected=%d, got=%d (%v)", len(expected), len(tokens), tokens)
	}
	for i, want := range expected {
		if tokens[i].Kind != want.kind || tokens[i].Text != want.text {
			t.Fatalf("tokens[%d] wrong. expected={%d %q}, got=%v", i, want.kind, want.text, tokens[i])
		}
	}
}

func TestScanStringEscapes(t *testing.T) {
	tokens := lexis.ScanString(Grammar().Automaton, `"a\"b\\"`)

	if len(tokens) != 1 || tokens[0].Kind != String {
		t.Fatalf("escaped string not scanned as one token. got=%v", tokens)
	}
}

func TestScanUnterminatedStringFallsBack(t *testing.T) {
	tokens := lexis.ScanString(Grammar().Automaton, `"ab`)

	// No accepting prefix: the opening quote becomes a mismatch chunk and
	// the remainder rescans independently.
	if tokens[0].Kind != lexis.Mismatch || tokens[0].Text != `"` {
		t.Fatalf("unterminated string head wrong. got=%v", tokens[0])
	}
}

func TestValueLeftmost(t *testing.T) {
	value := Grammar().Rules.Rule(RuleValue)
	for _, kind := range []lexis.TokenKind{String, Number, True, False, Null, BraceOpen, BracketOpen} {
		if !value.Leftmost.Has(kind) {
			t.Fatalf("Value leftmost missing kind %d", kind)
		}
	}
	if value.Leftmost.Has(Whitespace) {
		t.Fatal("Value leftmost contains trivia")
	}
	if !value.Trivia.Has(Whitespace) {
		t.Fatal("Value trivia missing whitespace")
	}
}
