package lexis

import "testing"

// testAutomaton builds a tiny automaton by hand: identifiers, integers,
// spaces, and a keyword promotion for "let".
const (
	tokIdent TokenKind = FirstKind + iota
	tokInt
	tokSpace
	tokLet
)

func testAutomaton() *Automaton {
	// State 0: start. 1: identifier. 2: integer. 3: space run.
	states := []State{
		{Transitions: []Transition{
			{Lo: ' ', Hi: ' ', Target: 3},
			{Lo: '0', Hi: '9', Target: 2},
			{Lo: 'a', Hi: 'z', Target: 1},
		}},
		{Transitions: []Transition{
			{Lo: '0', Hi: '9', Target: 1},
			{Lo: 'a', Hi: 'z', Target: 1},
		}, Accept: &Accept{Kind: tokIdent, Constructor: func(text string) TokenKind {
			if text == "let" {
				return tokLet
			}
			return tokIdent
		}}},
		{Transitions: []Transition{
			{Lo: '0', Hi: '9', Target: 2},
		}, Accept: &Accept{Kind: tokInt}},
		{Transitions: []Transition{
			{Lo: ' ', Hi: ' ', Target: 3},
		}, Accept: &Accept{Kind: tokSpace}},
	}
	return NewAutomaton(states, 0, 1, map[TokenKind]string{
		tokIdent: "identifier",
		tokInt:   "integer",
		tokSpace: "space",
		tokLet:   "let",
	})
}

func TestScanBasicTokens(t *testing.T) {
	tokens := ScanString(testAutomaton(), "let x12 9")

	tests := []struct {
		expectedKind TokenKind
		expectedText string
	}{
		{tokLet, "let"},
		{tokSpace, " "},
		{tokIdent, "x12"},
		{tokSpace, " "},
		{tokInt, "9"},
	}

	if len(tokens) != len(tests) {
		t.Fatalf("token count wrong. expected=%d, got=%d (%v)", len(tests), len(tokens), tokens)
	}
	for i, tt := range tests {
		if tokens[i].Kind != tt.expectedKind {
			t.Fatalf("tokens[%d] kind wrong. expected=%d, got=%d", i, tt.expectedKind, tokens[i].Kind)
		}
		if tokens[i].Text != tt.expectedText {
			t.Fatalf("tokens[%d] text wrong. expected=%q, got=%q", i, tt.expectedText, tokens[i].Text)
		}
	}
}

func TestScanLongestMatch(t *testing.T) {
	tokens := ScanString(testAutomaton(), "letter")

	if len(tokens) != 1 {
		t.Fatalf("token count wrong. expected=%d, got=%d", 1, len(tokens))
	}
	if tokens[0].Kind != tokIdent || tokens[0].Text != "letter" {
		t.Fatalf("longest match wrong. got=%v", tokens[0])
	}
}

func TestScanMismatchIsSingleRune(t *testing.T) {
	tokens := ScanString(testAutomaton(), "a#±b")

	expected := []struct {
		kind TokenKind
		text string
	}{
		{tokIdent, "a"},
		{Mismatch, "#"},
		{Mismatch, "±"},
		{tokIdent, "b"},
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

func TestScanEmptyInput(t *testing.T) {
	if tokens := ScanString(testAutomaton(), ""); len(tokens) != 0 {
		t.Fatalf("expected no tokens, got=%v", tokens)
	}

	scanner := NewScanner(testAutomaton(), NewStringSource(""))
	token, ok := scanner.Read()
	if ok || token.Kind != EOI {
		t.Fatalf("expected end of input, got=%v ok=%v", token, ok)
	}
}

func TestTokenSpanCountsRunes(t *testing.T) {
	token := Token{Kind: tokIdent, Text: "héllo"}
	if token.Span() != 5 {
		t.Fatalf("span wrong. expected=%d, got=%d", 5, token.Span())
	}
}

func TestTokenSetOperations(t *testing.T) {
	a := NewTokenSet(tokIdent, tokInt)
	b := NewTokenSet(tokInt, tokSpace)

	if !a.Has(tokIdent) || a.Has(tokSpace) {
		t.Fatal("membership wrong")
	}
	if !a.Intersects(b) {
		t.Fatal("intersection missed")
	}
	union := a.Union(b)
	for _, kind := range []TokenKind{tokIdent, tokInt, tokSpace} {
		if !union.Has(kind) {
			t.Fatalf("union missing kind %d", kind)
		}
	}
	if (TokenSet{}).Intersects(a) {
		t.Fatal("empty set intersects")
	}
	if len(union.Kinds()) != 3 {
		t.Fatalf("kind list wrong. got=%v", union.Kinds())
	}
}
