package document

import (
	"github.com/orizon-lang/lattice/internal/grammar"
	"github.com/orizon-lang/lattice/internal/lexis"
)

// TokenBuffer is a pre-lexed bulk container with the document's chunk
// layout. It exists to amortize large initial loads: lexing happens once
// on the contiguous string, and documents are then built bottom-up from
// the buffered run.
type TokenBuffer struct {
	tokens []lexis.Token
	length int
}

// NewTokenBuffer lexes text into a buffer for the given grammar.
func NewTokenBuffer(g *grammar.Grammar, text string) *TokenBuffer {
	tokens := lexis.ScanString(g.Automaton, text)
	length := 0
	for _, token := range tokens {
		length += token.Span()
	}
	return &TokenBuffer{tokens: tokens, length: length}
}

// Length returns the buffered text length in sites.
func (b *TokenBuffer) Length() int {
	return b.length
}

// TokenCount returns the number of buffered tokens.
func (b *TokenBuffer) TokenCount() int {
	return len(b.tokens)
}

// Tokens returns the buffered token run.
func (b *TokenBuffer) Tokens() []lexis.Token {
	return b.tokens
}
