// Package lattice is an incremental lexical and syntactic analysis
// engine. It maintains a parsed representation of a text document that is
// cheap to update under small edits against arbitrarily large documents:
// edits re-run the lexer and parser only over the affected local region
// and splice the results into a persistent chunk tree.
//
// Grammars are compiled once with the grammar package; documents are the
// mutable values. The internal packages carry the machinery: store holds
// the chunk tree, lexis the scanner runtime, syntax the parser session
// and cluster caches, and document the incremental write and reparse
// drivers.
package lattice

import (
	"github.com/orizon-lang/lattice/internal/document"
	"github.com/orizon-lang/lattice/internal/grammar"
)

// Core value types, re-exported for embedders.
type (
	Document    = document.Document
	Span        = document.Span
	TokenBuffer = document.TokenBuffer
	TokenCursor = document.TokenCursor
	TokenInfo   = document.TokenInfo
	TokenRef    = document.TokenRef
	NodeRef     = document.NodeRef
	ClusterRef  = document.ClusterRef
	ErrorRef    = document.ErrorRef
	SiteRef     = document.SiteRef
	Grammar     = grammar.Grammar
)

// New creates a document over a grammar and initial text.
func New(g *Grammar, text string) (*Document, error) {
	return document.New(g, text)
}

// NewFromBuffer creates a document from a pre-lexed token buffer.
func NewFromBuffer(g *Grammar, buffer *TokenBuffer) (*Document, error) {
	return document.NewFromBuffer(g, buffer)
}

// NewTokenBuffer lexes text once for bulk document construction.
func NewTokenBuffer(g *Grammar, text string) *TokenBuffer {
	return document.NewTokenBuffer(g, text)
}
