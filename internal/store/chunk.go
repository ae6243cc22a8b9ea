// Package store implements the chunked storage tree of the lattice engine:
// a height-balanced tree keyed by character length whose leaves carry the
// lexical chunks of a document. The tree provides logarithmic site-to-chunk
// lookup, localized in-place splices, and split/join surgery for larger
// rewrites, while keeping external references valid across every reshape.
package store

import (
	"github.com/orizon-lang/lattice/internal/lexis"
	"github.com/orizon-lang/lattice/internal/refs"
)

// Occupancy bounds. Pages and branches hold at most *Cap children and,
// unless they are the root, at least *B.
const (
	PageCap   = 12
	PageB     = PageCap / 2
	BranchCap = 12
	BranchB   = BranchCap / 2
)

// Cache is a parser result anchored at a chunk. The store does not inspect
// caches; it only releases them when their chunk leaves the tree.
type Cache interface {
	// Release retires the cache's registry entries. The store calls it when
	// the anchor chunk is removed or the tree is released; the parser and
	// the reparse driver also call it when they discard a stale cache.
	Release()
}

// Chunk is the atomic lexical unit of a document: a token kind, the exact
// source text, and optionally the cached parse that started here.
type Chunk struct {
	Kind  lexis.TokenKind
	Text  string
	Cache Cache

	span int
	ref  refs.Entry
}

// NewChunk materializes a chunk. Chunks are never empty.
func NewChunk(kind lexis.TokenKind, text string) *Chunk {
	token := lexis.Token{Kind: kind, Text: text}
	span := token.Span()
	if span == 0 {
		panic("store: empty chunk")
	}
	return &Chunk{Kind: kind, Text: text, span: span}
}

// Span returns the chunk length in sites (code points). Always at least 1.
func (c *Chunk) Span() int {
	return c.span
}

// Ref returns the chunk's registry entry, or the nil entry if the chunk
// was never externalized.
func (c *Chunk) Ref() refs.Entry {
	return c.ref
}

// ChildCursor addresses a chunk inside the tree as a (page, index) pair.
// Cursors are ephemeral: any splice may move the chunk to another slot.
// The zero cursor is dangling and stands for the past-the-end position.
type ChildCursor struct {
	page  *Page
	index int
}

// IsDangling reports whether the cursor addresses no chunk.
func (c ChildCursor) IsDangling() bool {
	return c.page == nil
}

// Chunk returns the addressed chunk. It panics on a dangling cursor.
func (c ChildCursor) Chunk() *Chunk {
	if c.page == nil {
		panic("store: dereference of dangling cursor")
	}
	return c.page.chunks[c.index]
}
