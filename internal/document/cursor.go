package document

import "github.com/orizon-lang/lattice/internal/lexis"

// TokenInfo is one step of a token cursor walk.
type TokenInfo struct {
	Kind lexis.TokenKind
	Text string
	Site int
	Span int
}

// TokenCursor iterates the chunks intersecting a span, forward or
// backward. Cursors read live storage; they must not outlive a write.
type TokenCursor struct {
	doc     *Document
	cursor  storeCursor
	site    int
	spanEnd int
}

// Cursor positions a token cursor at the first chunk intersecting span.
func (d *Document) Cursor(span Span) *TokenCursor {
	d.checkSpan(span)
	offset := span.Start
	cursor := d.tree.Lookup(&offset)
	return &TokenCursor{
		doc:     d,
		cursor:  cursor,
		site:    span.Start - offset,
		spanEnd: span.End,
	}
}

// Next yields the current token and advances. It returns false past the
// span end.
func (c *TokenCursor) Next() (TokenInfo, bool) {
	if c.cursor.IsDangling() || c.site >= c.spanEnd {
		return TokenInfo{}, false
	}
	chunk := c.cursor.Chunk()
	info := TokenInfo{Kind: chunk.Kind, Text: chunk.Text, Site: c.site, Span: chunk.Span()}
	c.site += chunk.Span()
	c.cursor = c.doc.tree.Next(c.cursor)
	return info, true
}

// Prev steps backward and yields the token before the current position.
func (c *TokenCursor) Prev() (TokenInfo, bool) {
	prev := c.doc.tree.Prev(c.cursor)
	if prev.IsDangling() {
		return TokenInfo{}, false
	}
	chunk := prev.Chunk()
	c.cursor = prev
	c.site -= chunk.Span()
	return TokenInfo{Kind: chunk.Kind, Text: chunk.Text, Site: c.site, Span: chunk.Span()}, true
}

// TokenRef externalizes the chunk the cursor currently stands on.
func (c *TokenCursor) TokenRef() TokenRef {
	if c.cursor.IsDangling() {
		return TokenRef{}
	}
	return TokenRef{doc: c.doc.id, entry: c.doc.tree.RefOf(c.cursor)}
}
