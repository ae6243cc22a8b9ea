package document

import (
	"github.com/orizon-lang/lattice/internal/lexis"
	"github.com/orizon-lang/lattice/internal/refs"
	"github.com/orizon-lang/lattice/internal/syntax"
)

// Span is a half-open site interval [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the span length in sites.
func (s Span) Len() int {
	return s.End - s.Start
}

// IsEmpty reports whether the span covers nothing.
func (s Span) IsEmpty() bool {
	return s.Start >= s.End
}

// Contains reports whether other lies within s.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// TokenRef is a stable handle to a chunk. It survives every tree reshape
// and resolves to nothing once the chunk is removed. Handles carry their
// document's id; dereferencing against another document fails.
type TokenRef struct {
	doc   refs.DocID
	entry refs.Entry
}

// IsNil reports whether the handle was never bound.
func (r TokenRef) IsNil() bool {
	return r.entry.IsNil()
}

// Deref resolves the handle to its token.
func (r TokenRef) Deref(d *Document) (lexis.Token, bool) {
	cursor, ok := d.resolveChunk(r)
	if !ok {
		return lexis.Token{}, false
	}
	chunk := cursor.Chunk()
	return lexis.Token{Kind: chunk.Kind, Text: chunk.Text}, true
}

// Site resolves the handle to the chunk's current start site.
func (r TokenRef) Site(d *Document) (int, bool) {
	cursor, ok := d.resolveChunk(r)
	if !ok {
		return 0, false
	}
	return d.tree.SiteOf(cursor), true
}

// NodeRef is a stable handle to a parse tree node.
type NodeRef struct {
	doc refs.DocID
	key syntax.NodeKey
}

// IsNil reports whether the handle was never bound.
func (r NodeRef) IsNil() bool {
	return r.key.IsNil()
}

// Deref resolves the handle to its node.
func (r NodeRef) Deref(d *Document) (*syntax.Node, bool) {
	if r.doc != d.id {
		return nil, false
	}
	return d.nodeByKey(r.key)
}

// Rule returns the rule that produced the node, NonRule when stale.
func (r NodeRef) Rule(d *Document) syntax.RuleID {
	if node, ok := r.Deref(d); ok {
		return node.Rule
	}
	return syntax.NonRule
}

// Parent returns the enclosing node's handle, nil at the root.
func (r NodeRef) Parent(d *Document) NodeRef {
	node, ok := r.Deref(d)
	if !ok || node.Parent.IsNil() {
		return NodeRef{}
	}
	return NodeRef{doc: d.id, key: node.Parent}
}

// ChildRef is one child of a node: either a token or a node handle.
type ChildRef struct {
	Token TokenRef
	Node  NodeRef
}

// IsToken reports whether the child is a consumed token.
func (c ChildRef) IsToken() bool {
	return !c.Token.IsNil()
}

// Children returns the node's captured children in consumption order.
func (r NodeRef) Children(d *Document) []ChildRef {
	node, ok := r.Deref(d)
	if !ok {
		return nil
	}
	out := make([]ChildRef, 0, len(node.Children))
	for _, child := range node.Children {
		switch child.Kind {
		case syntax.ChildToken:
			out = append(out, ChildRef{Token: TokenRef{doc: d.id, entry: child.Chunk}})
		case syntax.ChildNode:
			out = append(out, ChildRef{Node: NodeRef{doc: d.id, key: child.Node}})
		}
	}
	return out
}

// Span resolves the node's current site span.
func (r NodeRef) Span(d *Document) (Span, bool) {
	node, ok := r.Deref(d)
	if !ok {
		return Span{}, false
	}
	start, ok := node.Start.Resolve(d.tree)
	if !ok {
		return Span{}, false
	}
	end, ok := node.End.Resolve(d.tree)
	if !ok {
		return Span{}, false
	}
	return Span{Start: start, End: end}, true
}

// ClusterRef is a stable handle to a parse cluster cache.
type ClusterRef struct {
	doc   refs.DocID
	entry refs.Entry
}

// IsNil reports whether the handle was never bound.
func (r ClusterRef) IsNil() bool {
	return r.entry.IsNil()
}

// Deref resolves the handle to its cluster.
func (r ClusterRef) Deref(d *Document) (*syntax.Cluster, bool) {
	if r.doc != d.id {
		return nil, false
	}
	return d.clusters.Get(r.entry)
}

// ErrorRef is a stable handle to a recorded syntax error.
type ErrorRef struct {
	doc     refs.DocID
	cluster refs.Entry
	entry   refs.Entry
}

// Deref resolves the handle to its error.
func (r ErrorRef) Deref(d *Document) (*syntax.SyntaxError, bool) {
	if r.doc != d.id {
		return nil, false
	}
	cluster, ok := d.clusters.Get(r.cluster)
	if !ok {
		return nil, false
	}
	return cluster.Errors.Get(r.entry)
}

// SiteRef is a stable handle to a token boundary.
type SiteRef struct {
	doc refs.DocID
	key syntax.SiteKey
}

// Site resolves the boundary to its current site.
func (r SiteRef) Site(d *Document) (int, bool) {
	if r.doc != d.id {
		return 0, false
	}
	return r.key.Resolve(d.tree)
}

func (d *Document) resolveChunk(r TokenRef) (cursor storeCursor, ok bool) {
	if r.doc != d.id {
		return storeCursor{}, false
	}
	return d.tree.CursorOf(r.entry)
}
