// Package document implements the mutable document of the lattice engine:
// the owning value that ties the chunk store, the reference registries,
// the scanner, and the parser together, and the incremental write and
// reparse drivers that keep its parse representation consistent under
// arbitrary edits.
package document

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orizon-lang/lattice/internal/grammar"
	"github.com/orizon-lang/lattice/internal/refs"
	"github.com/orizon-lang/lattice/internal/store"
	"github.com/orizon-lang/lattice/internal/syntax"
)

type storeCursor = store.ChildCursor

// Document is a single mutable source text with an incrementally
// maintained lexical and syntactic representation. All mutating
// operations require exclusive access; read-only queries may run
// concurrently only while no write is in progress.
type Document struct {
	id         refs.DocID
	grammar    *grammar.Grammar
	tree       *store.Tree
	clusters   *refs.Registry[*syntax.Cluster]
	root       *syntax.Cluster
	tokenCount int
}

// New creates a document over the given grammar and initial text.
func New(g *grammar.Grammar, text string) (*Document, error) {
	return NewFromBuffer(g, NewTokenBuffer(g, text))
}

// NewFromBuffer creates a document from a pre-lexed token buffer,
// amortizing large initial loads.
func NewFromBuffer(g *grammar.Grammar, buffer *TokenBuffer) (*Document, error) {
	if err := grammar.CheckFormat(g.Meta); err != nil {
		return nil, err
	}

	d := &Document{
		id:       refs.NewDocID(),
		grammar:  g,
		clusters: refs.NewRegistry[*syntax.Cluster](),
	}

	chunks := make([]*store.Chunk, 0, len(buffer.tokens))
	for _, token := range buffer.tokens {
		chunks = append(chunks, store.NewChunk(token.Kind, token.Text))
	}
	d.tree = store.BuildTree(refs.NewRegistry[storeCursor](), chunks)
	d.tokenCount = len(chunks)

	d.root = syntax.ParseRule(d.parseConfig(), syntax.RootRule, d.tree.First())
	return d, nil
}

// ID returns the document's identity embedded in every handle it issues.
func (d *Document) ID() refs.DocID {
	return d.id
}

// Length returns the document length in sites.
func (d *Document) Length() int {
	return d.tree.Length()
}

// TokenCount returns the number of chunks.
func (d *Document) TokenCount() int {
	return d.tokenCount
}

// Text returns the full document text.
func (d *Document) Text() string {
	return d.tree.Text()
}

// Substring returns the text of a span.
func (d *Document) Substring(span Span) string {
	d.checkSpan(span)
	var sb strings.Builder
	offset := span.Start
	cursor := d.tree.Lookup(&offset)
	remaining := span.Len()
	for remaining > 0 && !cursor.IsDangling() {
		text := cursor.Chunk().Text
		if offset > 0 {
			text = cutRunes(text, offset)
			offset = 0
		}
		for _, r := range text {
			if remaining == 0 {
				break
			}
			sb.WriteRune(r)
			remaining--
		}
		cursor = d.tree.Next(cursor)
	}
	return sb.String()
}

// Chars returns the runes of a span.
func (d *Document) Chars(span Span) []rune {
	return []rune(d.Substring(span))
}

// RootNodeRef returns the handle of the root parse node.
func (d *Document) RootNodeRef() NodeRef {
	return NodeRef{doc: d.id, key: d.root.PrimaryKey()}
}

// RootClusterRef returns the handle of the root parse cluster.
func (d *Document) RootClusterRef() ClusterRef {
	return ClusterRef{doc: d.id, entry: d.root.Entry}
}

// Cover returns the handle of the smallest node whose span encloses the
// given span, the root node if no smaller node does.
func (d *Document) Cover(span Span) NodeRef {
	d.checkSpan(span)
	current := d.RootNodeRef()
	for {
		next := NodeRef{}
		for _, child := range current.Children(d) {
			if child.IsToken() {
				continue
			}
			childSpan, ok := child.Node.Span(d)
			if !ok {
				continue
			}
			if childSpan.Contains(span) {
				next = child.Node
				break
			}
		}
		if next.IsNil() {
			return current
		}
		current = next
	}
}

// Errors returns every recorded syntax error, ordered by site.
func (d *Document) Errors() []*syntax.SyntaxError {
	type positioned struct {
		err  *syntax.SyntaxError
		site int
	}
	var all []positioned
	d.clusters.ForEach(func(_ refs.Entry, cluster *syntax.Cluster) bool {
		cluster.Errors.ForEach(func(_ refs.Entry, err *syntax.SyntaxError) bool {
			site, _ := err.Start.Resolve(d.tree)
			all = append(all, positioned{err: err, site: site})
			return true
		})
		return true
	})
	sort.SliceStable(all, func(i, j int) bool { return all[i].site < all[j].site })
	out := make([]*syntax.SyntaxError, len(all))
	for i, p := range all {
		out[i] = p.err
	}
	return out
}

// ErrorSite resolves the start boundary of a recorded syntax error.
func (d *Document) ErrorSite(err *syntax.SyntaxError) (int, bool) {
	return err.Start.Resolve(d.tree)
}

// ErrorRefs returns stable handles to every recorded syntax error.
func (d *Document) ErrorRefs() []ErrorRef {
	var out []ErrorRef
	d.clusters.ForEach(func(clusterEntry refs.Entry, cluster *syntax.Cluster) bool {
		cluster.Errors.ForEach(func(errEntry refs.Entry, _ *syntax.SyntaxError) bool {
			out = append(out, ErrorRef{doc: d.id, cluster: clusterEntry, entry: errEntry})
			return true
		})
		return true
	})
	return out
}

// SiteRefAt externalizes the boundary of the chunk containing a site; the
// reference tracks the boundary as surrounding text shifts.
func (d *Document) SiteRefAt(site int) SiteRef {
	offset := site
	cursor := d.tree.Lookup(&offset)
	if cursor.IsDangling() {
		return SiteRef{doc: d.id, key: syntax.SiteKey{End: true}}
	}
	return SiteRef{doc: d.id, key: syntax.SiteKey{Chunk: d.tree.RefOf(cursor)}}
}

// TokenRefAt externalizes the chunk containing a site.
func (d *Document) TokenRefAt(site int) TokenRef {
	offset := site
	cursor := d.tree.Lookup(&offset)
	if cursor.IsDangling() {
		return TokenRef{}
	}
	return TokenRef{doc: d.id, entry: d.tree.RefOf(cursor)}
}

// Drop releases the document's storage: every chunk, cache, and registry
// entry is retired, leaving all outstanding handles stale.
func (d *Document) Drop() {
	d.root.Release()
	d.tree.Release()
	d.tokenCount = 0
}

// Validate checks the document's structural invariants (test support).
func (d *Document) Validate() error {
	if err := d.tree.Validate(); err != nil {
		return err
	}
	if count := d.tree.Count(); count != d.tokenCount {
		return fmt.Errorf("document: token count %d out of sync with tree count %d", d.tokenCount, count)
	}
	return nil
}

func (d *Document) parseConfig() syntax.Config {
	return syntax.Config{
		Tree:     d.tree,
		Rules:    d.grammar.Rules,
		Clusters: d.clusters,
	}
}

func (d *Document) coverConfig(cover Span) syntax.Config {
	cfg := d.parseConfig()
	cfg.HasCover = true
	cfg.CoverStart = cover.Start
	cfg.CoverEnd = cover.End
	return cfg
}

func (d *Document) nodeByKey(key syntax.NodeKey) (*syntax.Node, bool) {
	return syntax.ResolveNode(d.clusters, key)
}

func (d *Document) checkSpan(span Span) {
	if span.Start < 0 || span.Start > span.End || span.End > d.Length() {
		panic(fmt.Sprintf("document: span %d..%d out of bounds of length %d", span.Start, span.End, d.Length()))
	}
}

// cutRunes drops the first n runes of s.
func cutRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}

// takeRunes keeps the first n runes of s.
func takeRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
