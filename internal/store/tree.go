package store

import (
	"fmt"

	"github.com/orizon-lang/lattice/internal/refs"
)

// Tree is the chunked storage tree of one document. All root-to-leaf paths
// have equal length; a tree of height 1 is a single page. The tree shares a
// chunk registry with any trees split off of it, and rewrites registry
// entries whenever a chunk changes slots.
type Tree struct {
	root   item
	height int
	length int
	reg    *refs.Registry[ChildCursor]
}

// NewTree creates an empty tree over the given chunk registry.
func NewTree(reg *refs.Registry[ChildCursor]) *Tree {
	return &Tree{reg: reg}
}

// Length returns the total character length of the tree.
func (t *Tree) Length() int {
	return t.length
}

// Height returns the tree height: 0 when empty, 1 for a single page.
func (t *Tree) Height() int {
	return t.height
}

// IsEmpty reports whether the tree holds no chunks.
func (t *Tree) IsEmpty() bool {
	return t.root == nil
}

// Registry returns the shared chunk registry.
func (t *Tree) Registry() *refs.Registry[ChildCursor] {
	return t.reg
}

// Lookup translates a site into the cursor of the chunk containing it.
// On return *site holds the offset within that chunk, 0 on a boundary.
// Looking up the total length yields a dangling cursor and offset 0.
// Sites past the end are programmer errors.
func (t *Tree) Lookup(site *int) ChildCursor {
	if *site < 0 || *site > t.length {
		panic(fmt.Sprintf("store: site %d out of bounds of document length %d", *site, t.length))
	}
	if *site == t.length {
		*site = 0
		return ChildCursor{}
	}

	node := t.root
	for h := t.height; h > 1; h-- {
		branch := node.(*Branch)
		for i := range branch.children {
			c := &branch.children[i]
			if *site < c.spanSum {
				node = c.item
				break
			}
			*site -= c.spanSum
		}
	}

	page := node.(*Page)
	for i, chunk := range page.chunks {
		if *site < chunk.span {
			return ChildCursor{page: page, index: i}
		}
		*site -= chunk.span
	}
	panic("store: branch span sums out of sync with page contents")
}

// SiteOf is the inverse of Lookup for non-dangling cursors: the site of the
// chunk's first character.
func (t *Tree) SiteOf(cursor ChildCursor) int {
	if cursor.IsDangling() {
		return t.length
	}

	site := 0
	for i := 0; i < cursor.index; i++ {
		site += cursor.page.chunks[i].span
	}
	var node item = cursor.page
	for ref := node.parent(); ref.branch != nil; ref = node.parent() {
		for i := 0; i < ref.slot; i++ {
			site += ref.branch.children[i].spanSum
		}
		node = ref.branch
	}
	return site
}

// First returns the cursor of the first chunk, dangling on an empty tree.
func (t *Tree) First() ChildCursor {
	if t.root == nil {
		return ChildCursor{}
	}
	node := t.root
	for h := t.height; h > 1; h-- {
		node = node.(*Branch).children[0].item
	}
	return ChildCursor{page: node.(*Page), index: 0}
}

// Last returns the cursor of the last chunk, dangling on an empty tree.
func (t *Tree) Last() ChildCursor {
	if t.root == nil {
		return ChildCursor{}
	}
	node := t.root
	for h := t.height; h > 1; h-- {
		branch := node.(*Branch)
		node = branch.children[len(branch.children)-1].item
	}
	page := node.(*Page)
	return ChildCursor{page: page, index: len(page.chunks) - 1}
}

// Next steps the cursor one chunk to the right; stepping past the last
// chunk dangles. Next of a dangling cursor stays dangling.
func (t *Tree) Next(cursor ChildCursor) ChildCursor {
	if cursor.IsDangling() {
		return cursor
	}
	if cursor.index+1 < len(cursor.page.chunks) {
		return ChildCursor{page: cursor.page, index: cursor.index + 1}
	}
	page := nextPage(cursor.page)
	if page == nil {
		return ChildCursor{}
	}
	return ChildCursor{page: page, index: 0}
}

// Prev steps the cursor one chunk to the left; stepping before the first
// chunk dangles. Prev of a dangling cursor is the last chunk.
func (t *Tree) Prev(cursor ChildCursor) ChildCursor {
	if cursor.IsDangling() {
		return t.Last()
	}
	if cursor.index > 0 {
		return ChildCursor{page: cursor.page, index: cursor.index - 1}
	}
	page := prevPage(cursor.page)
	if page == nil {
		return ChildCursor{}
	}
	return ChildCursor{page: page, index: len(page.chunks) - 1}
}

// nextPage finds the leaf to the right by climbing parent back-pointers.
func nextPage(page *Page) *Page {
	var node item = page
	ref := node.parent()
	for ref.branch != nil && ref.slot == len(ref.branch.children)-1 {
		node = ref.branch
		ref = node.parent()
	}
	if ref.branch == nil {
		return nil
	}
	node = ref.branch.children[ref.slot+1].item
	for {
		if p, ok := node.(*Page); ok {
			return p
		}
		node = node.(*Branch).children[0].item
	}
}

func prevPage(page *Page) *Page {
	var node item = page
	ref := node.parent()
	for ref.branch != nil && ref.slot == 0 {
		node = ref.branch
		ref = node.parent()
	}
	if ref.branch == nil {
		return nil
	}
	node = ref.branch.children[ref.slot-1].item
	for {
		if p, ok := node.(*Page); ok {
			return p
		}
		branch := node.(*Branch)
		node = branch.children[len(branch.children)-1].item
	}
}

// RefOf externalizes the chunk under the cursor, inserting a registry
// entry on first use. Dangling cursors have no reference.
func (t *Tree) RefOf(cursor ChildCursor) refs.Entry {
	if cursor.IsDangling() {
		return refs.Nil
	}
	chunk := cursor.Chunk()
	if chunk.ref.IsNil() || !t.reg.Contains(chunk.ref) {
		chunk.ref = t.reg.Insert(cursor)
	}
	return chunk.ref
}

// CursorOf resolves a registry entry back to a live cursor.
func (t *Tree) CursorOf(entry refs.Entry) (ChildCursor, bool) {
	return t.reg.Get(entry)
}

// ForEachChunk walks all chunks left to right.
func (t *Tree) ForEachChunk(visit func(cursor ChildCursor) bool) {
	for cursor := t.First(); !cursor.IsDangling(); cursor = t.Next(cursor) {
		if !visit(cursor) {
			return
		}
	}
}

// Release drops every chunk in the tree, retiring registry entries and
// releasing parse caches. Used for spliced-out subtrees and document drop.
func (t *Tree) Release() {
	t.ForEachChunk(func(cursor ChildCursor) bool {
		t.releaseChunk(cursor.Chunk())
		return true
	})
	t.root = nil
	t.height = 0
	t.length = 0
}

// releaseChunk retires a chunk leaving the tree.
func (t *Tree) releaseChunk(chunk *Chunk) {
	if !chunk.ref.IsNil() {
		t.reg.Remove(chunk.ref)
		chunk.ref = refs.Nil
	}
	if chunk.Cache != nil {
		chunk.Cache.Release()
		chunk.Cache = nil
	}
}

// refresh re-points the registry entries of page chunks from slot from on.
func (t *Tree) refresh(page *Page, from int) {
	for i := from; i < len(page.chunks); i++ {
		chunk := page.chunks[i]
		if !chunk.ref.IsNil() {
			t.reg.Set(chunk.ref, ChildCursor{page: page, index: i})
		}
	}
}

// propagate adds a span delta to every ancestor slot of node.
func propagate(node item, delta int) {
	if delta == 0 {
		return
	}
	for ref := node.parent(); ref.branch != nil; ref = node.parent() {
		ref.branch.children[ref.slot].spanSum += delta
		node = ref.branch
	}
}
