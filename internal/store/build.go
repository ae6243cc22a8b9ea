package store

import "github.com/orizon-lang/lattice/internal/refs"

// BuildTree constructs a balanced tree from a chunk sequence bottom-up,
// distributing chunks so that every page and branch lands between the
// branching minimum and capacity. This is the bulk-load path used for
// fresh documents and for the middle subtree of a large splice.
func BuildTree(reg *refs.Registry[ChildCursor], chunks []*Chunk) *Tree {
	t := NewTree(reg)
	n := len(chunks)
	if n == 0 {
		return t
	}

	pageCount := (n + PageCap - 1) / PageCap
	base, extra := n/pageCount, n%pageCount
	items := make([]child, 0, pageCount)
	idx := 0
	for p := 0; p < pageCount; p++ {
		size := base
		if p < extra {
			size++
		}
		page := newPage()
		page.chunks = append(page.chunks, chunks[idx:idx+size]...)
		idx += size
		items = append(items, child{item: page, spanSum: page.span()})
	}

	height := 1
	for len(items) > 1 {
		m := len(items)
		branchCount := (m + BranchCap - 1) / BranchCap
		base, extra := m/branchCount, m%branchCount
		next := make([]child, 0, branchCount)
		idx := 0
		for b := 0; b < branchCount; b++ {
			size := base
			if b < extra {
				size++
			}
			branch := newBranch()
			branch.children = append(branch.children, items[idx:idx+size]...)
			branch.reparent(0)
			idx += size
			next = append(next, child{item: branch, spanSum: branch.span()})
		}
		items = next
		height++
	}

	t.root = items[0].item
	t.root.setParent(nil, 0)
	t.height = height
	t.length = items[0].spanSum
	return t
}
