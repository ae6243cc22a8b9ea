package store

// Write is the optimized in-place splice: starting at head, remove removeN
// chunks and insert the given chunks in their place. It applies when the
// removed range lies within a single page and the result fits in at most
// two pages; otherwise it returns false and the caller takes the
// split/join path. A dangling head with removeN == 0 appends at the end.
//
// On success the returned cursor addresses the first chunk at the splice
// point (dangling when the splice ended the document).
func (t *Tree) Write(head ChildCursor, removeN int, insert []*Chunk) (ChildCursor, bool) {
	if head.IsDangling() {
		if removeN > 0 {
			panic("store: removal past the end of the tree")
		}
		if t.root == nil {
			if len(insert) > PageCap {
				return ChildCursor{}, false
			}
			if len(insert) == 0 {
				return ChildCursor{}, true
			}
			page := newPage()
			page.chunks = append(page.chunks, insert...)
			t.root = page
			t.height = 1
			t.length = page.span()
			return ChildCursor{page: page, index: 0}, true
		}
		last := t.Last()
		head = ChildCursor{page: last.page, index: len(last.page.chunks)}
	}

	page := head.page
	if head.index+removeN > len(page.chunks) {
		return ChildCursor{}, false
	}
	newOcc := len(page.chunks) - removeN + len(insert)
	if newOcc > 2*PageCap {
		return ChildCursor{}, false
	}

	headSite := t.SiteOf(head)

	removedSpan := 0
	for i := head.index; i < head.index+removeN; i++ {
		removedSpan += page.chunks[i].span
		t.releaseChunk(page.chunks[i])
	}
	insertedSpan := 0
	for _, chunk := range insert {
		insertedSpan += chunk.span
	}

	merged := make([]*Chunk, 0, newOcc)
	merged = append(merged, page.chunks[:head.index]...)
	merged = append(merged, insert...)
	merged = append(merged, page.chunks[head.index+removeN:]...)

	delta := insertedSpan - removedSpan
	t.length += delta
	propagate(page, delta)

	if newOcc <= PageCap {
		page.chunks = append(page.chunks[:0], merged...)
		t.refresh(page, head.index)
		if newOcc < PageB {
			t.fixPageUnderflow(page)
		}
	} else {
		mid := (newOcc + 1) / 2
		right := newPage()
		right.chunks = append(right.chunks, merged[mid:]...)
		page.chunks = append(page.chunks[:0], merged[:mid]...)
		t.refresh(page, 0)
		t.refresh(right, 0)

		moved := right.span()
		ref := page.up
		if ref.branch == nil {
			root := newBranch()
			root.children = append(root.children,
				child{item: page, spanSum: page.span()},
				child{item: right, spanSum: moved})
			root.reparent(0)
			t.root = root
			t.height = 2
		} else {
			ref.branch.children[ref.slot].spanSum -= moved
			t.insertChildAndFix(ref.branch, ref.slot+1, right, moved)
		}
	}

	site := headSite
	return t.Lookup(&site), true
}

// insertChildAndFix inserts a child entry into a branch, splitting the
// branch upward on overflow. Span sums above the branch are preserved: the
// caller accounts for any net span change before calling.
func (t *Tree) insertChildAndFix(branch *Branch, at int, it item, sum int) {
	branch.children = append(branch.children, child{})
	copy(branch.children[at+1:], branch.children[at:])
	branch.children[at] = child{item: it, spanSum: sum}
	branch.reparent(at)

	if len(branch.children) <= BranchCap {
		return
	}

	n := len(branch.children)
	mid := (n + 1) / 2
	right := newBranch()
	right.children = append(right.children, branch.children[mid:]...)
	branch.children = branch.children[:mid]
	right.reparent(0)

	moved := 0
	for _, c := range right.children {
		moved += c.spanSum
	}

	ref := branch.up
	if ref.branch == nil {
		root := newBranch()
		root.children = append(root.children,
			child{item: branch, spanSum: branch.span()},
			child{item: right, spanSum: moved})
		root.reparent(0)
		t.root = root
		t.height++
		return
	}
	ref.branch.children[ref.slot].spanSum -= moved
	t.insertChildAndFix(ref.branch, ref.slot+1, right, moved)
}

// fixUnderflow restores the occupancy invariant of a node that may have
// dropped below the branching minimum.
func (t *Tree) fixUnderflow(node item) {
	switch n := node.(type) {
	case *Page:
		t.fixPageUnderflow(n)
	case *Branch:
		t.fixBranchUnderflow(n)
	}
}

// fixPageUnderflow rebalances an under-filled page against a sibling:
// the pair is merged when the sibling has spare room, redistributed evenly
// otherwise. Merges propagate upward through removeChildAndFix.
func (t *Tree) fixPageUnderflow(page *Page) {
	ref := page.up
	if ref.branch == nil {
		if len(page.chunks) == 0 {
			t.root = nil
			t.height = 0
		}
		return
	}
	if len(page.chunks) >= PageB {
		return
	}

	branch := ref.branch
	leftSlot := ref.slot - 1
	rightSlot := ref.slot
	if ref.slot == 0 {
		leftSlot = 0
		rightSlot = 1
	}
	left := branch.children[leftSlot].item.(*Page)
	right := branch.children[rightSlot].item.(*Page)
	total := len(left.chunks) + len(right.chunks)

	if total <= PageCap {
		from := len(left.chunks)
		left.chunks = append(left.chunks, right.chunks...)
		t.refresh(left, from)
		branch.children[leftSlot].spanSum += branch.children[rightSlot].spanSum
		t.removeChildAndFix(branch, rightSlot)
		return
	}

	combined := make([]*Chunk, 0, total)
	combined = append(combined, left.chunks...)
	combined = append(combined, right.chunks...)
	mid := (total + 1) / 2
	left.chunks = append(left.chunks[:0], combined[:mid]...)
	right.chunks = append(make([]*Chunk, 0, PageCap), combined[mid:]...)
	t.refresh(left, 0)
	t.refresh(right, 0)
	branch.children[leftSlot].spanSum = left.span()
	branch.children[rightSlot].spanSum = right.span()
}

// fixBranchUnderflow is the branch-level counterpart of fixPageUnderflow.
func (t *Tree) fixBranchUnderflow(branch *Branch) {
	ref := branch.up
	if ref.branch == nil {
		return
	}
	if len(branch.children) >= BranchB {
		return
	}

	parent := ref.branch
	leftSlot := ref.slot - 1
	rightSlot := ref.slot
	if ref.slot == 0 {
		leftSlot = 0
		rightSlot = 1
	}
	left := parent.children[leftSlot].item.(*Branch)
	right := parent.children[rightSlot].item.(*Branch)
	total := len(left.children) + len(right.children)

	if total <= BranchCap {
		from := len(left.children)
		left.children = append(left.children, right.children...)
		left.reparent(from)
		parent.children[leftSlot].spanSum += parent.children[rightSlot].spanSum
		t.removeChildAndFix(parent, rightSlot)
		return
	}

	combined := make([]child, 0, total)
	combined = append(combined, left.children...)
	combined = append(combined, right.children...)
	mid := (total + 1) / 2
	left.children = append(left.children[:0], combined[:mid]...)
	right.children = append(make([]child, 0, BranchCap), combined[mid:]...)
	left.reparent(0)
	right.reparent(0)
	parent.children[leftSlot].spanSum = left.span()
	parent.children[rightSlot].spanSum = right.span()
}

// removeChildAndFix deletes a branch slot whose span was already folded
// into a sibling, then restores the invariants upward. A root branch left
// with a single child hands the root to that child, decreasing the height.
func (t *Tree) removeChildAndFix(branch *Branch, slot int) {
	branch.children = append(branch.children[:slot], branch.children[slot+1:]...)
	branch.reparent(slot)

	ref := branch.up
	if ref.branch == nil {
		if len(branch.children) == 1 {
			only := branch.children[0].item
			only.setParent(nil, 0)
			t.root = only
			t.height--
		}
		return
	}
	if len(branch.children) >= BranchB {
		return
	}
	t.fixBranchUnderflow(branch)
}
