package store

// Join concatenates right onto the end of t. Heights are reconciled by
// grafting the shorter tree into the spine of the taller one; the grafted
// root is rebalanced against its new siblings when it arrives under-filled.
// right is emptied by the call.
func (t *Tree) Join(right *Tree) {
	if right == nil || right.root == nil {
		return
	}
	if t.root == nil {
		t.root = right.root
		t.height = right.height
		t.length = right.length
		right.clear()
		return
	}

	leftLen := t.length
	rightLen := right.length

	switch {
	case t.height == right.height:
		t.joinEqual(right)
	case t.height > right.height:
		t.graftRight(right, rightLen)
	default:
		t.graftLeft(right, leftLen)
	}

	t.length = leftLen + rightLen
	right.clear()
}

// joinEqual joins two trees of equal height by merging or redistributing
// their roots.
func (t *Tree) joinEqual(right *Tree) {
	if t.height == 1 {
		lp := t.root.(*Page)
		rp := right.root.(*Page)
		total := len(lp.chunks) + len(rp.chunks)
		if total <= PageCap {
			from := len(lp.chunks)
			lp.chunks = append(lp.chunks, rp.chunks...)
			t.refresh(lp, from)
			return
		}
		combined := make([]*Chunk, 0, total)
		combined = append(combined, lp.chunks...)
		combined = append(combined, rp.chunks...)
		mid := (total + 1) / 2
		lp.chunks = append(lp.chunks[:0], combined[:mid]...)
		rp.chunks = append(make([]*Chunk, 0, PageCap), combined[mid:]...)
		t.refresh(lp, 0)
		t.refresh(rp, 0)
		root := newBranch()
		root.children = append(root.children,
			child{item: lp, spanSum: lp.span()},
			child{item: rp, spanSum: rp.span()})
		root.reparent(0)
		t.root = root
		t.height = 2
		return
	}

	lb := t.root.(*Branch)
	rb := right.root.(*Branch)
	total := len(lb.children) + len(rb.children)
	if total <= BranchCap {
		from := len(lb.children)
		lb.children = append(lb.children, rb.children...)
		lb.reparent(from)
		return
	}
	combined := make([]child, 0, total)
	combined = append(combined, lb.children...)
	combined = append(combined, rb.children...)
	mid := (total + 1) / 2
	lb.children = append(lb.children[:0], combined[:mid]...)
	rb.children = append(make([]child, 0, BranchCap), combined[mid:]...)
	lb.reparent(0)
	rb.reparent(0)
	root := newBranch()
	root.children = append(root.children,
		child{item: lb, spanSum: lb.span()},
		child{item: rb, spanSum: rb.span()})
	root.reparent(0)
	t.root = root
	t.height++
}

// graftRight attaches a shorter right tree under t's rightmost spine.
func (t *Tree) graftRight(right *Tree, rightLen int) {
	node := t.root
	for h := t.height; h > right.height+1; h-- {
		branch := node.(*Branch)
		node = branch.children[len(branch.children)-1].item
	}
	branch := node.(*Branch)
	propagate(branch, rightLen)
	t.insertChildAndFix(branch, len(branch.children), right.root, rightLen)
	t.fixUnderflow(right.root)
}

// graftLeft attaches t (the shorter side) under right's leftmost spine and
// adopts right's structure as t's own.
func (t *Tree) graftLeft(right *Tree, leftLen int) {
	leftRoot := t.root
	leftHeight := t.height

	t.root = right.root
	t.height = right.height

	node := t.root
	for h := t.height; h > leftHeight+1; h-- {
		node = node.(*Branch).children[0].item
	}
	branch := node.(*Branch)
	propagate(branch, leftLen)
	t.insertChildAndFix(branch, 0, leftRoot, leftLen)
	t.fixUnderflow(leftRoot)
}

// Split cuts t at the cursor: t keeps everything before at, and the
// returned tree starts at at. Both sides are height-balanced and share the
// chunk registry; registry entries of moved chunks are rewritten.
func (t *Tree) Split(at ChildCursor) *Tree {
	if at.IsDangling() {
		return NewTree(t.reg)
	}

	page := at.page
	idx := at.index

	type pathStep struct {
		branch *Branch
		slot   int
	}
	var path []pathStep
	for ref := page.up; ref.branch != nil; ref = ref.branch.up {
		path = append(path, pathStep{branch: ref.branch, slot: ref.slot})
	}

	leftAcc := NewTree(t.reg)
	rightAcc := NewTree(t.reg)

	if idx == 0 {
		// The whole page belongs to the right side; reusing the page object
		// keeps its chunks' registry entries untouched.
		page.setParent(nil, 0)
		rightAcc.root = page
		rightAcc.height = 1
		rightAcc.length = page.span()
	} else {
		rightPage := newPage()
		rightPage.chunks = append(rightPage.chunks, page.chunks[idx:]...)
		page.chunks = page.chunks[:idx]
		page.setParent(nil, 0)
		t.refresh(rightPage, 0)

		leftAcc.root = page
		leftAcc.height = 1
		leftAcc.length = page.span()
		if len(rightPage.chunks) > 0 {
			rightAcc.root = rightPage
			rightAcc.height = 1
			rightAcc.length = rightPage.span()
		}
	}

	childHeight := 1
	for _, step := range path {
		if left := t.treeFromChildren(step.branch.children[:step.slot], childHeight); left != nil {
			left.Join(leftAcc)
			leftAcc = left
		}
		if right := t.treeFromChildren(step.branch.children[step.slot+1:], childHeight); right != nil {
			rightAcc.Join(right)
		}
		childHeight++
	}

	t.root = leftAcc.root
	t.height = leftAcc.height
	t.length = leftAcc.length
	return rightAcc
}

// treeFromChildren wraps a run of sibling entries into a standalone tree.
// Returns nil for an empty run. A single entry becomes the root directly;
// longer runs get a root branch, possibly under-occupied, which later
// joins repair.
func (t *Tree) treeFromChildren(entries []child, childHeight int) *Tree {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) == 1 {
		entries[0].item.setParent(nil, 0)
		return &Tree{root: entries[0].item, height: childHeight, length: entries[0].spanSum, reg: t.reg}
	}
	branch := newBranch()
	branch.children = append(branch.children, entries...)
	branch.reparent(0)
	return &Tree{root: branch, height: childHeight + 1, length: branch.span(), reg: t.reg}
}

func (t *Tree) clear() {
	t.root = nil
	t.height = 0
	t.length = 0
}
