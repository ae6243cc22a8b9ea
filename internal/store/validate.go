package store

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants of the tree: balanced height,
// occupancy bounds, span sum consistency, and parent back-pointers. It is
// a test and debugging aid; engine code never needs it.
func (t *Tree) Validate() error {
	if t.root == nil {
		if t.height != 0 || t.length != 0 {
			return fmt.Errorf("empty tree with height %d length %d", t.height, t.length)
		}
		return nil
	}
	if t.root.parent().branch != nil {
		return fmt.Errorf("root has a parent back-pointer")
	}
	span, err := t.validateItem(t.root, t.height, true)
	if err != nil {
		return err
	}
	if span != t.length {
		return fmt.Errorf("tree length %d does not match content span %d", t.length, span)
	}
	return nil
}

func (t *Tree) validateItem(node item, height int, isRoot bool) (int, error) {
	switch n := node.(type) {
	case *Page:
		if height != 1 {
			return 0, fmt.Errorf("page found at height %d", height)
		}
		if len(n.chunks) > PageCap {
			return 0, fmt.Errorf("page occupancy %d exceeds capacity", len(n.chunks))
		}
		if !isRoot && len(n.chunks) < PageB {
			return 0, fmt.Errorf("non-root page occupancy %d below branching", len(n.chunks))
		}
		if isRoot && len(n.chunks) == 0 {
			return 0, fmt.Errorf("empty root page")
		}
		span := 0
		for i, chunk := range n.chunks {
			if chunk.span < 1 {
				return 0, fmt.Errorf("empty chunk at page index %d", i)
			}
			if !chunk.ref.IsNil() {
				cursor, ok := t.reg.Get(chunk.ref)
				if !ok || cursor.page != n || cursor.index != i {
					return 0, fmt.Errorf("registry entry of chunk %q out of sync", chunk.Text)
				}
			}
			span += chunk.span
		}
		return span, nil

	case *Branch:
		if height < 2 {
			return 0, fmt.Errorf("branch found at height %d", height)
		}
		if len(n.children) > BranchCap {
			return 0, fmt.Errorf("branch occupancy %d exceeds capacity", len(n.children))
		}
		min := BranchB
		if isRoot {
			min = 2
		}
		if len(n.children) < min {
			return 0, fmt.Errorf("branch occupancy %d below minimum %d", len(n.children), min)
		}
		span := 0
		for i, c := range n.children {
			ref := c.item.parent()
			if ref.branch != n || ref.slot != i {
				return 0, fmt.Errorf("child %d has a stale parent back-pointer", i)
			}
			sub, err := t.validateItem(c.item, height-1, false)
			if err != nil {
				return 0, err
			}
			if sub != c.spanSum {
				return 0, fmt.Errorf("span sum of child %d is %d, subtree holds %d", i, c.spanSum, sub)
			}
			span += sub
		}
		return span, nil
	}
	return 0, fmt.Errorf("unknown item type %T", node)
}

// String renders the chunk sequence; used by test failure output.
func (t *Tree) String() string {
	var sb strings.Builder
	t.ForEachChunk(func(cursor ChildCursor) bool {
		chunk := cursor.Chunk()
		fmt.Fprintf(&sb, "[%d %q]", chunk.Kind, chunk.Text)
		return true
	})
	return sb.String()
}

// Text concatenates every chunk string.
func (t *Tree) Text() string {
	var sb strings.Builder
	t.ForEachChunk(func(cursor ChildCursor) bool {
		sb.WriteString(cursor.Chunk().Text)
		return true
	})
	return sb.String()
}

// Count walks the tree counting chunks. Documents track their own token
// counts incrementally; this traversal backs tests and bulk loads.
func (t *Tree) Count() int {
	count := 0
	t.ForEachChunk(func(ChildCursor) bool {
		count++
		return true
	})
	return count
}
