package document

import (
	"github.com/orizon-lang/lattice/internal/store"
	"github.com/orizon-lang/lattice/internal/syntax"
)

// reparse restores parse consistency after a lexical change covered by
// cover (post-edit sites). It walks backwards from the cover looking for
// the tightest cached cluster that encloses the change, reruns its rule
// parser there, and escalates to the root rule when no inner cache
// qualifies. Stale caches met along the way are invalidated.
func (d *Document) reparse(cover Span) NodeRef {
	var lastChunk *store.Chunk
	var lastRule syntax.RuleID

	for {
		probe := cover.Start
		at := d.tree.Lookup(&probe)

		var found storeCursor
		var foundCluster *syntax.Cluster
		for c := d.tree.Prev(at); !c.IsDangling(); c = d.tree.Prev(c) {
			chunk := c.Chunk()
			cache, ok := chunk.Cache.(*syntax.Cluster)
			if !ok {
				continue
			}
			endSite, live := cache.End.Resolve(d.tree)
			if !live {
				cache.Release()
				chunk.Cache = nil
				continue
			}
			if endSite+cache.Lookahead <= cover.Start {
				// The parse never inspected the changed region.
				continue
			}
			if endSite >= cover.End {
				found = c
				foundCluster = cache
				break
			}
			// Touched by the change without enclosing it: stale.
			cache.Release()
			chunk.Cache = nil
		}

		if foundCluster == nil {
			return d.escalate(cover)
		}

		chunk := found.Chunk()
		if chunk == lastChunk && foundCluster.Rule == lastRule {
			return NodeRef{doc: d.id, key: foundCluster.PrimaryKey()}
		}
		lastChunk, lastRule = chunk, foundCluster.Rule

		oldEnd, _ := foundCluster.End.Resolve(d.tree)
		// Detach the stale cache before reparsing so the session cannot
		// reuse it; the fresh cluster takes over its registry slot, which
		// keeps child references in enclosing nodes valid.
		chunk.Cache = nil
		fresh := syntax.ParseRuleAt(d.coverConfig(cover), foundCluster.Rule, found, foundCluster)
		chunk.Cache = fresh

		newEnd, ok := fresh.End.Resolve(d.tree)
		if ok && newEnd == oldEnd {
			return NodeRef{doc: d.id, key: fresh.PrimaryKey()}
		}

		// The parse boundary moved; the change effectively covers the
		// difference. Widen and search again.
		if newEnd > cover.End {
			cover.End = newEnd
		}
		if oldEnd > cover.End {
			cover.End = oldEnd
		}
	}
}

// escalate clears the root cluster, reparses the root rule over the whole
// chunk sequence (reusing still-valid inner caches), and sweeps any
// straggler caches past the new root parse's end.
func (d *Document) escalate(cover Span) NodeRef {
	d.root.Release()
	d.root = syntax.ParseRule(d.coverConfig(cover), syntax.RootRule, d.tree.First())

	rootEnd, _ := d.root.End.Resolve(d.tree)
	d.tree.ForEachChunk(func(c storeCursor) bool {
		chunk := c.Chunk()
		if cache, ok := chunk.Cache.(*syntax.Cluster); ok {
			if d.tree.SiteOf(c) >= rootEnd {
				cache.Release()
				chunk.Cache = nil
			}
		}
		return true
	})
	return d.RootNodeRef()
}
