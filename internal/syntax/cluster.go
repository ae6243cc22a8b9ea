package syntax

import (
	"github.com/orizon-lang/lattice/internal/refs"
	"github.com/orizon-lang/lattice/internal/store"
)

// Cluster is the cached result of one rule invocation at its entry chunk:
// the primary node, every further node and error the invocation produced,
// the boundary where parsing stopped, and the extra lookahead the parse
// inspected past that boundary. Clusters implement store.Cache so the
// tree can release them when their entry chunk goes away.
type Cluster struct {
	Rule      RuleID
	Primary   refs.Entry
	Nodes     *refs.Registry[*Node]
	Errors    *refs.Registry[*SyntaxError]
	End       SiteKey
	Lookahead int

	// Entry is the cluster's own slot in the document cluster registry.
	Entry refs.Entry

	// Version stamps this incarnation; keys to secondary nodes embed it
	// and stop resolving when a replacement takes over the slot.
	Version uint64

	home *refs.Registry[*Cluster]
}

var _ store.Cache = (*Cluster)(nil)

// newCluster creates a cluster and registers it with the document's
// cluster registry.
func newCluster(rule RuleID, home *refs.Registry[*Cluster]) *Cluster {
	c := &Cluster{
		Rule:    rule,
		Nodes:   refs.NewRegistry[*Node](),
		Errors:  refs.NewRegistry[*SyntaxError](),
		Version: refs.NextVersion(),
		home:    home,
	}
	c.Entry = home.Insert(c)
	return c
}

// adoptSlot moves c into old's registry slot so that references held by
// enclosing nodes resolve to the replacement. old is detached and must
// not be used afterwards.
func (c *Cluster) adoptSlot(old *Cluster) {
	if old == nil || old.home == nil || c.home == nil {
		return
	}
	c.home.Remove(c.Entry)
	if c.home.Set(old.Entry, c) {
		c.Entry = old.Entry
	} else {
		c.Entry = c.home.Insert(c)
	}
	old.home = nil
}

// Release retires the cluster's registry slot, turning every outstanding
// handle into its nodes and errors stale.
func (c *Cluster) Release() {
	if c.home != nil {
		c.home.Remove(c.Entry)
		c.home = nil
	}
}

// PrimaryNode returns the cluster's primary node.
func (c *Cluster) PrimaryNode() (*Node, bool) {
	return c.Nodes.Get(c.Primary)
}

// PrimaryKey returns a key addressing the cluster's primary node. The key
// names the slot, not the incarnation, so it keeps resolving after the
// cache is replaced by a reparse.
func (c *Cluster) PrimaryKey() NodeKey {
	return NodeKey{Cluster: c.Entry}
}

// EndSite resolves the cluster's parsed-end boundary against the tree.
func (c *Cluster) EndSite(tree *store.Tree) (int, bool) {
	return c.End.Resolve(tree)
}
