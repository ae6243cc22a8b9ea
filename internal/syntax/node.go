package syntax

import (
	"github.com/orizon-lang/lattice/internal/refs"
	"github.com/orizon-lang/lattice/internal/store"
)

// SiteKey marks a token boundary that stays meaningful across edits: the
// start of a referenced chunk, or the end of the document. Boundary keys
// resolve to concrete sites through the live tree, so they track content
// as it shifts.
type SiteKey struct {
	Chunk refs.Entry
	End   bool
}

// IsNil reports whether the key marks nothing.
func (k SiteKey) IsNil() bool {
	return !k.End && k.Chunk.IsNil()
}

// Resolve translates the key into a site. It fails when the referenced
// chunk has left the tree.
func (k SiteKey) Resolve(tree *store.Tree) (int, bool) {
	if k.End {
		return tree.Length(), true
	}
	cursor, ok := tree.CursorOf(k.Chunk)
	if !ok {
		return 0, false
	}
	return tree.SiteOf(cursor), true
}

// NodeKey addresses a node. A key with a nil Node addresses the owning
// cluster's current primary node; such keys survive cache replacement,
// which is how enclosing nodes keep pointing at a reparsed subtree. Keys
// to secondary nodes carry the cluster incarnation's version stamp and go
// stale with it.
type NodeKey struct {
	Cluster refs.Entry
	Version uint64
	Node    refs.Entry
}

// IsNil reports whether the key addresses nothing.
func (k NodeKey) IsNil() bool {
	return k.Cluster.IsNil() && k.Node.IsNil()
}

// ResolveNode translates a key into its node against the live cluster
// registry.
func ResolveNode(clusters *refs.Registry[*Cluster], key NodeKey) (*Node, bool) {
	cluster, ok := clusters.Get(key.Cluster)
	if !ok {
		return nil, false
	}
	if key.Node.IsNil() {
		return cluster.Nodes.Get(cluster.Primary)
	}
	if cluster.Version != key.Version {
		return nil, false
	}
	return cluster.Nodes.Get(key.Node)
}

// ChildKind tags a node child as a consumed token or a descended node.
type ChildKind int

const (
	ChildToken ChildKind = iota
	ChildNode
)

// Child is one captured child of a node, in consumption order.
type Child struct {
	Kind  ChildKind
	Chunk refs.Entry
	Node  NodeKey
}

// Node is a grammar-agnostic parse tree node: the rule that produced it,
// its captured children, and its boundary keys.
type Node struct {
	Rule     RuleID
	Parent   NodeKey
	Children []Child
	Start    SiteKey
	End      SiteKey
}
