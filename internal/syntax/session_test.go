package syntax_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	jsongrammar "github.com/orizon-lang/lattice/internal/grammar/json"
	"github.com/orizon-lang/lattice/internal/lexis"
	"github.com/orizon-lang/lattice/internal/refs"
	"github.com/orizon-lang/lattice/internal/store"
	"github.com/orizon-lang/lattice/internal/syntax"
)

type fixture struct {
	tree     *store.Tree
	clusters *refs.Registry[*syntax.Cluster]
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	g := jsongrammar.Grammar()
	tokens := lexis.ScanString(g.Automaton, text)
	chunks := make([]*store.Chunk, 0, len(tokens))
	for _, token := range tokens {
		chunks = append(chunks, store.NewChunk(token.Kind, token.Text))
	}
	return &fixture{
		tree:     store.BuildTree(refs.NewRegistry[store.ChildCursor](), chunks),
		clusters: refs.NewRegistry[*syntax.Cluster](),
	}
}

func (f *fixture) config() syntax.Config {
	return syntax.Config{
		Tree:     f.tree,
		Rules:    jsongrammar.Grammar().Rules,
		Clusters: f.clusters,
	}
}

func (f *fixture) parse(t *testing.T) *syntax.Cluster {
	t.Helper()
	return syntax.ParseRule(f.config(), syntax.RootRule, f.tree.First())
}

func errorCount(f *fixture) int {
	count := 0
	f.clusters.ForEach(func(_ refs.Entry, c *syntax.Cluster) bool {
		count += c.Errors.Len()
		return true
	})
	return count
}

func TestParseWellFormedObject(t *testing.T) {
	f := newFixture(t, `{"a": 1, "b": [true, null]}`)
	cluster := f.parse(t)

	require.Equal(t, 0, errorCount(f))

	end, ok := cluster.EndSite(f.tree)
	require.True(t, ok)
	require.Equal(t, f.tree.Length(), end)
	require.Equal(t, 1, cluster.Lookahead, "root peeks end of input")

	root, ok := cluster.PrimaryNode()
	require.True(t, ok)
	require.Equal(t, jsongrammar.RuleDocument, root.Rule)
	require.Len(t, root.Children, 1)
}

func TestParseEmptyInput(t *testing.T) {
	f := newFixture(t, "")
	cluster := f.parse(t)

	require.Equal(t, 1, errorCount(f), "missing value at end of input")
	_, ok := cluster.PrimaryNode()
	require.True(t, ok, "a node is produced even on failure")
}

func TestParseCreatesInnerClusters(t *testing.T) {
	f := newFixture(t, `{"a":1}`)
	f.parse(t)

	// Entry at the key chunk and Value at the number chunk carry caches.
	withCache := 0
	f.tree.ForEachChunk(func(c store.ChildCursor) bool {
		if c.Chunk().Cache != nil {
			withCache++
		}
		return true
	})
	require.Equal(t, 2, withCache)
}

func TestPanicModeRecovery(t *testing.T) {
	f := newFixture(t, `[1 2]`)
	f.parse(t)

	require.Equal(t, 1, errorCount(f))
}

func TestRecoverySkipsMismatchChunks(t *testing.T) {
	f := newFixture(t, `[1 # 2]`)
	f.parse(t)

	// Mismatch chunks trigger panic mode; the array still closes.
	require.NotEqual(t, 0, errorCount(f))
}

func TestDescendReusesCleanCache(t *testing.T) {
	f := newFixture(t, `{"a":1}`)
	f.parse(t)

	// Locate the Entry cluster anchored at the key chunk.
	var entryCluster *syntax.Cluster
	f.tree.ForEachChunk(func(c store.ChildCursor) bool {
		if cache, ok := c.Chunk().Cache.(*syntax.Cluster); ok && cache.Rule == jsongrammar.RuleEntry {
			entryCluster = cache
			return false
		}
		return true
	})
	require.NotNil(t, entryCluster)
	before := entryCluster.Entry

	// Reparse the root with a cover far outside the entry's window: the
	// cached cluster must be reused, not rebuilt.
	cfg := f.config()
	cfg.HasCover = true
	cfg.CoverStart = f.tree.Length()
	cfg.CoverEnd = f.tree.Length()
	syntax.ParseRule(cfg, syntax.RootRule, f.tree.First())

	require.True(t, f.clusters.Contains(before), "entry cluster was rebuilt despite clean cache")
}

func TestDescendRebuildsCoveredCache(t *testing.T) {
	f := newFixture(t, `{"a":1}`)
	f.parse(t)

	var entryCluster *syntax.Cluster
	f.tree.ForEachChunk(func(c store.ChildCursor) bool {
		if cache, ok := c.Chunk().Cache.(*syntax.Cluster); ok && cache.Rule == jsongrammar.RuleEntry {
			entryCluster = cache
			return false
		}
		return true
	})
	require.NotNil(t, entryCluster)
	before := entryCluster.Entry

	// A cover inside the entry's parsed window forces a fresh parse.
	cfg := f.config()
	cfg.HasCover = true
	cfg.CoverStart = 5
	cfg.CoverEnd = 6
	syntax.ParseRule(cfg, syntax.RootRule, f.tree.First())

	require.False(t, f.clusters.Contains(before), "covered cache was reused")
}

func TestCustomParserRule(t *testing.T) {
	// A grammar whose root defers to a custom parser consuming a run of
	// number tokens.
	g := jsongrammar.Grammar()
	custom := func(s *syntax.Session) {
		for {
			token := s.Peek(0)
			if token.Kind != jsongrammar.Number {
				return
			}
			s.CaptureToken()
			s.Advance()
		}
	}
	rules, err := syntax.NewRuleSet([]*syntax.Rule{{
		ID:       syntax.RootRule,
		Name:     "Numbers",
		Leftmost: lexis.NewTokenSet(jsongrammar.Number),
		Custom:   custom,
	}})
	require.NoError(t, err)

	tokens := lexis.ScanString(g.Automaton, "1 2 3")
	var chunks []*store.Chunk
	for _, token := range tokens {
		chunks = append(chunks, store.NewChunk(token.Kind, token.Text))
	}
	tree := store.BuildTree(refs.NewRegistry[store.ChildCursor](), chunks)
	clusters := refs.NewRegistry[*syntax.Cluster]()

	cluster := syntax.ParseRule(syntax.Config{
		Tree:     tree,
		Rules:    rules,
		Clusters: clusters,
	}, syntax.RootRule, tree.First())

	node, ok := cluster.PrimaryNode()
	require.True(t, ok)
	require.Len(t, node.Children, 1, "custom parser stops at whitespace")
}
