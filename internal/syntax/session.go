package syntax

import (
	"github.com/orizon-lang/lattice/internal/lexis"
	"github.com/orizon-lang/lattice/internal/refs"
	"github.com/orizon-lang/lattice/internal/store"
)

// Config wires a parser session to one document's storage. When HasCover
// is set, cached clusters whose dependency window intersects the cover
// span [CoverStart, CoverEnd) are not reused during descend; the reparse
// driver supplies the cover of the lexical change.
type Config struct {
	Tree     *store.Tree
	Rules    *RuleSet
	Clusters *refs.Registry[*Cluster]

	HasCover   bool
	CoverStart int
	CoverEnd   int
}

// frame tracks one cluster under construction: the entry chunk it will be
// anchored to, the farthest site its decisions inspected, and the chain of
// nodes currently open inside it.
type frame struct {
	cluster  *Cluster
	entry    *store.Chunk
	farthest int
	nodes    []NodeKey
}

// Session is a single parser invocation: a token-stream cursor over the
// tree that descends through rule parsers, records children and errors,
// and emits parse clusters. All operations are sequential; tokens are
// consumed strictly left to right.
type Session struct {
	cfg    Config
	cursor store.ChildCursor
	pos    int
	frames []*frame
}

// ParseRule runs the parser for a rule at the given entry cursor and
// returns the finished cluster. The caller anchors the cluster: the
// document holds the root cluster directly and attaches any other to its
// entry chunk.
func ParseRule(cfg Config, id RuleID, entry store.ChildCursor) *Cluster {
	return parseRuleInto(cfg, id, entry, nil)
}

// ParseRuleAt reparses a rule in place of an existing cluster. The fresh
// cluster takes over old's registry slot, so child references held by
// enclosing nodes keep resolving; old is detached.
func ParseRuleAt(cfg Config, id RuleID, entry store.ChildCursor, old *Cluster) *Cluster {
	return parseRuleInto(cfg, id, entry, old)
}

func parseRuleInto(cfg Config, id RuleID, entry store.ChildCursor, old *Cluster) *Cluster {
	s := &Session{cfg: cfg, cursor: entry, pos: cfg.Tree.SiteOf(entry)}

	cluster := newCluster(id, cfg.Clusters)
	cluster.adoptSlot(old)
	f := &frame{cluster: cluster, farthest: s.pos}
	if !entry.IsDangling() {
		f.entry = entry.Chunk()
	}
	s.frames = append(s.frames, f)

	key := s.parseRuleBody(cfg.Rules.Rule(id))
	cluster.Primary = key.Node
	cluster.End = s.boundary()
	cluster.Lookahead = s.lookahead(f)
	return cluster
}

// Peek returns the i-th upcoming token without consuming, the end-of-input
// token past the end. Peeking counts toward the cluster's lookahead.
func (s *Session) Peek(i int) lexis.Token {
	cursor := s.cursor
	site := s.pos
	for n := 0; n < i && !cursor.IsDangling(); n++ {
		site += cursor.Chunk().Span()
		cursor = s.cfg.Tree.Next(cursor)
	}
	if cursor.IsDangling() {
		// Observing end-of-input is a decision about the end position
		// itself; count it so that appends invalidate the cache.
		s.observe(site + 1)
		return lexis.Token{Kind: lexis.EOI}
	}
	chunk := cursor.Chunk()
	s.observe(site + chunk.Span())
	return lexis.Token{Kind: chunk.Kind, Text: chunk.Text}
}

// Advance consumes one token.
func (s *Session) Advance() {
	if s.cursor.IsDangling() {
		return
	}
	s.pos += s.cursor.Chunk().Span()
	s.cursor = s.cfg.Tree.Next(s.cursor)
	s.observe(s.pos)
}

// SiteRef returns a stable boundary key at the i-th upcoming token.
func (s *Session) SiteRef(i int) SiteKey {
	cursor := s.cursor
	for n := 0; n < i && !cursor.IsDangling(); n++ {
		cursor = s.cfg.Tree.Next(cursor)
	}
	if cursor.IsDangling() {
		return SiteKey{End: true}
	}
	return SiteKey{Chunk: s.cfg.Tree.RefOf(cursor)}
}

// Node returns the key of the node currently being built. During a
// sub-cluster parse with no node open yet, the enclosing cluster's node
// is current, which is what parents a sub-cluster's primary node.
func (s *Session) Node() NodeKey {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if n := len(s.frames[i].nodes); n > 0 {
			return s.frames[i].nodes[n-1]
		}
	}
	return NodeKey{}
}

// Parent returns the key of the enclosing node.
func (s *Session) Parent() NodeKey {
	if node, ok := s.nodeByKey(s.Node()); ok {
		return node.Parent
	}
	return NodeKey{}
}

// Error records a syntax error in the current cluster.
func (s *Session) Error(err *SyntaxError) {
	s.top().cluster.Errors.Insert(err)
}

// CaptureToken appends the current token to the current node's children.
func (s *Session) CaptureToken() {
	if s.cursor.IsDangling() {
		return
	}
	if node, ok := s.nodeByKey(s.Node()); ok {
		node.Children = append(node.Children, Child{
			Kind:  ChildToken,
			Chunk: s.cfg.Tree.RefOf(s.cursor),
		})
	}
}

// Descend parses a subrule at the current position. A valid cached
// cluster for the rule at the current chunk is reused and jumped over;
// otherwise the rule parser runs, caching its result when the rule is a
// caching entry point.
func (s *Session) Descend(id RuleID) NodeKey {
	rule := s.cfg.Rules.Rule(id)

	if !s.cursor.IsDangling() {
		chunk := s.cursor.Chunk()
		if cache, ok := chunk.Cache.(*Cluster); ok && cache.Rule == id {
			if endSite, valid := s.reusable(cache); valid {
				s.observe(endSite + cache.Lookahead)
				if node, ok := cache.Nodes.Get(cache.Primary); ok {
					node.Parent = s.Node()
				}
				s.jump(endSite)
				return cache.PrimaryKey()
			}
			cache.Release()
			chunk.Cache = nil
		}

		if rule.Primary && !s.entryActive(chunk) {
			cluster := newCluster(id, s.cfg.Clusters)
			f := &frame{cluster: cluster, entry: chunk, farthest: s.pos}
			s.frames = append(s.frames, f)

			key := s.parseRuleBody(rule)
			cluster.Primary = key.Node
			cluster.End = s.boundary()
			cluster.Lookahead = s.lookahead(f)

			s.frames = s.frames[:len(s.frames)-1]
			s.observe(f.farthest)

			if stale, ok := chunk.Cache.(*Cluster); ok {
				stale.Release()
			}
			chunk.Cache = cluster
			return cluster.PrimaryKey()
		}
	}

	return s.parseRuleBody(rule)
}

// parseRuleBody runs a rule's state machine (or custom parser) against
// the token stream, producing the rule's node in the current cluster.
func (s *Session) parseRuleBody(rule *Rule) NodeKey {
	f := s.top()
	node := &Node{Rule: rule.ID, Parent: s.Node(), Start: s.boundary()}
	entry := f.cluster.Nodes.Insert(node)
	key := NodeKey{Cluster: f.cluster.Entry, Version: f.cluster.Version, Node: entry}
	f.nodes = append(f.nodes, key)

	if rule.Custom != nil {
		rule.Custom(s)
	} else {
		s.runMachine(rule, node)
	}

	node.End = s.boundary()
	f.nodes = f.nodes[:len(f.nodes)-1]
	return key
}

func (s *Session) runMachine(rule *Rule, node *Node) {
	s.skipTrivia(rule)

	if tok := s.Peek(0); !rule.Leftmost.Has(tok.Kind) && !rule.Nullable {
		at := s.boundary()
		s.Error(&SyntaxError{
			Kind:     ErrorMissingRule,
			Rule:     rule.ID,
			Expected: rule.Leftmost,
			Start:    at,
			End:      at,
		})
		return
	}

	state := rule.Start
	for {
		s.skipTrivia(rule)
		st := &rule.States[state]
		tok := s.Peek(0)

		if step := matchStep(st, tok.Kind); step != nil {
			if step.Rule == NonRule {
				if step.Capture {
					s.CaptureToken()
				}
				s.Advance()
			} else {
				childKey := s.Descend(step.Rule)
				if step.Capture {
					node.Children = append(node.Children, Child{Kind: ChildNode, Node: childKey})
				}
			}
			state = step.Next
			continue
		}

		if st.Final {
			return
		}

		if tok.Kind == lexis.EOI {
			at := s.boundary()
			s.Error(&SyntaxError{
				Kind:          ErrorUnexpectedEOI,
				Rule:          rule.ID,
				Expected:      expected(st),
				ExpectedRules: expectedRules(st),
				Start:         at,
				End:           at,
			})
			return
		}

		if next, on, ok := missingTokenStep(rule, st, tok.Kind); ok {
			at := s.boundary()
			s.Error(&SyntaxError{
				Kind:     ErrorMissingToken,
				Rule:     rule.ID,
				Expected: on,
				Start:    at,
				End:      at,
			})
			state = next
			continue
		}

		if !s.recover(rule, st) {
			return
		}
	}
}

// matchStep picks the step whose On set holds the token. The grammar
// builder guarantees pairwise disjoint step sets, so first match wins.
func matchStep(st *State, kind lexis.TokenKind) *Step {
	for i := range st.Steps {
		if st.Steps[i].On.Has(kind) {
			return &st.Steps[i]
		}
	}
	return nil
}

func expectedRules(st *State) []RuleID {
	var rules []RuleID
	for _, step := range st.Steps {
		if step.Rule != NonRule {
			rules = append(rules, step.Rule)
		}
	}
	return rules
}

// missingTokenStep checks whether the current state requires exactly one
// token kind and the input instead already holds what comes after it. If
// so the parser inserts a placeholder and moves on without consuming.
func missingTokenStep(rule *Rule, st *State, kind lexis.TokenKind) (int, lexis.TokenSet, bool) {
	if len(st.Steps) != 1 {
		return 0, lexis.TokenSet{}, false
	}
	step := st.Steps[0]
	if step.Rule != NonRule || len(step.On.Kinds()) != 1 {
		return 0, lexis.TokenSet{}, false
	}
	if !expected(&rule.States[step.Next]).Has(kind) {
		return 0, lexis.TokenSet{}, false
	}
	return step.Next, step.On, true
}

// recover runs panic mode: consume tokens until a token of the current
// state's follow set resynchronizes the machine (true), or a halting
// token or end of input aborts the rule (false). Bracket pairs from the
// rule's recovery configuration are skipped as balanced groups.
func (s *Session) recover(rule *Rule, st *State) bool {
	follow := expected(st)
	start := s.boundary()
	var closers []lexis.TokenKind

	for {
		tok := s.Peek(0)
		if tok.Kind == lexis.EOI {
			s.Error(&SyntaxError{
				Kind:          ErrorMismatch,
				Rule:          rule.ID,
				Expected:      follow,
				ExpectedRules: expectedRules(st),
				Start:         start,
				End:           s.boundary(),
			})
			return false
		}

		if len(closers) > 0 {
			if tok.Kind == closers[len(closers)-1] {
				closers = closers[:len(closers)-1]
			} else if closer, ok := groupCloser(rule, tok.Kind); ok {
				closers = append(closers, closer)
			}
			s.Advance()
			continue
		}

		if rule.Recovery.Halt.Has(tok.Kind) {
			s.Error(&SyntaxError{
				Kind:          ErrorMismatch,
				Rule:          rule.ID,
				Expected:      follow,
				ExpectedRules: expectedRules(st),
				Start:         start,
				End:           s.boundary(),
			})
			return false
		}

		if follow.Has(tok.Kind) {
			s.Error(&SyntaxError{
				Kind:          ErrorMismatch,
				Rule:          rule.ID,
				Expected:      follow,
				ExpectedRules: expectedRules(st),
				Start:         start,
				End:           s.boundary(),
			})
			return true
		}

		if closer, ok := groupCloser(rule, tok.Kind); ok {
			closers = append(closers, closer)
		}
		s.Advance()
	}
}

func groupCloser(rule *Rule, kind lexis.TokenKind) (lexis.TokenKind, bool) {
	for _, pair := range rule.Recovery.Groups {
		if pair.Open == kind {
			return pair.Close, true
		}
	}
	return 0, false
}

func (s *Session) skipTrivia(rule *Rule) {
	if rule.Trivia.IsEmpty() {
		return
	}
	for !s.cursor.IsDangling() && rule.Trivia.Has(s.cursor.Chunk().Kind) {
		s.Advance()
	}
}

// reusable decides whether a cached cluster can stand in for a descend at
// the current position. The cluster's dependency window [entry, end +
// lookahead) must not intersect the change cover.
func (s *Session) reusable(cache *Cluster) (int, bool) {
	endSite, ok := cache.End.Resolve(s.cfg.Tree)
	if !ok || endSite < s.pos {
		return 0, false
	}
	if !s.cfg.HasCover {
		return endSite, true
	}
	// The lookahead bound is exclusive: the parse inspected sites strictly
	// below end + lookahead.
	if s.pos >= s.cfg.CoverEnd || endSite+cache.Lookahead <= s.cfg.CoverStart {
		return endSite, true
	}
	return 0, false
}

// entryActive reports whether a chunk is the entry of a cluster already
// under construction; at most one cluster anchors at a chunk.
func (s *Session) entryActive(chunk *store.Chunk) bool {
	for _, f := range s.frames {
		if f.entry == chunk {
			return true
		}
	}
	return false
}

func (s *Session) jump(site int) {
	probe := site
	s.cursor = s.cfg.Tree.Lookup(&probe)
	s.pos = site
}

func (s *Session) boundary() SiteKey {
	return s.SiteRef(0)
}

func (s *Session) top() *frame {
	return s.frames[len(s.frames)-1]
}

func (s *Session) observe(site int) {
	f := s.top()
	if site > f.farthest {
		f.farthest = site
	}
}

func (s *Session) lookahead(f *frame) int {
	if f.farthest > s.pos {
		return f.farthest - s.pos
	}
	return 0
}

func (s *Session) nodeByKey(key NodeKey) (*Node, bool) {
	return ResolveNode(s.cfg.Clusters, key)
}
